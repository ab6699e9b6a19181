package ops

import (
	"context"

	"github.com/thisis/placesguard/internal/errors"
	"github.com/thisis/placesguard/internal/nearby"
	"github.com/thisis/placesguard/internal/place"
)

// CellOutput contains the cache cell for a viewport.
type CellOutput struct {
	Cell   string       `json:"cell"`
	Bounds place.Bounds `json:"bounds"`
}

// Cell derives the nearby cache key for bounds.
func Cell(b place.Bounds) (*CellOutput, error) {
	if !b.Valid() {
		return nil, errors.NewInvalidRequest("bounds must satisfy -90<=south<=north<=90 and -180<=west,east<=180")
	}
	return &CellOutput{Cell: b.CellID(), Bounds: b}, nil
}

// NearbySearch runs a cached, gated nearby search.
func (s *Service) NearbySearch(ctx context.Context, b place.Bounds) (*nearby.Result, error) {
	res, err := s.nearby.Search(ctx, b)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

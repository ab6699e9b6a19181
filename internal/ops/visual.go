package ops

import (
	"context"

	"github.com/thisis/placesguard/internal/place"
	"github.com/thisis/placesguard/internal/visual"
)

// VisualResolveInput describes a place card.
type VisualResolveInput struct {
	Category     string
	UserPhotos   []string
	PhotoName    string   // provider photo handle, optional
	Attributions []string // author attributions for PhotoName
	Upgrade      bool     // attempt the remote tier now, without dwell; CLI and MCP only
}

// VisualResolveOutput contains the result of VisualResolve.
type VisualResolveOutput struct {
	Initial    visual.Resolution `json:"initial"`
	Resolution visual.Resolution `json:"resolution"`
	Outcome    visual.Outcome    `json:"outcome,omitempty"`
}

// Request converts the input to a resolver request.
func (in VisualResolveInput) Request() visual.Request {
	req := visual.Request{
		Category:   place.ParseCategory(in.Category),
		UserPhotos: in.UserPhotos,
	}
	if in.PhotoName != "" {
		req.Photo = &place.PhotoHandle{Name: in.PhotoName, Attributions: in.Attributions}
	}
	return req
}

// VisualResolve returns the initial visual and, when asked, the outcome of
// one remote upgrade attempt.
func (s *Service) VisualResolve(ctx context.Context, input VisualResolveInput) *VisualResolveOutput {
	req := input.Request()
	initial := s.resolver.Initial(req)
	out := &VisualResolveOutput{Initial: initial, Resolution: initial}
	if input.Upgrade {
		out.Resolution, out.Outcome = s.resolver.Upgrade(ctx, req)
	}
	return out
}

// Package visual picks the image shown for a place card. A poster or user
// photo is always available at once; the paid remote photo is an upgrade
// that runs only after the card has dwelled in view and the gate admits it.
package visual

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/thisis/placesguard/internal/budget"
	"github.com/thisis/placesguard/internal/config"
	"github.com/thisis/placesguard/internal/gate"
	"github.com/thisis/placesguard/internal/metrics"
	"github.com/thisis/placesguard/internal/place"
	"github.com/thisis/placesguard/internal/places"
)

// Tier is an image source, in increasing cost order.
type Tier string

const (
	TierPoster    Tier = "poster"
	TierUserPhoto Tier = "user_photo"
	TierRemote    Tier = "remote"
)

// Outcome explains how an upgrade attempt ended.
type Outcome string

const (
	Upgraded               Outcome = "upgraded"
	Ineligible             Outcome = "ineligible"
	KillSwitchActive       Outcome = "kill_switch_active"
	BudgetExceeded         Outcome = "budget_exceeded"
	PersistenceUnavailable Outcome = "persistence_unavailable"
	NetworkFailure         Outcome = "network_failure"
	Cancelled              Outcome = "cancelled"
)

// Request describes one place card.
type Request struct {
	Category   place.Category     `json:"category"`
	UserPhotos []string           `json:"user_photos,omitempty"`
	Photo      *place.PhotoHandle `json:"photo,omitempty"`
}

// Resolution is the image to display. Attribution is set for the remote tier.
type Resolution struct {
	Tier        Tier   `json:"tier"`
	URL         string `json:"url"`
	Attribution string `json:"attribution,omitempty"`
}

// PhotoSource resolves provider photo handles to displayable URIs. Each
// successful call is one billable photo request.
type PhotoSource interface {
	PhotoURI(ctx context.Context, h place.PhotoHandle, maxWidth int) (string, error)
}

// Resolver resolves place visuals.
type Resolver struct {
	gate       *gate.Gate
	photos     PhotoSource
	posterBase string
	maxWidth   int
	logger     *zap.Logger
}

// New creates a Resolver.
func New(g *gate.Gate, photos PhotoSource, cfg *config.Config, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		gate:       g,
		photos:     photos,
		posterBase: strings.TrimRight(cfg.PosterBaseURL, "/"),
		maxWidth:   cfg.PhotoMaxWidth,
		logger:     logger,
	}
}

// Poster returns the static poster for a category.
func (r *Resolver) Poster(c place.Category) Resolution {
	c = place.ParseCategory(string(c))
	return Resolution{Tier: TierPoster, URL: fmt.Sprintf("%s/%s.jpg", r.posterBase, c)}
}

// Initial returns what to render immediately: the first user photo if
// there is one, otherwise the category poster.
func (r *Resolver) Initial(req Request) Resolution {
	for _, u := range req.UserPhotos {
		if u != "" {
			return Resolution{Tier: TierUserPhoto, URL: u}
		}
	}
	return r.Poster(req.Category)
}

// Eligible reports whether req could ever upgrade to the remote tier.
func Eligible(req Request) bool {
	if req.Photo == nil || req.Photo.Name == "" {
		return false
	}
	for _, u := range req.UserPhotos {
		if u != "" {
			return false
		}
	}
	return true
}

// Upgrade attempts the remote tier. On any outcome other than Upgraded
// the returned resolution is Initial(req). One photos unit is recorded
// after the provider returns a photo URI, and never otherwise. The URI is
// keyless and displaying it costs nothing further. There is no retry.
func (r *Resolver) Upgrade(ctx context.Context, req Request) (Resolution, Outcome) {
	res, outcome := r.upgrade(ctx, req)
	metrics.VisualUpgrades.WithLabelValues(string(outcome)).Inc()
	return res, outcome
}

func (r *Resolver) upgrade(ctx context.Context, req Request) (Resolution, Outcome) {
	initial := r.Initial(req)
	if !Eligible(req) {
		return initial, Ineligible
	}
	if ctx.Err() != nil {
		return initial, Cancelled
	}

	switch r.gate.Admit(ctx, budget.Photos) {
	case budget.Allowed:
	case budget.KillSwitchActive:
		return initial, KillSwitchActive
	case budget.PersistenceUnavailable:
		return initial, PersistenceUnavailable
	default:
		return initial, BudgetExceeded
	}

	if ctx.Err() != nil {
		return initial, Cancelled
	}

	uri, err := r.photos.PhotoURI(ctx, *req.Photo, r.maxWidth)
	if err != nil {
		if ctx.Err() != nil {
			return initial, Cancelled
		}
		r.logger.Info("remote photo load failed", zap.String("photo", req.Photo.Name), zap.Error(err))
		return initial, NetworkFailure
	}

	// The request was paid for; bill it even if the caller has gone away.
	r.gate.Record(context.WithoutCancel(ctx), budget.Photos)

	return Resolution{Tier: TierRemote, URL: uri, Attribution: Attribution(req.Photo)}, Upgraded
}

// Attribution builds the display label required with a remote photo.
// It is never empty.
func Attribution(h *place.PhotoHandle) string {
	var authors []string
	if h != nil {
		for _, a := range h.Attributions {
			if a = strings.TrimSpace(a); a != "" {
				authors = append(authors, a)
			}
		}
	}
	if len(authors) == 0 {
		return "Photo: " + places.ProviderLabel
	}
	return fmt.Sprintf("Photo: %s / %s", strings.Join(authors, ", "), places.ProviderLabel)
}

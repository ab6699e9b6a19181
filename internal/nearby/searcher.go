// Package nearby serves viewport searches from a per-cell cache and only
// falls through to the paid provider when the cell is missing or stale.
package nearby

import (
	"context"
	stderrors "errors"
	"time"

	"go.uber.org/zap"

	"github.com/thisis/placesguard/internal/budget"
	"github.com/thisis/placesguard/internal/clock"
	"github.com/thisis/placesguard/internal/config"
	"github.com/thisis/placesguard/internal/docstore"
	"github.com/thisis/placesguard/internal/errors"
	"github.com/thisis/placesguard/internal/gate"
	"github.com/thisis/placesguard/internal/metrics"
	"github.com/thisis/placesguard/internal/place"
	"github.com/thisis/placesguard/internal/throttle"
)

// Source says where a result came from.
type Source string

const (
	SourceCache    Source = "cache"
	SourceProvider Source = "provider"
	SourceStale    Source = "stale" // expired cache served because the gate refused
	SourceNone     Source = "none"
)

// Failure marks a result degraded by a provider error after the gate
// admitted the search.
type Failure string

const FailureNetwork Failure = "network_failure"

// Fetcher performs the paid nearby search.
type Fetcher interface {
	SearchNearby(ctx context.Context, b place.Bounds) ([]place.Place, error)
}

// Result is a nearby search answer for one cell.
type Result struct {
	Cell      string         `json:"cell"`
	Places    []place.Place  `json:"places"`
	FetchedAt time.Time      `json:"fetched_at,omitempty"`
	Source    Source         `json:"source"`
	Verdict   budget.Verdict `json:"verdict,omitempty"`
	Failure   Failure        `json:"failure,omitempty"`
}

type cachedCell struct {
	Cell      string        `json:"cell"`
	Places    []place.Place `json:"places"`
	FetchedAt time.Time     `json:"fetched_at"`
}

// Searcher is a cached, gated nearby search.
type Searcher struct {
	store   docstore.Store
	gate    *gate.Gate
	fetcher Fetcher
	ttl     time.Duration
	window  time.Duration
	clk     clock.Clock
	logger  *zap.Logger
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithClock sets the clock used for cache freshness and throttling.
func WithClock(c clock.Clock) Option {
	return func(s *Searcher) { s.clk = c }
}

// WithLogger sets the searcher's logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Searcher) { s.logger = l }
}

// New creates a Searcher.
func New(store docstore.Store, g *gate.Gate, f Fetcher, cfg *config.Config, opts ...Option) *Searcher {
	s := &Searcher{
		store:   store,
		gate:    g,
		fetcher: f,
		ttl:     cfg.NearbyCacheTTL(),
		window:  cfg.ThrottleWindow(),
		clk:     clock.Real{},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CacheKey returns the document key for a cell.
func CacheKey(cell string) string {
	return "nearby/" + cell
}

// Search answers a viewport search. A fresh cached cell costs nothing.
// Gate refusals are reported in Result.Verdict and provider failures in
// Result.Failure, each with the expired cache entry when there is one.
// The only error is for invalid bounds.
func (s *Searcher) Search(ctx context.Context, b place.Bounds) (Result, error) {
	if !b.Valid() {
		return Result{}, errors.NewInvalidRequest("invalid bounds")
	}
	cell := b.CellID()
	key := CacheKey(cell)

	var cached cachedCell
	haveCache := false
	switch err := s.store.Get(ctx, key, &cached); {
	case err == nil:
		haveCache = true
	case stderrors.Is(err, docstore.ErrNotExist):
	default:
		s.logger.Warn("nearby cache read failed", zap.String("cell", cell), zap.Error(err))
	}

	if haveCache && s.clk.Now().Sub(cached.FetchedAt) < s.ttl {
		metrics.NearbyCache.WithLabelValues("hit").Inc()
		return Result{Cell: cell, Places: cached.Places, FetchedAt: cached.FetchedAt, Source: SourceCache, Verdict: budget.Allowed}, nil
	}
	if haveCache {
		metrics.NearbyCache.WithLabelValues("stale").Inc()
	} else {
		metrics.NearbyCache.WithLabelValues("miss").Inc()
	}

	fallback := Result{Cell: cell, Places: []place.Place{}, Source: SourceNone}
	if haveCache {
		fallback = Result{Cell: cell, Places: cached.Places, FetchedAt: cached.FetchedAt, Source: SourceStale}
	}

	if verdict := s.gate.Admit(ctx, budget.Nearby); verdict != budget.Allowed {
		fallback.Verdict = verdict
		return fallback, nil
	}

	found, err := s.fetcher.SearchNearby(ctx, b)
	if err != nil {
		s.logger.Info("nearby search failed, serving fallback",
			zap.String("cell", cell),
			zap.String("source", string(fallback.Source)),
			zap.Error(err),
		)
		fallback.Verdict = budget.Allowed
		fallback.Failure = FailureNetwork
		return fallback, nil
	}
	s.gate.Record(context.WithoutCancel(ctx), budget.Nearby)

	if found == nil {
		found = []place.Place{}
	}
	entry := cachedCell{Cell: cell, Places: found, FetchedAt: s.clk.Now()}
	if err := s.store.Put(context.WithoutCancel(ctx), key, entry); err != nil {
		s.logger.Warn("nearby cache write failed", zap.String("cell", cell), zap.Error(err))
	}

	return Result{Cell: cell, Places: found, FetchedAt: entry.FetchedAt, Source: SourceProvider, Verdict: budget.Allowed}, nil
}

// Watcher throttles viewport changes into searches.
type Watcher struct {
	th *throttle.Throttle[place.Bounds]
}

// Watch returns a Watcher that searches at most once per throttle window
// and reports each answer to onResult. The first move in an idle window is
// searched synchronously; later moves collapse into one trailing search.
func (s *Searcher) Watch(ctx context.Context, onResult func(Result, error)) *Watcher {
	return &Watcher{
		th: throttle.New(s.window, s.clk, func(b place.Bounds) {
			res, err := s.Search(ctx, b)
			onResult(res, err)
		}),
	}
}

// Moved reports a new viewport.
func (w *Watcher) Moved(b place.Bounds) {
	w.th.Call(b)
}

// Stop drops any pending search.
func (w *Watcher) Stop() {
	w.th.Stop()
}

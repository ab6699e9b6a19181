// Package ops is the operation layer shared by the CLI, the MCP server and
// the HTTP API. Each operation takes an Input struct and returns an Output
// struct ready to be encoded as JSON.
package ops

import (
	"database/sql"
	"net/http"

	"go.uber.org/zap"

	"github.com/thisis/placesguard/internal/autocomplete"
	"github.com/thisis/placesguard/internal/budget"
	"github.com/thisis/placesguard/internal/clock"
	"github.com/thisis/placesguard/internal/config"
	"github.com/thisis/placesguard/internal/db"
	"github.com/thisis/placesguard/internal/docstore"
	"github.com/thisis/placesguard/internal/dwell"
	"github.com/thisis/placesguard/internal/gate"
	"github.com/thisis/placesguard/internal/killswitch"
	"github.com/thisis/placesguard/internal/nearby"
	"github.com/thisis/placesguard/internal/places"
	"github.com/thisis/placesguard/internal/visual"
)

// Ledger listing limits.
const (
	DefaultEventsLimit = 50
	MaxEventsLimit     = 500
)

// Service wires the cost-control components over one store.
type Service struct {
	cfg    *config.Config
	logger *zap.Logger
	clk    clock.Clock

	store  docstore.Store
	ledger *db.Ledger

	counter  *budget.Counter
	sw       *killswitch.Switch
	gate     *gate.Gate
	provider *places.Client
	photos   visual.PhotoSource
	resolver *visual.Resolver
	search   *autocomplete.Client
	nearby   *nearby.Searcher

	httpClient *http.Client
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger handed to every component.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock sets the clock handed to every component.
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clk = c }
}

// WithStore replaces the document store. Without a database the service
// otherwise falls back to an in-memory store.
func WithStore(st docstore.Store) Option {
	return func(s *Service) { s.store = st }
}

// WithHTTPClient sets the HTTP client used for provider calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *Service) { s.httpClient = hc }
}

// WithPhotoSource replaces the provider as the remote photo source.
func WithPhotoSource(p visual.PhotoSource) Option {
	return func(s *Service) { s.photos = p }
}

// New builds a Service. database may be nil, in which case consumption is
// not written to the usage ledger.
func New(database *sql.DB, cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		cfg:    cfg,
		logger: zap.NewNop(),
		clk:    clock.Real{},
	}
	for _, opt := range opts {
		opt(s)
	}

	if database != nil {
		s.ledger = db.NewLedger(database)
		if s.store == nil {
			s.store = db.NewDocStore(database)
		}
	}
	if s.store == nil {
		s.store = docstore.NewMemory()
	}

	counterOpts := []budget.Option{budget.WithClock(s.clk), budget.WithLogger(s.logger.Named("budget"))}
	if s.ledger != nil {
		counterOpts = append(counterOpts, budget.WithLedger(s.ledger))
	}
	s.counter = budget.New(s.store, cfg, counterOpts...)
	s.sw = killswitch.New(s.store, cfg, killswitch.WithClock(s.clk), killswitch.WithLogger(s.logger.Named("killswitch")))
	s.gate = gate.New(s.sw, s.counter, s.logger.Named("gate"))

	providerOpts := []places.Option{places.WithLogger(s.logger.Named("places"))}
	if s.httpClient != nil {
		providerOpts = append(providerOpts, places.WithHTTPClient(s.httpClient))
	}
	s.provider = places.New(cfg, providerOpts...)
	if s.photos == nil {
		s.photos = s.provider
	}

	s.resolver = visual.New(s.gate, s.photos, cfg, s.logger.Named("visual"))
	s.search = autocomplete.New(s.gate, s.provider, cfg,
		autocomplete.WithClock(s.clk), autocomplete.WithLogger(s.logger.Named("autocomplete")))
	s.nearby = nearby.New(s.store, s.gate, s.provider, cfg,
		nearby.WithClock(s.clk), nearby.WithLogger(s.logger.Named("nearby")))
	return s
}

// Config returns the service configuration.
func (s *Service) Config() *config.Config { return s.cfg }

// Logger returns the service logger.
func (s *Service) Logger() *zap.Logger { return s.logger }

// Counter returns the daily budget counter.
func (s *Service) Counter() *budget.Counter { return s.counter }

// Switch returns the kill switch.
func (s *Service) Switch() *killswitch.Switch { return s.sw }

// Resolver returns the visual resolver.
func (s *Service) Resolver() *visual.Resolver { return s.resolver }

// Autocomplete returns the session-scoped autocomplete client.
func (s *Service) Autocomplete() *autocomplete.Client { return s.search }

// Nearby returns the cached nearby searcher.
func (s *Service) Nearby() *nearby.Searcher { return s.nearby }

// NewTrigger returns a dwell trigger configured from the service settings.
func (s *Service) NewTrigger(onReady func()) *dwell.Trigger {
	return dwell.New(dwell.Config{Threshold: s.cfg.DwellThreshold, Dwell: s.cfg.Dwell()}, s.clk, onReady)
}

// Package autocomplete groups keystrokes into provider billing sessions.
// Every prediction request carries the token of the session it belongs to,
// so the provider bills one session rather than each keystroke.
package autocomplete

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/thisis/placesguard/internal/budget"
	"github.com/thisis/placesguard/internal/clock"
	"github.com/thisis/placesguard/internal/config"
	"github.com/thisis/placesguard/internal/gate"
	"github.com/thisis/placesguard/internal/metrics"
	"github.com/thisis/placesguard/internal/places"
	"github.com/thisis/placesguard/internal/throttle"
)

// SearchSession is one open billing session.
type SearchSession struct {
	Token     string    `json:"token"`
	StartedAt time.Time `json:"started_at"`
	Requests  int       `json:"requests"`
}

// Predictor issues autocomplete requests.
type Predictor interface {
	Autocomplete(ctx context.Context, input, sessionToken string) ([]places.Prediction, error)
}

// Client is a session-scoped autocomplete client. It is safe for
// concurrent use but holds at most one session at a time.
type Client struct {
	gate      *gate.Gate
	predictor Predictor
	minChars  int
	clk       clock.Clock
	logger    *zap.Logger

	mu      sync.Mutex
	session *SearchSession
}

// Option configures a Client.
type Option func(*Client)

// WithClock sets the clock used for session timestamps.
func WithClock(c clock.Clock) Option {
	return func(cl *Client) { cl.clk = c }
}

// WithLogger sets the client's logger.
func WithLogger(l *zap.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// New creates a Client.
func New(g *gate.Gate, p Predictor, cfg *config.Config, opts ...Option) *Client {
	c := &Client{
		gate:      g,
		predictor: p,
		minChars:  cfg.AutocompleteMinChars,
		clk:       clock.Real{},
		logger:    zap.NewNop(),
	}
	if c.minChars <= 0 {
		c.minChars = 3
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BeginSession closes any open session and starts a new one.
func (c *Client) BeginSession() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		metrics.SearchSessions.WithLabelValues("superseded").Inc()
	}
	c.session = &SearchSession{
		Token:     uuid.NewString(),
		StartedAt: c.clk.Now(),
	}
	metrics.SearchSessions.WithLabelValues("begin").Inc()
	return c.session.Token
}

// EndSession closes the open session, if any.
func (c *Client) EndSession() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return
	}
	c.session = nil
	metrics.SearchSessions.WithLabelValues("end").Inc()
}

// Session returns a copy of the open session.
func (c *Client) Session() (SearchSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return SearchSession{}, false
	}
	return *c.session, true
}

// GetPredictions returns prediction texts for query. It returns nothing,
// without touching the network, when no session is open, the query is too
// short, or the gate refuses. Provider failures also yield nothing.
func (c *Client) GetPredictions(ctx context.Context, query string) []string {
	q := strings.TrimSpace(query)
	if utf8.RuneCountInString(q) < c.minChars {
		return nil
	}

	sess, ok := c.Session()
	if !ok {
		return nil
	}

	if c.gate.Admit(ctx, budget.Autocomplete) != budget.Allowed {
		return nil
	}

	preds, err := c.predictor.Autocomplete(ctx, q, sess.Token)
	if err != nil {
		c.logger.Info("autocomplete request failed", zap.Error(err))
		return nil
	}
	c.gate.Record(context.WithoutCancel(ctx), budget.Autocomplete)

	c.mu.Lock()
	if c.session != nil && c.session.Token == sess.Token {
		c.session.Requests++
	}
	c.mu.Unlock()

	texts := make([]string, 0, len(preds))
	for _, p := range preds {
		texts = append(texts, p.Text)
	}
	return texts
}

// NewDebouncer returns a debouncer for raw keystrokes. The quiet period is
// never shorter than config.MinDebounce.
func NewDebouncer(quiet time.Duration, clk clock.Clock, fn func(query string)) *throttle.Debouncer[string] {
	if quiet < config.MinDebounce {
		quiet = config.MinDebounce
	}
	return throttle.NewDebouncer(quiet, clk, fn)
}

package budget

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/thisis/placesguard/internal/clock"
	"github.com/thisis/placesguard/internal/config"
	"github.com/thisis/placesguard/internal/db"
	"github.com/thisis/placesguard/internal/docstore"
	"github.com/thisis/placesguard/internal/errors"
	"github.com/thisis/placesguard/internal/metrics"
)

const dayLayout = "2006-01-02"

// State is the persisted per-kind counter. Used belongs to Date only.
type State struct {
	Date string `json:"date"`
	Used int    `json:"used"`
}

// Usage is an operator view of one kind's budget for today.
type Usage struct {
	Kind      Kind      `json:"kind"`
	Date      string    `json:"date"`
	Limit     int       `json:"limit"`
	Used      int       `json:"used"`
	Remaining int       `json:"remaining"`
	ResetsAt  time.Time `json:"resets_at"`
}

// Ledger receives one event per recorded consumption.
type Ledger interface {
	Append(ctx context.Context, kind, day string, at time.Time) (*db.UsageEvent, error)
}

// Counter tracks daily consumption per kind against fixed ceilings.
// The ceiling is per client store: it does not bound spend across clients.
type Counter struct {
	store  docstore.Store
	limits map[Kind]int
	policy config.FailurePolicy
	loc    *time.Location
	clock  clock.Clock
	logger *zap.Logger
	ledger Ledger

	// locks serialise read-modify-write per kind
	locks map[Kind]*sync.Mutex

	mu      sync.Mutex
	latched map[Kind]string // kind -> day it was latched exhausted after a failed write
}

// Option configures a Counter.
type Option func(*Counter)

// WithClock replaces the system clock.
func WithClock(c clock.Clock) Option {
	return func(ct *Counter) { ct.clock = c }
}

// WithLogger sets the logger used for fail-open warnings.
func WithLogger(l *zap.Logger) Option {
	return func(ct *Counter) { ct.logger = l }
}

// WithLedger attaches a consumption ledger.
func WithLedger(l Ledger) Option {
	return func(ct *Counter) { ct.ledger = l }
}

// New creates a Counter over store using the ceilings, day boundary and
// failure policy from cfg.
func New(store docstore.Store, cfg *config.Config, opts ...Option) *Counter {
	c := &Counter{
		store:   store,
		limits:  make(map[Kind]int, len(Kinds)),
		policy:  cfg.FailurePolicy,
		loc:     cfg.Location(),
		clock:   clock.Real{},
		logger:  zap.NewNop(),
		locks:   make(map[Kind]*sync.Mutex, len(Kinds)),
		latched: make(map[Kind]string),
	}
	for _, k := range Kinds {
		c.limits[k] = cfg.DailyLimits[string(k)]
		c.locks[k] = &sync.Mutex{}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Limit returns the daily ceiling for kind (0 for unknown kinds).
func (c *Counter) Limit(kind Kind) int {
	return c.limits[kind]
}

// Today returns the current rollover key.
func (c *Counter) Today() string {
	return c.clock.Now().In(c.loc).Format(dayLayout)
}

// CanConsume reports whether another unit of kind fits in today's budget.
// It never changes the stored count.
func (c *Counter) CanConsume(ctx context.Context, kind Kind) bool {
	return c.Check(ctx, kind) == Allowed
}

// Check is CanConsume with the reason for a denial.
func (c *Counter) Check(ctx context.Context, kind Kind) Verdict {
	if !kind.Valid() {
		c.logger.Warn("budget check for unknown kind", zap.String("kind", string(kind)))
		return BudgetExceeded
	}

	today := c.Today()
	if c.isLatched(kind, today) {
		return BudgetExceeded
	}

	st, err := c.load(ctx, kind, today)
	if err != nil {
		if c.policy.BudgetRead == config.FailClosed {
			metrics.PersistenceFailures.WithLabelValues("budget_read", string(config.FailClosed)).Inc()
			c.logger.Warn("budget read failed, denying", zap.String("kind", string(kind)), zap.Error(err))
			return PersistenceUnavailable
		}
		metrics.PersistenceFailures.WithLabelValues("budget_read", string(config.FailOpen)).Inc()
		c.logger.Warn("budget read failed, allowing", zap.String("kind", string(kind)), zap.Error(err))
		return Allowed
	}

	metrics.BudgetUsed.WithLabelValues(string(kind)).Set(float64(st.Used))
	if st.Used < c.limits[kind] {
		return Allowed
	}
	return BudgetExceeded
}

// RecordConsumption adds one unit of kind to today's count.
// Concurrent calls for the same kind are serialised so no increment is lost.
func (c *Counter) RecordConsumption(ctx context.Context, kind Kind) error {
	if !kind.Valid() {
		return errors.NewInvalidRequest("unknown budget kind: " + string(kind))
	}

	lock := c.locks[kind]
	lock.Lock()
	defer lock.Unlock()

	now := c.clock.Now()
	today := now.In(c.loc).Format(dayLayout)

	st, err := c.load(ctx, kind, today)
	if err != nil {
		return c.writeFailed(kind, today, err)
	}
	st.Used++
	if err := c.store.Put(ctx, kind.key(), st); err != nil {
		return c.writeFailed(kind, today, err)
	}

	metrics.Consumptions.WithLabelValues(string(kind)).Inc()
	metrics.BudgetUsed.WithLabelValues(string(kind)).Set(float64(st.Used))

	if c.ledger != nil {
		if _, err := c.ledger.Append(ctx, string(kind), today, now); err != nil {
			c.logger.Warn("usage ledger append failed", zap.String("kind", string(kind)), zap.Error(err))
		}
	}
	return nil
}

// Usage returns today's figures for kind.
func (c *Counter) Usage(ctx context.Context, kind Kind) (*Usage, error) {
	if !kind.Valid() {
		return nil, errors.NewInvalidRequest("unknown budget kind: " + string(kind))
	}
	now := c.clock.Now().In(c.loc)
	today := now.Format(dayLayout)

	st, err := c.load(ctx, kind, today)
	if err != nil {
		return nil, errors.NewPersistenceUnavailable("budget read", err)
	}

	limit := c.limits[kind]
	used := st.Used
	if c.isLatched(kind, today) && used < limit {
		used = limit
	}
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return &Usage{
		Kind:      kind,
		Date:      today,
		Limit:     limit,
		Used:      used,
		Remaining: remaining,
		ResetsAt:  time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, c.loc),
	}, nil
}

// Report returns Usage for every kind.
func (c *Counter) Report(ctx context.Context) ([]Usage, error) {
	out := make([]Usage, 0, len(Kinds))
	for _, k := range Kinds {
		u, err := c.Usage(ctx, k)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, nil
}

// load reads the state for kind, applying the rollover for today.
func (c *Counter) load(ctx context.Context, kind Kind, today string) (State, error) {
	var st State
	err := c.store.Get(ctx, kind.key(), &st)
	if stderrors.Is(err, docstore.ErrNotExist) {
		return State{Date: today}, nil
	}
	if err != nil {
		return State{}, err
	}
	if st.Date != today {
		return State{Date: today}, nil
	}
	if st.Used < 0 {
		st.Used = 0
	}
	return st, nil
}

// writeFailed applies the budget_write policy. Caller holds the kind lock.
func (c *Counter) writeFailed(kind Kind, today string, err error) error {
	mode := c.policy.BudgetWrite
	if mode != config.FailClosed {
		mode = config.FailOpen
	}
	metrics.PersistenceFailures.WithLabelValues("budget_write", string(mode)).Inc()

	if mode == config.FailClosed {
		c.mu.Lock()
		c.latched[kind] = today
		c.mu.Unlock()
		c.logger.Warn("budget write failed, latching kind exhausted for today",
			zap.String("kind", string(kind)), zap.String("day", today), zap.Error(err))
	} else {
		c.logger.Warn("budget write failed, consumption dropped",
			zap.String("kind", string(kind)), zap.Error(err))
	}
	return errors.NewPersistenceUnavailable("budget write", err)
}

func (c *Counter) isLatched(kind Kind, today string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	day, ok := c.latched[kind]
	if ok && day != today {
		delete(c.latched, kind)
		return false
	}
	return ok
}

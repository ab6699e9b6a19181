// Package killswitch reads and writes the remote flag document that can
// halt every paid places call without a deploy.
package killswitch

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/thisis/placesguard/internal/clock"
	"github.com/thisis/placesguard/internal/config"
	"github.com/thisis/placesguard/internal/docstore"
	"github.com/thisis/placesguard/internal/errors"
	"github.com/thisis/placesguard/internal/metrics"
)

// FlagsKey is the well-known document key for the remote flags.
const FlagsKey = "flags/places"

// Flags is the remote flag document. Paid calls are permitted only when
// PlacesEnabled is true and EmergencyShutdown is false.
type Flags struct {
	PlacesEnabled     bool      `json:"placesEnabled"`
	EmergencyShutdown bool      `json:"emergencyShutdown"`
	Reason            string    `json:"reason,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// Active reports whether these flags block paid calls.
func (f Flags) Active() bool {
	return !f.PlacesEnabled || f.EmergencyShutdown
}

// storedFlags distinguishes a missing field from an explicit false.
type storedFlags struct {
	PlacesEnabled     *bool     `json:"placesEnabled"`
	EmergencyShutdown *bool     `json:"emergencyShutdown"`
	Reason            string    `json:"reason"`
	Timestamp         time.Time `json:"timestamp"`
}

// Switch is the kill switch service. Every check re-reads the store.
type Switch struct {
	store  docstore.Store
	mode   config.FailureMode
	clock  clock.Clock
	logger *zap.Logger
}

// Option configures a Switch.
type Option func(*Switch)

// WithClock replaces the system clock used to stamp writes.
func WithClock(c clock.Clock) Option {
	return func(s *Switch) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Switch) { s.logger = l }
}

// New creates a Switch over store using cfg's flag_read failure mode.
func New(store docstore.Store, cfg *config.Config, opts ...Option) *Switch {
	s := &Switch{
		store:  store,
		mode:   cfg.FailurePolicy.FlagRead,
		clock:  clock.Real{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Flags reads the current flag document. A missing document yields the
// defaults: places enabled, no shutdown.
func (s *Switch) Flags(ctx context.Context) (Flags, error) {
	var raw storedFlags
	err := s.store.Get(ctx, FlagsKey, &raw)
	if stderrors.Is(err, docstore.ErrNotExist) {
		return Flags{PlacesEnabled: true}, nil
	}
	if err != nil {
		return Flags{}, errors.NewPersistenceUnavailable("flag read", err)
	}

	f := Flags{PlacesEnabled: true, Reason: raw.Reason, Timestamp: raw.Timestamp}
	if raw.PlacesEnabled != nil {
		f.PlacesEnabled = *raw.PlacesEnabled
	}
	if raw.EmergencyShutdown != nil {
		f.EmergencyShutdown = *raw.EmergencyShutdown
	}
	return f, nil
}

// IsActive reports whether paid calls are currently blocked. A failed read
// follows the flag_read policy: open means not active.
func (s *Switch) IsActive(ctx context.Context) bool {
	f, err := s.Flags(ctx)
	if err != nil {
		if s.mode == config.FailClosed {
			metrics.PersistenceFailures.WithLabelValues("flag_read", string(config.FailClosed)).Inc()
			s.logger.Warn("kill switch read failed, treating as active", zap.Error(err))
			metrics.KillSwitchActive.Set(1)
			return true
		}
		metrics.PersistenceFailures.WithLabelValues("flag_read", string(config.FailOpen)).Inc()
		s.logger.Warn("kill switch read failed, treating as inactive", zap.Error(err))
		return false
	}

	active := f.Active()
	if active {
		metrics.KillSwitchActive.Set(1)
	} else {
		metrics.KillSwitchActive.Set(0)
	}
	return active
}

// Activate engages the emergency shutdown. Repeating it only refreshes the
// reason and timestamp.
func (s *Switch) Activate(ctx context.Context, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return errors.NewInvalidRequest("reason is required to activate the kill switch")
	}
	err := s.store.Merge(ctx, FlagsKey, map[string]any{
		"emergencyShutdown": true,
		"reason":            reason,
		"timestamp":         s.clock.Now().UTC(),
	})
	if err != nil {
		return errors.NewPersistenceUnavailable("flag write", err)
	}
	s.logger.Warn("kill switch activated", zap.String("reason", reason))
	return nil
}

// Deactivate clears the emergency shutdown. It leaves placesEnabled alone,
// so calls stay blocked if places were disabled separately.
func (s *Switch) Deactivate(ctx context.Context) error {
	err := s.store.Merge(ctx, FlagsKey, map[string]any{
		"emergencyShutdown": false,
		"reason":            "",
		"timestamp":         s.clock.Now().UTC(),
	})
	if err != nil {
		return errors.NewPersistenceUnavailable("flag write", err)
	}
	s.logger.Info("kill switch deactivated")
	return nil
}

// SetPlacesEnabled toggles the non-emergency enable flag.
func (s *Switch) SetPlacesEnabled(ctx context.Context, enabled bool) error {
	err := s.store.Merge(ctx, FlagsKey, map[string]any{
		"placesEnabled": enabled,
		"timestamp":     s.clock.Now().UTC(),
	})
	if err != nil {
		return errors.NewPersistenceUnavailable("flag write", err)
	}
	s.logger.Info("places enabled flag changed", zap.Bool("enabled", enabled))
	return nil
}

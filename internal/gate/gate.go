// Package gate is the single admission point for paid provider calls:
// the kill switch is consulted first, then the daily budget.
package gate

import (
	"context"

	"go.uber.org/zap"

	"github.com/thisis/placesguard/internal/budget"
	"github.com/thisis/placesguard/internal/killswitch"
	"github.com/thisis/placesguard/internal/metrics"
)

// Gate combines the kill switch and the budget counter.
type Gate struct {
	sw      *killswitch.Switch
	counter *budget.Counter
	logger  *zap.Logger
}

// New creates a Gate. A nil logger discards output.
func New(sw *killswitch.Switch, counter *budget.Counter, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{sw: sw, counter: counter, logger: logger}
}

// Admit decides whether one paid call of kind may be issued now.
// It never records consumption.
func (g *Gate) Admit(ctx context.Context, kind budget.Kind) budget.Verdict {
	var verdict budget.Verdict
	if g.sw.IsActive(ctx) {
		verdict = budget.KillSwitchActive
	} else {
		verdict = g.counter.Check(ctx, kind)
	}
	metrics.GateDecisions.WithLabelValues(string(kind), string(verdict)).Inc()
	if verdict != budget.Allowed {
		g.logger.Debug("paid call not admitted", zap.String("kind", string(kind)), zap.String("verdict", string(verdict)))
	}
	return verdict
}

// Record bills one unit of kind after the paid call succeeded. Failures
// are handled by the counter's write policy and only logged here.
func (g *Gate) Record(ctx context.Context, kind budget.Kind) {
	if err := g.counter.RecordConsumption(ctx, kind); err != nil {
		g.logger.Warn("consumption not recorded", zap.String("kind", string(kind)), zap.Error(err))
	}
}

// Counter exposes the underlying budget counter.
func (g *Gate) Counter() *budget.Counter { return g.counter }

// Switch exposes the underlying kill switch.
func (g *Gate) Switch() *killswitch.Switch { return g.sw }

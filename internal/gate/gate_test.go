package gate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thisis/placesguard/internal/budget"
	"github.com/thisis/placesguard/internal/clock"
	"github.com/thisis/placesguard/internal/config"
	"github.com/thisis/placesguard/internal/docstore"
	"github.com/thisis/placesguard/internal/killswitch"
)

func testGate(t *testing.T) *Gate {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DailyLimits["photos"] = 2
	store := docstore.NewMemory()
	clk := clock.NewFake(time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local))
	return New(
		killswitch.New(store, cfg, killswitch.WithClock(clk)),
		budget.New(store, cfg, budget.WithClock(clk)),
		nil,
	)
}

func TestGate_AdmitsWithHeadroom(t *testing.T) {
	g := testGate(t)
	assert.Equal(t, budget.Allowed, g.Admit(context.Background(), budget.Photos))
}

func TestGate_KillSwitchTakesPrecedenceOverHeadroom(t *testing.T) {
	g := testGate(t)
	ctx := context.Background()

	require.NoError(t, g.Switch().Activate(ctx, "spend spike"))
	assert.Equal(t, budget.KillSwitchActive, g.Admit(ctx, budget.Photos))
	assert.True(t, g.Counter().CanConsume(ctx, budget.Photos), "budget itself still has headroom")
}

func TestGate_BudgetExceeded(t *testing.T) {
	g := testGate(t)
	ctx := context.Background()

	g.Record(ctx, budget.Photos)
	g.Record(ctx, budget.Photos)
	assert.Equal(t, budget.BudgetExceeded, g.Admit(ctx, budget.Photos))
}

func TestGate_AdmitDoesNotConsume(t *testing.T) {
	g := testGate(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		g.Admit(ctx, budget.Photos)
	}
	u, err := g.Counter().Usage(ctx, budget.Photos)
	require.NoError(t, err)
	assert.Equal(t, 0, u.Used)
}

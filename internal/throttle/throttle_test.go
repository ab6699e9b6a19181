package throttle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thisis/placesguard/internal/clock"
)

func newFake() *clock.Fake {
	return clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
}

func TestThrottle_LeadingAndTrailing(t *testing.T) {
	clk := newFake()
	var got []int
	th := New(750*time.Millisecond, clk, func(v int) { got = append(got, v) })

	th.Call(1)
	th.Call(2)
	th.Call(3)
	clk.Advance(100 * time.Millisecond)
	th.Call(4)

	clk.Advance(50 * time.Millisecond) // 150ms elapsed
	assert.Less(t, len(got), 2, "only the leading call may run inside the window")

	clk.Advance(750 * time.Millisecond) // 900ms elapsed
	require.GreaterOrEqual(t, len(got), 2)
	assert.Equal(t, []int{1, 4}, got, "trailing run carries the latest value")
}

func TestThrottle_IdleWindowRunsImmediately(t *testing.T) {
	clk := newFake()
	runs := 0
	th := New(750*time.Millisecond, clk, func(struct{}) { runs++ })

	th.Call(struct{}{})
	clk.Advance(time.Second)
	assert.Equal(t, 1, runs)
	assert.Equal(t, 0, clk.Pending())

	th.Call(struct{}{})
	assert.Equal(t, 2, runs)
}

func TestThrottle_TrailingOpensNewWindow(t *testing.T) {
	clk := newFake()
	runs := 0
	th := New(100*time.Millisecond, clk, func(int) { runs++ })

	th.Call(0)
	th.Call(0)
	clk.Advance(100 * time.Millisecond) // trailing
	assert.Equal(t, 2, runs)

	th.Call(0) // inside the trailing run's window
	assert.Equal(t, 2, runs)
	clk.Advance(100 * time.Millisecond)
	assert.Equal(t, 3, runs)
}

func TestThrottle_StopDropsTrailing(t *testing.T) {
	clk := newFake()
	runs := 0
	th := New(750*time.Millisecond, clk, func(int) { runs++ })

	th.Call(1)
	th.Call(2)
	th.Stop()
	clk.Advance(time.Second)
	th.Call(3)

	assert.Equal(t, 1, runs)
}

func TestDebouncer_DeliversLatestAfterQuiet(t *testing.T) {
	clk := newFake()
	var got []string
	d := NewDebouncer(600*time.Millisecond, clk, func(q string) { got = append(got, q) })

	d.Push("c")
	clk.Advance(200 * time.Millisecond)
	d.Push("ca")
	clk.Advance(200 * time.Millisecond)
	d.Push("caf")

	clk.Advance(599 * time.Millisecond)
	assert.Empty(t, got)

	clk.Advance(time.Millisecond)
	assert.Equal(t, []string{"caf"}, got)
}

func TestDebouncer_Stop(t *testing.T) {
	clk := newFake()
	called := false
	d := NewDebouncer(600*time.Millisecond, clk, func(string) { called = true })

	d.Push("x")
	d.Stop()
	clk.Advance(time.Second)
	d.Push("y")
	clk.Advance(time.Second)

	assert.False(t, called)
}

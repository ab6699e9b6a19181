// Package throttle rate-limits bursts of calls on an injectable clock.
package throttle

import (
	"sync"
	"time"

	"github.com/thisis/placesguard/internal/clock"
)

// DefaultWindow is the throttle window used for map-move searches.
const DefaultWindow = 750 * time.Millisecond

// Throttle runs fn at most once per window. The first call in an idle
// window runs immediately; later calls inside the window collapse into a
// single trailing run with the most recent value when the window ends.
type Throttle[T any] struct {
	mu     sync.Mutex
	clk    clock.Clock
	window time.Duration
	fn     func(T)

	timer   clock.Timer
	pending bool
	last    T
	stopped bool
}

// New creates a Throttle. A non-positive window uses DefaultWindow.
func New[T any](window time.Duration, clk clock.Clock, fn func(T)) *Throttle[T] {
	if window <= 0 {
		window = DefaultWindow
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Throttle[T]{clk: clk, window: window, fn: fn}
}

// Call submits v. It runs fn synchronously when the window is idle.
func (t *Throttle[T]) Call(v T) {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	if t.timer != nil {
		t.pending = true
		t.last = v
		t.mu.Unlock()
		return
	}
	t.timer = t.clk.AfterFunc(t.window, t.windowEnd)
	t.mu.Unlock()

	t.fn(v)
}

func (t *Throttle[T]) windowEnd() {
	t.mu.Lock()
	if t.stopped || !t.pending {
		t.timer = nil
		t.mu.Unlock()
		return
	}
	v := t.last
	var zero T
	t.last = zero
	t.pending = false
	// the trailing run opens a new window of its own
	t.timer = t.clk.AfterFunc(t.window, t.windowEnd)
	t.mu.Unlock()

	t.fn(v)
}

// Stop drops any pending trailing run. Calls after Stop are ignored.
func (t *Throttle[T]) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	t.pending = false
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// Debouncer delivers the most recent value once no new value has arrived
// for the quiet period.
type Debouncer[T any] struct {
	mu    sync.Mutex
	clk   clock.Clock
	quiet time.Duration
	fn    func(T)

	timer   clock.Timer
	gen     uint64
	stopped bool
}

// NewDebouncer creates a Debouncer with the given quiet period.
func NewDebouncer[T any](quiet time.Duration, clk clock.Clock, fn func(T)) *Debouncer[T] {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Debouncer[T]{clk: clk, quiet: quiet, fn: fn}
}

// Quiet returns the configured quiet period.
func (d *Debouncer[T]) Quiet() time.Duration {
	return d.quiet
}

// Push records v and restarts the quiet period.
func (d *Debouncer[T]) Push(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.clk.AfterFunc(d.quiet, func() { d.deliver(gen, v) })
}

func (d *Debouncer[T]) deliver(gen uint64, v T) {
	d.mu.Lock()
	if d.stopped || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	d.fn(v)
}

// Stop cancels any pending delivery.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

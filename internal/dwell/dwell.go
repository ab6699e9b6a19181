// Package dwell fires a task once a visibility condition has held
// continuously for a minimum duration. It is fed visibility ratios by
// whatever observes the element, so it does not depend on a rendering API.
package dwell

import (
	"sync"
	"time"

	"github.com/thisis/placesguard/internal/clock"
)

// Defaults for a place card.
const (
	DefaultThreshold = 0.6
	DefaultDwell     = 400 * time.Millisecond
)

// Config holds the visibility ratio that counts as visible and how long it must hold.
type Config struct {
	Threshold float64
	Dwell     time.Duration
}

// DefaultConfig returns the place-card defaults.
func DefaultConfig() Config {
	return Config{Threshold: DefaultThreshold, Dwell: DefaultDwell}
}

// Trigger is a one-shot dwell gate.
type Trigger struct {
	mu      sync.Mutex
	cfg     Config
	clk     clock.Clock
	onReady func()

	visible bool
	timer   clock.Timer
	gen     uint64
	ready   bool
	closed  bool
	done    chan struct{}

	// held while onReady runs so Close can wait it out
	cbMu sync.Mutex
}

// New creates a Trigger. Out-of-range settings fall back to the defaults.
// onReady may be nil; it must not call Close.
func New(cfg Config, clk clock.Clock, onReady func()) *Trigger {
	if cfg.Threshold <= 0 || cfg.Threshold > 1 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Dwell < 0 {
		cfg.Dwell = DefaultDwell
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Trigger{
		cfg:     cfg,
		clk:     clk,
		onReady: onReady,
		done:    make(chan struct{}),
	}
}

// Observe reports the element's current visibility ratio.
func (t *Trigger) Observe(ratio float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ready || t.closed {
		return
	}

	if ratio >= t.cfg.Threshold {
		if t.visible {
			return
		}
		t.visible = true
		t.gen++
		gen := t.gen
		t.timer = t.clk.AfterFunc(t.cfg.Dwell, func() { t.fire(gen) })
		return
	}

	if t.visible {
		t.visible = false
		t.gen++
		if t.timer != nil {
			t.timer.Stop()
			t.timer = nil
		}
	}
}

func (t *Trigger) fire(gen uint64) {
	t.mu.Lock()
	if t.closed || t.ready || !t.visible || gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.ready = true
	t.timer = nil
	close(t.done)
	t.mu.Unlock()

	t.cbMu.Lock()
	defer t.cbMu.Unlock()
	if t.onReady == nil || t.isClosed() {
		return
	}
	t.onReady()
}

func (t *Trigger) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Ready reports whether the dwell completed.
func (t *Trigger) Ready() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ready
}

// Visible reports whether the last observation was at or above the threshold.
func (t *Trigger) Visible() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.visible
}

// Done is closed when the trigger becomes ready. It is never closed if the
// trigger is closed first.
func (t *Trigger) Done() <-chan struct{} {
	return t.done
}

// Close stops observing and cancels any pending dwell. Once Close returns,
// onReady will not run.
func (t *Trigger) Close() {
	t.mu.Lock()
	if !t.closed {
		t.closed = true
		t.gen++
		if t.timer != nil {
			t.timer.Stop()
			t.timer = nil
		}
	}
	t.mu.Unlock()

	// wait out a callback already in flight
	t.cbMu.Lock()
	t.cbMu.Unlock() //nolint:staticcheck // empty critical section is a barrier
}

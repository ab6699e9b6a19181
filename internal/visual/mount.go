package visual

import (
	"context"
	"sync"

	"github.com/thisis/placesguard/internal/dwell"
)

var closedChan = func() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Mount binds one place card to a dwell trigger. The remote upgrade
// starts once the trigger is ready and is abandoned when the mount closes.
type Mount struct {
	cancel  context.CancelFunc
	trigger *dwell.Trigger
	done    chan struct{}

	mu      sync.Mutex
	closed  bool
	current Resolution
	outcome Outcome
}

// Mount renders Initial(req) through onChange immediately and later
// delivers the upgraded resolution, if any. A nil trigger upgrades at
// once. onChange is never called after
// Close returns and must not call Close itself.
func (r *Resolver) Mount(ctx context.Context, req Request, trigger *dwell.Trigger, onChange func(Resolution)) *Mount {
	ctx, cancel := context.WithCancel(ctx)
	m := &Mount{
		cancel:  cancel,
		trigger: trigger,
		done:    make(chan struct{}),
		current: r.Initial(req),
	}
	if onChange == nil {
		onChange = func(Resolution) {}
	}
	onChange(m.current)

	if !Eligible(req) {
		m.outcome = Ineligible
		close(m.done)
		return m
	}

	ready := closedChan
	if trigger != nil {
		ready = trigger.Done()
	}

	go func() {
		defer close(m.done)
		select {
		case <-ready:
		case <-ctx.Done():
			m.finish(Cancelled, nil, nil)
			return
		}

		res, outcome := r.Upgrade(ctx, req)
		if outcome != Upgraded {
			m.finish(outcome, nil, nil)
			return
		}
		m.finish(outcome, &res, onChange)
	}()
	return m
}

func (m *Mount) finish(outcome Outcome, res *Resolution, onChange func(Resolution)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		m.outcome = Cancelled
		return
	}
	m.outcome = outcome
	if res != nil {
		m.current = *res
		onChange(*res)
	}
}

// Current returns the resolution being displayed.
func (m *Mount) Current() Resolution {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Outcome returns how the upgrade ended, or "" while it is still pending.
func (m *Mount) Outcome() Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcome
}

// Done is closed once no further onChange calls can happen.
func (m *Mount) Done() <-chan struct{} {
	return m.done
}

// Close unmounts the card: the trigger stops, any in-flight request is
// cancelled and onChange will not be called again. A provider request that
// already returned its photo URI is billed even if Close wins the race with
// delivery; the outcome then reads Cancelled and the photo is not shown.
func (m *Mount) Close() {
	m.cancel()
	if m.trigger != nil {
		m.trigger.Close()
	}
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

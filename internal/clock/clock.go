// Package clock abstracts wall time and one-shot timers so the sampler,
// the Pomodoro countdown and the write-back debouncer can be driven by a
// deterministic fake in tests and by the event loop in the daemon.
package clock

import (
	"sync"
	"time"
)

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	// Stop prevents the callback from running. It returns false if the
	// callback already ran or the timer was already stopped.
	Stop() bool
}

// Clock reads the current time and schedules callbacks.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Real is the wall clock.
type Real struct{}

// Now returns time.Now().
func (Real) Now() time.Time { return time.Now() }

// AfterFunc schedules f on its own goroutine after d.
func (Real) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Every calls f once per period until stop is called. The next tick is
// armed before f runs so the cadence does not drift by f's runtime.
// Calling stop more than once is a no-op.
func Every(c Clock, period time.Duration, f func()) (stop func()) {
	t := &ticker{clock: c, period: period, f: f}
	t.mu.Lock()
	t.arm()
	t.mu.Unlock()
	return t.stop
}

type ticker struct {
	mu      sync.Mutex
	clock   Clock
	period  time.Duration
	f       func()
	timer   Timer
	stopped bool
}

// arm must be called with mu held.
func (t *ticker) arm() {
	t.timer = t.clock.AfterFunc(t.period, t.fire)
}

func (t *ticker) fire() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.arm()
	t.mu.Unlock()
	t.f()
}

func (t *ticker) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
	}
}

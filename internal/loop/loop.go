// Package loop runs every state-mutating handler of the daemon on one
// goroutine. Timer callbacks, HTTP commands, browser events and overlay
// actions are all posted here, so each handler observes the counter cache,
// the session cursor and the Pomodoro state without interleaving.
package loop

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/will/internal/clock"
)

// ErrStopped is returned when posting to a loop that is no longer running.
var ErrStopped = errors.New("event loop stopped")

// Loop is a single-goroutine task queue.
type Loop struct {
	tasks chan func()
	done  chan struct{}
	base  clock.Clock
	log   *zap.Logger
}

// New creates a loop whose timers are backed by base.
func New(base clock.Clock, log *zap.Logger) *Loop {
	return &Loop{
		tasks: make(chan func(), 64),
		done:  make(chan struct{}),
		base:  base,
		log:   log,
	}
}

// Run executes posted tasks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return nil
		case task := <-l.tasks:
			l.run(task)
		}
	}
}

// run isolates a panicking handler so one bad event does not stop the daemon.
func (l *Loop) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("handler panicked", zap.Any("panic", r))
		}
	}()
	task()
}

// Post queues f and returns immediately. It reports false if the loop has stopped.
func (l *Loop) Post(f func()) bool {
	select {
	case l.tasks <- f:
		return true
	case <-l.done:
		return false
	}
}

// Do runs f on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, f func()) error {
	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		f()
	}

	select {
	case l.tasks <- task:
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		// The loop may exit right after running our task
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Clock returns a clock whose callbacks execute on the loop.
func (l *Loop) Clock() clock.Clock {
	return loopClock{l: l}
}

type loopClock struct {
	l *Loop
}

func (c loopClock) Now() time.Time {
	return c.l.base.Now()
}

func (c loopClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	return c.l.base.AfterFunc(d, func() {
		c.l.Post(f)
	})
}

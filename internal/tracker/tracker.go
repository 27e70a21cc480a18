// Package tracker samples the active tab and attributes dwell time to the
// distracting host the user is on.
//
// A Tracker is owned by the event loop. Tick must not run concurrently with
// itself or with mutations of the counter store.
package tracker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/will/internal/browser"
	"github.com/hpungsan/will/internal/clock"
	"github.com/hpungsan/will/internal/domains"
)

// Tabs reports the active tab of the focused window.
type Tabs interface {
	ActiveTab(ctx context.Context) (browser.Tab, bool, error)
}

// Toggle reports whether tracking is enabled.
type Toggle interface {
	TrackingEnabled(ctx context.Context) (bool, error)
}

// Counters is the slice of the counter store the tracker mutates.
type Counters interface {
	Increment(host string, deltaMs int64)
	ClearAll()
}

// Checker raises alerts for a host whose counter just grew.
type Checker interface {
	Check(ctx context.Context, host string) int
}

// Cursor is the transient session position. The zero value is empty.
type Cursor struct {
	Hostname  string    `json:"hostname,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
}

// Empty reports whether no session is open.
func (c Cursor) Empty() bool { return c.Hostname == "" }

// Tracker is the dwell sampler.
type Tracker struct {
	tabs       Tabs
	toggle     Toggle
	classifier *domains.Classifier
	counters   Counters
	checker    Checker
	clock      clock.Clock
	log        *zap.Logger

	cursor Cursor
}

// New creates a tracker with an empty cursor.
func New(tabs Tabs, toggle Toggle, classifier *domains.Classifier, counters Counters, checker Checker, c clock.Clock, log *zap.Logger) *Tracker {
	return &Tracker{
		tabs:       tabs,
		toggle:     toggle,
		classifier: classifier,
		counters:   counters,
		checker:    checker,
		clock:      c,
		log:        log,
	}
}

// Cursor returns the current session position.
func (t *Tracker) Cursor() Cursor {
	return t.cursor
}

// Reset empties the cursor without touching any counter.
func (t *Tracker) Reset() {
	t.cursor = Cursor{}
}

// Start samples once per period until the returned stop function is called.
// Each sample is bounded by one period.
func (t *Tracker) Start(ctx context.Context, period time.Duration) (stop func()) {
	return clock.Every(t.clock, period, func() {
		tickCtx, cancel := context.WithTimeout(ctx, period)
		defer cancel()
		t.Tick(tickCtx)
	})
}

// Tick takes one sample.
func (t *Tracker) Tick(ctx context.Context) {
	enabled, err := t.toggle.TrackingEnabled(ctx)
	if err != nil {
		t.log.Warn("read tracking toggle", zap.Error(err))
	}
	if err != nil || !enabled {
		t.Reset()
		return
	}

	tab, ok, err := t.tabs.ActiveTab(ctx)
	if err != nil {
		t.log.Debug("active tab unavailable", zap.Error(err))
	}
	if err != nil || !ok || domains.IsInternal(tab.URL) {
		t.Reset()
		return
	}

	c := t.classifier.Classify(tab.URL)
	if !c.IsDistracting {
		if !t.cursor.Empty() {
			t.counters.ClearAll()
			t.log.Debug("left distracting site", zap.String("host", t.cursor.Hostname))
		}
		t.Reset()
		return
	}

	now := t.clock.Now()
	host := c.Hostname

	if t.cursor.Empty() {
		t.cursor = Cursor{Hostname: host, StartedAt: now}
		return
	}

	prev := t.cursor.Hostname
	t.counters.Increment(prev, elapsedMs(t.cursor.StartedAt, now))
	t.cursor = Cursor{Hostname: host, StartedAt: now}
	t.checker.Check(ctx, prev)
}

func elapsedMs(from, to time.Time) int64 {
	if d := to.Sub(from); d > 0 {
		return d.Milliseconds()
	}
	return 0
}

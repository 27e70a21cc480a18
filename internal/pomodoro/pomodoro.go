// Package pomodoro is the focus/break countdown that decides whether
// distraction blocking is active.
//
// A Timer is owned by the event loop; its clock must deliver callbacks there.
package pomodoro

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/will/internal/clock"
	"github.com/hpungsan/will/internal/hub"
	"github.com/hpungsan/will/internal/notify"
)

// Mode is a phase of the cycle.
type Mode string

const (
	ModeFocus      Mode = "focus"
	ModeShortBreak Mode = "shortBreak"
	ModeLongBreak  Mode = "longBreak"
)

// Durations are the nominal phase lengths.
type Durations struct {
	Focus          time.Duration
	ShortBreak     time.Duration
	LongBreak      time.Duration
	LongBreakEvery int
}

// DefaultDurations is 25/5/15 minutes with a long break after every fourth focus.
func DefaultDurations() Durations {
	return Durations{
		Focus:          25 * time.Minute,
		ShortBreak:     5 * time.Minute,
		LongBreak:      15 * time.Minute,
		LongBreakEvery: 4,
	}
}

func (d Durations) seconds(m Mode) int {
	switch m {
	case ModeShortBreak:
		return int(d.ShortBreak / time.Second)
	case ModeLongBreak:
		return int(d.LongBreak / time.Second)
	default:
		return int(d.Focus / time.Second)
	}
}

// State is a snapshot of the timer.
type State struct {
	Enabled                bool `json:"enabled"`
	Mode                   Mode `json:"mode"`
	RemainingTime          int  `json:"remainingTime"`
	TotalTime              int  `json:"totalTime"`
	FocusSessionsCompleted int  `json:"focusSessionsCompleted"`
}

// Tick is broadcast every second while running, and after stop and reset.
type Tick struct {
	RemainingTime int `json:"remainingTime"`
	TotalTime     int `json:"totalTime"`
}

// Complete is broadcast when a phase runs out.
type Complete struct {
	NextMode      Mode `json:"nextMode"`
	RemainingTime int  `json:"remainingTime"`
	TotalTime     int  `json:"totalTime"`
}

// Broadcaster pushes events to connected clients.
type Broadcaster interface {
	Broadcast(e hub.Event)
}

// Flags persists the timer's running and focus-blocking flags.
type Flags interface {
	SetPomodoroEnabled(ctx context.Context, enabled bool) error
	SetFocusModeEnabled(ctx context.Context, enabled bool) error
}

// Hooks are called on transitions that affect open tabs.
type Hooks struct {
	// FocusStarted runs after start enters a focus phase.
	FocusStarted func(ctx context.Context)
	// Stopped runs after stop and reset.
	Stopped func(ctx context.Context)
}

// Timer is the Pomodoro state machine.
type Timer struct {
	durations Durations
	clock     clock.Clock
	flags     Flags
	events    Broadcaster
	sink      notify.Sink
	hooks     Hooks
	log       *zap.Logger

	state    State
	stopTick func()
	gen      uint64
}

// New creates a stopped timer at the start of a focus phase.
func New(d Durations, c clock.Clock, flags Flags, events Broadcaster, sink notify.Sink, hooks Hooks, log *zap.Logger) *Timer {
	if d.LongBreakEvery <= 0 {
		d.LongBreakEvery = DefaultDurations().LongBreakEvery
	}
	return &Timer{
		durations: d,
		clock:     c,
		flags:     flags,
		events:    events,
		sink:      sink,
		hooks:     hooks,
		log:       log,
		state: State{
			Mode:          ModeFocus,
			RemainingTime: d.seconds(ModeFocus),
		},
	}
}

// State returns a snapshot.
func (t *Timer) State() State {
	s := t.state
	s.TotalTime = t.durations.seconds(s.Mode)
	return s
}

// FocusActive reports whether focus blocking applies right now.
func (t *Timer) FocusActive() bool {
	return t.state.Enabled && t.state.Mode == ModeFocus
}

// Start runs the countdown, resuming the current phase where it stopped.
func (t *Timer) Start(ctx context.Context) State {
	if t.state.RemainingTime <= 0 {
		t.state.RemainingTime = t.durations.seconds(t.state.Mode)
	}
	t.state.Enabled = true

	focus := t.state.Mode == ModeFocus
	t.persist(ctx, true, focus)

	t.halt()
	t.gen++
	gen := t.gen
	t.stopTick = clock.Every(t.clock, time.Second, func() { t.tick(gen) })

	if focus && t.hooks.FocusStarted != nil {
		t.hooks.FocusStarted(ctx)
	}
	t.log.Info("pomodoro started",
		zap.String("mode", string(t.state.Mode)),
		zap.Int("remaining", t.state.RemainingTime),
	)
	return t.State()
}

// Stop pauses the countdown and leaves the remaining time untouched.
// Stopping a stopped timer changes nothing.
func (t *Timer) Stop(ctx context.Context) State {
	t.pause(ctx)
	t.broadcastTick()
	return t.State()
}

// Reset stops and returns to a fresh focus phase with no completed sessions.
func (t *Timer) Reset(ctx context.Context) State {
	t.pause(ctx)
	t.state.Mode = ModeFocus
	t.state.RemainingTime = t.durations.seconds(ModeFocus)
	t.state.FocusSessionsCompleted = 0
	t.broadcastTick()
	return t.State()
}

func (t *Timer) pause(ctx context.Context) {
	t.state.Enabled = false
	t.halt()
	t.persist(ctx, false, false)
	if t.hooks.Stopped != nil {
		t.hooks.Stopped(ctx)
	}
}

// halt cancels the countdown. A tick already queued for an older run sees a
// stale generation and does nothing.
func (t *Timer) halt() {
	if t.stopTick != nil {
		t.stopTick()
		t.stopTick = nil
	}
	t.gen++
}

func (t *Timer) tick(gen uint64) {
	if gen != t.gen || !t.state.Enabled {
		return
	}
	t.state.RemainingTime--
	t.broadcastTick()
	if t.state.RemainingTime > 0 {
		return
	}
	t.complete()
}

func (t *Timer) complete() {
	ctx := context.Background()
	t.halt()
	t.state.Enabled = false
	t.persist(ctx, false, false)

	finished := t.state.Mode
	if finished == ModeFocus {
		t.state.FocusSessionsCompleted++
	}
	next := t.nextMode(finished)

	title, body := completionText(finished, next)
	t.sink.Notify(ctx, notify.New(notify.KindPomodoro, title, body, t.clock.Now()))

	t.state.Mode = next
	t.state.RemainingTime = t.durations.seconds(next)
	t.events.Broadcast(hub.Event{Type: hub.EventComplete, Data: Complete{
		NextMode:      next,
		RemainingTime: t.state.RemainingTime,
		TotalTime:     t.state.RemainingTime,
	}, At: t.clock.Now()})

	t.log.Info("pomodoro phase complete",
		zap.String("finished", string(finished)),
		zap.String("next", string(next)),
		zap.Int("focus_sessions", t.state.FocusSessionsCompleted),
	)
}

func (t *Timer) nextMode(finished Mode) Mode {
	if finished != ModeFocus {
		return ModeFocus
	}
	if t.state.FocusSessionsCompleted%t.durations.LongBreakEvery == 0 {
		return ModeLongBreak
	}
	return ModeShortBreak
}

func completionText(finished, next Mode) (title, body string) {
	if finished != ModeFocus {
		return "Break Time Over!", `Ready for another focus session? Click "Start" when you want to begin.`
	}
	kind := "short"
	if next == ModeLongBreak {
		kind = "long"
	}
	return "Focus Session Complete!", "Time for a " + kind + ` break! Click "Start" when you're ready.`
}

func (t *Timer) broadcastTick() {
	t.events.Broadcast(hub.Event{Type: hub.EventTick, Data: Tick{
		RemainingTime: t.state.RemainingTime,
		TotalTime:     t.durations.seconds(t.state.Mode),
	}, At: t.clock.Now()})
}

// persist mirrors the flags to storage. Failures are logged; the in-memory
// state stays authoritative.
func (t *Timer) persist(ctx context.Context, enabled, focus bool) {
	if err := t.flags.SetPomodoroEnabled(ctx, enabled); err != nil {
		t.log.Warn("persist pomodoro flag", zap.Error(err))
	}
	if err := t.flags.SetFocusModeEnabled(ctx, focus); err != nil {
		t.log.Warn("persist focus flag", zap.Error(err))
	}
}

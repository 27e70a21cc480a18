package pomodoro

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/hpungsan/will/internal/clock"
	"github.com/hpungsan/will/internal/hub"
	"github.com/hpungsan/will/internal/notify"
)

type recordingEvents struct {
	events []hub.Event
}

func (r *recordingEvents) Broadcast(e hub.Event) { r.events = append(r.events, e) }

func (r *recordingEvents) ofType(typ string) []hub.Event {
	var out []hub.Event
	for _, e := range r.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

type memFlags struct {
	pomodoro, focus bool
}

func (f *memFlags) SetPomodoroEnabled(_ context.Context, v bool) error { f.pomodoro = v; return nil }
func (f *memFlags) SetFocusModeEnabled(_ context.Context, v bool) error {
	f.focus = v
	return nil
}

type harness struct {
	timer        *Timer
	clock        *clock.Fake
	events       *recordingEvents
	flags        *memFlags
	alerts       *notify.Recorder
	focusStarted int
	stopped      int
}

func setup(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:  clock.NewFake(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)),
		events: &recordingEvents{},
		flags:  &memFlags{},
		alerts: &notify.Recorder{},
	}
	hooks := Hooks{
		FocusStarted: func(context.Context) { h.focusStarted++ },
		Stopped:      func(context.Context) { h.stopped++ },
	}
	h.timer = New(DefaultDurations(), h.clock, h.flags, h.events, h.alerts, hooks, zaptest.NewLogger(t))
	return h
}

func (h *harness) seconds(n int) {
	for i := 0; i < n; i++ {
		h.clock.Advance(time.Second)
	}
}

func TestInitialState(t *testing.T) {
	h := setup(t)
	s := h.timer.State()
	require.Equal(t, State{Mode: ModeFocus, RemainingTime: 1500, TotalTime: 1500}, s)
	require.False(t, h.timer.FocusActive())
}

func TestFullFocusSessionGoesToShortBreak(t *testing.T) {
	ctx := context.Background()
	h := setup(t)
	h.timer.state.RemainingTime = 0

	s := h.timer.Start(ctx)
	require.Equal(t, 1500, s.RemainingTime)
	require.True(t, s.Enabled)
	require.True(t, h.timer.FocusActive())
	require.True(t, h.flags.pomodoro)
	require.True(t, h.flags.focus)
	require.Equal(t, 1, h.focusStarted)

	h.seconds(1499)
	require.Equal(t, 1, h.timer.State().RemainingTime)
	require.True(t, h.timer.State().Enabled)

	h.seconds(1)
	s = h.timer.State()
	require.Equal(t, ModeShortBreak, s.Mode)
	require.Equal(t, 300, s.RemainingTime)
	require.Equal(t, 1, s.FocusSessionsCompleted)
	require.False(t, s.Enabled, "next phase does not auto-start")
	require.False(t, h.flags.pomodoro)
	require.Zero(t, h.clock.Pending(), "countdown stopped")

	ticks := h.events.ofType(hub.EventTick)
	require.Len(t, ticks, 1500)
	require.Equal(t, Tick{RemainingTime: 1499, TotalTime: 1500}, ticks[0].Data)
	require.Equal(t, Tick{RemainingTime: 0, TotalTime: 1500}, ticks[1499].Data)

	completes := h.events.ofType(hub.EventComplete)
	require.Len(t, completes, 1)
	require.Equal(t, Complete{NextMode: ModeShortBreak, RemainingTime: 300, TotalTime: 300}, completes[0].Data)

	require.Len(t, h.alerts.Items, 1)
	require.Equal(t, "Focus Session Complete!", h.alerts.Items[0].Title)
	require.Contains(t, h.alerts.Items[0].Body, "short break")
	require.Equal(t, notify.KindPomodoro, h.alerts.Items[0].Kind)
}

func TestFourthFocusSessionGoesToLongBreak(t *testing.T) {
	ctx := context.Background()
	h := setup(t)

	var modes []Mode
	for i := 0; i < 4; i++ {
		require.Equal(t, ModeFocus, h.timer.State().Mode)
		h.timer.Start(ctx)
		h.seconds(1500)
		modes = append(modes, h.timer.State().Mode)

		if i < 3 {
			h.timer.Start(ctx)
			h.seconds(300)
		}
	}

	require.Equal(t, []Mode{ModeShortBreak, ModeShortBreak, ModeShortBreak, ModeLongBreak}, modes)
	require.Equal(t, 900, h.timer.State().RemainingTime)
	require.Equal(t, 4, h.timer.State().FocusSessionsCompleted)
	require.Contains(t, h.alerts.Items[len(h.alerts.Items)-1].Body, "long break")

	// A finished break goes back to focus
	h.timer.Start(ctx)
	require.False(t, h.timer.FocusActive(), "breaks never block")
	require.False(t, h.flags.focus)
	h.seconds(900)
	require.Equal(t, ModeFocus, h.timer.State().Mode)
	require.Equal(t, "Break Time Over!", h.alerts.Items[len(h.alerts.Items)-1].Title)
}

func TestStopIsResumableAndIdempotent(t *testing.T) {
	ctx := context.Background()
	h := setup(t)

	h.timer.Start(ctx)
	h.seconds(100)

	once := h.timer.Stop(ctx)
	twice := h.timer.Stop(ctx)
	require.Equal(t, once, twice)
	require.False(t, once.Enabled)
	require.Equal(t, 1400, once.RemainingTime)
	require.False(t, h.flags.pomodoro)
	require.False(t, h.flags.focus)
	require.Equal(t, 2, h.stopped)

	h.seconds(60)
	require.Equal(t, 1400, h.timer.State().RemainingTime, "no ticks after stop")

	s := h.timer.Start(ctx)
	require.Equal(t, 1400, s.RemainingTime, "start resumes")
	h.seconds(1)
	require.Equal(t, 1399, h.timer.State().RemainingTime)
}

func TestStaleTickIsIgnored(t *testing.T) {
	ctx := context.Background()
	h := setup(t)

	h.timer.Start(ctx)
	gen := h.timer.gen
	h.timer.Stop(ctx)
	h.timer.Start(ctx)

	// A tick from the first run that was already queued when stop ran
	h.timer.tick(gen)
	require.Equal(t, 1500, h.timer.State().RemainingTime)
}

func TestRestartDoesNotDoubleTick(t *testing.T) {
	ctx := context.Background()
	h := setup(t)

	h.timer.Start(ctx)
	h.timer.Start(ctx)
	h.seconds(10)
	require.Equal(t, 1490, h.timer.State().RemainingTime)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	h := setup(t)

	h.timer.Start(ctx)
	h.seconds(1500)
	h.timer.Start(ctx)
	h.seconds(20)
	before := len(h.events.events)

	s := h.timer.Reset(ctx)
	require.Equal(t, State{Mode: ModeFocus, RemainingTime: 1500, TotalTime: 1500}, s)
	require.Zero(t, h.clock.Pending())

	require.Len(t, h.events.events, before+1, "one update per reset")
	last := h.events.events[before]
	require.Equal(t, hub.EventTick, last.Type)
	require.Equal(t, Tick{RemainingTime: 1500, TotalTime: 1500}, last.Data)
}

func TestCustomDurations(t *testing.T) {
	ctx := context.Background()
	h := setup(t)
	h.timer = New(Durations{Focus: 3 * time.Second, ShortBreak: time.Second, LongBreak: 2 * time.Second, LongBreakEvery: 2},
		h.clock, h.flags, h.events, h.alerts, Hooks{}, zaptest.NewLogger(t))

	h.timer.Start(ctx)
	h.seconds(3)
	require.Equal(t, ModeShortBreak, h.timer.State().Mode)
	h.timer.Start(ctx)
	h.seconds(1)
	h.timer.Start(ctx)
	h.seconds(3)
	require.Equal(t, ModeLongBreak, h.timer.State().Mode)
	require.Equal(t, 2, h.timer.State().RemainingTime)
}

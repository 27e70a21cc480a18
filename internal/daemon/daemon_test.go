package daemon

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/hpungsan/will/internal/api"
	"github.com/hpungsan/will/internal/browser"
	"github.com/hpungsan/will/internal/clock"
	"github.com/hpungsan/will/internal/config"
	"github.com/hpungsan/will/internal/db"
	"github.com/hpungsan/will/internal/errors"
	"github.com/hpungsan/will/internal/pomodoro"
	"github.com/hpungsan/will/internal/settings"
)

type fakeBrowser struct {
	mu       sync.Mutex
	tabs     []browser.Tab
	applied  []string
	cleared  []string
	created  []string
	onAction func(browser.OverlayAction)
}

func (f *fakeBrowser) ActiveTab(context.Context) (browser.Tab, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tabs {
		if t.Active {
			return t, true, nil
		}
	}
	return browser.Tab{}, false, nil
}

func (f *fakeBrowser) ListTabs(context.Context) ([]browser.Tab, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]browser.Tab(nil), f.tabs...), nil
}

func (f *fakeBrowser) Activate(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tabs {
		f.tabs[i].Active = f.tabs[i].ID == id
	}
	return nil
}

func (f *fakeBrowser) Create(_ context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, url)
	return "created", nil
}

func (f *fakeBrowser) ApplyOverlay(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, id)
	return nil
}

func (f *fakeBrowser) ClearOverlay(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, id)
	return nil
}

func (f *fakeBrowser) Connect(context.Context) error { return nil }
func (f *fakeBrowser) Connected() bool               { return true }
func (f *fakeBrowser) Close() error                  { return nil }

func (f *fakeBrowser) WatchNavigation(ctx context.Context, _ func(tabID, url string)) error {
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeBrowser) OnOverlayAction(fn func(browser.OverlayAction)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onAction = fn
}

func (f *fakeBrowser) press(a browser.OverlayAction) {
	f.mu.Lock()
	fn := f.onAction
	f.mu.Unlock()
	fn(a)
}

func (f *fakeBrowser) snapshot() (applied, cleared, created []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.applied...), append([]string(nil), f.cleared...), append([]string(nil), f.created...)
}

var epoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type harness struct {
	d       *Daemon
	clock   *clock.Fake
	browser *fakeBrowser
	ctx     context.Context
}

func setup(t *testing.T, tabs ...browser.Tab) *harness {
	t.Helper()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	h := &harness{
		clock:   clock.NewFake(epoch),
		browser: &fakeBrowser{tabs: tabs},
	}
	h.d, err = New(config.DefaultConfig(), database, zaptest.NewLogger(t),
		WithClock(h.clock), WithBrowser(h.browser))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	h.ctx = ctx
	require.NoError(t, h.d.init(ctx))
	h.d.attach(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.d.loop.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		h.d.shutdown()
	})
	return h
}

// sync waits until everything already posted to the loop has run.
func (h *harness) sync(t *testing.T) {
	t.Helper()
	require.NoError(t, h.d.loop.Do(h.ctx, func() {}))
}

func (h *harness) advance(t *testing.T, d time.Duration) {
	t.Helper()
	h.clock.Advance(d)
	h.sync(t)
}

func TestInitInstallsDefaults(t *testing.T) {
	h := setup(t)

	tracking, err := h.d.Tracking(h.ctx)
	require.NoError(t, err)
	require.False(t, tracking.Enabled)

	res, err := h.d.Dispatch(h.ctx, api.Message{Action: api.ActionGetPomodoroState})
	require.NoError(t, err)
	st := res.(pomodoro.State)
	require.False(t, st.Enabled)
	require.Equal(t, pomodoro.ModeFocus, st.Mode)
	require.Equal(t, 1500, st.RemainingTime)
}

func TestStartPomodoroBlocksOpenDistractingTabs(t *testing.T) {
	h := setup(t,
		browser.Tab{ID: "t1", URL: "https://www.youtube.com/watch?v=1"},
		browser.Tab{ID: "t2", URL: "https://github.com/"},
		browser.Tab{ID: "t3", URL: "chrome://settings"},
	)

	res, err := h.d.Dispatch(h.ctx, api.Message{Action: api.ActionStartPomodoro})
	require.NoError(t, err)
	require.True(t, res.(pomodoro.State).Enabled)

	st, err := h.d.Status(h.ctx)
	require.NoError(t, err)
	require.True(t, st.PomodoroEnabled)
	require.True(t, st.FocusMode)

	applied, _, _ := h.browser.snapshot()
	require.Equal(t, []string{"t1"}, applied)

	h.advance(t, time.Second)
	res, err = h.d.Dispatch(h.ctx, api.Message{Action: api.ActionGetPomodoroState})
	require.NoError(t, err)
	require.Equal(t, 1499, res.(pomodoro.State).RemainingTime)

	res, err = h.d.Dispatch(h.ctx, api.Message{Action: api.ActionStopPomodoro})
	require.NoError(t, err)
	require.False(t, res.(pomodoro.State).Enabled)

	_, cleared, _ := h.browser.snapshot()
	require.ElementsMatch(t, []string{"t1", "t2"}, cleared)
}

func TestToggleTracking(t *testing.T) {
	h := setup(t)

	_, err := h.d.Dispatch(h.ctx, api.Message{Action: api.ActionToggleAntiProcrastination})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	on, off := true, false
	res, err := h.d.Dispatch(h.ctx, api.Message{Action: api.ActionToggleAntiProcrastination, Enabled: &on})
	require.NoError(t, err)
	require.Equal(t, api.Tracking{Enabled: true}, res)

	tracking, err := h.d.Tracking(h.ctx)
	require.NoError(t, err)
	require.True(t, tracking.Enabled)

	res, err = h.d.Dispatch(h.ctx, api.Message{Action: api.ActionToggleAntiProcrastination, Enabled: &off})
	require.NoError(t, err)
	require.Equal(t, api.Tracking{Enabled: false}, res)

	tracking, err = h.d.Tracking(h.ctx)
	require.NoError(t, err)
	require.False(t, tracking.Enabled)
}

func TestUnknownActionIgnored(t *testing.T) {
	h := setup(t)

	res, err := h.d.Dispatch(h.ctx, api.Message{Action: "openOptionsPage"})
	require.NoError(t, err)
	require.Nil(t, res)
}

func TestDwellTracking(t *testing.T) {
	h := setup(t, browser.Tab{ID: "t1", URL: "https://www.reddit.com/r/golang", Active: true})
	on := true
	_, err := h.d.Dispatch(h.ctx, api.Message{Action: api.ActionToggleAntiProcrastination, Enabled: &on})
	require.NoError(t, err)

	require.NoError(t, h.d.loop.Do(h.ctx, func() {
		h.d.stopSampler = h.d.tracker.Start(h.ctx, 6*time.Second)
	}))
	for range 3 {
		h.advance(t, 6*time.Second)
	}

	timers, err := h.d.Timers(h.ctx)
	require.NoError(t, err)
	require.Len(t, timers.Timers, 1)
	require.Equal(t, "reddit.com", timers.Timers[0].Host)
	require.EqualValues(t, 12000, timers.Timers[0].ElapsedMs)
	require.NotNil(t, timers.Current)
	require.Equal(t, "reddit.com", timers.Current.Hostname)

	st, err := h.d.Status(h.ctx)
	require.NoError(t, err)
	require.Equal(t, 1, st.TrackedSites)
	require.True(t, st.BrowserConnected)
}

func TestGrantFromOverlay(t *testing.T) {
	h := setup(t)
	url := "https://www.youtube.com/watch?v=1"

	h.browser.press(browser.OverlayAction{TabID: "t1", Action: browser.ActionGrant, URL: url})
	h.sync(t)

	grant, err := h.d.settings.Grant(h.ctx)
	require.NoError(t, err)
	require.Equal(t, &settings.Grant{URL: url, ExpiresAt: epoch.Add(5 * time.Minute).UnixMilli()}, grant)

	_, cleared, _ := h.browser.snapshot()
	require.Equal(t, []string{"t1"}, cleared)

	st, err := h.d.Status(h.ctx)
	require.NoError(t, err)
	require.NotNil(t, st.Grant)
	require.Len(t, st.Alarms, 1)

	h.advance(t, 5*time.Minute)

	alarms, err := h.d.Alarms(h.ctx)
	require.NoError(t, err)
	require.Empty(t, alarms)

	st, err = h.d.Status(h.ctx)
	require.NoError(t, err)
	require.Equal(t, url, st.Grant.URL)

	h.advance(t, time.Millisecond)
	st, err = h.d.Status(h.ctx)
	require.NoError(t, err)
	require.Nil(t, st.Grant)
}

func TestCreateFiveMinuteTimerRequiresURL(t *testing.T) {
	h := setup(t)

	_, err := h.d.Dispatch(h.ctx, api.Message{Action: api.ActionCreateFiveMinuteTimer})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestBackToFocusOpensFallback(t *testing.T) {
	h := setup(t, browser.Tab{ID: "t1", URL: "https://youtube.com/", Active: true})

	h.browser.press(browser.OverlayAction{TabID: "t1", Action: browser.ActionBackToFocus})
	h.sync(t)

	_, _, created := h.browser.snapshot()
	require.Equal(t, []string{"https://google.com"}, created)
}

func TestWebsocketMessagesReachDispatcher(t *testing.T) {
	h := setup(t)
	srv := httptest.NewServer(h.d.hub)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(api.Message{Action: api.ActionStartPomodoro}))

	require.Eventually(t, func() bool {
		res, err := h.d.Dispatch(h.ctx, api.Message{Action: api.ActionGetPomodoroState})
		return err == nil && res.(pomodoro.State).Enabled
	}, 2*time.Second, 10*time.Millisecond)
}

// Package daemon wires the components together and runs them on one event
// loop next to the HTTP surface and the browser connection.
package daemon

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/will/internal/alarms"
	"github.com/hpungsan/will/internal/api"
	"github.com/hpungsan/will/internal/browser"
	"github.com/hpungsan/will/internal/clock"
	"github.com/hpungsan/will/internal/config"
	"github.com/hpungsan/will/internal/db"
	"github.com/hpungsan/will/internal/domains"
	"github.com/hpungsan/will/internal/gate"
	"github.com/hpungsan/will/internal/hub"
	"github.com/hpungsan/will/internal/loop"
	"github.com/hpungsan/will/internal/messages"
	"github.com/hpungsan/will/internal/notify"
	"github.com/hpungsan/will/internal/pomodoro"
	"github.com/hpungsan/will/internal/settings"
	"github.com/hpungsan/will/internal/threshold"
	"github.com/hpungsan/will/internal/timers"
	"github.com/hpungsan/will/internal/tracker"
	"github.com/hpungsan/will/internal/web"
)

const browserRetry = 5 * time.Second

// Browser is everything the daemon needs from the browser connection.
type Browser interface {
	tracker.Tabs
	gate.Tabs
	Connect(ctx context.Context) error
	Connected() bool
	Close() error
	WatchNavigation(ctx context.Context, fn func(tabID, url string)) error
	OnOverlayAction(fn func(browser.OverlayAction))
}

// Option customizes a Daemon.
type Option func(*options)

type options struct {
	clock   clock.Clock
	browser Browser
}

// WithClock replaces the wall clock. Tests pass a fake.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithBrowser replaces the DevTools browser.
func WithBrowser(b Browser) Option {
	return func(o *options) { o.browser = b }
}

// Daemon owns every component.
type Daemon struct {
	cfg *config.Config
	db  *sql.DB
	log *zap.Logger

	loop       *loop.Loop
	settings   *settings.Settings
	classifier *domains.Classifier
	store      *timers.Store
	hub        *hub.Hub
	browser    Browser
	alarms     *alarms.Scheduler
	timer      *pomodoro.Timer
	gate       *gate.Gate
	tracker    *tracker.Tracker

	stopSampler func()
}

// New builds the daemon. Static configuration (domain lists and the
// threshold table) is loaded here, once.
func New(cfg *config.Config, database *sql.DB, log *zap.Logger, opts ...Option) (*Daemon, error) {
	o := options{clock: clock.Real{}}
	for _, opt := range opts {
		opt(&o)
	}

	classifier, err := domains.Load(cfg.DomainsFile)
	if err != nil {
		return nil, fmt.Errorf("load domain lists: %w", err)
	}
	table, err := messages.Load(cfg.MessagesFile)
	if err != nil {
		return nil, fmt.Errorf("load threshold messages: %w", err)
	}

	if o.browser == nil {
		o.browser = browser.New(browser.Options{
			DebuggerURL: cfg.DebuggerURL,
			Launch:      cfg.Launch,
			Headless:    cfg.Headless,
		}, log.Named("browser"))
	}

	d := &Daemon{
		cfg:        cfg,
		db:         database,
		log:        log,
		loop:       loop.New(o.clock, log.Named("loop")),
		settings:   settings.New(db.NewKV(database)),
		classifier: classifier,
		hub:        hub.New(log.Named("hub")),
		browser:    o.browser,
	}
	lc := d.loop.Clock()

	sink := notify.Multi{notify.LogSink{Log: log.Named("notify")}, d.hub}

	d.store = timers.New(d.settings, lc, cfg.FlushDebounce(), log.Named("timers"))
	d.alarms = alarms.New(database, lc, sink, log.Named("alarms"))
	d.timer = pomodoro.New(pomodoro.Durations{
		Focus:          time.Duration(cfg.FocusMinutes) * time.Minute,
		ShortBreak:     time.Duration(cfg.ShortBreakMinutes) * time.Minute,
		LongBreak:      time.Duration(cfg.LongBreakMinutes) * time.Minute,
		LongBreakEvery: cfg.LongBreakEvery,
	}, lc, d.settings, d.hub, sink, pomodoro.Hooks{
		FocusStarted: d.onFocusStarted,
		Stopped:      d.onStopped,
	}, log.Named("pomodoro"))
	d.gate = gate.New(d.browser, d.timer, d.settings, d.alarms, classifier, lc, gate.Config{
		GrantDuration: cfg.GrantDuration(),
		FallbackURL:   cfg.FallbackURL,
	}, log.Named("gate"))
	notifier := threshold.New(d.store, table, sink, lc, log.Named("threshold"))
	d.tracker = tracker.New(d.browser, d.settings, classifier, d.store, notifier, lc, log.Named("tracker"))

	return d, nil
}

// Run serves until ctx is cancelled or a component fails, then flushes the
// counters and releases the browser.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.init(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	d.attach(gctx)

	srv := web.NewServer(d, d.hub, d.cfg.Bind, d.cfg.Port, d.log.Named("web"))

	g.Go(func() error { return d.loop.Run(gctx) })
	g.Go(func() error { return web.Serve(gctx, srv, d.log.Named("web")) })
	g.Go(func() error {
		d.superviseBrowser(gctx)
		return nil
	})
	d.loop.Post(func() {
		d.stopSampler = d.tracker.Start(gctx, d.cfg.SampleInterval())
	})

	err := g.Wait()
	d.shutdown()
	return err
}

// init prepares durable state. It runs before the loop starts, so it may
// touch loop-owned components directly.
func (d *Daemon) init(ctx context.Context) error {
	if installed, err := d.settings.InstallDefaults(ctx); err != nil {
		return fmt.Errorf("install defaults: %w", err)
	} else if installed {
		d.log.Info("installed default settings")
	}
	if err := d.settings.ResetTransient(ctx); err != nil {
		return fmt.Errorf("reset pomodoro flags: %w", err)
	}
	if err := d.store.Hydrate(ctx); err != nil {
		d.log.Warn("starting with empty site timers", zap.Error(err))
	}
	n, err := d.alarms.Restore(ctx)
	if err != nil {
		return fmt.Errorf("restore alarms: %w", err)
	}
	d.log.Info("daemon initialized",
		zap.Int("site_timers", len(d.store.Hosts())),
		zap.Int("alarms", n),
	)
	return nil
}

// attach routes browser and websocket input into the loop.
func (d *Daemon) attach(ctx context.Context) {
	d.browser.OnOverlayAction(func(a browser.OverlayAction) {
		d.loop.Post(func() { d.handleOverlay(ctx, a) })
	})
	d.hub.OnMessage(func(data []byte) {
		var m api.Message
		if err := json.Unmarshal(data, &m); err != nil {
			d.log.Debug("ignoring malformed message", zap.Error(err))
			return
		}
		d.loop.Post(func() {
			if _, err := d.dispatch(ctx, m); err != nil {
				d.log.Warn("message failed", zap.String("action", m.Action), zap.Error(err))
			}
		})
	})
}

func (d *Daemon) superviseBrowser(ctx context.Context) {
	for {
		if err := d.browser.Connect(ctx); err != nil {
			d.log.Warn("browser unavailable", zap.Error(err), zap.Duration("retry_in", browserRetry))
		} else {
			err := d.browser.WatchNavigation(ctx, func(tabID, url string) {
				d.loop.Post(func() { d.onNavigation(ctx, tabID, url) })
			})
			if ctx.Err() != nil {
				return
			}
			d.log.Warn("browser connection lost", zap.Error(err))
			_ = d.browser.Close()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(browserRetry):
		}
	}
}

func (d *Daemon) shutdown() {
	if d.stopSampler != nil {
		d.stopSampler()
	}
	d.alarms.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.store.Flush(ctx); err != nil {
		d.log.Error("final site timer flush", zap.Error(err))
	}
	d.hub.Close()
	if err := d.browser.Close(); err != nil {
		d.log.Debug("close browser", zap.Error(err))
	}
}

func (d *Daemon) onNavigation(ctx context.Context, tabID, url string) {
	if _, err := d.gate.HandleNavigation(ctx, tabID, url); err != nil {
		d.log.Debug("navigation gate", zap.String("tab", tabID), zap.Error(err))
	}
}

func (d *Daemon) handleOverlay(ctx context.Context, a browser.OverlayAction) {
	var m api.Message
	switch a.Action {
	case browser.ActionGrant:
		m = api.Message{Action: api.ActionCreateFiveMinuteTimer, URL: a.URL, TabID: a.TabID}
	case browser.ActionBackToFocus:
		m = api.Message{Action: api.ActionBackToFocus}
	default:
		d.log.Debug("ignoring overlay action", zap.String("action", a.Action))
		return
	}
	if _, err := d.dispatch(ctx, m); err != nil {
		d.log.Warn("overlay action failed", zap.String("action", a.Action), zap.Error(err))
	}
}

func (d *Daemon) onFocusStarted(ctx context.Context) {
	n, err := d.gate.ReevaluateAll(ctx)
	if err != nil {
		d.log.Debug("re-evaluate tabs", zap.Error(err))
	}
	d.log.Debug("focus started", zap.Int("overlays", n))
}

func (d *Daemon) onStopped(ctx context.Context) {
	if err := d.gate.ClearAll(ctx); err != nil {
		d.log.Debug("clear overlays", zap.Error(err))
	}
}

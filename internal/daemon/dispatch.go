package daemon

import (
	"context"
	stderrors "errors"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/will/internal/api"
	"github.com/hpungsan/will/internal/db"
	"github.com/hpungsan/will/internal/domains"
	"github.com/hpungsan/will/internal/errors"
	"github.com/hpungsan/will/internal/hub"
)

// Dispatch handles one runtime message on the loop. Unknown actions are
// ignored and yield a nil result.
func (d *Daemon) Dispatch(ctx context.Context, m api.Message) (any, error) {
	var (
		res any
		err error
	)
	if doErr := d.loop.Do(ctx, func() { res, err = d.dispatch(ctx, m) }); doErr != nil {
		return nil, errors.NewInternal(doErr)
	}
	return res, err
}

// dispatch must run on the loop.
func (d *Daemon) dispatch(ctx context.Context, m api.Message) (any, error) {
	switch m.Action {
	case api.ActionGetPomodoroState:
		return d.timer.State(), nil
	case api.ActionStartPomodoro:
		return d.timer.Start(ctx), nil
	case api.ActionStopPomodoro:
		return d.timer.Stop(ctx), nil
	case api.ActionResetPomodoro:
		return d.timer.Reset(ctx), nil

	case api.ActionToggleAntiProcrastination:
		if m.Enabled == nil {
			return nil, errors.NewInvalidRequest("enabled is required")
		}
		return d.setTracking(ctx, *m.Enabled)

	case api.ActionCreateFiveMinuteTimer:
		if strings.TrimSpace(m.URL) == "" {
			return nil, errors.NewInvalidRequest("url is required")
		}
		g, err := d.gate.GrantTemporaryAccess(ctx, m.TabID, m.URL)
		if err != nil {
			return nil, asWillError(err)
		}
		return g, nil

	case api.ActionBackToFocus:
		id, err := d.gate.BackToFocus(ctx)
		if err != nil {
			return nil, asWillError(err)
		}
		return api.Focus{TabID: id}, nil

	default:
		d.log.Debug("ignoring message", zap.String("action", m.Action))
		return nil, nil
	}
}

func (d *Daemon) setTracking(ctx context.Context, enabled bool) (api.Tracking, error) {
	if err := d.settings.SetTrackingEnabled(ctx, enabled); err != nil {
		return api.Tracking{}, asWillError(err)
	}
	if !enabled {
		d.tracker.Reset()
	}
	t := api.Tracking{Enabled: enabled}
	d.hub.Broadcast(hub.Event{Type: hub.EventTracking, Data: t, At: d.loop.Clock().Now()})
	return t, nil
}

// Tracking reports the distraction-tracking toggle.
func (d *Daemon) Tracking(ctx context.Context) (api.Tracking, error) {
	enabled, err := d.settings.TrackingEnabled(ctx)
	if err != nil {
		return api.Tracking{}, asWillError(err)
	}
	return api.Tracking{Enabled: enabled}, nil
}

// Timers lists the site timers and the host currently being sampled.
func (d *Daemon) Timers(ctx context.Context) (api.Timers, error) {
	var out api.Timers
	err := d.loop.Do(ctx, func() {
		out.Timers = api.SiteTimers(d.store.Snapshot())
		if c := d.tracker.Cursor(); !c.Empty() {
			out.Current = &c
		}
	})
	if err != nil {
		return api.Timers{}, errors.NewInternal(err)
	}
	return out, nil
}

// Alarms lists pending reminders.
func (d *Daemon) Alarms(ctx context.Context) ([]db.Alarm, error) {
	alarms, err := d.alarms.Pending(ctx)
	if err != nil {
		return nil, asWillError(err)
	}
	return alarms, nil
}

// Status summarizes the daemon.
func (d *Daemon) Status(ctx context.Context) (api.Status, error) {
	var st api.Status
	err := d.loop.Do(ctx, func() {
		st.Pomodoro = d.timer.State()
		st.TrackedSites = len(d.store.Hosts())
	})
	if err != nil {
		return api.Status{}, errors.NewInternal(err)
	}

	tracking, err := d.Tracking(ctx)
	if err != nil {
		return api.Status{}, err
	}
	st.Tracking = tracking.Enabled

	if st.PomodoroEnabled, err = d.settings.PomodoroEnabled(ctx); err != nil {
		return api.Status{}, asWillError(err)
	}
	if st.FocusMode, err = d.settings.FocusModeEnabled(ctx); err != nil {
		return api.Status{}, asWillError(err)
	}

	grant, err := d.settings.Grant(ctx)
	if err != nil {
		return api.Status{}, asWillError(err)
	}
	if grant != nil && grant.Allows(grant.URL, d.loop.Clock().Now()) {
		st.Grant = grant
	}

	if st.Alarms, err = d.Alarms(ctx); err != nil {
		return api.Status{}, err
	}
	st.BrowserConnected = d.browser.Connected()
	st.Clients = d.hub.Clients()
	return st, nil
}

// Classify reports how url is categorized.
func (d *Daemon) Classify(url string) domains.Classification {
	return d.classifier.Classify(url)
}

func asWillError(err error) error {
	if err == nil {
		return nil
	}
	var we *errors.WillError
	if stderrors.As(err, &we) {
		return we
	}
	return errors.NewInternal(err)
}

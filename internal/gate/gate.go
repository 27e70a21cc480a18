// Package gate decides whether a page gets the focus overlay and carries
// out the overlay's two actions.
package gate

import (
	"context"
	stderrors "errors"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/will/internal/alarms"
	"github.com/hpungsan/will/internal/browser"
	"github.com/hpungsan/will/internal/clock"
	"github.com/hpungsan/will/internal/db"
	"github.com/hpungsan/will/internal/domains"
	"github.com/hpungsan/will/internal/settings"
)

// Tabs is the browser surface the gate drives.
type Tabs interface {
	ListTabs(ctx context.Context) ([]browser.Tab, error)
	Activate(ctx context.Context, id string) error
	Create(ctx context.Context, url string) (string, error)
	ApplyOverlay(ctx context.Context, id string) error
	ClearOverlay(ctx context.Context, id string) error
}

// Focus reports whether focus blocking is active.
type Focus interface {
	FocusActive() bool
}

// Grants stores the single temporary access grant.
type Grants interface {
	Grant(ctx context.Context) (*settings.Grant, error)
	SetGrant(ctx context.Context, g settings.Grant) error
}

// Reminders schedules the alarm that accompanies a grant.
type Reminders interface {
	Schedule(ctx context.Context, name, url string, at time.Time) (*db.Alarm, error)
}

// Config holds the gate's tunables.
type Config struct {
	GrantDuration time.Duration
	FallbackURL   string
}

// Gate is the navigation gate.
type Gate struct {
	tabs       Tabs
	focus      Focus
	grants     Grants
	reminders  Reminders
	classifier *domains.Classifier
	clock      clock.Clock
	cfg        Config
	log        *zap.Logger
}

// New creates a gate.
func New(tabs Tabs, focus Focus, grants Grants, reminders Reminders, classifier *domains.Classifier, c clock.Clock, cfg Config, log *zap.Logger) *Gate {
	return &Gate{
		tabs:       tabs,
		focus:      focus,
		grants:     grants,
		reminders:  reminders,
		classifier: classifier,
		clock:      c,
		cfg:        cfg,
		log:        log,
	}
}

// HandleNavigation overlays tabID when focus blocking is active, url is
// distracting and no live grant covers exactly url. It reports whether the
// overlay was requested.
func (g *Gate) HandleNavigation(ctx context.Context, tabID, url string) (bool, error) {
	if domains.IsInternal(url) || !g.focus.FocusActive() {
		return false, nil
	}

	grant, err := g.grants.Grant(ctx)
	if err != nil {
		g.log.Warn("read temporary access", zap.Error(err))
	}
	if grant.Allows(url, g.clock.Now()) {
		return false, nil
	}
	if !g.classifier.IsDistracting(url) {
		return false, nil
	}

	if err := g.tabs.ApplyOverlay(ctx, tabID); err != nil {
		return false, err
	}
	g.log.Debug("overlay applied", zap.String("tab", tabID), zap.String("url", url))
	return true, nil
}

// ReevaluateAll runs HandleNavigation over every open tab. It is called when
// a focus phase starts so pages opened earlier are blocked too.
func (g *Gate) ReevaluateAll(ctx context.Context) (int, error) {
	tabs, err := g.tabs.ListTabs(ctx)
	if err != nil {
		return 0, err
	}
	applied := 0
	var errs []error
	for _, t := range tabs {
		ok, err := g.HandleNavigation(ctx, t.ID, t.URL)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			applied++
		}
	}
	return applied, stderrors.Join(errs...)
}

// ClearAll removes the overlay from every open tab.
func (g *Gate) ClearAll(ctx context.Context) error {
	tabs, err := g.tabs.ListTabs(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, t := range tabs {
		if domains.IsInternal(t.URL) {
			continue
		}
		if err := g.tabs.ClearOverlay(ctx, t.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// GrantTemporaryAccess unblocks exactly url for the grant duration, replacing
// any earlier grant, and schedules a reminder for when it runs out. When
// tabID is set the overlay on that tab is removed.
func (g *Gate) GrantTemporaryAccess(ctx context.Context, tabID, url string) (settings.Grant, error) {
	expires := g.clock.Now().Add(g.cfg.GrantDuration)
	grant := settings.Grant{URL: url, ExpiresAt: expires.UnixMilli()}
	if err := g.grants.SetGrant(ctx, grant); err != nil {
		return settings.Grant{}, err
	}
	if _, err := g.reminders.Schedule(ctx, alarms.NameGrantExpired, url, expires); err != nil {
		g.log.Warn("schedule grant reminder", zap.Error(err))
	}
	if tabID != "" {
		if err := g.tabs.ClearOverlay(ctx, tabID); err != nil {
			g.log.Debug("clear overlay after grant", zap.String("tab", tabID), zap.Error(err))
		}
	}
	return grant, nil
}

// BackToFocus switches to the most recently used productive tab, or opens
// the fallback page when none is open. It returns the tab that ends up in front.
func (g *Gate) BackToFocus(ctx context.Context) (string, error) {
	tabs, err := g.tabs.ListTabs(ctx)
	if err != nil {
		g.log.Debug("list tabs for refocus", zap.Error(err))
		tabs = nil
	}
	browser.SortByLastAccessed(tabs)

	for _, t := range tabs {
		if !g.classifier.IsProductive(t.URL) {
			continue
		}
		if !t.Active {
			if err := g.tabs.Activate(ctx, t.ID); err != nil {
				return "", err
			}
		}
		return t.ID, nil
	}
	return g.tabs.Create(ctx, g.cfg.FallbackURL)
}

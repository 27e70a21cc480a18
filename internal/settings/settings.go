// Package settings gives typed access to the top-level durable keys shared
// by the tracker, the Pomodoro timer and the navigation gate.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Durable keys.
const (
	KeyTracking        = "antiProcrastinationEnabled"
	KeyPomodoroEnabled = "pomodoroEnabled"
	KeyFocusMode       = "focusModeEnabled"
	KeyTemporaryAccess = "temporaryAccess"
	KeySiteTimers      = "siteTimers"
)

// KV is raw key-value persistence. *db.KV implements it.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Grant is the single-slot temporary access grant. ExpiresAt is unix ms.
type Grant struct {
	URL       string `json:"url"`
	ExpiresAt int64  `json:"expiresAt"`
}

// Allows reports whether the grant covers exactly url at now.
func (g *Grant) Allows(url string, now time.Time) bool {
	if g == nil {
		return false
	}
	return g.URL == url && g.ExpiresAt >= now.UnixMilli()
}

// Settings reads and writes the durable keys.
type Settings struct {
	kv KV
}

// New wraps kv.
func New(kv KV) *Settings {
	return &Settings{kv: kv}
}

// InstallDefaults writes the initial value of every key that has never been
// stored. It reports whether anything was written.
func (s *Settings) InstallDefaults(ctx context.Context) (bool, error) {
	defaults := []struct {
		key   string
		value string
	}{
		{KeyTracking, "false"},
		{KeyPomodoroEnabled, "false"},
		{KeyFocusMode, "false"},
		{KeyTemporaryAccess, "null"},
		{KeySiteTimers, "{}"},
	}

	wrote := false
	for _, d := range defaults {
		_, ok, err := s.kv.Get(ctx, d.key)
		if err != nil {
			return wrote, err
		}
		if ok {
			continue
		}
		if err := s.kv.Put(ctx, d.key, []byte(d.value)); err != nil {
			return wrote, err
		}
		wrote = true
	}
	return wrote, nil
}

// ResetTransient clears the flags that mirror in-memory Pomodoro state.
// Pomodoro state does not survive a restart, so neither may its flags.
func (s *Settings) ResetTransient(ctx context.Context) error {
	if err := s.SetPomodoroEnabled(ctx, false); err != nil {
		return err
	}
	return s.SetFocusModeEnabled(ctx, false)
}

// TrackingEnabled reports whether distraction tracking is on.
func (s *Settings) TrackingEnabled(ctx context.Context) (bool, error) {
	return s.getBool(ctx, KeyTracking)
}

// SetTrackingEnabled turns distraction tracking on or off.
func (s *Settings) SetTrackingEnabled(ctx context.Context, enabled bool) error {
	return s.putJSON(ctx, KeyTracking, enabled)
}

// PomodoroEnabled reports the persisted running flag of the Pomodoro timer.
func (s *Settings) PomodoroEnabled(ctx context.Context) (bool, error) {
	return s.getBool(ctx, KeyPomodoroEnabled)
}

// SetPomodoroEnabled persists the running flag of the Pomodoro timer.
func (s *Settings) SetPomodoroEnabled(ctx context.Context, enabled bool) error {
	return s.putJSON(ctx, KeyPomodoroEnabled, enabled)
}

// FocusModeEnabled reports the persisted focus-blocking flag.
func (s *Settings) FocusModeEnabled(ctx context.Context) (bool, error) {
	return s.getBool(ctx, KeyFocusMode)
}

// SetFocusModeEnabled persists the focus-blocking flag.
func (s *Settings) SetFocusModeEnabled(ctx context.Context, enabled bool) error {
	return s.putJSON(ctx, KeyFocusMode, enabled)
}

// Grant returns the stored grant, or nil when there is none.
func (s *Settings) Grant(ctx context.Context) (*Grant, error) {
	data, ok, err := s.kv.Get(ctx, KeyTemporaryAccess)
	if err != nil || !ok {
		return nil, err
	}
	var g *Grant
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("decode %s: %w", KeyTemporaryAccess, err)
	}
	return g, nil
}

// SetGrant replaces the single grant slot.
func (s *Settings) SetGrant(ctx context.Context, g Grant) error {
	return s.putJSON(ctx, KeyTemporaryAccess, g)
}

// SiteTimers returns the raw site timer blob.
func (s *Settings) SiteTimers(ctx context.Context) ([]byte, bool, error) {
	return s.kv.Get(ctx, KeySiteTimers)
}

// PutSiteTimers replaces the site timer blob.
func (s *Settings) PutSiteTimers(ctx context.Context, blob []byte) error {
	return s.kv.Put(ctx, KeySiteTimers, blob)
}

func (s *Settings) getBool(ctx context.Context, key string) (bool, error) {
	data, ok, err := s.kv.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	var v bool
	if err := json.Unmarshal(data, &v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, nil
}

func (s *Settings) putJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.kv.Put(ctx, key, data)
}

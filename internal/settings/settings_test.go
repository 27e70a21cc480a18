package settings

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/will/internal/db"
)

func setup(t *testing.T) (*Settings, *db.KV) {
	t.Helper()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	kv := db.NewKV(database)
	return New(kv), kv
}

func TestInstallDefaults(t *testing.T) {
	ctx := context.Background()
	s, kv := setup(t)

	wrote, err := s.InstallDefaults(ctx)
	require.NoError(t, err)
	require.True(t, wrote)

	for key, want := range map[string]string{
		KeyTracking:        "false",
		KeyPomodoroEnabled: "false",
		KeyFocusMode:       "false",
		KeyTemporaryAccess: "null",
		KeySiteTimers:      "{}",
	} {
		got, ok, err := kv.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, ok, key)
		require.JSONEq(t, want, string(got), key)
	}

	// Existing values survive a second install
	require.NoError(t, s.SetTrackingEnabled(ctx, true))
	wrote, err = s.InstallDefaults(ctx)
	require.NoError(t, err)
	require.False(t, wrote)

	on, err := s.TrackingEnabled(ctx)
	require.NoError(t, err)
	require.True(t, on)
}

func TestFlags(t *testing.T) {
	ctx := context.Background()
	s, _ := setup(t)

	on, err := s.TrackingEnabled(ctx)
	require.NoError(t, err)
	require.False(t, on, "missing key reads as false")

	require.NoError(t, s.SetPomodoroEnabled(ctx, true))
	require.NoError(t, s.SetFocusModeEnabled(ctx, true))

	pomodoro, err := s.PomodoroEnabled(ctx)
	require.NoError(t, err)
	require.True(t, pomodoro)

	require.NoError(t, s.ResetTransient(ctx))
	pomodoro, err = s.PomodoroEnabled(ctx)
	require.NoError(t, err)
	require.False(t, pomodoro)
	focus, err := s.FocusModeEnabled(ctx)
	require.NoError(t, err)
	require.False(t, focus)
}

func TestGrant(t *testing.T) {
	ctx := context.Background()
	s, _ := setup(t)

	g, err := s.Grant(ctx)
	require.NoError(t, err)
	require.Nil(t, g)

	now := time.UnixMilli(1_700_000_000_000)
	require.NoError(t, s.SetGrant(ctx, Grant{URL: "https://youtube.com/watch?v=1", ExpiresAt: now.Add(5 * time.Minute).UnixMilli()}))

	g, err = s.Grant(ctx)
	require.NoError(t, err)
	require.NotNil(t, g)
	require.True(t, g.Allows("https://youtube.com/watch?v=1", now))
	require.True(t, g.Allows("https://youtube.com/watch?v=1", now.Add(5*time.Minute)))
	require.False(t, g.Allows("https://youtube.com/watch?v=1", now.Add(5*time.Minute+time.Millisecond)))
	require.False(t, g.Allows("https://youtube.com/watch?v=2", now), "grant covers exactly one url")

	var none *Grant
	require.False(t, none.Allows("https://youtube.com/watch?v=1", now))
}

func TestSiteTimersBlob(t *testing.T) {
	ctx := context.Background()
	s, _ := setup(t)

	_, ok, err := s.SiteTimers(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.PutSiteTimers(ctx, []byte(`{"reddit.com":{"elapsed_ms":6000}}`)))
	blob, ok, err := s.SiteTimers(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{"reddit.com":{"elapsed_ms":6000}}`, string(blob))
}

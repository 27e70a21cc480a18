// Package api defines the request and response shapes shared by the daemon,
// its HTTP surface, the client and the MCP tools.
package api

import (
	"sort"

	"github.com/hpungsan/will/internal/db"
	"github.com/hpungsan/will/internal/pomodoro"
	"github.com/hpungsan/will/internal/settings"
	"github.com/hpungsan/will/internal/timers"
	"github.com/hpungsan/will/internal/tracker"
)

// Message actions accepted by the dispatcher.
const (
	ActionGetPomodoroState          = "getPomodoroState"
	ActionStartPomodoro             = "startPomodoro"
	ActionStopPomodoro              = "stopPomodoro"
	ActionResetPomodoro             = "resetPomodoro"
	ActionToggleAntiProcrastination = "toggleAntiProcrastination"
	ActionCreateFiveMinuteTimer     = "createFiveMinuteTimer"
	ActionBackToFocus               = "backToFocus"
)

// Message is one runtime message from a popup or overlay.
type Message struct {
	Action  string `json:"action"`
	Enabled *bool  `json:"enabled,omitempty"`
	URL     string `json:"url,omitempty"`
	TabID   string `json:"tabId,omitempty"`
}

// Tracking is the distraction-tracking toggle.
type Tracking struct {
	Enabled bool `json:"enabled"`
}

// SiteTimer is one host's current streak.
type SiteTimer struct {
	Host      string `json:"host"`
	ElapsedMs int64  `json:"elapsed_ms"`
	Notified  []int  `json:"notified,omitempty"`
}

// Timers lists every streak plus the host being sampled right now.
type Timers struct {
	Timers  []SiteTimer     `json:"timers"`
	Current *tracker.Cursor `json:"current,omitempty"`
}

// Focus is the result of a back-to-focus request.
type Focus struct {
	TabID string `json:"tabId"`
}

// Status is a summary of the daemon.
type Status struct {
	Pomodoro         pomodoro.State  `json:"pomodoro"`
	Tracking         bool            `json:"tracking"`
	PomodoroEnabled  bool            `json:"pomodoro_enabled"`
	FocusMode        bool            `json:"focus_mode"`
	BrowserConnected bool            `json:"browser_connected"`
	Clients          int             `json:"clients"`
	TrackedSites     int             `json:"tracked_sites"`
	Grant            *settings.Grant `json:"temporary_access,omitempty"`
	Alarms           []db.Alarm      `json:"alarms"`
}

// SiteTimers flattens a counter snapshot, longest streak first.
func SiteTimers(snap map[string]timers.Entry) []SiteTimer {
	out := make([]SiteTimer, 0, len(snap))
	for host, e := range snap {
		st := SiteTimer{Host: host, ElapsedMs: e.ElapsedMs}
		for m, set := range e.Notified {
			if set {
				st.Notified = append(st.Notified, m)
			}
		}
		sort.Ints(st.Notified)
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ElapsedMs != out[j].ElapsedMs {
			return out[i].ElapsedMs > out[j].ElapsedMs
		}
		return out[i].Host < out[j].Host
	})
	return out
}

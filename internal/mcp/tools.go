package mcp

import "github.com/mark3labs/mcp-go/mcp"

var statusToolDef = mcp.NewTool("status",
	mcp.WithDescription("Summarize the will daemon: Pomodoro state, tracking toggle, browser connection, tracked sites, the active temporary access grant and pending reminders."),
)

var pomodoroStateToolDef = mcp.NewTool("pomodoro_state",
	mcp.WithDescription("Get the Pomodoro timer state: enabled, mode (focus, shortBreak, longBreak), remainingTime and totalTime in seconds, and focusSessionsCompleted."),
)

var pomodoroStartToolDef = mcp.NewTool("pomodoro_start",
	mcp.WithDescription("Start or resume the Pomodoro countdown. Starting a focus phase blocks distracting sites in open tabs."),
)

var pomodoroStopToolDef = mcp.NewTool("pomodoro_stop",
	mcp.WithDescription("Pause the Pomodoro countdown, keeping the remaining time. Removes focus overlays."),
)

var pomodoroResetToolDef = mcp.NewTool("pomodoro_reset",
	mcp.WithDescription("Reset the Pomodoro timer to a fresh 25 minute focus phase and clear the completed-session count."),
)

var trackingToggleToolDef = mcp.NewTool("tracking_toggle",
	mcp.WithDescription("Turn distraction tracking on or off. While on, time spent on distracting sites is counted and threshold alerts are raised."),
	mcp.WithBoolean("enabled",
		mcp.Required(),
		mcp.Description("true to track distracting sites, false to stop"),
	),
)

var timersListToolDef = mcp.NewTool("timers_list",
	mcp.WithDescription("List accumulated time per distracting site, longest first, with the thresholds already alerted and the site being sampled right now."),
)

var focusReturnToolDef = mcp.NewTool("focus_return",
	mcp.WithDescription("Bring the most recently used productive tab to the front, or open the fallback page when none is open."),
)

var grantAccessToolDef = mcp.NewTool("grant_access",
	mcp.WithDescription("Allow exactly one URL for a few minutes during a focus phase. A reminder fires when the time is up."),
	mcp.WithString("url",
		mcp.Required(),
		mcp.Description("Exact URL to unblock"),
	),
)

var classifyURLToolDef = mcp.NewTool("classify_url",
	mcp.WithDescription("Report whether a URL's host is on the distracting or productive list."),
	mcp.WithString("url",
		mcp.Required(),
		mcp.Description("URL to classify"),
	),
)

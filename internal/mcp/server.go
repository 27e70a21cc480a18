package mcp

import (
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/will/internal/config"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"status": {
		def:     statusToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleStatus },
	},
	"pomodoro_state": {
		def:     pomodoroStateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePomodoroState },
	},
	"pomodoro_start": {
		def:     pomodoroStartToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePomodoroStart },
	},
	"pomodoro_stop": {
		def:     pomodoroStopToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePomodoroStop },
	},
	"pomodoro_reset": {
		def:     pomodoroResetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePomodoroReset },
	},
	"tracking_toggle": {
		def:     trackingToggleToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTrackingToggle },
	},
	"timers_list": {
		def:     timersListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTimersList },
	},
	"focus_return": {
		def:     focusReturnToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFocusReturn },
	},
	"grant_access": {
		def:     grantAccessToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGrantAccess },
	},
	"classify_url": {
		def:     classifyURLToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleClassifyURL },
	},
}

// AllToolNames returns every tool name, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates an MCP server whose tools call the daemon.
// Tools listed in cfg.DisabledTools are excluded from registration.
func NewServer(d Daemon, cfg *config.Config, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"will",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(d)

	disabled := make(map[string]bool, len(cfg.DisabledTools))
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run serves the MCP tools over stdio.
func Run(d Daemon, cfg *config.Config, version string) error {
	return server.ServeStdio(NewServer(d, cfg, version))
}

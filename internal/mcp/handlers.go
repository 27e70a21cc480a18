package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/will/internal/api"
	"github.com/hpungsan/will/internal/domains"
	"github.com/hpungsan/will/internal/errors"
	"github.com/hpungsan/will/internal/pomodoro"
	"github.com/hpungsan/will/internal/settings"
)

// Daemon is the control surface the tools drive. *client.Client implements it.
type Daemon interface {
	Status(ctx context.Context) (api.Status, error)
	Pomodoro(ctx context.Context) (pomodoro.State, error)
	StartPomodoro(ctx context.Context) (pomodoro.State, error)
	StopPomodoro(ctx context.Context) (pomodoro.State, error)
	ResetPomodoro(ctx context.Context) (pomodoro.State, error)
	SetTracking(ctx context.Context, enabled bool) (api.Tracking, error)
	Timers(ctx context.Context) (api.Timers, error)
	BackToFocus(ctx context.Context) (api.Focus, error)
	Grant(ctx context.Context, url string) (settings.Grant, error)
	Classify(ctx context.Context, url string) (domains.Classification, error)
}

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	daemon Daemon
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(d Daemon) *Handlers {
	return &Handlers{daemon: d}
}

// TrackingRequest represents the arguments for tracking_toggle.
type TrackingRequest struct {
	Enabled *bool `json:"enabled"`
}

// URLRequest represents the arguments for tools taking a single URL.
type URLRequest struct {
	URL string `json:"url"`
}

// HandleStatus handles the status tool call.
func (h *Handlers) HandleStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return result(h.daemon.Status(ctx))
}

// HandlePomodoroState handles the pomodoro_state tool call.
func (h *Handlers) HandlePomodoroState(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return result(h.daemon.Pomodoro(ctx))
}

// HandlePomodoroStart handles the pomodoro_start tool call.
func (h *Handlers) HandlePomodoroStart(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return result(h.daemon.StartPomodoro(ctx))
}

// HandlePomodoroStop handles the pomodoro_stop tool call.
func (h *Handlers) HandlePomodoroStop(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return result(h.daemon.StopPomodoro(ctx))
}

// HandlePomodoroReset handles the pomodoro_reset tool call.
func (h *Handlers) HandlePomodoroReset(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return result(h.daemon.ResetPomodoro(ctx))
}

// HandleTrackingToggle handles the tracking_toggle tool call.
func (h *Handlers) HandleTrackingToggle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TrackingRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Enabled == nil {
		return errorResult(errors.NewInvalidRequest("enabled is required")), nil
	}
	return result(h.daemon.SetTracking(ctx, *input.Enabled))
}

// HandleTimersList handles the timers_list tool call.
func (h *Handlers) HandleTimersList(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return result(h.daemon.Timers(ctx))
}

// HandleFocusReturn handles the focus_return tool call.
func (h *Handlers) HandleFocusReturn(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return result(h.daemon.BackToFocus(ctx))
}

// HandleGrantAccess handles the grant_access tool call.
func (h *Handlers) HandleGrantAccess(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, errRes := requireURL(req)
	if errRes != nil {
		return errRes, nil
	}
	return result(h.daemon.Grant(ctx, url))
}

// HandleClassifyURL handles the classify_url tool call.
func (h *Handlers) HandleClassifyURL(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, errRes := requireURL(req)
	if errRes != nil {
		return errRes, nil
	}
	return result(h.daemon.Classify(ctx, url))
}

func requireURL(req mcp.CallToolRequest) (string, *mcp.CallToolResult) {
	input, err := decode[URLRequest](req)
	if err != nil {
		return "", errorResult(errors.NewInvalidRequest(err.Error()))
	}
	url := strings.TrimSpace(input.URL)
	if url == "" {
		return "", errorResult(errors.NewInvalidRequest("url is required"))
	}
	return url, nil
}

// Result helpers

// result turns a daemon call into a tool result.
func result[T any](data T, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(data)
}

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if wErr, ok := err.(*errors.WillError); ok {
		errorObj := map[string]any{
			"code":    wErr.Code,
			"message": wErr.Message,
			"status":  wErr.Status,
		}
		if wErr.Code != errors.ErrInternal && wErr.Details != nil {
			errorObj["details"] = wErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}

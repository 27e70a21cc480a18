// Package client talks to a running daemon over its control API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hpungsan/will/internal/api"
	"github.com/hpungsan/will/internal/db"
	"github.com/hpungsan/will/internal/domains"
	"github.com/hpungsan/will/internal/errors"
	"github.com/hpungsan/will/internal/pomodoro"
	"github.com/hpungsan/will/internal/settings"
	"github.com/hpungsan/will/internal/web"
)

const defaultTimeout = 10 * time.Second

// Client is an HTTP client for the daemon.
type Client struct {
	base string
	http *http.Client
}

// New returns a client for the daemon at base, e.g. "http://127.0.0.1:7717".
func New(base string) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: defaultTimeout},
	}
}

// Addr builds the base URL for a bind address and port.
func Addr(bind string, port int) string {
	if bind == "" || bind == "0.0.0.0" || bind == "::" {
		bind = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", bind, port)
}

// Status returns the daemon summary.
func (c *Client) Status(ctx context.Context) (api.Status, error) {
	var st api.Status
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &st)
	return st, err
}

// Pomodoro returns the timer state.
func (c *Client) Pomodoro(ctx context.Context) (pomodoro.State, error) {
	var st pomodoro.State
	err := c.do(ctx, http.MethodGet, "/api/pomodoro", nil, &st)
	return st, err
}

// StartPomodoro starts or resumes the timer.
func (c *Client) StartPomodoro(ctx context.Context) (pomodoro.State, error) {
	return c.pomodoroAction(ctx, "start")
}

// StopPomodoro pauses the timer.
func (c *Client) StopPomodoro(ctx context.Context) (pomodoro.State, error) {
	return c.pomodoroAction(ctx, "stop")
}

// ResetPomodoro returns the timer to a fresh focus phase.
func (c *Client) ResetPomodoro(ctx context.Context) (pomodoro.State, error) {
	return c.pomodoroAction(ctx, "reset")
}

func (c *Client) pomodoroAction(ctx context.Context, action string) (pomodoro.State, error) {
	var st pomodoro.State
	err := c.do(ctx, http.MethodPost, "/api/pomodoro/"+action, nil, &st)
	return st, err
}

// Tracking reports the distraction-tracking toggle.
func (c *Client) Tracking(ctx context.Context) (api.Tracking, error) {
	var t api.Tracking
	err := c.do(ctx, http.MethodGet, "/api/tracking", nil, &t)
	return t, err
}

// SetTracking turns distraction tracking on or off.
func (c *Client) SetTracking(ctx context.Context, enabled bool) (api.Tracking, error) {
	var t api.Tracking
	err := c.do(ctx, http.MethodPut, "/api/tracking", api.Tracking{Enabled: enabled}, &t)
	return t, err
}

// Timers lists the site timers.
func (c *Client) Timers(ctx context.Context) (api.Timers, error) {
	var t api.Timers
	err := c.do(ctx, http.MethodGet, "/api/timers", nil, &t)
	return t, err
}

// Alarms lists pending reminders.
func (c *Client) Alarms(ctx context.Context) ([]db.Alarm, error) {
	var out struct {
		Alarms []db.Alarm `json:"alarms"`
	}
	err := c.do(ctx, http.MethodGet, "/api/alarms", nil, &out)
	return out.Alarms, err
}

// Classify asks the daemon how rawURL is categorized.
func (c *Client) Classify(ctx context.Context, rawURL string) (domains.Classification, error) {
	var cl domains.Classification
	err := c.do(ctx, http.MethodGet, "/api/classify?url="+url.QueryEscape(rawURL), nil, &cl)
	return cl, err
}

// Grant unblocks exactly rawURL for the configured grant duration.
func (c *Client) Grant(ctx context.Context, rawURL string) (settings.Grant, error) {
	var g settings.Grant
	err := c.Send(ctx, api.Message{Action: api.ActionCreateFiveMinuteTimer, URL: rawURL}, &g)
	return g, err
}

// BackToFocus brings a productive tab to the front.
func (c *Client) BackToFocus(ctx context.Context) (api.Focus, error) {
	var f api.Focus
	err := c.Send(ctx, api.Message{Action: api.ActionBackToFocus}, &f)
	return f, err
}

// Send posts a raw runtime message. out may be nil; it is left untouched
// when the daemon ignores the message.
func (c *Client) Send(ctx context.Context, m api.Message, out any) error {
	return c.do(ctx, http.MethodPost, "/api/message", m, out)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errors.NewInternal(err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return errors.NewInternal(err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.NewDaemonUnavailable(strings.TrimPrefix(c.base, "http://"), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if resp.StatusCode == http.StatusNoContent || out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.NewInternal(fmt.Errorf("decode %s response: %w", path, err))
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var body web.ErrorBody
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &body); err != nil || body.Error.Code == "" {
		return &errors.WillError{
			Code:    errors.ErrInternal,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("unexpected response %s", resp.Status),
		}
	}
	return &errors.WillError{
		Code:    errors.ErrorCode(body.Error.Code),
		Status:  body.Error.Status,
		Message: body.Error.Message,
	}
}

package web

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/will/internal/api"
	"github.com/hpungsan/will/internal/db"
	"github.com/hpungsan/will/internal/domains"
	"github.com/hpungsan/will/internal/errors"
)

// Service is the daemon surface the handlers expose.
type Service interface {
	Dispatch(ctx context.Context, m api.Message) (any, error)
	Status(ctx context.Context) (api.Status, error)
	Tracking(ctx context.Context) (api.Tracking, error)
	Timers(ctx context.Context) (api.Timers, error)
	Alarms(ctx context.Context) ([]db.Alarm, error)
	Classify(url string) domains.Classification
}

// Handlers contains the HTTP route handlers for the control API.
type Handlers struct {
	svc Service
	log *zap.Logger
}

var pomodoroActions = map[string]string{
	"start": api.ActionStartPomodoro,
	"stop":  api.ActionStopPomodoro,
	"reset": api.ActionResetPomodoro,
}

// HandleStatus handles GET /api/status.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Status(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, st)
}

// HandlePomodoro handles GET /api/pomodoro.
func (h *Handlers) HandlePomodoro(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, api.Message{Action: api.ActionGetPomodoroState})
}

// HandlePomodoroAction handles POST /api/pomodoro/{start,stop,reset}.
func (h *Handlers) HandlePomodoroAction(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("action")
	action, ok := pomodoroActions[name]
	if !ok {
		renderError(w, errors.NewUnknownAction(name))
		return
	}
	h.dispatch(w, r, api.Message{Action: action})
}

// HandleTracking handles GET /api/tracking.
func (h *Handlers) HandleTracking(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Tracking(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, t)
}

// HandleSetTracking handles PUT /api/tracking with {"enabled": bool}.
func (h *Handlers) HandleSetTracking(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		renderError(w, err)
		return
	}
	h.dispatch(w, r, api.Message{Action: api.ActionToggleAntiProcrastination, Enabled: body.Enabled})
}

// HandleTimers handles GET /api/timers.
func (h *Handlers) HandleTimers(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Timers(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, t)
}

// HandleAlarms handles GET /api/alarms.
func (h *Handlers) HandleAlarms(w http.ResponseWriter, r *http.Request) {
	alarms, err := h.svc.Alarms(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]any{"alarms": alarms})
}

// HandleMessage handles POST /api/message, the runtime message endpoint.
// Unknown actions produce 204 No Content.
func (h *Handlers) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var m api.Message
	if err := decodeBody(w, r, &m); err != nil {
		renderError(w, err)
		return
	}
	h.dispatch(w, r, m)
}

// HandleClassify handles GET /api/classify?url=.
func (h *Handlers) HandleClassify(w http.ResponseWriter, r *http.Request) {
	url := strings.TrimSpace(r.URL.Query().Get("url"))
	if url == "" {
		renderError(w, errors.NewInvalidRequest("url is required"))
		return
	}
	renderJSON(w, http.StatusOK, h.svc.Classify(url))
}

func (h *Handlers) dispatch(w http.ResponseWriter, r *http.Request, m api.Message) {
	res, err := h.svc.Dispatch(r.Context(), m)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if res == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	renderJSON(w, http.StatusOK, res)
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	var wErr *errors.WillError
	if !stderrors.As(err, &wErr) || wErr.Code == errors.ErrInternal {
		h.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	renderError(w, err)
}

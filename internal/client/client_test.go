package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/will/internal/api"
	"github.com/hpungsan/will/internal/errors"
	"github.com/hpungsan/will/internal/pomodoro"
)

func TestAddr(t *testing.T) {
	require.Equal(t, "http://127.0.0.1:7717", Addr("127.0.0.1", 7717))
	require.Equal(t, "http://127.0.0.1:9000", Addr("0.0.0.0", 9000))
	require.Equal(t, "http://localhost:1", Addr("localhost", 1))
}

func TestStartPomodoro(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/pomodoro/start", r.URL.Path)
		_ = json.NewEncoder(w).Encode(pomodoro.State{Enabled: true, Mode: pomodoro.ModeFocus, RemainingTime: 1500, TotalTime: 1500})
	}))
	defer srv.Close()

	st, err := New(srv.URL).StartPomodoro(context.Background())
	require.NoError(t, err)
	require.True(t, st.Enabled)
	require.Equal(t, 1500, st.RemainingTime)
}

func TestSetTrackingSendsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		var body api.Tracking
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(t, body.Enabled)
		_ = json.NewEncoder(w).Encode(body)
	}))
	defer srv.Close()

	got, err := New(srv.URL).SetTracking(context.Background(), true)
	require.NoError(t, err)
	require.True(t, got.Enabled)
}

func TestClassifyEscapesURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "https://youtube.com/watch?v=1&t=2", r.URL.Query().Get("url"))
		_, _ = w.Write([]byte(`{"hostname":"youtube.com","is_distracting":true}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL).Classify(context.Background(), "https://youtube.com/watch?v=1&t=2")
	require.NoError(t, err)
	require.True(t, c.IsDistracting)
}

func TestSendNoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	var out api.Focus
	err := New(srv.URL).Send(context.Background(), api.Message{Action: "somethingElse"}, &out)
	require.NoError(t, err)
	require.Empty(t, out.TabID)
}

func TestErrorEnvelopeDecoded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"code":"BROWSER_UNAVAILABLE","message":"browser unavailable","status":503}}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).BackToFocus(context.Background())
	require.True(t, errors.Is(err, errors.ErrBrowserUnavailable))
}

func TestNonJSONErrorIsInternal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Status(context.Background())
	require.True(t, errors.Is(err, errors.ErrInternal))
	require.Equal(t, http.StatusBadGateway, err.(*errors.WillError).Status)
}

func TestDaemonUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	_, err := New(base).Pomodoro(context.Background())
	require.True(t, errors.Is(err, errors.ErrDaemonUnavailable))
}

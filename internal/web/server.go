package web

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// NewServer creates the HTTP server for the local control API. ws serves the
// event stream at /ws.
func NewServer(svc Service, ws http.Handler, bind string, port int, log *zap.Logger) *http.Server {
	h := &Handlers{svc: svc, log: log}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/api/status", http.StatusFound)
	})
	mux.HandleFunc("GET /api/status", h.HandleStatus)
	mux.HandleFunc("GET /api/pomodoro", h.HandlePomodoro)
	mux.HandleFunc("POST /api/pomodoro/{action}", h.HandlePomodoroAction)
	mux.HandleFunc("GET /api/tracking", h.HandleTracking)
	mux.HandleFunc("PUT /api/tracking", h.HandleSetTracking)
	mux.HandleFunc("GET /api/timers", h.HandleTimers)
	mux.HandleFunc("GET /api/alarms", h.HandleAlarms)
	mux.HandleFunc("POST /api/message", h.HandleMessage)
	mux.HandleFunc("GET /api/classify", h.HandleClassify)
	if ws != nil {
		mux.Handle("GET /ws", ws)
	}

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", bind, port),
		Handler:           securityHeaders(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// Serve runs srv until ctx is cancelled, then shuts it down gracefully.
func Serve(ctx context.Context, srv *http.Server, log *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Info("control API listening", zap.String("url", "http://"+srv.Addr))
	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		log.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info("shutting down control API")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

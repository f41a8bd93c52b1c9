// Package httpapi exposes linglenz over HTTP: the check-sentence correction
// contract, the class session guard, per-class ledger operations and a
// websocket stream of session events per teacher.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/linglenz/internal/lenz"
)

const maxBodyBytes = 64 << 10

// Server routes API requests to the App.
type Server struct {
	app *lenz.App
	hub *Hub
	log zerolog.Logger
	mux *http.ServeMux
}

// New creates the API server. Register must be called before the event bus
// starts so the event stream receives every event.
func New(app *lenz.App, log zerolog.Logger) *Server {
	s := &Server{
		app: app,
		hub: NewHub(app.Guard, app.Classes, app.Metrics, log),
		log: log,
		mux: http.NewServeMux(),
	}
	s.routes()
	return s
}

// Register subscribes the event stream to the bus.
func (s *Server) Register() {
	s.hub.Register(s.app.Bus)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.app.Metrics != nil {
		s.mux.Handle("GET /metrics", s.app.Metrics.Handler())
	}

	s.mux.HandleFunc("POST /v1/check-sentence", s.handleCheckSentence)

	s.mux.HandleFunc("GET /v1/teachers/{teacher}/active", s.handleActive)
	s.mux.HandleFunc("GET /v1/teachers/{teacher}/pending", s.handlePending)
	s.mux.HandleFunc("GET /v1/teachers/{teacher}/events", s.hub.ServeTeacher)

	s.mux.HandleFunc("POST /v1/sessions", s.handleStartSession)
	s.mux.HandleFunc("GET /v1/sessions/{session}", s.handleGetSession)
	s.mux.HandleFunc("POST /v1/sessions/{session}/resume", s.handleResume)
	s.mux.HandleFunc("POST /v1/sessions/{session}/end", s.handleEnd)
	s.mux.HandleFunc("POST /v1/sessions/{session}/complete", s.handleComplete)
	s.mux.HandleFunc("POST /v1/sessions/{session}/capture/start", s.handleCaptureStart)
	s.mux.HandleFunc("POST /v1/sessions/{session}/capture/stop", s.handleCaptureStop)

	s.mux.HandleFunc("GET /v1/sessions/{session}/entries", s.handleListEntries)
	s.mux.HandleFunc("POST /v1/sessions/{session}/entries", s.handleSubmitEntry)
	s.mux.HandleFunc("POST /v1/sessions/{session}/entries/{entry}/retry", s.handleRetryEntry)
	s.mux.HandleFunc("DELETE /v1/sessions/{session}/entries/{entry}", s.handleDeleteEntry)
}

// Handler returns the routed handler wrapped in middleware.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = recoverer(s.log, h)
	h = accessLog(s.log, s.app.Metrics, h)
	return h
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("http api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	s.hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}

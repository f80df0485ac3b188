// Package api exposes the registration engine over HTTP.
//
// It provides the chat endpoint, registration status lookup, session
// snapshots, rating flow start, and a health check. All responses use the
// models.APIResponse envelope.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/azhar-edu/regbot/internal/engine"
	"github.com/azhar-edu/regbot/internal/form"
	"github.com/azhar-edu/regbot/internal/rating"
	"github.com/azhar-edu/regbot/internal/session"
	"github.com/azhar-edu/regbot/internal/store"
)

// Default timeouts for the HTTP server.
const (
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// Opts holds server configuration.
type Opts struct {
	Addr string
}

// Server routes HTTP requests into the conversation engine and its
// supporting managers.
type Server struct {
	engine   *engine.Engine
	forms    *form.Manager
	sessions *session.Manager
	ratings  *rating.Manager
	store    store.Store
	httpSrv  *http.Server
}

// NewServer creates an API server wired to the given components.
func NewServer(eng *engine.Engine, forms *form.Manager, sessions *session.Manager, ratings *rating.Manager, st store.Store, opts Opts) *Server {
	s := &Server{
		engine:   eng,
		forms:    forms,
		sessions: sessions,
		ratings:  ratings,
		store:    st,
	}
	s.httpSrv = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}
	return s
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat", s.chatHandler)
	mux.HandleFunc("/registrations/", s.registrationsHandler)
	mux.HandleFunc("/sessions/", s.sessionsHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return mux
}

// Start runs the HTTP server until Shutdown or a listener error.
func (s *Server) Start() error {
	slog.Info("Server.Start: API listening", "addr", s.httpSrv.Addr)
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Server.Shutdown: stopping API server")
	return s.httpSrv.Shutdown(ctx)
}

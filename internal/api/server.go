package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ignite/sendgrid-insights/internal/config"
)

// Server represents the API server
type Server struct {
	config  config.ServerConfig
	handler http.Handler
	server  *http.Server
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, h *Handlers, opts RouteOptions) *Server {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = cfg.AllowedOrigins
	}
	s := &Server{
		config:  cfg,
		handler: SetupRoutes(h, opts),
	}
	s.server = &http.Server{
		Addr:    s.Addr(),
		Handler: s.handler,
		// Uploads of large CSV exports need the long read timeout.
		ReadTimeout:       5 * time.Minute,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Addr returns the listen address from the server config.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.GetHost(), s.config.Port)
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing
func (s *Server) Handler() http.Handler {
	return s.handler
}

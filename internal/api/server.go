package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/roeimichael/VarProject/pkg/config"
	"github.com/roeimichael/VarProject/pkg/logger"
)

// Server represents an HTTP server of the monitor
// ⭐ SSOT: HTTP server settings live in this file only
type Server struct {
	httpServer *http.Server
	logger     *logger.Logger
	name       string
}

// New creates the API server on cfg.Port
func New(cfg *config.Config, log *logger.Logger, router http.Handler) *Server {
	return newServer("api", ":"+cfg.Port, router, log.WithField("env", cfg.Env))
}

// NewMetricsServer creates the Prometheus scrape server on cfg.MetricsPort
func NewMetricsServer(cfg *config.Config, log *logger.Logger, metrics http.Handler) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics)
	return newServer("metrics", ":"+cfg.MetricsPort, mux, log)
}

func newServer(name, addr string, handler http.Handler, log *logger.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 2 * time.Minute, // evaluations may fetch price history
			IdleTimeout:  60 * time.Second,
		},
		logger: log,
		name:   name,
	}
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.logger.WithFields(map[string]interface{}{
		"server": s.name,
		"addr":   s.httpServer.Addr,
	}).Info("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start %s server: %w", s.name, err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.WithField("server", s.name).Info("Shutting down HTTP server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown %s server: %w", s.name, err)
	}

	return nil
}

// Package core provides the API chassis for eventmail: a chi router with the
// cross-cutting middleware (panic recovery, request ids, logging,
// authentication) that runs before any domain handler.
package core

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"eventmail/internal/config"
)

// Server holds the dependencies shared by every route.
type Server struct {
	Config        *config.Config
	Logger        *slog.Logger
	Authenticator Authenticator // nil disables authentication
	HealthProbes  []HealthProbe

	// V1RouteRegistrars mount domain handlers under /v1. They are populated
	// by the entry point so core does not import handler packages.
	V1RouteRegistrars []func(chi.Router)

	router *chi.Mux
}

// NewServer creates a Server. Routes are mounted separately via MountRoutes.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config must not be nil")
	}
	if logger == nil {
		return nil, errors.New("logger must not be nil")
	}

	return &Server{
		Config: cfg,
		Logger: logger,
		router: chi.NewRouter(),
	}, nil
}

// Handler returns the http.Handler for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

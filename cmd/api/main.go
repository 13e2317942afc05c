// Package main is the entry point for the eventmail HTTP API.
//
// It loads configuration, builds the mailer and its optional dependencies
// (SQS publisher, delivery database, CloudWatch metrics), mounts the email
// and delivery handlers on the core chassis and serves until SIGINT or
// SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eventmail/internal/api/handlers"
	"eventmail/internal/app"
	"eventmail/internal/config"
	"eventmail/internal/core"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := app.NewLogger(cfg.LogLevel)
	logger.Info("eventmail API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx := context.Background()
	deps, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("building dependencies: %w", err)
	}
	defer deps.Close()

	if deps.Deliveries != nil {
		if err := deps.Deliveries.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("preparing delivery log: %w", err)
		}
	}

	srv, err := newServer(cfg, deps)
	if err != nil {
		return err
	}

	return runHTTPServer(srv, cfg, logger)
}

// newServer wires the handlers for deps into a core.Server.
func newServer(cfg *config.Config, deps *app.Deps) (*core.Server, error) {
	srv, err := core.NewServer(cfg, deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}

	switch {
	case cfg.Security.APIKeyHash != "":
		auth, err := core.NewAPIKeyAuthenticator(cfg.Security.APIKeyHash)
		if err != nil {
			return nil, err
		}
		srv.Authenticator = auth
	case !cfg.IsLocal():
		return nil, errors.New("API_KEY_HASH is required outside local mode")
	default:
		deps.Logger.Warn("API_KEY_HASH not set; authentication disabled in local mode")
	}

	srv.HealthProbes = deps.HealthProbes()

	var (
		mailQueue handlers.MailQueue
		recorder  handlers.DeliveryRecorder
	)
	if deps.Publisher != nil {
		mailQueue = deps.Publisher
	}
	if deps.Deliveries != nil {
		recorder = deps.Deliveries
	}

	emailHandler := handlers.NewEmailHandler(deps.Mailer, mailQueue, recorder, deps.Logger)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, emailHandler.RegisterRoutes)

	if deps.Deliveries != nil {
		deliveryHandler := handlers.NewDeliveryHandler(deps.Deliveries)
		srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, deliveryHandler.RegisterRoutes)
	}

	srv.MountRoutes()
	return srv, nil
}

// runHTTPServer serves srv until a shutdown signal, then drains in-flight
// requests for up to ten seconds.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

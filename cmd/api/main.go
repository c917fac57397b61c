// Package main is the entry point for the bareCourier API server.
//
// It loads configuration, wires the database, outbound senders and the
// dispatcher, mounts the notification and job routes on the core chassis and
// serves HTTP until SIGINT or SIGTERM.
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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"barecourier/internal/api/handlers"
	"barecourier/internal/app"
	"barecourier/internal/config"
	"barecourier/internal/core"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig(app.SecretProvider())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := app.NewLogger(cfg.LogLevel)
	logger.Info("barecourier API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	if app.IsLambdaEnvironment() {
		// No API Gateway adapter is linked; the API runs behind a load
		// balancer or container runtime instead.
		return fmt.Errorf("the API binary does not support the Lambda runtime; use cmd/jobs or cmd/dispatch-worker there")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	a, err := app.New(ctx, cfg, logger, app.Options{})
	cancel()
	if err != nil {
		return err
	}

	deps := serverDeps{
		Dispatcher: a.Dispatcher,
		Runner:     a.Runner,
		Registry:   a.Registry,
		Probes:     []core.HealthProbe{core.PingProbe{Component: "database", Ping: a.Ping}},
		Closers:    []func(){a.Close},
	}
	// Leave the interface nil when there is no queue so async requests fall
	// back to in-process dispatch.
	if a.Publisher != nil {
		deps.Publisher = a.Publisher
	}

	srv, err := buildServer(cfg, logger, deps)
	if err != nil {
		a.Close()
		return err
	}
	return runHTTPServer(srv, cfg, logger)
}

// serverDeps are the domain dependencies mounted on the chassis.
type serverDeps struct {
	Dispatcher handlers.Dispatcher
	Publisher  handlers.DispatchPublisher
	Runner     handlers.JobRunner
	// Registry, when set, backs both request metrics and GET /metrics.
	Registry *prometheus.Registry
	Probes   []core.HealthProbe
	Closers  []func()
}

// buildServer assembles the chassis and mounts every route.
func buildServer(cfg *config.Config, logger *slog.Logger, deps serverDeps) (*core.Server, error) {
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}

	if deps.Registry != nil {
		srv.Metrics = core.NewPrometheusCollector(deps.Registry)
		srv.MetricsHandler = promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{Registry: deps.Registry})
	}
	srv.HealthProbes = deps.Probes
	srv.Closers = deps.Closers

	notificationHandler := handlers.NewNotificationHandler(deps.Dispatcher, deps.Publisher, srv.Validator, logger)
	jobHandler := handlers.NewJobHandler(deps.Runner, logger)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		notificationHandler.RegisterRoutes,
		jobHandler.RegisterRoutes,
	)

	srv.MountRoutes()
	return srv, nil
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Synchronous dispatches may retry for up to the request timeout.
		WriteTimeout: cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:  120 * time.Second,
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
			_ = srv.Shutdown(context.Background())
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

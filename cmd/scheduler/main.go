// Package main runs the scheduled tasks in-process on cron schedules, for
// deployments that have no EventBridge. It also serves /health and, with the
// prometheus backend, /metrics on the configured port.
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

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"barecourier/internal/app"
	"barecourier/internal/config"
	"barecourier/internal/scheduler"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig(app.SecretProvider())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := app.NewLogger(cfg.LogLevel).With("component", "scheduler")
	logger.Info("barecourier scheduler starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"timezone", cfg.Scheduler.Timezone,
	)

	initCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	a, err := app.New(initCtx, cfg, logger, app.Options{})
	cancel()
	if err != nil {
		return err
	}
	defer a.Close()

	cronScheduler, err := scheduler.NewCronScheduler(a.Runner, cfg.Scheduler, cfg.Retry.FunctionTimeout+30*time.Second, logger)
	if err != nil {
		return err
	}
	if err := cronScheduler.Start(); err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           opsRouter(a.Ping, a.Registry),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("ops server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			runErr = fmt.Errorf("ops server error: %w", err)
		}
	}

	logger.Info("waiting for running tasks")
	<-cronScheduler.Stop().Done()

	ctx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("ops server shutdown error", "error", err)
	}

	logger.Info("scheduler stopped")
	return runErr
}

// opsRouter serves the liveness and metrics endpoints. reg may be nil.
func opsRouter(ping func(context.Context) error, reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		w.Header().Set("Content-Type", "application/json")
		if err := ping(ctx); err != nil {
			slog.Default().Warn("health check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unhealthy"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})
	if reg != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	}
	return r
}

// Package main is the entry point for the scheduled jobs Lambda.
//
// EventBridge rules invoke it with a JSON payload naming the task:
//
//	{"task": "past_due"}
//	{"task": "daily_summary"}
//	{"task": "cleanup", "reference_time": "2026-03-02T03:30:00Z"}
//
// Outside Lambda the same payload is read from stdin, which makes the binary
// usable for manual runs and backfills:
//
//	echo '{"task":"past_due"}' | go run ./cmd/jobs
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/google/uuid"

	"barecourier/internal/app"
	"barecourier/internal/config"
	"barecourier/internal/scheduler"
)

// JobRunner executes one scheduled task.
type JobRunner interface {
	Run(ctx context.Context, payload scheduler.JobPayload) (scheduler.RunResult, error)
}

// Handler holds the dependencies for the jobs Lambda handler function.
type Handler struct {
	Runner   JobRunner
	WorkerID string
	Logger   *slog.Logger
}

// Handle runs payload.Task and returns its result. Errors fail the invocation
// so EventBridge retry policy and alarms see them.
func (h *Handler) Handle(ctx context.Context, payload scheduler.JobPayload) (scheduler.RunResult, error) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger.InfoContext(ctx, "jobs handler invoked",
		"task", string(payload.Task),
		"worker_id", h.WorkerID,
	)

	return h.Runner.Run(ctx, payload)
}

// runLocal reads one payload from r, runs it and writes the result to w.
func runLocal(ctx context.Context, h *Handler, r io.Reader, w io.Writer) error {
	var payload scheduler.JobPayload
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return fmt.Errorf("decoding job payload: %w", err)
	}

	result, runErr := h.Handle(ctx, payload)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	return runErr
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.LoadConfig(app.SecretProvider())
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger = app.NewLogger(cfg.LogLevel).With("component", "jobs")

	workerID := uuid.NewString()

	initCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	a, err := app.New(initCtx, cfg, logger, app.Options{WorkerID: workerID})
	cancel()
	if err != nil {
		logger.Error("failed to initialize dependencies", "error", err)
		os.Exit(1)
	}

	handler := &Handler{
		Runner:   a.Runner,
		WorkerID: workerID,
		Logger:   logger,
	}

	if app.IsLambdaEnvironment() {
		logger.Info("jobs Lambda initialized", "worker_id", workerID)
		lambda.Start(handler.Handle)
		return
	}

	ctx, stop := context.WithTimeout(context.Background(), cfg.Retry.FunctionTimeout+30*time.Second)
	err = runLocal(ctx, handler, os.Stdin, os.Stdout)
	stop()
	a.Close()
	if err != nil {
		logger.Error("job failed", "error", err)
		os.Exit(1)
	}
}

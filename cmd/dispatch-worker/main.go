// Package main is the entry point for the dispatch worker Lambda.
//
// The API enqueues async dispatch requests on the notification queue; this
// worker consumes them in batches and runs each through the same dispatcher
// the synchronous path uses. Failed records are reported individually through
// the partial batch response so SQS only redelivers those.
//
// Failure handling:
//   - malformed bodies and rejected requests are ACKed (redelivery would fail
//     the same way), the queue's DLQ never sees them
//   - a dispatch where nothing was delivered and the in-app write failed is
//     reported as a batch item failure so SQS retries it
//   - partial success is ACKed, redelivery would duplicate the channels that
//     already succeeded
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/google/uuid"

	"barecourier/internal/app"
	"barecourier/internal/config"
	notify "barecourier/internal/notifications/core"
	"barecourier/internal/types"
)

// Dispatcher is the subset of the notification dispatcher the worker uses.
type Dispatcher interface {
	Dispatch(ctx context.Context, req notify.DispatchRequest) (*notify.DispatchResult, error)
}

// errNothingDelivered marks a dispatch that should be retried.
var errNothingDelivered = errors.New("no channel delivered and in-app write failed")

// Handler holds the dependencies for the SQS handler.
type Handler struct {
	dispatcher Dispatcher
	clock      types.Clock
	logger     *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(d Dispatcher, clock types.Clock, logger *slog.Logger) *Handler {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{dispatcher: d, clock: clock, logger: logger}
}

// Handle processes one SQS batch. It never returns an error; per-record
// failures go into BatchItemFailures.
func (h *Handler) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	for _, record := range sqsEvent.Records {
		if err := h.processMessage(ctx, record); err != nil {
			h.logger.ErrorContext(ctx, "failed to process SQS message",
				"message_id", record.MessageId,
				"error", err.Error(),
			)
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId},
			)
		}
	}

	return response, nil
}

// processMessage returns nil for every outcome that must not be redelivered.
func (h *Handler) processMessage(ctx context.Context, record events.SQSMessage) error {
	msg, err := notify.DecodeDispatchMessage(record.Body)
	if err != nil {
		h.logger.ErrorContext(ctx, "dropping malformed dispatch message",
			"message_id", record.MessageId,
			"error", err.Error(),
		)
		return nil
	}

	logger := h.logger.With(
		"message_id", record.MessageId,
		"recipient_id", msg.Request.RecipientID,
		"category", string(msg.Request.Category),
	)
	if msg.RequestID != "" {
		logger = logger.With("request_id", msg.RequestID)
		ctx = types.WithRequestID(ctx, msg.RequestID)
	}
	if !msg.EnqueuedAt.IsZero() {
		logger = logger.With("queue_lag_ms", h.clock.Now().Sub(msg.EnqueuedAt).Milliseconds())
	}
	if count, ok := record.Attributes["ApproximateReceiveCount"]; ok {
		if n, err := strconv.Atoi(count); err == nil && n > 1 {
			logger = logger.With("receive_count", n)
		}
	}

	result, err := h.dispatcher.Dispatch(ctx, msg.Request)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.HTTPStatus() < 500 {
			logger.WarnContext(ctx, "dispatch request rejected, dropping", "error", err.Error())
			return nil
		}
		return fmt.Errorf("dispatch: %w", err)
	}

	if !result.InApp.Success && !delivered(result.Push) && !delivered(result.Email) {
		return fmt.Errorf("%w: %s", errNothingDelivered, result.InApp.Error)
	}

	logger.InfoContext(ctx, "dispatch message processed",
		"in_app", result.InApp.Success,
		"push", delivered(result.Push),
		"email", delivered(result.Email),
	)
	return nil
}

func delivered(r *notify.ChannelResult) bool {
	return r != nil && r.Success
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	logger.Info("dispatch worker initializing (cold start)")

	cfg, err := config.LoadConfig(app.SecretProvider())
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger = app.NewLogger(cfg.LogLevel).With("component", "dispatch-worker")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	a, err := app.New(ctx, cfg, logger, app.Options{WorkerID: uuid.NewString()})
	cancel()
	if err != nil {
		logger.Error("failed to initialize dependencies", "error", err)
		os.Exit(1)
	}

	handler := NewHandler(a.Dispatcher, types.RealClock{}, logger)

	logger.Info("dispatch worker initialized",
		"version", cfg.Build.Version,
		"metrics_backend", cfg.Observability.MetricsBackend,
	)

	lambda.Start(handler.Handle)
}

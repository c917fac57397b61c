package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"barecourier/internal/core"
	"barecourier/internal/scheduler"
	"barecourier/internal/types"
)

// JobRunner runs a scheduled task on demand.
type JobRunner interface {
	Run(ctx context.Context, payload scheduler.JobPayload) (scheduler.RunResult, error)
}

// RunJobRequest is the optional body of the job endpoints.
type RunJobRequest struct {
	ReferenceTime *time.Time `json:"reference_time,omitempty"`
}

// JobHandler exposes the scheduled jobs over HTTP for manual runs and for
// schedulers that can only make HTTP calls.
type JobHandler struct {
	runner JobRunner
	logger *slog.Logger
}

// NewJobHandler creates a JobHandler.
func NewJobHandler(runner JobRunner, logger *slog.Logger) *JobHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobHandler{runner: runner, logger: logger}
}

// RegisterRoutes mounts the job routes on r.
func (h *JobHandler) RegisterRoutes(r chi.Router) {
	r.Route("/jobs", func(r chi.Router) {
		r.Post("/past-due", h.run(scheduler.TaskPastDue))
		r.Post("/daily-summary", h.run(scheduler.TaskDailySummary))
		r.Post("/cleanup", h.run(scheduler.TaskCleanup))
	})
}

// run returns the handler of one task. past-due responds with the
// {checked, overdue, notified} summary; the other tasks with the run result.
// A deadline error still carries the summary in its details.
func (h *JobHandler) run(task scheduler.TaskType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body RunJobRequest
		if r.ContentLength != 0 {
			if err := core.DecodeJSON(w, r, &body); err != nil && !isEmptyBody(err) {
				core.Error(w, r, err)
				return
			}
		}

		result, err := h.runner.Run(r.Context(), scheduler.JobPayload{Task: task, ReferenceTime: body.ReferenceTime})
		if err != nil {
			var appErr *types.AppError
			if result.PastDue != nil && errors.As(err, &appErr) && appErr.Code == types.ErrCodeDeadlineExceeded {
				err = appErr.WithDetails(map[string]any{"summary": result.PastDue})
			}
			core.Error(w, r, err)
			return
		}

		if result.PastDue != nil {
			core.JSON(w, r, http.StatusOK, core.APIResponse{Data: result.PastDue})
			return
		}
		core.JSON(w, r, http.StatusOK, core.APIResponse{Data: result})
	}
}

func isEmptyBody(err error) bool {
	var appErr *types.AppError
	return errors.As(err, &appErr) && errors.Is(appErr.Err, io.EOF)
}

package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"barecourier/internal/types"
)

// PastDueRunner runs one past-due check.
type PastDueRunner interface {
	Run(ctx context.Context, now time.Time) (PastDueSummary, error)
}

// JobRunner runs a job that reports an item count.
type JobRunner interface {
	Run(ctx context.Context, now time.Time) (int, error)
}

// JobHistorian records runs in job_history.
type JobHistorian interface {
	Start(ctx context.Context, jobType string) (int64, error)
	Finish(ctx context.Context, id int64, status types.JobStatus, items int, jobErr error) error
}

// RunResult is what one task run produced.
type RunResult struct {
	Task  TaskType `json:"task"`
	Items int      `json:"items"`
	// PastDue is set for past_due runs.
	PastDue *PastDueSummary `json:"pastDue,omitempty"`
}

// Runner routes a JobPayload to its job and records the run. A nil job
// rejects its task as unknown.
type Runner struct {
	PastDue      PastDueRunner
	DailySummary JobRunner
	Cleanup      JobRunner
	History      JobHistorian
	Clock        types.Clock
	Logger       *slog.Logger
}

// Run executes payload.Task at payload.ReferenceTime, or now when unset.
// History bookkeeping failures are logged and never fail the run.
func (r *Runner) Run(ctx context.Context, payload JobPayload) (RunResult, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := r.Clock
	if clock == nil {
		clock = types.RealClock{}
	}

	now := clock.Now().UTC()
	if payload.ReferenceTime != nil {
		now = payload.ReferenceTime.UTC()
	}
	result := RunResult{Task: payload.Task}
	task := string(payload.Task)

	if payload.Task == "" {
		return result, types.NewAppError(types.ErrCodeValidationMissingField, "task is required", nil)
	}
	if !r.supports(payload.Task) {
		return result, types.NewAppError(types.ErrCodeValidationInvalidBody, "unknown task: "+task, nil)
	}

	logger.InfoContext(ctx, "job invoked", "task", task, "reference_time", now.Format(time.RFC3339))

	var jobID int64
	if r.History != nil {
		id, err := r.History.Start(ctx, task)
		if err != nil {
			logger.ErrorContext(ctx, "failed to start job history", "task", task, "error", err)
		} else {
			jobID = id
		}
	}

	execErr := r.dispatch(ctx, payload.Task, now, &result)

	if jobID != 0 {
		status := types.JobStatusSuccess
		if execErr != nil {
			status = types.JobStatusFailed
		}
		if err := r.History.Finish(ctx, jobID, status, result.Items, execErr); err != nil {
			logger.ErrorContext(ctx, "failed to finish job history", "job_id", jobID, "task", task, "error", err)
		}
	}

	if execErr != nil {
		logger.ErrorContext(ctx, "job failed", "task", task, "items", result.Items, "error", execErr)
		return result, fmt.Errorf("task %s failed: %w", task, execErr)
	}
	logger.InfoContext(ctx, "job complete", "task", task, "items", result.Items)
	return result, nil
}

func (r *Runner) supports(task TaskType) bool {
	switch task {
	case TaskPastDue:
		return r.PastDue != nil
	case TaskDailySummary:
		return r.DailySummary != nil
	case TaskCleanup:
		return r.Cleanup != nil
	}
	return false
}

func (r *Runner) dispatch(ctx context.Context, task TaskType, now time.Time, result *RunResult) error {
	var err error
	switch task {
	case TaskPastDue:
		var summary PastDueSummary
		summary, err = r.PastDue.Run(ctx, now)
		result.PastDue = &summary
		result.Items = summary.Notified
	case TaskDailySummary:
		result.Items, err = r.DailySummary.Run(ctx, now)
	case TaskCleanup:
		result.Items, err = r.Cleanup.Run(ctx, now)
	}
	return err
}

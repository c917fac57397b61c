package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"barecourier/internal/config"
)

// TaskRunner executes one task payload. *Runner satisfies it.
type TaskRunner interface {
	Run(ctx context.Context, payload JobPayload) (RunResult, error)
}

// CronScheduler runs the periodic tasks in-process for deployments without
// EventBridge. Overlapping runs of the same task are skipped.
type CronScheduler struct {
	runner  TaskRunner
	cron    *cron.Cron
	logger  *slog.Logger
	timeout time.Duration
	specs   map[TaskType]string
}

// CronOption customises the CronScheduler.
type CronOption func(*CronScheduler)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) CronOption {
	return func(s *CronScheduler) {
		if c != nil {
			s.cron = c
		}
	}
}

// NewCronScheduler builds a scheduler from cfg. An empty schedule disables
// that task. timeout bounds each run; zero means no bound.
func NewCronScheduler(runner TaskRunner, cfg config.SchedulerConfig, timeout time.Duration, logger *slog.Logger, opts ...CronOption) (*CronScheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &CronScheduler{
		runner:  runner,
		logger:  logger.With("component", "cron"),
		timeout: timeout,
		specs: map[TaskType]string{
			TaskPastDue:      cfg.PastDueSchedule,
			TaskDailySummary: cfg.DailySummarySchedule,
			TaskCleanup:      cfg.CleanupSchedule,
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.cron == nil {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("scheduler timezone %q: %w", cfg.Timezone, err)
		}
		s.cron = cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cron.DiscardLogger),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		)
	}
	return s, nil
}

// Start registers every scheduled task and starts the cron loop.
func (s *CronScheduler) Start() error {
	for _, task := range []TaskType{TaskPastDue, TaskDailySummary, TaskCleanup} {
		spec := s.specs[task]
		if spec == "" {
			s.logger.Info("task not scheduled", "task", string(task))
			continue
		}
		if _, err := s.cron.AddFunc(spec, s.job(task)); err != nil {
			return fmt.Errorf("scheduling %s with %q: %w", task, spec, err)
		}
		s.logger.Info("task scheduled", "task", string(task), "schedule", spec)
	}
	s.cron.Start()
	return nil
}

// Stop halts the cron loop. The returned context is done once running jobs
// complete.
func (s *CronScheduler) Stop() context.Context {
	return s.cron.Stop()
}

// RunOnce executes task immediately, outside the schedule.
func (s *CronScheduler) RunOnce(ctx context.Context, task TaskType) (RunResult, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.runner.Run(ctx, JobPayload{Task: task})
}

func (s *CronScheduler) job(task TaskType) func() {
	return func() {
		result, err := s.RunOnce(context.Background(), task)
		if err != nil {
			s.logger.Error("scheduled task failed", "task", string(task), "error", err)
			return
		}
		s.logger.Info("scheduled task complete", "task", string(task), "items", result.Items)
	}
}

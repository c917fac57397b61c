package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Default retention windows of the cleanup job.
const (
	DefaultNotificationRetention = 90 * 24 * time.Hour
	DefaultJobHistoryRetention   = 30 * 24 * time.Hour
)

// CleanupDB defines the deletions the cleanup job performs.
type CleanupDB interface {
	// DeleteDismissedNotificationsBefore removes dismissed or read
	// notifications created before cutoff.
	//
	// SQL: DELETE FROM notifications WHERE created_at < $1
	//      AND (dismissed_at IS NOT NULL OR read)
	DeleteDismissedNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// DeleteExpiredJobLocks removes locks whose expiry passed.
	//
	// SQL: DELETE FROM job_locks WHERE expires_at < $1
	DeleteExpiredJobLocks(ctx context.Context, now time.Time) (int64, error)

	// DeleteJobHistoryBefore removes finished job runs that started before cutoff.
	//
	// SQL: DELETE FROM job_history WHERE started_at < $1 AND status <> 'running'
	DeleteJobHistoryBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupService keeps the bookkeeping tables bounded.
type CleanupService struct {
	db                    CleanupDB
	notificationRetention time.Duration
	historyRetention      time.Duration
	logger                *slog.Logger
}

// NewCleanupService creates a CleanupService. Zero retentions use the defaults.
func NewCleanupService(db CleanupDB, notificationRetention, historyRetention time.Duration, logger *slog.Logger) *CleanupService {
	if logger == nil {
		logger = slog.Default()
	}
	if notificationRetention <= 0 {
		notificationRetention = DefaultNotificationRetention
	}
	if historyRetention <= 0 {
		historyRetention = DefaultJobHistoryRetention
	}
	return &CleanupService{
		db:                    db,
		notificationRetention: notificationRetention,
		historyRetention:      historyRetention,
		logger:                logger,
	}
}

// Run performs every purge and returns the total number of rows removed. A
// failing purge does not stop the others; the first error is returned.
func (c *CleanupService) Run(ctx context.Context, now time.Time) (int, error) {
	steps := []struct {
		name string
		fn   func() (int64, error)
	}{
		{"notifications", func() (int64, error) {
			return c.db.DeleteDismissedNotificationsBefore(ctx, now.Add(-c.notificationRetention))
		}},
		{"job_locks", func() (int64, error) {
			return c.db.DeleteExpiredJobLocks(ctx, now)
		}},
		{"job_history", func() (int64, error) {
			return c.db.DeleteJobHistoryBefore(ctx, now.Add(-c.historyRetention))
		}},
	}

	var total int64
	var firstErr error
	for _, step := range steps {
		count, err := step.fn()
		if err != nil {
			c.logger.ErrorContext(ctx, "cleanup step failed", "step", step.name, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("purging %s: %w", step.name, err)
			}
			continue
		}
		if count > 0 {
			c.logger.InfoContext(ctx, "purged rows", "step", step.name, "count", count)
		}
		total += count
	}
	return int(total), firstErr
}

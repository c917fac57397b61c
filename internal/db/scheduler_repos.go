package db

import (
	"context"
	"time"

	"barecourier/internal/types"
)

// JobLockRepository provides run-once locks over the job_locks table.
type JobLockRepository struct {
	db    DBTX
	clock types.Clock
}

// NewJobLockRepository creates a new JobLockRepository.
func NewJobLockRepository(db DBTX) *JobLockRepository {
	return &JobLockRepository{db: db, clock: types.RealClock{}}
}

// Acquire takes lockID for ttl. It returns false while another holder's lock
// is unexpired; an expired lock is taken over. lockID is usually
// "<task>:<local date>", e.g. "daily_summary:2026-03-10".
//
// expires_at is computed in Go because duration strings such as "36h0m0s" are
// not valid PostgreSQL intervals.
func (r *JobLockRepository) Acquire(ctx context.Context, lockID string, workerID string, ttl time.Duration) (bool, error) {
	now := r.clock.Now()
	tag, err := r.db.Exec(ctx,
		`INSERT INTO job_locks (id, worker_id, locked_at, expires_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE
		   SET worker_id = EXCLUDED.worker_id,
		       locked_at = EXCLUDED.locked_at,
		       expires_at = EXCLUDED.expires_at
		   WHERE job_locks.expires_at < $3`,
		lockID,
		workerID,
		now,
		now.Add(ttl),
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to acquire job lock", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Release deletes the lock if workerID still holds it, letting a failed run be
// retried before the TTL lapses.
func (r *JobLockRepository) Release(ctx context.Context, lockID string, workerID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM job_locks WHERE id = $1 AND worker_id = $2`,
		lockID, workerID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to release job lock", err)
	}
	return nil
}

// JobHistoryRepository records scheduled job executions.
type JobHistoryRepository struct {
	db DBTX
}

// NewJobHistoryRepository creates a new JobHistoryRepository.
func NewJobHistoryRepository(db DBTX) *JobHistoryRepository {
	return &JobHistoryRepository{db: db}
}

// Start inserts a running entry and returns its id.
func (r *JobHistoryRepository) Start(ctx context.Context, jobType string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO job_history (job_type, started_at, status)
		 VALUES ($1, NOW(), 'running')
		 RETURNING id`,
		jobType,
	).Scan(&id)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to start job history entry", err)
	}
	return id, nil
}

// Finish closes the entry with its outcome. jobErr, when set, is stored as text.
func (r *JobHistoryRepository) Finish(ctx context.Context, id int64, status types.JobStatus, items int, jobErr error) error {
	var errMsg *string
	if jobErr != nil {
		s := jobErr.Error()
		errMsg = &s
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE job_history
		 SET finished_at = NOW(), status = $2, items_count = $3, error = $4
		 WHERE id = $1`,
		id,
		string(status),
		items,
		errMsg,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to finish job history entry", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "job history entry not found", nil)
	}
	return nil
}

// CleanupRepository runs the retention deletes of the cleanup job.
type CleanupRepository struct {
	db DBTX
}

// NewCleanupRepository creates a new CleanupRepository.
func NewCleanupRepository(db DBTX) *CleanupRepository {
	return &CleanupRepository{db: db}
}

// DeleteDismissedNotificationsBefore removes read or dismissed notifications
// created before cutoff. Unread notifications are kept regardless of age.
func (r *CleanupRepository) DeleteDismissedNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.delete(ctx, "notifications",
		`DELETE FROM notifications
		 WHERE created_at < $1 AND (dismissed_at IS NOT NULL OR is_read)`,
		cutoff,
	)
}

// DeleteExpiredJobLocks removes locks that expired before now.
func (r *CleanupRepository) DeleteExpiredJobLocks(ctx context.Context, now time.Time) (int64, error) {
	return r.delete(ctx, "job locks", `DELETE FROM job_locks WHERE expires_at < $1`, now)
}

// DeleteJobHistoryBefore removes finished runs started before cutoff.
func (r *CleanupRepository) DeleteJobHistoryBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.delete(ctx, "job history",
		`DELETE FROM job_history WHERE started_at < $1 AND status <> 'running'`,
		cutoff,
	)
}

func (r *CleanupRepository) delete(ctx context.Context, what string, sql string, arg time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, sql, arg)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to delete "+what, err)
	}
	return tag.RowsAffected(), nil
}

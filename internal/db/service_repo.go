package db

import (
	"context"
	"time"

	"barecourier/internal/types"
)

// ServiceRepository provides the service queries used by the scheduled jobs.
type ServiceRepository struct {
	db DBTX
}

// NewServiceRepository creates a new ServiceRepository.
func NewServiceRepository(db DBTX) *ServiceRepository {
	return &ServiceRepository{db: db}
}

// ListPendingDueBy returns pending services scheduled on or before the given
// local calendar date. Only the date part of day is used.
func (r *ServiceRepository) ListPendingDueBy(ctx context.Context, day time.Time) ([]types.Service, error) {
	rows, err := r.db.Query(ctx,
		`SELECT s.id, s.client_id, COALESCE(c.name, ''), s.status, s.scheduled_date,
		        COALESCE(s.scheduled_time_slot, ''), COALESCE(to_char(s.scheduled_time, 'HH24:MI'), ''),
		        COALESCE(s.pickup_location, ''), COALESCE(s.delivery_location, ''),
		        s.last_past_due_notification_at
		 FROM services s
		 LEFT JOIN profiles c ON c.id = s.client_id
		 WHERE s.status = 'pending'
		   AND s.deleted_at IS NULL
		   AND s.scheduled_date IS NOT NULL
		   AND s.scheduled_date <= $1::date
		 ORDER BY s.scheduled_date, s.id`,
		day.Format(time.DateOnly),
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list pending services", err)
	}
	defer rows.Close()

	var services []types.Service
	for rows.Next() {
		var s types.Service
		if err := rows.Scan(
			&s.ID,
			&s.ClientID,
			&s.ClientName,
			&s.Status,
			&s.ScheduledDate,
			&s.ScheduledTimeSlot,
			&s.ScheduledTime,
			&s.PickupLocation,
			&s.DeliveryLocation,
			&s.LastPastDueNotificationAt,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan service row", err)
		}
		services = append(services, s)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating service rows", err)
	}
	return services, nil
}

// ClaimPastDueNotification stamps last_past_due_notification_at = now only if
// the column still holds previous (NULL when previous is nil) and the service
// is still pending. Exactly one of several concurrent callers that read the
// same previous value observes true.
func (r *ServiceRepository) ClaimPastDueNotification(ctx context.Context, serviceID string, previous *time.Time, now time.Time) (bool, error) {
	var sql string
	args := []any{serviceID, now}
	if previous == nil {
		sql = `UPDATE services
		       SET last_past_due_notification_at = $2
		       WHERE id = $1
		         AND status = 'pending'
		         AND last_past_due_notification_at IS NULL`
	} else {
		sql = `UPDATE services
		       SET last_past_due_notification_at = $2
		       WHERE id = $1
		         AND status = 'pending'
		         AND last_past_due_notification_at = $3`
		args = append(args, *previous)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to claim past-due notification", err)
	}
	return tag.RowsAffected() == 1, nil
}

// CountForDate returns the pending and delivered totals for one calendar date.
func (r *ServiceRepository) CountForDate(ctx context.Context, day time.Time) (types.ServiceCounts, error) {
	var counts types.ServiceCounts
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FILTER (WHERE status = 'pending'),
		        COUNT(*) FILTER (WHERE status = 'delivered')
		 FROM services
		 WHERE scheduled_date = $1::date AND deleted_at IS NULL`,
		day.Format(time.DateOnly),
	).Scan(&counts.Pending, &counts.Delivered)
	if err != nil {
		return counts, types.NewAppError(types.ErrCodeInternalDB, "failed to count services", err)
	}
	return counts, nil
}

// Package scheduler holds the periodic jobs: the past-due detector and the
// courier's daily summary. Jobs are stateless between runs; every piece of
// state they depend on lives in the database.
package scheduler

import (
	"context"
	"time"

	"barecourier/internal/notifications/core"
	"barecourier/internal/notifications/templates"
	"barecourier/internal/types"
)

// TaskType identifies which job a scheduled event triggers.
type TaskType string

const (
	TaskPastDue      TaskType = "past_due"
	TaskDailySummary TaskType = "daily_summary"
	TaskCleanup      TaskType = "cleanup"
)

// JobPayload is the JSON body sent by EventBridge (or piped on stdin when
// running locally).
//
//	{
//	  "task": "past_due",
//	  "reference_time": "2026-03-02T12:00:00Z"  // optional
//	}
type JobPayload struct {
	Task TaskType `json:"task"`
	// ReferenceTime replaces "now" for manual runs and backfills.
	ReferenceTime *time.Time `json:"reference_time,omitempty"`
}

// CourierReader loads the single courier with their settings.
type CourierReader interface {
	GetCourier(ctx context.Context) (*types.CourierProfile, error)
}

// PastDueStore is the service store as seen by the past-due detector.
type PastDueStore interface {
	// ListPendingDueBy returns pending services scheduled on day or earlier.
	ListPendingDueBy(ctx context.Context, day time.Time) ([]types.Service, error)
	// ClaimPastDueNotification sets last_past_due_notification_at to now only
	// if it still equals previous (NULL when previous is nil). It returns true
	// when this caller won the claim.
	ClaimPastDueNotification(ctx context.Context, serviceID string, previous *time.Time, now time.Time) (bool, error)
}

// ServiceCounter counts services for the daily summary.
type ServiceCounter interface {
	CountForDate(ctx context.Context, day time.Time) (types.ServiceCounts, error)
}

// JobLocker serializes once-per-day jobs across instances.
type JobLocker interface {
	Acquire(ctx context.Context, lockID string, workerID string, ttl time.Duration) (bool, error)
}

// Dispatcher is the channel dispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, req core.DispatchRequest) (*core.DispatchResult, error)
}

// Renderer renders notification text.
type Renderer interface {
	Render(templateID, locale string, data map[string]any) (templates.Rendered, error)
}

// PastDueSummary is the observable outcome of one detector run.
type PastDueSummary struct {
	Checked  int `json:"checked"`
	Overdue  int `json:"overdue"`
	Notified int `json:"notified"`
}

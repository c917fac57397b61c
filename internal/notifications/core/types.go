// Package core decides where a notification goes and sends it there. It
// resolves recipient preferences, applies the quiet-hours and working-day
// gate, writes the in-app record and fans out to push and email.
package core

import (
	"context"
	"time"

	"barecourier/internal/notifications/templates"
	"barecourier/internal/types"
)

// ProfileReader loads recipient profiles.
type ProfileReader interface {
	GetByID(ctx context.Context, id string) (*types.Profile, error)
}

// NotificationStore persists in-app notifications and their email outcome.
type NotificationStore interface {
	Create(ctx context.Context, n *types.NotificationRecord) error
	MarkEmailSent(ctx context.Context, id string, emailID string, sentAt time.Time) error
	MarkEmailFailed(ctx context.Context, id string) error
}

// PushSubscriptionStore removes subscriptions the push service reported gone.
// A nil endpoints slice removes every subscription of the user.
type PushSubscriptionStore interface {
	DeleteForUser(ctx context.Context, userID string, endpoints []string) (int64, error)
}

// TemplateRenderer renders localized email templates.
type TemplateRenderer interface {
	Known(templateID string) bool
	Render(templateID, locale string, data map[string]any) (templates.Rendered, error)
}

// MetricResult categorizes a delivery outcome for metrics reporting.
type MetricResult string

const (
	MetricSuccess MetricResult = "success"
	MetricFailed  MetricResult = "failed"
	MetricSkipped MetricResult = "skipped"
)

// NotificationMetrics abstracts telemetry for dispatch and the past-due job.
type NotificationMetrics interface {
	RecordDelivery(ctx context.Context, channel types.Channel, result MetricResult)
	RecordLatency(ctx context.Context, channel types.Channel, duration time.Duration)
	RecordPastDueRun(ctx context.Context, checked, overdue, notified int)
}

// DispatchRequest is one logical event to deliver to one recipient.
type DispatchRequest struct {
	RecipientID string         `json:"recipientId" validate:"required,uuid"`
	Category    types.Category `json:"category" validate:"required,notification_category"`
	Title       string         `json:"title" validate:"required,max=200"`
	Message     string         `json:"message" validate:"required,max=2000"`
	ServiceRef  *string        `json:"serviceId,omitempty" validate:"omitempty,uuid"`
	// URL is the deep link opened from push notifications.
	URL string `json:"url,omitempty" validate:"omitempty,url"`
	// EmailTemplate names the template to render. Empty means no email even
	// when the category allows it.
	EmailTemplate string         `json:"emailTemplate,omitempty"`
	EmailData     map[string]any `json:"emailData,omitempty"`
}

// ChannelResult is the outcome of one attempted channel.
type ChannelResult struct {
	Success        bool   `json:"success"`
	NotificationID string `json:"notificationId,omitempty"`
	EmailID        string `json:"emailId,omitempty"`
	Error          string `json:"error,omitempty"`
}

// DispatchResult reports every channel. A nil Push or Email means the channel
// was not attempted, which differs from an attempt with Success false.
type DispatchResult struct {
	InApp ChannelResult  `json:"inApp"`
	Push  *ChannelResult `json:"push"`
	Email *ChannelResult `json:"email"`
}

package types

import "time"

// Profile is the read model of a user account as consumed by notification code.
type Profile struct {
	ID                        string                   `json:"id"`
	Role                      ProfileRole              `json:"role"`
	Name                      string                   `json:"name"`
	Email                     string                   `json:"email"`
	Timezone                  string                   `json:"timezone"`
	WorkingDays               []string                 `json:"working_days"`
	Locale                    string                   `json:"locale"`
	PushNotificationsEnabled  bool                     `json:"push_notifications_enabled"`
	EmailNotificationsEnabled bool                     `json:"email_notifications_enabled"`
	NotificationPreferences   *NotificationPreferences `json:"notification_preferences,omitempty"`
}

// EffectiveTimezone returns the profile timezone or the default when unset.
func (p *Profile) EffectiveTimezone() string {
	if p == nil || p.Timezone == "" {
		return DefaultTimezone
	}
	return p.Timezone
}

// EffectiveWorkingDays returns the profile working days or Monday to Friday.
func (p *Profile) EffectiveWorkingDays() []string {
	if p == nil || len(p.WorkingDays) == 0 {
		return DefaultWorkingDays
	}
	return p.WorkingDays
}

// EffectiveLocale returns the profile locale or the default.
func (p *Profile) EffectiveLocale() string {
	if p == nil || p.Locale == "" {
		return DefaultLocale
	}
	return p.Locale
}

// CourierProfile bundles the courier's profile with their scheduling settings.
type CourierProfile struct {
	Profile
	Settings CourierSettings
}

// Service is a scheduled pickup/delivery job.
type Service struct {
	ID                        string        `json:"id"`
	ClientID                  string        `json:"client_id"`
	ClientName                string        `json:"client_name"`
	Status                    ServiceStatus `json:"status"`
	ScheduledDate             time.Time     `json:"scheduled_date"` // calendar date, time part ignored
	ScheduledTimeSlot         TimeSlot      `json:"scheduled_time_slot"`
	ScheduledTime             string        `json:"scheduled_time,omitempty"` // "HH:MM", only for TimeSlotSpecific
	PickupLocation            string        `json:"pickup_location"`
	DeliveryLocation          string        `json:"delivery_location"`
	LastPastDueNotificationAt *time.Time    `json:"last_past_due_notification_at,omitempty"`
}

// NotificationRecord is the persisted in-app notification, which also tracks the
// outcome of the accompanying email.
type NotificationRecord struct {
	ID          string       `json:"id"`
	RecipientID string       `json:"recipient_id"`
	Category    Category     `json:"category"`
	Title       string       `json:"title"`
	Message     string       `json:"message"`
	ServiceRef  *string      `json:"service_id,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	Read        bool         `json:"read"`
	DismissedAt *time.Time   `json:"dismissed_at,omitempty"`
	EmailStatus *EmailStatus `json:"email_status,omitempty"`
	EmailID     *string      `json:"email_id,omitempty"`
	EmailSentAt *time.Time   `json:"email_sent_at,omitempty"`
}

// ServiceCounts summarises a day's workload.
type ServiceCounts struct {
	Pending   int `json:"pending"`
	Delivered int `json:"delivered"`
}

// JobRun is a row in job_history.
type JobRun struct {
	ID         int64      `json:"id"`
	JobType    string     `json:"job_type"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     JobStatus  `json:"status"`
	ItemsCount int        `json:"items_count"`
	Error      string     `json:"error,omitempty"`
}

package types

// Category identifies the kind of event a notification reports. Preferences are
// keyed by category.
type Category string

const (
	CategoryNewRequest     Category = "new_request"
	CategoryScheduleChange Category = "schedule_change"
	CategoryPastDue        Category = "past_due"
	CategoryDailySummary   Category = "daily_summary"
	CategoryServiceStatus  Category = "service_status"
)

// AllCategories lists every known category in a stable order.
var AllCategories = []Category{
	CategoryNewRequest,
	CategoryScheduleChange,
	CategoryPastDue,
	CategoryDailySummary,
	CategoryServiceStatus,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Channel identifies a delivery channel.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelPush  Channel = "push"
	ChannelEmail Channel = "email"
)

// EmailStatus tracks the email side of a notification record. A nil status on
// the record means no email attempt was planned.
type EmailStatus string

const (
	EmailStatusPending EmailStatus = "pending"
	EmailStatusSent    EmailStatus = "sent"
	EmailStatusFailed  EmailStatus = "failed"
)

// ProfileRole distinguishes the single courier from their clients.
type ProfileRole string

const (
	RoleCourier ProfileRole = "courier"
	RoleClient  ProfileRole = "client"
)

// ServiceStatus is the lifecycle state of a delivery service.
type ServiceStatus string

const (
	ServiceStatusPending   ServiceStatus = "pending"
	ServiceStatusDelivered ServiceStatus = "delivered"
	ServiceStatusCancelled ServiceStatus = "cancelled"
)

// TimeSlot is the scheduling window a service was booked into.
type TimeSlot string

const (
	TimeSlotMorning   TimeSlot = "morning"
	TimeSlotAfternoon TimeSlot = "afternoon"
	TimeSlotEvening   TimeSlot = "evening"
	TimeSlotSpecific  TimeSlot = "specific"
)

// JobStatus is the terminal state recorded in job_history.
type JobStatus string

const (
	JobStatusRunning JobStatus = "running"
	JobStatusSuccess JobStatus = "success"
	JobStatusFailed  JobStatus = "failed"
)

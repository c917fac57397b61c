package types

// ChannelPrefs toggles each delivery channel for one category.
type ChannelPrefs struct {
	InApp bool `json:"inApp"`
	Push  bool `json:"push"`
	Email bool `json:"email"`
}

// QuietHours suppresses push and email during a daily window. Start and End are
// "HH:MM" in the recipient's timezone; Start > End means the window spans midnight.
type QuietHours struct {
	Enabled bool   `json:"enabled"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

// NotificationPreferences is stored per profile as JSONB. Any category missing
// from Categories falls back to the built-in defaults.
type NotificationPreferences struct {
	Categories      map[Category]ChannelPrefs `json:"categories,omitempty"`
	QuietHours      QuietHours                `json:"quietHours"`
	WorkingDaysOnly bool                      `json:"workingDaysOnly"`
}

// PastDueSettings controls the past-due reminder job. All values are minutes.
// A ReminderIntervalMinutes of zero disables reminders.
type PastDueSettings struct {
	GracePeriodStandard     int `json:"gracePeriodStandard"`
	GracePeriodSpecific     int `json:"gracePeriodSpecific"`
	ReminderIntervalMinutes int `json:"reminderIntervalMinutes"`
}

// SlotWindow is the local "HH:MM" range of a time slot.
type SlotWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// TimeSlotDefinitions maps each bookable slot to its window.
type TimeSlotDefinitions map[TimeSlot]SlotWindow

// Default values applied when a courier has not configured their own.
const (
	DefaultTimezone                = "Europe/Lisbon"
	DefaultLocale                  = "pt-PT"
	DefaultGracePeriodStandard     = 30
	DefaultGracePeriodSpecific     = 15
	DefaultReminderIntervalMinutes = 60
)

// DefaultWorkingDays is Monday through Friday.
var DefaultWorkingDays = []string{"monday", "tuesday", "wednesday", "thursday", "friday"}

// DefaultPastDueSettings returns the settings used when none are stored.
func DefaultPastDueSettings() PastDueSettings {
	return PastDueSettings{
		GracePeriodStandard:     DefaultGracePeriodStandard,
		GracePeriodSpecific:     DefaultGracePeriodSpecific,
		ReminderIntervalMinutes: DefaultReminderIntervalMinutes,
	}
}

// DefaultTimeSlots returns the stock slot windows.
func DefaultTimeSlots() TimeSlotDefinitions {
	return TimeSlotDefinitions{
		TimeSlotMorning:   {Start: "08:00", End: "12:00"},
		TimeSlotAfternoon: {Start: "12:00", End: "17:00"},
		TimeSlotEvening:   {Start: "17:00", End: "21:00"},
	}
}

// CourierSettings is the courier-only extension of a profile.
type CourierSettings struct {
	PastDue             PastDueSettings     `json:"pastDue"`
	TimeSlots           TimeSlotDefinitions `json:"timeSlots"`
	DailySummaryEnabled bool                `json:"dailySummaryEnabled"`
}

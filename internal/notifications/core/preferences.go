package core

import (
	"context"
	"maps"

	"barecourier/internal/types"
)

// defaultCategoryPrefs is the built-in channel table used for any category a
// recipient has not configured.
var defaultCategoryPrefs = map[types.Category]types.ChannelPrefs{
	types.CategoryNewRequest:     {InApp: true, Push: true, Email: true},
	types.CategoryScheduleChange: {InApp: true, Push: true},
	types.CategoryPastDue:        {InApp: true, Push: true},
	types.CategoryDailySummary:   {InApp: true, Email: true},
	types.CategoryServiceStatus:  {InApp: true, Email: true},
}

// DefaultPreferences returns the preferences of a recipient who never changed
// anything: default channels, no quiet hours, every day allowed.
func DefaultPreferences() types.NotificationPreferences {
	return types.NotificationPreferences{
		Categories: maps.Clone(defaultCategoryPrefs),
	}
}

// ResolvePreferences fills every category missing from stored with its
// default. Configured categories are taken as stored. The result never shares
// a map with stored.
func ResolvePreferences(stored *types.NotificationPreferences) types.NotificationPreferences {
	resolved := DefaultPreferences()
	if stored == nil {
		return resolved
	}
	for category, prefs := range stored.Categories {
		resolved.Categories[category] = prefs
	}
	resolved.QuietHours = stored.QuietHours
	resolved.WorkingDaysOnly = stored.WorkingDaysOnly
	return resolved
}

// RecipientContext is everything the dispatcher needs to know about a
// recipient.
type RecipientContext struct {
	RecipientID  string
	Preferences  types.NotificationPreferences
	Timezone     string
	WorkingDays  []string
	Locale       string
	PushEnabled  bool
	EmailEnabled bool
}

// PreferenceResolver loads a recipient's profile and resolves their
// preferences.
type PreferenceResolver struct {
	profiles ProfileReader
	logger   types.Logger
}

// NewPreferenceResolver creates a PreferenceResolver.
func NewPreferenceResolver(profiles ProfileReader, logger types.Logger) *PreferenceResolver {
	if logger == nil {
		logger = types.NewSlogLogger(nil)
	}
	return &PreferenceResolver{profiles: profiles, logger: logger}
}

// Resolve always returns a usable context. A recipient without a profile gets
// default preferences with external channels disabled and no error. Store
// failures return the same degraded context together with the error.
func (r *PreferenceResolver) Resolve(ctx context.Context, recipientID string) (RecipientContext, error) {
	profile, err := r.profiles.GetByID(ctx, recipientID)
	if err != nil {
		degraded := RecipientContext{
			RecipientID: recipientID,
			Preferences: DefaultPreferences(),
			Timezone:    types.DefaultTimezone,
			WorkingDays: types.DefaultWorkingDays,
			Locale:      types.DefaultLocale,
		}
		if types.IsCode(err, types.ErrCodeNotFoundProfile) {
			r.logger.Warn("recipient profile not found, using defaults", "recipient_id", recipientID)
			return degraded, nil
		}
		return degraded, err
	}

	return RecipientContext{
		RecipientID:  recipientID,
		Preferences:  ResolvePreferences(profile.NotificationPreferences),
		Timezone:     profile.EffectiveTimezone(),
		WorkingDays:  profile.EffectiveWorkingDays(),
		Locale:       profile.EffectiveLocale(),
		PushEnabled:  profile.PushNotificationsEnabled,
		EmailEnabled: profile.EmailNotificationsEnabled,
	}, nil
}

package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"barecourier/internal/types"
)

// ProfileRepository reads the profile fields notification code depends on.
type ProfileRepository struct {
	db DBTX
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(db DBTX) *ProfileRepository {
	return &ProfileRepository{db: db}
}

const profileColumns = `id, role, COALESCE(name, ''), COALESCE(email, ''),
	COALESCE(timezone, ''), COALESCE(working_days, '{}'), COALESCE(locale, ''),
	push_notifications_enabled, email_notifications_enabled, notification_preferences`

func profileDest(p *types.Profile, prefs **types.NotificationPreferences) []any {
	return []any{
		&p.ID, &p.Role, &p.Name, &p.Email,
		&p.Timezone, &p.WorkingDays, &p.Locale,
		&p.PushNotificationsEnabled, &p.EmailNotificationsEnabled, prefs,
	}
}

// GetByID returns the profile or ErrCodeNotFoundProfile.
func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*types.Profile, error) {
	var p types.Profile
	var prefs *types.NotificationPreferences

	err := r.db.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1`,
		id,
	).Scan(profileDest(&p, &prefs)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundProfile, "profile not found", err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load profile", err)
	}
	p.NotificationPreferences = prefs
	return &p, nil
}

// GetCourier returns the single courier profile with their scheduling
// settings. Unset settings columns keep their defaults; a partially populated
// JSON document only overrides the keys it contains.
func (r *ProfileRepository) GetCourier(ctx context.Context) (*types.CourierProfile, error) {
	var cp types.CourierProfile
	var prefs *types.NotificationPreferences
	pastDue := types.DefaultPastDueSettings()
	var slots types.TimeSlotDefinitions

	dest := append(profileDest(&cp.Profile, &prefs), &pastDue, &slots, &cp.Settings.DailySummaryEnabled)
	err := r.db.QueryRow(ctx,
		`SELECT `+profileColumns+`, past_due_settings, time_slots, daily_summary_enabled
		 FROM profiles
		 WHERE role = 'courier'
		 ORDER BY created_at
		 LIMIT 1`,
	).Scan(dest...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundCourier, "courier profile not found", err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load courier profile", err)
	}

	cp.NotificationPreferences = prefs
	cp.Settings.PastDue = pastDue
	cp.Settings.TimeSlots = types.DefaultTimeSlots()
	for slot, window := range slots {
		cp.Settings.TimeSlots[slot] = window
	}
	return &cp, nil
}

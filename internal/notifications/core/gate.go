package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"barecourier/internal/types"
)

// GateDecision explains why external channels are allowed or held back.
type GateDecision struct {
	Allowed bool
	Reason  string
}

// CanSendExternal reports whether push and email may fire at now for a
// recipient in timezone. In-app delivery never consults it.
func CanSendExternal(now time.Time, prefs types.NotificationPreferences, timezone string, workingDays []string) bool {
	return EvaluateGate(now, prefs, timezone, workingDays).Allowed
}

// EvaluateGate is CanSendExternal with the reason attached. A quiet-hours
// window that does not parse is ignored so that bad data never silences a
// recipient.
func EvaluateGate(now time.Time, prefs types.NotificationPreferences, timezone string, workingDays []string) GateDecision {
	local := now.In(LoadLocation(timezone))

	if prefs.QuietHours.Enabled {
		start, errStart := ParseTimeOfDay(prefs.QuietHours.Start)
		end, errEnd := ParseTimeOfDay(prefs.QuietHours.End)
		switch {
		case errStart != nil || errEnd != nil:
			// fall through to the working-day check
		case inQuietPeriod(local, start, end):
			return GateDecision{Reason: fmt.Sprintf("quiet hours active (%s-%s)", prefs.QuietHours.Start, prefs.QuietHours.End)}
		}
	}

	if prefs.WorkingDaysOnly && !dayMatches(workingDays, weekdayName(local)) {
		return GateDecision{Reason: fmt.Sprintf("%s is not a working day", weekdayName(local))}
	}

	return GateDecision{Allowed: true, Reason: "no restriction applies"}
}

// IsWorkingDay reports whether now falls on one of workingDays in timezone.
// An empty list means every day is a working day.
func IsWorkingDay(now time.Time, timezone string, workingDays []string) bool {
	return dayMatches(workingDays, weekdayName(now.In(LoadLocation(timezone))))
}

// LoadLocation loads name, falling back to the default timezone and then UTC.
func LoadLocation(name string) *time.Location {
	if name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	if loc, err := time.LoadLocation(types.DefaultTimezone); err == nil {
		return loc
	}
	return time.UTC
}

// TimeOfDay is a wall-clock time with minute precision.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// Minutes returns minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// ParseTimeOfDay parses "HH:MM". Seconds ("HH:MM:SS") are accepted and dropped.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 || len(parts[0]) == 0 || len(parts[1]) != 2 {
		return TimeOfDay{}, types.NewAppError(types.ErrCodeValidationInvalidTimeOfDay,
			fmt.Sprintf("expected HH:MM format, got %q", s), nil)
	}
	h, errH := strconv.Atoi(parts[0])
	m, errM := strconv.Atoi(parts[1])
	if err := errors.Join(errH, errM); err != nil {
		return TimeOfDay{}, types.NewAppError(types.ErrCodeValidationInvalidTimeOfDay,
			fmt.Sprintf("expected HH:MM format, got %q", s), err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return TimeOfDay{}, types.NewAppError(types.ErrCodeValidationInvalidTimeOfDay,
			fmt.Sprintf("time out of range: %q", s), nil)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

// inQuietPeriod checks [start, end) against the local time of day. When
// start > end the window spans midnight. start == end is an empty window.
func inQuietPeriod(local time.Time, start, end TimeOfDay) bool {
	now := local.Hour()*60 + local.Minute()
	s, e := start.Minutes(), end.Minutes()
	if s <= e {
		return now >= s && now < e
	}
	return now >= s || now < e
}

func weekdayName(t time.Time) string {
	return strings.ToLower(t.Weekday().String())
}

// dayMatches compares day names case-insensitively. An empty list matches
// every day.
func dayMatches(days []string, currentDay string) bool {
	if len(days) == 0 {
		return true
	}
	for _, d := range days {
		if strings.EqualFold(strings.TrimSpace(d), currentDay) {
			return true
		}
	}
	return false
}

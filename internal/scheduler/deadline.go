package scheduler

import (
	"time"

	"barecourier/internal/notifications/core"
	"barecourier/internal/types"
)

// endOfDay is used when no slot window parses at all.
var endOfDay = core.TimeOfDay{Hour: 23, Minute: 59}

// ComputeDeadline returns the instant after which s counts as overdue: the
// end of its slot (or its requested time for "specific" slots) plus the grace
// period, on its scheduled date in loc. The wall-clock time is resolved with
// time.Date so DST transitions land on the correct instant.
//
// A "specific" service without a usable time, or a slot with no configured
// window, falls back to the end of the latest configured slot with the
// standard grace period.
func ComputeDeadline(s types.Service, settings types.CourierSettings, loc *time.Location) time.Time {
	cutoff, grace := slotCutoff(s, settings)
	y, m, d := s.ScheduledDate.Date()
	base := time.Date(y, m, d, cutoff.Hour, cutoff.Minute, 0, 0, loc)
	return base.Add(time.Duration(grace) * time.Minute)
}

func slotCutoff(s types.Service, settings types.CourierSettings) (core.TimeOfDay, int) {
	if s.ScheduledTimeSlot == types.TimeSlotSpecific {
		if tod, err := core.ParseTimeOfDay(s.ScheduledTime); err == nil {
			return tod, settings.PastDue.GracePeriodSpecific
		}
	} else if window, ok := settings.TimeSlots[s.ScheduledTimeSlot]; ok {
		if tod, err := core.ParseTimeOfDay(window.End); err == nil {
			return tod, settings.PastDue.GracePeriodStandard
		}
	}
	return latestSlotEnd(settings.TimeSlots), settings.PastDue.GracePeriodStandard
}

func latestSlotEnd(slots types.TimeSlotDefinitions) core.TimeOfDay {
	latest, found := core.TimeOfDay{}, false
	for _, window := range slots {
		tod, err := core.ParseTimeOfDay(window.End)
		if err != nil {
			continue
		}
		if !found || tod.Minutes() > latest.Minutes() {
			latest, found = tod, true
		}
	}
	if !found {
		return endOfDay
	}
	return latest
}

// eligibleForReminder reports whether enough time has passed since the last
// reminder. A service never reminded is always eligible.
func eligibleForReminder(last *time.Time, now time.Time, interval time.Duration) bool {
	return last == nil || now.Sub(*last) >= interval
}

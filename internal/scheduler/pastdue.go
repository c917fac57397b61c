package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"barecourier/internal/notifications/core"
	"barecourier/internal/types"
)

// DefaultDispatchConcurrency is how many past-due dispatches run at once.
const DefaultDispatchConcurrency = 5

// PastDueTemplate renders the reminder text.
const PastDueTemplate = "past_due"

// PastDueConfig wires a PastDueDetector.
type PastDueConfig struct {
	Couriers   CourierReader
	Services   PastDueStore
	Dispatcher Dispatcher
	Renderer   Renderer
	Metrics    core.NotificationMetrics
	Clock      types.Clock
	Logger     *slog.Logger
	// AppURL is the web app base used for service links.
	AppURL string
	// Concurrency bounds parallel dispatches. Zero uses the default.
	Concurrency int
	// FunctionTimeout is the soft budget of one run, measured on Clock. Past
	// it the retry layer stops retrying; services are still processed.
	FunctionTimeout time.Duration
}

// PastDueDetector reminds the courier about pending services past their
// deadline. Any number of detectors may run at once; the claim on
// last_past_due_notification_at decides which one notifies.
type PastDueDetector struct {
	cfg PastDueConfig
}

type claimedService struct {
	service  types.Service
	deadline time.Time
}

// NewPastDueDetector creates a PastDueDetector.
func NewPastDueDetector(cfg PastDueConfig) *PastDueDetector {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = types.RealClock{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = core.NoopMetrics{}
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultDispatchConcurrency
	}
	cfg.AppURL = strings.TrimSuffix(cfg.AppURL, "/")
	return &PastDueDetector{cfg: cfg}
}

// Run checks every pending service due today or earlier against now.
//
// Delivery is at most once per reminder interval: the claim is written before
// the dispatch, so a crash between the two loses that reminder and the next
// interval sends it.
//
// Only setup failures return an error with an empty summary. If the soft
// deadline passed and no claimed service could be notified, the summary is
// returned together with ErrCodeDeadlineExceeded.
func (d *PastDueDetector) Run(ctx context.Context, now time.Time) (PastDueSummary, error) {
	var summary PastDueSummary
	log := d.cfg.Logger.With("job", string(TaskPastDue))

	start, ok := types.GetDeadlineStart(ctx)
	if !ok {
		start = d.cfg.Clock.Now()
		ctx = types.WithDeadlineStart(ctx, start)
	}

	courier, err := d.cfg.Couriers.GetCourier(ctx)
	if err != nil {
		return summary, err
	}

	settings := courier.Settings
	if settings.PastDue.ReminderIntervalMinutes <= 0 {
		log.InfoContext(ctx, "past-due reminders disabled")
		return summary, nil
	}

	tz := courier.EffectiveTimezone()
	if !core.IsWorkingDay(now, tz, courier.EffectiveWorkingDays()) {
		log.InfoContext(ctx, "not a working day, skipping", "timezone", tz)
		return summary, nil
	}

	loc := core.LoadLocation(tz)
	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	services, err := d.cfg.Services.ListPendingDueBy(ctx, today)
	if err != nil {
		return summary, err
	}
	summary.Checked = len(services)

	interval := time.Duration(settings.PastDue.ReminderIntervalMinutes) * time.Minute
	var claimed []claimedService
	for _, s := range services {
		deadline := ComputeDeadline(s, settings, loc)
		if !now.After(deadline) {
			continue
		}
		summary.Overdue++

		if !eligibleForReminder(s.LastPastDueNotificationAt, now, interval) {
			continue
		}

		ok, err := d.cfg.Services.ClaimPastDueNotification(ctx, s.ID, s.LastPastDueNotificationAt, now)
		if err != nil {
			log.ErrorContext(ctx, "failed to claim past-due reminder", "service_id", s.ID, "error", err)
			continue
		}
		if !ok {
			log.DebugContext(ctx, "past-due reminder already claimed", "service_id", s.ID)
			continue
		}
		claimed = append(claimed, claimedService{service: s, deadline: deadline})
	}

	var notified atomic.Int64
	var g errgroup.Group
	g.SetLimit(d.cfg.Concurrency)
	for _, c := range claimed {
		g.Go(func() error {
			if d.notify(ctx, log, courier, c, now) {
				notified.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	summary.Notified = int(notified.Load())

	d.cfg.Metrics.RecordPastDueRun(ctx, summary.Checked, summary.Overdue, summary.Notified)
	log.InfoContext(ctx, "past-due check complete",
		"checked", summary.Checked,
		"overdue", summary.Overdue,
		"claimed", len(claimed),
		"notified", summary.Notified,
	)

	if d.deadlinePassed(start) && len(claimed) > 0 && summary.Notified == 0 {
		return summary, types.NewAppError(types.ErrCodeDeadlineExceeded,
			fmt.Sprintf("function deadline of %s reached before any reminder was delivered", d.cfg.FunctionTimeout), nil)
	}
	return summary, nil
}

// notify dispatches one reminder and reports whether any channel delivered it.
func (d *PastDueDetector) notify(ctx context.Context, log *slog.Logger, courier *types.CourierProfile, c claimedService, now time.Time) bool {
	s := c.service
	loc := c.deadline.Location()
	data := map[string]any{
		"courierName":      courier.Name,
		"clientName":       s.ClientName,
		"scheduledDate":    s.ScheduledDate.Format(time.DateOnly),
		"slotLabel":        slotLabel(s),
		"deadline":         c.deadline.In(loc).Format("15:04"),
		"minutesLate":      int(now.Sub(c.deadline).Minutes()),
		"pickupLocation":   s.PickupLocation,
		"deliveryLocation": s.DeliveryLocation,
		"url":              d.serviceURL(s.ID),
	}

	title, message := d.reminderText(ctx, log, courier.EffectiveLocale(), data)
	serviceID := s.ID
	res, err := d.cfg.Dispatcher.Dispatch(ctx, core.DispatchRequest{
		RecipientID:   courier.ID,
		Category:      types.CategoryPastDue,
		Title:         title,
		Message:       message,
		ServiceRef:    &serviceID,
		URL:           d.serviceURL(s.ID),
		EmailTemplate: PastDueTemplate,
		EmailData:     data,
	})
	if err != nil {
		log.ErrorContext(ctx, "past-due dispatch rejected", "service_id", s.ID, "error", err)
		return false
	}
	delivered := res.InApp.Success || (res.Push != nil && res.Push.Success) || (res.Email != nil && res.Email.Success)
	if !delivered {
		log.WarnContext(ctx, "past-due reminder not delivered on any channel", "service_id", s.ID)
	}
	return delivered
}

func (d *PastDueDetector) reminderText(ctx context.Context, log *slog.Logger, locale string, data map[string]any) (string, string) {
	if d.cfg.Renderer != nil {
		out, err := d.cfg.Renderer.Render(PastDueTemplate, locale, data)
		if err == nil {
			return out.Subject, out.Short
		}
		log.WarnContext(ctx, "failed to render past-due text, using plain text", "error", err)
	}
	return fmt.Sprintf("Service past due: %v", data["clientName"]),
		fmt.Sprintf("The service for %v on %v is %v min past its deadline (%v).",
			data["clientName"], data["scheduledDate"], data["minutesLate"], data["deadline"])
}

func (d *PastDueDetector) serviceURL(id string) string {
	return d.cfg.AppURL + "/services/" + id
}

func (d *PastDueDetector) deadlinePassed(start time.Time) bool {
	if d.cfg.FunctionTimeout <= 0 {
		return false
	}
	return d.cfg.Clock.Now().Sub(start) >= d.cfg.FunctionTimeout
}

func slotLabel(s types.Service) string {
	if s.ScheduledTimeSlot == types.TimeSlotSpecific && s.ScheduledTime != "" {
		return s.ScheduledTime
	}
	return string(s.ScheduledTimeSlot)
}

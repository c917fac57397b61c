package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"barecourier/internal/notifications/core"
	"barecourier/internal/types"
)

// DailySummaryTemplate renders the morning summary.
const DailySummaryTemplate = "daily_summary"

// dailySummaryLockTTL outlives the local day so a late retry cannot send a
// second summary.
const dailySummaryLockTTL = 36 * time.Hour

// DailySummaryConfig wires a DailySummaryJob.
type DailySummaryConfig struct {
	Couriers   CourierReader
	Services   ServiceCounter
	Locks      JobLocker
	Dispatcher Dispatcher
	Renderer   Renderer
	Logger     *slog.Logger
	AppURL     string
	// WorkerID identifies this process in job_locks. Defaults to the hostname.
	WorkerID string
}

// DailySummaryJob sends the courier one summary of today's services per local
// day.
type DailySummaryJob struct {
	cfg DailySummaryConfig
}

// NewDailySummaryJob creates a DailySummaryJob.
func NewDailySummaryJob(cfg DailySummaryConfig) *DailySummaryJob {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.WorkerID == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "unknown"
		}
		cfg.WorkerID = fmt.Sprintf("%s-%d", host, os.Getpid())
	}
	cfg.AppURL = strings.TrimSuffix(cfg.AppURL, "/")
	return &DailySummaryJob{cfg: cfg}
}

// Run sends today's summary and returns how many summaries were dispatched
// (zero or one).
func (j *DailySummaryJob) Run(ctx context.Context, now time.Time) (int, error) {
	log := j.cfg.Logger.With("job", string(TaskDailySummary))

	courier, err := j.cfg.Couriers.GetCourier(ctx)
	if err != nil {
		return 0, err
	}
	if !courier.Settings.DailySummaryEnabled {
		log.InfoContext(ctx, "daily summary disabled")
		return 0, nil
	}

	tz := courier.EffectiveTimezone()
	loc := core.LoadLocation(tz)
	local := now.In(loc)
	if !core.IsWorkingDay(now, tz, courier.EffectiveWorkingDays()) {
		log.InfoContext(ctx, "not a working day, skipping", "timezone", tz)
		return 0, nil
	}
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	date := today.Format(time.DateOnly)

	lockID := "daily_summary:" + date
	acquired, err := j.cfg.Locks.Acquire(ctx, lockID, j.cfg.WorkerID, dailySummaryLockTTL)
	if err != nil {
		return 0, err
	}
	if !acquired {
		log.InfoContext(ctx, "daily summary already sent", "lock_id", lockID)
		return 0, nil
	}

	counts, err := j.cfg.Services.CountForDate(ctx, today)
	if err != nil {
		return 0, err
	}

	data := map[string]any{
		"courierName": courier.Name,
		"date":        date,
		"pending":     counts.Pending,
		"delivered":   counts.Delivered,
		"url":         j.cfg.AppURL + "/schedule?date=" + date,
	}
	title := fmt.Sprintf("Today: %d pending, %d delivered", counts.Pending, counts.Delivered)
	message := title
	if j.cfg.Renderer != nil {
		if out, err := j.cfg.Renderer.Render(DailySummaryTemplate, courier.EffectiveLocale(), data); err == nil {
			title, message = out.Subject, out.Short
		} else {
			log.WarnContext(ctx, "failed to render daily summary text, using plain text", "error", err)
		}
	}

	res, err := j.cfg.Dispatcher.Dispatch(ctx, core.DispatchRequest{
		RecipientID:   courier.ID,
		Category:      types.CategoryDailySummary,
		Title:         title,
		Message:       message,
		URL:           data["url"].(string),
		EmailTemplate: DailySummaryTemplate,
		EmailData:     data,
	})
	if err != nil {
		return 0, err
	}

	log.InfoContext(ctx, "daily summary dispatched",
		"date", date,
		"pending", counts.Pending,
		"delivered", counts.Delivered,
		"in_app", res.InApp.Success,
	)
	return 1, nil
}

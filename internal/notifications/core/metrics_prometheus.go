package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"barecourier/internal/types"
)

// PrometheusNotificationMetrics exposes the same metrics for scraping. Used by
// the long-running API and scheduler binaries.
type PrometheusNotificationMetrics struct {
	deliveries      *prometheus.CounterVec
	latency         *prometheus.HistogramVec
	pastDueChecked  prometheus.Counter
	pastDueOverdue  prometheus.Counter
	pastDueNotified prometheus.Counter
	pastDueRuns     prometheus.Counter
}

var _ NotificationMetrics = (*PrometheusNotificationMetrics)(nil)

// NewPrometheusNotificationMetrics registers the collectors on reg.
func NewPrometheusNotificationMetrics(reg prometheus.Registerer) *PrometheusNotificationMetrics {
	f := promauto.With(reg)
	return &PrometheusNotificationMetrics{
		deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "barecourier_delivery_attempts_total",
			Help: "Notification delivery outcomes by channel and result",
		}, []string{"channel", "result"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "barecourier_delivery_latency_seconds",
			Help:    "Time spent delivering to an external channel, retries included",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"channel"}),
		pastDueChecked: f.NewCounter(prometheus.CounterOpts{
			Name: "barecourier_past_due_checked_total",
			Help: "Pending services inspected by the past-due detector",
		}),
		pastDueOverdue: f.NewCounter(prometheus.CounterOpts{
			Name: "barecourier_past_due_overdue_total",
			Help: "Services found past their deadline",
		}),
		pastDueNotified: f.NewCounter(prometheus.CounterOpts{
			Name: "barecourier_past_due_notified_total",
			Help: "Past-due reminders dispatched",
		}),
		pastDueRuns: f.NewCounter(prometheus.CounterOpts{
			Name: "barecourier_past_due_runs_total",
			Help: "Completed past-due detector runs",
		}),
	}
}

func (m *PrometheusNotificationMetrics) RecordDelivery(_ context.Context, channel types.Channel, result MetricResult) {
	m.deliveries.WithLabelValues(string(channel), string(result)).Inc()
}

func (m *PrometheusNotificationMetrics) RecordLatency(_ context.Context, channel types.Channel, duration time.Duration) {
	m.latency.WithLabelValues(string(channel)).Observe(duration.Seconds())
}

func (m *PrometheusNotificationMetrics) RecordPastDueRun(_ context.Context, checked, overdue, notified int) {
	m.pastDueRuns.Inc()
	m.pastDueChecked.Add(float64(checked))
	m.pastDueOverdue.Add(float64(overdue))
	m.pastDueNotified.Add(float64(notified))
}

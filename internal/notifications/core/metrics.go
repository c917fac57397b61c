package core

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"barecourier/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchNotificationMetrics emits metrics to CloudWatch. Used by the
// Lambda binaries, which have no scrape endpoint.
//
// Metrics emitted:
//   - DeliveryAttempt: Dims {Channel, Result}
//   - DeliveryLatency: Dims {Channel}
//   - PastDueChecked, PastDueOverdue, PastDueNotified: once per detector run
type CloudWatchNotificationMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

var _ NotificationMetrics = (*CloudWatchNotificationMetrics)(nil)

// NewCloudWatchNotificationMetrics creates a CloudWatchNotificationMetrics. An
// empty namespace uses types.MetricNamespace.
func NewCloudWatchNotificationMetrics(client CloudWatchClient, namespace string, logger types.Logger) *CloudWatchNotificationMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	return &CloudWatchNotificationMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordDelivery emits a DeliveryAttempt count with Channel and Result dimensions.
func (m *CloudWatchNotificationMetrics) RecordDelivery(ctx context.Context, channel types.Channel, result MetricResult) {
	m.put(ctx, "delivery", cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricDeliveryAttempt),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(types.DimChannel), Value: aws.String(string(channel))},
			{Name: aws.String(types.DimResult), Value: aws.String(string(result))},
		},
	})
}

// RecordLatency emits DeliveryLatency in milliseconds.
func (m *CloudWatchNotificationMetrics) RecordLatency(ctx context.Context, channel types.Channel, duration time.Duration) {
	m.put(ctx, "latency", cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricDeliveryLatency),
		Value:      aws.Float64(float64(duration.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(types.DimChannel), Value: aws.String(string(channel))},
		},
	})
}

// RecordPastDueRun emits the three counters of one detector run in a single call.
func (m *CloudWatchNotificationMetrics) RecordPastDueRun(ctx context.Context, checked, overdue, notified int) {
	count := func(name string, v int) cwtypes.MetricDatum {
		return cwtypes.MetricDatum{
			MetricName: aws.String(name),
			Value:      aws.Float64(float64(v)),
			Unit:       cwtypes.StandardUnitCount,
		}
	}
	m.put(ctx, "past_due",
		count(types.MetricPastDueChecked, checked),
		count(types.MetricPastDueOverdue, overdue),
		count(types.MetricPastDueNotified, notified),
	)
}

func (m *CloudWatchNotificationMetrics) put(ctx context.Context, kind string, data ...cwtypes.MetricDatum) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record metric",
			"kind", kind,
			"error", err.Error(),
		)
	}
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

var _ NotificationMetrics = NoopMetrics{}

func (NoopMetrics) RecordDelivery(context.Context, types.Channel, MetricResult) {}
func (NoopMetrics) RecordLatency(context.Context, types.Channel, time.Duration) {}
func (NoopMetrics) RecordPastDueRun(context.Context, int, int, int)             {}

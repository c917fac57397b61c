package types

// Metric names and dimensions shared by the CloudWatch and Prometheus
// implementations.
const (
	MetricDeliveryAttempt = "DeliveryAttempt"
	MetricDeliverySuccess = "DeliverySuccess"
	MetricDeliveryFailed  = "DeliveryFailed"
	MetricDeliveryLatency = "DeliveryLatency"
	MetricPastDueChecked  = "PastDueChecked"
	MetricPastDueOverdue  = "PastDueOverdue"
	MetricPastDueNotified = "PastDueNotified"

	DimChannel = "Channel"
	DimResult  = "Result"

	MetricNamespace = "BareCourier"
)

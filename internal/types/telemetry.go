package types

// Telemetry metric names for CloudWatch.
const (
	// Metric Names
	MetricDeliveryAttempt = "EmailDeliveryAttempt"
	MetricDeliveryLatency = "EmailDeliveryLatency"
	MetricQueueLag        = "EmailQueueLag"

	// Dimension Keys
	DimKind     = "Kind"
	DimOutcome  = "Outcome"
	DimProvider = "Provider"

	// Metric Namespace
	MetricNamespace = "EventMail"
)

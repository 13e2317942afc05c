// Package telemetry publishes delivery metrics to AWS CloudWatch.
package telemetry

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"eventmail/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchMetrics emits delivery metrics to CloudWatch. Publishing failures
// are logged and never surface to the send path.
//
// Metrics emitted:
//   - EmailDeliveryAttempt: Dims {Provider, Kind, Outcome}, one per send
//   - EmailDeliveryLatency: Dims {Provider, Kind}, provider round trip
//   - EmailQueueLag: no dims, SQS enqueue to worker pickup
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	provider  string
	logger    types.Logger
}

// NewCloudWatchMetrics creates a CloudWatchMetrics for namespace. An empty
// namespace uses types.MetricNamespace.
func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger types.Logger) *CloudWatchMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	return &CloudWatchMetrics{
		client:    client,
		namespace: namespace,
		provider:  "sendgrid",
		logger:    logger,
	}
}

// RecordDelivery emits an EmailDeliveryAttempt count.
func (m *CloudWatchMetrics) RecordDelivery(ctx context.Context, kind types.EmailKind, outcome types.DeliveryOutcome) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricDeliveryAttempt),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(types.DimProvider), Value: aws.String(m.provider)},
			{Name: aws.String(types.DimKind), Value: aws.String(string(kind))},
			{Name: aws.String(types.DimOutcome), Value: aws.String(string(outcome))},
		},
	}, "kind", string(kind), "outcome", string(outcome))
}

// RecordLatency emits the provider round trip in milliseconds.
func (m *CloudWatchMetrics) RecordLatency(ctx context.Context, kind types.EmailKind, duration time.Duration) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricDeliveryLatency),
		Value:      aws.Float64(float64(duration.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(types.DimProvider), Value: aws.String(m.provider)},
			{Name: aws.String(types.DimKind), Value: aws.String(string(kind))},
		},
	}, "kind", string(kind), "duration_ms", duration.Milliseconds())
}

// RecordQueueLag emits the time between SQS enqueue and worker pickup.
func (m *CloudWatchMetrics) RecordQueueLag(ctx context.Context, lag time.Duration) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricQueueLag),
		Value:      aws.Float64(float64(lag.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
	}, "lag_ms", lag.Milliseconds())
}

func (m *CloudWatchMetrics) put(ctx context.Context, datum cwtypes.MetricDatum, logArgs ...any) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{datum},
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		args := append([]any{"error", err.Error(), "metric", aws.ToString(datum.MetricName)}, logArgs...)
		m.logger.Error("failed to record metric", args...)
	}
}

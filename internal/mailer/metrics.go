package mailer

import (
	"context"
	"time"

	"eventmail/internal/types"
)

// Metrics receives one observation per completed send.
type Metrics interface {
	RecordDelivery(ctx context.Context, kind types.EmailKind, outcome types.DeliveryOutcome)
	RecordLatency(ctx context.Context, kind types.EmailKind, duration time.Duration)
}

// NoopMetrics discards all observations.
type NoopMetrics struct{}

func (NoopMetrics) RecordDelivery(context.Context, types.EmailKind, types.DeliveryOutcome) {}
func (NoopMetrics) RecordLatency(context.Context, types.EmailKind, time.Duration)          {}

var _ Metrics = NoopMetrics{}

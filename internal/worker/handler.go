// Package worker implements the SQS Lambda handler that drains the email
// queue. Each record carries one types.MailRequest.
//
// Records are processed concurrently up to a fixed limit. Lambda partial
// batch responses report only the records worth redelivering:
//
//   - malformed body, validation failure, permanent provider rejection: ACK
//   - throttling, provider outage, transport failure: batch item failure
package worker

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"golang.org/x/sync/errgroup"

	"eventmail/internal/mailer"
	"eventmail/internal/types"
)

// Sender delivers one request. Implemented by *mailer.Mailer.
type Sender interface {
	Deliver(ctx context.Context, req types.MailRequest) (string, error)
}

// DeliveryRecorder persists the outcome of each attempt. Implemented by
// *db.DeliveryRepository.
type DeliveryRecorder interface {
	Record(ctx context.Context, rec *types.DeliveryRecord) error
}

// QueueMetrics observes how long messages waited in the queue.
type QueueMetrics interface {
	RecordQueueLag(ctx context.Context, lag time.Duration)
}

// Config holds the dependencies for a Handler. Recorder and Metrics are
// optional.
type Config struct {
	Sender      Sender
	Recorder    DeliveryRecorder
	Metrics     QueueMetrics
	Concurrency int
	Clock       types.Clock
	Logger      types.Logger
}

// Handler processes SQS events for the email worker Lambda.
type Handler struct {
	sender      Sender
	recorder    DeliveryRecorder
	metrics     QueueMetrics
	concurrency int
	clock       types.Clock
	logger      types.Logger
}

// NewHandler creates a Handler. Concurrency below one is treated as one.
func NewHandler(cfg Config) *Handler {
	h := &Handler{
		sender:      cfg.Sender,
		recorder:    cfg.Recorder,
		metrics:     cfg.Metrics,
		concurrency: max(cfg.Concurrency, 1),
		clock:       cfg.Clock,
		logger:      cfg.Logger,
	}
	if h.clock == nil {
		h.clock = types.RealClock{}
	}
	if h.logger == nil {
		h.logger = types.NewSlogAdapter(nil)
	}
	return h
}

// Handle processes an SQS event. It never returns an error; failures that
// should be retried are listed in BatchItemFailures, in record order.
func (h *Handler) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	retry := make([]bool, len(sqsEvent.Records))

	var g errgroup.Group
	g.SetLimit(h.concurrency)

	for i, record := range sqsEvent.Records {
		i, record := i, record
		g.Go(func() error {
			retry[i] = h.processMessage(ctx, record)
			return nil
		})
	}
	_ = g.Wait()

	response := events.SQSEventResponse{}
	for i, record := range sqsEvent.Records {
		if retry[i] {
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId},
			)
		}
	}

	h.logger.Info("email batch processed",
		"records", len(sqsEvent.Records),
		"retries", len(response.BatchItemFailures),
	)
	return response, nil
}

// processMessage handles one record and reports whether SQS should redeliver it.
func (h *Handler) processMessage(ctx context.Context, record events.SQSMessage) bool {
	var req types.MailRequest
	if err := json.Unmarshal([]byte(record.Body), &req); err != nil {
		h.logger.Error("failed to unmarshal mail request",
			"message_id", record.MessageId,
			"error", err.Error(),
		)
		// Permanent parse failure; ACK.
		return false
	}

	if req.TraceID == "" {
		req.TraceID = record.MessageId
	}
	logger := h.logger.With(
		"message_id", record.MessageId,
		"trace_id", req.TraceID,
		"kind", string(req.Kind),
	)
	ctx = types.WithRequestID(ctx, req.TraceID)
	ctx = types.WithLogger(ctx, logger)

	h.recordQueueLag(ctx, record)

	msgID, err := h.sender.Deliver(ctx, req)
	outcome := mailer.OutcomeOf(err)
	retry := err != nil && mailer.Retryable(err)

	h.record(ctx, logger, req, outcome, msgID, err)

	switch {
	case err == nil:
		return false
	case retry:
		logger.Warn("email delivery will be retried", "outcome", string(outcome), "error", err.Error())
	default:
		logger.Error("email delivery permanently failed", "outcome", string(outcome), "error", err.Error())
	}
	return retry
}

func (h *Handler) record(ctx context.Context, logger types.Logger, req types.MailRequest, outcome types.DeliveryOutcome, msgID string, err error) {
	if h.recorder == nil {
		return
	}

	rec := &types.DeliveryRecord{
		Kind:              req.Kind,
		Outcome:           outcome,
		ProviderMessageID: msgID,
		TraceID:           req.TraceID,
		CreatedAt:         h.clock.Now(),
	}
	if req.Recipient != nil {
		rec.RecipientEmail = req.Recipient.Email
	}
	if err != nil {
		rec.ErrorCode = string(mailer.ErrorCodeOf(err))
		rec.ErrorMessage = err.Error()
	}

	if recErr := h.recorder.Record(ctx, rec); recErr != nil {
		// The send already happened; a lost audit row must not trigger a resend.
		logger.Error("failed to record email delivery", "error", recErr.Error())
	}
}

func (h *Handler) recordQueueLag(ctx context.Context, record events.SQSMessage) {
	if h.metrics == nil {
		return
	}
	sent, ok := record.Attributes["SentTimestamp"]
	if !ok {
		return
	}
	sentAt, err := parseMillisTimestamp(sent)
	if err != nil {
		return
	}
	h.metrics.RecordQueueLag(ctx, h.clock.Now().Sub(sentAt))
}

// parseMillisTimestamp parses a millisecond-epoch string, as used by the SQS
// SentTimestamp attribute.
func parseMillisTimestamp(ms string) (time.Time, error) {
	millis, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(millis), nil
}

var _ Sender = (*mailer.Mailer)(nil)

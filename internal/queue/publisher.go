// Package queue provides the SQS producer that hands email requests to the
// email worker.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"eventmail/internal/types"
)

// KindAttribute is the SQS message attribute carrying the email kind.
const KindAttribute = "kind"

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Publisher serializes MailRequests and sends them to the email queue.
type Publisher struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

// NewPublisher creates a Publisher for queueURL.
func NewPublisher(client SQSSender, queueURL string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
	}
}

// Enqueue sends req to the email queue and returns the SQS message id. A
// missing TraceID is filled from the context request id, or a new UUID.
func (p *Publisher) Enqueue(ctx context.Context, req types.MailRequest) (string, error) {
	if req.TraceID == "" {
		req.TraceID = types.GetRequestID(ctx)
	}
	if req.TraceID == "" {
		req.TraceID = uuid.New().String()
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("queue: failed to marshal MailRequest: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			KindAttribute: {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(req.Kind)),
			},
		},
	}

	out, err := p.client.SendMessage(ctx, input)
	if err != nil {
		return "", fmt.Errorf("queue: failed to send MailRequest to %s: %w", p.queueURL, err)
	}

	msgID := aws.ToString(out.MessageId)
	p.logger.InfoContext(ctx, "email request enqueued",
		"queue_url", p.queueURL,
		"message_id", msgID,
		"trace_id", req.TraceID,
		"kind", string(req.Kind),
	)

	return msgID, nil
}

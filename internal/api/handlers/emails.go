// Package handlers contains the HTTP handlers for the eventmail API.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"eventmail/internal/core"
	"eventmail/internal/mailer"
	"eventmail/internal/types"
)

// MailService validates and delivers email requests. Implemented by
// *mailer.Mailer.
type MailService interface {
	Validate(req types.MailRequest) error
	Deliver(ctx context.Context, req types.MailRequest) (string, error)
}

// MailQueue hands requests to the email worker. Implemented by
// *queue.Publisher.
type MailQueue interface {
	Enqueue(ctx context.Context, req types.MailRequest) (string, error)
}

// DeliveryRecorder persists synchronous send outcomes. Implemented by
// *db.DeliveryRepository.
type DeliveryRecorder interface {
	Record(ctx context.Context, rec *types.DeliveryRecord) error
}

// SendEmailRequest is the body of POST /v1/emails/{kind}.
type SendEmailRequest struct {
	Recipient *types.Recipient    `json:"recipient"`
	Event     *types.EventContext `json:"event,omitempty"`
}

// QueuedResponse is returned when a request was accepted for async delivery.
type QueuedResponse struct {
	MessageID string `json:"message_id"`
	TraceID   string `json:"trace_id"`
}

// SentResponse is returned when the provider accepted a synchronous send.
type SentResponse struct {
	ProviderMessageID string `json:"provider_message_id,omitempty"`
	TraceID           string `json:"trace_id"`
}

// EmailHandler serves the send endpoint. With a queue configured requests are
// validated and enqueued (202); otherwise they are delivered inline (200).
type EmailHandler struct {
	mailer   MailService
	queue    MailQueue
	recorder DeliveryRecorder
	clock    types.Clock
	logger   *slog.Logger
}

// NewEmailHandler creates an EmailHandler. queue and recorder may be nil.
func NewEmailHandler(svc MailService, queue MailQueue, recorder DeliveryRecorder, logger *slog.Logger) *EmailHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmailHandler{
		mailer:   svc,
		queue:    queue,
		recorder: recorder,
		clock:    types.RealClock{},
		logger:   logger,
	}
}

// RegisterRoutes mounts the email routes on r.
func (h *EmailHandler) RegisterRoutes(r chi.Router) {
	r.Post("/emails/{kind}", h.Send)
}

// Send handles POST /v1/emails/{kind}. Validation runs before any queue or
// provider call, so a bad request never reaches SendGrid.
func (h *EmailHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body SendEmailRequest
	if err := core.DecodeJSON(w, r, &body); err != nil {
		core.Error(w, r, err)
		return
	}

	req := types.MailRequest{
		Kind:      types.EmailKind(chi.URLParam(r, "kind")),
		Recipient: body.Recipient,
		Event:     body.Event,
		TraceID:   types.GetRequestID(ctx),
	}

	if err := h.mailer.Validate(req); err != nil {
		core.Error(w, r, err)
		return
	}

	if h.queue != nil {
		msgID, err := h.queue.Enqueue(ctx, req)
		if err != nil {
			h.logger.ErrorContext(ctx, "failed to enqueue email",
				"kind", string(req.Kind),
				"error", err.Error(),
			)
			core.Error(w, r, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to queue email", err))
			return
		}
		core.JSON(w, r, http.StatusAccepted, core.APIResponse{
			Data: QueuedResponse{MessageID: msgID, TraceID: req.TraceID},
		})
		return
	}

	msgID, err := h.mailer.Deliver(ctx, req)
	h.record(ctx, req, msgID, err)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data: SentResponse{ProviderMessageID: msgID, TraceID: req.TraceID},
	})
}

func (h *EmailHandler) record(ctx context.Context, req types.MailRequest, msgID string, err error) {
	if h.recorder == nil {
		return
	}

	rec := &types.DeliveryRecord{
		Kind:              req.Kind,
		RecipientEmail:    req.Recipient.Email,
		Outcome:           mailer.OutcomeOf(err),
		ProviderMessageID: msgID,
		TraceID:           req.TraceID,
		CreatedAt:         h.clock.Now(),
	}
	if err != nil {
		rec.ErrorCode = string(mailer.ErrorCodeOf(err))
		rec.ErrorMessage = err.Error()
	}

	if recErr := h.recorder.Record(ctx, rec); recErr != nil {
		h.logger.ErrorContext(ctx, "failed to record email delivery", "error", recErr.Error())
	}
}

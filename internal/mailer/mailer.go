// Package mailer turns domain email requests into provider sends. It owns the
// four transactional emails (account activation, event invitation,
// invitation answer, event cancellation), validates their arguments before
// any I/O, and normalizes every failure into a *types.AppError.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"eventmail/internal/external"
	"eventmail/internal/types"
)

const eventDateLayout = "Mon, Jan 2 2006 at 3:04 PM MST"

// Config holds the dependencies needed to create a Mailer.
type Config struct {
	Provider external.EmailProvider
	// Renderer is built from the embedded templates when nil.
	Renderer *Renderer
	// TemplateIDs maps a kind to a provider-side dynamic template. Kinds
	// without an entry are rendered locally.
	TemplateIDs map[types.EmailKind]string
	Sender      types.SenderIdentity
	// PublicURL is the web app base used for activation links.
	PublicURL string
	Metrics   Metrics
	Clock     types.Clock
	Logger    types.Logger
}

// Mailer sends the transactional emails. It holds only immutable state and is
// safe for concurrent use.
type Mailer struct {
	provider    external.EmailProvider
	renderer    *Renderer
	templateIDs map[types.EmailKind]string
	sender      types.SenderIdentity
	publicURL   string
	validate    *validator.Validate
	metrics     Metrics
	clock       types.Clock
	logger      types.Logger
}

// New creates a Mailer. It fails when no provider is given or the embedded
// templates do not parse.
func New(cfg Config) (*Mailer, error) {
	if cfg.Provider == nil {
		return nil, errors.New("mailer: provider is required")
	}

	renderer := cfg.Renderer
	if renderer == nil {
		var err error
		if renderer, err = NewRenderer(); err != nil {
			return nil, err
		}
	}

	ids := make(map[types.EmailKind]string, len(cfg.TemplateIDs))
	for k, v := range cfg.TemplateIDs {
		ids[k] = v
	}

	m := &Mailer{
		provider:    cfg.Provider,
		renderer:    renderer,
		templateIDs: ids,
		sender:      cfg.Sender,
		publicURL:   strings.TrimSuffix(cfg.PublicURL, "/"),
		validate:    newValidator(),
		metrics:     cfg.Metrics,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
	}
	if m.metrics == nil {
		m.metrics = NoopMetrics{}
	}
	if m.clock == nil {
		m.clock = types.RealClock{}
	}
	if m.logger == nil {
		m.logger = types.NewSlogAdapter(slog.Default())
	}
	return m, nil
}

// SendActivationEmail sends the account activation email to recipient.
func (m *Mailer) SendActivationEmail(ctx context.Context, recipient *types.Recipient) error {
	_, err := m.deliver(ctx, types.EmailActivation, recipient, nil)
	return err
}

// SendEventInvitation tells recipient they have been invited to an event.
func (m *Mailer) SendEventInvitation(ctx context.Context, recipient *types.Recipient) error {
	_, err := m.deliver(ctx, types.EmailEventInvitation, recipient, nil)
	return err
}

// AnswerEventInvitation confirms that recipient's answer to an invitation was
// recorded.
func (m *Mailer) AnswerEventInvitation(ctx context.Context, recipient *types.Recipient) error {
	_, err := m.deliver(ctx, types.EmailInvitationAnswer, recipient, nil)
	return err
}

// CancelEvent tells recipient that event has been cancelled.
func (m *Mailer) CancelEvent(ctx context.Context, event *types.EventContext, recipient *types.Recipient) error {
	_, err := m.deliver(ctx, types.EmailEventCancellation, recipient, event)
	return err
}

// Dispatch sends the email described by req.
func (m *Mailer) Dispatch(ctx context.Context, req types.MailRequest) error {
	_, err := m.Deliver(ctx, req)
	return err
}

// Deliver sends the email described by req and returns the provider's message
// id. The event is used by every kind except activation.
func (m *Mailer) Deliver(ctx context.Context, req types.MailRequest) (string, error) {
	event := req.Event
	if req.Kind == types.EmailActivation {
		event = nil
	}
	return m.deliver(ctx, req.Kind, req.Recipient, event)
}

// Validate runs the same argument checks as Deliver without sending.
func (m *Mailer) Validate(req types.MailRequest) error {
	event := req.Event
	if req.Kind == types.EmailActivation {
		event = nil
	}
	return m.checkRequest(req.Kind, req.Recipient, event)
}

// DispatchAsync sends req on a new goroutine and calls cb exactly once with
// the result. A panic during the send is reported to cb as an internal error.
func (m *Mailer) DispatchAsync(ctx context.Context, req types.MailRequest, cb func(error)) {
	go func() {
		var err error
		func() {
			defer func() {
				if p := recover(); p != nil {
					err = types.NewAppError(types.ErrCodeInternalUnexpected,
						fmt.Sprintf("mailer: panic during send: %v", p), nil)
				}
			}()
			err = m.Dispatch(ctx, req)
		}()
		if cb != nil {
			cb(err)
		}
	}()
}

// deliver is the single send path shared by every operation.
func (m *Mailer) deliver(ctx context.Context, kind types.EmailKind, recipient *types.Recipient, event *types.EventContext) (string, error) {
	logger := m.loggerFor(ctx).With("kind", string(kind))

	if err := m.checkRequest(kind, recipient, event); err != nil {
		logger.Warn("email request rejected", "error", err.Error())
		return "", err
	}

	input, err := m.compose(kind, recipient, event)
	if err != nil {
		logger.Error("email composition failed", "error", err.Error())
		return "", err
	}

	start := m.clock.Now()
	msgID, err := m.provider.Send(ctx, input)
	elapsed := m.clock.Now().Sub(start)

	err = normalize(err)
	outcome := OutcomeOf(err)
	m.metrics.RecordDelivery(ctx, kind, outcome)
	m.metrics.RecordLatency(ctx, kind, elapsed)

	if err != nil {
		logger.Warn("email delivery failed",
			"dest", RedactEmail(recipient.Email),
			"reference_id", input.ReferenceID,
			"outcome", string(outcome),
			"error", err.Error(),
		)
		return "", err
	}

	logger.Info("email delivered",
		"dest", RedactEmail(recipient.Email),
		"reference_id", input.ReferenceID,
		"provider_message_id", msgID,
		"duration_ms", elapsed.Milliseconds(),
	)
	return msgID, nil
}

// compose builds the provider input for one email, either from a dynamic
// template id or from the locally rendered templates.
func (m *Mailer) compose(kind types.EmailKind, recipient *types.Recipient, event *types.EventContext) (types.SendInput, error) {
	data := m.templateData(kind, recipient, event)

	input := types.SendInput{
		To:          recipient.Email,
		ToName:      recipient.Name,
		From:        m.sender,
		ReferenceID: uuid.NewString(),
		Categories:  []string{string(kind)},
	}

	if id := m.templateIDs[kind]; id != "" {
		input.TemplateID = id
		input.TemplateData = data.dynamicData()
		return input, nil
	}

	rendered, err := m.renderer.Render(kind, data)
	if err != nil {
		return types.SendInput{}, types.NewAppError(types.ErrCodeInternalTemplate, "failed to render email", err)
	}
	input.Subject = rendered.Subject
	input.BodyHTML = rendered.BodyHTML
	input.BodyText = rendered.BodyText
	return input, nil
}

func (m *Mailer) templateData(kind types.EmailKind, recipient *types.Recipient, event *types.EventContext) templateData {
	data := templateData{
		ProductName:   m.sender.Name,
		RecipientName: recipient.Name,
	}
	if data.ProductName == "" {
		data.ProductName = "EventMail"
	}
	if data.RecipientName == "" {
		data.RecipientName = "there"
	}

	if event != nil {
		data.EventTitle = event.Title
		data.EventLocation = event.Location
		data.Organizer = event.Organizer
		if !event.StartsAt.IsZero() {
			data.EventDate = event.StartsAt.UTC().Format(eventDateLayout)
		}
	}

	switch kind {
	case types.EmailActivation:
		data.Subject = "Activate your " + data.ProductName + " account"
		if recipient.ActivationToken != "" && m.publicURL != "" {
			data.ActivationURL = m.publicURL + "/activate/" + url.PathEscape(recipient.ActivationToken)
		}
	case types.EmailEventInvitation:
		data.Subject = withTitle("You're invited", data.EventTitle)
	case types.EmailInvitationAnswer:
		data.Subject = withTitle("Your answer has been recorded", data.EventTitle)
	case types.EmailEventCancellation:
		data.Subject = withTitle("Event cancelled", data.EventTitle)
	}
	return data
}

func withTitle(prefix, title string) string {
	if title == "" {
		return prefix
	}
	return prefix + ": " + title
}

func (m *Mailer) loggerFor(ctx context.Context) types.Logger {
	if l := types.LoggerFromContext(ctx); l != nil {
		return l
	}
	return m.logger
}

// normalize guarantees that every failure leaving the mailer is an AppError
// with a non-empty message.
func normalize(err error) error {
	if err == nil {
		return nil
	}
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		if appErr.Message == "" {
			return types.NewAppErrorWithDetails(appErr.Code, "email delivery failed", appErr.Err, appErr.Details)
		}
		return err
	}
	msg := err.Error()
	if msg == "" {
		msg = "email delivery failed"
	}
	return types.NewAppError(types.ErrCodeUpstreamTransport, msg, err)
}

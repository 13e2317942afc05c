package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventmail/internal/mailer"
	"eventmail/internal/types"
)

const revokedGrant = "The provided authorization grant is invalid, expired, or revoked"

func newTestMailer(t *testing.T, send providerFunc) *mailer.Mailer {
	t.Helper()
	m, err := mailer.New(mailer.Config{
		Provider:  send,
		Sender:    types.SenderIdentity{Name: "EventMail", Address: "no-reply@eventmail.app"},
		PublicURL: "https://app.eventmail.test",
		Logger:    types.NewSlogAdapter(discardLogger()),
	})
	require.NoError(t, err)
	return m
}

func TestEmailHandler_Send_Sync(t *testing.T) {
	var calls atomic.Int32
	var got types.SendInput
	m := newTestMailer(t, func(_ context.Context, in types.SendInput) (string, error) {
		calls.Add(1)
		got = in
		return "sg-123", nil
	})
	recorder := &stubRecorder{}
	h := NewEmailHandler(m, nil, recorder, discardLogger())

	rec := serve(t, h.RegisterRoutes, http.MethodPost, "/v1/emails/event_cancellation",
		`{"recipient":{"email":"ada@example.com","name":"Ada"},"event":{"title":"Launch party"}}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp SentResponse
	decodeData(t, rec, &resp)
	assert.Equal(t, "sg-123", resp.ProviderMessageID)
	assert.Equal(t, "req-test", resp.TraceID)

	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, "ada@example.com", got.To)
	assert.Equal(t, "Event cancelled: Launch party", got.Subject)

	require.Len(t, recorder.recs, 1)
	assert.Equal(t, types.OutcomeSuccess, recorder.recs[0].Outcome)
	assert.Equal(t, "sg-123", recorder.recs[0].ProviderMessageID)
	assert.Equal(t, "req-test", recorder.recs[0].TraceID)
}

func TestEmailHandler_Send_ProviderErrorMessage(t *testing.T) {
	m := newTestMailer(t, func(context.Context, types.SendInput) (string, error) {
		return "", types.NewAppErrorWithDetails(types.ErrCodeEmailRejected, revokedGrant, nil,
			map[string]any{"status": 400})
	})
	recorder := &stubRecorder{}
	h := NewEmailHandler(m, nil, recorder, discardLogger())

	rec := serve(t, h.RegisterRoutes, http.MethodPost, "/v1/emails/activation",
		`{"recipient":{"email":"ada@example.com","activation_token":"tok"}}`)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	detail := decodeErr(t, rec)
	assert.Equal(t, revokedGrant, detail.Message)
	assert.Equal(t, string(types.ErrCodeEmailRejected), detail.Code)
	assert.Equal(t, "req-test", detail.RequestID)

	require.Len(t, recorder.recs, 1)
	assert.Equal(t, types.OutcomeRejected, recorder.recs[0].Outcome)
	assert.Equal(t, revokedGrant, recorder.recs[0].ErrorMessage)
}

func TestEmailHandler_Send_TransportFailure(t *testing.T) {
	m := newTestMailer(t, func(context.Context, types.SendInput) (string, error) {
		return "", errors.New("dial tcp: connection refused")
	})
	h := NewEmailHandler(m, nil, nil, discardLogger())

	rec := serve(t, h.RegisterRoutes, http.MethodPost, "/v1/emails/event_invitation",
		`{"recipient":{"email":"ada@example.com"}}`)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	detail := decodeErr(t, rec)
	assert.Equal(t, string(types.ErrCodeUpstreamTransport), detail.Code)
	assert.Equal(t, "dial tcp: connection refused", detail.Message)
}

func TestEmailHandler_Send_ValidationBeforeIO(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		body        string
		wantCode    types.ErrorCode
		wantMessage string
	}{
		{
			name:        "missing recipient",
			path:        "/v1/emails/activation",
			body:        `{}`,
			wantCode:    types.ErrCodeValidationMissingField,
			wantMessage: "recipient is required",
		},
		{
			name:        "invalid email",
			path:        "/v1/emails/invitation_answer",
			body:        `{"recipient":{"email":"not-an-email"}}`,
			wantCode:    types.ErrCodeValidationInvalidEmail,
			wantMessage: "recipient.email is not a valid email address",
		},
		{
			name:        "cancellation without event",
			path:        "/v1/emails/event_cancellation",
			body:        `{"recipient":{"email":"ada@example.com"}}`,
			wantCode:    types.ErrCodeValidationMissingField,
			wantMessage: "event is required",
		},
		{
			name:        "unknown kind",
			path:        "/v1/emails/newsletter",
			body:        `{"recipient":{"email":"ada@example.com"}}`,
			wantCode:    types.ErrCodeValidationUnknownKind,
			wantMessage: `unknown email kind "newsletter"`,
		},
		{
			name:        "unknown field",
			path:        "/v1/emails/activation",
			body:        `{"recipient":{"email":"ada@example.com"},"cc":"x"}`,
			wantCode:    types.ErrCodeValidationInvalidBody,
			wantMessage: `unknown field in request body: "cc"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			m := newTestMailer(t, func(context.Context, types.SendInput) (string, error) {
				calls.Add(1)
				return "", nil
			})
			queue := &stubQueue{}
			h := NewEmailHandler(m, queue, nil, discardLogger())

			rec := serve(t, h.RegisterRoutes, "POST", tt.path, tt.body)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			detail := decodeErr(t, rec)
			assert.Equal(t, string(tt.wantCode), detail.Code)
			assert.Equal(t, tt.wantMessage, detail.Message)
			assert.Zero(t, calls.Load())
			assert.Empty(t, queue.reqs)
		})
	}
}

func TestEmailHandler_Send_Queued(t *testing.T) {
	var calls atomic.Int32
	m := newTestMailer(t, func(context.Context, types.SendInput) (string, error) {
		calls.Add(1)
		return "", nil
	})
	queue := &stubQueue{msgID: "sqs-1"}
	recorder := &stubRecorder{}
	h := NewEmailHandler(m, queue, recorder, discardLogger())

	rec := serve(t, h.RegisterRoutes, http.MethodPost, "/v1/emails/event_invitation",
		`{"recipient":{"email":"ada@example.com"},"event":{"title":"Offsite"}}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp QueuedResponse
	decodeData(t, rec, &resp)
	assert.Equal(t, "sqs-1", resp.MessageID)
	assert.Equal(t, "req-test", resp.TraceID)

	require.Len(t, queue.reqs, 1)
	assert.Equal(t, types.EmailEventInvitation, queue.reqs[0].Kind)
	assert.Equal(t, "Offsite", queue.reqs[0].Event.Title)
	assert.Equal(t, "req-test", queue.reqs[0].TraceID)
	assert.Zero(t, calls.Load())
	assert.Empty(t, recorder.recs)
}

func TestEmailHandler_Send_QueueFailure(t *testing.T) {
	m := newTestMailer(t, func(context.Context, types.SendInput) (string, error) { return "", nil })
	h := NewEmailHandler(m, &stubQueue{err: errors.New("sqs down")}, nil, discardLogger())

	rec := serve(t, h.RegisterRoutes, http.MethodPost, "/v1/emails/activation",
		`{"recipient":{"email":"ada@example.com"}}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "failed to queue email", decodeErr(t, rec).Message)
}

func TestEmailHandler_Send_RecorderFailureStillSucceeds(t *testing.T) {
	m := newTestMailer(t, func(context.Context, types.SendInput) (string, error) { return "sg-1", nil })
	h := NewEmailHandler(m, nil, &stubRecorder{err: errors.New("db down")}, discardLogger())

	rec := serve(t, h.RegisterRoutes, http.MethodPost, "/v1/emails/activation",
		`{"recipient":{"email":"ada@example.com"}}`)

	assert.Equal(t, http.StatusOK, rec.Code)
}

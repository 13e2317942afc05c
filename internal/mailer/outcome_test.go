package mailer

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"eventmail/internal/types"
)

func TestOutcomeOfAndRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		outcome   types.DeliveryOutcome
		retryable bool
	}{
		{"nil", nil, types.OutcomeSuccess, false},
		{"missing field", types.NewAppError(types.ErrCodeValidationMissingField, "x", nil), types.OutcomeValidationFailed, false},
		{"unknown kind", types.NewAppError(types.ErrCodeValidationUnknownKind, "x", nil), types.OutcomeValidationFailed, false},
		{"rejected", types.NewAppError(types.ErrCodeEmailRejected, "x", nil), types.OutcomeRejected, false},
		{"blocked", types.NewAppError(types.ErrCodeEmailBlocked, "x", nil), types.OutcomeRejected, false},
		{"rate limited", types.NewAppError(types.ErrCodeUpstreamRateLimited, "x", nil), types.OutcomeRejected, true},
		{"unavailable", types.NewAppError(types.ErrCodeUpstreamUnavailable, "x", nil), types.OutcomeRejected, true},
		{"transport", types.NewAppError(types.ErrCodeUpstreamTransport, "x", nil), types.OutcomeTransportFailed, true},
		{"circuit open", types.NewAppError(types.ErrCodeUpstreamCircuitOpen, "x", nil), types.OutcomeTransportFailed, true},
		{"template", types.NewAppError(types.ErrCodeInternalTemplate, "x", nil), types.OutcomeTransportFailed, false},
		{"plain error", errors.New("boom"), types.OutcomeTransportFailed, true},
		{"wrapped app error", fmt.Errorf("ctx: %w", types.NewAppError(types.ErrCodeEmailRejected, "x", nil)), types.OutcomeRejected, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.outcome, OutcomeOf(tt.err))
			assert.Equal(t, tt.retryable, Retryable(tt.err))
		})
	}
}

func TestErrorCodeOf(t *testing.T) {
	assert.Equal(t, types.ErrorCode(""), ErrorCodeOf(nil))
	assert.Equal(t, types.ErrorCode(""), ErrorCodeOf(errors.New("x")))
	assert.Equal(t, types.ErrCodeEmailBlocked, ErrorCodeOf(types.NewAppError(types.ErrCodeEmailBlocked, "x", nil)))
}

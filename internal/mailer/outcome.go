package mailer

import (
	"errors"
	"strings"

	"eventmail/internal/types"
)

// OutcomeOf classifies the result of a send into one of the four delivery
// outcomes. Errors that are not *types.AppError count as transport failures.
func OutcomeOf(err error) types.DeliveryOutcome {
	if err == nil {
		return types.OutcomeSuccess
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		return types.OutcomeTransportFailed
	}

	switch {
	case strings.HasPrefix(string(appErr.Code), "validation_"):
		return types.OutcomeValidationFailed
	case appErr.Code == types.ErrCodeEmailRejected,
		appErr.Code == types.ErrCodeEmailBlocked,
		appErr.Code == types.ErrCodeUpstreamRateLimited,
		appErr.Code == types.ErrCodeUpstreamUnavailable:
		return types.OutcomeRejected
	default:
		return types.OutcomeTransportFailed
	}
}

// Retryable reports whether a failed send may succeed if attempted again.
// Validation failures and permanent provider rejections are final; throttling,
// provider outages and transport failures are not.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		return true
	}

	switch appErr.Code {
	case types.ErrCodeUpstreamRateLimited,
		types.ErrCodeUpstreamUnavailable,
		types.ErrCodeUpstreamTransport,
		types.ErrCodeUpstreamCircuitOpen,
		types.ErrCodeInternalUnexpected:
		return true
	}
	return false
}

// ErrorCodeOf returns the AppError code carried by err, or "" when err is nil
// or not an AppError.
func ErrorCodeOf(err error) types.ErrorCode {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

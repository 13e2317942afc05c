package types

import (
	"net/http"
	"strings"
)

// ErrorCode is a stable, machine-readable identifier for a failure class.
// Codes are grouped by prefix; the prefix drives HTTP status mapping and
// delivery outcome classification.
type ErrorCode string

const (
	// Validation (400)
	ErrCodeValidationMissingField ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidEmail ErrorCode = "validation_invalid_email"
	ErrCodeValidationUnknownKind  ErrorCode = "validation_unknown_email_kind"
	ErrCodeValidationInvalidBody  ErrorCode = "validation_invalid_body"

	// Auth (401)
	ErrCodeAuthTokenMissing ErrorCode = "auth_token_missing"
	ErrCodeAuthTokenInvalid ErrorCode = "auth_token_invalid"

	// Provider rejections
	ErrCodeEmailRejected ErrorCode = "email_rejected"
	ErrCodeEmailBlocked  ErrorCode = "email_blocked"

	// Upstream
	ErrCodeUpstreamRateLimited ErrorCode = "upstream_rate_limited"
	ErrCodeUpstreamUnavailable ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamTransport   ErrorCode = "upstream_transport_failed"
	ErrCodeUpstreamCircuitOpen ErrorCode = "upstream_circuit_open"

	// Internal (500)
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
	ErrCodeInternalTemplate   ErrorCode = "internal_template_error"
	ErrCodeInternalDB         ErrorCode = "internal_database_error"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Returns 500 for unrecognized error codes.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest
	case strings.HasPrefix(s, "auth_"):
		return http.StatusUnauthorized
	case c == ErrCodeEmailBlocked:
		return http.StatusForbidden
	case c == ErrCodeEmailRejected:
		return http.StatusUnprocessableEntity
	case c == ErrCodeUpstreamRateLimited:
		return http.StatusTooManyRequests
	case c == ErrCodeUpstreamCircuitOpen:
		return http.StatusServiceUnavailable
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// AppError is the standard error type used throughout eventmail. Every
// failure surfaced by the mailer is an *AppError whose Message is safe to
// show to the caller.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface. It returns Message alone so that
// callers comparing err.Error() see exactly what the provider reported.
func (e *AppError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError carrying structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}

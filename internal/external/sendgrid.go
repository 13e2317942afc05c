package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"eventmail/internal/types"
)

// sendGridAPIBase is the default SendGrid API base URL.
const sendGridAPIBase = "https://api.sendgrid.com"

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 << 10

// SendGridClientConfig holds the configuration for creating a SendGridClient.
type SendGridClientConfig struct {
	APIKey  types.SecretString
	BaseURL string // Override for testing; defaults to sendGridAPIBase
	Sandbox bool   // Ask SendGrid to validate without delivering
	Retry   RetryPolicy
	Logger  types.Logger
}

// SendGridClient implements EmailProvider against the SendGrid v3 Mail Send
// API, routing every call through BaseClient.
type SendGridClient struct {
	base    *BaseClient
	apiKey  types.SecretString
	baseURL string
	sandbox bool
	logger  types.Logger
}

// NewSendGridClient creates a new SendGridClient. The httpClient's timeout
// bounds each attempt.
func NewSendGridClient(httpClient *http.Client, cfg SendGridClientConfig) *SendGridClient {
	base := NewBaseClient(
		httpClient,
		"sendgrid",
		cfg.Retry,
		"EventMail/1.0",
	)
	return NewSendGridClientWithBase(base, cfg)
}

// NewSendGridClientWithBase creates a SendGridClient with a pre-configured
// BaseClient.
func NewSendGridClientWithBase(base *BaseClient, cfg SendGridClientConfig) *SendGridClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = sendGridAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = types.NewSlogAdapter(slog.Default())
	}

	return &SendGridClient{
		base:    base,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		sandbox: cfg.Sandbox,
		logger:  logger,
	}
}

// Send transmits an email using SendGrid's v3 Mail Send API. Pre-rendered
// content is sent inline; a TemplateID switches to a dynamic template.
//
// Error mapping:
//   - no response (network, circuit open) -> BaseClient AppError
//   - 403 -> types.ErrCodeEmailBlocked
//   - 429 -> types.ErrCodeUpstreamRateLimited
//   - 5xx -> types.ErrCodeUpstreamUnavailable
//   - other non-2xx -> types.ErrCodeEmailRejected
//
// For every non-2xx the AppError Message is the first entry of the
// response's "errors" list, verbatim.
func (s *SendGridClient) Send(ctx context.Context, input types.SendInput) (string, error) {
	payload := s.buildMailPayload(input)

	body, err := json.Marshal(payload)
	if err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to marshal SendGrid mail payload",
			err,
		)
	}

	reqURL := s.baseURL + "/v3/mail/send"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to create SendGrid mail send request",
			err,
		)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey.Unmask())

	resp, err := s.base.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return resp.Header.Get("X-Message-Id"), nil
	}

	return "", s.handleErrorResponse(resp, "Send")
}

// ---------------------------------------------------------------------------
// Payload Construction
// ---------------------------------------------------------------------------

type sendGridMailPayload struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	Subject          string                    `json:"subject,omitempty"`
	Content          []sendGridContent         `json:"content,omitempty"`
	TemplateID       string                    `json:"template_id,omitempty"`
	Categories       []string                  `json:"categories,omitempty"`
	// custom_args carries the reference id back in event webhooks.
	CustomArgs   map[string]string     `json:"custom_args,omitempty"`
	MailSettings *sendGridMailSettings `json:"mail_settings,omitempty"`
}

type sendGridPersonalization struct {
	To          []sendGridAddress      `json:"to"`
	DynamicData map[string]interface{} `json:"dynamic_template_data,omitempty"`
}

type sendGridAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridMailSettings struct {
	SandboxMode sendGridToggle `json:"sandbox_mode"`
}

type sendGridToggle struct {
	Enable bool `json:"enable"`
}

// buildMailPayload maps a domain types.SendInput to the SendGrid v3 payload.
// text/plain must precede text/html in the content list.
func (s *SendGridClient) buildMailPayload(input types.SendInput) sendGridMailPayload {
	personalization := sendGridPersonalization{
		To: []sendGridAddress{{Email: input.To, Name: input.ToName}},
	}

	payload := sendGridMailPayload{
		From: sendGridAddress{
			Email: input.From.Address,
			Name:  input.From.Name,
		},
		Categories: input.Categories,
	}

	if input.TemplateID != "" {
		payload.TemplateID = input.TemplateID
		personalization.DynamicData = input.TemplateData
	} else {
		payload.Subject = input.Subject
		if input.BodyText != "" {
			payload.Content = append(payload.Content, sendGridContent{Type: "text/plain", Value: input.BodyText})
		}
		if input.BodyHTML != "" {
			payload.Content = append(payload.Content, sendGridContent{Type: "text/html", Value: input.BodyHTML})
		}
	}
	payload.Personalizations = []sendGridPersonalization{personalization}

	if input.ReferenceID != "" {
		payload.CustomArgs = map[string]string{"reference_id": input.ReferenceID}
	}

	if s.sandbox {
		payload.MailSettings = &sendGridMailSettings{SandboxMode: sendGridToggle{Enable: true}}
	}

	return payload
}

// ---------------------------------------------------------------------------
// Error Handling
// ---------------------------------------------------------------------------

// sendGridErrorResponse is the JSON error body returned by SendGrid. The v3
// API returns error objects; the legacy mail.send endpoint and several
// proxies return plain strings. Both decode into sendGridErrorDetail.
type sendGridErrorResponse struct {
	Errors  []sendGridErrorDetail `json:"errors"`
	Message string                `json:"message"`
}

type sendGridErrorDetail struct {
	Message string `json:"message"`
	Field   string `json:"field"`
}

// UnmarshalJSON accepts either "text" or {"message": "text", "field": ...}.
func (d *sendGridErrorDetail) UnmarshalJSON(b []byte) error {
	var text string
	if err := json.Unmarshal(b, &text); err == nil {
		d.Message = text
		return nil
	}

	var obj struct {
		Message string          `json:"message"`
		Field   json.RawMessage `json:"field"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	d.Message = obj.Message
	_ = json.Unmarshal(obj.Field, &d.Field)
	return nil
}

// handleErrorResponse reads a SendGrid error response and maps it to a
// types.AppError whose Message is the provider's first error.
func (s *SendGridClient) handleErrorResponse(resp *http.Response, operation string) error {
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if readErr != nil {
		return types.NewAppErrorWithDetails(
			codeForStatus(resp.StatusCode),
			fmt.Sprintf("SendGrid returned status %d and the response body was unreadable", resp.StatusCode),
			readErr,
			map[string]any{"status": resp.StatusCode, "operation": operation},
		)
	}

	details := map[string]any{"status": resp.StatusCode, "operation": operation}
	message := ""

	var sgErr sendGridErrorResponse
	if jsonErr := json.Unmarshal(body, &sgErr); jsonErr == nil {
		if len(sgErr.Errors) > 0 {
			message = sgErr.Errors[0].Message
			if sgErr.Errors[0].Field != "" {
				details["field"] = sgErr.Errors[0].Field
			}
			if len(sgErr.Errors) > 1 {
				all := make([]string, 0, len(sgErr.Errors))
				for _, e := range sgErr.Errors {
					all = append(all, e.Message)
				}
				details["errors"] = all
			}
		} else if sgErr.Message != "" {
			message = sgErr.Message
		}
	} else if text := strings.TrimSpace(string(body)); text != "" {
		message = text
	}

	if message == "" {
		message = fmt.Sprintf("SendGrid returned status %d", resp.StatusCode)
	}

	s.logger.Warn("SendGrid rejected request",
		"operation", operation,
		"status", resp.StatusCode,
		"error", message,
	)

	return types.NewAppErrorWithDetails(codeForStatus(resp.StatusCode), message, nil, details)
}

// codeForStatus maps a non-2xx SendGrid status to an error code.
func codeForStatus(status int) types.ErrorCode {
	switch {
	case status == http.StatusForbidden:
		return types.ErrCodeEmailBlocked
	case status == http.StatusTooManyRequests:
		return types.ErrCodeUpstreamRateLimited
	case status >= 500:
		return types.ErrCodeUpstreamUnavailable
	default:
		return types.ErrCodeEmailRejected
	}
}

// Compile-time assertion that SendGridClient satisfies EmailProvider.
var _ EmailProvider = (*SendGridClient)(nil)

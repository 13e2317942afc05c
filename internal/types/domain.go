package types

import "time"

// EmailKind identifies which transactional email a request asks for. Each kind
// maps to one template pair and one mailer operation.
type EmailKind string

const (
	EmailActivation        EmailKind = "activation"
	EmailEventInvitation   EmailKind = "event_invitation"
	EmailInvitationAnswer  EmailKind = "invitation_answer"
	EmailEventCancellation EmailKind = "event_cancellation"
)

// AllEmailKinds lists every supported kind in a stable order.
var AllEmailKinds = []EmailKind{
	EmailActivation,
	EmailEventInvitation,
	EmailInvitationAnswer,
	EmailEventCancellation,
}

// Valid reports whether k is a known kind.
func (k EmailKind) Valid() bool {
	for _, known := range AllEmailKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Recipient is the user an email is addressed to.
type Recipient struct {
	ID              string `json:"id,omitempty"`
	Email           string `json:"email" validate:"required,email"`
	Name            string `json:"name"`
	ActivationToken string `json:"activation_token,omitempty"`
}

// EventContext carries the event data used by event-related emails.
type EventContext struct {
	ID        string    `json:"id,omitempty"`
	Title     string    `json:"title" validate:"required"`
	StartsAt  time.Time `json:"starts_at,omitempty"`
	Location  string    `json:"location,omitempty"`
	Organizer string    `json:"organizer,omitempty"`
}

// SendInput defines the contract for email transmission. Either TemplateID
// (provider-side dynamic template) or Subject plus bodies (pre-rendered
// content) is set.
type SendInput struct {
	To           string
	ToName       string
	From         SenderIdentity
	Subject      string
	BodyHTML     string
	BodyText     string
	TemplateID   string
	TemplateData map[string]interface{}
	ReferenceID  string
	Categories   []string
}

// SenderIdentity defines the sender for outgoing emails.
type SenderIdentity struct {
	Name    string
	Address string
}

// DeliveryOutcome is the terminal state of a single send attempt.
type DeliveryOutcome string

const (
	OutcomeSuccess          DeliveryOutcome = "success"
	OutcomeRejected         DeliveryOutcome = "rejected_by_provider"
	OutcomeTransportFailed  DeliveryOutcome = "transport_failed"
	OutcomeValidationFailed DeliveryOutcome = "validation_failed"
)

// DeliveryRecord is one row of the delivery audit log.
type DeliveryRecord struct {
	ID                string          `json:"id" db:"id"`
	Kind              EmailKind       `json:"kind" db:"kind"`
	RecipientEmail    string          `json:"recipient_email" db:"recipient_email"`
	Outcome           DeliveryOutcome `json:"outcome" db:"outcome"`
	ErrorCode         string          `json:"error_code,omitempty" db:"error_code"`
	ErrorMessage      string          `json:"error_message,omitempty" db:"error_message"`
	ProviderMessageID string          `json:"provider_message_id,omitempty" db:"provider_message_id"`
	TraceID           string          `json:"trace_id,omitempty" db:"trace_id"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
}

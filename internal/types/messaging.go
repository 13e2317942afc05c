package types

// MailRequest is the transport envelope for one email, used by the SQS queue
// and the HTTP API. Event is required for cancellations and optional for
// invitation kinds, where it enriches the message.
type MailRequest struct {
	Kind      EmailKind     `json:"kind"`
	Recipient *Recipient    `json:"recipient"`
	Event     *EventContext `json:"event,omitempty"`

	// Observability
	TraceID string `json:"trace_id,omitempty"`
}

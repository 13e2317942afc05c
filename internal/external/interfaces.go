package external

import (
	"context"

	"eventmail/internal/types"
)

// EmailProvider abstracts the email delivery service.
type EmailProvider interface {
	// Send transmits one email. It returns the provider's message ID when the
	// provider reports one. Failures are *types.AppError values.
	Send(ctx context.Context, input types.SendInput) (providerMsgID string, err error)
}

package db

import (
	"context"

	"github.com/google/uuid"

	"eventmail/internal/types"
)

// MaxListLimit caps ListByRecipient page sizes.
const MaxListLimit = 100

const createDeliveriesTable = `CREATE TABLE IF NOT EXISTS email_deliveries (
	id                  TEXT PRIMARY KEY,
	kind                TEXT NOT NULL,
	recipient_email     TEXT NOT NULL,
	outcome             TEXT NOT NULL,
	error_code          TEXT,
	error_message       TEXT,
	provider_message_id TEXT,
	trace_id            TEXT,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS email_deliveries_recipient_idx
	ON email_deliveries (recipient_email, created_at DESC)`

// DeliveryRepository stores one row per send attempt in email_deliveries.
type DeliveryRepository struct {
	db DBTX
}

// NewDeliveryRepository creates a DeliveryRepository backed by db.
func NewDeliveryRepository(db DBTX) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

// EnsureSchema creates the email_deliveries table and its index if missing.
func (r *DeliveryRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, createDeliveriesTable); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create email_deliveries table", err)
	}
	return nil
}

// Record inserts rec. An empty ID is replaced with a new UUID and a zero
// CreatedAt defaults to NOW(). Inserting an ID that already exists is a no-op,
// so a redelivered queue message cannot duplicate its row.
func (r *DeliveryRepository) Record(ctx context.Context, rec *types.DeliveryRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO email_deliveries
		 (id, kind, recipient_email, outcome, error_code, error_message,
		  provider_message_id, trace_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, NOW()))`,
		rec.ID,
		string(rec.Kind),
		rec.RecipientEmail,
		string(rec.Outcome),
		nilIfEmpty(rec.ErrorCode),
		nilIfEmpty(rec.ErrorMessage),
		nilIfEmpty(rec.ProviderMessageID),
		nilIfEmpty(rec.TraceID),
		nilIfZeroTime(rec.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to record email delivery", err)
	}
	return nil
}

// ListByRecipient returns the most recent attempts for email, newest first.
// limit is clamped to [1, MaxListLimit].
func (r *DeliveryRepository) ListByRecipient(ctx context.Context, email string, limit int) ([]types.DeliveryRecord, error) {
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, kind, recipient_email, outcome,
		        COALESCE(error_code, ''), COALESCE(error_message, ''),
		        COALESCE(provider_message_id, ''), COALESCE(trace_id, ''), created_at
		 FROM email_deliveries
		 WHERE recipient_email = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		email, limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list email deliveries", err)
	}
	defer rows.Close()

	records := make([]types.DeliveryRecord, 0)
	for rows.Next() {
		var (
			rec     types.DeliveryRecord
			kind    string
			outcome string
		)
		if err := rows.Scan(
			&rec.ID,
			&kind,
			&rec.RecipientEmail,
			&outcome,
			&rec.ErrorCode,
			&rec.ErrorMessage,
			&rec.ProviderMessageID,
			&rec.TraceID,
			&rec.CreatedAt,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan email delivery", err)
		}
		rec.Kind = types.EmailKind(kind)
		rec.Outcome = types.DeliveryOutcome(outcome)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate email deliveries", err)
	}
	return records, nil
}

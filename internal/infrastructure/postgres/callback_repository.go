package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/reservepay/reservepay/internal/application"
	"github.com/reservepay/reservepay/internal/domain"
)

// CallbackRepository persists inbound gateway events keyed by their derived
// idempotency key. The unique constraint on the key is what turns an
// at-least-once delivery into at-most-one recorded event.
type CallbackRepository struct {
	db *DB
}

func NewCallbackRepository(db *DB) *CallbackRepository {
	return &CallbackRepository{db: db}
}

var _ application.CallbackRepository = (*CallbackRepository)(nil)

func (r *CallbackRepository) Record(ctx context.Context, event *domain.CallbackEvent) (bool, error) {
	query := `
		INSERT INTO callback_events (
			idempotency_key, checkout_id, merchant_id, result_code, result_desc,
			receipt_number, amount, raw_payload, received_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		event.IdempotencyKey(),
		event.CheckoutID,
		nullableString(event.MerchantID),
		event.ResultCode,
		nullableString(event.ResultDesc),
		nullableString(event.ReceiptNumber),
		event.Amount,
		event.RawPayload,
		event.ReceivedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to record callback event: %w", err)
	}
	return true, nil
}

func (r *CallbackRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM callback_events WHERE received_at < $1`

	result, err := r.db.Pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune callback events: %w", err)
	}
	return result.RowsAffected(), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

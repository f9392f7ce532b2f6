package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/reservepay/reservepay/internal/application"
	"github.com/reservepay/reservepay/internal/domain"
)

const attemptColumns = `
	id, booking_id, phone, amount, checkout_id, merchant_id,
	receipt_number, result_code, result_desc, status,
	created_at, updated_at, completed_at
`

type AttemptRepository struct {
	db *DB
}

func NewAttemptRepository(db *DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

var _ application.AttemptRepository = (*AttemptRepository)(nil)

func (r *AttemptRepository) Create(ctx context.Context, attempt *domain.PaymentAttempt) error {
	query := `
		INSERT INTO payment_attempts (
			id, booking_id, phone, amount, checkout_id, merchant_id,
			receipt_number, result_code, result_desc, status,
			created_at, updated_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		attempt.ID,
		attempt.BookingID,
		attempt.Phone,
		attempt.Amount,
		nullableString(attempt.CheckoutID),
		nullableString(attempt.MerchantID),
		nullableString(attempt.ReceiptNumber),
		attempt.ResultCode,
		nullableString(attempt.ResultDesc),
		string(attempt.Status),
		attempt.CreatedAt,
		attempt.UpdatedAt,
		attempt.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment attempt: %w", err)
	}
	return nil
}

func (r *AttemptRepository) FindByID(ctx context.Context, id string) (*domain.PaymentAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM payment_attempts WHERE id = $1`

	row := r.db.Pool.QueryRow(ctx, query, id)
	return scanAttempt(row, id)
}

// FindByCheckoutID is the correlation lookup for inbound callbacks; the
// checkout_id column carries a unique index.
func (r *AttemptRepository) FindByCheckoutID(ctx context.Context, checkoutID string) (*domain.PaymentAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM payment_attempts WHERE checkout_id = $1`

	row := r.db.Pool.QueryRow(ctx, query, checkoutID)
	return scanAttempt(row, checkoutID)
}

// FindActiveByBookingID returns the booking's single non-terminal attempt.
// A partial unique index on (booking_id) WHERE status IN
// ('INITIATED','PENDING') keeps the invariant at the storage layer too.
func (r *AttemptRepository) FindActiveByBookingID(ctx context.Context, bookingID string) (*domain.PaymentAttempt, error) {
	query := `SELECT ` + attemptColumns + `
		FROM payment_attempts
		WHERE booking_id = $1 AND status IN ('INITIATED', 'PENDING')
	`

	row := r.db.Pool.QueryRow(ctx, query, bookingID)
	return scanAttempt(row, bookingID)
}

// FindLatestByBookingID returns the booking's most recent attempt in any
// state. The sweep uses it to tell an abandoned booking from one whose
// charge already completed.
func (r *AttemptRepository) FindLatestByBookingID(ctx context.Context, bookingID string) (*domain.PaymentAttempt, error) {
	query := `SELECT ` + attemptColumns + `
		FROM payment_attempts
		WHERE booking_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	row := r.db.Pool.QueryRow(ctx, query, bookingID)
	return scanAttempt(row, bookingID)
}

func (r *AttemptRepository) Update(ctx context.Context, attempt *domain.PaymentAttempt) error {
	return r.update(ctx, r.db.Pool, attempt)
}

func (r *AttemptRepository) update(ctx context.Context, q execer, attempt *domain.PaymentAttempt) error {
	query := `
		UPDATE payment_attempts
		SET checkout_id = $1, merchant_id = $2, receipt_number = $3,
			result_code = $4, result_desc = $5, status = $6,
			updated_at = $7, completed_at = $8
		WHERE id = $9
	`

	result, err := q.Exec(ctx, query,
		nullableString(attempt.CheckoutID),
		nullableString(attempt.MerchantID),
		nullableString(attempt.ReceiptNumber),
		attempt.ResultCode,
		nullableString(attempt.ResultDesc),
		string(attempt.Status),
		attempt.UpdatedAt,
		attempt.CompletedAt,
		attempt.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment attempt: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewAttemptNotFoundError(attempt.ID)
	}
	return nil
}

func scanAttempt(row pgx.Row, ref string) (*domain.PaymentAttempt, error) {
	var m attemptModel
	err := row.Scan(
		&m.ID, &m.BookingID, &m.Phone, &m.Amount, &m.CheckoutID, &m.MerchantID,
		&m.ReceiptNumber, &m.ResultCode, &m.ResultDesc, &m.Status,
		&m.CreatedAt, &m.UpdatedAt, &m.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewAttemptNotFoundError(ref)
		}
		return nil, fmt.Errorf("failed to scan payment attempt: %w", err)
	}
	return toAttemptDomain(m), nil
}

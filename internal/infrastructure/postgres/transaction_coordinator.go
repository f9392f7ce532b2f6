package postgres

import (
	"context"
	"fmt"

	"github.com/reservepay/reservepay/internal/application"
	"github.com/reservepay/reservepay/internal/domain"
)

// TransactionCoordinator couples the attempt and booking writes that settle
// or revert a payment. The two rows commit together or not at all; without
// that, a crash between them leaves a completed charge with a booking that
// can never catch up.
type TransactionCoordinator struct {
	db       *DB
	attempts *AttemptRepository
	bookings *BookingRepository
}

func NewTransactionCoordinator(db *DB, attempts *AttemptRepository, bookings *BookingRepository) *TransactionCoordinator {
	return &TransactionCoordinator{
		db:       db,
		attempts: attempts,
		bookings: bookings,
	}
}

var _ application.TransactionCoordinator = (*TransactionCoordinator)(nil)

func (tc *TransactionCoordinator) ApplyTransition(ctx context.Context, attempt *domain.PaymentAttempt, booking *domain.Booking) error {
	tx, err := tc.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := tc.attempts.update(ctx, tx, attempt); err != nil {
		return err
	}
	if err := tc.bookings.update(ctx, tx, booking); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

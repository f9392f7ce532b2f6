// Package services wires the booking lifecycle to unit inventory and the
// payment reconciliation state machine.
package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/reservepay/reservepay/internal/application"
	"github.com/reservepay/reservepay/internal/domain"
	"github.com/shopspring/decimal"
)

// BookingService owns booking records and is the sole mutator of unit
// availability. Every unit transition flows through here, so two bookings
// can never race the same unit outside the repository's compare-and-swap.
type BookingService struct {
	units    application.UnitRepository
	bookings application.BookingRepository
	tx       application.TransactionCoordinator
	notifier application.Notifier
	expirer  application.AttemptExpirer
	logger   *slog.Logger
}

type CreateBookingCommand struct {
	UnitID    string
	Customer  domain.Customer
	StartDate time.Time
	EndDate   time.Time
	// TotalCost is optional; when zero it is derived from the unit's
	// monthly rate and the requested range.
	TotalCost decimal.Decimal
}

func NewBookingService(
	units application.UnitRepository,
	bookings application.BookingRepository,
	tx application.TransactionCoordinator,
	notifier application.Notifier,
	logger *slog.Logger,
) *BookingService {
	return &BookingService{
		units:    units,
		bookings: bookings,
		tx:       tx,
		notifier: notifier,
		logger:   logger,
	}
}

// SetAttemptExpirer injects the reconciler after construction. The expiry
// sweep and the reconciler reference each other, so one side is wired late.
func (s *BookingService) SetAttemptExpirer(expirer application.AttemptExpirer) {
	s.expirer = expirer
}

// CreateBooking validates the request, reserves the unit and persists the
// booking. The reserve is a compare-and-swap: when two requests race the
// same unit, exactly one wins and the rest observe a conflict. The booking
// row is only written after the unit is held, and the hold is rolled back
// if the write fails, so neither side ever exists without the other.
func (s *BookingService) CreateBooking(ctx context.Context, cmd CreateBookingCommand) (*domain.Booking, error) {
	if !cmd.EndDate.After(cmd.StartDate) {
		return nil, application.NewInvalidInputError(domain.NewInvalidDateRangeError("end date must be after start date"))
	}
	today := time.Now().Truncate(24 * time.Hour)
	if cmd.StartDate.Before(today) {
		return nil, application.NewInvalidInputError(domain.NewInvalidDateRangeError("start date must not be in the past"))
	}

	unit, err := s.units.FindByID(ctx, cmd.UnitID)
	if err != nil {
		if domain.IsErrorCode(err, domain.ErrCodeUnitNotFound) {
			return nil, application.NewNotFoundError(err)
		}
		return nil, application.NewInternalError(err)
	}

	totalCost := cmd.TotalCost
	if totalCost.IsZero() {
		totalCost = QuoteCost(unit.MonthlyRate, cmd.StartDate, cmd.EndDate)
	}

	booking, err := domain.NewBooking(uuid.New().String(), cmd.UnitID, cmd.Customer, cmd.StartDate, cmd.EndDate, totalCost)
	if err != nil {
		return nil, application.NewInvalidInputError(err)
	}

	if err := s.units.Reserve(ctx, cmd.UnitID); err != nil {
		if domain.IsErrorCode(err, domain.ErrCodeUnitConflict) {
			return nil, application.NewConflictError(err)
		}
		return nil, application.NewInternalError(err)
	}

	if err := s.bookings.Create(ctx, booking); err != nil {
		// The unit was already flipped to RESERVED; undo the hold so the
		// failed create leaves no trace.
		if releaseErr := s.units.Release(ctx, cmd.UnitID); releaseErr != nil {
			s.logger.Error("failed to release unit after booking create failure",
				"unit_id", cmd.UnitID, "error", releaseErr)
		}
		return nil, application.NewInternalError(err)
	}

	s.logger.Info("booking created",
		"booking_id", booking.ID,
		"unit_id", booking.UnitID,
		"total_cost", booking.TotalCost.String(),
	)
	return booking, nil
}

// GetBooking returns a booking by ID.
func (s *BookingService) GetBooking(ctx context.Context, bookingID string) (*domain.Booking, error) {
	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		if domain.IsErrorCode(err, domain.ErrCodeBookingNotFound) {
			return nil, application.NewNotFoundError(err)
		}
		return nil, application.NewInternalError(err)
	}
	return booking, nil
}

// MarkAwaitingPayment moves a pending booking into the payment window. The
// reconciler drives this when it opens an attempt. Idempotent for bookings
// already awaiting payment.
func (s *BookingService) MarkAwaitingPayment(ctx context.Context, bookingID string) (*domain.Booking, error) {
	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		if domain.IsErrorCode(err, domain.ErrCodeBookingNotFound) {
			return nil, application.NewNotFoundError(err)
		}
		return nil, application.NewInternalError(err)
	}

	if booking.Status == domain.BookingAwaitingPayment {
		return booking, nil
	}
	if err := booking.MarkAwaitingPayment(); err != nil {
		return nil, application.NewConflictError(err)
	}
	if err := s.bookings.Update(ctx, booking); err != nil {
		return nil, application.NewInternalError(err)
	}
	return booking, nil
}

// FinalizeOnPayment transitions the booking to PAID and occupies its unit.
// When the completed attempt is passed along, its row and the booking row
// are written in one transaction; a settlement must never land on one side
// only. Idempotent: finalizing an already-settled booking is a no-op.
func (s *BookingService) FinalizeOnPayment(ctx context.Context, bookingID string, attempt *domain.PaymentAttempt) error {
	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		if domain.IsErrorCode(err, domain.ErrCodeBookingNotFound) {
			return application.NewNotFoundError(err)
		}
		return application.NewInternalError(err)
	}

	if booking.Settled() {
		return nil
	}
	if booking.IsTerminal() {
		return application.NewConflictError(domain.NewAlreadyFinalError(bookingID, booking.Status))
	}

	if err := booking.MarkPaid(time.Now()); err != nil {
		return application.NewConflictError(err)
	}
	if err := s.persistWithAttempt(ctx, booking, attempt); err != nil {
		return err
	}

	if err := s.units.Occupy(ctx, booking.UnitID); err != nil {
		// The booking is already PAID; an occupy conflict here means the
		// unit record drifted. Log loudly, do not unwind the payment.
		s.logger.Error("failed to occupy unit for paid booking",
			"booking_id", bookingID, "unit_id", booking.UnitID, "error", err)
	}

	s.logger.Info("booking finalized", "booking_id", bookingID, "unit_id", booking.UnitID)
	return nil
}

// RevertOnFailure cancels the booking and returns its unit to the pool.
// A failed attempt rides in the same transaction as the booking write.
// Idempotent: reverting an already-terminal booking is a no-op, though a
// still-active attempt passed with one is persisted so the sweep converges.
func (s *BookingService) RevertOnFailure(ctx context.Context, bookingID, reason string, attempt *domain.PaymentAttempt) error {
	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		if domain.IsErrorCode(err, domain.ErrCodeBookingNotFound) {
			return application.NewNotFoundError(err)
		}
		return application.NewInternalError(err)
	}

	if booking.IsTerminal() {
		if attempt != nil && s.tx != nil {
			if err := s.tx.ApplyTransition(ctx, attempt, booking); err != nil {
				return application.NewInternalError(err)
			}
		}
		return nil
	}
	if booking.Settled() {
		return application.NewConflictError(domain.NewAlreadyFinalError(bookingID, booking.Status))
	}

	if err := booking.Cancel(reason); err != nil {
		return application.NewConflictError(err)
	}
	if err := s.persistWithAttempt(ctx, booking, attempt); err != nil {
		return err
	}

	if err := s.units.Release(ctx, booking.UnitID); err != nil {
		s.logger.Error("failed to release unit for reverted booking",
			"booking_id", bookingID, "unit_id", booking.UnitID, "error", err)
	}

	s.logger.Info("booking reverted", "booking_id", bookingID, "reason", reason)
	return nil
}

// persistWithAttempt writes the booking row, coupled in one transaction
// with its attempt when one is in play.
func (s *BookingService) persistWithAttempt(ctx context.Context, booking *domain.Booking, attempt *domain.PaymentAttempt) error {
	if attempt == nil {
		if err := s.bookings.Update(ctx, booking); err != nil {
			return application.NewInternalError(err)
		}
		return nil
	}
	if s.tx == nil {
		return application.NewInternalError(errors.New("transaction coordinator not configured"))
	}
	if err := s.tx.ApplyTransition(ctx, attempt, booking); err != nil {
		return application.NewInternalError(err)
	}
	return nil
}

// ExpireStale sweeps bookings left unpaid past the wait window, whether
// they stalled before an attempt was ever opened or while one was in
// flight: the safety valve that guarantees a lost callback or an abandoned
// checkout can never strand a unit forever. Returns the IDs of bookings it
// closed out.
func (s *BookingService) ExpireStale(ctx context.Context, now time.Time, window time.Duration, batchSize int) ([]string, error) {
	if s.expirer == nil {
		return nil, errors.New("attempt expirer not configured")
	}

	cutoff := now.Add(-window)
	stale, err := s.bookings.FindUnpaidBefore(ctx, cutoff, batchSize)
	if err != nil {
		return nil, application.NewInternalError(err)
	}

	var expired []string
	for _, booking := range stale {
		if err := s.expirer.ExpireIfStale(ctx, booking.ID, now); err != nil {
			s.logger.Error("failed to expire stale booking", "booking_id", booking.ID, "error", err)
			continue
		}
		expired = append(expired, booking.ID)
	}
	return expired, nil
}

// Notify fires the post-payment notification without blocking the caller.
func (s *BookingService) Notify(ctx context.Context, booking *domain.Booking, attempt *domain.PaymentAttempt) {
	if s.notifier == nil {
		return
	}
	go s.notifier.PaymentReceived(context.WithoutCancel(ctx), booking, attempt)
}

// QuoteCost derives a booking's total cost from the unit's monthly rate:
// full months are billed whole, a partial trailing month is billed whole.
func QuoteCost(monthlyRate decimal.Decimal, start, end time.Time) decimal.Decimal {
	days := int(end.Sub(start).Hours() / 24)
	if days <= 0 {
		days = 1
	}
	months := (days + 29) / 30
	return monthlyRate.Mul(decimal.NewFromInt(int64(months)))
}

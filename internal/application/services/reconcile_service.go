package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/reservepay/reservepay/internal/application"
	"github.com/reservepay/reservepay/internal/domain"
	"github.com/reservepay/reservepay/internal/infrastructure/mpesa"
)

// ApplyOutcome reports what an inbound event or query result did to the
// attempt it correlates with.
type ApplyOutcome string

const (
	// OutcomeApplied: the event drove a state transition.
	OutcomeApplied ApplyOutcome = "APPLIED"
	// OutcomeDuplicate: the attempt was already terminal; the event was
	// absorbed without a state change.
	OutcomeDuplicate ApplyOutcome = "DUPLICATE"
	// OutcomeIgnored: the event matched no attempt, or the gateway still
	// reports the charge as in flight.
	OutcomeIgnored ApplyOutcome = "IGNORED"
)

// ReconcileService owns payment attempts and correlates asynchronous gateway
// events back to bookings. All mutations for one booking are serialized
// through a per-key lock; the first event to reach a terminal attempt state
// wins and every later event for that attempt becomes a no-op, so the
// callback path and the query fallback commute.
type ReconcileService struct {
	attempts   application.AttemptRepository
	callbacks  application.CallbackRepository
	gateway    mpesa.GatewayClient
	bookingSvc *BookingService
	locks      *keyMutex
	logger     *slog.Logger
}

func NewReconcileService(
	attempts application.AttemptRepository,
	callbacks application.CallbackRepository,
	gateway mpesa.GatewayClient,
	bookingSvc *BookingService,
	logger *slog.Logger,
) *ReconcileService {
	return &ReconcileService{
		attempts:   attempts,
		callbacks:  callbacks,
		gateway:    gateway,
		bookingSvc: bookingSvc,
		locks:      newKeyMutex(64),
		logger:     logger,
	}
}

var _ application.AttemptExpirer = (*ReconcileService)(nil)

// Open initiates a charge for the booking. Guarded: a booking with a
// non-terminal attempt cannot open another one. On gateway acceptance the
// attempt is stored PENDING with its correlation identifiers; a definitive
// gateway decline stores a FAILED attempt and reverts the booking; a
// transient failure leaves no record at all and surfaces to the caller.
func (s *ReconcileService) Open(ctx context.Context, bookingID, phone string, amount int64) (*domain.PaymentAttempt, error) {
	s.locks.Lock(bookingID)
	defer s.locks.Unlock(bookingID)

	booking, err := s.bookingSvc.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Settled() || booking.IsTerminal() {
		return nil, application.NewConflictError(domain.NewAlreadyFinalError(bookingID, booking.Status))
	}

	if active, err := s.attempts.FindActiveByBookingID(ctx, bookingID); err == nil && active != nil {
		return nil, application.NewConflictError(domain.NewAttemptActiveError(bookingID))
	} else if err != nil && !domain.IsErrorCode(err, domain.ErrCodeAttemptNotFound) {
		return nil, application.NewInternalError(err)
	}

	if phone == "" {
		phone = booking.Customer.Phone
	}
	if amount <= 0 {
		// Daraja only takes whole shillings.
		amount = booking.TotalCost.Ceil().IntPart()
	}

	attempt, err := domain.NewPaymentAttempt(uuid.New().String(), bookingID, phone, amount)
	if err != nil {
		return nil, application.NewInvalidInputError(err)
	}

	if _, err := s.bookingSvc.MarkAwaitingPayment(ctx, bookingID); err != nil {
		return nil, err
	}

	resp, err := s.gateway.Initiate(ctx, mpesa.InitiateRequest{
		Phone:       phone,
		Amount:      amount,
		Reference:   bookingID,
		Description: "Storage unit rental",
	})
	if err != nil {
		return nil, s.handleInitiateFailure(ctx, attempt, err)
	}

	if err := attempt.MarkPending(resp.CheckoutID, resp.MerchantID); err != nil {
		return nil, application.NewInternalError(err)
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		return nil, application.NewInternalError(err)
	}

	s.logger.Info("payment attempt opened",
		"booking_id", bookingID,
		"attempt_id", attempt.ID,
		"checkout_id", attempt.CheckoutID,
		"amount", amount,
	)
	return attempt, nil
}

// handleInitiateFailure maps a gateway initiation error onto attempt and
// booking state. Only definitive outcomes leave a record.
func (s *ReconcileService) handleInitiateFailure(ctx context.Context, attempt *domain.PaymentAttempt, gwErr error) error {
	err, ok := mpesa.IsGatewayError(gwErr)
	if !ok || err.Kind == mpesa.KindTransient {
		// Nothing was charged and nothing is in flight; the caller may
		// simply retry.
		return application.NewTransientError(gwErr)
	}

	if failErr := attempt.Fail(-1, err.Message); failErr != nil {
		return application.NewInternalError(failErr)
	}
	if createErr := s.attempts.Create(ctx, attempt); createErr != nil {
		return application.NewInternalError(createErr)
	}
	if revertErr := s.bookingSvc.RevertOnFailure(ctx, attempt.BookingID, "gateway declined charge: "+err.Message, nil); revertErr != nil {
		s.logger.Error("failed to revert booking after gateway decline",
			"booking_id", attempt.BookingID, "error", revertErr)
	}

	if err.Kind == mpesa.KindAuth {
		return &application.ServiceError{
			Code:       application.ErrCodeAuth,
			Message:    "Payment gateway authentication failed",
			HTTPStatus: 502,
			Err:        gwErr,
		}
	}
	return application.NewRejectedError(gwErr)
}

// ApplyCallback applies an asynchronous gateway notification. Duplicate
// deliveries are absorbed: once an attempt is terminal no event can move it
// again. Events that correlate with no known attempt are logged and dropped,
// never turned into new state.
func (s *ReconcileService) ApplyCallback(ctx context.Context, event *domain.CallbackEvent) (ApplyOutcome, error) {
	if _, err := s.callbacks.Record(ctx, event); err != nil {
		return "", application.NewInternalError(err)
	}

	attempt, err := s.attempts.FindByCheckoutID(ctx, event.CheckoutID)
	if err != nil {
		if domain.IsErrorCode(err, domain.ErrCodeAttemptNotFound) {
			s.logger.Warn("callback matched no attempt, discarding",
				"checkout_id", event.CheckoutID, "result_code", event.ResultCode)
			return OutcomeIgnored, nil
		}
		return "", application.NewInternalError(err)
	}

	s.locks.Lock(attempt.BookingID)
	defer s.locks.Unlock(attempt.BookingID)

	// Re-read under the lock: a racing query may have settled the attempt
	// between the correlation lookup and here.
	attempt, err = s.attempts.FindByID(ctx, attempt.ID)
	if err != nil {
		return "", application.NewInternalError(err)
	}
	if attempt.IsTerminal() {
		if attempt.Status == domain.AttemptCompleted {
			// A redelivered success is also the retry channel for a
			// settlement whose booking write was lost mid-flight.
			if finErr := s.bookingSvc.FinalizeOnPayment(ctx, attempt.BookingID, attempt); finErr != nil {
				s.logger.Error("failed to re-finalize booking for completed attempt",
					"booking_id", attempt.BookingID, "checkout_id", event.CheckoutID, "error", finErr)
			}
		}
		s.logger.Info("duplicate callback absorbed",
			"checkout_id", event.CheckoutID, "attempt_status", attempt.Status)
		return OutcomeDuplicate, nil
	}

	if event.ResultCode == domain.ResultSuccess {
		return s.settle(ctx, attempt, event.ReceiptNumber)
	}
	return s.reject(ctx, attempt, event.ResultCode, event.ResultDesc)
}

// ApplyQueryResult is the poll fallback for when no callback has arrived. It
// fetches the booking's in-flight attempt, asks the gateway for the charge's
// current status and applies the same transition logic as ApplyCallback.
func (s *ReconcileService) ApplyQueryResult(ctx context.Context, bookingID string) (ApplyOutcome, *domain.PaymentAttempt, error) {
	s.locks.Lock(bookingID)
	defer s.locks.Unlock(bookingID)

	attempt, err := s.attempts.FindActiveByBookingID(ctx, bookingID)
	if err != nil {
		if domain.IsErrorCode(err, domain.ErrCodeAttemptNotFound) {
			return OutcomeIgnored, nil, application.NewNotFoundError(err)
		}
		return "", nil, application.NewInternalError(err)
	}

	result, err := s.gateway.Query(ctx, attempt.CheckoutID)
	if err != nil {
		if gwErr, ok := mpesa.IsGatewayError(err); ok && gwErr.Kind == mpesa.KindTransient {
			return "", nil, application.NewTransientError(err)
		}
		return "", nil, application.NewRejectedError(err)
	}

	if result.Pending {
		return OutcomeIgnored, attempt, nil
	}

	if result.ResultCode == domain.ResultSuccess {
		// The query response carries no receipt; only callbacks do.
		outcome, err := s.settle(ctx, attempt, "")
		return outcome, attempt, err
	}
	outcome, err := s.reject(ctx, attempt, result.ResultCode, result.ResultDesc)
	return outcome, attempt, err
}

// FindByCheckoutID resolves a gateway correlation identifier to its attempt.
func (s *ReconcileService) FindByCheckoutID(ctx context.Context, checkoutID string) (*domain.PaymentAttempt, error) {
	attempt, err := s.attempts.FindByCheckoutID(ctx, checkoutID)
	if err != nil {
		if domain.IsErrorCode(err, domain.ErrCodeAttemptNotFound) {
			return nil, application.NewNotFoundError(err)
		}
		return nil, application.NewInternalError(err)
	}
	return attempt, nil
}

// StatusByCheckoutID answers a correlation identifier with the attempt's
// current state. While the attempt is still in flight the gateway is asked
// first, so the caller sees where the charge actually stands rather than
// the last stored snapshot. When the gateway cannot answer, the stored
// state is served.
func (s *ReconcileService) StatusByCheckoutID(ctx context.Context, checkoutID string) (*domain.PaymentAttempt, error) {
	attempt, err := s.FindByCheckoutID(ctx, checkoutID)
	if err != nil {
		return nil, err
	}
	if attempt.IsTerminal() {
		return attempt, nil
	}

	if _, _, qErr := s.ApplyQueryResult(ctx, attempt.BookingID); qErr != nil {
		s.logger.Warn("gateway status refresh failed, serving stored attempt",
			"checkout_id", checkoutID, "error", qErr)
	}
	return s.FindByCheckoutID(ctx, checkoutID)
}

// LatestForBooking returns the booking's most recent attempt, or nil when
// no payment was ever opened for it.
func (s *ReconcileService) LatestForBooking(ctx context.Context, bookingID string) (*domain.PaymentAttempt, error) {
	attempt, err := s.attempts.FindLatestByBookingID(ctx, bookingID)
	if err != nil {
		if domain.IsErrorCode(err, domain.ErrCodeAttemptNotFound) {
			return nil, nil
		}
		return nil, application.NewInternalError(err)
	}
	return attempt, nil
}

// ExpireIfStale marks the booking's in-flight attempt EXPIRED and reverts
// the booking, both rows in one transaction. A callback arriving after
// expiry observes a terminal attempt and is absorbed as a duplicate;
// nothing re-opens. A booking whose last attempt already COMPLETED is
// finalized instead: the customer was charged, so the sweep must finish
// the settlement, never cancel it.
func (s *ReconcileService) ExpireIfStale(ctx context.Context, bookingID string, now time.Time) error {
	s.locks.Lock(bookingID)
	defer s.locks.Unlock(bookingID)

	attempt, err := s.attempts.FindActiveByBookingID(ctx, bookingID)
	if err != nil {
		if !domain.IsErrorCode(err, domain.ErrCodeAttemptNotFound) {
			return application.NewInternalError(err)
		}
		latest, latestErr := s.attempts.FindLatestByBookingID(ctx, bookingID)
		if latestErr != nil && !domain.IsErrorCode(latestErr, domain.ErrCodeAttemptNotFound) {
			return application.NewInternalError(latestErr)
		}
		if latest != nil && latest.Status == domain.AttemptCompleted {
			s.logger.Warn("sweep found completed attempt on unsettled booking, finalizing",
				"booking_id", bookingID, "attempt_id", latest.ID)
			return s.bookingSvc.FinalizeOnPayment(ctx, bookingID, latest)
		}
		// Nothing in flight and nothing settled; just free the unit.
		return s.bookingSvc.RevertOnFailure(ctx, bookingID, "payment window elapsed", nil)
	}

	if err := attempt.Expire(); err != nil {
		return application.NewConflictError(err)
	}

	s.logger.Info("payment attempt expired",
		"booking_id", bookingID, "attempt_id", attempt.ID, "checkout_id", attempt.CheckoutID)
	return s.bookingSvc.RevertOnFailure(ctx, bookingID, "payment attempt expired", attempt)
}

// settle drives the success path: attempt COMPLETED and booking PAID in one
// transaction, unit OCCUPIED, then the fire-and-forget notification. Caller
// holds the lock.
func (s *ReconcileService) settle(ctx context.Context, attempt *domain.PaymentAttempt, receipt string) (ApplyOutcome, error) {
	if err := attempt.Complete(receipt, time.Now()); err != nil {
		return "", application.NewConflictError(err)
	}

	if err := s.bookingSvc.FinalizeOnPayment(ctx, attempt.BookingID, attempt); err != nil {
		return "", err
	}

	if booking, err := s.bookingSvc.GetBooking(ctx, attempt.BookingID); err == nil {
		s.bookingSvc.Notify(ctx, booking, attempt)
	}

	s.logger.Info("payment completed",
		"booking_id", attempt.BookingID,
		"attempt_id", attempt.ID,
		"receipt", receipt,
	)
	return OutcomeApplied, nil
}

// reject drives the failure path: attempt FAILED and booking cancelled in
// one transaction, unit released. Caller holds the lock.
func (s *ReconcileService) reject(ctx context.Context, attempt *domain.PaymentAttempt, resultCode int, resultDesc string) (ApplyOutcome, error) {
	if err := attempt.Fail(resultCode, resultDesc); err != nil {
		return "", application.NewConflictError(err)
	}

	if err := s.bookingSvc.RevertOnFailure(ctx, attempt.BookingID, resultDesc, attempt); err != nil {
		return "", err
	}

	s.logger.Info("payment failed",
		"booking_id", attempt.BookingID,
		"attempt_id", attempt.ID,
		"result_code", resultCode,
		"result_desc", resultDesc,
	)
	return OutcomeApplied, nil
}

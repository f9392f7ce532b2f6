package domain

import (
	"fmt"
	"slices"
	"time"
)

// AttemptStatus represents the state of a single gateway charge request
type AttemptStatus string

const (
	AttemptInitiated AttemptStatus = "INITIATED"
	AttemptPending   AttemptStatus = "PENDING"
	AttemptCompleted AttemptStatus = "COMPLETED"
	AttemptFailed    AttemptStatus = "FAILED"
	AttemptExpired   AttemptStatus = "EXPIRED"
)

// M-Pesa result codes observed on callbacks and status queries.
const (
	ResultSuccess           = 0
	ResultInsufficientFunds = 1
	ResultCancelledByUser   = 1032
	ResultTimeout           = 1037
)

// PaymentAttempt is one gateway-correlated charge request tied to a booking.
// A booking may accumulate several attempts across retries, but at most one
// may be non-terminal at a time.
type PaymentAttempt struct {
	ID        string
	BookingID string
	Phone     string
	Amount    int64

	// Correlation identifiers assigned by the gateway at initiation.
	CheckoutID string
	MerchantID string

	ReceiptNumber string
	ResultCode    *int
	ResultDesc    string

	Status      AttemptStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

func NewPaymentAttempt(id, bookingID, phone string, amount int64) (*PaymentAttempt, error) {
	if id == "" {
		return nil, NewMissingRequiredFieldError("attempt ID")
	}
	if bookingID == "" {
		return nil, NewMissingRequiredFieldError("booking ID")
	}
	if phone == "" {
		return nil, NewMissingRequiredFieldError("phone")
	}
	if amount <= 0 {
		return nil, NewInvalidAmountError(amount)
	}

	now := time.Now()
	return &PaymentAttempt{
		ID:        id,
		BookingID: bookingID,
		Phone:     phone,
		Amount:    amount,
		Status:    AttemptInitiated,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// MarkPending records the correlation identifiers handed back by the gateway
// once the charge request has been accepted for processing.
func (a *PaymentAttempt) MarkPending(checkoutID, merchantID string) error {
	if checkoutID == "" {
		return NewMissingRequiredFieldError("checkout ID")
	}
	if err := a.transition(AttemptPending); err != nil {
		return err
	}
	a.CheckoutID = checkoutID
	a.MerchantID = merchantID
	return nil
}

func (a *PaymentAttempt) Complete(receipt string, at time.Time) error {
	if err := a.transition(AttemptCompleted); err != nil {
		return err
	}
	code := ResultSuccess
	a.ResultCode = &code
	a.ReceiptNumber = receipt
	a.CompletedAt = &at
	return nil
}

func (a *PaymentAttempt) Fail(resultCode int, resultDesc string) error {
	if err := a.transition(AttemptFailed); err != nil {
		return err
	}
	a.ResultCode = &resultCode
	a.ResultDesc = resultDesc
	return nil
}

// Expire closes an attempt that outlived the payment wait window with no
// callback and no conclusive status query.
func (a *PaymentAttempt) Expire() error {
	if err := a.transition(AttemptExpired); err != nil {
		return err
	}
	a.ResultDesc = "no gateway confirmation within wait window"
	return nil
}

func (a *PaymentAttempt) transition(target AttemptStatus) error {
	if err := a.canTransitionTo(target); err != nil {
		return err
	}
	a.Status = target
	a.UpdatedAt = time.Now()
	return nil
}

// Attempts only move forward: INITIATED -> PENDING -> {COMPLETED, FAILED},
// or PENDING -> EXPIRED. Terminal states accept nothing.
func (a *PaymentAttempt) canTransitionTo(target AttemptStatus) error {
	switch a.Status {
	case AttemptInitiated:
		return a.allow(target, AttemptPending, AttemptFailed)
	case AttemptPending:
		return a.allow(target, AttemptCompleted, AttemptFailed, AttemptExpired)
	}
	return NewInvalidTransitionError(string(a.Status), string(target))
}

func (a *PaymentAttempt) allow(target AttemptStatus, allowed ...AttemptStatus) error {
	if slices.Contains(allowed, target) {
		return nil
	}
	return NewInvalidTransitionError(string(a.Status), string(target))
}

func (a *PaymentAttempt) IsTerminal() bool {
	switch a.Status {
	case AttemptCompleted, AttemptFailed, AttemptExpired:
		return true
	default:
		return false
	}
}

// CallbackEvent is a normalized gateway notification. Ephemeral: persisted
// only long enough to recognize redeliveries.
type CallbackEvent struct {
	CheckoutID    string
	MerchantID    string
	ResultCode    int
	ResultDesc    string
	ReceiptNumber string
	Amount        int64
	RawPayload    []byte
	ReceivedAt    time.Time
}

// IdempotencyKey derives a dedup key from the gateway's own transaction
// identifiers, so a retried delivery of the same outcome maps to one row.
func (e *CallbackEvent) IdempotencyKey() string {
	return fmt.Sprintf("%s:%d", e.CheckoutID, e.ResultCode)
}

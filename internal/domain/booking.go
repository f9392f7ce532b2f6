package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// BookingStatus represents the current state of a booking in its lifecycle
type BookingStatus string

const (
	BookingPending         BookingStatus = "PENDING"
	BookingAwaitingPayment BookingStatus = "AWAITING_PAYMENT"
	BookingPaid            BookingStatus = "PAID"
	BookingActive          BookingStatus = "ACTIVE"
	BookingCompleted       BookingStatus = "COMPLETED"
	BookingCancelled       BookingStatus = "CANCELLED"
	BookingFailed          BookingStatus = "FAILED"
)

type Customer struct {
	Name  string
	Email string
	Phone string
}

type Booking struct {
	ID        string
	UnitID    string
	Customer  Customer
	StartDate time.Time
	EndDate   time.Time
	TotalCost decimal.Decimal
	Status    BookingStatus

	FailureReason string

	CreatedAt time.Time
	UpdatedAt time.Time
	PaidAt    *time.Time
}

func NewBooking(id, unitID string, customer Customer, start, end time.Time, totalCost decimal.Decimal) (*Booking, error) {
	if id == "" {
		return nil, NewMissingRequiredFieldError("booking ID")
	}
	if unitID == "" {
		return nil, NewMissingRequiredFieldError("unit ID")
	}
	if customer.Name == "" {
		return nil, NewMissingRequiredFieldError("customer name")
	}
	if customer.Phone == "" {
		return nil, NewMissingRequiredFieldError("customer phone")
	}
	if !end.After(start) {
		return nil, NewInvalidDateRangeError("end date must be after start date")
	}
	if totalCost.IsNegative() || totalCost.IsZero() {
		return nil, NewInvalidAmountError(totalCost.IntPart())
	}

	now := time.Now()
	return &Booking{
		ID:        id,
		UnitID:    unitID,
		Customer:  customer,
		StartDate: start,
		EndDate:   end,
		TotalCost: totalCost,
		Status:    BookingPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (b *Booking) MarkAwaitingPayment() error {
	return b.transition(BookingAwaitingPayment)
}

// MarkPaid records settlement. Reachable only while a payment is pending,
// so a duplicate gateway notification can never pay a booking twice.
func (b *Booking) MarkPaid(at time.Time) error {
	if err := b.transition(BookingPaid); err != nil {
		return err
	}
	b.PaidAt = &at
	return nil
}

func (b *Booking) Activate() error {
	return b.transition(BookingActive)
}

func (b *Booking) Complete() error {
	return b.transition(BookingCompleted)
}

func (b *Booking) Cancel(reason string) error {
	if err := b.transition(BookingCancelled); err != nil {
		return err
	}
	b.FailureReason = reason
	return nil
}

func (b *Booking) Fail(reason string) error {
	if err := b.transition(BookingFailed); err != nil {
		return err
	}
	b.FailureReason = reason
	return nil
}

func (b *Booking) transition(target BookingStatus) error {
	if err := b.canTransitionTo(target); err != nil {
		return err
	}
	b.Status = target
	b.UpdatedAt = time.Now()
	return nil
}

// defines the booking statuses that can be transitioned to
func (b *Booking) canTransitionTo(target BookingStatus) error {
	switch b.Status {
	case BookingPending:
		return b.allow(target, BookingAwaitingPayment, BookingCancelled, BookingFailed)
	case BookingAwaitingPayment:
		return b.allow(target, BookingPaid, BookingCancelled, BookingFailed)
	case BookingPaid:
		return b.allow(target, BookingActive)
	case BookingActive:
		return b.allow(target, BookingCompleted)
	}
	return NewInvalidTransitionError(string(b.Status), string(target))
}

func (b *Booking) allow(target BookingStatus, allowed ...BookingStatus) error {
	if slices.Contains(allowed, target) {
		return nil
	}
	return NewInvalidTransitionError(string(b.Status), string(target))
}

// IsTerminal reports whether the booking can no longer hold a unit in reserve.
func (b *Booking) IsTerminal() bool {
	switch b.Status {
	case BookingCompleted, BookingCancelled, BookingFailed:
		return true
	default:
		return false
	}
}

// Settled reports whether payment has already been applied.
func (b *Booking) Settled() bool {
	switch b.Status {
	case BookingPaid, BookingActive, BookingCompleted:
		return true
	default:
		return false
	}
}

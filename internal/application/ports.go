package application

import (
	"context"
	"time"

	"github.com/reservepay/reservepay/internal/domain"
)

// UnitRepository is the port for unit inventory. Reserve, Release and Occupy
// are single-row compare-and-swap transitions; a swap that finds the unit in
// an unexpected state reports a conflict, never a partial write.
type UnitRepository interface {
	Create(ctx context.Context, unit *domain.StorageUnit) error
	FindByID(ctx context.Context, id string) (*domain.StorageUnit, error)
	List(ctx context.Context) ([]*domain.StorageUnit, error)
	Update(ctx context.Context, unit *domain.StorageUnit) error

	// Delete removes a unit. Guarded: only an AVAILABLE unit can go.
	Delete(ctx context.Context, unitID string) error

	// Reserve flips AVAILABLE -> RESERVED.
	Reserve(ctx context.Context, unitID string) error
	// Release flips RESERVED or OCCUPIED -> AVAILABLE.
	Release(ctx context.Context, unitID string) error
	// Occupy flips RESERVED -> OCCUPIED.
	Occupy(ctx context.Context, unitID string) error
}

// BookingRepository is the port for booking persistence.
type BookingRepository interface {
	Create(ctx context.Context, booking *domain.Booking) error
	FindByID(ctx context.Context, id string) (*domain.Booking, error)
	Update(ctx context.Context, booking *domain.Booking) error
	// FindUnpaidBefore returns bookings still holding a unit without payment,
	// PENDING or AWAITING_PAYMENT, whose last update predates the cutoff.
	FindUnpaidBefore(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Booking, error)
}

// AttemptRepository is the port for payment attempt persistence.
type AttemptRepository interface {
	Create(ctx context.Context, attempt *domain.PaymentAttempt) error
	FindByID(ctx context.Context, id string) (*domain.PaymentAttempt, error)
	// FindByCheckoutID is the indexed correlation lookup for inbound events.
	// A miss is reported as not found, never an implicit create.
	FindByCheckoutID(ctx context.Context, checkoutID string) (*domain.PaymentAttempt, error)
	// FindActiveByBookingID returns the booking's single non-terminal attempt.
	FindActiveByBookingID(ctx context.Context, bookingID string) (*domain.PaymentAttempt, error)
	// FindLatestByBookingID returns the booking's most recent attempt,
	// terminal or not.
	FindLatestByBookingID(ctx context.Context, bookingID string) (*domain.PaymentAttempt, error)
	Update(ctx context.Context, attempt *domain.PaymentAttempt) error
}

// TransactionCoordinator persists an attempt and its booking in one atomic
// write. A settlement recorded on one side only would strand a completed
// charge, so the two rows always move together.
type TransactionCoordinator interface {
	ApplyTransition(ctx context.Context, attempt *domain.PaymentAttempt, booking *domain.Booking) error
}

// CallbackRepository records inbound gateway events for deduplication.
type CallbackRepository interface {
	// Record stores the event keyed by its idempotency key. It returns false
	// when an event with the same key was already recorded.
	Record(ctx context.Context, event *domain.CallbackEvent) (bool, error)
	// DeleteOlderThan prunes dedup rows past the gateway retry window.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Notifier is invoked after a booking is finalized. Fire-and-forget: a
// notification failure must never roll back a payment.
type Notifier interface {
	PaymentReceived(ctx context.Context, booking *domain.Booking, attempt *domain.PaymentAttempt)
}

// AttemptExpirer closes out a booking's stale attempt. Implemented by the
// reconciler; consumed by the booking service's expiry sweep.
type AttemptExpirer interface {
	ExpireIfStale(ctx context.Context, bookingID string, now time.Time) error
}

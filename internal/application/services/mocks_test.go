package services_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/reservepay/reservepay/internal/domain"
	"github.com/reservepay/reservepay/internal/infrastructure/mpesa"
)

// MockUnitRepository
type MockUnitRepository struct {
	mu    sync.Mutex
	units map[string]*domain.StorageUnit

	CreateFn  func(ctx context.Context, unit *domain.StorageUnit) error
	DeleteFn  func(ctx context.Context, unitID string) error
	ReserveFn func(ctx context.Context, unitID string) error
	ReleaseFn func(ctx context.Context, unitID string) error
	OccupyFn  func(ctx context.Context, unitID string) error
}

func NewMockUnitRepository() *MockUnitRepository {
	return &MockUnitRepository{units: make(map[string]*domain.StorageUnit)}
}

func (m *MockUnitRepository) Create(ctx context.Context, unit *domain.StorageUnit) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, unit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.units[unit.ID] = unit
	return nil
}

func (m *MockUnitRepository) FindByID(ctx context.Context, id string) (*domain.StorageUnit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.units[id]; ok {
		return u, nil
	}
	return nil, domain.NewUnitNotFoundError(id)
}

func (m *MockUnitRepository) List(ctx context.Context) ([]*domain.StorageUnit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.StorageUnit, 0, len(m.units))
	for _, u := range m.units {
		out = append(out, u)
	}
	return out, nil
}

func (m *MockUnitRepository) Update(ctx context.Context, unit *domain.StorageUnit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.units[unit.ID]; !ok {
		return domain.NewUnitNotFoundError(unit.ID)
	}
	m.units[unit.ID] = unit
	return nil
}

func (m *MockUnitRepository) Delete(ctx context.Context, unitID string) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, unitID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.units[unitID]
	if !ok {
		return domain.NewUnitNotFoundError(unitID)
	}
	if u.Status != domain.UnitAvailable {
		return domain.NewUnitConflictError(unitID)
	}
	delete(m.units, unitID)
	return nil
}

// swap mimics the repository's single-row compare-and-swap under a mutex,
// so concurrent reserves observe the same exactly-one-wins behavior as the
// real store.
func (m *MockUnitRepository) swap(unitID string, to domain.UnitStatus, from ...domain.UnitStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.units[unitID]
	if !ok {
		return domain.NewUnitNotFoundError(unitID)
	}
	for _, f := range from {
		if u.Status == f {
			u.Status = to
			return nil
		}
	}
	return domain.NewUnitConflictError(unitID)
}

func (m *MockUnitRepository) Reserve(ctx context.Context, unitID string) error {
	if m.ReserveFn != nil {
		return m.ReserveFn(ctx, unitID)
	}
	return m.swap(unitID, domain.UnitReserved, domain.UnitAvailable)
}

func (m *MockUnitRepository) Release(ctx context.Context, unitID string) error {
	if m.ReleaseFn != nil {
		return m.ReleaseFn(ctx, unitID)
	}
	return m.swap(unitID, domain.UnitAvailable, domain.UnitReserved, domain.UnitOccupied)
}

func (m *MockUnitRepository) Occupy(ctx context.Context, unitID string) error {
	if m.OccupyFn != nil {
		return m.OccupyFn(ctx, unitID)
	}
	return m.swap(unitID, domain.UnitOccupied, domain.UnitReserved)
}

// MockBookingRepository
type MockBookingRepository struct {
	mu       sync.Mutex
	bookings map[string]*domain.Booking

	CreateFn func(ctx context.Context, booking *domain.Booking) error
	UpdateFn func(ctx context.Context, booking *domain.Booking) error
}

func NewMockBookingRepository() *MockBookingRepository {
	return &MockBookingRepository{bookings: make(map[string]*domain.Booking)}
}

func (m *MockBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, booking)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[booking.ID] = booking
	return nil
}

func (m *MockBookingRepository) FindByID(ctx context.Context, id string) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.bookings[id]; ok {
		return b, nil
	}
	return nil, domain.NewBookingNotFoundError(id)
}

func (m *MockBookingRepository) Update(ctx context.Context, booking *domain.Booking) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, booking)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bookings[booking.ID]; !ok {
		return domain.NewBookingNotFoundError(booking.ID)
	}
	m.bookings[booking.ID] = booking
	return nil
}

func (m *MockBookingRepository) FindUnpaidBefore(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Booking
	for _, b := range m.bookings {
		unpaid := b.Status == domain.BookingPending || b.Status == domain.BookingAwaitingPayment
		if unpaid && b.UpdatedAt.Before(cutoff) {
			out = append(out, b)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// MockAttemptRepository
type MockAttemptRepository struct {
	mu       sync.Mutex
	attempts map[string]*domain.PaymentAttempt

	CreateFn func(ctx context.Context, attempt *domain.PaymentAttempt) error
	UpdateFn func(ctx context.Context, attempt *domain.PaymentAttempt) error
}

func NewMockAttemptRepository() *MockAttemptRepository {
	return &MockAttemptRepository{attempts: make(map[string]*domain.PaymentAttempt)}
}

func (m *MockAttemptRepository) Create(ctx context.Context, attempt *domain.PaymentAttempt) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, attempt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[attempt.ID] = attempt
	return nil
}

func (m *MockAttemptRepository) FindByID(ctx context.Context, id string) (*domain.PaymentAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.attempts[id]; ok {
		return a, nil
	}
	return nil, domain.NewAttemptNotFoundError(id)
}

func (m *MockAttemptRepository) FindByCheckoutID(ctx context.Context, checkoutID string) (*domain.PaymentAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.attempts {
		if a.CheckoutID == checkoutID {
			return a, nil
		}
	}
	return nil, domain.NewAttemptNotFoundError(checkoutID)
}

func (m *MockAttemptRepository) FindActiveByBookingID(ctx context.Context, bookingID string) (*domain.PaymentAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.attempts {
		if a.BookingID == bookingID && !a.IsTerminal() {
			return a, nil
		}
	}
	return nil, domain.NewAttemptNotFoundError(bookingID)
}

func (m *MockAttemptRepository) FindLatestByBookingID(ctx context.Context, bookingID string) (*domain.PaymentAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *domain.PaymentAttempt
	for _, a := range m.attempts {
		if a.BookingID != bookingID {
			continue
		}
		if latest == nil || a.CreatedAt.After(latest.CreatedAt) {
			latest = a
		}
	}
	if latest == nil {
		return nil, domain.NewAttemptNotFoundError(bookingID)
	}
	return latest, nil
}

func (m *MockAttemptRepository) Update(ctx context.Context, attempt *domain.PaymentAttempt) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, attempt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.attempts[attempt.ID]; !ok {
		return domain.NewAttemptNotFoundError(attempt.ID)
	}
	m.attempts[attempt.ID] = attempt
	return nil
}

// MockTransactionCoordinator applies the attempt and booking writes through
// the backing mocks. ApplyFn stands in for an aborted transaction: a test
// restores the pre-transition values there and returns the failure.
type MockTransactionCoordinator struct {
	attempts *MockAttemptRepository
	bookings *MockBookingRepository

	ApplyFn func(ctx context.Context, attempt *domain.PaymentAttempt, booking *domain.Booking) error
}

func NewMockTransactionCoordinator(attempts *MockAttemptRepository, bookings *MockBookingRepository) *MockTransactionCoordinator {
	return &MockTransactionCoordinator{attempts: attempts, bookings: bookings}
}

func (m *MockTransactionCoordinator) ApplyTransition(ctx context.Context, attempt *domain.PaymentAttempt, booking *domain.Booking) error {
	if m.ApplyFn != nil {
		return m.ApplyFn(ctx, attempt, booking)
	}
	if err := m.attempts.Update(ctx, attempt); err != nil {
		return err
	}
	return m.bookings.Update(ctx, booking)
}

// MockCallbackRepository
type MockCallbackRepository struct {
	mu     sync.Mutex
	events map[string]*domain.CallbackEvent
}

func NewMockCallbackRepository() *MockCallbackRepository {
	return &MockCallbackRepository{events: make(map[string]*domain.CallbackEvent)}
}

func (m *MockCallbackRepository) Record(ctx context.Context, event *domain.CallbackEvent) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := event.IdempotencyKey()
	if _, ok := m.events[key]; ok {
		return false, nil
	}
	m.events[key] = event
	return true, nil
}

func (m *MockCallbackRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var pruned int64
	for key, e := range m.events {
		if e.ReceivedAt.Before(cutoff) {
			delete(m.events, key)
			pruned++
		}
	}
	return pruned, nil
}

// MockNotifier
type MockNotifier struct {
	mu    sync.Mutex
	calls int
}

func (m *MockNotifier) PaymentReceived(ctx context.Context, booking *domain.Booking, attempt *domain.PaymentAttempt) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
}

func (m *MockNotifier) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockGatewayClient
type MockGatewayClient struct {
	mu        sync.Mutex
	initiated int

	InitiateFn func(ctx context.Context, req mpesa.InitiateRequest) (*mpesa.InitiateResponse, error)
	QueryFn    func(ctx context.Context, checkoutID string) (*mpesa.QueryResponse, error)
}

func (m *MockGatewayClient) Initiate(ctx context.Context, req mpesa.InitiateRequest) (*mpesa.InitiateResponse, error) {
	m.mu.Lock()
	m.initiated++
	n := m.initiated
	m.mu.Unlock()
	if m.InitiateFn != nil {
		return m.InitiateFn(ctx, req)
	}
	return &mpesa.InitiateResponse{
		CheckoutID: "ws_CO_" + req.Reference + "_" + string(rune('0'+n%10)),
		MerchantID: "29115-34620561-1",
	}, nil
}

func (m *MockGatewayClient) Query(ctx context.Context, checkoutID string) (*mpesa.QueryResponse, error) {
	if m.QueryFn != nil {
		return m.QueryFn(ctx, checkoutID)
	}
	return &mpesa.QueryResponse{Pending: true}, nil
}

func (m *MockGatewayClient) Initiated() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initiated
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

package worker_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reservepay/reservepay/internal/application"
	"github.com/reservepay/reservepay/internal/application/services"
	"github.com/reservepay/reservepay/internal/domain"
	"github.com/reservepay/reservepay/internal/worker"
)

// The worker drives BookingService.ExpireStale, which needs real
// repositories behind it; here we only verify the sweep plumbing, so the
// callback prune is exercised against an in-memory store and the booking
// sweep against an empty one.

type memBookingRepo struct{}

func (memBookingRepo) Create(ctx context.Context, booking *domain.Booking) error { return nil }
func (memBookingRepo) FindByID(ctx context.Context, id string) (*domain.Booking, error) {
	return nil, domain.NewBookingNotFoundError(id)
}
func (memBookingRepo) Update(ctx context.Context, booking *domain.Booking) error { return nil }
func (memBookingRepo) FindUnpaidBefore(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Booking, error) {
	return nil, nil
}

type memCallbackRepo struct {
	events map[string]*domain.CallbackEvent
}

func (m *memCallbackRepo) Record(ctx context.Context, event *domain.CallbackEvent) (bool, error) {
	if _, ok := m.events[event.IdempotencyKey()]; ok {
		return false, nil
	}
	m.events[event.IdempotencyKey()] = event
	return true, nil
}

func (m *memCallbackRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var pruned int64
	for key, e := range m.events {
		if e.ReceivedAt.Before(cutoff) {
			delete(m.events, key)
			pruned++
		}
	}
	return pruned, nil
}

var _ application.CallbackRepository = (*memCallbackRepo)(nil)

type memUnitRepo struct{}

func (memUnitRepo) Create(ctx context.Context, unit *domain.StorageUnit) error { return nil }
func (memUnitRepo) FindByID(ctx context.Context, id string) (*domain.StorageUnit, error) {
	return nil, domain.NewUnitNotFoundError(id)
}
func (memUnitRepo) List(ctx context.Context) ([]*domain.StorageUnit, error) { return nil, nil }
func (memUnitRepo) Update(ctx context.Context, unit *domain.StorageUnit) error {
	return nil
}
func (memUnitRepo) Delete(ctx context.Context, unitID string) error  { return nil }
func (memUnitRepo) Reserve(ctx context.Context, unitID string) error { return nil }
func (memUnitRepo) Release(ctx context.Context, unitID string) error { return nil }
func (memUnitRepo) Occupy(ctx context.Context, unitID string) error  { return nil }

type stubExpirer struct{ calls int }

func (s *stubExpirer) ExpireIfStale(ctx context.Context, bookingID string, now time.Time) error {
	s.calls++
	return nil
}

func newWorkerFixture(t *testing.T, callbacks *memCallbackRepo) *worker.ExpiryWorker {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bookingSvc := services.NewBookingService(memUnitRepo{}, memBookingRepo{}, nil, nil, logger)
	bookingSvc.SetAttemptExpirer(&stubExpirer{})
	return worker.NewExpiryWorker(
		bookingSvc,
		callbacks,
		time.Minute,
		5*time.Minute,
		24*time.Hour,
		100,
		logger,
	)
}

func TestRunOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("prunes callback records past retention", func(t *testing.T) {
		callbacks := &memCallbackRepo{events: make(map[string]*domain.CallbackEvent)}

		old := &domain.CallbackEvent{CheckoutID: "ws_CO_old", ReceivedAt: time.Now().Add(-48 * time.Hour)}
		fresh := &domain.CallbackEvent{CheckoutID: "ws_CO_new", ReceivedAt: time.Now()}
		_, err := callbacks.Record(ctx, old)
		require.NoError(t, err)
		_, err = callbacks.Record(ctx, fresh)
		require.NoError(t, err)

		w := newWorkerFixture(t, callbacks)
		w.RunOnce(ctx)

		assert.Len(t, callbacks.events, 1)
		assert.Contains(t, callbacks.events, fresh.IdempotencyKey())
	})

	t.Run("tolerates an empty sweep", func(t *testing.T) {
		callbacks := &memCallbackRepo{events: make(map[string]*domain.CallbackEvent)}
		w := newWorkerFixture(t, callbacks)

		w.RunOnce(ctx)
		w.RunOnce(ctx)
	})
}

func TestStartStopsOnContextCancel(t *testing.T) {
	callbacks := &memCallbackRepo{events: make(map[string]*domain.CallbackEvent)}
	w := newWorkerFixture(t, callbacks)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}
}

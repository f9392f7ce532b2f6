// Package handlers exposes the booking and payment operations over HTTP.
package handlers

import (
	"context"
	"log/slog"

	"github.com/go-playground/validator"
	"github.com/reservepay/reservepay/internal/application/services"
	"github.com/reservepay/reservepay/internal/domain"
)

type UnitsService interface {
	CreateUnit(ctx context.Context, cmd services.UpsertUnitCommand) (*domain.StorageUnit, error)
	GetUnit(ctx context.Context, unitID string) (*domain.StorageUnit, error)
	ListUnits(ctx context.Context) ([]*domain.StorageUnit, error)
	UpdateUnit(ctx context.Context, unitID string, cmd services.UpsertUnitCommand) (*domain.StorageUnit, error)
	DeleteUnit(ctx context.Context, unitID string) error
}

type BookingsService interface {
	CreateBooking(ctx context.Context, cmd services.CreateBookingCommand) (*domain.Booking, error)
	GetBooking(ctx context.Context, bookingID string) (*domain.Booking, error)
}

type PaymentsService interface {
	Open(ctx context.Context, bookingID, phone string, amount int64) (*domain.PaymentAttempt, error)
	ApplyCallback(ctx context.Context, event *domain.CallbackEvent) (services.ApplyOutcome, error)
	ApplyQueryResult(ctx context.Context, bookingID string) (services.ApplyOutcome, *domain.PaymentAttempt, error)
	StatusByCheckoutID(ctx context.Context, checkoutID string) (*domain.PaymentAttempt, error)
	LatestForBooking(ctx context.Context, bookingID string) (*domain.PaymentAttempt, error)
}

type Handlers struct {
	units    UnitsService
	bookings BookingsService
	payments PaymentsService
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandlers(
	units UnitsService,
	bookings BookingsService,
	payments PaymentsService,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		units:    units,
		bookings: bookings,
		payments: payments,
		validate: validator.New(),
		logger:   logger,
	}
}

package services

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/reservepay/reservepay/internal/application"
	"github.com/reservepay/reservepay/internal/domain"
	"github.com/shopspring/decimal"
)

// UnitService is the thin catalog layer over unit inventory. Status is never
// written here; only BookingService transitions availability.
type UnitService struct {
	units  application.UnitRepository
	logger *slog.Logger
}

type UpsertUnitCommand struct {
	UnitNumber  string
	Site        string
	Location    string
	MonthlyRate decimal.Decimal
	Features    []string
}

func NewUnitService(units application.UnitRepository, logger *slog.Logger) *UnitService {
	return &UnitService{units: units, logger: logger}
}

func (s *UnitService) CreateUnit(ctx context.Context, cmd UpsertUnitCommand) (*domain.StorageUnit, error) {
	unit, err := domain.NewStorageUnit(uuid.New().String(), cmd.UnitNumber, cmd.Site, cmd.Location, cmd.MonthlyRate, cmd.Features)
	if err != nil {
		return nil, application.NewInvalidInputError(err)
	}

	if err := s.units.Create(ctx, unit); err != nil {
		if domain.IsErrorCode(err, domain.ErrCodeUnitConflict) {
			return nil, application.NewDuplicateError(err)
		}
		return nil, application.NewInternalError(err)
	}

	s.logger.Info("unit created", "unit_id", unit.ID, "unit_number", unit.UnitNumber)
	return unit, nil
}

func (s *UnitService) GetUnit(ctx context.Context, unitID string) (*domain.StorageUnit, error) {
	unit, err := s.units.FindByID(ctx, unitID)
	if err != nil {
		if domain.IsErrorCode(err, domain.ErrCodeUnitNotFound) {
			return nil, application.NewNotFoundError(err)
		}
		return nil, application.NewInternalError(err)
	}
	return unit, nil
}

func (s *UnitService) ListUnits(ctx context.Context) ([]*domain.StorageUnit, error) {
	units, err := s.units.List(ctx)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	return units, nil
}

// UpdateUnit rewrites the unit's descriptive attributes. A unit held by a
// non-terminal booking keeps its status untouched.
func (s *UnitService) UpdateUnit(ctx context.Context, unitID string, cmd UpsertUnitCommand) (*domain.StorageUnit, error) {
	unit, err := s.units.FindByID(ctx, unitID)
	if err != nil {
		if domain.IsErrorCode(err, domain.ErrCodeUnitNotFound) {
			return nil, application.NewNotFoundError(err)
		}
		return nil, application.NewInternalError(err)
	}

	if cmd.UnitNumber != "" {
		unit.UnitNumber = cmd.UnitNumber
	}
	if cmd.Site != "" {
		unit.Site = cmd.Site
	}
	if cmd.Location != "" {
		unit.Location = cmd.Location
	}
	if !cmd.MonthlyRate.IsZero() {
		if cmd.MonthlyRate.IsNegative() {
			return nil, application.NewInvalidInputError(domain.NewInvalidAmountError(cmd.MonthlyRate.IntPart()))
		}
		unit.MonthlyRate = cmd.MonthlyRate
	}
	if cmd.Features != nil {
		unit.Features = cmd.Features
	}

	if err := s.units.Update(ctx, unit); err != nil {
		return nil, application.NewInternalError(err)
	}
	return unit, nil
}

// DeleteUnit removes a unit from the catalog. A unit held by a booking in
// progress cannot go; the booking has to finish or be cancelled first.
func (s *UnitService) DeleteUnit(ctx context.Context, unitID string) error {
	unit, err := s.units.FindByID(ctx, unitID)
	if err != nil {
		if domain.IsErrorCode(err, domain.ErrCodeUnitNotFound) {
			return application.NewNotFoundError(err)
		}
		return application.NewInternalError(err)
	}

	if unit.Held() {
		return application.NewConflictError(domain.NewUnitHasBookingError(unitID))
	}

	if err := s.units.Delete(ctx, unitID); err != nil {
		if domain.IsErrorCode(err, domain.ErrCodeUnitNotFound) {
			return application.NewNotFoundError(err)
		}
		// A booking raced the delete and took the unit.
		if domain.IsErrorCode(err, domain.ErrCodeUnitConflict) {
			return application.NewConflictError(domain.NewUnitHasBookingError(unitID))
		}
		return application.NewInternalError(err)
	}

	s.logger.Info("unit deleted", "unit_id", unitID)
	return nil
}

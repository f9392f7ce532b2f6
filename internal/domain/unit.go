// Package domain holds the entities of the rental service: storage units,
// bookings and the gateway-correlated payment attempts that settle them.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// UnitStatus is the single availability flag on a storage unit.
// A unit does not carry an interval calendar; it is either free,
// held by a booking awaiting payment, or occupied by a paid booking.
type UnitStatus string

const (
	UnitAvailable UnitStatus = "AVAILABLE"
	UnitReserved  UnitStatus = "RESERVED"
	UnitOccupied  UnitStatus = "OCCUPIED"
)

type StorageUnit struct {
	ID          string
	UnitNumber  string
	Site        string
	Location    string
	MonthlyRate decimal.Decimal
	Features    []string
	Status      UnitStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func NewStorageUnit(id, unitNumber, site, location string, monthlyRate decimal.Decimal, features []string) (*StorageUnit, error) {
	if id == "" {
		return nil, NewMissingRequiredFieldError("unit ID")
	}
	if unitNumber == "" {
		return nil, NewMissingRequiredFieldError("unit number")
	}
	if site == "" {
		return nil, NewMissingRequiredFieldError("site")
	}
	if monthlyRate.IsNegative() || monthlyRate.IsZero() {
		return nil, NewInvalidAmountError(monthlyRate.IntPart())
	}

	now := time.Now()
	return &StorageUnit{
		ID:          id,
		UnitNumber:  unitNumber,
		Site:        site,
		Location:    location,
		MonthlyRate: monthlyRate,
		Features:    features,
		Status:      UnitAvailable,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Held reports whether the unit is referenced by a non-terminal booking.
func (u *StorageUnit) Held() bool {
	return u.Status == UnitReserved || u.Status == UnitOccupied
}

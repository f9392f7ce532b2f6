package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business logic error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Domain error codes
const (
	ErrCodeInvalidTransition    = "INVALID_TRANSITION"
	ErrCodeUnitConflict         = "UNIT_CONFLICT"
	ErrCodeUnitNotFound         = "UNIT_NOT_FOUND"
	ErrCodeBookingNotFound      = "BOOKING_NOT_FOUND"
	ErrCodeAttemptNotFound      = "ATTEMPT_NOT_FOUND"
	ErrCodeAttemptActive        = "ATTEMPT_ALREADY_ACTIVE"
	ErrCodeAlreadyFinal         = "ALREADY_FINAL"
	ErrCodeInvalidDateRange     = "INVALID_DATE_RANGE"
	ErrCodeInvalidAmount        = "INVALID_AMOUNT"
	ErrCodeMissingRequiredField = "MISSING_REQUIRED_FIELD"
	ErrCodeUnitHasBooking       = "UNIT_HAS_ACTIVE_BOOKING"
)

func NewMissingRequiredFieldError(field string) *DomainError {
	return &DomainError{
		Code:    ErrCodeMissingRequiredField,
		Message: fmt.Sprintf("%s is required", field),
	}
}

func NewUnitConflictError(unitID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeUnitConflict,
		Message: fmt.Sprintf("unit %s is not available", unitID),
	}
}

func NewUnitExistsError(unitNumber, site string) *DomainError {
	return &DomainError{
		Code:    ErrCodeUnitConflict,
		Message: fmt.Sprintf("unit %s already exists at %s", unitNumber, site),
	}
}

func NewUnitNotFoundError(unitID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeUnitNotFound,
		Message: fmt.Sprintf("unit with ID %s not found", unitID),
	}
}

func NewBookingNotFoundError(bookingID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeBookingNotFound,
		Message: fmt.Sprintf("booking with ID %s not found", bookingID),
	}
}

func NewAttemptNotFoundError(ref string) *DomainError {
	return &DomainError{
		Code:    ErrCodeAttemptNotFound,
		Message: fmt.Sprintf("payment attempt %s not found", ref),
	}
}

func NewAttemptActiveError(bookingID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeAttemptActive,
		Message: fmt.Sprintf("booking %s already has a payment attempt in flight", bookingID),
	}
}

func NewAlreadyFinalError(bookingID string, status BookingStatus) *DomainError {
	return &DomainError{
		Code:    ErrCodeAlreadyFinal,
		Message: fmt.Sprintf("booking %s is already %s", bookingID, status),
	}
}

func NewInvalidDateRangeError(reason string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidDateRange,
		Message: fmt.Sprintf("invalid date range: %s", reason),
	}
}

func NewInvalidAmountError(amount int64) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidAmount,
		Message: fmt.Sprintf("invalid amount %d", amount),
	}
}

func NewUnitHasBookingError(unitID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeUnitHasBooking,
		Message: fmt.Sprintf("unit %s has a booking in progress", unitID),
	}
}

// ErrInvalidTransition is the sentinel wrapped by every transition error.
var ErrInvalidTransition = errors.New("invalid status transition")

func NewInvalidTransitionError(from, to string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
		Err:     ErrInvalidTransition,
	}
}

// IsErrorCode checks if an error is a DomainError with a specific code
func IsErrorCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

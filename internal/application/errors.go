package application

import (
	"errors"
	"fmt"
	"net/http"
)

// APPLICATION-LEVEL ERRORS (Orchestration)

type ServiceError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeConflict     = "CONFLICT"
	ErrCodeTransient    = "GATEWAY_UNREACHABLE"
	ErrCodeRejected     = "GATEWAY_REJECTED"
	ErrCodeAuth         = "GATEWAY_AUTH_FAILED"
	ErrCodeDuplicate    = "DUPLICATE"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

func NewConflictError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeConflict,
		Message:    "Resource is in a conflicting state",
		HTTPStatus: http.StatusConflict,
		Err:        err,
	}
}

func NewTransientError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeTransient,
		Message:    "Payment gateway is unreachable. Please retry.",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func NewRejectedError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeRejected,
		Message:    "Payment gateway declined the request",
		HTTPStatus: http.StatusUnprocessableEntity,
		Err:        err,
	}
}

func NewDuplicateError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeDuplicate,
		Message:    "Resource already exists",
		HTTPStatus: http.StatusConflict,
		Err:        err,
	}
}

func NewNotFoundError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeNotFound,
		Message:    "Resource not found",
		HTTPStatus: http.StatusNotFound,
		Err:        err,
	}
}

func NewInvalidInputError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInvalidInput,
		Message:    "Invalid input",
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
	}
}

func NewInternalError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInternal,
		Message:    "An internal error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func IsServiceError(err error) (*ServiceError, bool) {
	var svcErr *ServiceError
	ok := errors.As(err, &svcErr)
	return svcErr, ok
}

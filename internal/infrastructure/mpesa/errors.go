package mpesa

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a gateway failure for the caller's retry decision.
type ErrorKind string

const (
	// KindAuth: credential or token failure. Retryable after re-authenticating.
	KindAuth ErrorKind = "AUTH"
	// KindRejected: the gateway explicitly declined the request. Not
	// retryable with the same parameters.
	KindRejected ErrorKind = "REJECTED"
	// KindTransient: network error, timeout or gateway-side 5xx. Retryable
	// with backoff.
	KindTransient ErrorKind = "TRANSIENT"
)

type GatewayError struct {
	Kind       ErrorKind
	Code       string
	Message    string
	StatusCode int
}

type gatewayErrorResponse struct {
	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("mpesa error [%s/%s]: %s (status: %d)", e.Kind, e.Code, e.Message, e.StatusCode)
}

func (e *GatewayError) IsRetryable() bool {
	return e.Kind == KindTransient
}

func IsGatewayError(err error) (*GatewayError, bool) {
	var gwErr *GatewayError
	ok := errors.As(err, &gwErr)
	return gwErr, ok
}

// Daraja reports "transaction is being processed" as an error on status
// queries fired before the customer has responded to the STK prompt.
const codeStillProcessing = "500.001.1001"

func classify(statusCode int, code string) ErrorKind {
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return KindAuth
	case statusCode >= 500 && code != codeStillProcessing:
		return KindTransient
	default:
		return KindRejected
	}
}

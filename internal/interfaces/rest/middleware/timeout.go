package middleware

import (
	"context"
	"net/http"
	"time"
)

const timeoutBody = `{"success":false,"error":{"code":"TIMEOUT","message":"Request timed out"}}`

// Timeout bounds each request. The request context is cancelled at the
// deadline so repository and gateway calls unwind, and the client gets the
// standard error envelope instead of a stalled connection.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		inner := http.TimeoutHandler(next, timeout, timeoutBody)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			w.Header().Set("Content-Type", "application/json")
			inner.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

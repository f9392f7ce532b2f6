package mpesa

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/reservepay/reservepay/internal/config"
)

// RetryClient wraps a GatewayClient and retries transient failures with
// exponential backoff and jitter. Rejected and auth failures pass through
// untouched: replaying a declined charge does not change the decline.
type RetryClient struct {
	inner      GatewayClient
	baseDelay  time.Duration
	maxRetries int
}

func NewRetryClient(inner GatewayClient, cfg config.RetryConfig) *RetryClient {
	return &RetryClient{
		inner:      inner,
		baseDelay:  time.Duration(cfg.BaseDelay) * time.Second,
		maxRetries: int(cfg.MaxRetries),
	}
}

var _ GatewayClient = (*RetryClient)(nil)

func (r *RetryClient) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResponse, error) {
	return retry(
		r,
		ctx,
		func(ctx context.Context) (*InitiateResponse, error) {
			return r.inner.Initiate(ctx, req)
		},
	)
}

func (r *RetryClient) Query(ctx context.Context, checkoutID string) (*QueryResponse, error) {
	return retry(
		r,
		ctx,
		func(ctx context.Context) (*QueryResponse, error) {
			return r.inner.Query(ctx, checkoutID)
		},
	)
}

// Generic retry helper
func retry[T any](r *RetryClient, ctx context.Context, operation func(ctx context.Context) (*T, error)) (*T, error) {
	var lastErr error

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		resp, err := operation(ctx)
		if err == nil {
			return resp, nil
		}

		lastErr = err

		if !isRetryable(err) {
			return nil, err
		}

		if attempt < r.maxRetries-1 {
			time.Sleep(r.backoff(attempt))
		}
	}

	return nil, fmt.Errorf("maximum retries exceeded: %w", lastErr)
}

func isRetryable(err error) bool {
	if gwErr, ok := IsGatewayError(err); ok {
		return gwErr.IsRetryable()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}

// Backoff calculation with exponential delay and jitter
func (r *RetryClient) backoff(attempt int) time.Duration {
	base := r.baseDelay * time.Duration(1<<attempt)

	jitter := time.Duration(rand.Intn(1000)) * time.Millisecond

	return base + jitter
}

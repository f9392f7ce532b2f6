// Package worker runs the background sweeps that keep bookings and dedup
// state from accumulating: expiring stalled payments and pruning old
// callback records.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/reservepay/reservepay/internal/application"
	"github.com/reservepay/reservepay/internal/application/services"
)

type ExpiryWorker struct {
	bookingSvc *services.BookingService
	callbacks  application.CallbackRepository
	interval   time.Duration
	window     time.Duration
	retention  time.Duration
	batchSize  int
	logger     *slog.Logger
}

func NewExpiryWorker(
	bookingSvc *services.BookingService,
	callbacks application.CallbackRepository,
	interval time.Duration,
	window time.Duration,
	retention time.Duration,
	batchSize int,
	logger *slog.Logger,
) *ExpiryWorker {
	return &ExpiryWorker{
		bookingSvc: bookingSvc,
		callbacks:  callbacks,
		interval:   interval,
		window:     window,
		retention:  retention,
		batchSize:  batchSize,
		logger:     logger,
	}
}

func (w *ExpiryWorker) Start(ctx context.Context) {
	w.logger.Info("expiry worker started", "interval", w.interval, "window", w.window)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("expiry worker stopping")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep. Split out so tests can drive the worker
// without a ticker.
func (w *ExpiryWorker) RunOnce(ctx context.Context) {
	now := time.Now().UTC()

	expired, err := w.bookingSvc.ExpireStale(ctx, now, w.window, w.batchSize)
	if err != nil {
		w.logger.Error("expiry sweep failed", "error", err)
	} else if len(expired) > 0 {
		w.logger.Info("expired stale bookings", "count", len(expired))
	}

	pruned, err := w.callbacks.DeleteOlderThan(ctx, now.Add(-w.retention))
	if err != nil {
		w.logger.Error("callback prune failed", "error", err)
	} else if pruned > 0 {
		w.logger.Info("pruned callback records", "count", pruned)
	}
}

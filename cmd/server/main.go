package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reservepay/reservepay/internal/application/services"
	"github.com/reservepay/reservepay/internal/config"
	"github.com/reservepay/reservepay/internal/infrastructure/mpesa"
	"github.com/reservepay/reservepay/internal/infrastructure/notify"
	"github.com/reservepay/reservepay/internal/infrastructure/postgres"
	"github.com/reservepay/reservepay/internal/interfaces/rest"
	"github.com/reservepay/reservepay/internal/interfaces/rest/handlers"
	"github.com/reservepay/reservepay/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting reservepay service",
		"port", cfg.Server.Port,
		"env", cfg.Primary.Env,
		"log_level", cfg.Logger.Level,
	)

	ctx := context.Background()
	db, err := postgres.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	unitRepo := postgres.NewUnitRepository(db)
	bookingRepo := postgres.NewBookingRepository(db)
	attemptRepo := postgres.NewAttemptRepository(db)
	callbackRepo := postgres.NewCallbackRepository(db)
	txCoordinator := postgres.NewTransactionCoordinator(db, attemptRepo, bookingRepo)

	gatewayClient := mpesa.NewClient(cfg.Mpesa)
	retryGateway := mpesa.NewRetryClient(gatewayClient, cfg.Retry)

	notifier := notify.NewLogNotifier(logger)

	unitService := services.NewUnitService(unitRepo, logger)
	bookingService := services.NewBookingService(unitRepo, bookingRepo, txCoordinator, notifier, logger)
	reconcileService := services.NewReconcileService(attemptRepo, callbackRepo, retryGateway, bookingService, logger)
	bookingService.SetAttemptExpirer(reconcileService)

	h := handlers.NewHandlers(unitService, bookingService, reconcileService, logger)

	router := rest.NewRouter(h, db.Pool, rest.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Server.ReadTimeout,
	}, logger)

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	expiryWorker := worker.NewExpiryWorker(
		bookingService,
		callbackRepo,
		cfg.Worker.Interval,
		cfg.Booking.PaymentWaitWindow,
		cfg.Booking.DedupRetention,
		cfg.Worker.BatchSize,
		logger,
	)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	go expiryWorker.Start(workerCtx)

	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}

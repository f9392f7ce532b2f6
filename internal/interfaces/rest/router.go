// Package rest wires the HTTP surface: routing, CORS, and the cross-cutting
// middleware around the booking and payment handlers.
package rest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/reservepay/reservepay/internal/interfaces/rest/handlers"
	"github.com/reservepay/reservepay/internal/interfaces/rest/middleware"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterConfig struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
}

func NewRouter(h *handlers.Handlers, db Pinger, cfg RouterConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	r.Get("/healthz", healthHandler(db))

	r.Route("/api", func(r chi.Router) {
		// The callback route stays outside the timeout wrapper: Daraja's
		// delivery deadline is its own, and the ack must always be written.
		r.Post("/mpesa/callback", h.MpesaCallback)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(timeout))

			r.Route("/units", func(r chi.Router) {
				r.Post("/", h.CreateUnit)
				r.Get("/", h.ListUnits)
				r.Get("/{unitID}", h.GetUnit)
				r.Put("/{unitID}", h.UpdateUnit)
				r.Delete("/{unitID}", h.DeleteUnit)
				r.Get("/{unitID}/availability", h.UnitAvailability)
			})

			r.Route("/bookings", func(r chi.Router) {
				r.Post("/", h.CreateBooking)
				r.Get("/{bookingID}", h.GetBooking)
				r.Post("/{bookingID}/pay", h.Pay)
				r.Post("/{bookingID}/query", h.QueryPayment)
			})

			r.Get("/payments/{checkoutID}", h.GetPayment)
		})
	})

	return r
}

func healthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "healthy"
		code := http.StatusOK
		if err := db.Ping(r.Context()); err != nil {
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status": status,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

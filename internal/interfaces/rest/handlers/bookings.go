package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/reservepay/reservepay/internal/application"
	"github.com/reservepay/reservepay/internal/application/services"
	"github.com/reservepay/reservepay/internal/domain"
)

type createBookingRequest struct {
	UnitID        string `json:"unit_id" validate:"required"`
	CustomerName  string `json:"customer_name" validate:"required"`
	CustomerEmail string `json:"customer_email" validate:"omitempty,email"`
	CustomerPhone string `json:"customer_phone" validate:"required"`
	StartDate     string `json:"start_date" validate:"required"`
	EndDate       string `json:"end_date" validate:"required"`
	// TotalCost overrides the derived quote when present.
	TotalCost string `json:"total_cost"`
}

func (h *Handlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, application.NewInvalidInputError(errors.New("invalid request body")))
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		respondWithError(w, application.NewInvalidInputError(err))
		return
	}

	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		respondWithError(w, application.NewInvalidInputError(errors.New("start_date must be YYYY-MM-DD")))
		return
	}
	endDate, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		respondWithError(w, application.NewInvalidInputError(errors.New("end_date must be YYYY-MM-DD")))
		return
	}

	totalCost := decimal.Zero
	if req.TotalCost != "" {
		totalCost, err = decimal.NewFromString(req.TotalCost)
		if err != nil {
			respondWithError(w, application.NewInvalidInputError(errors.New("total_cost must be a decimal amount")))
			return
		}
	}

	booking, err := h.bookings.CreateBooking(r.Context(), services.CreateBookingCommand{
		UnitID: req.UnitID,
		Customer: domain.Customer{
			Name:  req.CustomerName,
			Email: req.CustomerEmail,
			Phone: req.CustomerPhone,
		},
		StartDate: startDate,
		EndDate:   endDate,
		TotalCost: totalCost,
	})
	if err != nil {
		respondWithError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, toBookingView(booking))
}

// GetBooking returns the booking together with its unit and latest payment
// attempt. The side lookups are best effort; the booking itself is the
// answer even when one of them cannot be read.
func (h *Handlers) GetBooking(w http.ResponseWriter, r *http.Request) {
	booking, err := h.bookings.GetBooking(r.Context(), chi.URLParam(r, "bookingID"))
	if err != nil {
		respondWithError(w, err)
		return
	}

	view := bookingDetailView{bookingView: toBookingView(booking)}

	if unit, err := h.units.GetUnit(r.Context(), booking.UnitID); err == nil {
		u := toUnitView(unit)
		view.Unit = &u
	} else {
		h.logger.Warn("failed to load unit for booking detail",
			"booking_id", booking.ID, "unit_id", booking.UnitID, "error", err)
	}

	if attempt, err := h.payments.LatestForBooking(r.Context(), booking.ID); err == nil && attempt != nil {
		a := toAttemptView(attempt)
		view.Payment = &a
	} else if err != nil {
		h.logger.Warn("failed to load payment for booking detail",
			"booking_id", booking.ID, "error", err)
	}

	respondWithJSON(w, http.StatusOK, view)
}

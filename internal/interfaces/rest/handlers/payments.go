package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/reservepay/reservepay/internal/application"
)

type payRequest struct {
	// Phone overrides the booking's customer phone when present.
	Phone string `json:"phone"`
	// Amount overrides the booking's total cost when positive. Whole KES.
	Amount int64 `json:"amount" validate:"omitempty,gt=0"`
}

// Pay opens a payment attempt for a booking and pushes the STK prompt to the
// customer's handset. The attempt stays PENDING until the gateway calls back.
func (h *Handlers) Pay(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingID")

	var req payRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, application.NewInvalidInputError(errors.New("invalid request body")))
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		respondWithError(w, application.NewInvalidInputError(err))
		return
	}

	attempt, err := h.payments.Open(r.Context(), bookingID, req.Phone, req.Amount)
	if err != nil {
		respondWithError(w, err)
		return
	}

	respondWithJSON(w, http.StatusAccepted, toAttemptView(attempt))
}

// GetPayment answers a checkout identifier with the attempt's current
// status. An in-flight attempt is refreshed against the gateway first, so a
// client polling after an STK push sees where the charge actually stands,
// not just the last stored snapshot.
func (h *Handlers) GetPayment(w http.ResponseWriter, r *http.Request) {
	attempt, err := h.payments.StatusByCheckoutID(r.Context(), chi.URLParam(r, "checkoutID"))
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, toAttemptView(attempt))
}

// QueryPayment asks the gateway directly for the outcome of the booking's
// active attempt. Used when a callback never arrived.
func (h *Handlers) QueryPayment(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingID")

	outcome, attempt, err := h.payments.ApplyQueryResult(r.Context(), bookingID)
	if err != nil {
		respondWithError(w, err)
		return
	}

	h.logger.Info("payment query applied",
		"booking_id", bookingID,
		"outcome", string(outcome),
	)
	respondWithJSON(w, http.StatusOK, toAttemptView(attempt))
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/reservepay/reservepay/internal/application"
	"github.com/reservepay/reservepay/internal/domain"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondWithJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := APIResponse{
		Success: status >= 200 && status < 300,
	}

	if response.Success {
		response.Data = data
	} else {
		if apiErr, ok := data.(*APIError); ok {
			response.Error = apiErr
		}
	}

	_ = json.NewEncoder(w).Encode(response)
}

func respondWithError(w http.ResponseWriter, err error) {
	if svcErr, ok := application.IsServiceError(err); ok {
		respondWithJSON(w, svcErr.HTTPStatus, &APIError{
			Code:    svcErr.Code,
			Message: svcErr.Message,
		})
		return
	}

	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		respondWithJSON(w, http.StatusBadRequest, &APIError{
			Code:    domainErr.Code,
			Message: domainErr.Message,
		})
		return
	}

	respondWithJSON(w, http.StatusInternalServerError, &APIError{
		Code:    "INTERNAL_ERROR",
		Message: "An internal error occurred",
	})
}

// JSON views over domain entities.

type unitView struct {
	ID          string   `json:"id"`
	UnitNumber  string   `json:"unit_number"`
	Site        string   `json:"site"`
	Location    string   `json:"location,omitempty"`
	MonthlyRate string   `json:"monthly_rate"`
	Features    []string `json:"features,omitempty"`
	Status      string   `json:"status"`
}

type bookingView struct {
	ID            string     `json:"id"`
	UnitID        string     `json:"unit_id"`
	CustomerName  string     `json:"customer_name"`
	CustomerEmail string     `json:"customer_email,omitempty"`
	CustomerPhone string     `json:"customer_phone"`
	StartDate     string     `json:"start_date"`
	EndDate       string     `json:"end_date"`
	TotalCost     string     `json:"total_cost"`
	Status        string     `json:"status"`
	FailureReason string     `json:"failure_reason,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
}

// bookingDetailView is the booking plus its unit and latest payment, so one
// read answers "what did I book and did it go through".
type bookingDetailView struct {
	bookingView
	Unit    *unitView    `json:"unit,omitempty"`
	Payment *attemptView `json:"payment,omitempty"`
}

type attemptView struct {
	ID            string `json:"id"`
	BookingID     string `json:"booking_id"`
	Amount        int64  `json:"amount"`
	CheckoutID    string `json:"checkout_id,omitempty"`
	ReceiptNumber string `json:"receipt_number,omitempty"`
	ResultCode    *int   `json:"result_code,omitempty"`
	ResultDesc    string `json:"result_desc,omitempty"`
	Status        string `json:"status"`
}

func toUnitView(u *domain.StorageUnit) unitView {
	return unitView{
		ID:          u.ID,
		UnitNumber:  u.UnitNumber,
		Site:        u.Site,
		Location:    u.Location,
		MonthlyRate: u.MonthlyRate.String(),
		Features:    u.Features,
		Status:      string(u.Status),
	}
}

func toBookingView(b *domain.Booking) bookingView {
	return bookingView{
		ID:            b.ID,
		UnitID:        b.UnitID,
		CustomerName:  b.Customer.Name,
		CustomerEmail: b.Customer.Email,
		CustomerPhone: b.Customer.Phone,
		StartDate:     b.StartDate.Format("2006-01-02"),
		EndDate:       b.EndDate.Format("2006-01-02"),
		TotalCost:     b.TotalCost.String(),
		Status:        string(b.Status),
		FailureReason: b.FailureReason,
		PaidAt:        b.PaidAt,
	}
}

func toAttemptView(a *domain.PaymentAttempt) attemptView {
	return attemptView{
		ID:            a.ID,
		BookingID:     a.BookingID,
		Amount:        a.Amount,
		CheckoutID:    a.CheckoutID,
		ReceiptNumber: a.ReceiptNumber,
		ResultCode:    a.ResultCode,
		ResultDesc:    a.ResultDesc,
		Status:        string(a.Status),
	}
}

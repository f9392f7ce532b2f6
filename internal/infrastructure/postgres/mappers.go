package postgres

import (
	"fmt"

	"github.com/reservepay/reservepay/internal/domain"
	"github.com/shopspring/decimal"
)

func toUnitDomain(m unitModel) (*domain.StorageUnit, error) {
	rate, err := decimal.NewFromString(m.MonthlyRate)
	if err != nil {
		return nil, fmt.Errorf("unparseable monthly rate %q: %w", m.MonthlyRate, err)
	}

	return &domain.StorageUnit{
		ID:          m.ID,
		UnitNumber:  m.UnitNumber,
		Site:        m.Site,
		Location:    m.Location,
		MonthlyRate: rate,
		Features:    m.Features,
		Status:      domain.UnitStatus(m.Status),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}, nil
}

func toBookingDomain(m bookingModel) (*domain.Booking, error) {
	cost, err := decimal.NewFromString(m.TotalCost)
	if err != nil {
		return nil, fmt.Errorf("unparseable total cost %q: %w", m.TotalCost, err)
	}

	booking := &domain.Booking{
		ID:     m.ID,
		UnitID: m.UnitID,
		Customer: domain.Customer{
			Name:  m.CustomerName,
			Email: m.CustomerEmail,
			Phone: m.CustomerPhone,
		},
		StartDate: m.StartDate,
		EndDate:   m.EndDate,
		TotalCost: cost,
		Status:    domain.BookingStatus(m.Status),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
		PaidAt:    m.PaidAt,
	}
	if m.FailureReason != nil {
		booking.FailureReason = *m.FailureReason
	}
	return booking, nil
}

func toAttemptDomain(m attemptModel) *domain.PaymentAttempt {
	attempt := &domain.PaymentAttempt{
		ID:          m.ID,
		BookingID:   m.BookingID,
		Phone:       m.Phone,
		Amount:      m.Amount,
		ResultCode:  m.ResultCode,
		Status:      domain.AttemptStatus(m.Status),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
		CompletedAt: m.CompletedAt,
	}
	if m.CheckoutID != nil {
		attempt.CheckoutID = *m.CheckoutID
	}
	if m.MerchantID != nil {
		attempt.MerchantID = *m.MerchantID
	}
	if m.ReceiptNumber != nil {
		attempt.ReceiptNumber = *m.ReceiptNumber
	}
	if m.ResultDesc != nil {
		attempt.ResultDesc = *m.ResultDesc
	}
	return attempt
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

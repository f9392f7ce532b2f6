package postgres

import "time"

// Row models. Monetary columns are scanned as text and converted in the
// mappers to keep numeric precision out of float64.

type unitModel struct {
	ID          string
	UnitNumber  string
	Site        string
	Location    string
	MonthlyRate string
	Features    []string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type bookingModel struct {
	ID            string
	UnitID        string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	StartDate     time.Time
	EndDate       time.Time
	TotalCost     string
	Status        string
	FailureReason *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	PaidAt        *time.Time
}

type attemptModel struct {
	ID            string
	BookingID     string
	Phone         string
	Amount        int64
	CheckoutID    *string
	MerchantID    *string
	ReceiptNumber *string
	ResultCode    *int
	ResultDesc    *string
	Status        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

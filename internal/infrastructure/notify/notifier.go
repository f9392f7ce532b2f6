// Package notify delivers post-payment notifications. Delivery is best
// effort by contract: a failed notification is logged and forgotten, never
// propagated back into the payment path.
package notify

import (
	"context"
	"log/slog"

	"github.com/reservepay/reservepay/internal/application"
	"github.com/reservepay/reservepay/internal/domain"
)

// LogNotifier writes the receipt confirmation to the structured log. It
// stands in for an outbound email/SMS channel behind the same port.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

var _ application.Notifier = (*LogNotifier)(nil)

func (n *LogNotifier) PaymentReceived(ctx context.Context, booking *domain.Booking, attempt *domain.PaymentAttempt) {
	n.logger.Info("payment confirmation",
		"booking_id", booking.ID,
		"customer_email", booking.Customer.Email,
		"customer_phone", booking.Customer.Phone,
		"amount", attempt.Amount,
		"receipt", attempt.ReceiptNumber,
	)
}

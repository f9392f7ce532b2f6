package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/reservepay/reservepay/internal/application"
	"github.com/reservepay/reservepay/internal/domain"
)

const bookingColumns = `
	id, unit_id, customer_name, customer_email, customer_phone,
	start_date, end_date, total_cost::text, status, failure_reason,
	created_at, updated_at, paid_at
`

type BookingRepository struct {
	db *DB
}

func NewBookingRepository(db *DB) *BookingRepository {
	return &BookingRepository{db: db}
}

var _ application.BookingRepository = (*BookingRepository)(nil)

func (r *BookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	query := `
		INSERT INTO bookings (
			id, unit_id, customer_name, customer_email, customer_phone,
			start_date, end_date, total_cost, status, failure_reason,
			created_at, updated_at, paid_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		booking.ID,
		booking.UnitID,
		booking.Customer.Name,
		booking.Customer.Email,
		booking.Customer.Phone,
		booking.StartDate,
		booking.EndDate,
		booking.TotalCost.String(),
		string(booking.Status),
		nullableString(booking.FailureReason),
		booking.CreatedAt,
		booking.UpdatedAt,
		booking.PaidAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func (r *BookingRepository) FindByID(ctx context.Context, id string) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	row := r.db.Pool.QueryRow(ctx, query, id)
	return scanBooking(row, id)
}

func (r *BookingRepository) Update(ctx context.Context, booking *domain.Booking) error {
	return r.update(ctx, r.db.Pool, booking)
}

func (r *BookingRepository) update(ctx context.Context, q execer, booking *domain.Booking) error {
	query := `
		UPDATE bookings
		SET status = $1, failure_reason = $2, updated_at = $3, paid_at = $4
		WHERE id = $5
	`

	result, err := q.Exec(ctx, query,
		string(booking.Status),
		nullableString(booking.FailureReason),
		booking.UpdatedAt,
		booking.PaidAt,
		booking.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewBookingNotFoundError(booking.ID)
	}
	return nil
}

// FindUnpaidBefore returns bookings still holding a unit without payment,
// whose last activity predates the cutoff, oldest first. Takes PENDING
// bookings too, so an abandoned checkout cannot pin a unit. Feeds the
// expiry sweep.
func (r *BookingRepository) FindUnpaidBefore(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status IN ('PENDING', 'AWAITING_PAYMENT') AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("query stale bookings: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Booking, error) {
		var m bookingModel
		if err := scanBookingModel(row, &m); err != nil {
			return nil, err
		}
		return toBookingDomain(m)
	})
}

func scanBookingModel(row pgx.Row, m *bookingModel) error {
	return row.Scan(
		&m.ID, &m.UnitID, &m.CustomerName, &m.CustomerEmail, &m.CustomerPhone,
		&m.StartDate, &m.EndDate, &m.TotalCost, &m.Status, &m.FailureReason,
		&m.CreatedAt, &m.UpdatedAt, &m.PaidAt,
	)
}

func scanBooking(row pgx.Row, id string) (*domain.Booking, error) {
	var m bookingModel
	if err := scanBookingModel(row, &m); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewBookingNotFoundError(id)
		}
		return nil, fmt.Errorf("failed to scan booking: %w", err)
	}
	return toBookingDomain(m)
}

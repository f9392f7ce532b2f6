package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/reservepay/reservepay/internal/application"
	"github.com/reservepay/reservepay/internal/domain"
)

type UnitRepository struct {
	db *DB
}

func NewUnitRepository(db *DB) *UnitRepository {
	return &UnitRepository{db: db}
}

var _ application.UnitRepository = (*UnitRepository)(nil)

func (r *UnitRepository) Create(ctx context.Context, unit *domain.StorageUnit) error {
	query := `
		INSERT INTO storage_units (
			id, unit_number, site, location, monthly_rate, features, status,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		unit.ID,
		unit.UnitNumber,
		unit.Site,
		unit.Location,
		unit.MonthlyRate.String(),
		unit.Features,
		string(unit.Status),
		unit.CreatedAt,
		unit.UpdatedAt,
	)
	if err != nil {
		// (site, unit_number) carries a unique index.
		if isUniqueViolation(err) {
			return domain.NewUnitExistsError(unit.UnitNumber, unit.Site)
		}
		return fmt.Errorf("failed to create unit: %w", err)
	}
	return nil
}

// Delete removes a unit with the same guarded-write shape as the status
// swaps: the row only goes while it is AVAILABLE, and a miss is
// distinguished into not-found or conflict with a follow-up read.
func (r *UnitRepository) Delete(ctx context.Context, unitID string) error {
	query := `DELETE FROM storage_units WHERE id = $1 AND status = 'AVAILABLE'`

	result, err := r.db.Pool.Exec(ctx, query, unitID)
	if err != nil {
		return fmt.Errorf("failed to delete unit: %w", err)
	}
	if result.RowsAffected() == 0 {
		if _, findErr := r.FindByID(ctx, unitID); findErr != nil {
			return findErr
		}
		return domain.NewUnitConflictError(unitID)
	}
	return nil
}

func (r *UnitRepository) FindByID(ctx context.Context, id string) (*domain.StorageUnit, error) {
	query := `
		SELECT id, unit_number, site, location, monthly_rate::text, features, status,
		       created_at, updated_at
		FROM storage_units WHERE id = $1
	`

	row := r.db.Pool.QueryRow(ctx, query, id)
	return scanUnit(row, id)
}

func (r *UnitRepository) List(ctx context.Context) ([]*domain.StorageUnit, error) {
	query := `
		SELECT id, unit_number, site, location, monthly_rate::text, features, status,
		       created_at, updated_at
		FROM storage_units ORDER BY site, unit_number
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query units: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.StorageUnit, error) {
		var m unitModel
		if err := row.Scan(
			&m.ID, &m.UnitNumber, &m.Site, &m.Location, &m.MonthlyRate, &m.Features, &m.Status,
			&m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, err
		}
		return toUnitDomain(m)
	})
}

func (r *UnitRepository) Update(ctx context.Context, unit *domain.StorageUnit) error {
	query := `
		UPDATE storage_units
		SET unit_number = $1, site = $2, location = $3, monthly_rate = $4,
			features = $5, updated_at = now()
		WHERE id = $6
	`

	result, err := r.db.Pool.Exec(ctx, query,
		unit.UnitNumber,
		unit.Site,
		unit.Location,
		unit.MonthlyRate.String(),
		unit.Features,
		unit.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update unit: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewUnitNotFoundError(unit.ID)
	}
	return nil
}

// Reserve flips AVAILABLE -> RESERVED with a single guarded UPDATE. When the
// guard misses, the unit either does not exist or another booking already
// holds it; the two cases are distinguished with a follow-up read.
func (r *UnitRepository) Reserve(ctx context.Context, unitID string) error {
	return r.swapStatus(ctx, unitID, []domain.UnitStatus{domain.UnitAvailable}, domain.UnitReserved)
}

func (r *UnitRepository) Release(ctx context.Context, unitID string) error {
	return r.swapStatus(ctx, unitID, []domain.UnitStatus{domain.UnitReserved, domain.UnitOccupied}, domain.UnitAvailable)
}

func (r *UnitRepository) Occupy(ctx context.Context, unitID string) error {
	return r.swapStatus(ctx, unitID, []domain.UnitStatus{domain.UnitReserved}, domain.UnitOccupied)
}

// swapStatus is the compare-and-swap behind all three availability
// transitions. Zero rows affected means the unit was not in an expected
// prior state; that is a conflict, not a fault.
func (r *UnitRepository) swapStatus(ctx context.Context, unitID string, from []domain.UnitStatus, to domain.UnitStatus) error {
	prior := make([]string, len(from))
	for i, s := range from {
		prior[i] = string(s)
	}

	query := `
		UPDATE storage_units
		SET status = $1, updated_at = now()
		WHERE id = $2 AND status = ANY($3)
	`

	result, err := r.db.Pool.Exec(ctx, query, string(to), unitID, prior)
	if err != nil {
		return fmt.Errorf("failed to swap unit status: %w", err)
	}
	if result.RowsAffected() == 0 {
		if _, findErr := r.FindByID(ctx, unitID); findErr != nil {
			return findErr
		}
		return domain.NewUnitConflictError(unitID)
	}
	return nil
}

func scanUnit(row pgx.Row, id string) (*domain.StorageUnit, error) {
	var m unitModel
	err := row.Scan(
		&m.ID, &m.UnitNumber, &m.Site, &m.Location, &m.MonthlyRate, &m.Features, &m.Status,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewUnitNotFoundError(id)
		}
		return nil, fmt.Errorf("failed to scan unit: %w", err)
	}
	return toUnitDomain(m)
}

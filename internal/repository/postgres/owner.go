package postgres

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	"rental/internal/domain"
	"rental/internal/repository"
)

// OwnerRepository is a PostgreSQL implementation of repository.OwnerRepository.
type OwnerRepository struct {
	q Querier
}

// NewOwnerRepository creates a new PostgreSQL owner repository.
func NewOwnerRepository(db *sql.DB) *OwnerRepository {
	return &OwnerRepository{q: db}
}

// NewOwnerRepositoryWithTx creates an owner repository using a transaction.
func NewOwnerRepositoryWithTx(tx *sql.Tx) *OwnerRepository {
	return &OwnerRepository{q: tx}
}

// GetByID retrieves an owner by ID.
func (r *OwnerRepository) GetByID(ctx context.Context, id string) (*domain.Owner, error) {
	query := `
		SELECT id, name, commission_rate, is_suspended, suspended_reason, suspended_at, suspended_by
		FROM owners WHERE id = $1
	`

	var (
		owner       domain.Owner
		rate        decimal.NullDecimal
		reason      sql.NullString
		suspendedAt sql.NullTime
		suspendedBy sql.NullString
	)

	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&owner.ID,
		&owner.Name,
		&rate,
		&owner.IsSuspended,
		&reason,
		&suspendedAt,
		&suspendedBy,
	)
	if err != nil {
		return nil, translateError(err)
	}

	if rate.Valid {
		owner.CommissionRate = &rate.Decimal
	}
	owner.SuspendedReason = reason.String
	owner.SuspendedBy = suspendedBy.String
	if suspendedAt.Valid {
		owner.SuspendedAt = suspendedAt.Time
	}
	return &owner, nil
}

// UpdateSuspension writes the owner's suspension flag and its metadata.
func (r *OwnerRepository) UpdateSuspension(ctx context.Context, owner *domain.Owner) error {
	query := `
		UPDATE owners
		SET is_suspended = $1, suspended_reason = $2, suspended_at = $3, suspended_by = $4
		WHERE id = $5
	`

	var suspendedAt sql.NullTime
	if !owner.SuspendedAt.IsZero() {
		suspendedAt = sql.NullTime{Time: owner.SuspendedAt, Valid: true}
	}

	result, err := r.q.ExecContext(ctx, query,
		owner.IsSuspended,
		nullString(owner.SuspendedReason),
		suspendedAt,
		nullString(owner.SuspendedBy),
		owner.ID,
	)
	if err != nil {
		return err
	}

	ok, err := affected(result)
	if err != nil {
		return err
	}
	if !ok {
		return repository.ErrNotFound
	}
	return nil
}

// VehicleRepository reads vehicle pricing from PostgreSQL.
type VehicleRepository struct {
	q Querier
}

// NewVehicleRepository creates a new PostgreSQL vehicle repository.
func NewVehicleRepository(db *sql.DB) *VehicleRepository {
	return &VehicleRepository{q: db}
}

// GetByID retrieves a vehicle by ID.
func (r *VehicleRepository) GetByID(ctx context.Context, id string) (*domain.Vehicle, error) {
	query := `SELECT id, owner_id, daily_rate FROM vehicles WHERE id = $1`

	var vehicle domain.Vehicle
	err := r.q.QueryRowContext(ctx, query, id).Scan(&vehicle.ID, &vehicle.OwnerID, &vehicle.DailyRate)
	if err != nil {
		return nil, translateError(err)
	}

	return &vehicle, nil
}

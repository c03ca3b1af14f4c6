package postgres

import (
	"context"
	"database/sql"

	"rental/internal/domain"
)

// CommissionRepository is a PostgreSQL implementation of repository.CommissionRepository.
type CommissionRepository struct {
	q Querier
}

// NewCommissionRepository creates a new PostgreSQL commission repository.
func NewCommissionRepository(db *sql.DB) *CommissionRepository {
	return &CommissionRepository{q: db}
}

// NewCommissionRepositoryWithTx creates a commission repository using a transaction.
func NewCommissionRepositoryWithTx(tx *sql.Tx) *CommissionRepository {
	return &CommissionRepository{q: tx}
}

const commissionColumns = `id, booking_id, owner_id, rental_amount, commission_amount,
	commission_percentage, payment_category, status, payment_reference, verified_by,
	verified_at, notes, created_at, updated_at`

// Create persists a new commission. The unique index on booking_id turns a
// second insert for the same booking into repository.ErrDuplicate.
func (r *CommissionRepository) Create(ctx context.Context, c *domain.Commission) error {
	query := `
		INSERT INTO commissions (id, booking_id, owner_id, rental_amount, commission_amount,
			commission_percentage, payment_category, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`

	_, err := r.q.ExecContext(ctx, query,
		c.ID,
		c.BookingID,
		c.OwnerID,
		c.RentalAmount,
		c.CommissionAmount,
		c.CommissionPercentage,
		c.Category,
		c.Status,
		c.CreatedAt,
	)

	return translateError(err)
}

// GetByID retrieves a commission by ID.
func (r *CommissionRepository) GetByID(ctx context.Context, id string) (*domain.Commission, error) {
	query := `SELECT ` + commissionColumns + ` FROM commissions WHERE id = $1`
	return scanCommission(r.q.QueryRowContext(ctx, query, id))
}

// GetByBookingID retrieves the commission created for a booking.
func (r *CommissionRepository) GetByBookingID(ctx context.Context, bookingID string) (*domain.Commission, error) {
	query := `SELECT ` + commissionColumns + ` FROM commissions WHERE booking_id = $1`
	return scanCommission(r.q.QueryRowContext(ctx, query, bookingID))
}

// ListByOwner retrieves an owner's commissions, newest first.
func (r *CommissionRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Commission, error) {
	query := `SELECT ` + commissionColumns + `
		FROM commissions WHERE owner_id = $1 ORDER BY created_at DESC`

	rows, err := r.q.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var commissions []*domain.Commission
	for rows.Next() {
		c, err := scanCommission(rows)
		if err != nil {
			return nil, err
		}
		commissions = append(commissions, c)
	}

	return commissions, rows.Err()
}

// UpdateIf writes status and verification metadata while the stored status
// still equals from. Amounts and category are never rewritten.
func (r *CommissionRepository) UpdateIf(ctx context.Context, c *domain.Commission, from domain.CommissionStatus) (bool, error) {
	query := `
		UPDATE commissions
		SET status = $1, payment_reference = $2, verified_by = $3, verified_at = $4, notes = $5, updated_at = NOW()
		WHERE id = $6 AND status = $7
	`

	var verifiedAt sql.NullTime
	if !c.VerifiedAt.IsZero() {
		verifiedAt = sql.NullTime{Time: c.VerifiedAt, Valid: true}
	}

	result, err := r.q.ExecContext(ctx, query,
		c.Status,
		nullString(c.PaymentReference),
		nullString(c.VerifiedBy),
		verifiedAt,
		nullString(c.Notes),
		c.ID,
		from,
	)
	if err != nil {
		return false, err
	}

	return affected(result)
}

func scanCommission(row rowScanner) (*domain.Commission, error) {
	var (
		c          domain.Commission
		reference  sql.NullString
		verifiedBy sql.NullString
		verifiedAt sql.NullTime
		notes      sql.NullString
	)

	err := row.Scan(
		&c.ID,
		&c.BookingID,
		&c.OwnerID,
		&c.RentalAmount,
		&c.CommissionAmount,
		&c.CommissionPercentage,
		&c.Category,
		&c.Status,
		&reference,
		&verifiedBy,
		&verifiedAt,
		&notes,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, translateError(err)
	}

	c.PaymentReference = reference.String
	c.VerifiedBy = verifiedBy.String
	c.Notes = notes.String
	if verifiedAt.Valid {
		c.VerifiedAt = verifiedAt.Time
	}
	return &c, nil
}

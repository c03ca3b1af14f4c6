package postgres

import (
	"context"
	"database/sql"

	"rental/internal/domain"
)

// BookingRepository is a PostgreSQL implementation of repository.BookingRepository.
type BookingRepository struct {
	q Querier
}

// NewBookingRepository creates a new PostgreSQL booking repository.
func NewBookingRepository(db *sql.DB) *BookingRepository {
	return &BookingRepository{q: db}
}

// NewBookingRepositoryWithTx creates a booking repository using a transaction.
func NewBookingRepositoryWithTx(tx *sql.Tx) *BookingRepository {
	return &BookingRepository{q: tx}
}

// Create persists a new booking.
func (r *BookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	query := `
		INSERT INTO bookings (id, renter_id, vehicle_id, owner_id, start_date, end_date,
			rental_subtotal, service_fee, total_price, payment_method, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
	`

	_, err := r.q.ExecContext(ctx, query,
		booking.ID,
		booking.RenterID,
		booking.VehicleID,
		booking.OwnerID,
		booking.StartDate,
		booking.EndDate,
		booking.RentalSubtotal,
		booking.ServiceFee,
		booking.TotalPrice,
		booking.PaymentMethod,
		booking.Status,
		booking.CreatedAt,
	)

	return translateError(err)
}

// GetByID retrieves a booking by ID.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	query := `
		SELECT id, renter_id, vehicle_id, owner_id, start_date, end_date,
			rental_subtotal, service_fee, total_price, payment_method, status, created_at, updated_at
		FROM bookings WHERE id = $1
	`

	var booking domain.Booking
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&booking.ID,
		&booking.RenterID,
		&booking.VehicleID,
		&booking.OwnerID,
		&booking.StartDate,
		&booking.EndDate,
		&booking.RentalSubtotal,
		&booking.ServiceFee,
		&booking.TotalPrice,
		&booking.PaymentMethod,
		&booking.Status,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)
	if err != nil {
		return nil, translateError(err)
	}

	return &booking, nil
}

// UpdateStatusIf moves a booking from one status to another atomically.
// total_price is never part of the SET list.
func (r *BookingRepository) UpdateStatusIf(ctx context.Context, id string, from, to domain.BookingStatus) (bool, error) {
	query := `UPDATE bookings SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`

	result, err := r.q.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return false, err
	}

	return affected(result)
}

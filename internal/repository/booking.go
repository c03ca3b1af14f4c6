package repository

import (
	"context"

	"rental/internal/domain"
)

// BookingRepository defines the persistence operations for bookings.
type BookingRepository interface {
	// Create persists a new booking.
	Create(ctx context.Context, booking *domain.Booking) error

	// GetByID retrieves a booking by ID.
	GetByID(ctx context.Context, id string) (*domain.Booking, error)

	// UpdateStatusIf moves a booking to status `to` only while its current
	// status is `from`. It reports whether the row was updated.
	UpdateStatusIf(ctx context.Context, id string, from, to domain.BookingStatus) (bool, error)
}

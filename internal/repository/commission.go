package repository

import (
	"context"

	"rental/internal/domain"
)

// CommissionRepository defines the persistence operations for commissions.
type CommissionRepository interface {
	// Create persists a new commission. It returns ErrDuplicate when the
	// booking already has one.
	Create(ctx context.Context, commission *domain.Commission) error

	// GetByID retrieves a commission by ID.
	GetByID(ctx context.Context, id string) (*domain.Commission, error)

	// GetByBookingID retrieves the commission created for a booking.
	GetByBookingID(ctx context.Context, bookingID string) (*domain.Commission, error)

	// ListByOwner retrieves an owner's commissions, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.Commission, error)

	// UpdateIf writes the commission's status and verification fields only
	// while the stored status is `from`. It reports whether the row was updated.
	UpdateIf(ctx context.Context, commission *domain.Commission, from domain.CommissionStatus) (bool, error)
}

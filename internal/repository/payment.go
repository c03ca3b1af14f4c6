package repository

import (
	"context"
	"time"

	"rental/internal/domain"
)

// PaymentRepository defines the persistence operations for payments.
type PaymentRepository interface {
	// Create persists a new payment.
	Create(ctx context.Context, payment *domain.Payment) error

	// GetByID retrieves a payment by ID.
	GetByID(ctx context.Context, id string) (*domain.Payment, error)

	// GetByGatewayRef retrieves the payment bound to a gateway intent.
	GetByGatewayRef(ctx context.Context, ref string) (*domain.Payment, error)

	// GetLatestByBookingID retrieves the most recent payment for a booking.
	GetLatestByBookingID(ctx context.Context, bookingID string) (*domain.Payment, error)

	// SetGatewayRef records the gateway intent id on a payment.
	SetGatewayRef(ctx context.Context, id, ref string) error

	// UpdateStatusIf moves a payment to status `to` only while its current
	// status is one of `from`. It reports whether the row was updated.
	UpdateStatusIf(ctx context.Context, id string, from []domain.PaymentStatus, to domain.PaymentStatus, failureReason string) (bool, error)

	// ListStalePending returns pending payments neither updated nor checked
	// since cutoff, least recently checked first.
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Payment, error)

	// MarkChecked records that a pending payment was looked at without
	// reaching a final status.
	MarkChecked(ctx context.Context, id string, at time.Time) error
}

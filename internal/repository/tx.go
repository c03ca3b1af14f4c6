package repository

import "context"

// Repositories groups the stores that take part in a settlement write.
type Repositories struct {
	Bookings    BookingRepository
	Payments    PaymentRepository
	Commissions CommissionRepository
	Owners      OwnerRepository
}

// Transactor runs fn against repositories bound to a single transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

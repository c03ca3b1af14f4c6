package postgres

import (
	"context"
	"database/sql"

	"rental/internal/repository"
)

// TxManager runs settlement writes inside a single database transaction.
type TxManager struct {
	db *sql.DB
}

// NewTxManager creates a new TxManager.
func NewTxManager(db *sql.DB) *TxManager {
	return &TxManager{db: db}
}

// WithinTx begins a transaction, hands fn transaction-scoped repositories,
// and commits when fn succeeds.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) (err error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	repos := repository.Repositories{
		Bookings:    NewBookingRepositoryWithTx(tx),
		Payments:    NewPaymentRepositoryWithTx(tx),
		Commissions: NewCommissionRepositoryWithTx(tx),
		Owners:      NewOwnerRepositoryWithTx(tx),
	}

	if err = fn(ctx, repos); err != nil {
		return err
	}

	return tx.Commit()
}

package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"rental/internal/domain"
	"rental/internal/repository"
)

// PaymentRepository is a PostgreSQL implementation of repository.PaymentRepository.
type PaymentRepository struct {
	q Querier
}

// NewPaymentRepository creates a new PostgreSQL payment repository.
func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{q: db}
}

// NewPaymentRepositoryWithTx creates a payment repository using a transaction.
func NewPaymentRepositoryWithTx(tx *sql.Tx) *PaymentRepository {
	return &PaymentRepository{q: tx}
}

const paymentColumns = `id, booking_id, amount, processing_fee, method, status,
	gateway_ref, failure_reason, idempotency_key, checked_at, created_at, updated_at`

// Create persists a new payment.
func (r *PaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (id, booking_id, amount, processing_fee, method, status,
			gateway_ref, failure_reason, idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`

	_, err := r.q.ExecContext(ctx, query,
		payment.ID,
		payment.BookingID,
		payment.Amount,
		payment.ProcessingFee,
		payment.Method,
		payment.Status,
		nullString(payment.GatewayRef),
		nullString(payment.FailureReason),
		payment.IdempotencyKey,
		payment.CreatedAt,
	)

	return translateError(err)
}

// GetByID retrieves a payment by ID.
func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	return scanPayment(r.q.QueryRowContext(ctx, query, id))
}

// GetByGatewayRef retrieves the payment bound to a gateway intent.
func (r *PaymentRepository) GetByGatewayRef(ctx context.Context, ref string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE gateway_ref = $1`
	return scanPayment(r.q.QueryRowContext(ctx, query, ref))
}

// GetLatestByBookingID retrieves the most recent payment for a booking.
func (r *PaymentRepository) GetLatestByBookingID(ctx context.Context, bookingID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments WHERE booking_id = $1
		ORDER BY created_at DESC LIMIT 1`
	return scanPayment(r.q.QueryRowContext(ctx, query, bookingID))
}

// SetGatewayRef records the gateway intent id on a payment.
func (r *PaymentRepository) SetGatewayRef(ctx context.Context, id, ref string) error {
	query := `UPDATE payments SET gateway_ref = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.q.ExecContext(ctx, query, ref, id)
	if err != nil {
		return translateError(err)
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

// UpdateStatusIf moves a payment to a new status while its current status
// is one of from.
func (r *PaymentRepository) UpdateStatusIf(ctx context.Context, id string, from []domain.PaymentStatus, to domain.PaymentStatus, failureReason string) (bool, error) {
	query := `
		UPDATE payments SET status = $1, failure_reason = $2, updated_at = NOW()
		WHERE id = $3 AND status = ANY($4)
	`

	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}

	result, err := r.q.ExecContext(ctx, query, to, nullString(failureReason), id, pq.Array(allowed))
	if err != nil {
		return false, err
	}

	return affected(result)
}

// ListStalePending returns pending payments neither updated nor checked
// since cutoff. Never-checked rows go first, then the least recently checked.
func (r *PaymentRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = $1 AND updated_at < $2
			AND (checked_at IS NULL OR checked_at < $2)
		ORDER BY COALESCE(checked_at, updated_at) ASC LIMIT $3`

	rows, err := r.q.QueryContext(ctx, query, domain.PaymentStatusPending, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*domain.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}

	return payments, rows.Err()
}

// MarkChecked stamps a pending payment with the time it was last reconciled.
// updated_at is left alone so it keeps meaning the last status change.
func (r *PaymentRepository) MarkChecked(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE payments SET checked_at = $1 WHERE id = $2 AND status = $3`

	_, err := r.q.ExecContext(ctx, query, at, id, domain.PaymentStatusPending)
	return translateError(err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var (
		payment       domain.Payment
		gatewayRef    sql.NullString
		failureReason sql.NullString
		checkedAt     sql.NullTime
	)

	err := row.Scan(
		&payment.ID,
		&payment.BookingID,
		&payment.Amount,
		&payment.ProcessingFee,
		&payment.Method,
		&payment.Status,
		&gatewayRef,
		&failureReason,
		&payment.IdempotencyKey,
		&checkedAt,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return nil, translateError(err)
	}

	payment.GatewayRef = gatewayRef.String
	payment.FailureReason = failureReason.String
	if checkedAt.Valid {
		payment.CheckedAt = checkedAt.Time
	}
	return &payment, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"rental/internal/domain"
	"rental/internal/fees"
	"rental/internal/metrics"
	"rental/internal/repository"
)

// RateResolver picks the commission percentage for an owner at creation time.
type RateResolver interface {
	RateFor(owner *domain.Owner) decimal.Decimal
}

// OwnerRateResolver applies an owner's override rate when set and the
// platform default otherwise.
type OwnerRateResolver struct {
	Default decimal.Decimal
}

// RateFor returns the commission percentage for owner. owner may be nil.
func (r OwnerRateResolver) RateFor(owner *domain.Owner) decimal.Decimal {
	if owner != nil && owner.CommissionRate != nil && owner.CommissionRate.IsPositive() {
		return *owner.CommissionRate
	}
	if r.Default.IsPositive() {
		return r.Default
	}
	return fees.DefaultCommissionPercentage
}

// CommissionService manages the commission lifecycle and its interaction
// with owner suspension.
type CommissionService struct {
	bookings    repository.BookingRepository
	payments    repository.PaymentRepository
	commissions repository.CommissionRepository
	owners      repository.OwnerRepository
	store       store
	rates       RateResolver
	notifier    Notifier
	now         func() time.Time
}

// NewCommissionService creates a new CommissionService.
func NewCommissionService(
	repos repository.Repositories,
	tx repository.Transactor,
	rates RateResolver,
	notifier Notifier,
) *CommissionService {
	if rates == nil {
		rates = OwnerRateResolver{Default: fees.DefaultCommissionPercentage}
	}
	return &CommissionService{
		bookings:    repos.Bookings,
		payments:    repos.Payments,
		commissions: repos.Commissions,
		owners:      repos.Owners,
		store:       store{repos: repos, tx: tx},
		rates:       rates,
		notifier:    notifier,
		now:         time.Now,
	}
}

// createForBooking writes the booking's commission if it does not exist
// yet. The returned flag is false when an existing record was returned.
func (s *CommissionService) createForBooking(ctx context.Context, repos repository.Repositories, booking *domain.Booking, method domain.PaymentMethod) (*domain.Commission, bool, error) {
	existing, err := repos.Commissions.GetByBookingID(ctx, booking.ID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}

	category, ok := method.Category()
	if !ok {
		return nil, false, &ValidationError{Field: "method", Reason: "unsupported payment method"}
	}

	owner, err := repos.Owners.GetByID(ctx, booking.OwnerID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}

	rate := s.rates.RateFor(owner)
	now := s.now()
	commission := &domain.Commission{
		ID:                   uuid.New().String(),
		BookingID:            booking.ID,
		OwnerID:              booking.OwnerID,
		RentalAmount:         booking.TotalPrice,
		CommissionAmount:     fees.Commission(booking.TotalPrice, rate),
		CommissionPercentage: rate,
		Category:             category,
		Status:               domain.CommissionStatusUnpaid,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := repos.Commissions.Create(ctx, commission); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			existing, err := repos.Commissions.GetByBookingID(ctx, booking.ID)
			if err != nil {
				return nil, false, err
			}
			return existing, false, nil
		}
		return nil, false, err
	}

	metrics.IncCommission("created")
	log.Printf("[COMMISSION] commission %s created for booking %s: owner=%s amount=%s rate=%s category=%s",
		commission.ID, booking.ID, booking.OwnerID, amountString(commission.CommissionAmount),
		commission.CommissionPercentage.StringFixed(2), category)
	return commission, true, nil
}

// CreateForBooking creates a confirmed booking's commission when the
// confirm-time write was lost. It is idempotent per booking.
func (s *CommissionService) CreateForBooking(ctx context.Context, bookingID string) (*domain.Commission, error) {
	if bookingID == "" {
		return nil, ErrInvalidBookingID
	}

	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	switch booking.Status {
	case domain.BookingStatusConfirmed, domain.BookingStatusActive, domain.BookingStatusCompleted:
	default:
		return nil, ErrCommissionBeforeConfirm
	}

	method := booking.PaymentMethod
	payment, err := s.payments.GetLatestByBookingID(ctx, bookingID)
	if err == nil && payment.Status == domain.PaymentStatusPaid {
		method = payment.Method
	} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	commission, created, err := s.createForBooking(ctx, s.store.repos, booking, method)
	if err != nil {
		return nil, err
	}
	if created {
		s.notifyCreated(booking, commission)
	}
	return commission, nil
}

func (s *CommissionService) notifyCreated(booking *domain.Booking, commission *domain.Commission) {
	if s.notifier == nil {
		return
	}
	s.notifier.SendConfirmation(NotificationCommissionCreated, booking.OwnerID, map[string]any{
		"booking_id":    booking.ID,
		"commission_id": commission.ID,
		"amount":        amountString(commission.CommissionAmount),
	})
}

// Get returns a commission by id.
func (s *CommissionService) Get(ctx context.Context, commissionID string) (*domain.Commission, error) {
	if commissionID == "" {
		return nil, ErrInvalidCommissionID
	}
	return s.commissions.GetByID(ctx, commissionID)
}

// SubmitRequest contains the owner's proof of settlement.
type SubmitRequest struct {
	CommissionID string
	OwnerID      string
	Reference    string
}

// Submit records the owner's payment reference and queues the commission
// for verification.
func (s *CommissionService) Submit(ctx context.Context, req SubmitRequest) (*domain.Commission, error) {
	if req.CommissionID == "" {
		return nil, ErrInvalidCommissionID
	}
	if req.OwnerID == "" {
		return nil, ErrInvalidOwnerID
	}
	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		return nil, &ValidationError{Field: "reference", Reason: "is required"}
	}

	commission, err := s.commissions.GetByID(ctx, req.CommissionID)
	if err != nil {
		return nil, err
	}
	if commission.OwnerID != req.OwnerID {
		return nil, ErrNotCommissionOwner
	}

	from := commission.Status
	if !from.CanTransitionTo(domain.CommissionStatusForVerification) {
		return nil, ErrInvalidTransition
	}

	commission.Status = domain.CommissionStatusForVerification
	commission.PaymentReference = reference
	commission.UpdatedAt = s.now()

	if err := s.update(ctx, s.store.repos, commission, from); err != nil {
		return nil, err
	}

	metrics.IncCommission("submitted")
	log.Printf("[COMMISSION] commission %s submitted for verification by owner %s", commission.ID, req.OwnerID)
	return commission, nil
}

// ReviewRequest contains an administrative commission action.
type ReviewRequest struct {
	CommissionID string
	AdminID      string
	Notes        string
}

// MarkPaid settles a commission after verification. Settling a suspended
// commission also lifts the owner's suspension in the same write.
func (s *CommissionService) MarkPaid(ctx context.Context, req ReviewRequest) (*domain.Commission, error) {
	if req.CommissionID == "" {
		return nil, ErrInvalidCommissionID
	}
	if req.AdminID == "" {
		return nil, ErrInvalidActorID
	}

	var (
		commission *domain.Commission
		restored   bool
	)
	err := s.store.within(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		commission, err = repos.Commissions.GetByID(ctx, req.CommissionID)
		if err != nil {
			return err
		}

		from := commission.Status
		if !from.CanTransitionTo(domain.CommissionStatusPaid) {
			return ErrInvalidTransition
		}

		now := s.now()
		commission.Status = domain.CommissionStatusPaid
		commission.VerifiedBy = req.AdminID
		commission.VerifiedAt = now
		commission.UpdatedAt = now
		if req.Notes != "" {
			commission.Notes = req.Notes
		}

		if err := s.update(ctx, repos, commission, from); err != nil {
			return err
		}

		if from != domain.CommissionStatusSuspended {
			return nil
		}

		owner, err := repos.Owners.GetByID(ctx, commission.OwnerID)
		if err != nil {
			return err
		}
		if !owner.IsSuspended {
			return nil
		}
		owner.IsSuspended = false
		owner.SuspendedReason = ""
		owner.SuspendedAt = time.Time{}
		owner.SuspendedBy = ""
		if err := repos.Owners.UpdateSuspension(ctx, owner); err != nil {
			return fmt.Errorf("clear suspension for owner %s: %w", owner.ID, err)
		}
		restored = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.IncCommission("paid")
	log.Printf("[COMMISSION] commission %s marked paid by %s", commission.ID, req.AdminID)
	if restored {
		log.Printf("[COMMISSION] owner %s restored after settling suspended commission %s", commission.OwnerID, commission.ID)
	}

	if s.notifier != nil {
		s.notifier.SendConfirmation(NotificationCommissionPaid, commission.OwnerID, map[string]any{
			"booking_id":    commission.BookingID,
			"commission_id": commission.ID,
			"amount":        amountString(commission.CommissionAmount),
			"restored":      restored,
		})
	}
	return commission, nil
}

// Suspend puts a commission on administrative hold and suspends its owner.
func (s *CommissionService) Suspend(ctx context.Context, req ReviewRequest) (*domain.Commission, error) {
	if req.CommissionID == "" {
		return nil, ErrInvalidCommissionID
	}
	if req.AdminID == "" {
		return nil, ErrInvalidActorID
	}
	reason := strings.TrimSpace(req.Notes)
	if reason == "" {
		return nil, &ValidationError{Field: "reason", Reason: "is required"}
	}

	var commission *domain.Commission
	err := s.store.within(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		commission, err = repos.Commissions.GetByID(ctx, req.CommissionID)
		if err != nil {
			return err
		}

		from := commission.Status
		if !from.CanTransitionTo(domain.CommissionStatusSuspended) {
			return ErrInvalidTransition
		}

		now := s.now()
		commission.Status = domain.CommissionStatusSuspended
		commission.Notes = reason
		commission.UpdatedAt = now
		if err := s.update(ctx, repos, commission, from); err != nil {
			return err
		}

		owner, err := repos.Owners.GetByID(ctx, commission.OwnerID)
		if err != nil {
			return err
		}
		if owner.IsSuspended {
			return nil
		}
		owner.IsSuspended = true
		owner.SuspendedReason = fmt.Sprintf("commission %s: %s", commission.ID, reason)
		owner.SuspendedAt = now
		owner.SuspendedBy = req.AdminID
		return repos.Owners.UpdateSuspension(ctx, owner)
	})
	if err != nil {
		return nil, err
	}

	metrics.IncCommission("suspended")
	log.Printf("[COMMISSION] commission %s suspended by %s; owner %s suspended", commission.ID, req.AdminID, commission.OwnerID)
	return commission, nil
}

// Reset returns a suspended commission to unpaid. The owner's suspension is
// left for an explicit unsuspend.
func (s *CommissionService) Reset(ctx context.Context, req ReviewRequest) (*domain.Commission, error) {
	if req.CommissionID == "" {
		return nil, ErrInvalidCommissionID
	}
	if req.AdminID == "" {
		return nil, ErrInvalidActorID
	}

	commission, err := s.commissions.GetByID(ctx, req.CommissionID)
	if err != nil {
		return nil, err
	}

	from := commission.Status
	if !from.CanTransitionTo(domain.CommissionStatusUnpaid) {
		return nil, ErrInvalidTransition
	}

	commission.Status = domain.CommissionStatusUnpaid
	commission.PaymentReference = ""
	commission.UpdatedAt = s.now()
	if req.Notes != "" {
		commission.Notes = req.Notes
	}

	if err := s.update(ctx, s.store.repos, commission, from); err != nil {
		return nil, err
	}

	metrics.IncCommission("reset")
	log.Printf("[COMMISSION] commission %s reset to unpaid by %s", commission.ID, req.AdminID)
	return commission, nil
}

func (s *CommissionService) update(ctx context.Context, repos repository.Repositories, commission *domain.Commission, from domain.CommissionStatus) error {
	ok, err := repos.Commissions.UpdateIf(ctx, commission, from)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConcurrentUpdate
	}
	return nil
}

// ListByOwner returns an owner's commissions, newest first.
func (s *CommissionService) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Commission, error) {
	if ownerID == "" {
		return nil, ErrInvalidOwnerID
	}
	return s.commissions.ListByOwner(ctx, ownerID)
}

// OwnerSummary aggregates an owner's commissions. Paid commissions never
// count toward the outstanding balance.
func (s *CommissionService) OwnerSummary(ctx context.Context, ownerID string) (*domain.CommissionSummary, error) {
	commissions, err := s.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	summary := &domain.CommissionSummary{
		OwnerID:           ownerID,
		TotalCommissions:  len(commissions),
		OutstandingAmount: decimal.Zero,
		PaidAmount:        decimal.Zero,
	}
	for _, c := range commissions {
		if c.Status.IsOutstanding() {
			summary.OutstandingCount++
			summary.OutstandingAmount = summary.OutstandingAmount.Add(c.CommissionAmount)
			continue
		}
		summary.PaidAmount = summary.PaidAmount.Add(c.CommissionAmount)
	}
	summary.HasOutstanding = summary.OutstandingCount > 0
	return summary, nil
}

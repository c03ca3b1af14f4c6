package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"rental/internal/domain"
	"rental/internal/fees"
	"rental/internal/metrics"
	"rental/internal/repository"
)

// BookingService drives the booking state machine.
type BookingService struct {
	bookings    repository.BookingRepository
	payments    repository.PaymentRepository
	owners      repository.OwnerRepository
	vehicles    repository.VehicleRepository
	store       store
	commissions *CommissionService
	notifier    Notifier
	now         func() time.Time
}

// NewBookingService creates a new BookingService.
func NewBookingService(
	repos repository.Repositories,
	tx repository.Transactor,
	vehicles repository.VehicleRepository,
	commissions *CommissionService,
	notifier Notifier,
) *BookingService {
	return &BookingService{
		bookings:    repos.Bookings,
		payments:    repos.Payments,
		owners:      repos.Owners,
		vehicles:    vehicles,
		store:       store{repos: repos, tx: tx},
		commissions: commissions,
		notifier:    notifier,
		now:         time.Now,
	}
}

// CreateBookingRequest contains the parameters for reserving a vehicle.
type CreateBookingRequest struct {
	RenterID  string    `json:"renter_id" validate:"required"`
	VehicleID string    `json:"vehicle_id" validate:"required"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required,gtfield=StartDate"`
	Method    string    `json:"payment_method" validate:"required"`
}

// Create reserves a vehicle for a date range. Bookings against a suspended
// owner are refused before anything is written.
func (s *BookingService) Create(ctx context.Context, req CreateBookingRequest) (*domain.Booking, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	method, ok := domain.ParsePaymentMethod(req.Method)
	if !ok {
		return nil, &ValidationError{Field: "payment_method", Reason: "unsupported payment method"}
	}

	vehicle, err := s.vehicles.GetByID(ctx, req.VehicleID)
	if err != nil {
		return nil, err
	}

	owner, err := s.owners.GetByID(ctx, vehicle.OwnerID)
	if err != nil {
		return nil, err
	}
	if owner.IsSuspended {
		log.Printf("[BOOKING] refused booking of vehicle %s: owner %s is suspended", vehicle.ID, owner.ID)
		return nil, ErrOwnerSuspended
	}

	days := domain.RentalDays(req.StartDate, req.EndDate)
	price := fees.PriceBooking(vehicle.DailyRate.Mul(decimal.NewFromInt(int64(days))))

	now := s.now()
	booking := &domain.Booking{
		ID:             uuid.New().String(),
		RenterID:       req.RenterID,
		VehicleID:      vehicle.ID,
		OwnerID:        owner.ID,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		RentalSubtotal: price.RentalSubtotal,
		ServiceFee:     price.ServiceFee,
		TotalPrice:     price.TotalPrice,
		PaymentMethod:  method,
		Status:         domain.BookingStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.bookings.Create(ctx, booking); err != nil {
		return nil, err
	}

	log.Printf("[BOOKING] booking %s created: vehicle=%s days=%d total=%s",
		booking.ID, vehicle.ID, days, amountString(booking.TotalPrice))
	return booking, nil
}

// QuoteRequest contains the parameters for a price preview.
type QuoteRequest struct {
	VehicleID string
	StartDate time.Time
	EndDate   time.Time
	Method    string
}

// Quote previews the full price of a booking for a payment method.
func (s *BookingService) Quote(ctx context.Context, req QuoteRequest) (*fees.Quote, error) {
	if req.VehicleID == "" {
		return nil, &ValidationError{Field: "vehicle_id", Reason: "is required"}
	}
	if !req.EndDate.After(req.StartDate) {
		return nil, &ValidationError{Field: "end_date", Reason: "must be after start_date"}
	}
	method, ok := domain.ParsePaymentMethod(req.Method)
	if !ok {
		return nil, &ValidationError{Field: "method", Reason: "unsupported payment method"}
	}

	vehicle, err := s.vehicles.GetByID(ctx, req.VehicleID)
	if err != nil {
		return nil, err
	}

	days := domain.RentalDays(req.StartDate, req.EndDate)
	quote := fees.QuoteFor(vehicle.DailyRate.Mul(decimal.NewFromInt(int64(days))), method)
	return &quote, nil
}

// Get returns a booking by id.
func (s *BookingService) Get(ctx context.Context, bookingID string) (*domain.Booking, error) {
	if bookingID == "" {
		return nil, ErrInvalidBookingID
	}
	return s.bookings.GetByID(ctx, bookingID)
}

// Confirm is the owner's acceptance of a paid booking and the only point
// where a commission is created. With a transactional store both writes
// commit together. Otherwise the confirmation stands even if the
// commission write fails, and the gap is flagged for manual follow-up.
func (s *BookingService) Confirm(ctx context.Context, bookingID, ownerID string) (*domain.Booking, error) {
	booking, err := s.ownedBooking(ctx, bookingID, ownerID)
	if err != nil {
		return nil, err
	}
	if booking.Status != domain.BookingStatusPaid {
		return nil, ErrInvalidTransition
	}

	payment, err := s.payments.GetLatestByBookingID(ctx, booking.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNoPayment
	}
	if err != nil {
		return nil, err
	}
	if payment.Status != domain.PaymentStatusPaid {
		return nil, ErrPaymentNotSettled
	}

	var (
		commission *domain.Commission
		created    bool
	)
	err = s.store.within(ctx, func(ctx context.Context, repos repository.Repositories) error {
		moved, err := repos.Bookings.UpdateStatusIf(ctx, booking.ID, domain.BookingStatusPaid, domain.BookingStatusConfirmed)
		if err != nil {
			return err
		}
		if !moved {
			return ErrConcurrentUpdate
		}
		if !s.store.transactional() {
			return nil
		}
		commission, created, err = s.commissions.createForBooking(ctx, repos, booking, payment.Method)
		return err
	})
	if err != nil {
		return nil, err
	}

	booking.Status = domain.BookingStatusConfirmed
	booking.UpdatedAt = s.now()
	log.Printf("[BOOKING] booking %s confirmed by owner %s", booking.ID, ownerID)

	if !s.store.transactional() {
		commission, created, err = s.commissions.createForBooking(ctx, s.store.repos, booking, payment.Method)
		if err != nil {
			metrics.IncPartialFailure("commission_create")
			log.Printf("[RECONCILE-MANUAL] booking %s confirmed but commission was not created: %v", booking.ID, err)
		}
	}

	s.notify(NotificationBookingConfirmed, booking.RenterID, map[string]any{
		"booking_id": booking.ID,
		"vehicle_id": booking.VehicleID,
	})
	if created {
		s.commissions.notifyCreated(booking, commission)
	}
	return booking, nil
}

// Activate marks a confirmed booking as handed over.
func (s *BookingService) Activate(ctx context.Context, bookingID, ownerID string) (*domain.Booking, error) {
	booking, err := s.ownedBooking(ctx, bookingID, ownerID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, booking, domain.BookingStatusActive)
}

// Complete marks an active booking as returned.
func (s *BookingService) Complete(ctx context.Context, bookingID, ownerID string) (*domain.Booking, error) {
	booking, err := s.ownedBooking(ctx, bookingID, ownerID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, booking, domain.BookingStatusCompleted)
}

// Cancel is an administrative stop of a non-terminal booking. Collected
// funds are not returned by this service.
func (s *BookingService) Cancel(ctx context.Context, bookingID, adminID string) (*domain.Booking, error) {
	if bookingID == "" {
		return nil, ErrInvalidBookingID
	}
	if adminID == "" {
		return nil, ErrInvalidActorID
	}

	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	booking, err = s.transition(ctx, booking, domain.BookingStatusCancelled)
	if err != nil {
		return nil, err
	}
	log.Printf("[BOOKING] booking %s cancelled by %s", booking.ID, adminID)
	return booking, nil
}

func (s *BookingService) ownedBooking(ctx context.Context, bookingID, ownerID string) (*domain.Booking, error) {
	if bookingID == "" {
		return nil, ErrInvalidBookingID
	}
	if ownerID == "" {
		return nil, ErrInvalidOwnerID
	}

	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.OwnerID != ownerID {
		return nil, ErrNotBookingOwner
	}
	return booking, nil
}

func (s *BookingService) transition(ctx context.Context, booking *domain.Booking, to domain.BookingStatus) (*domain.Booking, error) {
	if !booking.Status.CanTransitionTo(to) {
		return nil, ErrInvalidTransition
	}

	moved, err := s.bookings.UpdateStatusIf(ctx, booking.ID, booking.Status, to)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, ErrConcurrentUpdate
	}

	log.Printf("[BOOKING] booking %s moved %s -> %s", booking.ID, booking.Status, to)
	booking.Status = to
	booking.UpdatedAt = s.now()
	return booking, nil
}

func (s *BookingService) notify(kind NotificationKind, recipientID string, data map[string]any) {
	if s.notifier == nil || recipientID == "" {
		return
	}
	s.notifier.SendConfirmation(kind, recipientID, data)
}

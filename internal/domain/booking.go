package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookingStatus represents the current status of a booking.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusPaid      BookingStatus = "paid"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusActive    BookingStatus = "active"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// bookingOrder ranks the forward path; cancelled sits outside it.
var bookingOrder = map[BookingStatus]int{
	BookingStatusPending:   0,
	BookingStatusPaid:      1,
	BookingStatusConfirmed: 2,
	BookingStatusActive:    3,
	BookingStatusCompleted: 4,
}

// IsTerminal reports whether no further transition is possible.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCompleted || s == BookingStatusCancelled
}

// CanTransitionTo reports whether the booking may move from s to next.
// Only single forward steps are allowed, plus cancellation from any
// non-terminal state.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == BookingStatusCancelled {
		return true
	}
	from, ok := bookingOrder[s]
	if !ok {
		return false
	}
	to, ok := bookingOrder[next]
	if !ok {
		return false
	}
	return to == from+1
}

// Booking represents a renter's reservation of a vehicle.
type Booking struct {
	ID             string
	RenterID       string
	VehicleID      string
	OwnerID        string
	StartDate      time.Time
	EndDate        time.Time
	RentalSubtotal decimal.Decimal
	ServiceFee     decimal.Decimal
	TotalPrice     decimal.Decimal // immutable after creation
	PaymentMethod  PaymentMethod
	Status         BookingStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Days returns the number of rental days, end date exclusive, minimum one.
func (b *Booking) Days() int {
	return RentalDays(b.StartDate, b.EndDate)
}

// RentalDays counts whole days between start and end, minimum one.
func RentalDays(start, end time.Time) int {
	days := int(end.Sub(start).Hours() / 24)
	if days < 1 {
		return 1
	}
	return days
}

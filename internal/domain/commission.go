package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CommissionStatus represents the settlement state of a commission.
type CommissionStatus string

const (
	CommissionStatusUnpaid          CommissionStatus = "unpaid"
	CommissionStatusForVerification CommissionStatus = "for_verification"
	CommissionStatusPaid            CommissionStatus = "paid"
	CommissionStatusSuspended       CommissionStatus = "suspended"
)

// IsOutstanding reports whether the commission counts toward an owner's
// outstanding balance.
func (s CommissionStatus) IsOutstanding() bool {
	return s != CommissionStatusPaid
}

// CanTransitionTo reports whether a commission may move from s to next.
// unpaid advances to for_verification and then paid. Any other status may
// be suspended, and a suspended commission is either reset to unpaid or
// settled directly.
func (s CommissionStatus) CanTransitionTo(next CommissionStatus) bool {
	switch next {
	case CommissionStatusForVerification:
		return s == CommissionStatusUnpaid
	case CommissionStatusPaid:
		return s == CommissionStatusForVerification || s == CommissionStatusSuspended
	case CommissionStatusSuspended:
		return s != CommissionStatusSuspended
	case CommissionStatusUnpaid:
		return s == CommissionStatusSuspended
	}
	return false
}

// Commission is the platform's cut of a confirmed booking, owed by the owner.
type Commission struct {
	ID                   string
	BookingID            string
	OwnerID              string
	RentalAmount         decimal.Decimal
	CommissionAmount     decimal.Decimal
	CommissionPercentage decimal.Decimal
	Category             PaymentCategory
	Status               CommissionStatus
	PaymentReference     string // owner-submitted proof of settlement
	VerifiedBy           string
	VerifiedAt           time.Time
	Notes                string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// CommissionSummary aggregates an owner's commissions.
type CommissionSummary struct {
	OwnerID           string
	TotalCommissions  int
	OutstandingCount  int
	OutstandingAmount decimal.Decimal
	PaidAmount        decimal.Decimal
	HasOutstanding    bool
}

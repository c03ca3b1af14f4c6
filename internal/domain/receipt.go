package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Receipt is the itemized breakdown of a paid booking.
type Receipt struct {
	ID             string
	BookingID      string
	PaymentID      string
	RenterID       string
	VehicleID      string
	StartDate      time.Time
	EndDate        time.Time
	Days           int
	RentalSubtotal decimal.Decimal
	ServiceFee     decimal.Decimal
	TotalPrice     decimal.Decimal
	ProcessingFee  decimal.Decimal
	AmountCharged  decimal.Decimal
	PaymentMethod  PaymentMethod
	PaymentStatus  PaymentStatus
	CreatedAt      time.Time
}

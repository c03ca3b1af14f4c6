package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Owner represents a vehicle owner listing on the marketplace.
type Owner struct {
	ID   string
	Name string
	// CommissionRate overrides the platform default when set.
	CommissionRate  *decimal.Decimal
	IsSuspended     bool
	SuspendedReason string
	SuspendedAt     time.Time
	SuspendedBy     string
}

// Vehicle is the minimal catalog view settlement needs.
type Vehicle struct {
	ID        string
	OwnerID   string
	DailyRate decimal.Decimal
}

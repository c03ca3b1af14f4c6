package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus represents the current status of a payment record.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// PaymentFlow is the settlement family a payment method belongs to.
type PaymentFlow string

const (
	FlowCard     PaymentFlow = "card"
	FlowRedirect PaymentFlow = "redirect"
	FlowQR       PaymentFlow = "qr"
	FlowCash     PaymentFlow = "cash"
)

// PaymentCategory is the commission-facing classification of a payment method.
type PaymentCategory string

const (
	CategoryCash     PaymentCategory = "cash"
	CategoryCashless PaymentCategory = "cashless"
)

// PaymentMethod represents the renter-selected payment method.
type PaymentMethod string

const (
	PaymentMethodCard    PaymentMethod = "card"
	PaymentMethodGCash   PaymentMethod = "gcash"
	PaymentMethodGrabPay PaymentMethod = "grab_pay"
	PaymentMethodMaya    PaymentMethod = "paymaya"
	PaymentMethodQRPh    PaymentMethod = "qrph"
	PaymentMethodCash    PaymentMethod = "cash"
)

// PaymentMethods lists every supported method. A method added to the const
// block must also be added here and classified in Flow and Category.
func PaymentMethods() []PaymentMethod {
	return []PaymentMethod{
		PaymentMethodCard,
		PaymentMethodGCash,
		PaymentMethodGrabPay,
		PaymentMethodMaya,
		PaymentMethodQRPh,
		PaymentMethodCash,
	}
}

// ParsePaymentMethod converts a caller-supplied string into a known method.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	for _, m := range PaymentMethods() {
		if string(m) == s {
			return m, true
		}
	}
	return "", false
}

// Flow returns the settlement flow for the method.
func (m PaymentMethod) Flow() (PaymentFlow, bool) {
	switch m {
	case PaymentMethodCard:
		return FlowCard, true
	case PaymentMethodGCash, PaymentMethodGrabPay, PaymentMethodMaya:
		return FlowRedirect, true
	case PaymentMethodQRPh:
		return FlowQR, true
	case PaymentMethodCash:
		return FlowCash, true
	}
	return "", false
}

// Category returns the cash/cashless classification used by commissions.
func (m PaymentMethod) Category() (PaymentCategory, bool) {
	switch m {
	case PaymentMethodCash:
		return CategoryCash, true
	case PaymentMethodCard, PaymentMethodGCash, PaymentMethodGrabPay, PaymentMethodMaya, PaymentMethodQRPh:
		return CategoryCashless, true
	}
	return "", false
}

// Payment represents the payment record for a booking.
type Payment struct {
	ID             string
	BookingID      string
	Amount         decimal.Decimal // booking total + processing fee
	ProcessingFee  decimal.Decimal
	Method         PaymentMethod
	Status         PaymentStatus
	GatewayRef     string // payment intent id
	FailureReason  string
	IdempotencyKey string
	CheckedAt      time.Time // last reconciler look at a still-pending payment; zero if never
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

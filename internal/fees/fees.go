// Package fees holds the money arithmetic shared by every booking, payment
// and commission call site. All values are rounded to two decimals at each
// stored or displayed step.
package fees

import (
	"github.com/shopspring/decimal"

	"rental/internal/domain"
)

var (
	serviceFeeRate = decimal.RequireFromString("0.05")
	cardFeeRate    = decimal.RequireFromString("0.035")
	cardFeeFixed   = decimal.NewFromInt(15)
	walletFeeRate  = decimal.RequireFromString("0.025")
	hundred        = decimal.NewFromInt(100)
)

// DefaultCommissionPercentage is the platform commission rate applied when an
// owner has no override.
var DefaultCommissionPercentage = decimal.RequireFromString("10.00")

// Round2 rounds half away from zero to two decimal places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// BookingPrice is the renter-facing price of a booking.
type BookingPrice struct {
	RentalSubtotal decimal.Decimal
	ServiceFee     decimal.Decimal
	TotalPrice     decimal.Decimal
}

// Charge is what the gateway collects for a booking.
type Charge struct {
	TotalPrice    decimal.Decimal
	ProcessingFee decimal.Decimal
	AmountCharged decimal.Decimal
}

// Quote combines the booking price and charge for a preview.
type Quote struct {
	BookingPrice
	Method        domain.PaymentMethod
	ProcessingFee decimal.Decimal
	AmountCharged decimal.Decimal
}

// PriceBooking computes the service fee and total price for a subtotal.
func PriceBooking(rentalSubtotal decimal.Decimal) BookingPrice {
	subtotal := Round2(rentalSubtotal)
	serviceFee := Round2(subtotal.Mul(serviceFeeRate))
	return BookingPrice{
		RentalSubtotal: subtotal,
		ServiceFee:     serviceFee,
		TotalPrice:     Round2(subtotal.Add(serviceFee)),
	}
}

// ProcessingFee returns the gateway processing fee for a total price.
// Card carries a percentage plus a fixed fee; every other method a flat
// percentage.
func ProcessingFee(totalPrice decimal.Decimal, method domain.PaymentMethod) decimal.Decimal {
	if method == domain.PaymentMethodCard {
		return Round2(totalPrice.Mul(cardFeeRate).Add(cardFeeFixed))
	}
	return Round2(totalPrice.Mul(walletFeeRate))
}

// ChargeFor computes the amount charged to the renter for a booking total.
func ChargeFor(totalPrice decimal.Decimal, method domain.PaymentMethod) Charge {
	fee := ProcessingFee(totalPrice, method)
	return Charge{
		TotalPrice:    totalPrice,
		ProcessingFee: fee,
		AmountCharged: Round2(totalPrice.Add(fee)),
	}
}

// QuoteFor builds a full price preview for a subtotal and method.
func QuoteFor(rentalSubtotal decimal.Decimal, method domain.PaymentMethod) Quote {
	price := PriceBooking(rentalSubtotal)
	charge := ChargeFor(price.TotalPrice, method)
	return Quote{
		BookingPrice:  price,
		Method:        method,
		ProcessingFee: charge.ProcessingFee,
		AmountCharged: charge.AmountCharged,
	}
}

// Commission computes the commission owed on a booking total at the given
// percentage (e.g. 10.00 for ten percent).
func Commission(totalPrice, percentage decimal.Decimal) decimal.Decimal {
	return Round2(totalPrice.Mul(percentage).Div(hundred))
}

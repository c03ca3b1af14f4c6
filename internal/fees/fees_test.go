package fees

import (
	"testing"

	"github.com/shopspring/decimal"

	"rental/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPriceBooking_CardExample(t *testing.T) {
	t.Parallel()

	quote := QuoteFor(dec("1000.00"), domain.PaymentMethodCard)

	if !quote.ServiceFee.Equal(dec("50.00")) {
		t.Errorf("expected service fee 50.00, got %s", quote.ServiceFee)
	}
	if !quote.TotalPrice.Equal(dec("1050.00")) {
		t.Errorf("expected total price 1050.00, got %s", quote.TotalPrice)
	}
	if !quote.ProcessingFee.Equal(dec("51.75")) {
		t.Errorf("expected processing fee 51.75, got %s", quote.ProcessingFee)
	}
	if !quote.AmountCharged.Equal(dec("1101.75")) {
		t.Errorf("expected amount charged 1101.75, got %s", quote.AmountCharged)
	}
}

func TestProcessingFee_NonCardMethods(t *testing.T) {
	t.Parallel()

	for _, method := range []domain.PaymentMethod{
		domain.PaymentMethodGCash,
		domain.PaymentMethodGrabPay,
		domain.PaymentMethodMaya,
		domain.PaymentMethodQRPh,
		domain.PaymentMethodCash,
	} {
		fee := ProcessingFee(dec("1050.00"), method)
		if !fee.Equal(dec("26.25")) {
			t.Errorf("%s: expected 26.25, got %s", method, fee)
		}
	}
}

func TestPriceBooking_TotalIsRoundedSubtotalTimesOnePointZeroFive(t *testing.T) {
	t.Parallel()

	subtotals := []string{"0.01", "1", "33.33", "99.99", "123.45", "1000", "2499.97", "7777.77", "100000.05"}
	for _, s := range subtotals {
		subtotal := dec(s)
		price := PriceBooking(subtotal)
		want := Round2(subtotal.Mul(dec("1.05")))
		if !price.TotalPrice.Equal(want) {
			t.Errorf("subtotal %s: expected total %s, got %s", s, want, price.TotalPrice)
		}
	}
}

func TestRound2_Idempotent(t *testing.T) {
	t.Parallel()

	values := []string{"0.005", "1.115", "2.675", "-3.333", "1050.125", "51.7499", "0"}
	for _, v := range values {
		once := Round2(dec(v))
		twice := Round2(once)
		if !once.Equal(twice) {
			t.Errorf("round2 not idempotent for %s: %s vs %s", v, once, twice)
		}
	}
}

func TestChargeFor_NeverBelowTotal(t *testing.T) {
	t.Parallel()

	for _, method := range domain.PaymentMethods() {
		for _, total := range []string{"0.01", "10.50", "1050.00", "99999.99"} {
			charge := ChargeFor(dec(total), method)
			if charge.AmountCharged.LessThan(charge.TotalPrice) {
				t.Errorf("%s/%s: amount charged %s below total %s", method, total, charge.AmountCharged, charge.TotalPrice)
			}
		}
	}
}

func TestCommission(t *testing.T) {
	t.Parallel()

	tests := []struct {
		total      string
		percentage string
		want       string
	}{
		{"1050.00", "10.00", "105.00"},
		{"1234.57", "10.00", "123.46"},
		{"999.99", "12.50", "125.00"},
		{"0.04", "10.00", "0.00"},
	}
	for _, tt := range tests {
		got := Commission(dec(tt.total), dec(tt.percentage))
		if !got.Equal(dec(tt.want)) {
			t.Errorf("Commission(%s, %s) = %s, want %s", tt.total, tt.percentage, got, tt.want)
		}
	}
}

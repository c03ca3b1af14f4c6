package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"rental/internal/domain"
	"rental/internal/service"
)

// ──────────────────────────────────────────────
// RECEIPTS
// ──────────────────────────────────────────────

func TestGenerateReceipt_PaidCardBookingIsItemized(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.addPaidBooking("booking-1")
	svc := service.NewReceiptService(f.bookings, f.payments)

	receipt, err := svc.GenerateReceipt(context.Background(), "booking-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	amounts := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"rental subtotal", receipt.RentalSubtotal, "1000.00"},
		{"service fee", receipt.ServiceFee, "50.00"},
		{"booking total", receipt.TotalPrice, "1050.00"},
		{"processing fee", receipt.ProcessingFee, "51.75"},
		{"amount charged", receipt.AmountCharged, "1101.75"},
	}
	for _, a := range amounts {
		if !a.got.Equal(decimal.RequireFromString(a.want)) {
			t.Errorf("%s: expected %s, got %s", a.name, a.want, a.got.StringFixed(2))
		}
	}

	if receipt.Days != 2 {
		t.Errorf("expected 2 days, got %d", receipt.Days)
	}
	if receipt.PaymentID != "pay-booking-1" || receipt.PaymentMethod != domain.PaymentMethodCard {
		t.Errorf("expected card payment pay-booking-1, got %s/%s", receipt.PaymentID, receipt.PaymentMethod)
	}
	if receipt.PaymentStatus != domain.PaymentStatusPaid {
		t.Errorf("expected paid status, got %s", receipt.PaymentStatus)
	}

	text := svc.FormatReceipt(receipt)
	for _, want := range []string{"Booking ID: booking-1", "Duration: 2 days", "Processing Fee:   51.75", "TOTAL CHARGED:    1101.75"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected formatted receipt to contain %q", want)
		}
	}
}

func TestGenerateReceipt_PendingPaymentNotSettled(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.addPendingBooking("booking-1")
	f.payments.AddPayment(&domain.Payment{
		ID:            "pay-booking-1",
		BookingID:     "booking-1",
		Amount:        decimal.RequireFromString("1101.75"),
		ProcessingFee: decimal.RequireFromString("51.75"),
		Method:        domain.PaymentMethodCard,
		Status:        domain.PaymentStatusPending,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	})
	svc := service.NewReceiptService(f.bookings, f.payments)

	_, err := svc.GenerateReceipt(context.Background(), "booking-1")
	if !errors.Is(err, service.ErrPaymentNotSettled) {
		t.Errorf("expected ErrPaymentNotSettled, got %v", err)
	}
}

func TestGenerateReceipt_NoPayment(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.addPendingBooking("booking-1")
	svc := service.NewReceiptService(f.bookings, f.payments)

	_, err := svc.GenerateReceipt(context.Background(), "booking-1")
	if !errors.Is(err, service.ErrNoPayment) {
		t.Errorf("expected ErrNoPayment, got %v", err)
	}

	if _, err := svc.GenerateReceipt(context.Background(), ""); !errors.Is(err, service.ErrInvalidBookingID) {
		t.Errorf("expected ErrInvalidBookingID for empty id, got %v", err)
	}
}

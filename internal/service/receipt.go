package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rental/internal/domain"
	"rental/internal/repository"
)

// ReceiptService handles receipt generation.
type ReceiptService struct {
	bookings repository.BookingRepository
	payments repository.PaymentRepository
	now      func() time.Time
}

// NewReceiptService creates a new ReceiptService.
func NewReceiptService(bookings repository.BookingRepository, payments repository.PaymentRepository) *ReceiptService {
	return &ReceiptService{
		bookings: bookings,
		payments: payments,
		now:      time.Now,
	}
}

// GenerateReceipt builds the receipt for a booking whose payment settled.
// Amounts come from the stored booking and payment rows, never recomputed.
func (s *ReceiptService) GenerateReceipt(ctx context.Context, bookingID string) (*domain.Receipt, error) {
	if bookingID == "" {
		return nil, ErrInvalidBookingID
	}

	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	payment, err := s.payments.GetLatestByBookingID(ctx, bookingID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNoPayment
	}
	if err != nil {
		return nil, err
	}
	if payment.Status != domain.PaymentStatusPaid {
		return nil, ErrPaymentNotSettled
	}

	return &domain.Receipt{
		ID:             "rcpt-" + payment.ID,
		BookingID:      booking.ID,
		PaymentID:      payment.ID,
		RenterID:       booking.RenterID,
		VehicleID:      booking.VehicleID,
		StartDate:      booking.StartDate,
		EndDate:        booking.EndDate,
		Days:           booking.Days(),
		RentalSubtotal: booking.RentalSubtotal,
		ServiceFee:     booking.ServiceFee,
		TotalPrice:     booking.TotalPrice,
		ProcessingFee:  payment.ProcessingFee,
		AmountCharged:  payment.Amount,
		PaymentMethod:  payment.Method,
		PaymentStatus:  payment.Status,
		CreatedAt:      s.now(),
	}, nil
}

// FormatReceipt formats the receipt as plain text (for email/print).
func (s *ReceiptService) FormatReceipt(receipt *domain.Receipt) string {
	return `
=====================================
        RENTAL RECEIPT
=====================================
Receipt ID: ` + receipt.ID + `
Booking ID: ` + receipt.BookingID + `
Date: ` + receipt.CreatedAt.Format("Jan 02, 2006 3:04 PM") + `

RENTAL DETAILS
-------------------------------------
Vehicle:  ` + receipt.VehicleID + `
From:     ` + receipt.StartDate.Format("Jan 02, 2006") + `
To:       ` + receipt.EndDate.Format("Jan 02, 2006") + `
Duration: ` + formatDays(receipt.Days) + `

CHARGES
-------------------------------------
Rental:           ` + receipt.RentalSubtotal.StringFixed(2) + `
Service Fee:      ` + receipt.ServiceFee.StringFixed(2) + `
Booking Total:    ` + receipt.TotalPrice.StringFixed(2) + `
Processing Fee:   ` + receipt.ProcessingFee.StringFixed(2) + `
-------------------------------------
TOTAL CHARGED:    ` + receipt.AmountCharged.StringFixed(2) + `

PAYMENT
-------------------------------------
Method: ` + string(receipt.PaymentMethod) + `
Status: ` + string(receipt.PaymentStatus) + `

=====================================
    Thank you for renting with us!
=====================================
`
}

func formatDays(days int) string {
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"rental/internal/domain"
	"rental/internal/gateway"
	"rental/internal/metrics"
	"rental/internal/redis"
	"rental/internal/repository"
)

// statusLookupTimeout bounds a shared status lookup, which runs detached
// from the caller that started it.
const statusLookupTimeout = 30 * time.Second

// finalize settles a booking whose funds the gateway has confirmed. Both
// transitions are conditional so concurrent webhook, poll and return
// deliveries settle the booking exactly once. Side effects fire only for
// the caller that moved the booking.
func (s *PaymentService) finalize(ctx context.Context, payment *domain.Payment) (*domain.Booking, error) {
	var (
		booking      *domain.Booking
		paymentMoved bool
		bookingMoved bool
	)

	err := s.store.within(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		paymentMoved, err = repos.Payments.UpdateStatusIf(ctx, payment.ID,
			[]domain.PaymentStatus{domain.PaymentStatusPending, domain.PaymentStatusFailed},
			domain.PaymentStatusPaid, "")
		if err != nil {
			return err
		}
		if !paymentMoved {
			current, err := repos.Payments.GetByID(ctx, payment.ID)
			if err != nil {
				return err
			}
			if current.Status != domain.PaymentStatusPaid {
				return errFinalizeConflict
			}
		}

		bookingMoved, err = repos.Bookings.UpdateStatusIf(ctx, payment.BookingID,
			domain.BookingStatusPending, domain.BookingStatusPaid)
		if err != nil {
			return err
		}

		booking, err = repos.Bookings.GetByID(ctx, payment.BookingID)
		return err
	})
	if errors.Is(err, errFinalizeConflict) {
		log.Printf("[PAYMENT] payment %s for booking %s is not payable; settlement skipped", payment.ID, payment.BookingID)
		return nil, ErrConcurrentUpdate
	}
	if err != nil {
		return nil, fmt.Errorf("finalize payment %s: %w", payment.ID, err)
	}

	payment.Status = domain.PaymentStatusPaid
	payment.FailureReason = ""

	if !bookingMoved {
		if booking.Status == domain.BookingStatusCancelled {
			// Funds were collected for a booking that can no longer be paid.
			metrics.IncPartialFailure("orphaned_payment")
			log.Printf("[RECONCILE-MANUAL] payment %s collected %s for cancelled booking %s",
				payment.ID, amountString(payment.Amount), booking.ID)
		} else if paymentMoved {
			// A second attempt succeeded on an already-settled booking.
			metrics.IncPartialFailure("duplicate_charge")
			log.Printf("[RECONCILE-MANUAL] payment %s collected %s for booking %s already settled by another payment",
				payment.ID, amountString(payment.Amount), booking.ID)
		}
		return booking, nil
	}

	metrics.IncPayment(string(payment.Method), string(domain.PaymentStatusPaid))
	log.Printf("[PAYMENT] booking %s paid via %s: payment=%s amount=%s",
		booking.ID, payment.Method, payment.ID, amountString(payment.Amount))

	s.cachePaid(ctx, booking, payment)

	s.notify(NotificationPaymentPaid, booking.RenterID, map[string]any{
		"booking_id": booking.ID,
		"payment_id": payment.ID,
		"amount":     amountString(payment.Amount),
		"method":     string(payment.Method),
	})
	s.notify(NotificationPaymentPaid, booking.OwnerID, map[string]any{
		"booking_id": booking.ID,
		"payment_id": payment.ID,
		"amount":     amountString(payment.Amount),
		"method":     string(payment.Method),
	})

	return booking, nil
}

// FinalizePaid settles a booking whose latest payment is already marked
// paid. Used by manual reconciliation.
func (s *PaymentService) FinalizePaid(ctx context.Context, bookingID string) (*domain.Booking, error) {
	if bookingID == "" {
		return nil, ErrInvalidBookingID
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

	return s.finalize(ctx, payment)
}

// markFailed moves a pending payment to failed. The booking stays pending so
// the renter may start a new attempt.
func (s *PaymentService) markFailed(ctx context.Context, booking *domain.Booking, payment *domain.Payment, reason string) error {
	moved, err := s.payments.UpdateStatusIf(ctx, payment.ID,
		[]domain.PaymentStatus{domain.PaymentStatusPending},
		domain.PaymentStatusFailed, reason)
	if err != nil {
		return fmt.Errorf("mark payment %s failed: %w", payment.ID, err)
	}
	if !moved {
		return nil
	}

	payment.Status = domain.PaymentStatusFailed
	payment.FailureReason = reason

	metrics.IncPayment(string(payment.Method), string(domain.PaymentStatusFailed))
	log.Printf("[PAYMENT] payment %s for booking %s failed: %s", payment.ID, payment.BookingID, reason)

	recipient := ""
	if booking != nil {
		recipient = booking.RenterID
	}
	if recipient != "" {
		s.notify(NotificationPaymentFailed, recipient, map[string]any{
			"booking_id": payment.BookingID,
			"payment_id": payment.ID,
			"reason":     reason,
		})
	}
	return nil
}

func (s *PaymentService) notify(kind NotificationKind, recipientID string, data map[string]any) {
	if s.notifier == nil || recipientID == "" {
		return
	}
	s.notifier.SendConfirmation(kind, recipientID, data)
}

func (s *PaymentService) cachePaid(ctx context.Context, booking *domain.Booking, payment *domain.Payment) {
	if s.cache == nil {
		return
	}
	err := s.cache.SetPaymentStatus(ctx, &redis.CachedPaymentStatus{
		BookingID: booking.ID,
		PaymentID: payment.ID,
		Status:    string(domain.PaymentStatusPaid),
		Method:    string(payment.Method),
		Amount:    amountString(payment.Amount),
	})
	if err != nil {
		log.Printf("[PAYMENT] failed to cache status for booking %s: %v", booking.ID, err)
	}
}

// PaymentStatusView is the renter-facing status of a booking's payment.
type PaymentStatusView struct {
	BookingID     string
	PaymentID     string
	Status        domain.PaymentStatus
	Method        domain.PaymentMethod
	Amount        decimal.Decimal
	FailureReason string
	// Retryable is set when the attempt failed and a new checkout may start.
	Retryable bool
}

// CheckPaymentStatus reports a booking's payment status, consulting the
// gateway for pending intents. It is the only path that trusts a renter
// returning from a redirect. Concurrent checks for one booking share a
// single gateway lookup.
func (s *PaymentService) CheckPaymentStatus(ctx context.Context, bookingID string) (*PaymentStatusView, error) {
	if bookingID == "" {
		return nil, ErrInvalidBookingID
	}

	if s.cache != nil {
		cached, err := s.cache.GetPaymentStatus(ctx, bookingID)
		if err != nil {
			log.Printf("[PAYMENT] status cache read failed for booking %s: %v", bookingID, err)
		} else if cached != nil {
			amount, _ := decimal.NewFromString(cached.Amount)
			return &PaymentStatusView{
				BookingID: cached.BookingID,
				PaymentID: cached.PaymentID,
				Status:    domain.PaymentStatus(cached.Status),
				Method:    domain.PaymentMethod(cached.Method),
				Amount:    amount,
			}, nil
		}
	}

	// The lookup is shared by every waiting caller, so it must outlive the
	// one that started it.
	flight := s.sf.DoChan(bookingID, func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusLookupTimeout)
		defer cancel()
		return s.checkPaymentStatus(lookupCtx, bookingID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-flight:
		if res.Err != nil {
			return nil, res.Err
		}
		view := *res.Val.(*PaymentStatusView)
		return &view, nil
	}
}

func (s *PaymentService) checkPaymentStatus(ctx context.Context, bookingID string) (*PaymentStatusView, error) {
	payment, err := s.payments.GetLatestByBookingID(ctx, bookingID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNoPayment
	}
	if err != nil {
		return nil, err
	}

	if payment.Status != domain.PaymentStatusPending ||
		payment.Method == domain.PaymentMethodCash ||
		payment.GatewayRef == "" {
		return statusView(payment), nil
	}

	intent, err := s.gateway.RetrievePaymentIntent(ctx, payment.GatewayRef, "")
	if err != nil {
		if gateway.IsTimeout(err) {
			log.Printf("[PAYMENT] status lookup for booking %s timed out; reporting pending", bookingID)
			return statusView(payment), nil
		}
		return nil, fmt.Errorf("retrieve intent %s: %w", payment.GatewayRef, err)
	}

	if err := s.applyIntent(ctx, payment, intent); err != nil {
		return nil, err
	}
	return statusView(payment), nil
}

// applyIntent settles a pending payment from an authoritative intent read.
func (s *PaymentService) applyIntent(ctx context.Context, payment *domain.Payment, intent *gateway.PaymentIntent) error {
	switch {
	case intent.Status == gateway.IntentSucceeded:
		_, err := s.finalize(ctx, payment)
		if errors.Is(err, ErrConcurrentUpdate) {
			return s.reload(ctx, payment)
		}
		return err
	case intent.IsTerminalFailure(), intent.HasFailedAttempt():
		return s.failWithBooking(ctx, payment, failureReason(intent))
	case intent.Status == gateway.IntentAwaitingPaymentMethod || intent.Status == gateway.IntentAwaitingNextAction:
		age := s.now().Sub(payment.CreatedAt)
		if payment.Method == domain.PaymentMethodQRPh && age > s.cfg.QRExpiry {
			return s.failWithBooking(ctx, payment, "qr_expired")
		}
		if age > s.cfg.AbandonAfter {
			return s.failWithBooking(ctx, payment, "abandoned")
		}
	}
	return nil
}

func (s *PaymentService) failWithBooking(ctx context.Context, payment *domain.Payment, reason string) error {
	booking, err := s.bookings.GetByID(ctx, payment.BookingID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if err := s.markFailed(ctx, booking, payment, reason); err != nil {
		return err
	}
	return s.reload(ctx, payment)
}

func (s *PaymentService) reload(ctx context.Context, payment *domain.Payment) error {
	current, err := s.payments.GetByID(ctx, payment.ID)
	if err != nil {
		return err
	}
	*payment = *current
	return nil
}

func statusView(p *domain.Payment) *PaymentStatusView {
	return &PaymentStatusView{
		BookingID:     p.BookingID,
		PaymentID:     p.ID,
		Status:        p.Status,
		Method:        p.Method,
		Amount:        p.Amount,
		FailureReason: p.FailureReason,
		Retryable:     p.Status == domain.PaymentStatusFailed,
	}
}

// HandleWebhook verifies and applies an inbound gateway notification. Only
// an invalid signature or an undecodable body is reported as an error;
// anything else is acknowledged so the gateway stops redelivering.
func (s *PaymentService) HandleWebhook(ctx context.Context, rawBody []byte, signatureHeader string) error {
	if s.verifier == nil || !s.verifier.Verify(rawBody, signatureHeader) {
		metrics.IncWebhook("invalid_signature")
		log.Printf("[WEBHOOK] rejected delivery with invalid signature")
		return ErrInvalidSignature
	}

	event, err := gateway.ParseEvent(rawBody)
	if err != nil {
		metrics.IncWebhook("malformed")
		log.Printf("[WEBHOOK] rejected malformed payload: %v", err)
		return ErrMalformedWebhook
	}

	if !event.Succeeded() && !event.Failed() {
		metrics.IncWebhook("ignored")
		log.Printf("[WEBHOOK] ignoring event %s of type %s", event.ID, event.Type)
		return nil
	}

	if event.IntentID == "" {
		metrics.IncWebhook("unmatched")
		log.Printf("[WEBHOOK] event %s carries no payment intent", event.ID)
		return nil
	}

	payment, err := s.payments.GetByGatewayRef(ctx, event.IntentID)
	if errors.Is(err, repository.ErrNotFound) {
		metrics.IncWebhook("unmatched")
		log.Printf("[WEBHOOK] no payment for intent %s (event %s)", event.IntentID, event.ID)
		return nil
	}
	if err != nil {
		return err
	}

	if event.Succeeded() {
		_, err := s.finalize(ctx, payment)
		if errors.Is(err, ErrConcurrentUpdate) {
			metrics.IncWebhook("conflict")
			return nil
		}
		if err != nil {
			return err
		}
		metrics.IncWebhook("paid")
		return nil
	}

	reason := event.FailureReason
	if reason == "" {
		reason = event.Type
	}
	booking, err := s.bookings.GetByID(ctx, payment.BookingID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if err := s.markFailed(ctx, booking, payment, reason); err != nil {
		return err
	}
	metrics.IncWebhook("failed")
	return nil
}

// MarkCashReceived settles a cash booking once its owner confirms the
// handover payment.
func (s *PaymentService) MarkCashReceived(ctx context.Context, bookingID, ownerID string) (*domain.Booking, error) {
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

	payment, err := s.payments.GetLatestByBookingID(ctx, bookingID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNoPayment
	}
	if err != nil {
		return nil, err
	}
	if payment.Method != domain.PaymentMethodCash {
		return nil, &ValidationError{Field: "method", Reason: "booking is not paid in cash"}
	}
	if payment.Status == domain.PaymentStatusPaid && booking.Status != domain.BookingStatusPending {
		return booking, nil
	}
	if booking.Status != domain.BookingStatusPending {
		return nil, ErrBookingNotPayable
	}

	return s.finalize(ctx, payment)
}

// ReconcilePayment re-reads a stale pending payment and settles it from the
// gateway's answer.
func (s *PaymentService) ReconcilePayment(ctx context.Context, paymentID string) error {
	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return err
	}
	if payment.Status != domain.PaymentStatusPending || payment.Method == domain.PaymentMethodCash {
		return nil
	}

	if payment.GatewayRef == "" {
		// The intent was never created, or creation was never recorded.
		if s.now().Sub(payment.CreatedAt) < s.cfg.QRExpiry {
			return s.markChecked(ctx, payment)
		}
		return s.failWithBooking(ctx, payment, "no gateway reference")
	}

	intent, err := s.gateway.RetrievePaymentIntent(ctx, payment.GatewayRef, "")
	if err != nil {
		if markErr := s.markChecked(ctx, payment); markErr != nil {
			log.Printf("[RECONCILER] %v", markErr)
		}
		return fmt.Errorf("retrieve intent %s: %w", payment.GatewayRef, err)
	}
	if err := s.applyIntent(ctx, payment, intent); err != nil {
		return err
	}
	if payment.Status == domain.PaymentStatusPending {
		return s.markChecked(ctx, payment)
	}
	return nil
}

// markChecked moves a payment that is still open to the back of the
// reconciler's queue.
func (s *PaymentService) markChecked(ctx context.Context, payment *domain.Payment) error {
	if err := s.payments.MarkChecked(ctx, payment.ID, s.now()); err != nil {
		return fmt.Errorf("mark payment %s checked: %w", payment.ID, err)
	}
	return nil
}

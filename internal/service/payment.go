package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"rental/internal/domain"
	"rental/internal/fees"
	"rental/internal/gateway"
	"rental/internal/redis"
	"rental/internal/repository"
)

// Gateway is the subset of the payment gateway client the orchestrator uses.
type Gateway interface {
	CreatePaymentIntent(ctx context.Context, params gateway.CreateIntentParams, idempotencyKey string) (*gateway.PaymentIntent, error)
	RetrievePaymentIntent(ctx context.Context, intentID, clientKey string) (*gateway.PaymentIntent, error)
	CreatePaymentMethod(ctx context.Context, params gateway.CreatePaymentMethodParams) (string, error)
	AttachPaymentIntent(ctx context.Context, intentID string, params gateway.AttachParams, idempotencyKey string) (*gateway.PaymentIntent, error)
}

// WebhookVerifier authenticates inbound gateway notifications.
type WebhookVerifier interface {
	Verify(rawBody []byte, header string) bool
}

// PaymentConfig holds orchestrator settings.
type PaymentConfig struct {
	Currency      string
	ReturnBaseURL string
	// QRExpiry is how long an unpaid QR intent stays displayable.
	QRExpiry time.Duration
	// AbandonAfter fails payments whose intent never received a payment
	// method within this window.
	AbandonAfter time.Duration
}

// PaymentService orchestrates method-specific payment flows and settles
// bookings once the gateway confirms funds.
type PaymentService struct {
	bookings repository.BookingRepository
	payments repository.PaymentRepository
	store    store
	gateway  Gateway
	verifier WebhookVerifier
	notifier Notifier
	cache    redis.PaymentStatusCache
	cfg      PaymentConfig
	sf       singleflight.Group
	now      func() time.Time
}

// NewPaymentService creates a new PaymentService. tx and cache may be nil.
func NewPaymentService(
	repos repository.Repositories,
	tx repository.Transactor,
	gw Gateway,
	verifier WebhookVerifier,
	notifier Notifier,
	cache redis.PaymentStatusCache,
	cfg PaymentConfig,
) *PaymentService {
	if cfg.Currency == "" {
		cfg.Currency = "PHP"
	}
	if cfg.QRExpiry <= 0 {
		cfg.QRExpiry = 30 * time.Minute
	}
	if cfg.AbandonAfter <= 0 {
		cfg.AbandonAfter = 24 * time.Hour
	}
	return &PaymentService{
		bookings: repos.Bookings,
		payments: repos.Payments,
		store:    store{repos: repos, tx: tx},
		gateway:  gw,
		verifier: verifier,
		notifier: notifier,
		cache:    cache,
		cfg:      cfg,
		now:      time.Now,
	}
}

// NextAction tells the checkout caller what to do after a checkout call.
type NextAction string

const (
	// NextActionNone means the payment is settled.
	NextActionNone NextAction = "none"
	// NextActionRedirect means the renter must be sent to RedirectURL.
	NextActionRedirect NextAction = "redirect"
	// NextActionDisplayQR means the caller should render the intent as a QR code.
	NextActionDisplayQR NextAction = "display_qr"
	// NextActionAwaitCash means the owner will mark cash received at handover.
	NextActionAwaitCash NextAction = "await_cash"
	// NextActionPoll means the gateway is still processing the charge.
	NextActionPoll NextAction = "poll"
)

// CheckoutRequest contains the parameters for starting a payment.
type CheckoutRequest struct {
	BookingID string
	RenterID  string
	Method    string
	Card      *CardInput
	Billing   *BillingInput
}

// CheckoutResult is what the checkout caller receives.
type CheckoutResult struct {
	Booking     *domain.Booking
	Payment     *domain.Payment
	NextAction  NextAction
	RedirectURL string
	IntentID    string
	ClientKey   string
	ExpiresAt   time.Time
}

// Checkout turns the renter's chosen method into a payment attempt. A
// PaymentRecord is written before any gateway call.
func (s *PaymentService) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	if req.BookingID == "" {
		return nil, ErrInvalidBookingID
	}

	method, ok := domain.ParsePaymentMethod(req.Method)
	if !ok {
		return nil, &ValidationError{Field: "method", Reason: "unsupported payment method"}
	}
	flow, ok := method.Flow()
	if !ok {
		return nil, &ValidationError{Field: "method", Reason: "unsupported payment method"}
	}

	if flow == domain.FlowCard {
		if err := validateCard(req.Card, s.now()); err != nil {
			return nil, err
		}
	}
	if req.Billing != nil {
		if err := validateStruct(req.Billing); err != nil {
			return nil, err
		}
	}

	booking, err := s.bookings.GetByID(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}
	if req.RenterID != "" && booking.RenterID != req.RenterID {
		return nil, ErrNotBookingRenter
	}
	if booking.Status != domain.BookingStatusPending {
		return nil, ErrBookingNotPayable
	}

	payment, intent, result, err := s.resume(ctx, booking, method)
	if err != nil || result != nil {
		return result, err
	}

	if payment == nil {
		charge := fees.ChargeFor(booking.TotalPrice, method)
		now := s.now()
		paymentID := uuid.New().String()
		payment = &domain.Payment{
			ID:             paymentID,
			BookingID:      booking.ID,
			Amount:         charge.AmountCharged,
			ProcessingFee:  charge.ProcessingFee,
			Method:         method,
			Status:         domain.PaymentStatusPending,
			IdempotencyKey: "checkout:" + paymentID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.payments.Create(ctx, payment); err != nil {
			return nil, err
		}
		log.Printf("[PAYMENT] payment %s created for booking %s: method=%s amount=%s",
			payment.ID, booking.ID, method, payment.Amount.StringFixed(2))
	}

	switch flow {
	case domain.FlowCash:
		return s.cashResult(booking, payment), nil
	case domain.FlowCard:
		return s.checkoutCard(ctx, booking, payment, intent, req)
	case domain.FlowRedirect:
		return s.checkoutRedirect(ctx, booking, payment, intent, req)
	case domain.FlowQR:
		return s.checkoutQR(ctx, booking, payment, intent)
	}
	return nil, &ValidationError{Field: "method", Reason: "unsupported payment method"}
}

// resume inspects the booking's latest payment before a new attempt. It
// either returns a final result, hands back a pending payment and intent to
// reuse, or clears the way for a fresh payment.
func (s *PaymentService) resume(ctx context.Context, booking *domain.Booking, method domain.PaymentMethod) (*domain.Payment, *gateway.PaymentIntent, *CheckoutResult, error) {
	existing, err := s.payments.GetLatestByBookingID(ctx, booking.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, nil, nil
	}
	if err != nil {
		return nil, nil, nil, err
	}

	switch existing.Status {
	case domain.PaymentStatusPaid:
		// Funds are in but the booking never moved; settle it now.
		settled, err := s.finalize(ctx, existing)
		if err != nil {
			return nil, nil, nil, err
		}
		return nil, nil, paidResult(settled, existing), nil
	case domain.PaymentStatusFailed, domain.PaymentStatusRefunded:
		return nil, nil, nil, nil
	}

	if existing.Method == domain.PaymentMethodCash {
		if method == domain.PaymentMethodCash {
			return nil, nil, s.cashResult(booking, existing), nil
		}
		return nil, nil, nil, s.supersede(ctx, existing, method)
	}

	if existing.GatewayRef == "" {
		// An intent create that timed out may have landed. Retrying with the
		// same payment resends intent:<paymentID> and gets that intent back.
		switch {
		case existing.Method != method:
			return nil, nil, nil, s.supersede(ctx, existing, method)
		case s.now().Sub(existing.CreatedAt) < s.cfg.QRExpiry:
			return existing, nil, nil, nil
		}
		return nil, nil, nil, s.markFailed(ctx, booking, existing, "no gateway reference")
	}

	intent, err := s.gateway.RetrievePaymentIntent(ctx, existing.GatewayRef, "")
	if err != nil {
		return nil, nil, nil, fmt.Errorf("retrieve intent %s: %w", existing.GatewayRef, err)
	}

	switch {
	case intent.Status == gateway.IntentSucceeded:
		settled, err := s.finalize(ctx, existing)
		if err != nil {
			return nil, nil, nil, err
		}
		return nil, nil, paidResult(settled, existing), nil
	case intent.IsTerminalFailure(), intent.HasFailedAttempt():
		return nil, nil, nil, s.markFailed(ctx, booking, existing, failureReason(intent))
	case intent.Status == gateway.IntentProcessing:
		return nil, nil, nil, ErrPaymentPending
	case existing.Method != method:
		return nil, nil, nil, s.supersede(ctx, existing, method)
	case intent.Status == gateway.IntentAwaitingNextAction && intent.RedirectURL != "":
		return nil, nil, &CheckoutResult{
			Booking:     booking,
			Payment:     existing,
			NextAction:  NextActionRedirect,
			RedirectURL: intent.RedirectURL,
			IntentID:    intent.ID,
		}, nil
	}

	// Same method and the intent is still open: attach to it again.
	return existing, intent, nil, nil
}

func (s *PaymentService) supersede(ctx context.Context, payment *domain.Payment, method domain.PaymentMethod) error {
	_, err := s.payments.UpdateStatusIf(ctx, payment.ID,
		[]domain.PaymentStatus{domain.PaymentStatusPending},
		domain.PaymentStatusFailed,
		fmt.Sprintf("superseded by %s checkout", method))
	if err != nil {
		return err
	}
	log.Printf("[PAYMENT] payment %s for booking %s superseded by a %s checkout", payment.ID, payment.BookingID, method)
	return nil
}

// ensureIntent creates the gateway intent for a payment that has none yet.
// The idempotency key is derived from the payment id so retries of the same
// logical operation resolve to one gateway intent.
func (s *PaymentService) ensureIntent(ctx context.Context, booking *domain.Booking, payment *domain.Payment, intent *gateway.PaymentIntent) (*gateway.PaymentIntent, error) {
	if intent != nil {
		return intent, nil
	}

	created, err := s.gateway.CreatePaymentIntent(ctx, gateway.CreateIntentParams{
		Amount:         payment.Amount,
		Currency:       s.cfg.Currency,
		AllowedMethods: []string{string(payment.Method)},
		Description:    fmt.Sprintf("Vehicle rental booking %s", booking.ID),
		Metadata: map[string]string{
			"booking_id": booking.ID,
			"payment_id": payment.ID,
		},
	}, "intent:"+payment.ID)
	if err != nil {
		return nil, s.gatewayFailure(ctx, booking, payment, err, "create payment intent", false)
	}

	if err := s.payments.SetGatewayRef(ctx, payment.ID, created.ID); err != nil {
		log.Printf("[PAYMENT] failed to record intent %s on payment %s: %v", created.ID, payment.ID, err)
		return nil, err
	}
	payment.GatewayRef = created.ID
	return created, nil
}

func (s *PaymentService) checkoutCard(ctx context.Context, booking *domain.Booking, payment *domain.Payment, intent *gateway.PaymentIntent, req CheckoutRequest) (*CheckoutResult, error) {
	intent, err := s.ensureIntent(ctx, booking, payment, intent)
	if err != nil {
		return nil, err
	}

	methodID, err := s.gateway.CreatePaymentMethod(ctx, gateway.CreatePaymentMethodParams{
		Type: string(domain.PaymentMethodCard),
		Card: &gateway.CardDetails{
			Number:   req.Card.Number,
			ExpMonth: req.Card.ExpMonth,
			ExpYear:  req.Card.ExpYear,
			CVC:      req.Card.CVC,
		},
		Billing: toBilling(req.Billing),
	})
	if err != nil {
		return nil, s.gatewayFailure(ctx, booking, payment, err, "create payment method", false)
	}

	attached, err := s.gateway.AttachPaymentIntent(ctx, intent.ID, gateway.AttachParams{
		PaymentMethodID: methodID,
		ClientKey:       intent.ClientKey,
		ReturnURL:       s.returnURL(booking.ID, intent.ID),
	}, "attach:"+methodID)
	if err != nil {
		return nil, s.gatewayFailure(ctx, booking, payment, err, "attach payment method", true)
	}

	switch {
	case attached.Status == gateway.IntentSucceeded:
		settled, err := s.finalize(ctx, payment)
		if err != nil {
			return nil, err
		}
		return paidResult(settled, payment), nil
	case attached.Status == gateway.IntentAwaitingPaymentMethod:
		// The card was not accepted for this intent.
		reason := attached.LastError
		if reason == "" {
			reason = "authentication_required"
		}
		if err := s.markFailed(ctx, booking, payment, reason); err != nil {
			return nil, err
		}
		return nil, ErrAuthenticationRequired
	case attached.IsTerminalFailure():
		if err := s.markFailed(ctx, booking, payment, failureReason(attached)); err != nil {
			return nil, err
		}
		return nil, ErrPaymentRetryable
	case attached.Status == gateway.IntentAwaitingNextAction && attached.RedirectURL != "":
		return &CheckoutResult{
			Booking:     booking,
			Payment:     payment,
			NextAction:  NextActionRedirect,
			RedirectURL: attached.RedirectURL,
			IntentID:    attached.ID,
		}, nil
	}

	return &CheckoutResult{
		Booking:    booking,
		Payment:    payment,
		NextAction: NextActionPoll,
		IntentID:   attached.ID,
	}, nil
}

func (s *PaymentService) checkoutRedirect(ctx context.Context, booking *domain.Booking, payment *domain.Payment, intent *gateway.PaymentIntent, req CheckoutRequest) (*CheckoutResult, error) {
	intent, err := s.ensureIntent(ctx, booking, payment, intent)
	if err != nil {
		return nil, err
	}

	methodID, err := s.gateway.CreatePaymentMethod(ctx, gateway.CreatePaymentMethodParams{
		Type:    string(payment.Method),
		Billing: toBilling(req.Billing),
	})
	if err != nil {
		return nil, s.gatewayFailure(ctx, booking, payment, err, "create payment method", false)
	}

	// The return URL carries the real intent id, known only after creation.
	attached, err := s.gateway.AttachPaymentIntent(ctx, intent.ID, gateway.AttachParams{
		PaymentMethodID: methodID,
		ClientKey:       intent.ClientKey,
		ReturnURL:       s.returnURL(booking.ID, intent.ID),
	}, "attach:"+methodID)
	if err != nil {
		return nil, s.gatewayFailure(ctx, booking, payment, err, "attach payment method", true)
	}

	if attached.Status == gateway.IntentSucceeded {
		settled, err := s.finalize(ctx, payment)
		if err != nil {
			return nil, err
		}
		return paidResult(settled, payment), nil
	}

	if attached.RedirectURL == "" {
		if err := s.markFailed(ctx, booking, payment, "gateway returned no redirect"); err != nil {
			return nil, err
		}
		return nil, ErrPaymentRetryable
	}

	return &CheckoutResult{
		Booking:     booking,
		Payment:     payment,
		NextAction:  NextActionRedirect,
		RedirectURL: attached.RedirectURL,
		IntentID:    attached.ID,
	}, nil
}

// checkoutQR hands the intent to the caller for QR display. Settlement
// arrives by webhook or status polling.
func (s *PaymentService) checkoutQR(ctx context.Context, booking *domain.Booking, payment *domain.Payment, intent *gateway.PaymentIntent) (*CheckoutResult, error) {
	intent, err := s.ensureIntent(ctx, booking, payment, intent)
	if err != nil {
		return nil, err
	}

	return &CheckoutResult{
		Booking:    booking,
		Payment:    payment,
		NextAction: NextActionDisplayQR,
		IntentID:   intent.ID,
		ClientKey:  intent.ClientKey,
		ExpiresAt:  payment.CreatedAt.Add(s.cfg.QRExpiry),
	}, nil
}

func (s *PaymentService) cashResult(booking *domain.Booking, payment *domain.Payment) *CheckoutResult {
	return &CheckoutResult{
		Booking:    booking,
		Payment:    payment,
		NextAction: NextActionAwaitCash,
	}
}

// gatewayFailure classifies a failed gateway call. A timeout, or a server
// error after the charge may have been submitted, leaves the payment pending
// for an authoritative check. Anything else fails the attempt.
func (s *PaymentService) gatewayFailure(ctx context.Context, booking *domain.Booking, payment *domain.Payment, err error, step string, mayHaveCharged bool) error {
	var gerr *gateway.GatewayError
	ambiguous := gateway.IsTimeout(err) ||
		(mayHaveCharged && (!errors.As(err, &gerr) || gerr.Status == 0 || gerr.Retryable()))

	if ambiguous {
		log.Printf("[PAYMENT] %s for payment %s ended without a definitive answer: %v", step, payment.ID, err)
		return ErrPaymentPending
	}

	log.Printf("[PAYMENT] %s failed for payment %s: %v", step, payment.ID, err)
	reason := step
	if errors.As(err, &gerr) && gerr.Code != "" {
		reason = gerr.Code
	}
	if markErr := s.markFailed(ctx, booking, payment, reason); markErr != nil {
		log.Printf("[PAYMENT] failed to mark payment %s failed: %v", payment.ID, markErr)
	}
	return fmt.Errorf("%s: %w", step, err)
}

func (s *PaymentService) returnURL(bookingID, intentID string) string {
	q := url.Values{}
	q.Set("booking_id", bookingID)
	q.Set("intent_id", intentID)
	return s.cfg.ReturnBaseURL + "/v1/payments/return?" + q.Encode()
}

func toBilling(b *BillingInput) *gateway.Billing {
	if b == nil {
		return nil
	}
	return &gateway.Billing{Name: b.Name, Email: b.Email, Phone: b.Phone}
}

func failureReason(intent *gateway.PaymentIntent) string {
	if intent.LastError != "" {
		return intent.LastError
	}
	return "intent " + string(intent.Status)
}

func paidResult(booking *domain.Booking, payment *domain.Payment) *CheckoutResult {
	payment.Status = domain.PaymentStatusPaid
	return &CheckoutResult{
		Booking:    booking,
		Payment:    payment,
		NextAction: NextActionNone,
		IntentID:   payment.GatewayRef,
	}
}

// amountString formats money for notifications.
func amountString(d decimal.Decimal) string {
	return d.StringFixed(2)
}

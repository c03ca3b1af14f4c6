package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"rental/internal/service"
)

// PaymentHandler handles HTTP requests for payments.
type PaymentHandler struct {
	paymentService *service.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentService *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// CheckoutRequest is the HTTP request body for starting a payment.
type CheckoutRequest struct {
	RenterID      string                `json:"renter_id"`
	PaymentMethod string                `json:"payment_method"`
	Card          *service.CardInput    `json:"card,omitempty"`
	Billing       *service.BillingInput `json:"billing,omitempty"`
}

// CheckoutResponse is the HTTP response for a checkout attempt.
type CheckoutResponse struct {
	BookingID     string `json:"booking_id"`
	BookingStatus string `json:"booking_status"`
	PaymentID     string `json:"payment_id,omitempty"`
	PaymentStatus string `json:"payment_status,omitempty"`
	Amount        string `json:"amount,omitempty"`
	ProcessingFee string `json:"processing_fee,omitempty"`
	NextAction    string `json:"next_action"`
	RedirectURL   string `json:"redirect_url,omitempty"`
	IntentID      string `json:"intent_id,omitempty"`
	ClientKey     string `json:"client_key,omitempty"`
	ExpiresAt     string `json:"expires_at,omitempty"`
}

// PaymentStatusResponse is the HTTP response for payment status polling.
type PaymentStatusResponse struct {
	BookingID     string `json:"booking_id"`
	PaymentID     string `json:"payment_id"`
	Status        string `json:"status"`
	PaymentMethod string `json:"payment_method"`
	Amount        string `json:"amount"`
	FailureReason string `json:"failure_reason,omitempty"`
	Retryable     bool   `json:"retryable"`
}

// Checkout handles POST /v1/bookings/:id/checkout
func (h *PaymentHandler) Checkout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	bookingID := c.Param("id")
	result, err := h.paymentService.Checkout(c.Request.Context(), service.CheckoutRequest{
		BookingID: bookingID,
		RenterID:  req.RenterID,
		Method:    req.PaymentMethod,
		Card:      req.Card,
		Billing:   req.Billing,
	})
	if errors.Is(err, service.ErrPaymentPending) {
		respondJSON(c, http.StatusAccepted, CheckoutResponse{
			BookingID:  bookingID,
			NextAction: string(service.NextActionPoll),
		})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	response := CheckoutResponse{
		BookingID:     result.Booking.ID,
		BookingStatus: string(result.Booking.Status),
		NextAction:    string(result.NextAction),
		RedirectURL:   result.RedirectURL,
		IntentID:      result.IntentID,
		ClientKey:     result.ClientKey,
	}
	if result.Payment != nil {
		response.PaymentID = result.Payment.ID
		response.PaymentStatus = string(result.Payment.Status)
		response.Amount = result.Payment.Amount.StringFixed(2)
		response.ProcessingFee = result.Payment.ProcessingFee.StringFixed(2)
	}
	if !result.ExpiresAt.IsZero() {
		response.ExpiresAt = result.ExpiresAt.Format(time.RFC3339)
	}

	respondJSON(c, http.StatusOK, response)
}

// GetPaymentStatus handles GET /v1/bookings/:id/payment-status
func (h *PaymentHandler) GetPaymentStatus(c *gin.Context) {
	h.respondStatus(c, c.Param("id"))
}

// Return handles GET /v1/payments/return, the landing page after a redirect
// or 3-D Secure challenge. Query parameters only identify the booking; the
// outcome always comes from a fresh status check.
func (h *PaymentHandler) Return(c *gin.Context) {
	h.respondStatus(c, c.Query("booking_id"))
}

func (h *PaymentHandler) respondStatus(c *gin.Context, bookingID string) {
	view, err := h.paymentService.CheckPaymentStatus(c.Request.Context(), bookingID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, PaymentStatusResponse{
		BookingID:     view.BookingID,
		PaymentID:     view.PaymentID,
		Status:        string(view.Status),
		PaymentMethod: string(view.Method),
		Amount:        view.Amount.StringFixed(2),
		FailureReason: view.FailureReason,
		Retryable:     view.Retryable,
	})
}

package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"rental/internal/domain"
	"rental/internal/service"
)

const dateLayout = "2006-01-02"

// BookingHandler handles HTTP requests for bookings.
type BookingHandler struct {
	bookingService    *service.BookingService
	paymentService    *service.PaymentService
	commissionService *service.CommissionService
	receiptService    *service.ReceiptService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(
	bookingService *service.BookingService,
	paymentService *service.PaymentService,
	commissionService *service.CommissionService,
	receiptService *service.ReceiptService,
) *BookingHandler {
	return &BookingHandler{
		bookingService:    bookingService,
		paymentService:    paymentService,
		commissionService: commissionService,
		receiptService:    receiptService,
	}
}

// CreateBookingRequest is the HTTP request body for creating a booking.
type CreateBookingRequest struct {
	RenterID      string `json:"renter_id"`
	VehicleID     string `json:"vehicle_id"`
	StartDate     string `json:"start_date"` // YYYY-MM-DD or RFC 3339
	EndDate       string `json:"end_date"`
	PaymentMethod string `json:"payment_method"`
}

// OwnerActionRequest is the body of owner-driven booking transitions.
type OwnerActionRequest struct {
	OwnerID string `json:"owner_id"`
}

// AdminActionRequest is the body of administrative actions.
type AdminActionRequest struct {
	AdminID string `json:"admin_id"`
	Notes   string `json:"notes,omitempty"`
}

// BookingResponse is the HTTP response for booking data.
type BookingResponse struct {
	ID             string `json:"id"`
	RenterID       string `json:"renter_id"`
	VehicleID      string `json:"vehicle_id"`
	OwnerID        string `json:"owner_id"`
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date"`
	Days           int    `json:"days"`
	RentalSubtotal string `json:"rental_subtotal"`
	ServiceFee     string `json:"service_fee"`
	TotalPrice     string `json:"total_price"`
	PaymentMethod  string `json:"payment_method"`
	Status         string `json:"status"`
	CreatedAt      string `json:"created_at"`
}

// QuoteResponse is the HTTP response for a fee preview.
type QuoteResponse struct {
	PaymentMethod  string `json:"payment_method"`
	RentalSubtotal string `json:"rental_subtotal"`
	ServiceFee     string `json:"service_fee"`
	TotalPrice     string `json:"total_price"`
	ProcessingFee  string `json:"processing_fee"`
	AmountCharged  string `json:"amount_charged"`
}

// ReceiptResponse is the HTTP response for a booking receipt.
type ReceiptResponse struct {
	ID             string `json:"id"`
	BookingID      string `json:"booking_id"`
	PaymentID      string `json:"payment_id"`
	VehicleID      string `json:"vehicle_id"`
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date"`
	Days           int    `json:"days"`
	RentalSubtotal string `json:"rental_subtotal"`
	ServiceFee     string `json:"service_fee"`
	TotalPrice     string `json:"total_price"`
	ProcessingFee  string `json:"processing_fee"`
	AmountCharged  string `json:"amount_charged"`
	PaymentMethod  string `json:"payment_method"`
	PaymentStatus  string `json:"payment_status"`
}

// CreateBooking handles POST /v1/bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		respondError(c, err)
		return
	}
	end, err := parseDate("end_date", req.EndDate)
	if err != nil {
		respondError(c, err)
		return
	}

	booking, err := h.bookingService.Create(c.Request.Context(), service.CreateBookingRequest{
		RenterID:  req.RenterID,
		VehicleID: req.VehicleID,
		StartDate: start,
		EndDate:   end,
		Method:    req.PaymentMethod,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toBookingResponse(booking))
}

// GetBooking handles GET /v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	booking, err := h.bookingService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toBookingResponse(booking))
}

// Quote handles GET /v1/bookings/quote
func (h *BookingHandler) Quote(c *gin.Context) {
	start, err := parseDate("start_date", c.Query("start_date"))
	if err != nil {
		respondError(c, err)
		return
	}
	end, err := parseDate("end_date", c.Query("end_date"))
	if err != nil {
		respondError(c, err)
		return
	}

	quote, err := h.bookingService.Quote(c.Request.Context(), service.QuoteRequest{
		VehicleID: c.Query("vehicle_id"),
		StartDate: start,
		EndDate:   end,
		Method:    c.Query("method"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, QuoteResponse{
		PaymentMethod:  string(quote.Method),
		RentalSubtotal: quote.RentalSubtotal.StringFixed(2),
		ServiceFee:     quote.ServiceFee.StringFixed(2),
		TotalPrice:     quote.TotalPrice.StringFixed(2),
		ProcessingFee:  quote.ProcessingFee.StringFixed(2),
		AmountCharged:  quote.AmountCharged.StringFixed(2),
	})
}

// ConfirmBooking handles POST /v1/bookings/:id/confirm
func (h *BookingHandler) ConfirmBooking(c *gin.Context) {
	h.ownerAction(c, h.bookingService.Confirm)
}

// ActivateBooking handles POST /v1/bookings/:id/activate
func (h *BookingHandler) ActivateBooking(c *gin.Context) {
	h.ownerAction(c, h.bookingService.Activate)
}

// CompleteBooking handles POST /v1/bookings/:id/complete
func (h *BookingHandler) CompleteBooking(c *gin.Context) {
	h.ownerAction(c, h.bookingService.Complete)
}

// CashReceived handles POST /v1/bookings/:id/cash-received
func (h *BookingHandler) CashReceived(c *gin.Context) {
	h.ownerAction(c, h.paymentService.MarkCashReceived)
}

// CancelBooking handles POST /v1/bookings/:id/cancel
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	var req AdminActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	booking, err := h.bookingService.Cancel(c.Request.Context(), c.Param("id"), req.AdminID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toBookingResponse(booking))
}

// CreateCommission handles POST /v1/bookings/:id/commission. It backfills a
// commission that failed to write at confirmation and is a no-op when one
// already exists.
func (h *BookingHandler) CreateCommission(c *gin.Context) {
	var req AdminActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.AdminID == "" {
		respondError(c, service.ErrInvalidActorID)
		return
	}

	commission, err := h.commissionService.CreateForBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toCommissionResponse(commission))
}

// FinalizePaid handles POST /v1/bookings/:id/finalize. It settles a booking
// whose payment is already recorded as paid but whose status never moved.
func (h *BookingHandler) FinalizePaid(c *gin.Context) {
	var req AdminActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.AdminID == "" {
		respondError(c, service.ErrInvalidActorID)
		return
	}

	booking, err := h.paymentService.FinalizePaid(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toBookingResponse(booking))
}

// GetReceipt handles GET /v1/bookings/:id/receipt. ?format=text returns the
// printable form.
func (h *BookingHandler) GetReceipt(c *gin.Context) {
	receipt, err := h.receiptService.GenerateReceipt(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	if c.Query("format") == "text" {
		c.String(http.StatusOK, h.receiptService.FormatReceipt(receipt))
		return
	}

	respondJSON(c, http.StatusOK, ReceiptResponse{
		ID:             receipt.ID,
		BookingID:      receipt.BookingID,
		PaymentID:      receipt.PaymentID,
		VehicleID:      receipt.VehicleID,
		StartDate:      receipt.StartDate.Format(dateLayout),
		EndDate:        receipt.EndDate.Format(dateLayout),
		Days:           receipt.Days,
		RentalSubtotal: receipt.RentalSubtotal.StringFixed(2),
		ServiceFee:     receipt.ServiceFee.StringFixed(2),
		TotalPrice:     receipt.TotalPrice.StringFixed(2),
		ProcessingFee:  receipt.ProcessingFee.StringFixed(2),
		AmountCharged:  receipt.AmountCharged.StringFixed(2),
		PaymentMethod:  string(receipt.PaymentMethod),
		PaymentStatus:  string(receipt.PaymentStatus),
	})
}

type ownerTransition func(ctx context.Context, bookingID, ownerID string) (*domain.Booking, error)

func (h *BookingHandler) ownerAction(c *gin.Context, action ownerTransition) {
	var req OwnerActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	booking, err := action(c.Request.Context(), c.Param("id"), req.OwnerID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toBookingResponse(booking))
}

func toBookingResponse(b *domain.Booking) BookingResponse {
	return BookingResponse{
		ID:             b.ID,
		RenterID:       b.RenterID,
		VehicleID:      b.VehicleID,
		OwnerID:        b.OwnerID,
		StartDate:      b.StartDate.Format(dateLayout),
		EndDate:        b.EndDate.Format(dateLayout),
		Days:           b.Days(),
		RentalSubtotal: b.RentalSubtotal.StringFixed(2),
		ServiceFee:     b.ServiceFee.StringFixed(2),
		TotalPrice:     b.TotalPrice.StringFixed(2),
		PaymentMethod:  string(b.PaymentMethod),
		Status:         string(b.Status),
		CreatedAt:      b.CreatedAt.Format(time.RFC3339),
	}
}

// parseDate accepts a calendar date or a full RFC 3339 timestamp. An empty
// value yields the zero time so the service reports the missing field.
func parseDate(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(dateLayout, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Time{}, &service.ValidationError{Field: field, Reason: "must be a date (YYYY-MM-DD)"}
}

package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"rental/internal/domain"
	"rental/internal/service"
)

// CommissionHandler handles HTTP requests for commissions and owner standing.
type CommissionHandler struct {
	commissionService *service.CommissionService
	ownerService      *service.OwnerService
}

// NewCommissionHandler creates a new CommissionHandler.
func NewCommissionHandler(commissionService *service.CommissionService, ownerService *service.OwnerService) *CommissionHandler {
	return &CommissionHandler{
		commissionService: commissionService,
		ownerService:      ownerService,
	}
}

// SubmitCommissionRequest is the owner's proof of settlement.
type SubmitCommissionRequest struct {
	OwnerID   string `json:"owner_id"`
	Reference string `json:"reference"`
}

// SuspendOwnerRequest is the HTTP request body for owner suspension.
type SuspendOwnerRequest struct {
	AdminID string `json:"admin_id"`
	Reason  string `json:"reason"`
}

// CommissionResponse is the HTTP response for commission data.
type CommissionResponse struct {
	ID                   string `json:"id"`
	BookingID            string `json:"booking_id"`
	OwnerID              string `json:"owner_id"`
	RentalAmount         string `json:"rental_amount"`
	CommissionAmount     string `json:"commission_amount"`
	CommissionPercentage string `json:"commission_percentage"`
	PaymentCategory      string `json:"payment_category"`
	Status               string `json:"status"`
	PaymentReference     string `json:"payment_reference,omitempty"`
	VerifiedBy           string `json:"verified_by,omitempty"`
	VerifiedAt           string `json:"verified_at,omitempty"`
	Notes                string `json:"notes,omitempty"`
	CreatedAt            string `json:"created_at"`
}

// CommissionSummaryResponse is the HTTP response for an owner's balance.
type CommissionSummaryResponse struct {
	OwnerID           string `json:"owner_id"`
	TotalCommissions  int    `json:"total_commissions"`
	OutstandingCount  int    `json:"outstanding_count"`
	OutstandingAmount string `json:"outstanding_amount"`
	PaidAmount        string `json:"paid_amount"`
	HasOutstanding    bool   `json:"has_outstanding"`
}

// OwnerResponse is the HTTP response for an owner's standing.
type OwnerResponse struct {
	ID              string `json:"id"`
	IsSuspended     bool   `json:"is_suspended"`
	SuspendedReason string `json:"suspended_reason,omitempty"`
	SuspendedAt     string `json:"suspended_at,omitempty"`
	SuspendedBy     string `json:"suspended_by,omitempty"`
}

// ListByOwner handles GET /v1/owners/:id/commissions
func (h *CommissionHandler) ListByOwner(c *gin.Context) {
	commissions, err := h.commissionService.ListByOwner(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]CommissionResponse, 0, len(commissions))
	for _, commission := range commissions {
		response = append(response, toCommissionResponse(commission))
	}
	c.JSON(http.StatusOK, response)
}

// Summary handles GET /v1/owners/:id/commission-summary
func (h *CommissionHandler) Summary(c *gin.Context) {
	summary, err := h.commissionService.OwnerSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, CommissionSummaryResponse{
		OwnerID:           summary.OwnerID,
		TotalCommissions:  summary.TotalCommissions,
		OutstandingCount:  summary.OutstandingCount,
		OutstandingAmount: summary.OutstandingAmount.StringFixed(2),
		PaidAmount:        summary.PaidAmount.StringFixed(2),
		HasOutstanding:    summary.HasOutstanding,
	})
}

// Submit handles POST /v1/commissions/:id/submit
func (h *CommissionHandler) Submit(c *gin.Context) {
	var req SubmitCommissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	commission, err := h.commissionService.Submit(c.Request.Context(), service.SubmitRequest{
		CommissionID: c.Param("id"),
		OwnerID:      req.OwnerID,
		Reference:    req.Reference,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toCommissionResponse(commission))
}

// MarkPaid handles POST /v1/commissions/:id/mark-paid
func (h *CommissionHandler) MarkPaid(c *gin.Context) {
	h.review(c, h.commissionService.MarkPaid)
}

// Suspend handles POST /v1/commissions/:id/suspend
func (h *CommissionHandler) Suspend(c *gin.Context) {
	h.review(c, h.commissionService.Suspend)
}

// Reset handles POST /v1/commissions/:id/reset
func (h *CommissionHandler) Reset(c *gin.Context) {
	h.review(c, h.commissionService.Reset)
}

// SuspendOwner handles POST /v1/owners/:id/suspend
func (h *CommissionHandler) SuspendOwner(c *gin.Context) {
	var req SuspendOwnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	owner, err := h.ownerService.Suspend(c.Request.Context(), c.Param("id"), req.AdminID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toOwnerResponse(owner))
}

// UnsuspendOwner handles POST /v1/owners/:id/unsuspend
func (h *CommissionHandler) UnsuspendOwner(c *gin.Context) {
	var req AdminActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	owner, err := h.ownerService.Unsuspend(c.Request.Context(), c.Param("id"), req.AdminID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toOwnerResponse(owner))
}

type reviewAction func(ctx context.Context, req service.ReviewRequest) (*domain.Commission, error)

func (h *CommissionHandler) review(c *gin.Context, action reviewAction) {
	var req AdminActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	commission, err := action(c.Request.Context(), service.ReviewRequest{
		CommissionID: c.Param("id"),
		AdminID:      req.AdminID,
		Notes:        req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toCommissionResponse(commission))
}

func toCommissionResponse(cm *domain.Commission) CommissionResponse {
	response := CommissionResponse{
		ID:                   cm.ID,
		BookingID:            cm.BookingID,
		OwnerID:              cm.OwnerID,
		RentalAmount:         cm.RentalAmount.StringFixed(2),
		CommissionAmount:     cm.CommissionAmount.StringFixed(2),
		CommissionPercentage: cm.CommissionPercentage.StringFixed(2),
		PaymentCategory:      string(cm.Category),
		Status:               string(cm.Status),
		PaymentReference:     cm.PaymentReference,
		VerifiedBy:           cm.VerifiedBy,
		Notes:                cm.Notes,
		CreatedAt:            cm.CreatedAt.Format(time.RFC3339),
	}
	if !cm.VerifiedAt.IsZero() {
		response.VerifiedAt = cm.VerifiedAt.Format(time.RFC3339)
	}
	return response
}

func toOwnerResponse(o *domain.Owner) OwnerResponse {
	response := OwnerResponse{
		ID:              o.ID,
		IsSuspended:     o.IsSuspended,
		SuspendedReason: o.SuspendedReason,
		SuspendedBy:     o.SuspendedBy,
	}
	if !o.SuspendedAt.IsZero() {
		response.SuspendedAt = o.SuspendedAt.Format(time.RFC3339)
	}
	return response
}

package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"rental/internal/gateway"
	"rental/internal/repository"
	"rental/internal/service"
)

const (
	msgPaymentFailed = "payment failed, please try again"
	msgInternal      = "internal server error"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// respondError sends an error response with the appropriate HTTP status code.
// Only validation failures and known sentinels reach the caller verbatim;
// gateway and storage details are logged and replaced with a generic message.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)

	var verr *service.ValidationError
	if errors.As(err, &verr) {
		c.JSON(code, ErrorResponse{Error: verr.Error(), Field: verr.Field})
		return
	}

	_ = c.Error(err)
	c.JSON(code, ErrorResponse{Error: publicMessage(err, code)})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, service.ErrNoPayment):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrInvalidBookingID),
		errors.Is(err, service.ErrInvalidCommissionID),
		errors.Is(err, service.ErrInvalidOwnerID),
		errors.Is(err, service.ErrInvalidActorID),
		errors.Is(err, service.ErrMalformedWebhook):
		return http.StatusBadRequest

	case errors.Is(err, service.ErrInvalidSignature):
		return http.StatusUnauthorized

	// The renter may start a new checkout.
	case errors.Is(err, service.ErrAuthenticationRequired),
		errors.Is(err, service.ErrPaymentRetryable):
		return http.StatusPaymentRequired

	// Forbidden/Business rule errors
	case errors.Is(err, service.ErrNotBookingOwner),
		errors.Is(err, service.ErrNotBookingRenter),
		errors.Is(err, service.ErrNotCommissionOwner),
		errors.Is(err, service.ErrOwnerSuspended):
		return http.StatusForbidden

	// Conflict errors
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrConcurrentUpdate),
		errors.Is(err, service.ErrBookingNotPayable),
		errors.Is(err, service.ErrPaymentNotSettled),
		errors.Is(err, service.ErrCommissionBeforeConfirm),
		errors.Is(err, service.ErrOwnerNotSuspended),
		errors.Is(err, repository.ErrDuplicate):
		return http.StatusConflict

	// Outcome not known yet; the caller polls payment-status.
	case errors.Is(err, service.ErrPaymentPending):
		return http.StatusAccepted

	case isGatewayError(err):
		return http.StatusBadGateway

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}

func publicMessage(err error, code int) string {
	switch code {
	case http.StatusBadGateway:
		log.Printf("[PAYMENT] gateway failure surfaced to caller: %v", err)
		return msgPaymentFailed
	case http.StatusInternalServerError:
		log.Printf("[HTTP] internal error: %v", err)
		return msgInternal
	case http.StatusUnauthorized:
		return http.StatusText(code)
	}
	return err.Error()
}

func isGatewayError(err error) bool {
	var gerr *gateway.GatewayError
	return errors.As(err, &gerr)
}

package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"rental/internal/gateway"
	"rental/internal/service"
)

const maxWebhookBytes = 1 << 20

// WebhookProcessor applies a verified gateway event.
type WebhookProcessor interface {
	HandleWebhook(ctx context.Context, rawBody []byte, signatureHeader string) error
}

// WebhookHandler receives gateway notifications.
type WebhookHandler struct {
	processor WebhookProcessor
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(processor WebhookProcessor) *WebhookHandler {
	return &WebhookHandler{processor: processor}
}

// Receive handles POST /v1/webhooks/gateway. The body is read raw because
// the signature covers the exact bytes sent.
func (h *WebhookHandler) Receive(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	err = h.processor.HandleWebhook(c.Request.Context(), raw, c.GetHeader(gateway.SignatureHeader))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"received": true})
	case errors.Is(err, service.ErrInvalidSignature):
		c.AbortWithStatus(http.StatusUnauthorized)
	default:
		// Non-2xx makes the gateway redeliver.
		respondError(c, err)
	}
}

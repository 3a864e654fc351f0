package handler

import (
	"io"
	"net/http"

	appbilling "github.com/finbooks/backend/internal/application/billing"
	"github.com/finbooks/backend/internal/domain/billing"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxWebhookBodySize bounds processor webhook payloads
const maxWebhookBodySize = 64 * 1024

// WebhookVerifier checks a processor signature and normalizes the event
type WebhookVerifier interface {
	VerifyWebhook(payload []byte, signatureHeader string) (*billing.WebhookEvent, error)
}

// WebhookHandler receives payment processor notifications. It is mounted
// outside JWT auth; authenticity comes from the signature check.
type WebhookHandler struct {
	BaseHandler
	verifier       WebhookVerifier
	paymentService *appbilling.PaymentService
	logger         *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(verifier WebhookVerifier, paymentService *appbilling.PaymentService, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{
		verifier:       verifier,
		paymentService: paymentService,
		logger:         logger,
	}
}

// HandleStripe handles POST /webhooks/stripe. A 2xx acknowledges the event;
// anything else makes the processor retry, so only transient failures return
// a non-2xx status.
func (h *WebhookHandler) HandleStripe(c *gin.Context) {
	if h.verifier == nil {
		h.logger.Warn("Webhook received but no gateway configured")
		c.Status(http.StatusServiceUnavailable)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodySize))
	if err != nil {
		h.BadRequest(c, "Failed to read request body")
		return
	}

	event, err := h.verifier.VerifyWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("Webhook signature verification failed", zap.Error(err))
		h.BadRequest(c, "Invalid signature")
		return
	}

	if err := h.paymentService.HandleWebhook(c.Request.Context(), *event); err != nil {
		h.logger.Error("Webhook processing failed",
			zap.String("event_id", event.EventID),
			zap.String("type", event.Type),
			zap.Error(err))
		h.InternalError(c, "Webhook processing failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

package handler

import (
	appbilling "github.com/finbooks/backend/internal/application/billing"
	"github.com/gin-gonic/gin"
)

// PaymentHandler handles payment HTTP requests
type PaymentHandler struct {
	BaseHandler
	paymentService *appbilling.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(paymentService *appbilling.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// RecordManual handles POST /payments
func (h *PaymentHandler) RecordManual(c *gin.Context) {
	tenantID, err := h.getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req appbilling.RecordManualPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	payment, err := h.paymentService.RecordManualPayment(h.requestContext(c), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, payment)
}

// InitiateGateway handles POST /payments/gateway
func (h *PaymentHandler) InitiateGateway(c *gin.Context) {
	tenantID, err := h.getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req appbilling.InitiateGatewayPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.paymentService.InitiateGatewayPayment(h.requestContext(c), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// Get handles GET /payments/:id
func (h *PaymentHandler) Get(c *gin.Context) {
	tenantID, err := h.getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}
	paymentID, err := parseUUIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid payment ID")
		return
	}

	payment, err := h.paymentService.GetByID(h.requestContext(c), tenantID, paymentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, payment)
}

// ListByInvoice handles GET /invoices/:id/payments
func (h *PaymentHandler) ListByInvoice(c *gin.Context) {
	tenantID, err := h.getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}
	invoiceID, err := parseUUIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID")
		return
	}

	payments, err := h.paymentService.ListByInvoice(h.requestContext(c), tenantID, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, payments)
}

// Refund handles POST /payments/:id/refund
func (h *PaymentHandler) Refund(c *gin.Context) {
	tenantID, err := h.getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}
	paymentID, err := parseUUIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid payment ID")
		return
	}

	var req appbilling.RefundPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	refund, err := h.paymentService.Refund(h.requestContext(c), tenantID, paymentID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, refund)
}

// ListRefunds handles GET /payments/:id/refunds
func (h *PaymentHandler) ListRefunds(c *gin.Context) {
	tenantID, err := h.getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}
	paymentID, err := parseUUIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid payment ID")
		return
	}

	refunds, err := h.paymentService.ListRefunds(h.requestContext(c), tenantID, paymentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, refunds)
}

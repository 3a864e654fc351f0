package handler

import (
	"context"
	"time"

	appbilling "github.com/finbooks/backend/internal/application/billing"
	"github.com/finbooks/backend/internal/domain/shared"
	"github.com/finbooks/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// QuoteHandler handles quote HTTP requests
type QuoteHandler struct {
	BaseHandler
	quoteService   *appbilling.QuoteService
	invoiceService *appbilling.InvoiceService
}

// NewQuoteHandler creates a new QuoteHandler
func NewQuoteHandler(quoteService *appbilling.QuoteService, invoiceService *appbilling.InvoiceService) *QuoteHandler {
	return &QuoteHandler{
		quoteService:   quoteService,
		invoiceService: invoiceService,
	}
}

// Create handles POST /quotes
func (h *QuoteHandler) Create(c *gin.Context) {
	tenantID, err := h.getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req appbilling.CreateQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	quote, err := h.quoteService.Create(h.requestContext(c), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, quote)
}

// Get handles GET /quotes/:id
func (h *QuoteHandler) Get(c *gin.Context) {
	tenantID, err := h.getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}
	quoteID, err := parseUUIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid quote ID")
		return
	}

	quote, err := h.quoteService.GetByID(h.requestContext(c), tenantID, quoteID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, quote)
}

// List handles GET /quotes
func (h *QuoteHandler) List(c *gin.Context) {
	tenantID, err := h.getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter := shared.DefaultFilter()
	if req.Page > 0 {
		filter.Page = req.Page
	}
	if req.PageSize > 0 {
		filter.PageSize = req.PageSize
	}
	if req.OrderBy != "" {
		filter.OrderBy = req.OrderBy
	}
	if req.OrderDir != "" {
		filter.OrderDir = req.OrderDir
	}
	filter.Search = req.Search

	page, err := h.quoteService.List(h.requestContext(c), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Send handles POST /quotes/:id/send
func (h *QuoteHandler) Send(c *gin.Context) {
	h.transition(c, h.quoteService.Send)
}

// Accept handles POST /quotes/:id/accept
func (h *QuoteHandler) Accept(c *gin.Context) {
	h.transition(c, h.quoteService.Accept)
}

// Reject handles POST /quotes/:id/reject
func (h *QuoteHandler) Reject(c *gin.Context) {
	h.transition(c, h.quoteService.Reject)
}

// ConvertRequest carries optional terms for quote conversion
type ConvertRequest struct {
	DueDate *time.Time `json:"due_date"`
}

// Convert handles POST /quotes/:id/convert, producing an invoice from an
// accepted quote
func (h *QuoteHandler) Convert(c *gin.Context) {
	tenantID, err := h.getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}
	quoteID, err := parseUUIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid quote ID")
		return
	}

	var req ConvertRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		h.BadRequest(c, err.Error())
		return
	}

	invoice, err := h.invoiceService.ConvertQuote(h.requestContext(c), tenantID, quoteID, req.DueDate)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, invoice)
}

func (h *QuoteHandler) transition(c *gin.Context, fn func(ctx context.Context, tenantID, quoteID uuid.UUID) (*appbilling.QuoteResponse, error)) {
	tenantID, err := h.getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}
	quoteID, err := parseUUIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid quote ID")
		return
	}

	quote, err := fn(h.requestContext(c), tenantID, quoteID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, quote)
}

package billing

import (
	"time"

	"github.com/finbooks/backend/internal/domain/billing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineItemRequest represents one line item in a create/update request
type LineItemRequest struct {
	Description     string          `json:"description" binding:"required"`
	Quantity        decimal.Decimal `json:"quantity" binding:"required"`
	UnitPrice       decimal.Decimal `json:"unit_price" binding:"required"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	TaxRate         decimal.Decimal `json:"tax_rate"`
}

func toLineItemInputs(items []LineItemRequest) []billing.LineItemInput {
	inputs := make([]billing.LineItemInput, 0, len(items))
	for _, item := range items {
		inputs = append(inputs, billing.LineItemInput{
			Description:     item.Description,
			Quantity:        item.Quantity,
			UnitPrice:       item.UnitPrice,
			DiscountPercent: item.DiscountPercent,
			TaxRate:         item.TaxRate,
		})
	}
	return inputs
}

// CreateInvoiceRequest represents a request to create an invoice
type CreateInvoiceRequest struct {
	CustomerID      uuid.UUID         `json:"customer_id" binding:"required"`
	Currency        string            `json:"currency" binding:"omitempty,currency"`
	IssueDate       *time.Time        `json:"issue_date"`
	DueDate         *time.Time        `json:"due_date"`
	DepositRequired decimal.Decimal   `json:"deposit_required"`
	Items           []LineItemRequest `json:"items" binding:"required,min=1,dive"`
	Notes           string            `json:"notes"`
}

// UpdateInvoiceRequest represents a request to update a draft invoice
type UpdateInvoiceRequest struct {
	Items           []LineItemRequest `json:"items"`
	DueDate         *time.Time        `json:"due_date"`
	DepositRequired *decimal.Decimal  `json:"deposit_required"`
	Notes           *string           `json:"notes"`
}

// CancelInvoiceRequest represents a request to cancel an invoice
type CancelInvoiceRequest struct {
	Reason string `json:"reason"`
}

// InvoiceListFilter represents filtering options for invoice listing
type InvoiceListFilter struct {
	Page       int                    `form:"page"`
	PageSize   int                    `form:"page_size"`
	OrderBy    string                 `form:"order_by"`
	OrderDir   string                 `form:"order_dir"`
	Search     string                 `form:"search"`
	CustomerID *uuid.UUID             `form:"customer_id"`
	Status     *billing.InvoiceStatus `form:"status"`
}

// LineItemResponse represents one line-item version in API responses
type LineItemResponse struct {
	ID              uuid.UUID       `json:"id"`
	Description     string          `json:"description"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	TaxRate         decimal.Decimal `json:"tax_rate"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	Total           decimal.Decimal `json:"total"`
	Version         int             `json:"version"`
	IsLatestVersion bool            `json:"is_latest_version"`
	SupersededAt    *time.Time      `json:"superseded_at,omitempty"`
	ReplacedByID    *uuid.UUID      `json:"replaced_by_id,omitempty"`
}

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	ID              uuid.UUID             `json:"id"`
	InvoiceNumber   string                `json:"invoice_number"`
	CustomerID      uuid.UUID             `json:"customer_id"`
	QuoteID         *uuid.UUID            `json:"quote_id,omitempty"`
	Status          billing.InvoiceStatus `json:"status"`
	Currency        string                `json:"currency"`
	IssueDate       time.Time             `json:"issue_date"`
	DueDate         *time.Time            `json:"due_date,omitempty"`
	LineItems       []LineItemResponse    `json:"line_items"`
	Subtotal        decimal.Decimal       `json:"subtotal"`
	TaxTotal        decimal.Decimal       `json:"tax_total"`
	Total           decimal.Decimal       `json:"total"`
	DepositRequired decimal.Decimal       `json:"deposit_required"`
	AmountPaid      decimal.Decimal       `json:"amount_paid"`
	Balance         decimal.Decimal       `json:"balance"`
	Notes           string                `json:"notes,omitempty"`
	SentAt          *time.Time            `json:"sent_at,omitempty"`
	ViewedAt        *time.Time            `json:"viewed_at,omitempty"`
	PaidAt          *time.Time            `json:"paid_at,omitempty"`
	CancelledAt     *time.Time            `json:"cancelled_at,omitempty"`
	Version         int                   `json:"version"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// ToInvoiceResponse converts an invoice aggregate to its API representation.
// Only the latest line-item versions are returned; history is available
// through the dedicated history endpoint.
func ToInvoiceResponse(inv *billing.Invoice) InvoiceResponse {
	return toInvoiceResponse(inv, inv.ActiveLineItems())
}

// ToInvoiceHistoryResponse converts an invoice including every line-item
// version ever recorded
func ToInvoiceHistoryResponse(inv *billing.Invoice) InvoiceResponse {
	return toInvoiceResponse(inv, inv.LineItems)
}

func toInvoiceResponse(inv *billing.Invoice, items []billing.InvoiceLineItem) InvoiceResponse {
	lineItems := make([]LineItemResponse, 0, len(items))
	for _, item := range items {
		lineItems = append(lineItems, LineItemResponse{
			ID:              item.ID,
			Description:     item.Description,
			Quantity:        item.Quantity,
			UnitPrice:       item.UnitPrice,
			DiscountPercent: item.DiscountPercent,
			TaxRate:         item.TaxRate,
			Subtotal:        item.Subtotal,
			DiscountAmount:  item.DiscountAmount,
			TaxAmount:       item.TaxAmount,
			Total:           item.Total,
			Version:         item.Version,
			IsLatestVersion: item.IsLatestVersion,
			SupersededAt:    item.SupersededAt,
			ReplacedByID:    item.ReplacedByID,
		})
	}

	return InvoiceResponse{
		ID:              inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		CustomerID:      inv.CustomerID,
		QuoteID:         inv.QuoteID,
		Status:          inv.Status,
		Currency:        string(inv.Currency),
		IssueDate:       inv.IssueDate,
		DueDate:         inv.DueDate,
		LineItems:       lineItems,
		Subtotal:        inv.Subtotal,
		TaxTotal:        inv.TaxTotal,
		Total:           inv.Total,
		DepositRequired: inv.DepositRequired,
		AmountPaid:      inv.AmountPaid,
		Balance:         inv.Balance,
		Notes:           inv.Notes,
		SentAt:          inv.SentAt,
		ViewedAt:        inv.ViewedAt,
		PaidAt:          inv.PaidAt,
		CancelledAt:     inv.CancelledAt,
		Version:         inv.Version,
		CreatedAt:       inv.CreatedAt,
		UpdatedAt:       inv.UpdatedAt,
	}
}

// RecordManualPaymentRequest represents an operator-recorded payment. The
// invoice is optional: without one the payment is an on-account credit for
// the customer.
type RecordManualPaymentRequest struct {
	CustomerID uuid.UUID             `json:"customer_id" binding:"required"`
	InvoiceID  *uuid.UUID            `json:"invoice_id"`
	Method     billing.PaymentMethod `json:"method" binding:"required"`
	Amount     decimal.Decimal       `json:"amount" binding:"required"`
	Reference  string                `json:"reference"`
}

// InitiateGatewayPaymentRequest starts a processor-mediated payment
type InitiateGatewayPaymentRequest struct {
	InvoiceID uuid.UUID       `json:"invoice_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount" binding:"required"`
}

// RefundPaymentRequest represents a refund against a completed payment
type RefundPaymentRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
	Reason string          `json:"reason"`
}

// PaymentResponse represents a payment in API responses
type PaymentResponse struct {
	ID               uuid.UUID             `json:"id"`
	PaymentNumber    string                `json:"payment_number"`
	InvoiceID        *uuid.UUID            `json:"invoice_id,omitempty"`
	CustomerID       uuid.UUID             `json:"customer_id"`
	Status           billing.PaymentStatus `json:"status"`
	Method           billing.PaymentMethod `json:"method"`
	Amount           decimal.Decimal       `json:"amount"`
	ProcessorFee     decimal.Decimal       `json:"processor_fee"`
	NetAmount        decimal.Decimal       `json:"net_amount"`
	RefundedAmount   decimal.Decimal       `json:"refunded_amount"`
	Currency         string                `json:"currency"`
	Reference        string                `json:"reference,omitempty"`
	GatewayRequestID string                `json:"gateway_request_id,omitempty"`
	FailureReason    string                `json:"failure_reason,omitempty"`
	PaidAt           *time.Time            `json:"paid_at,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
}

// ToPaymentResponse converts a payment aggregate to its API representation
func ToPaymentResponse(p *billing.Payment) PaymentResponse {
	return PaymentResponse{
		ID:               p.ID,
		PaymentNumber:    p.PaymentNumber,
		InvoiceID:        p.InvoiceID,
		CustomerID:       p.CustomerID,
		Status:           p.Status,
		Method:           p.Method,
		Amount:           p.Amount,
		ProcessorFee:     p.ProcessorFee,
		NetAmount:        p.NetAmount,
		RefundedAmount:   p.RefundedAmount,
		Currency:         p.Currency,
		Reference:        p.Reference,
		GatewayRequestID: p.GatewayRequestID,
		FailureReason:    p.FailureReason,
		PaidAt:           p.PaidAt,
		CreatedAt:        p.CreatedAt,
	}
}

// GatewayPaymentResponse carries the client-side handle for completing a
// gateway payment
type GatewayPaymentResponse struct {
	Payment      PaymentResponse `json:"payment"`
	ClientSecret string          `json:"client_secret"`
}

// RefundResponse represents a refund in API responses
type RefundResponse struct {
	ID              uuid.UUID            `json:"id"`
	PaymentID       uuid.UUID            `json:"payment_id"`
	InvoiceID       *uuid.UUID           `json:"invoice_id,omitempty"`
	Status          billing.RefundStatus `json:"status"`
	Amount          decimal.Decimal      `json:"amount"`
	Reason          string               `json:"reason,omitempty"`
	GatewayRefundID string               `json:"gateway_refund_id,omitempty"`
	RefundedAt      time.Time            `json:"refunded_at"`
}

// ToRefundResponse converts a refund to its API representation
func ToRefundResponse(r *billing.Refund) RefundResponse {
	return RefundResponse{
		ID:              r.ID,
		PaymentID:       r.PaymentID,
		InvoiceID:       r.InvoiceID,
		Status:          r.Status,
		Amount:          r.Amount,
		Reason:          r.Reason,
		GatewayRefundID: r.GatewayRefundID,
		RefundedAt:      r.RefundedAt,
	}
}

// CreateQuoteRequest represents a request to create a quote
type CreateQuoteRequest struct {
	CustomerID uuid.UUID         `json:"customer_id" binding:"required"`
	Items      []LineItemRequest `json:"items" binding:"required,min=1,dive"`
	ValidUntil *time.Time        `json:"valid_until"`
}

// QuoteResponse represents a quote in API responses
type QuoteResponse struct {
	ID          uuid.UUID           `json:"id"`
	QuoteNumber string              `json:"quote_number"`
	CustomerID  uuid.UUID           `json:"customer_id"`
	Status      billing.QuoteStatus `json:"status"`
	Total       decimal.Decimal     `json:"total"`
	ValidUntil  *time.Time          `json:"valid_until,omitempty"`
	AcceptedAt  *time.Time          `json:"accepted_at,omitempty"`
	InvoiceID   *uuid.UUID          `json:"invoice_id,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

// ToQuoteResponse converts a quote to its API representation
func ToQuoteResponse(q *billing.Quote) QuoteResponse {
	return QuoteResponse{
		ID:          q.ID,
		QuoteNumber: q.QuoteNumber,
		CustomerID:  q.CustomerID,
		Status:      q.Status,
		Total:       q.Total,
		ValidUntil:  q.ValidUntil,
		AcceptedAt:  q.AcceptedAt,
		InvoiceID:   q.InvoiceID,
		CreatedAt:   q.CreatedAt,
	}
}

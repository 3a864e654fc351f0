package billing

import (
	"github.com/finbooks/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Event types emitted by the billing aggregates
const (
	EventInvoiceCreated        = "invoice.created"
	EventInvoiceUpdated        = "invoice.updated"
	EventInvoiceSent           = "invoice.sent"
	EventInvoiceViewed         = "invoice.viewed"
	EventInvoicePaymentApplied = "invoice.payment_applied"
	EventInvoicePaid           = "invoice.paid"
	EventInvoiceRefundApplied  = "invoice.refund_applied"
	EventInvoiceCancelled      = "invoice.cancelled"
	EventQuoteAccepted         = "quote.accepted"
	EventQuoteConverted        = "quote.converted"
	EventPaymentRecorded       = "payment.recorded"
	EventPaymentConfirmed      = "payment.confirmed"
	EventPaymentFailed         = "payment.failed"
	EventPaymentRefunded       = "payment.refunded"
)

// InvoiceEvent carries the invoice snapshot fields consumers care about
type InvoiceEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string          `json:"invoice_number"`
	Status        InvoiceStatus   `json:"status"`
	Total         decimal.Decimal `json:"total"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	Balance       decimal.Decimal `json:"balance"`
	Amount        decimal.Decimal `json:"amount,omitempty"`
}

func newInvoiceEvent(eventType string, inv *Invoice, amount decimal.Decimal) *InvoiceEvent {
	return &InvoiceEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "Invoice", inv.ID, inv.TenantID),
		InvoiceNumber:   inv.InvoiceNumber,
		Status:          inv.Status,
		Total:           inv.Total,
		AmountPaid:      inv.AmountPaid,
		Balance:         inv.Balance,
		Amount:          amount,
	}
}

// NewInvoiceCreatedEvent creates an invoice created event
func NewInvoiceCreatedEvent(inv *Invoice) *InvoiceEvent {
	return newInvoiceEvent(EventInvoiceCreated, inv, decimal.Zero)
}

// NewInvoiceUpdatedEvent creates an invoice updated event
func NewInvoiceUpdatedEvent(inv *Invoice) *InvoiceEvent {
	return newInvoiceEvent(EventInvoiceUpdated, inv, decimal.Zero)
}

// NewInvoiceSentEvent creates an invoice sent event
func NewInvoiceSentEvent(inv *Invoice) *InvoiceEvent {
	return newInvoiceEvent(EventInvoiceSent, inv, decimal.Zero)
}

// NewInvoiceViewedEvent creates an invoice viewed event
func NewInvoiceViewedEvent(inv *Invoice) *InvoiceEvent {
	return newInvoiceEvent(EventInvoiceViewed, inv, decimal.Zero)
}

// NewInvoicePaymentAppliedEvent creates a payment applied event
func NewInvoicePaymentAppliedEvent(inv *Invoice, amount decimal.Decimal) *InvoiceEvent {
	return newInvoiceEvent(EventInvoicePaymentApplied, inv, amount)
}

// NewInvoicePaidEvent creates an invoice fully paid event
func NewInvoicePaidEvent(inv *Invoice) *InvoiceEvent {
	return newInvoiceEvent(EventInvoicePaid, inv, decimal.Zero)
}

// NewInvoiceRefundAppliedEvent creates a refund applied event
func NewInvoiceRefundAppliedEvent(inv *Invoice, amount decimal.Decimal) *InvoiceEvent {
	return newInvoiceEvent(EventInvoiceRefundApplied, inv, amount)
}

// NewInvoiceCancelledEvent creates an invoice cancelled event
func NewInvoiceCancelledEvent(inv *Invoice) *InvoiceEvent {
	return newInvoiceEvent(EventInvoiceCancelled, inv, decimal.Zero)
}

// QuoteEvent carries the quote snapshot fields consumers care about
type QuoteEvent struct {
	shared.BaseDomainEvent
	QuoteNumber string      `json:"quote_number"`
	Status      QuoteStatus `json:"status"`
}

// NewQuoteAcceptedEvent creates a quote accepted event
func NewQuoteAcceptedEvent(q *Quote) *QuoteEvent {
	return &QuoteEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventQuoteAccepted, "Quote", q.ID, q.TenantID),
		QuoteNumber:     q.QuoteNumber,
		Status:          q.Status,
	}
}

// NewQuoteConvertedEvent creates a quote converted event
func NewQuoteConvertedEvent(q *Quote) *QuoteEvent {
	return &QuoteEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventQuoteConverted, "Quote", q.ID, q.TenantID),
		QuoteNumber:     q.QuoteNumber,
		Status:          q.Status,
	}
}

// PaymentEvent carries the payment snapshot fields consumers care about
type PaymentEvent struct {
	shared.BaseDomainEvent
	PaymentNumber string          `json:"payment_number"`
	Status        PaymentStatus   `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	NetAmount     decimal.Decimal `json:"net_amount"`
	FailureReason string          `json:"failure_reason,omitempty"`
}

func newPaymentEvent(eventType string, p *Payment) *PaymentEvent {
	return &PaymentEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "Payment", p.ID, p.TenantID),
		PaymentNumber:   p.PaymentNumber,
		Status:          p.Status,
		Amount:          p.Amount,
		NetAmount:       p.NetAmount,
		FailureReason:   p.FailureReason,
	}
}

// NewPaymentRecordedEvent creates a payment recorded event
func NewPaymentRecordedEvent(p *Payment) *PaymentEvent {
	return newPaymentEvent(EventPaymentRecorded, p)
}

// NewPaymentConfirmedEvent creates a payment confirmed event
func NewPaymentConfirmedEvent(p *Payment) *PaymentEvent {
	return newPaymentEvent(EventPaymentConfirmed, p)
}

// NewPaymentFailedEvent creates a payment failed event
func NewPaymentFailedEvent(p *Payment) *PaymentEvent {
	return newPaymentEvent(EventPaymentFailed, p)
}

// NewPaymentRefundedEvent creates a payment refunded event
func NewPaymentRefundedEvent(p *Payment) *PaymentEvent {
	return newPaymentEvent(EventPaymentRefunded, p)
}

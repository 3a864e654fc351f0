package billing

import (
	"fmt"
	"time"

	"github.com/finbooks/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// QuoteStatus represents the status of a quote
type QuoteStatus string

const (
	QuoteStatusDraft     QuoteStatus = "DRAFT"
	QuoteStatusSent      QuoteStatus = "SENT"
	QuoteStatusAccepted  QuoteStatus = "ACCEPTED"
	QuoteStatusRejected  QuoteStatus = "REJECTED"
	QuoteStatusConverted QuoteStatus = "CONVERTED"
)

// String returns the string representation of QuoteStatus
func (s QuoteStatus) String() string {
	return string(s)
}

// QuoteLineItem is one proposed line on a quote. Quotes are not versioned;
// history begins when the quote becomes an invoice.
type QuoteLineItem struct {
	ID              uuid.UUID
	QuoteID         uuid.UUID
	Description     string
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
	DiscountPercent decimal.Decimal
	TaxRate         decimal.Decimal
	Total           decimal.Decimal
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName returns the table name for GORM
func (QuoteLineItem) TableName() string {
	return "quote_line_items"
}

// Quote is a proposal that can be converted into exactly one invoice once
// the customer accepts it.
type Quote struct {
	shared.TenantAggregateRoot
	QuoteNumber string
	CustomerID  uuid.UUID
	Status      QuoteStatus
	LineItems   []QuoteLineItem
	Total       decimal.Decimal
	ValidUntil  *time.Time
	AcceptedAt  *time.Time
	// InvoiceID is set when the quote converts; a non-nil value blocks a
	// second conversion.
	InvoiceID *uuid.UUID
	Notes     string
}

// TableName returns the table name for GORM
func (Quote) TableName() string {
	return "quotes"
}

// NewQuote creates a new draft quote
func NewQuote(tenantID uuid.UUID, quoteNumber string, customerID uuid.UUID, items []LineItemInput, validUntil *time.Time) (*Quote, error) {
	if quoteNumber == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Quote number cannot be empty")
	}
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Customer ID cannot be empty")
	}
	if len(items) == 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Quote requires at least one line item")
	}

	q := &Quote{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		QuoteNumber:         quoteNumber,
		CustomerID:          customerID,
		Status:              QuoteStatusDraft,
		LineItems:           make([]QuoteLineItem, 0, len(items)),
		ValidUntil:          validUntil,
	}

	total := decimal.Zero
	now := time.Now()
	for _, input := range items {
		amounts, err := CalculateLine(input.Quantity, input.UnitPrice, input.DiscountPercent, input.TaxRate)
		if err != nil {
			return nil, err
		}
		q.LineItems = append(q.LineItems, QuoteLineItem{
			ID:              uuid.New(),
			QuoteID:         q.ID,
			Description:     input.Description,
			Quantity:        input.Quantity,
			UnitPrice:       input.UnitPrice,
			DiscountPercent: input.DiscountPercent,
			TaxRate:         input.TaxRate,
			Total:           amounts.Total,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
		total = total.Add(amounts.Total)
	}
	q.Total = total

	return q, nil
}

// Send issues the quote to the customer
func (q *Quote) Send() error {
	if q.Status != QuoteStatusDraft {
		return shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("Cannot send quote in %s status", q.Status))
	}
	q.Status = QuoteStatusSent
	q.Touch()
	return nil
}

// Accept records customer acceptance
func (q *Quote) Accept() error {
	if q.Status != QuoteStatusSent {
		return shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("Cannot accept quote in %s status", q.Status))
	}
	if q.ValidUntil != nil && time.Now().After(*q.ValidUntil) {
		return shared.NewDomainError(shared.CodeInvalidState, "Quote has expired")
	}

	now := time.Now()
	q.Status = QuoteStatusAccepted
	q.AcceptedAt = &now
	q.UpdatedAt = now

	q.AddDomainEvent(NewQuoteAcceptedEvent(q))

	return nil
}

// Reject records customer rejection
func (q *Quote) Reject() error {
	if q.Status != QuoteStatusSent {
		return shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("Cannot reject quote in %s status", q.Status))
	}
	q.Status = QuoteStatusRejected
	q.Touch()
	return nil
}

// MarkConverted links the quote to the invoice it produced. Only an accepted
// quote converts, and only once.
func (q *Quote) MarkConverted(invoiceID uuid.UUID) error {
	if q.Status == QuoteStatusConverted {
		return shared.NewDomainError(shared.CodeInvalidState, "Quote has already been converted to an invoice")
	}
	if q.Status != QuoteStatusAccepted {
		return shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("Cannot convert quote in %s status", q.Status))
	}

	q.Status = QuoteStatusConverted
	q.InvoiceID = &invoiceID
	q.Touch()
	q.IncrementVersion()

	q.AddDomainEvent(NewQuoteConvertedEvent(q))

	return nil
}

// ToLineItemInputs exposes the quote's lines as invoice line inputs
func (q *Quote) ToLineItemInputs() []LineItemInput {
	inputs := make([]LineItemInput, 0, len(q.LineItems))
	for _, item := range q.LineItems {
		inputs = append(inputs, LineItemInput{
			Description:     item.Description,
			Quantity:        item.Quantity,
			UnitPrice:       item.UnitPrice,
			DiscountPercent: item.DiscountPercent,
			TaxRate:         item.TaxRate,
		})
	}
	return inputs
}

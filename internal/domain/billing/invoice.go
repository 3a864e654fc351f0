package billing

import (
	"fmt"
	"time"

	"github.com/finbooks/backend/internal/domain/shared"
	"github.com/finbooks/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InvoiceStatus represents the status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "DRAFT"
	InvoiceStatusSent          InvoiceStatus = "SENT"
	InvoiceStatusViewed        InvoiceStatus = "VIEWED"
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoiceStatusPaid          InvoiceStatus = "PAID"
	InvoiceStatusCancelled     InvoiceStatus = "CANCELLED"
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusViewed,
		InvoiceStatusPartiallyPaid, InvoiceStatusPaid, InvoiceStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// CanReceivePayment returns true if payments can be applied in this status
func (s InvoiceStatus) CanReceivePayment() bool {
	return s != InvoiceStatusCancelled
}

// IsTerminal returns true for statuses with no further transitions
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusPaid || s == InvoiceStatusCancelled
}

// LineItemInput carries the caller-supplied values for one invoice line
type LineItemInput struct {
	Description     string
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
	DiscountPercent decimal.Decimal
	TaxRate         decimal.Decimal
}

// InvoiceLineItem is one version of a logical invoice line.
// Lines are never destructively updated: an edit inserts a new row with an
// incremented Version and marks the prior row superseded with a forward link.
// Superseded rows exist purely for history and must never be deleted.
type InvoiceLineItem struct {
	ID              uuid.UUID
	InvoiceID       uuid.UUID
	Description     string
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
	DiscountPercent decimal.Decimal
	TaxRate         decimal.Decimal
	Subtotal        decimal.Decimal
	DiscountAmount  decimal.Decimal
	TaxAmount       decimal.Decimal
	Total           decimal.Decimal
	Version         int
	IsLatestVersion bool
	SupersededAt    *time.Time
	ReplacedByID    *uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName returns the table name for GORM
func (InvoiceLineItem) TableName() string {
	return "invoice_line_items"
}

// NewInvoiceLineItem creates one line-item version from caller input
func NewInvoiceLineItem(invoiceID uuid.UUID, input LineItemInput, version int) (*InvoiceLineItem, error) {
	if input.Description == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Line item description cannot be empty")
	}

	amounts, err := CalculateLine(input.Quantity, input.UnitPrice, input.DiscountPercent, input.TaxRate)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return &InvoiceLineItem{
		ID:              uuid.New(),
		InvoiceID:       invoiceID,
		Description:     input.Description,
		Quantity:        input.Quantity,
		UnitPrice:       input.UnitPrice,
		DiscountPercent: input.DiscountPercent,
		TaxRate:         input.TaxRate,
		Subtotal:        amounts.Subtotal,
		DiscountAmount:  amounts.DiscountAmount,
		TaxAmount:       amounts.TaxAmount,
		Total:           amounts.Total,
		Version:         version,
		IsLatestVersion: true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Supersede marks this version as replaced by a newer row
func (i *InvoiceLineItem) Supersede(replacedByID uuid.UUID) {
	now := time.Now()
	i.IsLatestVersion = false
	i.SupersededAt = &now
	i.ReplacedByID = &replacedByID
	i.UpdatedAt = now
}

// Invoice is the invoice aggregate root. It owns the invoice lifecycle,
// the versioned line-item history, and the balance arithmetic
// (balance = total - amountPaid, always).
type Invoice struct {
	shared.TenantAggregateRoot
	InvoiceNumber   string
	CustomerID      uuid.UUID
	QuoteID         *uuid.UUID
	Status          InvoiceStatus
	IssueDate       time.Time
	DueDate         *time.Time
	Currency        valueobject.Currency
	ExchangeRate    decimal.Decimal
	LineItems       []InvoiceLineItem
	Subtotal        decimal.Decimal
	TaxTotal        decimal.Decimal
	Total           decimal.Decimal
	DepositRequired decimal.Decimal
	AmountPaid      decimal.Decimal
	Balance         decimal.Decimal
	Notes           string
	SentAt          *time.Time
	ViewedAt        *time.Time
	PaidAt          *time.Time
	CancelledAt     *time.Time
	CancelReason    string
	DeletedAt       gorm.DeletedAt `gorm:"index"`
}

// TableName returns the table name for GORM
func (Invoice) TableName() string {
	return "invoices"
}

// NewInvoice creates a new draft invoice with version-1 line items
func NewInvoice(
	tenantID uuid.UUID,
	invoiceNumber string,
	customerID uuid.UUID,
	quoteID *uuid.UUID,
	currency valueobject.Currency,
	issueDate time.Time,
	dueDate *time.Time,
	items []LineItemInput,
	depositRequired decimal.Decimal,
) (*Invoice, error) {
	if invoiceNumber == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Invoice number cannot be empty")
	}
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Customer ID cannot be empty")
	}
	if len(items) == 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Invoice requires at least one line item")
	}
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}

	inv := &Invoice{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		InvoiceNumber:       invoiceNumber,
		CustomerID:          customerID,
		QuoteID:             quoteID,
		Status:              InvoiceStatusDraft,
		IssueDate:           issueDate,
		DueDate:             dueDate,
		Currency:            currency,
		ExchangeRate:        decimal.NewFromInt(1),
		LineItems:           make([]InvoiceLineItem, 0, len(items)),
		DepositRequired:     decimal.Zero,
		AmountPaid:          decimal.Zero,
	}

	for _, input := range items {
		item, err := NewInvoiceLineItem(inv.ID, input, 1)
		if err != nil {
			return nil, err
		}
		inv.LineItems = append(inv.LineItems, *item)
	}
	inv.recalculateTotals()

	if err := inv.SetDepositRequired(depositRequired); err != nil {
		return nil, err
	}

	inv.AddDomainEvent(NewInvoiceCreatedEvent(inv))

	return inv, nil
}

// ActiveLineItems returns only the latest version of each logical line.
// Only these rows participate in totals.
func (inv *Invoice) ActiveLineItems() []InvoiceLineItem {
	active := make([]InvoiceLineItem, 0, len(inv.LineItems))
	for _, item := range inv.LineItems {
		if item.IsLatestVersion {
			active = append(active, item)
		}
	}
	return active
}

// ReplaceLineItems re-versions the invoice's lines: every current version is
// marked superseded with a forward link and a full new set is appended.
// Rows are never removed. Only allowed while DRAFT.
func (inv *Invoice) ReplaceLineItems(items []LineItemInput) error {
	if inv.Status != InvoiceStatusDraft {
		return shared.NewDomainError(shared.CodeInvalidState, "Line items can only be changed on a draft invoice")
	}
	if len(items) == 0 {
		return shared.NewDomainError(shared.CodeInvalidInput, "Invoice requires at least one line item")
	}

	nextVersion := inv.maxLineVersion() + 1

	newItems := make([]InvoiceLineItem, 0, len(items))
	for _, input := range items {
		item, err := NewInvoiceLineItem(inv.ID, input, nextVersion)
		if err != nil {
			return err
		}
		newItems = append(newItems, *item)
	}

	// Supersede current versions, linking each to its positional replacement
	// where one exists.
	newIdx := 0
	for idx := range inv.LineItems {
		if !inv.LineItems[idx].IsLatestVersion {
			continue
		}
		replacedBy := newItems[len(newItems)-1].ID
		if newIdx < len(newItems) {
			replacedBy = newItems[newIdx].ID
		}
		inv.LineItems[idx].Supersede(replacedBy)
		newIdx++
	}

	inv.LineItems = append(inv.LineItems, newItems...)
	inv.recalculateTotals()

	// An already-recorded payment survives a draft edit; the balance is
	// always newTotal - amountPaid.
	inv.Balance = inv.Total.Sub(inv.AmountPaid)

	if inv.DepositRequired.GreaterThan(inv.Total) {
		return shared.NewDomainError(shared.CodeInvalidInput,
			fmt.Sprintf("Deposit %.2f exceeds new invoice total %.2f", inv.DepositRequired.InexactFloat64(), inv.Total.InexactFloat64()))
	}

	inv.Touch()
	inv.AddDomainEvent(NewInvoiceUpdatedEvent(inv))

	return nil
}

// SetDepositRequired validates and sets the required deposit (0 <= deposit <= total)
func (inv *Invoice) SetDepositRequired(deposit decimal.Decimal) error {
	if deposit.IsNegative() {
		return shared.NewDomainError(shared.CodeInvalidInput, "Deposit cannot be negative")
	}
	if deposit.GreaterThan(inv.Total) {
		return shared.NewDomainError(shared.CodeInvalidInput,
			fmt.Sprintf("Deposit %.2f exceeds invoice total %.2f", deposit.InexactFloat64(), inv.Total.InexactFloat64()))
	}
	inv.DepositRequired = deposit
	inv.Touch()
	return nil
}

// SetDueDate updates the due date. Structure-frozen statuses still allow this.
func (inv *Invoice) SetDueDate(dueDate *time.Time) error {
	if inv.Status.IsTerminal() {
		return shared.NewDomainError(shared.CodeInvalidState, "Cannot modify due date of a terminal invoice")
	}
	inv.DueDate = dueDate
	inv.Touch()
	return nil
}

// SetNotes sets free-form notes
func (inv *Invoice) SetNotes(notes string) {
	inv.Notes = notes
	inv.Touch()
}

// Send issues the invoice. After this the structure is frozen; only status
// and payment fields change.
func (inv *Invoice) Send() error {
	if inv.Status != InvoiceStatusDraft {
		return shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("Cannot send invoice in %s status", inv.Status))
	}

	now := time.Now()
	inv.Status = InvoiceStatusSent
	inv.SentAt = &now
	inv.UpdatedAt = now
	inv.IncrementVersion()

	inv.AddDomainEvent(NewInvoiceSentEvent(inv))

	return nil
}

// MarkViewed records that the customer opened the invoice. Idempotent once
// the invoice has progressed past SENT.
func (inv *Invoice) MarkViewed() error {
	switch inv.Status {
	case InvoiceStatusSent:
		now := time.Now()
		inv.Status = InvoiceStatusViewed
		inv.ViewedAt = &now
		inv.UpdatedAt = now
		inv.IncrementVersion()
		inv.AddDomainEvent(NewInvoiceViewedEvent(inv))
		return nil
	case InvoiceStatusViewed, InvoiceStatusPartiallyPaid, InvoiceStatusPaid:
		return nil
	default:
		return shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("Cannot mark invoice viewed in %s status", inv.Status))
	}
}

// Cancel cancels the invoice. Forbidden once paid or while any payment is
// recorded (refund first). Idempotent if already cancelled.
func (inv *Invoice) Cancel(reason string) error {
	if inv.Status == InvoiceStatusCancelled {
		return nil
	}
	if inv.Status == InvoiceStatusPaid {
		return shared.NewDomainError(shared.CodeInvalidState, "Cannot cancel a paid invoice")
	}
	if inv.AmountPaid.GreaterThan(decimal.Zero) {
		return shared.NewDomainError(shared.CodeInvalidState, "Cannot cancel an invoice with recorded payments; refund first")
	}

	now := time.Now()
	inv.Status = InvoiceStatusCancelled
	inv.CancelledAt = &now
	inv.CancelReason = reason
	inv.UpdatedAt = now
	inv.IncrementVersion()

	inv.AddDomainEvent(NewInvoiceCancelledEvent(inv))

	return nil
}

// ApplyPayment is the balance-mutation primitive. The overpayment check and
// the write belong to one atomic unit: callers persist the invoice with a
// version-checked update inside the same transaction as the payment row.
func (inv *Invoice) ApplyPayment(amount decimal.Decimal) error {
	if !inv.Status.CanReceivePayment() {
		return shared.NewDomainError(shared.CodeInvalidState, "Cannot apply payment to a cancelled invoice")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError(shared.CodeInvalidInput, "Payment amount must be positive")
	}
	if inv.AmountPaid.Add(amount).GreaterThan(inv.Total) {
		return shared.NewDomainError(shared.CodeOverpaymentRejected,
			fmt.Sprintf("Payment %.2f would exceed invoice total %.2f (already paid %.2f)",
				amount.InexactFloat64(), inv.Total.InexactFloat64(), inv.AmountPaid.InexactFloat64()))
	}

	inv.AmountPaid = inv.AmountPaid.Add(amount)
	inv.Balance = inv.Total.Sub(inv.AmountPaid)

	now := time.Now()
	if inv.Balance.IsZero() {
		inv.Status = InvoiceStatusPaid
		inv.PaidAt = &now
		inv.AddDomainEvent(NewInvoicePaidEvent(inv))
	} else {
		inv.Status = InvoiceStatusPartiallyPaid
		inv.AddDomainEvent(NewInvoicePaymentAppliedEvent(inv, amount))
	}

	inv.UpdatedAt = now
	inv.IncrementVersion()

	return nil
}

// ApplyRefund is the inverse of ApplyPayment: it decreases amountPaid and
// increases balance by the refunded amount. Refund-ceiling validation
// against the payment's net amount happens on the Payment aggregate; this
// only guards the invoice-side arithmetic.
func (inv *Invoice) ApplyRefund(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError(shared.CodeInvalidInput, "Refund amount must be positive")
	}
	if amount.GreaterThan(inv.AmountPaid) {
		return shared.NewDomainError(shared.CodeInvalidInput,
			fmt.Sprintf("Refund %.2f exceeds recorded payments %.2f", amount.InexactFloat64(), inv.AmountPaid.InexactFloat64()))
	}

	inv.AmountPaid = inv.AmountPaid.Sub(amount)
	inv.Balance = inv.Total.Sub(inv.AmountPaid)

	if inv.AmountPaid.GreaterThan(decimal.Zero) {
		inv.Status = InvoiceStatusPartiallyPaid
	} else {
		// The invoice was necessarily issued before it was paid
		inv.Status = InvoiceStatusSent
	}
	inv.PaidAt = nil

	inv.Touch()
	inv.IncrementVersion()

	inv.AddDomainEvent(NewInvoiceRefundAppliedEvent(inv, amount))

	return nil
}

// CanModify returns true if line items and totals may still change
func (inv *Invoice) CanModify() bool {
	return inv.Status == InvoiceStatusDraft
}

// IsPaid returns true if the invoice is fully paid
func (inv *Invoice) IsPaid() bool {
	return inv.Status == InvoiceStatusPaid
}

// IsCancelled returns true if the invoice is cancelled
func (inv *Invoice) IsCancelled() bool {
	return inv.Status == InvoiceStatusCancelled
}

// GetTotalMoney returns the invoice total as Money
func (inv *Invoice) GetTotalMoney() valueobject.Money {
	return valueobject.NewMoneyUSD(inv.Total)
}

// GetBalanceMoney returns the outstanding balance as Money
func (inv *Invoice) GetBalanceMoney() valueobject.Money {
	return valueobject.NewMoneyUSD(inv.Balance)
}

// maxLineVersion returns the highest version among all stored rows
func (inv *Invoice) maxLineVersion() int {
	max := 0
	for _, item := range inv.LineItems {
		if item.Version > max {
			max = item.Version
		}
	}
	return max
}

// recalculateTotals aggregates the latest line versions into invoice totals
func (inv *Invoice) recalculateTotals() {
	subtotal := decimal.Zero
	taxTotal := decimal.Zero
	total := decimal.Zero
	for _, item := range inv.ActiveLineItems() {
		subtotal = subtotal.Add(item.Subtotal)
		taxTotal = taxTotal.Add(item.TaxAmount)
		total = total.Add(item.Total)
	}
	inv.Subtotal = subtotal
	inv.TaxTotal = taxTotal
	inv.Total = total
	inv.Balance = inv.Total.Sub(inv.AmountPaid)
}

package billing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/finbooks/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus represents the status of a payment
type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "PENDING"
	PaymentStatusCompleted         PaymentStatus = "COMPLETED"
	PaymentStatusFailed            PaymentStatus = "FAILED"
	PaymentStatusRefunded          PaymentStatus = "REFUNDED"
	PaymentStatusPartiallyRefunded PaymentStatus = "PARTIALLY_REFUNDED"
)

// IsValid checks if the status is a valid PaymentStatus
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed,
		PaymentStatusRefunded, PaymentStatusPartiallyRefunded:
		return true
	}
	return false
}

// String returns the string representation of PaymentStatus
func (s PaymentStatus) String() string {
	return string(s)
}

// PaymentMethod represents how a payment was made
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodCheck        PaymentMethod = "CHECK"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodCard         PaymentMethod = "CARD"
	PaymentMethodGateway      PaymentMethod = "GATEWAY"
)

// IsManual returns true for methods recorded by an operator rather than a
// payment processor
func (m PaymentMethod) IsManual() bool {
	return m != PaymentMethodGateway
}

// Processor fee schedule: 2.9% + $0.30 per gateway transaction
var (
	processorFeeRate  = decimal.NewFromFloat(0.029)
	processorFeeFixed = decimal.NewFromFloat(0.30)
)

// ComputeProcessorFee returns the gateway processing fee for an amount,
// rounded half-up to cents
func ComputeProcessorFee(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(processorFeeRate).Add(processorFeeFixed).Round(2)
}

// GeneratePaymentNumber returns a unique payment reference. Unlike invoice
// numbers these are not sequential, so a timestamp plus random suffix is
// enough.
func GeneratePaymentNumber(now time.Time) string {
	return fmt.Sprintf("PAY-%d-%04d", now.UnixMilli(), rand.Intn(10000))
}

// Payment is the payment aggregate root. Manual payments complete
// immediately; gateway payments start PENDING and are resolved by a
// processor webhook. The processor fee is deducted from gateway payments
// only, and the refundable ceiling is the net amount received.
type Payment struct {
	shared.TenantAggregateRoot
	PaymentNumber    string
	InvoiceID        *uuid.UUID
	CustomerID       uuid.UUID
	Status           PaymentStatus
	Method           PaymentMethod
	Amount           decimal.Decimal
	ProcessorFee     decimal.Decimal
	NetAmount        decimal.Decimal
	RefundedAmount   decimal.Decimal
	Currency         string
	Reference        string
	GatewayRequestID string
	GatewayChargeID  string
	FailureReason    string
	PaidAt           *time.Time
	FailedAt         *time.Time
	Notes            string
}

// TableName returns the table name for GORM
func (Payment) TableName() string {
	return "payments"
}

func newPayment(tenantID uuid.UUID, invoiceID *uuid.UUID, customerID uuid.UUID, method PaymentMethod, amount decimal.Decimal, currency, reference string) (*Payment, error) {
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Customer ID cannot be empty")
	}
	if invoiceID != nil && *invoiceID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Invoice ID cannot be empty")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Payment amount must be positive")
	}
	if currency == "" {
		currency = "USD"
	}

	return &Payment{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		PaymentNumber:       GeneratePaymentNumber(time.Now()),
		InvoiceID:           invoiceID,
		CustomerID:          customerID,
		Method:              method,
		Amount:              amount,
		ProcessorFee:        decimal.Zero,
		NetAmount:           amount,
		RefundedAmount:      decimal.Zero,
		Currency:            currency,
		Reference:           reference,
	}, nil
}

// NewManualPayment records an operator-entered payment (cash, check, bank
// transfer). It completes immediately with no processor fee. The invoice
// link is optional: an invoice-less payment is an on-account credit for the
// customer.
func NewManualPayment(tenantID uuid.UUID, invoiceID *uuid.UUID, customerID uuid.UUID, method PaymentMethod, amount decimal.Decimal, currency, reference string) (*Payment, error) {
	if !method.IsManual() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Gateway payments must be initiated through the gateway flow")
	}

	p, err := newPayment(tenantID, invoiceID, customerID, method, amount, currency, reference)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	p.Status = PaymentStatusCompleted
	p.PaidAt = &now

	p.AddDomainEvent(NewPaymentRecordedEvent(p))

	return p, nil
}

// NewGatewayPayment starts a processor-mediated payment. It stays PENDING
// until the webhook confirms or fails it; the fee is computed up front so
// the expected net is visible immediately.
func NewGatewayPayment(tenantID, invoiceID, customerID uuid.UUID, amount decimal.Decimal, currency, gatewayRequestID string) (*Payment, error) {
	if invoiceID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Invoice ID cannot be empty")
	}
	p, err := newPayment(tenantID, &invoiceID, customerID, PaymentMethodGateway, amount, currency, "")
	if err != nil {
		return nil, err
	}
	if gatewayRequestID == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Gateway request ID cannot be empty")
	}

	p.Status = PaymentStatusPending
	p.GatewayRequestID = gatewayRequestID
	p.ProcessorFee = ComputeProcessorFee(amount)
	p.NetAmount = amount.Sub(p.ProcessorFee)

	p.AddDomainEvent(NewPaymentRecordedEvent(p))

	return p, nil
}

// ConfirmGateway marks a pending gateway payment completed. Called from the
// webhook handler; idempotent replays are filtered upstream, so a repeat
// call here is a state error.
func (p *Payment) ConfirmGateway(chargeID string) error {
	if p.Status != PaymentStatusPending {
		return shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("Cannot confirm payment in %s status", p.Status))
	}

	now := time.Now()
	p.Status = PaymentStatusCompleted
	p.GatewayChargeID = chargeID
	p.PaidAt = &now
	p.UpdatedAt = now
	p.IncrementVersion()

	p.AddDomainEvent(NewPaymentConfirmedEvent(p))

	return nil
}

// FailGateway marks a pending gateway payment failed with the processor's
// reason. A failed payment never touches the invoice balance.
func (p *Payment) FailGateway(reason string) error {
	if p.Status != PaymentStatusPending {
		return shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("Cannot fail payment in %s status", p.Status))
	}

	now := time.Now()
	p.Status = PaymentStatusFailed
	p.FailureReason = reason
	p.FailedAt = &now
	p.UpdatedAt = now
	p.IncrementVersion()

	p.AddDomainEvent(NewPaymentFailedEvent(p))

	return nil
}

// RefundableAmount returns how much can still be refunded. The ceiling is
// the net amount for gateway payments (the fee is not returned by the
// processor) and the full amount for manual payments.
func (p *Payment) RefundableAmount() decimal.Decimal {
	if p.Status != PaymentStatusCompleted && p.Status != PaymentStatusPartiallyRefunded {
		return decimal.Zero
	}
	ceiling := p.Amount
	if p.Method == PaymentMethodGateway {
		ceiling = p.NetAmount
	}
	return ceiling.Sub(p.RefundedAmount)
}

// RecordRefund applies a refund against this payment
func (p *Payment) RecordRefund(amount decimal.Decimal) error {
	if p.Status != PaymentStatusCompleted && p.Status != PaymentStatusPartiallyRefunded {
		return shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("Cannot refund payment in %s status", p.Status))
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError(shared.CodeInvalidInput, "Refund amount must be positive")
	}

	refundable := p.RefundableAmount()
	if amount.GreaterThan(refundable) {
		return shared.NewDomainError(shared.CodeExceedsRefundable,
			fmt.Sprintf("Refund %.2f exceeds refundable amount %.2f", amount.InexactFloat64(), refundable.InexactFloat64()))
	}

	p.RefundedAmount = p.RefundedAmount.Add(amount)
	if p.RefundableAmount().IsZero() {
		p.Status = PaymentStatusRefunded
	} else {
		p.Status = PaymentStatusPartiallyRefunded
	}

	p.Touch()
	p.IncrementVersion()

	p.AddDomainEvent(NewPaymentRefundedEvent(p))

	return nil
}

// HasInvoice returns true if the payment is applied against an invoice
func (p *Payment) HasInvoice() bool {
	return p.InvoiceID != nil
}

// IsCompleted returns true if the payment has settled
func (p *Payment) IsCompleted() bool {
	return p.Status == PaymentStatusCompleted
}

// IsPending returns true if the payment awaits gateway resolution
func (p *Payment) IsPending() bool {
	return p.Status == PaymentStatusPending
}

package billing

import (
	"time"

	"github.com/finbooks/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RefundStatus represents the status of a refund
type RefundStatus string

const (
	RefundStatusCompleted RefundStatus = "COMPLETED"
	RefundStatusFailed    RefundStatus = "FAILED"
)

// Refund records one refund issued against a completed payment. Validation
// against the payment's refundable ceiling happens on the Payment aggregate;
// the refund row is the durable record.
type Refund struct {
	shared.TenantAggregateRoot
	PaymentID       uuid.UUID
	InvoiceID       *uuid.UUID
	Status          RefundStatus
	Amount          decimal.Decimal
	Reason          string
	GatewayRefundID string
	RefundedAt      time.Time
}

// TableName returns the table name for GORM
func (Refund) TableName() string {
	return "refunds"
}

// NewRefund creates a completed refund record. The invoice link mirrors the
// payment's: nil for on-account payments.
func NewRefund(tenantID, paymentID uuid.UUID, invoiceID *uuid.UUID, amount decimal.Decimal, reason string) (*Refund, error) {
	if paymentID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Payment ID cannot be empty")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Refund amount must be positive")
	}

	return &Refund{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		PaymentID:           paymentID,
		InvoiceID:           invoiceID,
		Status:              RefundStatusCompleted,
		Amount:              amount,
		Reason:              reason,
		RefundedAt:          time.Now(),
	}, nil
}

// AttachGatewayRefund records the processor's refund identifier
func (r *Refund) AttachGatewayRefund(gatewayRefundID string) {
	r.GatewayRefundID = gatewayRefundID
	r.Touch()
}

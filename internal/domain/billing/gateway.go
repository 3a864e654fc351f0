package billing

import (
	"context"

	"github.com/finbooks/backend/internal/domain/shared/valueobject"
)

// ChargeRequest describes a charge to create at the payment processor.
// Amounts cross this boundary as integer minor units.
type ChargeRequest struct {
	AmountMinor int64
	Currency    valueobject.Currency
	Description string
	// IdempotencyKey deduplicates retried charge creations at the processor
	IdempotencyKey string
	Metadata       map[string]string
}

// ChargeResult is the processor's handle for a created charge
type ChargeResult struct {
	// RequestID identifies the processor-side intent; webhooks reference it
	RequestID string
	// ClientSecret is handed to the customer-facing client to complete payment
	ClientSecret string
}

// RefundRequest describes a refund to issue at the payment processor
type RefundRequest struct {
	ChargeRequestID string
	AmountMinor     int64
	Reason          string
}

// RefundResult is the processor's handle for an issued refund
type RefundResult struct {
	RefundID string
}

// PaymentGateway is the outbound port to the card processor
type PaymentGateway interface {
	CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
}

// Webhook event types delivered by the processor
const (
	WebhookPaymentSucceeded = "payment_intent.succeeded"
	WebhookPaymentFailed    = "payment_intent.payment_failed"
)

// WebhookEvent is a verified, normalized processor notification
type WebhookEvent struct {
	// EventID is the processor's event identifier, used for idempotent replay
	// filtering
	EventID string
	Type    string
	// RequestID is the processor-side intent ID the event refers to
	RequestID     string
	ChargeID      string
	FailureReason string
}

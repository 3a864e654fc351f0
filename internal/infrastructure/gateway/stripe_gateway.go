package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/finbooks/backend/internal/domain/billing"
	stripe "github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.uber.org/zap"
)

// StripeGateway implements the PaymentGateway port against the Stripe API.
// Amounts cross this boundary exclusively as integer minor units.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
	logger        *zap.Logger
}

// NewStripeGateway creates a Stripe-backed payment gateway
func NewStripeGateway(secretKey, webhookSecret string, logger *zap.Logger) *StripeGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{
		api:           api,
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

// CreateCharge creates a PaymentIntent for the requested amount
func (g *StripeGateway) CreateCharge(ctx context.Context, req billing.ChargeRequest) (*billing.ChargeResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(req.AmountMinor),
		Currency:    stripe.String(strings.ToLower(string(req.Currency))),
		Description: stripe.String(req.Description),
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	intent, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe payment intent creation failed: %w", err)
	}

	g.logger.Info("Created payment intent",
		zap.String("intent_id", intent.ID),
		zap.Int64("amount_minor", req.AmountMinor))

	return &billing.ChargeResult{
		RequestID:    intent.ID,
		ClientSecret: intent.ClientSecret,
	}, nil
}

// Refund issues a refund against a PaymentIntent
func (g *StripeGateway) Refund(ctx context.Context, req billing.RefundRequest) (*billing.RefundResult, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.ChargeRequestID),
		Amount:        stripe.Int64(req.AmountMinor),
	}
	params.Context = ctx
	if req.Reason != "" {
		params.AddMetadata("reason", req.Reason)
	}

	ref, err := g.api.Refunds.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe refund failed: %w", err)
	}

	g.logger.Info("Issued refund",
		zap.String("refund_id", ref.ID),
		zap.String("intent_id", req.ChargeRequestID),
		zap.Int64("amount_minor", req.AmountMinor))

	return &billing.RefundResult{RefundID: ref.ID}, nil
}

// VerifyWebhook checks the Stripe signature and normalizes the event. An
// invalid signature is an error; an event type we don't consume returns a
// WebhookEvent whose Type the caller will ignore.
func (g *StripeGateway) VerifyWebhook(payload []byte, signatureHeader string) (*billing.WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, signatureHeader, g.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("webhook signature verification failed: %w", err)
	}

	result := &billing.WebhookEvent{
		EventID: event.ID,
		Type:    string(event.Type),
	}

	switch string(event.Type) {
	case billing.WebhookPaymentSucceeded, billing.WebhookPaymentFailed:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return nil, fmt.Errorf("failed to parse payment intent from webhook: %w", err)
		}
		result.RequestID = intent.ID
		if intent.LatestCharge != nil {
			result.ChargeID = intent.LatestCharge.ID
		}
		if intent.LastPaymentError != nil {
			result.FailureReason = intent.LastPaymentError.Msg
		}
	}

	return result, nil
}

// Ensure StripeGateway implements PaymentGateway
var _ billing.PaymentGateway = (*StripeGateway)(nil)

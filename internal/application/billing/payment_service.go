package billing

import (
	"context"
	"fmt"

	"github.com/finbooks/backend/internal/domain/billing"
	"github.com/finbooks/backend/internal/domain/partner"
	"github.com/finbooks/backend/internal/domain/shared"
	"github.com/finbooks/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// maxApplyAttempts bounds the optimistic-lock retry loop when applying a
// payment or refund to an invoice
const maxApplyAttempts = 3

// PaymentService handles payment recording, gateway payments, processor
// webhooks and refunds
type PaymentService struct {
	paymentRepo      billing.PaymentRepository
	refundRepo       billing.RefundRepository
	invoiceRepo      billing.InvoiceRepository
	customerRepo     partner.CustomerRepository
	gateway          billing.PaymentGateway
	idempotencyStore shared.IdempotencyStore
	idempotencyCfg   shared.IdempotencyConfig
	uow              shared.UnitOfWork
	eventPublisher   shared.EventPublisher
	auditSink        billing.AuditSink
	logger           *zap.Logger
}

// PaymentServiceConfig holds the dependencies for PaymentService
type PaymentServiceConfig struct {
	PaymentRepo      billing.PaymentRepository
	RefundRepo       billing.RefundRepository
	InvoiceRepo      billing.InvoiceRepository
	CustomerRepo     partner.CustomerRepository
	Gateway          billing.PaymentGateway
	IdempotencyStore shared.IdempotencyStore
	IdempotencyCfg   shared.IdempotencyConfig
	UnitOfWork       shared.UnitOfWork
	Logger           *zap.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(config PaymentServiceConfig) *PaymentService {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{
		paymentRepo:      config.PaymentRepo,
		refundRepo:       config.RefundRepo,
		invoiceRepo:      config.InvoiceRepo,
		customerRepo:     config.CustomerRepo,
		gateway:          config.Gateway,
		idempotencyStore: config.IdempotencyStore,
		idempotencyCfg:   config.IdempotencyCfg,
		uow:              config.UnitOfWork,
		logger:           logger,
	}
}

// SetEventPublisher sets the event publisher for cross-context integration
func (s *PaymentService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetAuditSink sets the audit sink for state-changing operations
func (s *PaymentService) SetAuditSink(sink billing.AuditSink) {
	s.auditSink = sink
}

// RecordManualPayment records an operator-entered payment. With an invoice
// the payment row and the balance mutation commit in one transaction, and
// the overpayment check can never be bypassed by a concurrent writer because
// the invoice save is version-checked. Without an invoice the payment is an
// on-account credit for the customer.
func (s *PaymentService) RecordManualPayment(ctx context.Context, tenantID uuid.UUID, req RecordManualPaymentRequest) (*PaymentResponse, error) {
	customer, err := s.customerRepo.FindByID(ctx, tenantID, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if !customer.IsActive() {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "Cannot record payment for an inactive customer")
	}

	var payment *billing.Payment

	if req.InvoiceID == nil {
		payment, err = billing.NewManualPayment(tenantID, nil, req.CustomerID, req.Method, req.Amount, "", req.Reference)
		if err != nil {
			return nil, err
		}
		if err := s.paymentRepo.Save(ctx, payment); err != nil {
			return nil, err
		}
	} else {
		err = s.applyToInvoice(ctx, tenantID, *req.InvoiceID, func(txCtx context.Context, inv *billing.Invoice) error {
			if inv.CustomerID != req.CustomerID {
				return shared.NewDomainError(shared.CodeInvalidInput, "Invoice does not belong to this customer")
			}
			p, err := billing.NewManualPayment(tenantID, req.InvoiceID, req.CustomerID, req.Method, req.Amount, string(inv.Currency), req.Reference)
			if err != nil {
				return err
			}
			if err := inv.ApplyPayment(req.Amount); err != nil {
				return err
			}
			if err := s.paymentRepo.Save(txCtx, p); err != nil {
				return err
			}
			payment = p
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	s.publishEvents(ctx, payment)
	s.audit(ctx, tenantID, "payment.record", payment.ID,
		fmt.Sprintf("Recorded %s payment %s of %s", payment.Method, payment.PaymentNumber, payment.Amount.StringFixed(2)),
		"", paymentSnapshot(payment))

	response := ToPaymentResponse(payment)
	return &response, nil
}

// InitiateGatewayPayment creates a charge at the processor and a PENDING
// payment row. The invoice balance is untouched until the processor
// confirms via webhook.
func (s *PaymentService) InitiateGatewayPayment(ctx context.Context, tenantID uuid.UUID, req InitiateGatewayPaymentRequest) (*GatewayPaymentResponse, error) {
	if s.gateway == nil {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "No payment gateway configured")
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Payment amount must be positive")
	}

	inv, err := s.invoiceRepo.FindByID(ctx, tenantID, req.InvoiceID)
	if err != nil {
		return nil, err
	}
	if !inv.Status.CanReceivePayment() {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "Cannot take payment for a cancelled invoice")
	}
	// Early rejection; the authoritative atomic check runs again on webhook confirm
	if req.Amount.GreaterThan(inv.Balance) {
		return nil, shared.NewDomainError(shared.CodeExceedsBalance,
			fmt.Sprintf("Payment %.2f exceeds invoice balance %.2f", req.Amount.InexactFloat64(), inv.Balance.InexactFloat64()))
	}

	money := valueobject.NewMoneyUSD(req.Amount)
	idempotencyKey := uuid.NewString()
	charge, err := s.gateway.CreateCharge(ctx, billing.ChargeRequest{
		AmountMinor:    money.MinorUnits(),
		Currency:       inv.Currency,
		Description:    fmt.Sprintf("Payment for invoice %s", inv.InvoiceNumber),
		IdempotencyKey: idempotencyKey,
		Metadata: map[string]string{
			"tenant_id":      tenantID.String(),
			"invoice_id":     inv.ID.String(),
			"invoice_number": inv.InvoiceNumber,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway charge: %w", err)
	}

	payment, err := billing.NewGatewayPayment(tenantID, inv.ID, inv.CustomerID, req.Amount, string(inv.Currency), charge.RequestID)
	if err != nil {
		return nil, err
	}
	if err := s.paymentRepo.Save(ctx, payment); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, payment)
	s.audit(ctx, tenantID, "payment.initiate", payment.ID,
		fmt.Sprintf("Initiated gateway payment %s of %s", payment.PaymentNumber, payment.Amount.StringFixed(2)),
		"", paymentSnapshot(payment))

	return &GatewayPaymentResponse{
		Payment:      ToPaymentResponse(payment),
		ClientSecret: charge.ClientSecret,
	}, nil
}

// HandleWebhook processes a verified processor notification. Replays are
// filtered by event ID; events for unknown payments are logged and ignored
// so the processor does not retry them forever.
func (s *PaymentService) HandleWebhook(ctx context.Context, event billing.WebhookEvent) error {
	if s.idempotencyStore != nil && s.idempotencyCfg.Enabled {
		fresh, err := s.idempotencyStore.MarkProcessed(ctx, "webhook:"+event.EventID, s.idempotencyCfg.TTL)
		if err != nil {
			s.logger.Warn("Idempotency store unavailable, processing anyway",
				zap.String("event_id", event.EventID),
				zap.Error(err))
		} else if !fresh {
			s.logger.Info("Webhook already processed",
				zap.String("event_id", event.EventID))
			return nil
		}
	}

	err := s.handleWebhookEvent(ctx, event)
	if err != nil && s.idempotencyStore != nil {
		// Unmark so the processor's retry gets another chance
		if derr := s.idempotencyStore.Remove(ctx, "webhook:"+event.EventID); derr != nil {
			s.logger.Warn("Failed to clear idempotency mark", zap.Error(derr))
		}
	}
	return err
}

func (s *PaymentService) handleWebhookEvent(ctx context.Context, event billing.WebhookEvent) error {
	payment, err := s.paymentRepo.FindByGatewayRequestID(ctx, event.RequestID)
	if err != nil {
		if shared.IsDomainErrorWithCode(err, shared.CodeNotFound) {
			s.logger.Warn("Webhook references unknown payment, ignoring",
				zap.String("event_id", event.EventID),
				zap.String("request_id", event.RequestID),
				zap.String("type", event.Type))
			return nil
		}
		return err
	}

	switch event.Type {
	case billing.WebhookPaymentSucceeded:
		return s.confirmGatewayPayment(ctx, payment, event.ChargeID)
	case billing.WebhookPaymentFailed:
		return s.failGatewayPayment(ctx, payment, event.FailureReason)
	default:
		s.logger.Info("Ignoring unhandled webhook type",
			zap.String("event_id", event.EventID),
			zap.String("type", event.Type))
		return nil
	}
}

func (s *PaymentService) confirmGatewayPayment(ctx context.Context, payment *billing.Payment, chargeID string) error {
	if payment.IsCompleted() {
		s.logger.Info("Payment already confirmed",
			zap.String("payment_number", payment.PaymentNumber))
		return nil
	}
	before := paymentSnapshot(payment)
	if err := payment.ConfirmGateway(chargeID); err != nil {
		return err
	}

	// Gateway payments always carry an invoice
	err := s.applyToInvoice(ctx, payment.TenantID, *payment.InvoiceID, func(txCtx context.Context, inv *billing.Invoice) error {
		// The gross amount settles the invoice; the processor fee only
		// reduces what is refundable.
		if err := inv.ApplyPayment(payment.Amount); err != nil {
			return err
		}
		return s.paymentRepo.SaveWithLock(txCtx, payment)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Gateway payment confirmed",
		zap.String("payment_number", payment.PaymentNumber),
		zap.String("charge_id", chargeID),
		zap.String("amount", payment.Amount.String()))

	s.publishEvents(ctx, payment)
	s.audit(ctx, payment.TenantID, "payment.confirm", payment.ID,
		fmt.Sprintf("Gateway payment %s confirmed", payment.PaymentNumber),
		before, paymentSnapshot(payment))

	return nil
}

func (s *PaymentService) failGatewayPayment(ctx context.Context, payment *billing.Payment, reason string) error {
	before := paymentSnapshot(payment)
	if err := payment.FailGateway(reason); err != nil {
		if shared.IsDomainErrorWithCode(err, shared.CodeInvalidState) {
			// A late failure event for an already-resolved payment
			s.logger.Info("Ignoring failure event for resolved payment",
				zap.String("payment_number", payment.PaymentNumber),
				zap.String("status", payment.Status.String()))
			return nil
		}
		return err
	}
	if err := s.paymentRepo.SaveWithLock(ctx, payment); err != nil {
		return err
	}

	s.logger.Info("Gateway payment failed",
		zap.String("payment_number", payment.PaymentNumber),
		zap.String("reason", reason))

	s.publishEvents(ctx, payment)
	s.audit(ctx, payment.TenantID, "payment.fail", payment.ID,
		fmt.Sprintf("Gateway payment %s failed: %s", payment.PaymentNumber, reason),
		before, paymentSnapshot(payment))

	return nil
}

// Refund refunds part or all of a completed payment. The ceiling is the
// payment's net amount (gross for manual payments) minus prior refunds. For
// gateway payments the processor refund is issued first; the local records
// then commit in one transaction.
func (s *PaymentService) Refund(ctx context.Context, tenantID, paymentID uuid.UUID, req RefundPaymentRequest) (*RefundResponse, error) {
	payment, err := s.paymentRepo.FindByID(ctx, tenantID, paymentID)
	if err != nil {
		return nil, err
	}

	// Validate against the ceiling before touching the processor
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Refund amount must be positive")
	}
	if req.Amount.GreaterThan(payment.RefundableAmount()) {
		return nil, shared.NewDomainError(shared.CodeExceedsRefundable,
			fmt.Sprintf("Refund %.2f exceeds refundable amount %.2f",
				req.Amount.InexactFloat64(), payment.RefundableAmount().InexactFloat64()))
	}

	before := paymentSnapshot(payment)

	refund, err := billing.NewRefund(tenantID, payment.ID, payment.InvoiceID, req.Amount, req.Reason)
	if err != nil {
		return nil, err
	}

	if payment.Method == billing.PaymentMethodGateway {
		if s.gateway == nil {
			return nil, shared.NewDomainError(shared.CodeInvalidState, "No payment gateway configured")
		}
		money := valueobject.NewMoneyUSD(req.Amount)
		result, err := s.gateway.Refund(ctx, billing.RefundRequest{
			ChargeRequestID: payment.GatewayRequestID,
			AmountMinor:     money.MinorUnits(),
			Reason:          req.Reason,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to issue gateway refund: %w", err)
		}
		refund.AttachGatewayRefund(result.RefundID)
	}

	if err := payment.RecordRefund(req.Amount); err != nil {
		return nil, err
	}

	if payment.HasInvoice() {
		err = s.applyToInvoice(ctx, tenantID, *payment.InvoiceID, func(txCtx context.Context, inv *billing.Invoice) error {
			if err := inv.ApplyRefund(req.Amount); err != nil {
				return err
			}
			if err := s.paymentRepo.SaveWithLock(txCtx, payment); err != nil {
				return err
			}
			return s.refundRepo.Save(txCtx, refund)
		})
	} else {
		// On-account payment: no invoice balance to restore
		err = s.uow.WithinTransaction(ctx, func(txCtx context.Context) error {
			if err := s.paymentRepo.SaveWithLock(txCtx, payment); err != nil {
				return err
			}
			return s.refundRepo.Save(txCtx, refund)
		})
	}
	if err != nil {
		return nil, err
	}

	s.publishEvents(ctx, payment)
	s.audit(ctx, tenantID, "payment.refund", payment.ID,
		fmt.Sprintf("Refunded %s from payment %s", req.Amount.StringFixed(2), payment.PaymentNumber),
		before, paymentSnapshot(payment))

	response := ToRefundResponse(refund)
	return &response, nil
}

// GetByID retrieves a payment by ID
func (s *PaymentService) GetByID(ctx context.Context, tenantID, paymentID uuid.UUID) (*PaymentResponse, error) {
	payment, err := s.paymentRepo.FindByID(ctx, tenantID, paymentID)
	if err != nil {
		return nil, err
	}
	response := ToPaymentResponse(payment)
	return &response, nil
}

// ListByInvoice retrieves all payments recorded against an invoice
func (s *PaymentService) ListByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]PaymentResponse, error) {
	payments, err := s.paymentRepo.FindByInvoiceID(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	responses := make([]PaymentResponse, 0, len(payments))
	for i := range payments {
		responses = append(responses, ToPaymentResponse(&payments[i]))
	}
	return responses, nil
}

// ListRefunds retrieves all refunds issued against a payment
func (s *PaymentService) ListRefunds(ctx context.Context, tenantID, paymentID uuid.UUID) ([]RefundResponse, error) {
	refunds, err := s.refundRepo.FindByPaymentID(ctx, tenantID, paymentID)
	if err != nil {
		return nil, err
	}
	responses := make([]RefundResponse, 0, len(refunds))
	for i := range refunds {
		responses = append(responses, ToRefundResponse(&refunds[i]))
	}
	return responses, nil
}

// applyToInvoice runs a balance mutation against the invoice inside a
// transaction with a version-checked save, retrying on optimistic-lock
// conflicts. Each attempt re-reads the invoice so the mutation always sees
// the latest committed balance.
func (s *PaymentService) applyToInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID, mutate func(txCtx context.Context, inv *billing.Invoice) error) error {
	var lastErr error
	for attempt := 1; attempt <= maxApplyAttempts; attempt++ {
		err := s.uow.WithinTransaction(ctx, func(txCtx context.Context) error {
			inv, err := s.invoiceRepo.FindByID(txCtx, tenantID, invoiceID)
			if err != nil {
				return err
			}
			if err := mutate(txCtx, inv); err != nil {
				return err
			}
			return s.invoiceRepo.SaveWithLock(txCtx, inv)
		})
		if err == nil {
			return nil
		}
		if !shared.IsDomainErrorWithCode(err, shared.CodeConcurrencyConflict) {
			return err
		}

		lastErr = err
		s.logger.Warn("Invoice version conflict, retrying",
			zap.String("invoice_id", invoiceID.String()),
			zap.Int("attempt", attempt))
	}
	return lastErr
}

func (s *PaymentService) publishEvents(ctx context.Context, aggregate shared.AggregateRoot) {
	if s.eventPublisher == nil {
		aggregate.ClearDomainEvents()
		return
	}
	for _, event := range aggregate.GetDomainEvents() {
		if err := s.eventPublisher.Publish(ctx, event); err != nil {
			s.logger.Warn("Failed to publish domain event",
				zap.String("event_type", event.EventType()),
				zap.Error(err))
		}
	}
	aggregate.ClearDomainEvents()
}

func (s *PaymentService) audit(ctx context.Context, tenantID uuid.UUID, action string, entityID uuid.UUID, detail, before, after string) {
	if s.auditSink == nil {
		return
	}
	meta := billing.OperationMetaFrom(ctx)
	s.auditSink.Record(ctx, billing.AuditEntry{
		TenantID:   tenantID,
		Actor:      meta.Actor,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
		Action:     action,
		EntityType: "Payment",
		EntityID:   entityID,
		Detail:     detail,
		Before:     before,
		After:      after,
	})
}

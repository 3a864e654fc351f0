package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/finbooks/backend/internal/domain/billing"
	"github.com/finbooks/backend/internal/domain/partner"
	"github.com/finbooks/backend/internal/domain/shared"
	"github.com/finbooks/backend/internal/domain/shared/valueobject"
	"github.com/finbooks/backend/internal/infrastructure/cache"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type paymentFixture struct {
	service    *PaymentService
	invoices   *memInvoiceRepo
	payments   *memPaymentRepo
	refunds    *memRefundRepo
	customers  *memCustomerRepo
	gateway    *fakeGateway
	tenantID   uuid.UUID
	customerID uuid.UUID
	seq        int
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()

	invoices := newMemInvoiceRepo()
	payments := newMemPaymentRepo()
	refunds := newMemRefundRepo()
	customers := newMemCustomerRepo()
	gateway := &fakeGateway{}
	uow := &memUnitOfWork{stores: []snapshotter{invoices, payments, refunds}}

	store := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })

	service := NewPaymentService(PaymentServiceConfig{
		PaymentRepo:      payments,
		RefundRepo:       refunds,
		InvoiceRepo:      invoices,
		CustomerRepo:     customers,
		Gateway:          gateway,
		IdempotencyStore: store,
		IdempotencyCfg:   shared.IdempotencyConfig{TTL: time.Hour, Enabled: true},
		UnitOfWork:       uow,
		Logger:           zap.NewNop(),
	})

	tenantID := uuid.New()
	customer, err := partner.NewCustomer(tenantID, "Acme Corp", "billing@acme.test")
	require.NoError(t, err)
	require.NoError(t, customers.Save(context.Background(), customer))

	return &paymentFixture{
		service:    service,
		invoices:   invoices,
		payments:   payments,
		refunds:    refunds,
		customers:  customers,
		gateway:    gateway,
		tenantID:   tenantID,
		customerID: customer.ID,
	}
}

// seedInvoice stores a sent invoice with a single line worth the given total,
// billed to the fixture's customer
func (f *paymentFixture) seedInvoice(t *testing.T, total string) *billing.Invoice {
	t.Helper()
	f.seq++
	inv, err := billing.NewInvoice(
		f.tenantID,
		fmt.Sprintf("INV-2026-%05d", f.seq),
		f.customerID,
		nil,
		valueobject.USD,
		time.Now(),
		nil,
		[]billing.LineItemInput{{Description: "Service", Quantity: d("1"), UnitPrice: d(total)}},
		decimal.Zero,
	)
	require.NoError(t, err)
	require.NoError(t, inv.Send())
	inv.ClearDomainEvents()
	require.NoError(t, f.invoices.Save(context.Background(), inv))
	return inv
}

func (f *paymentFixture) invoice(t *testing.T, id uuid.UUID) *billing.Invoice {
	t.Helper()
	inv, err := f.invoices.FindByID(context.Background(), f.tenantID, id)
	require.NoError(t, err)
	return inv
}

func TestRecordManualPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("records and applies the payment atomically", func(t *testing.T) {
		f := newPaymentFixture(t)
		inv := f.seedInvoice(t, "100.00")

		resp, err := f.service.RecordManualPayment(ctx, f.tenantID, RecordManualPaymentRequest{
			CustomerID: f.customerID,
			InvoiceID:  &inv.ID,
			Method:     billing.PaymentMethodCheck,
			Amount:     d("60.00"),
			Reference:  "check #1042",
		})
		require.NoError(t, err)

		assert.Equal(t, billing.PaymentStatusCompleted, resp.Status)
		assert.Equal(t, f.customerID, resp.CustomerID)
		assert.True(t, resp.ProcessorFee.IsZero())

		stored := f.invoice(t, inv.ID)
		assert.Equal(t, billing.InvoiceStatusPartiallyPaid, stored.Status)
		assert.True(t, stored.AmountPaid.Equal(d("60.00")))
		assert.True(t, stored.Balance.Equal(d("40.00")))
	})

	t.Run("exact remainder settles the invoice", func(t *testing.T) {
		f := newPaymentFixture(t)
		inv := f.seedInvoice(t, "100.00")

		_, err := f.service.RecordManualPayment(ctx, f.tenantID, RecordManualPaymentRequest{
			CustomerID: f.customerID, InvoiceID: &inv.ID, Method: billing.PaymentMethodCash, Amount: d("60.00"),
		})
		require.NoError(t, err)
		_, err = f.service.RecordManualPayment(ctx, f.tenantID, RecordManualPaymentRequest{
			CustomerID: f.customerID, InvoiceID: &inv.ID, Method: billing.PaymentMethodCash, Amount: d("40.00"),
		})
		require.NoError(t, err)

		assert.Equal(t, billing.InvoiceStatusPaid, f.invoice(t, inv.ID).Status)
	})

	t.Run("overpayment leaves no trace", func(t *testing.T) {
		f := newPaymentFixture(t)
		inv := f.seedInvoice(t, "100.00")

		_, err := f.service.RecordManualPayment(ctx, f.tenantID, RecordManualPaymentRequest{
			CustomerID: f.customerID, InvoiceID: &inv.ID, Method: billing.PaymentMethodCash, Amount: d("60.00"),
		})
		require.NoError(t, err)

		_, err = f.service.RecordManualPayment(ctx, f.tenantID, RecordManualPaymentRequest{
			CustomerID: f.customerID, InvoiceID: &inv.ID, Method: billing.PaymentMethodCash, Amount: d("60.00"),
		})
		assert.True(t, shared.IsDomainErrorWithCode(err, shared.CodeOverpaymentRejected))

		assert.Equal(t, 1, f.payments.count(), "rejected payment must not persist")
		assert.True(t, f.invoice(t, inv.ID).AmountPaid.Equal(d("60.00")))
	})

	t.Run("unknown invoice", func(t *testing.T) {
		f := newPaymentFixture(t)
		missing := uuid.New()
		_, err := f.service.RecordManualPayment(ctx, f.tenantID, RecordManualPaymentRequest{
			CustomerID: f.customerID, InvoiceID: &missing, Method: billing.PaymentMethodCash, Amount: d("10.00"),
		})
		assert.True(t, shared.IsDomainErrorWithCode(err, shared.CodeNotFound))
	})

	t.Run("unknown customer", func(t *testing.T) {
		f := newPaymentFixture(t)
		inv := f.seedInvoice(t, "100.00")
		_, err := f.service.RecordManualPayment(ctx, f.tenantID, RecordManualPaymentRequest{
			CustomerID: uuid.New(), InvoiceID: &inv.ID, Method: billing.PaymentMethodCash, Amount: d("10.00"),
		})
		assert.True(t, shared.IsDomainErrorWithCode(err, shared.CodeNotFound))
		assert.Equal(t, 0, f.payments.count())
	})

	t.Run("inactive customer", func(t *testing.T) {
		f := newPaymentFixture(t)
		customer, err := f.customers.FindByID(ctx, f.tenantID, f.customerID)
		require.NoError(t, err)
		customer.Deactivate()
		require.NoError(t, f.customers.Save(ctx, customer))

		_, err = f.service.RecordManualPayment(ctx, f.tenantID, RecordManualPaymentRequest{
			CustomerID: f.customerID, Method: billing.PaymentMethodCash, Amount: d("10.00"),
		})
		assert.True(t, shared.IsDomainErrorWithCode(err, shared.CodeInvalidState))
		assert.Equal(t, 0, f.payments.count())
	})

	t.Run("invoice billed to another customer is rejected", func(t *testing.T) {
		f := newPaymentFixture(t)
		inv := f.seedInvoice(t, "100.00")

		other, err := partner.NewCustomer(f.tenantID, "Other Co", "ap@other.test")
		require.NoError(t, err)
		require.NoError(t, f.customers.Save(ctx, other))

		_, err = f.service.RecordManualPayment(ctx, f.tenantID, RecordManualPaymentRequest{
			CustomerID: other.ID, InvoiceID: &inv.ID, Method: billing.PaymentMethodCash, Amount: d("10.00"),
		})
		assert.True(t, shared.IsDomainErrorWithCode(err, shared.CodeInvalidInput))
		assert.Equal(t, 0, f.payments.count())
		assert.True(t, f.invoice(t, inv.ID).AmountPaid.IsZero())
	})

	t.Run("payment without an invoice is an on-account credit", func(t *testing.T) {
		f := newPaymentFixture(t)

		resp, err := f.service.RecordManualPayment(ctx, f.tenantID, RecordManualPaymentRequest{
			CustomerID: f.customerID,
			Method:     billing.PaymentMethodBankTransfer,
			Amount:     d("250.00"),
			Reference:  "wire 2026-08-20",
		})
		require.NoError(t, err)

		assert.Equal(t, billing.PaymentStatusCompleted, resp.Status)
		assert.Nil(t, resp.InvoiceID)
		assert.Equal(t, f.customerID, resp.CustomerID)
		assert.Equal(t, 1, f.payments.count())
	})

	t.Run("concurrent payments cannot cross the total", func(t *testing.T) {
		f := newPaymentFixture(t)
		inv := f.seedInvoice(t, "100.00")

		errs := make(chan error, 2)
		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.service.RecordManualPayment(ctx, f.tenantID, RecordManualPaymentRequest{
					CustomerID: f.customerID, InvoiceID: &inv.ID, Method: billing.PaymentMethodCash, Amount: d("60.00"),
				})
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		var rejected, succeeded int
		for err := range errs {
			if err == nil {
				succeeded++
			} else if shared.IsDomainErrorWithCode(err, shared.CodeOverpaymentRejected) {
				rejected++
			} else {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, succeeded)
		assert.Equal(t, 1, rejected)

		stored := f.invoice(t, inv.ID)
		assert.True(t, stored.AmountPaid.Equal(d("60.00")))
		assert.Equal(t, 1, f.payments.count())
	})

	t.Run("retries through a version conflict", func(t *testing.T) {
		f := newPaymentFixture(t)
		inv := f.seedInvoice(t, "100.00")
		f.invoices.lockConflicts = 1

		_, err := f.service.RecordManualPayment(ctx, f.tenantID, RecordManualPaymentRequest{
			CustomerID: f.customerID, InvoiceID: &inv.ID, Method: billing.PaymentMethodCash, Amount: d("60.00"),
		})
		require.NoError(t, err)
		assert.True(t, f.invoice(t, inv.ID).AmountPaid.Equal(d("60.00")))
	})

	t.Run("gives up after repeated conflicts", func(t *testing.T) {
		f := newPaymentFixture(t)
		inv := f.seedInvoice(t, "100.00")
		f.invoices.lockConflicts = maxApplyAttempts

		_, err := f.service.RecordManualPayment(ctx, f.tenantID, RecordManualPaymentRequest{
			CustomerID: f.customerID, InvoiceID: &inv.ID, Method: billing.PaymentMethodCash, Amount: d("60.00"),
		})
		assert.True(t, shared.IsDomainErrorWithCode(err, shared.CodeConcurrencyConflict))
		assert.Equal(t, 0, f.payments.count())
	})
}

func TestInitiateGatewayPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a pending payment with the processor handle", func(t *testing.T) {
		f := newPaymentFixture(t)
		inv := f.seedInvoice(t, "100.00")

		resp, err := f.service.InitiateGatewayPayment(ctx, f.tenantID, InitiateGatewayPaymentRequest{
			InvoiceID: inv.ID, Amount: d("100.00"),
		})
		require.NoError(t, err)

		assert.Equal(t, billing.PaymentStatusPending, resp.Payment.Status)
		assert.True(t, resp.Payment.ProcessorFee.Equal(d("3.20")))
		assert.True(t, resp.Payment.NetAmount.Equal(d("96.80")))
		assert.NotEmpty(t, resp.ClientSecret)
		assert.Equal(t, 1, f.gateway.chargeCount())

		// Pending payments do not touch the balance
		stored := f.invoice(t, inv.ID)
		assert.Equal(t, billing.InvoiceStatusSent, stored.Status)
		assert.True(t, stored.AmountPaid.IsZero())
	})

	t.Run("charges minor units", func(t *testing.T) {
		f := newPaymentFixture(t)
		inv := f.seedInvoice(t, "254.25")

		_, err := f.service.InitiateGatewayPayment(ctx, f.tenantID, InitiateGatewayPaymentRequest{
			InvoiceID: inv.ID, Amount: d("254.25"),
		})
		require.NoError(t, err)
		require.Equal(t, 1, f.gateway.chargeCount())
		assert.Equal(t, int64(25425), f.gateway.charges[0].AmountMinor)
	})

	t.Run("rejects amounts beyond the open balance before charging", func(t *testing.T) {
		f := newPaymentFixture(t)
		inv := f.seedInvoice(t, "100.00")

		_, err := f.service.InitiateGatewayPayment(ctx, f.tenantID, InitiateGatewayPaymentRequest{
			InvoiceID: inv.ID, Amount: d("100.01"),
		})
		assert.True(t, shared.IsDomainErrorWithCode(err, shared.CodeExceedsBalance))
		assert.Equal(t, 0, f.gateway.chargeCount())
	})

	t.Run("processor failure leaves no payment row", func(t *testing.T) {
		f := newPaymentFixture(t)
		inv := f.seedInvoice(t, "100.00")
		f.gateway.chargeErr = errors.New("processor unavailable")

		_, err := f.service.InitiateGatewayPayment(ctx, f.tenantID, InitiateGatewayPaymentRequest{
			InvoiceID: inv.ID, Amount: d("100.00"),
		})
		require.Error(t, err)
		assert.Equal(t, 0, f.payments.count())
	})

	t.Run("requires a configured gateway", func(t *testing.T) {
		f := newPaymentFixture(t)
		inv := f.seedInvoice(t, "100.00")

		noGateway := NewPaymentService(PaymentServiceConfig{
			PaymentRepo: f.payments,
			RefundRepo:  f.refunds,
			InvoiceRepo: f.invoices,
			UnitOfWork:  &memUnitOfWork{},
		})
		_, err := noGateway.InitiateGatewayPayment(ctx, f.tenantID, InitiateGatewayPaymentRequest{
			InvoiceID: inv.ID, Amount: d("100.00"),
		})
		assert.True(t, shared.IsDomainErrorWithCode(err, shared.CodeInvalidState))
	})
}

// initiateGateway starts a gateway payment and returns its processor request ID
func initiateGateway(t *testing.T, f *paymentFixture, invoiceID uuid.UUID, amount string) string {
	t.Helper()
	resp, err := f.service.InitiateGatewayPayment(context.Background(), f.tenantID, InitiateGatewayPaymentRequest{
		InvoiceID: invoiceID, Amount: d(amount),
	})
	require.NoError(t, err)
	return resp.Payment.GatewayRequestID
}

func TestHandleWebhook(t *testing.T) {
	ctx := context.Background()

	t.Run("success event confirms the payment and settles the invoice", func(t *testing.T) {
		f := newPaymentFixture(t)
		inv := f.seedInvoice(t, "100.00")
		requestID := initiateGateway(t, f, inv.ID, "100.00")

		err := f.service.HandleWebhook(ctx, billing.WebhookEvent{
			EventID:   "evt_1",
			Type:      billing.WebhookPaymentSucceeded,
			RequestID: requestID,
			ChargeID:  "ch_1",
		})
		require.NoError(t, err)

		payment, err := f.payments.FindByGatewayRequestID(ctx, requestID)
		require.NoError(t, err)
		assert.Equal(t, billing.PaymentStatusCompleted, payment.Status)
		assert.Equal(t, "ch_1", payment.GatewayChargeID)

		// The gross amount settles the invoice; the fee only reduces what
		// is refundable later.
		stored := f.invoice(t, inv.ID)
		assert.Equal(t, billing.InvoiceStatusPaid, stored.Status)
		assert.True(t, stored.AmountPaid.Equal(d("100.00")))
	})

	t.Run("replayed events are filtered", func(t *testing.T) {
		f := newPaymentFixture(t)
		inv := f.seedInvoice(t, "100.00")
		requestID := initiateGateway(t, f, inv.ID, "100.00")

		event := billing.WebhookEvent{
			EventID:   "evt_replay",
			Type:      billing.WebhookPaymentSucceeded,
			RequestID: requestID,
			ChargeID:  "ch_1",
		}
		require.NoError(t, f.service.HandleWebhook(ctx, event))
		version := f.invoice(t, inv.ID).Version

		require.NoError(t, f.service.HandleWebhook(ctx, event))
		assert.Equal(t, version, f.invoice(t, inv.ID).Version, "replay must not touch the invoice")
	})

	t.Run("events for unknown payments are ignored", func(t *testing.T) {
		f := newPaymentFixture(t)

		err := f.service.HandleWebhook(ctx, billing.WebhookEvent{
			EventID:   "evt_unknown",
			Type:      billing.WebhookPaymentSucceeded,
			RequestID: "pi_never_seen",
			ChargeID:  "ch_1",
		})
		assert.NoError(t, err, "unknown payments must not make the processor retry forever")
	})

	t.Run("failure event marks the payment failed and spares the invoice", func(t *testing.T) {
		f := newPaymentFixture(t)
		inv := f.seedInvoice(t, "100.00")
		requestID := initiateGateway(t, f, inv.ID, "100.00")

		err := f.service.HandleWebhook(ctx, billing.WebhookEvent{
			EventID:       "evt_2",
			Type:          billing.WebhookPaymentFailed,
			RequestID:     requestID,
			FailureReason: "card_declined",
		})
		require.NoError(t, err)

		payment, err := f.payments.FindByGatewayRequestID(ctx, requestID)
		require.NoError(t, err)
		assert.Equal(t, billing.PaymentStatusFailed, payment.Status)
		assert.Equal(t, "card_declined", payment.FailureReason)

		stored := f.invoice(t, inv.ID)
		assert.Equal(t, billing.InvoiceStatusSent, stored.Status)
		assert.True(t, stored.AmountPaid.IsZero())
	})

	t.Run("late failure after confirmation is ignored", func(t *testing.T) {
		f := newPaymentFixture(t)
		inv := f.seedInvoice(t, "100.00")
		requestID := initiateGateway(t, f, inv.ID, "100.00")

		require.NoError(t, f.service.HandleWebhook(ctx, billing.WebhookEvent{
			EventID: "evt_3", Type: billing.WebhookPaymentSucceeded, RequestID: requestID, ChargeID: "ch_1",
		}))
		require.NoError(t, f.service.HandleWebhook(ctx, billing.WebhookEvent{
			EventID: "evt_4", Type: billing.WebhookPaymentFailed, RequestID: requestID, FailureReason: "late",
		}))

		payment, err := f.payments.FindByGatewayRequestID(ctx, requestID)
		require.NoError(t, err)
		assert.Equal(t, billing.PaymentStatusCompleted, payment.Status)
	})

	t.Run("unhandled event types are acknowledged", func(t *testing.T) {
		f := newPaymentFixture(t)
		inv := f.seedInvoice(t, "100.00")
		requestID := initiateGateway(t, f, inv.ID, "100.00")

		err := f.service.HandleWebhook(ctx, billing.WebhookEvent{
			EventID: "evt_5", Type: "payment_intent.created", RequestID: requestID,
		})
		assert.NoError(t, err)
	})
}

func TestRefundPayment(t *testing.T) {
	ctx := context.Background()

	// confirmedGatewayPayment settles a 100.00 invoice through the gateway
	// and returns the completed payment
	confirmedGatewayPayment := func(t *testing.T, f *paymentFixture) (*billing.Invoice, *billing.Payment) {
		t.Helper()
		inv := f.seedInvoice(t, "100.00")
		requestID := initiateGateway(t, f, inv.ID, "100.00")
		require.NoError(t, f.service.HandleWebhook(ctx, billing.WebhookEvent{
			EventID: "evt_" + requestID, Type: billing.WebhookPaymentSucceeded, RequestID: requestID, ChargeID: "ch_1",
		}))
		payment, err := f.payments.FindByGatewayRequestID(ctx, requestID)
		require.NoError(t, err)
		return inv, payment
	}

	t.Run("gateway refunds are capped at the net amount", func(t *testing.T) {
		f := newPaymentFixture(t)
		inv, payment := confirmedGatewayPayment(t, f)

		_, err := f.service.Refund(ctx, f.tenantID, payment.ID, RefundPaymentRequest{Amount: d("96.81")})
		assert.True(t, shared.IsDomainErrorWithCode(err, shared.CodeExceedsRefundable))
		assert.Equal(t, 0, f.gateway.refundCount())

		resp, err := f.service.Refund(ctx, f.tenantID, payment.ID, RefundPaymentRequest{Amount: d("96.80"), Reason: "order cancelled"})
		require.NoError(t, err)
		assert.NotEmpty(t, resp.GatewayRefundID)
		assert.Equal(t, 1, f.gateway.refundCount())
		assert.Equal(t, int64(9680), f.gateway.refunds[0].AmountMinor)

		stored, err := f.payments.FindByID(ctx, f.tenantID, payment.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.PaymentStatusRefunded, stored.Status)

		// The fee portion stays settled against the invoice
		invStored := f.invoice(t, inv.ID)
		assert.Equal(t, billing.InvoiceStatusPartiallyPaid, invStored.Status)
		assert.True(t, invStored.AmountPaid.Equal(d("3.20")), "amount paid %s", invStored.AmountPaid)
	})

	t.Run("manual refunds are capped at the gross amount", func(t *testing.T) {
		f := newPaymentFixture(t)
		inv := f.seedInvoice(t, "100.00")

		paid, err := f.service.RecordManualPayment(ctx, f.tenantID, RecordManualPaymentRequest{
			CustomerID: f.customerID, InvoiceID: &inv.ID, Method: billing.PaymentMethodCheck, Amount: d("50.00"),
		})
		require.NoError(t, err)

		_, err = f.service.Refund(ctx, f.tenantID, paid.ID, RefundPaymentRequest{Amount: d("50.00"), Reason: "returned"})
		require.NoError(t, err)
		assert.Equal(t, 0, f.gateway.refundCount(), "manual refunds never touch the processor")

		stored := f.invoice(t, inv.ID)
		assert.Equal(t, billing.InvoiceStatusSent, stored.Status)
		assert.True(t, stored.AmountPaid.IsZero())

		refunds, err := f.service.ListRefunds(ctx, f.tenantID, paid.ID)
		require.NoError(t, err)
		require.Len(t, refunds, 1)
		assert.True(t, refunds[0].Amount.Equal(d("50.00")))
	})

	t.Run("on-account payments refund without touching any invoice", func(t *testing.T) {
		f := newPaymentFixture(t)

		paid, err := f.service.RecordManualPayment(ctx, f.tenantID, RecordManualPaymentRequest{
			CustomerID: f.customerID, Method: billing.PaymentMethodCash, Amount: d("80.00"),
		})
		require.NoError(t, err)

		resp, err := f.service.Refund(ctx, f.tenantID, paid.ID, RefundPaymentRequest{Amount: d("80.00"), Reason: "credit returned"})
		require.NoError(t, err)
		assert.Nil(t, resp.InvoiceID)

		stored, err := f.payments.FindByID(ctx, f.tenantID, paid.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.PaymentStatusRefunded, stored.Status)

		refunds, err := f.service.ListRefunds(ctx, f.tenantID, paid.ID)
		require.NoError(t, err)
		require.Len(t, refunds, 1)
		assert.Nil(t, refunds[0].InvoiceID)
	})

	t.Run("partial refunds accumulate", func(t *testing.T) {
		f := newPaymentFixture(t)
		_, payment := confirmedGatewayPayment(t, f)

		_, err := f.service.Refund(ctx, f.tenantID, payment.ID, RefundPaymentRequest{Amount: d("50.00")})
		require.NoError(t, err)

		stored, err := f.payments.FindByID(ctx, f.tenantID, payment.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.PaymentStatusPartiallyRefunded, stored.Status)

		_, err = f.service.Refund(ctx, f.tenantID, payment.ID, RefundPaymentRequest{Amount: d("46.81")})
		assert.True(t, shared.IsDomainErrorWithCode(err, shared.CodeExceedsRefundable))
	})

	t.Run("pending payments cannot be refunded", func(t *testing.T) {
		f := newPaymentFixture(t)
		inv := f.seedInvoice(t, "100.00")
		resp, err := f.service.InitiateGatewayPayment(ctx, f.tenantID, InitiateGatewayPaymentRequest{
			InvoiceID: inv.ID, Amount: d("100.00"),
		})
		require.NoError(t, err)

		_, err = f.service.Refund(ctx, f.tenantID, resp.Payment.ID, RefundPaymentRequest{Amount: d("10.00")})
		assert.True(t, shared.IsDomainErrorWithCode(err, shared.CodeExceedsRefundable))
	})
}

func TestListByInvoice(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture(t)
	inv := f.seedInvoice(t, "100.00")

	_, err := f.service.RecordManualPayment(ctx, f.tenantID, RecordManualPaymentRequest{
		CustomerID: f.customerID, InvoiceID: &inv.ID, Method: billing.PaymentMethodCash, Amount: d("30.00"),
	})
	require.NoError(t, err)
	_, err = f.service.RecordManualPayment(ctx, f.tenantID, RecordManualPaymentRequest{
		CustomerID: f.customerID, InvoiceID: &inv.ID, Method: billing.PaymentMethodCheck, Amount: d("20.00"),
	})
	require.NoError(t, err)

	payments, err := f.service.ListByInvoice(ctx, f.tenantID, inv.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 2)
}

package persistence

import (
	"context"
	"testing"

	"github.com/finbooks/backend/internal/domain/billing"
	"github.com/finbooks/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormPaymentRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("round-trips a manual payment", func(t *testing.T) {
		repo := NewGormPaymentRepository(testDB(t))
		tenantID := uuid.New()
		invoiceID := uuid.New()

		p, err := billing.NewManualPayment(tenantID, &invoiceID, uuid.New(),
			billing.PaymentMethodCheck, d("60.00"), "USD", "check #1042")
		require.NoError(t, err)
		p.ClearDomainEvents()
		require.NoError(t, repo.Save(ctx, p))

		stored, err := repo.FindByID(ctx, tenantID, p.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.PaymentStatusCompleted, stored.Status)
		assert.True(t, stored.Amount.Equal(d("60.00")))
		require.NotNil(t, stored.InvoiceID)
		assert.Equal(t, invoiceID, *stored.InvoiceID)

		_, err = repo.FindByID(ctx, uuid.New(), p.ID)
		assert.True(t, isNotFound(err), "lookups are tenant-scoped")
	})

	t.Run("stores on-account payments without an invoice", func(t *testing.T) {
		repo := NewGormPaymentRepository(testDB(t))
		tenantID := uuid.New()

		p, err := billing.NewManualPayment(tenantID, nil, uuid.New(),
			billing.PaymentMethodBankTransfer, d("250.00"), "USD", "wire")
		require.NoError(t, err)
		p.ClearDomainEvents()
		require.NoError(t, repo.Save(ctx, p))

		stored, err := repo.FindByID(ctx, tenantID, p.ID)
		require.NoError(t, err)
		assert.Nil(t, stored.InvoiceID)

		// Invoice-scoped listing must not pick it up
		payments, err := repo.FindByInvoiceID(ctx, tenantID, uuid.New())
		require.NoError(t, err)
		assert.Empty(t, payments)
	})

	t.Run("resolves webhooks by gateway request ID across tenants", func(t *testing.T) {
		repo := NewGormPaymentRepository(testDB(t))
		tenantID := uuid.New()

		p, err := billing.NewGatewayPayment(tenantID, uuid.New(), uuid.New(),
			d("100.00"), "USD", "pi_123")
		require.NoError(t, err)
		p.ClearDomainEvents()
		require.NoError(t, repo.Save(ctx, p))

		stored, err := repo.FindByGatewayRequestID(ctx, "pi_123")
		require.NoError(t, err)
		assert.Equal(t, p.ID, stored.ID)

		_, err = repo.FindByGatewayRequestID(ctx, "pi_never_seen")
		assert.True(t, isNotFound(err))
	})

	t.Run("lists payments for an invoice in order", func(t *testing.T) {
		repo := NewGormPaymentRepository(testDB(t))
		tenantID := uuid.New()
		invoiceID := uuid.New()

		for _, amount := range []string{"30.00", "20.00"} {
			p, err := billing.NewManualPayment(tenantID, &invoiceID, uuid.New(),
				billing.PaymentMethodCash, d(amount), "USD", "")
			require.NoError(t, err)
			p.ClearDomainEvents()
			require.NoError(t, repo.Save(ctx, p))
		}

		payments, err := repo.FindByInvoiceID(ctx, tenantID, invoiceID)
		require.NoError(t, err)
		assert.Len(t, payments, 2)
	})

	t.Run("save with lock rejects a stale writer", func(t *testing.T) {
		repo := NewGormPaymentRepository(testDB(t))
		tenantID := uuid.New()

		p, err := billing.NewGatewayPayment(tenantID, uuid.New(), uuid.New(),
			d("100.00"), "USD", "pi_123")
		require.NoError(t, err)
		p.ClearDomainEvents()
		require.NoError(t, repo.Save(ctx, p))

		winner, err := repo.FindByID(ctx, tenantID, p.ID)
		require.NoError(t, err)
		loser, err := repo.FindByID(ctx, tenantID, p.ID)
		require.NoError(t, err)

		require.NoError(t, winner.ConfirmGateway("ch_1"))
		require.NoError(t, repo.SaveWithLock(ctx, winner))

		require.NoError(t, loser.FailGateway("late"))
		err = repo.SaveWithLock(ctx, loser)
		assert.True(t, shared.IsDomainErrorWithCode(err, shared.CodeConcurrencyConflict))

		stored, err := repo.FindByID(ctx, tenantID, p.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.PaymentStatusCompleted, stored.Status)
	})
}

func TestGormRefundRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewGormRefundRepository(testDB(t))
	tenantID := uuid.New()
	paymentID := uuid.New()
	invoiceID := uuid.New()

	withInvoice, err := billing.NewRefund(tenantID, paymentID, &invoiceID, d("40.00"), "returned")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, withInvoice))

	onAccount, err := billing.NewRefund(tenantID, paymentID, nil, d("10.00"), "credit returned")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, onAccount))

	refunds, err := repo.FindByPaymentID(ctx, tenantID, paymentID)
	require.NoError(t, err)
	assert.Len(t, refunds, 2)

	stored, err := repo.FindByID(ctx, tenantID, onAccount.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.InvoiceID)

	_, err = repo.FindByID(ctx, uuid.New(), withInvoice.ID)
	assert.True(t, isNotFound(err), "lookups are tenant-scoped")
}

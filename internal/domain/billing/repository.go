package billing

import (
	"context"

	"github.com/finbooks/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// InvoiceRepository defines persistence for invoices. It doubles as the
// SequenceSource for document-number allocation.
type InvoiceRepository interface {
	SequenceSource

	// Save inserts or updates an invoice together with its line items.
	// A unique-constraint violation on (tenant_id, invoice_number) is
	// reported as an ALREADY_EXISTS domain error.
	Save(ctx context.Context, invoice *Invoice) error

	// SaveWithLock updates the invoice with an optimistic version check.
	// Returns a CONCURRENCY_CONFLICT domain error if the stored version
	// does not match.
	SaveWithLock(ctx context.Context, invoice *Invoice) error

	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error)
	FindByNumber(ctx context.Context, tenantID uuid.UUID, invoiceNumber string) (*Invoice, error)
	FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[Invoice], error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// PaymentRepository defines persistence for payments
type PaymentRepository interface {
	Save(ctx context.Context, payment *Payment) error
	SaveWithLock(ctx context.Context, payment *Payment) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Payment, error)
	// FindByGatewayRequestID resolves a processor webhook to its pending
	// payment. Lookup is by gateway ID alone: webhooks carry no tenant.
	FindByGatewayRequestID(ctx context.Context, gatewayRequestID string) (*Payment, error)
	FindByInvoiceID(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]Payment, error)
	FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[Payment], error)
}

// RefundRepository defines persistence for refunds
type RefundRepository interface {
	Save(ctx context.Context, refund *Refund) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Refund, error)
	FindByPaymentID(ctx context.Context, tenantID, paymentID uuid.UUID) ([]Refund, error)
}

// QuoteRepository defines persistence for quotes
type QuoteRepository interface {
	Save(ctx context.Context, quote *Quote) error
	SaveWithLock(ctx context.Context, quote *Quote) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Quote, error)
	FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[Quote], error)
}

package billing

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/finbooks/backend/internal/domain/billing"
	"github.com/finbooks/backend/internal/domain/partner"
	"github.com/finbooks/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// snapshotter lets the fake unit of work roll a store back when the
// transaction function fails
type snapshotter interface {
	snapshot() (restore func())
}

// memUnitOfWork serializes transactions with a mutex and restores every
// registered store on failure, mimicking database rollback
type memUnitOfWork struct {
	mu     sync.Mutex
	stores []snapshotter
}

func (u *memUnitOfWork) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	restores := make([]func(), 0, len(u.stores))
	for _, s := range u.stores {
		restores = append(restores, s.snapshot())
	}

	if err := fn(ctx); err != nil {
		for _, restore := range restores {
			restore()
		}
		return err
	}
	return nil
}

func copyInvoice(inv *billing.Invoice) *billing.Invoice {
	cp := *inv
	cp.LineItems = append([]billing.InvoiceLineItem(nil), inv.LineItems...)
	return &cp
}

type memInvoiceRepo struct {
	mu       sync.Mutex
	invoices map[uuid.UUID]*billing.Invoice
	order    []uuid.UUID
	// deleted marks soft-deleted invoices: hidden from reads but still
	// claiming their invoice number, like rows with a deleted_at timestamp
	deleted map[uuid.UUID]bool
	// staleReads makes HighestNumber return an empty result N times,
	// forcing the caller to pick an already-taken candidate number
	staleReads int
	// lockConflicts makes SaveWithLock fail N times with a version conflict
	lockConflicts int
	// saveErr, when set, is returned by every Save call
	saveErr error
}

func newMemInvoiceRepo() *memInvoiceRepo {
	return &memInvoiceRepo{
		invoices: make(map[uuid.UUID]*billing.Invoice),
		deleted:  make(map[uuid.UUID]bool),
	}
}

func (r *memInvoiceRepo) snapshot() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	saved := make(map[uuid.UUID]*billing.Invoice, len(r.invoices))
	for id, inv := range r.invoices {
		saved[id] = inv
	}
	savedOrder := append([]uuid.UUID(nil), r.order...)
	savedDeleted := make(map[uuid.UUID]bool, len(r.deleted))
	for id := range r.deleted {
		savedDeleted[id] = true
	}
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.invoices = saved
		r.order = savedOrder
		r.deleted = savedDeleted
	}
}

func (r *memInvoiceRepo) Save(ctx context.Context, inv *billing.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	for id, existing := range r.invoices {
		if id != inv.ID && existing.TenantID == inv.TenantID && existing.InvoiceNumber == inv.InvoiceNumber {
			return shared.NewDomainError(shared.CodeAlreadyExists, "Invoice number already exists")
		}
	}
	if _, exists := r.invoices[inv.ID]; !exists {
		r.order = append(r.order, inv.ID)
	}
	r.invoices[inv.ID] = copyInvoice(inv)
	return nil
}

func (r *memInvoiceRepo) SaveWithLock(ctx context.Context, inv *billing.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lockConflicts > 0 {
		r.lockConflicts--
		return shared.ErrConcurrencyConflict
	}
	stored, ok := r.invoices[inv.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if stored.Version != inv.Version-1 {
		return shared.ErrConcurrencyConflict
	}
	r.invoices[inv.ID] = copyInvoice(inv)
	return nil
}

func (r *memInvoiceRepo) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*billing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok || inv.TenantID != tenantID || r.deleted[id] {
		return nil, shared.ErrNotFound
	}
	return copyInvoice(inv), nil
}

func (r *memInvoiceRepo) FindByNumber(ctx context.Context, tenantID uuid.UUID, invoiceNumber string) (*billing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, inv := range r.invoices {
		if inv.TenantID == tenantID && inv.InvoiceNumber == invoiceNumber && !r.deleted[id] {
			return copyInvoice(inv), nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memInvoiceRepo) FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[billing.Invoice], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]billing.Invoice, 0)
	for _, id := range r.order {
		inv := r.invoices[id]
		if inv.TenantID != tenantID || r.deleted[id] {
			continue
		}
		if status, ok := filter.Filters["status"].(string); ok && string(inv.Status) != status {
			continue
		}
		items = append(items, *copyInvoice(inv))
	}
	page := shared.NewPaginated(items, int64(len(items)), filter.Page, filter.PageSize)
	return &page, nil
}

func (r *memInvoiceRepo) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok || inv.TenantID != tenantID || r.deleted[id] {
		return shared.ErrNotFound
	}
	r.deleted[id] = true
	return nil
}

func (r *memInvoiceRepo) HighestNumber(ctx context.Context, tenantID uuid.UUID, prefix string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.staleReads > 0 {
		r.staleReads--
		return "", nil
	}
	// Deleted invoices still count: their numbers stay reserved
	for i := len(r.order) - 1; i >= 0; i-- {
		inv := r.invoices[r.order[i]]
		if inv.TenantID == tenantID && strings.HasPrefix(inv.InvoiceNumber, prefix) {
			return inv.InvoiceNumber, nil
		}
	}
	return "", nil
}

var _ billing.InvoiceRepository = (*memInvoiceRepo)(nil)

type memPaymentRepo struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*billing.Payment
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{payments: make(map[uuid.UUID]*billing.Payment)}
}

func (r *memPaymentRepo) snapshot() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	saved := make(map[uuid.UUID]*billing.Payment, len(r.payments))
	for id, p := range r.payments {
		saved[id] = p
	}
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.payments = saved
	}
}

func (r *memPaymentRepo) Save(ctx context.Context, p *billing.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.payments[p.ID] = &cp
	return nil
}

func (r *memPaymentRepo) SaveWithLock(ctx context.Context, p *billing.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.payments[p.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if stored.Version != p.Version-1 {
		return shared.ErrConcurrencyConflict
	}
	cp := *p
	r.payments[p.ID] = &cp
	return nil
}

func (r *memPaymentRepo) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*billing.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok || p.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memPaymentRepo) FindByGatewayRequestID(ctx context.Context, gatewayRequestID string) (*billing.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.GatewayRequestID != "" && p.GatewayRequestID == gatewayRequestID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memPaymentRepo) FindByInvoiceID(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]billing.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]billing.Payment, 0)
	for _, p := range r.payments {
		if p.TenantID == tenantID && p.InvoiceID != nil && *p.InvoiceID == invoiceID {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (r *memPaymentRepo) FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[billing.Payment], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]billing.Payment, 0)
	for _, p := range r.payments {
		if p.TenantID == tenantID {
			items = append(items, *p)
		}
	}
	page := shared.NewPaginated(items, int64(len(items)), filter.Page, filter.PageSize)
	return &page, nil
}

func (r *memPaymentRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payments)
}

var _ billing.PaymentRepository = (*memPaymentRepo)(nil)

type memRefundRepo struct {
	mu      sync.Mutex
	refunds map[uuid.UUID]*billing.Refund
}

func newMemRefundRepo() *memRefundRepo {
	return &memRefundRepo{refunds: make(map[uuid.UUID]*billing.Refund)}
}

func (r *memRefundRepo) snapshot() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	saved := make(map[uuid.UUID]*billing.Refund, len(r.refunds))
	for id, ref := range r.refunds {
		saved[id] = ref
	}
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.refunds = saved
	}
}

func (r *memRefundRepo) Save(ctx context.Context, refund *billing.Refund) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *refund
	r.refunds[refund.ID] = &cp
	return nil
}

func (r *memRefundRepo) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*billing.Refund, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref, ok := r.refunds[id]
	if !ok || ref.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	cp := *ref
	return &cp, nil
}

func (r *memRefundRepo) FindByPaymentID(ctx context.Context, tenantID, paymentID uuid.UUID) ([]billing.Refund, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]billing.Refund, 0)
	for _, ref := range r.refunds {
		if ref.TenantID == tenantID && ref.PaymentID == paymentID {
			result = append(result, *ref)
		}
	}
	return result, nil
}

var _ billing.RefundRepository = (*memRefundRepo)(nil)

type memQuoteRepo struct {
	mu     sync.Mutex
	quotes map[uuid.UUID]*billing.Quote
}

func newMemQuoteRepo() *memQuoteRepo {
	return &memQuoteRepo{quotes: make(map[uuid.UUID]*billing.Quote)}
}

func (r *memQuoteRepo) snapshot() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	saved := make(map[uuid.UUID]*billing.Quote, len(r.quotes))
	for id, q := range r.quotes {
		saved[id] = q
	}
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.quotes = saved
	}
}

func copyQuote(q *billing.Quote) *billing.Quote {
	cp := *q
	cp.LineItems = append([]billing.QuoteLineItem(nil), q.LineItems...)
	return &cp
}

func (r *memQuoteRepo) Save(ctx context.Context, q *billing.Quote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.quotes[q.ID] = copyQuote(q)
	return nil
}

func (r *memQuoteRepo) SaveWithLock(ctx context.Context, q *billing.Quote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.quotes[q.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if stored.Version != q.Version-1 {
		return shared.ErrConcurrencyConflict
	}
	r.quotes[q.ID] = copyQuote(q)
	return nil
}

func (r *memQuoteRepo) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*billing.Quote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.quotes[id]
	if !ok || q.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	return copyQuote(q), nil
}

func (r *memQuoteRepo) FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[billing.Quote], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]billing.Quote, 0)
	for _, q := range r.quotes {
		if q.TenantID == tenantID {
			items = append(items, *copyQuote(q))
		}
	}
	page := shared.NewPaginated(items, int64(len(items)), filter.Page, filter.PageSize)
	return &page, nil
}

var _ billing.QuoteRepository = (*memQuoteRepo)(nil)

type memCustomerRepo struct {
	mu        sync.Mutex
	customers map[uuid.UUID]*partner.Customer
}

func newMemCustomerRepo() *memCustomerRepo {
	return &memCustomerRepo{customers: make(map[uuid.UUID]*partner.Customer)}
}

func (r *memCustomerRepo) Save(ctx context.Context, c *partner.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.customers[c.ID] = &cp
	return nil
}

func (r *memCustomerRepo) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*partner.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.customers[id]
	if !ok || c.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memCustomerRepo) FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[partner.Customer], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]partner.Customer, 0)
	for _, c := range r.customers {
		if c.TenantID == tenantID {
			items = append(items, *c)
		}
	}
	page := shared.NewPaginated(items, int64(len(items)), filter.Page, filter.PageSize)
	return &page, nil
}

func (r *memCustomerRepo) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.customers[id]
	if !ok || c.TenantID != tenantID {
		return shared.ErrNotFound
	}
	delete(r.customers, id)
	return nil
}

var _ partner.CustomerRepository = (*memCustomerRepo)(nil)

// memAuditSink collects audit entries for assertions
type memAuditSink struct {
	mu      sync.Mutex
	entries []billing.AuditEntry
}

func (s *memAuditSink) Record(ctx context.Context, entry billing.AuditEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
}

func (s *memAuditSink) byAction(action string) []billing.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	matched := make([]billing.AuditEntry, 0)
	for _, e := range s.entries {
		if e.Action == action {
			matched = append(matched, e)
		}
	}
	return matched
}

var _ billing.AuditSink = (*memAuditSink)(nil)

// fakeGateway records charges and refunds without talking to a processor
type fakeGateway struct {
	mu        sync.Mutex
	charges   []billing.ChargeRequest
	refunds   []billing.RefundRequest
	chargeErr error
}

func (g *fakeGateway) CreateCharge(ctx context.Context, req billing.ChargeRequest) (*billing.ChargeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.chargeErr != nil {
		return nil, g.chargeErr
	}
	g.charges = append(g.charges, req)
	return &billing.ChargeResult{
		RequestID:    fmt.Sprintf("pi_fake_%04d", len(g.charges)),
		ClientSecret: fmt.Sprintf("pi_fake_%04d_secret", len(g.charges)),
	}, nil
}

func (g *fakeGateway) Refund(ctx context.Context, req billing.RefundRequest) (*billing.RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds = append(g.refunds, req)
	return &billing.RefundResult{RefundID: fmt.Sprintf("re_fake_%04d", len(g.refunds))}, nil
}

func (g *fakeGateway) chargeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.charges)
}

func (g *fakeGateway) refundCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.refunds)
}

var _ billing.PaymentGateway = (*fakeGateway)(nil)

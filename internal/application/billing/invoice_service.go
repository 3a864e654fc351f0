package billing

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/finbooks/backend/internal/domain/billing"
	"github.com/finbooks/backend/internal/domain/partner"
	"github.com/finbooks/backend/internal/domain/shared"
	"github.com/finbooks/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InvoiceService handles invoice business operations
type InvoiceService struct {
	invoiceRepo    billing.InvoiceRepository
	quoteRepo      billing.QuoteRepository
	customerRepo   partner.CustomerRepository
	uow            shared.UnitOfWork
	eventPublisher shared.EventPublisher
	auditSink      billing.AuditSink
	logger         *zap.Logger
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(
	invoiceRepo billing.InvoiceRepository,
	quoteRepo billing.QuoteRepository,
	customerRepo partner.CustomerRepository,
	uow shared.UnitOfWork,
	logger *zap.Logger,
) *InvoiceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceService{
		invoiceRepo:  invoiceRepo,
		quoteRepo:    quoteRepo,
		customerRepo: customerRepo,
		uow:          uow,
		logger:       logger,
	}
}

// SetEventPublisher sets the event publisher for cross-context integration
func (s *InvoiceService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetAuditSink sets the audit sink for state-changing operations
func (s *InvoiceService) SetAuditSink(sink billing.AuditSink) {
	s.auditSink = sink
}

// Create creates a new draft invoice with an allocated invoice number
func (s *InvoiceService) Create(ctx context.Context, tenantID uuid.UUID, req CreateInvoiceRequest) (*InvoiceResponse, error) {
	customer, err := s.customerRepo.FindByID(ctx, tenantID, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if !customer.IsActive() {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "Cannot invoice an inactive customer")
	}

	issueDate := time.Now()
	if req.IssueDate != nil {
		issueDate = *req.IssueDate
	}

	inv, err := s.createWithNumber(ctx, tenantID, func(number string) (*billing.Invoice, error) {
		inv, err := billing.NewInvoice(
			tenantID,
			number,
			req.CustomerID,
			nil,
			valueobject.Currency(req.Currency),
			issueDate,
			req.DueDate,
			toLineItemInputs(req.Items),
			req.DepositRequired,
		)
		if err != nil {
			return nil, err
		}
		if req.Notes != "" {
			inv.SetNotes(req.Notes)
		}
		return inv, nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvents(ctx, inv)
	s.audit(ctx, tenantID, "invoice.create", inv.ID, fmt.Sprintf("Created invoice %s", inv.InvoiceNumber), "", invoiceSnapshot(inv))

	response := ToInvoiceResponse(inv)
	return &response, nil
}

// ConvertQuote creates an invoice from an accepted quote. The quote is
// marked converted in the same transaction as the invoice insert, so a
// quote can never produce two invoices.
func (s *InvoiceService) ConvertQuote(ctx context.Context, tenantID, quoteID uuid.UUID, dueDate *time.Time) (*InvoiceResponse, error) {
	quote, err := s.quoteRepo.FindByID(ctx, tenantID, quoteID)
	if err != nil {
		return nil, err
	}

	var inv *billing.Invoice
	createErr := s.withNumberRetry(ctx, tenantID, func(number string) error {
		candidate, err := billing.NewInvoice(
			tenantID,
			number,
			quote.CustomerID,
			&quote.ID,
			valueobject.DefaultCurrency,
			time.Now(),
			dueDate,
			quote.ToLineItemInputs(),
			decimal.Zero,
		)
		if err != nil {
			return err
		}
		// On a number-collision retry the quote is already marked converted;
		// just point it at the fresh candidate.
		if quote.Status == billing.QuoteStatusConverted {
			quote.InvoiceID = &candidate.ID
		} else if err := quote.MarkConverted(candidate.ID); err != nil {
			return err
		}

		err = s.uow.WithinTransaction(ctx, func(txCtx context.Context) error {
			if err := s.invoiceRepo.Save(txCtx, candidate); err != nil {
				return err
			}
			return s.quoteRepo.SaveWithLock(txCtx, quote)
		})
		if err != nil {
			return err
		}
		inv = candidate
		return nil
	})
	if createErr != nil {
		return nil, createErr
	}

	s.publishEvents(ctx, inv)
	s.publishEvents(ctx, quote)
	s.audit(ctx, tenantID, "quote.convert", quote.ID, fmt.Sprintf("Converted quote %s to invoice %s", quote.QuoteNumber, inv.InvoiceNumber), "", invoiceSnapshot(inv))

	response := ToInvoiceResponse(inv)
	return &response, nil
}

// GetByID retrieves an invoice by ID
func (s *InvoiceService) GetByID(ctx context.Context, tenantID, invoiceID uuid.UUID) (*InvoiceResponse, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	response := ToInvoiceResponse(inv)
	return &response, nil
}

// GetHistory retrieves an invoice with its full line-item version history
func (s *InvoiceService) GetHistory(ctx context.Context, tenantID, invoiceID uuid.UUID) (*InvoiceResponse, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	response := ToInvoiceHistoryResponse(inv)
	return &response, nil
}

// List retrieves invoices with filtering and pagination
func (s *InvoiceService) List(ctx context.Context, tenantID uuid.UUID, filter InvoiceListFilter) (*shared.Paginated[InvoiceResponse], error) {
	domainFilter := shared.DefaultFilter()
	if filter.Page > 0 {
		domainFilter.Page = filter.Page
	}
	if filter.PageSize > 0 {
		domainFilter.PageSize = filter.PageSize
	}
	if filter.OrderBy != "" {
		domainFilter.OrderBy = filter.OrderBy
	}
	if filter.OrderDir != "" {
		domainFilter.OrderDir = filter.OrderDir
	}
	domainFilter.Search = filter.Search
	if filter.CustomerID != nil {
		domainFilter.Filters["customer_id"] = *filter.CustomerID
	}
	if filter.Status != nil {
		domainFilter.Filters["status"] = string(*filter.Status)
	}

	page, err := s.invoiceRepo.FindAll(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, err
	}

	items := make([]InvoiceResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, ToInvoiceResponse(&page.Items[i]))
	}
	result := shared.NewPaginated(items, page.Total, page.Page, page.PageSize)
	return &result, nil
}

// Update modifies a draft invoice. Replacing line items re-versions them;
// prior versions are kept and marked superseded. The write is
// version-checked so an update can never stomp a concurrently applied
// payment.
func (s *InvoiceService) Update(ctx context.Context, tenantID, invoiceID uuid.UUID, req UpdateInvoiceRequest) (*InvoiceResponse, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	if !inv.CanModify() {
		return nil, shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("Cannot update invoice in %s status", inv.Status))
	}
	before := invoiceSnapshot(inv)

	if len(req.Items) > 0 {
		if err := inv.ReplaceLineItems(toLineItemInputs(req.Items)); err != nil {
			return nil, err
		}
	}
	if req.DueDate != nil {
		if err := inv.SetDueDate(req.DueDate); err != nil {
			return nil, err
		}
	}
	if req.DepositRequired != nil {
		if err := inv.SetDepositRequired(*req.DepositRequired); err != nil {
			return nil, err
		}
	}
	if req.Notes != nil {
		inv.SetNotes(*req.Notes)
	}

	inv.IncrementVersion()
	if err := s.invoiceRepo.SaveWithLock(ctx, inv); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, inv)
	s.audit(ctx, tenantID, "invoice.update", inv.ID, fmt.Sprintf("Updated invoice %s", inv.InvoiceNumber), before, invoiceSnapshot(inv))

	response := ToInvoiceResponse(inv)
	return &response, nil
}

// Send issues a draft invoice, freezing its structure
func (s *InvoiceService) Send(ctx context.Context, tenantID, invoiceID uuid.UUID) (*InvoiceResponse, error) {
	return s.transition(ctx, tenantID, invoiceID, "invoice.send", func(inv *billing.Invoice) error {
		return inv.Send()
	})
}

// MarkViewed records that the customer opened the invoice
func (s *InvoiceService) MarkViewed(ctx context.Context, tenantID, invoiceID uuid.UUID) (*InvoiceResponse, error) {
	return s.transition(ctx, tenantID, invoiceID, "invoice.view", func(inv *billing.Invoice) error {
		return inv.MarkViewed()
	})
}

// Cancel cancels an invoice
func (s *InvoiceService) Cancel(ctx context.Context, tenantID, invoiceID uuid.UUID, reason string) (*InvoiceResponse, error) {
	return s.transition(ctx, tenantID, invoiceID, "invoice.cancel", func(inv *billing.Invoice) error {
		return inv.Cancel(reason)
	})
}

// Delete soft-deletes an invoice. Only drafts and cancelled invoices can be
// removed. The row stays behind the soft-delete marker so its number remains
// burned and the sequence never reissues it.
func (s *InvoiceService) Delete(ctx context.Context, tenantID, invoiceID uuid.UUID) error {
	inv, err := s.invoiceRepo.FindByID(ctx, tenantID, invoiceID)
	if err != nil {
		return err
	}
	if inv.Status != billing.InvoiceStatusDraft && inv.Status != billing.InvoiceStatusCancelled {
		return shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("Cannot delete invoice in %s status", inv.Status))
	}

	if err := s.invoiceRepo.Delete(ctx, tenantID, invoiceID); err != nil {
		return err
	}

	s.audit(ctx, tenantID, "invoice.delete", inv.ID,
		fmt.Sprintf("Deleted invoice %s", inv.InvoiceNumber), invoiceSnapshot(inv), "")
	return nil
}

func (s *InvoiceService) transition(ctx context.Context, tenantID, invoiceID uuid.UUID, action string, fn func(*billing.Invoice) error) (*InvoiceResponse, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	before := invoiceSnapshot(inv)
	if err := fn(inv); err != nil {
		return nil, err
	}
	if err := s.invoiceRepo.SaveWithLock(ctx, inv); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, inv)
	s.audit(ctx, tenantID, action, inv.ID, fmt.Sprintf("Invoice %s is now %s", inv.InvoiceNumber, inv.Status), before, invoiceSnapshot(inv))

	response := ToInvoiceResponse(inv)
	return &response, nil
}

// createWithNumber builds and persists an invoice under the number-allocation
// retry loop
func (s *InvoiceService) createWithNumber(ctx context.Context, tenantID uuid.UUID, build func(number string) (*billing.Invoice, error)) (*billing.Invoice, error) {
	var inv *billing.Invoice
	err := s.withNumberRetry(ctx, tenantID, func(number string) error {
		candidate, err := build(number)
		if err != nil {
			return err
		}
		if err := s.invoiceRepo.Save(ctx, candidate); err != nil {
			return err
		}
		inv = candidate
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// withNumberRetry allocates sequential invoice numbers and retries the given
// insert on uniqueness collisions. Collisions happen when two creations read
// the same highest number; the loser re-reads and tries the next candidate.
// After the attempts are spent a timestamp fallback number keeps creation
// live, logged as a degraded allocation.
func (s *InvoiceService) withNumberRetry(ctx context.Context, tenantID uuid.UUID, insert func(number string) error) error {
	prefix := billing.InvoiceNumberPrefix(time.Now())

	for attempt := 1; attempt <= billing.MaxNumberAttempts; attempt++ {
		highest, err := s.invoiceRepo.HighestNumber(ctx, tenantID, prefix)
		if err != nil {
			return err
		}
		candidate := billing.NextInSequence(prefix, highest)

		err = insert(candidate)
		if err == nil {
			return nil
		}
		if !shared.IsDomainErrorWithCode(err, shared.CodeAlreadyExists) {
			return err
		}

		s.logger.Warn("Invoice number collision, retrying",
			zap.String("tenant_id", tenantID.String()),
			zap.String("candidate", candidate),
			zap.Int("attempt", attempt))

		// Randomized backoff so two colliding writers do not stay in lockstep
		time.Sleep(time.Duration(rand.Intn(20)+5) * time.Millisecond)
	}

	fallback := billing.FallbackNumber(prefix, time.Now())
	s.logger.Warn("Sequential invoice number allocation exhausted, using fallback",
		zap.String("tenant_id", tenantID.String()),
		zap.String("fallback", fallback))

	if err := insert(fallback); err != nil {
		if shared.IsDomainErrorWithCode(err, shared.CodeAlreadyExists) {
			return shared.ErrSequencerExhausted
		}
		return err
	}
	return nil
}

func (s *InvoiceService) publishEvents(ctx context.Context, aggregate shared.AggregateRoot) {
	if s.eventPublisher == nil {
		aggregate.ClearDomainEvents()
		return
	}
	for _, event := range aggregate.GetDomainEvents() {
		if err := s.eventPublisher.Publish(ctx, event); err != nil {
			s.logger.Warn("Failed to publish domain event",
				zap.String("event_type", event.EventType()),
				zap.Error(err))
			// Event delivery never fails the operation
		}
	}
	aggregate.ClearDomainEvents()
}

func (s *InvoiceService) audit(ctx context.Context, tenantID uuid.UUID, action string, entityID uuid.UUID, detail, before, after string) {
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
		EntityType: "Invoice",
		EntityID:   entityID,
		Detail:     detail,
		Before:     before,
		After:      after,
	})
}

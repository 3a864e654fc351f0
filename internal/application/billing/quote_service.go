package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/finbooks/backend/internal/domain/billing"
	"github.com/finbooks/backend/internal/domain/partner"
	"github.com/finbooks/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// QuoteService handles quote business operations
type QuoteService struct {
	quoteRepo    billing.QuoteRepository
	customerRepo partner.CustomerRepository
	logger       *zap.Logger
}

// NewQuoteService creates a new QuoteService
func NewQuoteService(quoteRepo billing.QuoteRepository, customerRepo partner.CustomerRepository, logger *zap.Logger) *QuoteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuoteService{
		quoteRepo:    quoteRepo,
		customerRepo: customerRepo,
		logger:       logger,
	}
}

// Create creates a new draft quote
func (s *QuoteService) Create(ctx context.Context, tenantID uuid.UUID, req CreateQuoteRequest) (*QuoteResponse, error) {
	customer, err := s.customerRepo.FindByID(ctx, tenantID, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if !customer.IsActive() {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "Cannot quote an inactive customer")
	}

	quoteNumber := fmt.Sprintf("QTE-%d", time.Now().UnixMilli())
	quote, err := billing.NewQuote(tenantID, quoteNumber, req.CustomerID, toLineItemInputs(req.Items), req.ValidUntil)
	if err != nil {
		return nil, err
	}

	if err := s.quoteRepo.Save(ctx, quote); err != nil {
		return nil, err
	}

	response := ToQuoteResponse(quote)
	return &response, nil
}

// GetByID retrieves a quote by ID
func (s *QuoteService) GetByID(ctx context.Context, tenantID, quoteID uuid.UUID) (*QuoteResponse, error) {
	quote, err := s.quoteRepo.FindByID(ctx, tenantID, quoteID)
	if err != nil {
		return nil, err
	}
	response := ToQuoteResponse(quote)
	return &response, nil
}

// List retrieves quotes with pagination
func (s *QuoteService) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[QuoteResponse], error) {
	page, err := s.quoteRepo.FindAll(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	items := make([]QuoteResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, ToQuoteResponse(&page.Items[i]))
	}
	result := shared.NewPaginated(items, page.Total, page.Page, page.PageSize)
	return &result, nil
}

// Send issues the quote to the customer
func (s *QuoteService) Send(ctx context.Context, tenantID, quoteID uuid.UUID) (*QuoteResponse, error) {
	return s.transition(ctx, tenantID, quoteID, func(q *billing.Quote) error { return q.Send() })
}

// Accept records customer acceptance
func (s *QuoteService) Accept(ctx context.Context, tenantID, quoteID uuid.UUID) (*QuoteResponse, error) {
	return s.transition(ctx, tenantID, quoteID, func(q *billing.Quote) error { return q.Accept() })
}

// Reject records customer rejection
func (s *QuoteService) Reject(ctx context.Context, tenantID, quoteID uuid.UUID) (*QuoteResponse, error) {
	return s.transition(ctx, tenantID, quoteID, func(q *billing.Quote) error { return q.Reject() })
}

func (s *QuoteService) transition(ctx context.Context, tenantID, quoteID uuid.UUID, fn func(*billing.Quote) error) (*QuoteResponse, error) {
	quote, err := s.quoteRepo.FindByID(ctx, tenantID, quoteID)
	if err != nil {
		return nil, err
	}
	if err := fn(quote); err != nil {
		return nil, err
	}
	if err := s.quoteRepo.Save(ctx, quote); err != nil {
		return nil, err
	}
	response := ToQuoteResponse(quote)
	return &response, nil
}

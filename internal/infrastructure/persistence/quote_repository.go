package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/finbooks/backend/internal/domain/billing"
	"github.com/finbooks/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormQuoteRepository implements QuoteRepository using GORM
type GormQuoteRepository struct {
	db *gorm.DB
}

// NewGormQuoteRepository creates a new GormQuoteRepository
func NewGormQuoteRepository(db *gorm.DB) *GormQuoteRepository {
	return &GormQuoteRepository{db: db}
}

// Save inserts or updates a quote with its line items
func (r *GormQuoteRepository) Save(ctx context.Context, quote *billing.Quote) error {
	db := dbFromContext(ctx, r.db)
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("LineItems").Save(quote).Error; err != nil {
			if isUniqueViolation(err) {
				return shared.NewDomainError(shared.CodeAlreadyExists, "Quote number already exists")
			}
			return err
		}
		for i := range quote.LineItems {
			quote.LineItems[i].QuoteID = quote.ID
			if err := tx.Save(&quote.LineItems[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveWithLock saves with optimistic locking. The partial unique index on
// invoice_id is the second line of defense against double conversion.
func (r *GormQuoteRepository) SaveWithLock(ctx context.Context, quote *billing.Quote) error {
	previousVersion := quote.Version - 1
	quote.UpdatedAt = time.Now()

	result := dbFromContext(ctx, r.db).Model(&billing.Quote{}).
		Where("id = ? AND tenant_id = ? AND version = ?", quote.ID, quote.TenantID, previousVersion).
		Updates(map[string]interface{}{
			"status":      quote.Status,
			"accepted_at": quote.AcceptedAt,
			"invoice_id":  quote.InvoiceID,
			"notes":       quote.Notes,
			"version":     quote.Version,
			"updated_at":  quote.UpdatedAt,
		})
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return shared.NewDomainError(shared.CodeInvalidState, "Quote has already been converted to an invoice")
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// FindByID finds a quote by ID within a tenant
func (r *GormQuoteRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*billing.Quote, error) {
	var quote billing.Quote
	if err := dbFromContext(ctx, r.db).
		Preload("LineItems").
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&quote).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &quote, nil
}

// FindAll finds quotes for a tenant with filtering and pagination
func (r *GormQuoteRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[billing.Quote], error) {
	base := dbFromContext(ctx, r.db).Model(&billing.Quote{}).Where("tenant_id = ?", tenantID)

	if filter.Search != "" {
		base = base.Where("quote_number ILIKE ?", "%"+filter.Search+"%")
	}
	for key, value := range filter.Filters {
		switch key {
		case "customer_id":
			base = base.Where("customer_id = ?", value)
		case "status":
			base = base.Where("status = ?", value)
		}
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, err
	}

	query := base
	if filter.OrderBy != "" {
		dir := "ASC"
		if strings.ToLower(filter.OrderDir) == "desc" {
			dir = "DESC"
		}
		query = query.Order(filter.OrderBy + " " + dir)
	} else {
		query = query.Order("created_at DESC")
	}
	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset((filter.Page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var quotes []billing.Quote
	if err := query.Preload("LineItems").Find(&quotes).Error; err != nil {
		return nil, err
	}

	page := shared.NewPaginated(quotes, total, filter.Page, filter.PageSize)
	return &page, nil
}

// Ensure GormQuoteRepository implements QuoteRepository
var _ billing.QuoteRepository = (*GormQuoteRepository)(nil)

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

// GormInvoiceRepository implements InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// isUniqueViolation reports whether err is a unique-constraint violation.
// GORM translates most driver errors to ErrDuplicatedKey; the string checks
// cover drivers that don't.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}

// FindByID finds an invoice by ID within a tenant, including every stored
// line-item version
func (r *GormInvoiceRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*billing.Invoice, error) {
	var inv billing.Invoice
	if err := dbFromContext(ctx, r.db).
		Preload("LineItems").
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&inv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// FindByNumber finds an invoice by invoice number within a tenant
func (r *GormInvoiceRepository) FindByNumber(ctx context.Context, tenantID uuid.UUID, invoiceNumber string) (*billing.Invoice, error) {
	var inv billing.Invoice
	if err := dbFromContext(ctx, r.db).
		Preload("LineItems").
		Where("tenant_id = ? AND invoice_number = ?", tenantID, invoiceNumber).
		First(&inv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// FindAll finds invoices for a tenant with filtering and pagination
func (r *GormInvoiceRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[billing.Invoice], error) {
	base := dbFromContext(ctx, r.db).Model(&billing.Invoice{}).Where("tenant_id = ?", tenantID)
	base = r.applyFilters(base, filter)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, err
	}

	var invoices []billing.Invoice
	query := r.applyOrdering(base, filter)
	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset((filter.Page - 1) * filter.PageSize).Limit(filter.PageSize)
	}
	if err := query.Preload("LineItems").Find(&invoices).Error; err != nil {
		return nil, err
	}

	page := shared.NewPaginated(invoices, total, filter.Page, filter.PageSize)
	return &page, nil
}

// Save inserts or updates an invoice with its line items. Line-item rows are
// only ever inserted or updated in place, never deleted: superseded versions
// stay on disk.
func (r *GormInvoiceRepository) Save(ctx context.Context, inv *billing.Invoice) error {
	db := dbFromContext(ctx, r.db)
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("LineItems").Save(inv).Error; err != nil {
			if isUniqueViolation(err) {
				return shared.NewDomainError(shared.CodeAlreadyExists, "Invoice number already exists")
			}
			return err
		}
		for i := range inv.LineItems {
			inv.LineItems[i].InvoiceID = inv.ID
			if err := tx.Save(&inv.LineItems[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveWithLock saves with optimistic locking. The invoice row is updated
// only if the stored version is one behind the aggregate's; otherwise the
// caller lost the race and gets a conflict.
func (r *GormInvoiceRepository) SaveWithLock(ctx context.Context, inv *billing.Invoice) error {
	db := dbFromContext(ctx, r.db)
	return db.Transaction(func(tx *gorm.DB) error {
		previousVersion := inv.Version - 1
		inv.UpdatedAt = time.Now()

		result := tx.Model(&billing.Invoice{}).
			Where("id = ? AND tenant_id = ? AND version = ?", inv.ID, inv.TenantID, previousVersion).
			Updates(map[string]interface{}{
				"status":           inv.Status,
				"due_date":         inv.DueDate,
				"subtotal":         inv.Subtotal,
				"tax_total":        inv.TaxTotal,
				"total":            inv.Total,
				"deposit_required": inv.DepositRequired,
				"amount_paid":      inv.AmountPaid,
				"balance":          inv.Balance,
				"notes":            inv.Notes,
				"sent_at":          inv.SentAt,
				"viewed_at":        inv.ViewedAt,
				"paid_at":          inv.PaidAt,
				"cancelled_at":     inv.CancelledAt,
				"cancel_reason":    inv.CancelReason,
				"version":          inv.Version,
				"updated_at":       inv.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrConcurrencyConflict
		}

		for i := range inv.LineItems {
			inv.LineItems[i].InvoiceID = inv.ID
			if err := tx.Save(&inv.LineItems[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete soft-deletes an invoice. Line-item rows are kept.
func (r *GormInvoiceRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	result := dbFromContext(ctx, r.db).
		Delete(&billing.Invoice{}, "tenant_id = ? AND id = ?", tenantID, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// HighestNumber returns the most recently issued invoice number with the
// given prefix. Ordering is by creation time, not by the number column, so
// a timestamp-fallback number cannot derail the sequence. Soft-deleted
// invoices are included: their numbers stay burned, and skipping them would
// collide with the unique index that still covers those rows.
func (r *GormInvoiceRepository) HighestNumber(ctx context.Context, tenantID uuid.UUID, prefix string) (string, error) {
	var inv billing.Invoice
	err := dbFromContext(ctx, r.db).
		Unscoped().
		Model(&billing.Invoice{}).
		Where("tenant_id = ? AND invoice_number LIKE ?", tenantID, prefix+"%").
		Order("created_at DESC").
		First(&inv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return inv.InvoiceNumber, nil
}

func (r *GormInvoiceRepository) applyFilters(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		query = query.Where("invoice_number ILIKE ?", "%"+filter.Search+"%")
	}
	for key, value := range filter.Filters {
		switch key {
		case "customer_id":
			query = query.Where("customer_id = ?", value)
		case "status":
			query = query.Where("status = ?", value)
		case "start_date":
			if t, ok := value.(time.Time); ok {
				query = query.Where("issue_date >= ?", t)
			}
		case "end_date":
			if t, ok := value.(time.Time); ok {
				query = query.Where("issue_date <= ?", t)
			}
		}
	}
	return query
}

func (r *GormInvoiceRepository) applyOrdering(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.OrderBy == "" {
		return query.Order("created_at DESC")
	}
	dir := "ASC"
	if strings.ToLower(filter.OrderDir) == "desc" {
		dir = "DESC"
	}
	return query.Order(filter.OrderBy + " " + dir)
}

// Ensure GormInvoiceRepository implements InvoiceRepository
var _ billing.InvoiceRepository = (*GormInvoiceRepository)(nil)

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

// GormPaymentRepository implements PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// Save inserts or updates a payment
func (r *GormPaymentRepository) Save(ctx context.Context, payment *billing.Payment) error {
	if err := dbFromContext(ctx, r.db).Save(payment).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.NewDomainError(shared.CodeAlreadyExists, "Payment number already exists")
		}
		return err
	}
	return nil
}

// SaveWithLock saves with optimistic locking
func (r *GormPaymentRepository) SaveWithLock(ctx context.Context, payment *billing.Payment) error {
	previousVersion := payment.Version - 1
	payment.UpdatedAt = time.Now()

	result := dbFromContext(ctx, r.db).Model(&billing.Payment{}).
		Where("id = ? AND version = ?", payment.ID, previousVersion).
		Updates(map[string]interface{}{
			"status":            payment.Status,
			"refunded_amount":   payment.RefundedAmount,
			"gateway_charge_id": payment.GatewayChargeID,
			"failure_reason":    payment.FailureReason,
			"paid_at":           payment.PaidAt,
			"failed_at":         payment.FailedAt,
			"version":           payment.Version,
			"updated_at":        payment.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// FindByID finds a payment by ID within a tenant
func (r *GormPaymentRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*billing.Payment, error) {
	var payment billing.Payment
	if err := dbFromContext(ctx, r.db).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &payment, nil
}

// FindByGatewayRequestID resolves a processor webhook to its payment.
// Webhooks carry no tenant context, so the lookup spans tenants.
func (r *GormPaymentRepository) FindByGatewayRequestID(ctx context.Context, gatewayRequestID string) (*billing.Payment, error) {
	var payment billing.Payment
	if err := dbFromContext(ctx, r.db).
		Where("gateway_request_id = ?", gatewayRequestID).
		First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &payment, nil
}

// FindByInvoiceID finds all payments recorded against an invoice
func (r *GormPaymentRepository) FindByInvoiceID(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]billing.Payment, error) {
	var payments []billing.Payment
	if err := dbFromContext(ctx, r.db).
		Where("tenant_id = ? AND invoice_id = ?", tenantID, invoiceID).
		Order("created_at ASC").
		Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

// FindAll finds payments for a tenant with filtering and pagination
func (r *GormPaymentRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[billing.Payment], error) {
	base := dbFromContext(ctx, r.db).Model(&billing.Payment{}).Where("tenant_id = ?", tenantID)

	if filter.Search != "" {
		base = base.Where("payment_number ILIKE ?", "%"+filter.Search+"%")
	}
	for key, value := range filter.Filters {
		switch key {
		case "invoice_id":
			base = base.Where("invoice_id = ?", value)
		case "status":
			base = base.Where("status = ?", value)
		case "method":
			base = base.Where("method = ?", value)
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

	var payments []billing.Payment
	if err := query.Find(&payments).Error; err != nil {
		return nil, err
	}

	page := shared.NewPaginated(payments, total, filter.Page, filter.PageSize)
	return &page, nil
}

// Ensure GormPaymentRepository implements PaymentRepository
var _ billing.PaymentRepository = (*GormPaymentRepository)(nil)

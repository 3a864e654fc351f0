package persistence

import (
	"context"
	"errors"

	"github.com/finbooks/backend/internal/domain/billing"
	"github.com/finbooks/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormRefundRepository implements RefundRepository using GORM
type GormRefundRepository struct {
	db *gorm.DB
}

// NewGormRefundRepository creates a new GormRefundRepository
func NewGormRefundRepository(db *gorm.DB) *GormRefundRepository {
	return &GormRefundRepository{db: db}
}

// Save inserts or updates a refund
func (r *GormRefundRepository) Save(ctx context.Context, refund *billing.Refund) error {
	return dbFromContext(ctx, r.db).Save(refund).Error
}

// FindByID finds a refund by ID within a tenant
func (r *GormRefundRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*billing.Refund, error) {
	var refund billing.Refund
	if err := dbFromContext(ctx, r.db).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&refund).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &refund, nil
}

// FindByPaymentID finds all refunds issued against a payment
func (r *GormRefundRepository) FindByPaymentID(ctx context.Context, tenantID, paymentID uuid.UUID) ([]billing.Refund, error) {
	var refunds []billing.Refund
	if err := dbFromContext(ctx, r.db).
		Where("tenant_id = ? AND payment_id = ?", tenantID, paymentID).
		Order("refunded_at ASC").
		Find(&refunds).Error; err != nil {
		return nil, err
	}
	return refunds, nil
}

// Ensure GormRefundRepository implements RefundRepository
var _ billing.RefundRepository = (*GormRefundRepository)(nil)

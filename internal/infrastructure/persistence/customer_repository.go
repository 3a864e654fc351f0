package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/finbooks/backend/internal/domain/partner"
	"github.com/finbooks/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormCustomerRepository implements CustomerRepository using GORM
type GormCustomerRepository struct {
	db *gorm.DB
}

// NewGormCustomerRepository creates a new GormCustomerRepository
func NewGormCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: db}
}

// Save inserts or updates a customer
func (r *GormCustomerRepository) Save(ctx context.Context, customer *partner.Customer) error {
	return dbFromContext(ctx, r.db).Save(customer).Error
}

// FindByID finds a customer by ID within a tenant
func (r *GormCustomerRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*partner.Customer, error) {
	var customer partner.Customer
	if err := dbFromContext(ctx, r.db).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&customer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &customer, nil
}

// FindAll finds customers for a tenant with filtering and pagination
func (r *GormCustomerRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[partner.Customer], error) {
	base := dbFromContext(ctx, r.db).Model(&partner.Customer{}).Where("tenant_id = ?", tenantID)

	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		base = base.Where("name ILIKE ? OR email ILIKE ?", pattern, pattern)
	}
	if status, ok := filter.Filters["status"]; ok {
		base = base.Where("status = ?", status)
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

	var customers []partner.Customer
	if err := query.Find(&customers).Error; err != nil {
		return nil, err
	}

	page := shared.NewPaginated(customers, total, filter.Page, filter.PageSize)
	return &page, nil
}

// Delete soft-deletes a customer
func (r *GormCustomerRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	result := dbFromContext(ctx, r.db).
		Delete(&partner.Customer{}, "tenant_id = ? AND id = ?", tenantID, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure GormCustomerRepository implements CustomerRepository
var _ partner.CustomerRepository = (*GormCustomerRepository)(nil)

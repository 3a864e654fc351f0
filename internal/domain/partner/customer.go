package partner

import (
	"context"

	"github.com/finbooks/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CustomerStatus represents the status of a customer
type CustomerStatus string

const (
	CustomerStatusActive   CustomerStatus = "ACTIVE"
	CustomerStatusInactive CustomerStatus = "INACTIVE"
)

// Customer is the party an invoice is billed to
type Customer struct {
	shared.TenantAggregateRoot
	Name      string
	Email     string
	Phone     string
	Address   string
	Status    CustomerStatus
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

// TableName returns the table name for GORM
func (Customer) TableName() string {
	return "customers"
}

// NewCustomer creates a new active customer
func NewCustomer(tenantID uuid.UUID, name, email string) (*Customer, error) {
	if name == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Customer name cannot be empty")
	}

	return &Customer{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Name:                name,
		Email:               email,
		Status:              CustomerStatusActive,
	}, nil
}

// Update modifies customer contact details
func (c *Customer) Update(name, email, phone, address string) error {
	if name == "" {
		return shared.NewDomainError(shared.CodeInvalidInput, "Customer name cannot be empty")
	}
	c.Name = name
	c.Email = email
	c.Phone = phone
	c.Address = address
	c.Touch()
	return nil
}

// Deactivate marks the customer inactive. Existing invoices are unaffected.
func (c *Customer) Deactivate() {
	c.Status = CustomerStatusInactive
	c.Touch()
}

// IsActive returns true if new documents may be issued to this customer
func (c *Customer) IsActive() bool {
	return c.Status == CustomerStatusActive
}

// CustomerRepository defines persistence for customers
type CustomerRepository interface {
	Save(ctx context.Context, customer *Customer) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Customer, error)
	FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[Customer], error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

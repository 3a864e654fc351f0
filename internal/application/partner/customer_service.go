package partner

import (
	"context"
	"time"

	"github.com/finbooks/backend/internal/domain/partner"
	"github.com/finbooks/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// CustomerService handles customer business operations
type CustomerService struct {
	customerRepo partner.CustomerRepository
}

// NewCustomerService creates a new CustomerService
func NewCustomerService(customerRepo partner.CustomerRepository) *CustomerService {
	return &CustomerService{customerRepo: customerRepo}
}

// CreateCustomerRequest represents a request to create a customer
type CreateCustomerRequest struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"omitempty,email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// UpdateCustomerRequest represents a request to update a customer
type UpdateCustomerRequest struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"omitempty,email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// CustomerResponse represents a customer in API responses
type CustomerResponse struct {
	ID        uuid.UUID              `json:"id"`
	Name      string                 `json:"name"`
	Email     string                 `json:"email,omitempty"`
	Phone     string                 `json:"phone,omitempty"`
	Address   string                 `json:"address,omitempty"`
	Status    partner.CustomerStatus `json:"status"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// ToCustomerResponse converts a customer to its API representation
func ToCustomerResponse(c *partner.Customer) CustomerResponse {
	return CustomerResponse{
		ID:        c.ID,
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		Address:   c.Address,
		Status:    c.Status,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// Create creates a new customer
func (s *CustomerService) Create(ctx context.Context, tenantID uuid.UUID, req CreateCustomerRequest) (*CustomerResponse, error) {
	customer, err := partner.NewCustomer(tenantID, req.Name, req.Email)
	if err != nil {
		return nil, err
	}
	customer.Phone = req.Phone
	customer.Address = req.Address

	if err := s.customerRepo.Save(ctx, customer); err != nil {
		return nil, err
	}

	response := ToCustomerResponse(customer)
	return &response, nil
}

// GetByID retrieves a customer by ID
func (s *CustomerService) GetByID(ctx context.Context, tenantID, customerID uuid.UUID) (*CustomerResponse, error) {
	customer, err := s.customerRepo.FindByID(ctx, tenantID, customerID)
	if err != nil {
		return nil, err
	}
	response := ToCustomerResponse(customer)
	return &response, nil
}

// List retrieves customers with pagination
func (s *CustomerService) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[CustomerResponse], error) {
	page, err := s.customerRepo.FindAll(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	items := make([]CustomerResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, ToCustomerResponse(&page.Items[i]))
	}
	result := shared.NewPaginated(items, page.Total, page.Page, page.PageSize)
	return &result, nil
}

// Update modifies customer contact details
func (s *CustomerService) Update(ctx context.Context, tenantID, customerID uuid.UUID, req UpdateCustomerRequest) (*CustomerResponse, error) {
	customer, err := s.customerRepo.FindByID(ctx, tenantID, customerID)
	if err != nil {
		return nil, err
	}
	if err := customer.Update(req.Name, req.Email, req.Phone, req.Address); err != nil {
		return nil, err
	}
	if err := s.customerRepo.Save(ctx, customer); err != nil {
		return nil, err
	}
	response := ToCustomerResponse(customer)
	return &response, nil
}

// Deactivate marks a customer inactive
func (s *CustomerService) Deactivate(ctx context.Context, tenantID, customerID uuid.UUID) error {
	customer, err := s.customerRepo.FindByID(ctx, tenantID, customerID)
	if err != nil {
		return err
	}
	customer.Deactivate()
	return s.customerRepo.Save(ctx, customer)
}

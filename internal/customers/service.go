package customers

import (
	"context"
	"fmt"
)

// Service owns customer master data and billing snapshots.
type Service struct {
	repo RepositoryPort
}

// NewService constructs a Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// CreateCustomerRequest carries the fields accepted at creation.
type CreateCustomerRequest struct {
	Name         string  `json:"name" validate:"required"`
	Email        *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone        *string `json:"phone,omitempty"`
	TaxNumber    *string `json:"tax_number,omitempty"`
	AddressLine1 *string `json:"address_line1,omitempty"`
	AddressLine2 *string `json:"address_line2,omitempty"`
	City         *string `json:"city,omitempty"`
	PostalCode   *string `json:"postal_code,omitempty"`
	Country      string  `json:"country" validate:"required,len=2"`
	Currency     string  `json:"currency" validate:"required,len=3"`
}

// UpdateCustomerRequest carries optional partial updates.
type UpdateCustomerRequest struct {
	Name         *string `json:"name,omitempty"`
	Email        *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone        *string `json:"phone,omitempty"`
	TaxNumber    *string `json:"tax_number,omitempty"`
	AddressLine1 *string `json:"address_line1,omitempty"`
	AddressLine2 *string `json:"address_line2,omitempty"`
	City         *string `json:"city,omitempty"`
	PostalCode   *string `json:"postal_code,omitempty"`
	Country      *string `json:"country,omitempty" validate:"omitempty,len=2"`
	IsActive     *bool   `json:"is_active,omitempty"`
}

func (s *Service) Create(ctx context.Context, accountID int64, req CreateCustomerRequest) (*Customer, error) {
	customer := Customer{
		AccountID:    accountID,
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		TaxNumber:    req.TaxNumber,
		AddressLine1: req.AddressLine1,
		AddressLine2: req.AddressLine2,
		City:         req.City,
		PostalCode:   req.PostalCode,
		Country:      req.Country,
		Currency:     req.Currency,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, &customer); err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return &customer, nil
}

func (s *Service) Update(ctx context.Context, accountID, id int64, req UpdateCustomerRequest) (*Customer, error) {
	updates := make(map[string]any)
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.TaxNumber != nil {
		updates["tax_number"] = *req.TaxNumber
	}
	if req.AddressLine1 != nil {
		updates["address_line1"] = *req.AddressLine1
	}
	if req.AddressLine2 != nil {
		updates["address_line2"] = *req.AddressLine2
	}
	if req.City != nil {
		updates["city"] = *req.City
	}
	if req.PostalCode != nil {
		updates["postal_code"] = *req.PostalCode
	}
	if req.Country != nil {
		updates["country"] = *req.Country
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if len(updates) > 0 {
		if err := s.repo.Update(ctx, accountID, id, updates); err != nil {
			return nil, fmt.Errorf("update customer: %w", err)
		}
	}
	return s.repo.GetByID(ctx, accountID, id)
}

func (s *Service) Get(ctx context.Context, accountID, id int64) (*Customer, error) {
	return s.repo.GetByID(ctx, accountID, id)
}

func (s *Service) List(ctx context.Context, accountID int64, page, perPage int) ([]Customer, int, error) {
	return s.repo.List(ctx, accountID, page, perPage)
}

// Snapshot freezes the customer's current billing details and returns the
// stored copy. Called when a document leaves DRAFT.
func (s *Service) Snapshot(ctx context.Context, accountID, customerID int64) (*Snapshot, error) {
	customer, err := s.repo.GetByID(ctx, accountID, customerID)
	if err != nil {
		return nil, fmt.Errorf("snapshot customer: %w", err)
	}
	snap := SnapshotOf(*customer)
	if err := s.repo.CreateSnapshot(ctx, &snap); err != nil {
		return nil, fmt.Errorf("snapshot customer: %w", err)
	}
	return &snap, nil
}

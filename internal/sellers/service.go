package sellers

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/motorlot/motorlot/internal/platform/httpx"
)

// Service carries seller profile business logic.
type Service struct {
	repo Repository
}

// NewService builds Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create registers a seller profile for a user.
func (s *Service) Create(ctx context.Context, req CreateSellerRequest) (*Seller, error) {
	seller := Seller{
		ID:           uuid.NewString(),
		OwnerUserID:  req.OwnerUserID,
		Kind:         req.Kind,
		Name:         strings.TrimSpace(req.Name),
		ContactEmail: strings.ToLower(strings.TrimSpace(req.ContactEmail)),
		ContactPhone: strings.TrimSpace(req.ContactPhone),
		Region:       strings.TrimSpace(req.Region),
		IsActive:     true,
	}
	if seller.Name == "" {
		return nil, fmt.Errorf("%w: name is required", httpx.ErrValidation)
	}
	if err := s.repo.Create(ctx, seller); err != nil {
		return nil, fmt.Errorf("create seller: %w", err)
	}
	return s.repo.Get(ctx, seller.ID)
}

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, id string, req UpdateSellerRequest) (*Seller, error) {
	updates := make(map[string]any)
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be blank", httpx.ErrValidation)
		}
		updates["name"] = name
	}
	if req.ContactEmail != nil {
		updates["contact_email"] = strings.ToLower(strings.TrimSpace(*req.ContactEmail))
	}
	if req.ContactPhone != nil {
		updates["contact_phone"] = strings.TrimSpace(*req.ContactPhone)
	}
	if req.Region != nil {
		updates["region"] = strings.TrimSpace(*req.Region)
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) == 0 {
		return s.repo.Get(ctx, id)
	}
	updated, err := s.repo.Update(ctx, id, updates)
	if err != nil {
		return nil, fmt.Errorf("update seller: %w", err)
	}
	if !updated {
		return nil, fmt.Errorf("%w: seller %s", httpx.ErrNotFound, id)
	}
	return s.repo.Get(ctx, id)
}

// Deactivate retires a seller profile and archives its open listings.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	found, err := s.repo.Deactivate(ctx, id)
	if err != nil {
		return fmt.Errorf("deactivate seller: %w", err)
	}
	if !found {
		return fmt.Errorf("%w: seller %s", httpx.ErrNotFound, id)
	}
	return nil
}

// Get fetches a seller profile.
func (s *Service) Get(ctx context.Context, id string) (*Seller, error) {
	return s.repo.Get(ctx, id)
}

// List returns sellers matching the filters.
func (s *Service) List(ctx context.Context, req ListSellersRequest) ([]Seller, int, error) {
	return s.repo.List(ctx, req)
}

package listings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/motorlot/motorlot/internal/platform/httpx"
)

// Service carries listing business logic, including the status lifecycle.
type Service struct {
	repo Repository
}

// NewService builds Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create stores a new draft listing owned by the given user.
func (s *Service) Create(ctx context.Context, ownerUserID string, req CreateListingRequest) (*Listing, error) {
	listing := Listing{
		ID:          uuid.NewString(),
		SellerID:    req.SellerID,
		OwnerUserID: ownerUserID,
		Title:       strings.TrimSpace(req.Title),
		Make:        strings.TrimSpace(req.Make),
		Model:       strings.TrimSpace(req.Model),
		Year:        req.Year,
		PriceCents:  req.PriceCents,
		Mileage:     req.Mileage,
		Status:      StatusDraft,
		Description: strings.TrimSpace(req.Description),
	}
	if listing.Title == "" {
		return nil, fmt.Errorf("%w: title is required", httpx.ErrValidation)
	}
	if err := s.repo.Create(ctx, listing); err != nil {
		return nil, fmt.Errorf("create listing: %w", err)
	}
	return s.repo.Get(ctx, listing.ID)
}

// Update applies a partial content update. Status is untouched here.
func (s *Service) Update(ctx context.Context, id string, req UpdateListingRequest) (*Listing, error) {
	updates := make(map[string]any)
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title cannot be blank", httpx.ErrValidation)
		}
		updates["title"] = title
	}
	if req.PriceCents != nil {
		if *req.PriceCents <= 0 {
			return nil, fmt.Errorf("%w: price must be positive", httpx.ErrValidation)
		}
		updates["price_cents"] = *req.PriceCents
	}
	if req.Mileage != nil {
		updates["mileage"] = *req.Mileage
	}
	if req.Description != nil {
		updates["description"] = strings.TrimSpace(*req.Description)
	}
	if len(updates) == 0 {
		return s.repo.Get(ctx, id)
	}
	updated, err := s.repo.Update(ctx, id, updates)
	if err != nil {
		return nil, fmt.Errorf("update listing: %w", err)
	}
	if !updated {
		return nil, fmt.Errorf("%w: listing %s", httpx.ErrNotFound, id)
	}
	return s.repo.Get(ctx, id)
}

// Publish moves a draft listing live.
func (s *Service) Publish(ctx context.Context, id string) (*Listing, error) {
	return s.transition(ctx, id, StatusPublished)
}

// MarkSold closes a published listing as sold.
func (s *Service) MarkSold(ctx context.Context, id string) (*Listing, error) {
	return s.transition(ctx, id, StatusSold)
}

// Archive retires a draft or published listing.
func (s *Service) Archive(ctx context.Context, id string) (*Listing, error) {
	return s.transition(ctx, id, StatusArchived)
}

func (s *Service) transition(ctx context.Context, id, to string) (*Listing, error) {
	listing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(listing.Status, to) {
		return nil, fmt.Errorf("%w: cannot move listing from %s to %s", httpx.ErrValidation, listing.Status, to)
	}
	updates := map[string]any{"status": to}
	if to == StatusPublished {
		updates["published_at"] = time.Now().UTC()
	}
	if _, err := s.repo.Update(ctx, id, updates); err != nil {
		return nil, fmt.Errorf("transition listing: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// Delete removes a listing. Only drafts can be deleted; anything that was
// ever public is archived instead so references stay resolvable.
func (s *Service) Delete(ctx context.Context, id string) error {
	listing, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if listing.Status != StatusDraft {
		return fmt.Errorf("%w: only draft listings can be deleted", httpx.ErrValidation)
	}
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	if !deleted {
		return fmt.Errorf("%w: listing %s", httpx.ErrNotFound, id)
	}
	return nil
}

// Get fetches a listing.
func (s *Service) Get(ctx context.Context, id string) (*Listing, error) {
	return s.repo.Get(ctx, id)
}

// List returns listings matching search and filters.
func (s *Service) List(ctx context.Context, req ListListingsRequest) ([]Listing, int, error) {
	return s.repo.List(ctx, req)
}

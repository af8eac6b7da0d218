package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/motorlot/motorlot/internal/platform/httpx"
)

// Service handles user account business logic. Role and grant mutation is
// owned by the rbac service; this service never touches those lists.
type Service struct {
	repo Repository
}

// NewService builds Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create registers a new account with at least one role assigned.
func (s *Service) Create(ctx context.Context, req CreateUserRequest) (*User, error) {
	if len(req.Roles) == 0 {
		return nil, fmt.Errorf("%w: at least one role is required", httpx.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := User{
		ID:                uuid.NewString(),
		Email:             strings.ToLower(strings.TrimSpace(req.Email)),
		Name:              strings.TrimSpace(req.Name),
		PasswordHash:      string(hash),
		IsActive:          true,
		Roles:             req.Roles,
		CustomPermissions: []string{},
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return s.repo.Get(ctx, user.ID)
}

// Update applies a partial profile update.
func (s *Service) Update(ctx context.Context, id string, req UpdateUserRequest) (*User, error) {
	updates := make(map[string]any)
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) == 0 {
		return s.repo.Get(ctx, id)
	}
	updated, err := s.repo.Update(ctx, id, updates)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	if !updated {
		return nil, fmt.Errorf("%w: user %s", httpx.ErrNotFound, id)
	}
	return s.repo.Get(ctx, id)
}

// Deactivate disables the account without deleting its history.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	updated, err := s.repo.Update(ctx, id, map[string]any{"is_active": false})
	if err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}
	if !updated {
		return fmt.Errorf("%w: user %s", httpx.ErrNotFound, id)
	}
	return nil
}

// Get fetches a user by id.
func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	return s.repo.Get(ctx, id)
}

// List returns users matching the filters.
func (s *Service) List(ctx context.Context, req ListUsersRequest) ([]User, int, error) {
	return s.repo.List(ctx, req)
}

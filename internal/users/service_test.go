package users

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/motorlot/motorlot/internal/platform/httpx"
)

type memRepo struct {
	users map[string]User
}

func newMemRepo() *memRepo {
	return &memRepo{users: map[string]User{}}
}

func (m *memRepo) Get(ctx context.Context, id string) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user", httpx.ErrNotFound)
	}
	return &u, nil
}

func (m *memRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("%w: user", httpx.ErrNotFound)
}

func (m *memRepo) List(ctx context.Context, req ListUsersRequest) ([]User, int, error) {
	var out []User
	for _, u := range m.users {
		if req.Search != nil && *req.Search != "" && !strings.Contains(u.Email, *req.Search) && !strings.Contains(u.Name, *req.Search) {
			continue
		}
		if req.IsActive != nil && u.IsActive != *req.IsActive {
			continue
		}
		out = append(out, u)
	}
	return out, len(out), nil
}

func (m *memRepo) Create(ctx context.Context, user User) error {
	for _, u := range m.users {
		if u.Email == user.Email {
			return fmt.Errorf("%w: email already registered", httpx.ErrDuplicate)
		}
	}
	m.users[user.ID] = user
	return nil
}

func (m *memRepo) Update(ctx context.Context, id string, updates map[string]any) (bool, error) {
	u, ok := m.users[id]
	if !ok {
		return false, nil
	}
	if v, ok := updates["name"]; ok {
		u.Name = v.(string)
	}
	if v, ok := updates["is_active"]; ok {
		u.IsActive = v.(bool)
	}
	m.users[id] = u
	return true, nil
}

func TestCreateUser(t *testing.T) {
	svc := NewService(newMemRepo())

	user, err := svc.Create(context.Background(), CreateUserRequest{
		Email:    " Dealer@Example.COM ",
		Name:     "Dealer One",
		Password: "s3cret-password",
		Roles:    []string{"role_seller_basic"},
	})
	require.NoError(t, err)

	assert.Equal(t, "dealer@example.com", user.Email)
	assert.True(t, user.IsActive)
	assert.Equal(t, []string{"role_seller_basic"}, user.Roles)
	assert.Empty(t, user.CustomPermissions)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("s3cret-password")))
}

func TestCreateUserRequiresRole(t *testing.T) {
	svc := NewService(newMemRepo())

	_, err := svc.Create(context.Background(), CreateUserRequest{
		Email:    "dealer@example.com",
		Name:     "Dealer One",
		Password: "s3cret-password",
	})
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	svc := NewService(newMemRepo())

	req := CreateUserRequest{
		Email:    "dealer@example.com",
		Name:     "Dealer One",
		Password: "s3cret-password",
		Roles:    []string{"role_seller_basic"},
	}
	_, err := svc.Create(context.Background(), req)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), req)
	assert.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestUpdateUser(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)

	created, err := svc.Create(context.Background(), CreateUserRequest{
		Email:    "dealer@example.com",
		Name:     "Dealer One",
		Password: "s3cret-password",
		Roles:    []string{"role_seller_basic"},
	})
	require.NoError(t, err)

	name := "Dealer Renamed"
	updated, err := svc.Update(context.Background(), created.ID, UpdateUserRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Dealer Renamed", updated.Name)
	assert.True(t, updated.IsActive)
}

func TestUpdateUserNotFound(t *testing.T) {
	svc := NewService(newMemRepo())

	name := "x"
	_, err := svc.Update(context.Background(), "missing", UpdateUserRequest{Name: &name})
	assert.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestDeactivateUser(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)

	created, err := svc.Create(context.Background(), CreateUserRequest{
		Email:    "dealer@example.com",
		Name:     "Dealer One",
		Password: "s3cret-password",
		Roles:    []string{"role_seller_basic"},
	})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(context.Background(), created.ID))

	got, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	assert.ErrorIs(t, svc.Deactivate(context.Background(), "missing"), httpx.ErrNotFound)
}

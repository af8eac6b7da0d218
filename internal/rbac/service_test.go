package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motorlot/motorlot/internal/platform/httpx"
)

// memStore is an in-memory Store used across the package tests.
type memStore struct {
	permissions map[string]Permission
	roles       map[string]Role
	users       map[string]UserAccess
	failWith    error
}

func newMemStore() *memStore {
	return &memStore{
		permissions: make(map[string]Permission),
		roles:       make(map[string]Role),
		users:       make(map[string]UserAccess),
	}
}

func (m *memStore) GetPermission(ctx context.Context, id string) (*Permission, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	p, ok := m.permissions[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memStore) ListPermissions(ctx context.Context) ([]Permission, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	out := make([]Permission, 0, len(m.permissions))
	for _, p := range m.permissions {
		out = append(out, p)
	}
	return out, nil
}

func (m *memStore) CreatePermission(ctx context.Context, p Permission) error {
	if m.failWith != nil {
		return m.failWith
	}
	if _, exists := m.permissions[p.ID]; exists {
		return httpx.ErrDuplicate
	}
	m.permissions[p.ID] = p
	return nil
}

func (m *memStore) UpdatePermission(ctx context.Context, p Permission) (bool, error) {
	if m.failWith != nil {
		return false, m.failWith
	}
	if _, exists := m.permissions[p.ID]; !exists {
		return false, nil
	}
	m.permissions[p.ID] = p
	return true, nil
}

func (m *memStore) DeletePermission(ctx context.Context, id string) (bool, error) {
	if m.failWith != nil {
		return false, m.failWith
	}
	if _, exists := m.permissions[id]; !exists {
		return false, nil
	}
	delete(m.permissions, id)
	return true, nil
}

func (m *memStore) GetRole(ctx context.Context, id string) (*Role, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	r, ok := m.roles[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *memStore) ListRoles(ctx context.Context) ([]Role, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	out := make([]Role, 0, len(m.roles))
	for _, r := range m.roles {
		out = append(out, r)
	}
	return out, nil
}

func (m *memStore) CreateRole(ctx context.Context, r Role) error {
	if m.failWith != nil {
		return m.failWith
	}
	if _, exists := m.roles[r.ID]; exists {
		return httpx.ErrDuplicate
	}
	m.roles[r.ID] = r
	return nil
}

func (m *memStore) UpdateRole(ctx context.Context, r Role) (bool, error) {
	if m.failWith != nil {
		return false, m.failWith
	}
	existing, ok := m.roles[r.ID]
	if !ok {
		return false, nil
	}
	existing.Name = r.Name
	existing.Description = r.Description
	m.roles[r.ID] = existing
	return true, nil
}

func (m *memStore) SetRolePermissions(ctx context.Context, roleID string, refs []PermissionRef) (bool, error) {
	if m.failWith != nil {
		return false, m.failWith
	}
	existing, ok := m.roles[roleID]
	if !ok {
		return false, nil
	}
	existing.Permissions = refs
	m.roles[roleID] = existing
	return true, nil
}

func (m *memStore) DeleteRole(ctx context.Context, id string) (bool, error) {
	if m.failWith != nil {
		return false, m.failWith
	}
	if _, exists := m.roles[id]; !exists {
		return false, nil
	}
	delete(m.roles, id)
	return true, nil
}

func (m *memStore) GetUserAccess(ctx context.Context, userID string) (*UserAccess, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	u, ok := m.users[userID]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *memStore) SetUserRoles(ctx context.Context, userID string, roleIDs []string) (bool, error) {
	if m.failWith != nil {
		return false, m.failWith
	}
	u, ok := m.users[userID]
	if !ok {
		return false, nil
	}
	u.Roles = roleIDs
	m.users[userID] = u
	return true, nil
}

func (m *memStore) SetUserCustomPermissions(ctx context.Context, userID string, perms []string) (bool, error) {
	if m.failWith != nil {
		return false, m.failWith
	}
	u, ok := m.users[userID]
	if !ok {
		return false, nil
	}
	u.CustomPermissions = perms
	m.users[userID] = u
	return true, nil
}

var _ Store = (*memStore)(nil)

func seedStore() *memStore {
	store := newMemStore()
	store.roles["role_seller_basic"] = Role{
		ID:    "role_seller_basic",
		Scope: RoleScopeMarketplace,
		Name:  "Seller Basic",
		Permissions: []PermissionRef{
			{ID: "perm_view_listings"},
			{ID: "perm_create_listings"},
		},
	}
	store.roles["role_support"] = Role{
		ID:    "role_support",
		Scope: RoleScopeMarketplace,
		Name:  "Support",
		Permissions: []PermissionRef{
			{ID: "perm_view_tickets"},
			{ID: "perm_view_listings"},
		},
	}
	store.users["u1"] = UserAccess{UserID: "u1", Roles: []string{"role_seller_basic", "role_support"}}
	store.users["u2"] = UserAccess{UserID: "u2", Roles: []string{"role_support"}, CustomPermissions: []string{"perm_export_reports"}}
	store.users["u_empty"] = UserAccess{UserID: "u_empty"}
	return store
}

func TestEffectivePermissionsEmptyUser(t *testing.T) {
	svc := NewService(seedStore())

	eff, err := svc.EffectivePermissions(context.Background(), "u_empty")
	require.NoError(t, err)
	assert.Empty(t, eff.Effective)
	assert.Empty(t, eff.CustomPermissions)
}

func TestEffectivePermissionsRoleUnion(t *testing.T) {
	svc := NewService(seedStore())

	eff, err := svc.EffectivePermissions(context.Background(), "u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"perm_view_listings", "perm_create_listings", "perm_view_tickets"}, eff.Effective)
	assert.Equal(t, []string{"role_seller_basic", "role_support"}, eff.Roles)
}

func TestEffectivePermissionsCustomSubset(t *testing.T) {
	svc := NewService(seedStore())

	eff, err := svc.EffectivePermissions(context.Background(), "u2")
	require.NoError(t, err)
	for _, custom := range eff.CustomPermissions {
		assert.Contains(t, eff.Effective, custom)
	}
	assert.Contains(t, eff.Effective, "perm_export_reports")
}

func TestEffectivePermissionsIdempotent(t *testing.T) {
	svc := NewService(seedStore())

	first, err := svc.EffectivePermissions(context.Background(), "u1")
	require.NoError(t, err)
	second, err := svc.EffectivePermissions(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, first.Effective, second.Effective)
}

func TestEffectivePermissionsDanglingRole(t *testing.T) {
	store := seedStore()
	store.users["u1"] = UserAccess{UserID: "u1", Roles: []string{"role_deleted", "role_support"}}
	svc := NewService(store)

	eff, err := svc.EffectivePermissions(context.Background(), "u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"perm_view_tickets", "perm_view_listings"}, eff.Effective)
}

func TestEffectivePermissionsUnknownUser(t *testing.T) {
	svc := NewService(seedStore())

	_, err := svc.EffectivePermissions(context.Background(), "no_such_user")
	assert.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestCheckPermissionSourceAttribution(t *testing.T) {
	store := seedStore()
	// Granted both directly and via role_support: direct must win.
	store.users["u2"] = UserAccess{
		UserID:            "u2",
		Roles:             []string{"role_support"},
		CustomPermissions: []string{"perm_view_tickets"},
	}
	svc := NewService(store)

	decision, err := svc.CheckPermission(context.Background(), "u2", "perm_view_tickets")
	require.NoError(t, err)
	assert.True(t, decision.HasPermission)
	assert.Equal(t, SourceDirect, decision.Source)
	assert.Empty(t, decision.RoleID)
}

func TestCheckPermissionFirstRoleWins(t *testing.T) {
	svc := NewService(seedStore())

	// Both assigned roles grant perm_view_listings; the first-listed role
	// is attributed.
	decision, err := svc.CheckPermission(context.Background(), "u1", "perm_view_listings")
	require.NoError(t, err)
	assert.True(t, decision.HasPermission)
	assert.Equal(t, SourceRole, decision.Source)
	assert.Equal(t, "role_seller_basic", decision.RoleID)
}

func TestCheckPermissionDenied(t *testing.T) {
	svc := NewService(seedStore())

	decision, err := svc.CheckPermission(context.Background(), "u1", "perm_manage_billing")
	require.NoError(t, err)
	assert.False(t, decision.HasPermission)
	assert.Equal(t, SourceNone, decision.Source)
}

func TestCheckPermissionUnknownUser(t *testing.T) {
	svc := NewService(seedStore())

	_, err := svc.CheckPermission(context.Background(), "no_such_user", "perm_x")
	assert.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestCheckPermissionsBatchAgreesWithSingle(t *testing.T) {
	svc := NewService(seedStore())
	ids := []string{"perm_view_listings", "perm_view_tickets", "perm_manage_billing"}

	batch, err := svc.CheckPermissionsBatch(context.Background(), "u1", ids)
	require.NoError(t, err)
	require.Len(t, batch, len(ids))

	for _, id := range ids {
		single, err := svc.CheckPermission(context.Background(), "u1", id)
		require.NoError(t, err)
		assert.Equal(t, single.HasPermission, batch[id].HasPermission, id)
		assert.Equal(t, single.Source, batch[id].Source, id)
	}
}

func TestCheckPermissionsBatchEmptyList(t *testing.T) {
	svc := NewService(seedStore())

	_, err := svc.CheckPermissionsBatch(context.Background(), "u1", nil)
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCheckPermissionFailsClosedOnStoreError(t *testing.T) {
	store := seedStore()
	storeErr := errors.New("connection reset")
	store.failWith = storeErr
	svc := NewService(store)

	_, err := svc.CheckPermission(context.Background(), "u1", "perm_view_listings")
	assert.ErrorIs(t, err, storeErr)
}

func TestAdminOrOwner(t *testing.T) {
	store := seedStore()
	store.roles["role_admin"] = Role{
		ID:          "role_admin",
		Scope:       RoleScopeMarketplace,
		Name:        "Admin",
		Permissions: []PermissionRef{{ID: "perm_admin_access"}},
	}
	store.users["u3"] = UserAccess{UserID: "u3", Roles: []string{"role_admin"}}
	svc := NewService(store)
	ctx := context.Background()

	// Owner without admin permission passes.
	assert.NoError(t, svc.AdminOrOwner(ctx, "u1", "u1", "perm_admin_access"))
	// Non-owner without admin permission is rejected.
	assert.ErrorIs(t, svc.AdminOrOwner(ctx, "u2", "u1", "perm_admin_access"), httpx.ErrForbidden)
	// Admin passes regardless of ownership.
	assert.NoError(t, svc.AdminOrOwner(ctx, "u3", "u1", "perm_admin_access"))
}

func TestSetUserRolesRejectsEmpty(t *testing.T) {
	svc := NewService(seedStore())

	err := svc.SetUserRoles(context.Background(), "u1", nil)
	assert.ErrorIs(t, err, httpx.ErrValidation)

	err = svc.SetUserRoles(context.Background(), "u1", []string{})
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestSetUserRolesUnknownUser(t *testing.T) {
	svc := NewService(seedStore())

	err := svc.SetUserRoles(context.Background(), "ghost", []string{"role_support"})
	assert.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestSetUserCustomPermissionsAllowsEmpty(t *testing.T) {
	store := seedStore()
	svc := NewService(store)

	require.NoError(t, svc.SetUserCustomPermissions(context.Background(), "u2", []string{}))
	eff, err := svc.EffectivePermissions(context.Background(), "u2")
	require.NoError(t, err)
	assert.Empty(t, eff.CustomPermissions)
}

func TestCreateRoleValidation(t *testing.T) {
	svc := NewService(seedStore())
	ctx := context.Background()

	_, err := svc.CreateRole(ctx, CreateRoleInput{Name: ""})
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.CreateRole(ctx, CreateRoleInput{Name: "Dealer", Scope: "global"})
	assert.ErrorIs(t, err, httpx.ErrValidation)

	role, err := svc.CreateRole(ctx, CreateRoleInput{Name: "Dealer Premium"})
	require.NoError(t, err)
	assert.Equal(t, "role_dealer_premium", role.ID)
	assert.Equal(t, RoleScopeMarketplace, role.Scope)
}

func TestCreateRoleUnsluggableName(t *testing.T) {
	svc := NewService(seedStore())
	ctx := context.Background()

	// A name with no identifier characters must not mint a degenerate id.
	_, err := svc.CreateRole(ctx, CreateRoleInput{Name: "!!!"})
	assert.ErrorIs(t, err, httpx.ErrValidation)

	assert.Equal(t, "", GenerateRoleID("???"))
	assert.Equal(t, "role_dealer", GenerateRoleID("Dealer"))
}

func TestAttachRolePermissionsPreservesOrder(t *testing.T) {
	svc := NewService(seedStore())
	ctx := context.Background()

	role, err := svc.AttachRolePermissions(ctx, "role_support", []PermissionRef{
		{ID: "perm_view_listings"}, // already present, must not duplicate
		{ID: "perm_close_tickets"},
	})
	require.NoError(t, err)

	ids := make([]string, len(role.Permissions))
	for i, ref := range role.Permissions {
		ids[i] = ref.ID
	}
	assert.Equal(t, []string{"perm_view_tickets", "perm_view_listings", "perm_close_tickets"}, ids)
}

package rbac

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/motorlot/motorlot/internal/platform/httpx"
)

var roleIDPattern = regexp.MustCompile(`^role_[a-z0-9_]+$`)

// Service is the access decision point: every protected operation routes
// its allow/deny question through here. It also owns role management and
// user grant assignment. Decisions are pure functions of current store
// state; nothing is memoised, so edits take effect on the next request.
type Service struct {
	store    Store
	resolver *Resolver
}

// NewService constructs the Service.
func NewService(store Store) *Service {
	return &Service{store: store, resolver: NewResolver(store)}
}

// snapshot fetches the user's access record once and resolves its roles
// once. Batch checks reuse a single snapshot so every answer reflects the
// same store state.
func (s *Service) snapshot(ctx context.Context, userID string) (*UserAccess, *Resolution, error) {
	access, err := s.store.GetUserAccess(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if access == nil {
		return nil, nil, fmt.Errorf("%w: user %s", httpx.ErrNotFound, userID)
	}
	res, err := s.resolver.Resolve(ctx, access.Roles)
	if err != nil {
		return nil, nil, err
	}
	return access, res, nil
}

// EffectivePermissions computes the full derived permission set for a user:
// the union of role-derived and directly granted permissions.
func (s *Service) EffectivePermissions(ctx context.Context, userID string) (*EffectivePermissions, error) {
	access, res, err := s.snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	effective := make(map[string]struct{}, len(res.Union())+len(access.CustomPermissions))
	for perm := range res.Union() {
		effective[perm] = struct{}{}
	}
	custom := make([]string, 0, len(access.CustomPermissions))
	seen := make(map[string]struct{}, len(access.CustomPermissions))
	for _, perm := range access.CustomPermissions {
		if perm == "" {
			continue
		}
		if _, dup := seen[perm]; dup {
			continue
		}
		seen[perm] = struct{}{}
		custom = append(custom, perm)
		effective[perm] = struct{}{}
	}

	all := make([]string, 0, len(effective))
	for perm := range effective {
		all = append(all, perm)
	}
	sort.Strings(all)

	return &EffectivePermissions{
		UserID:            userID,
		Roles:             access.Roles,
		CustomPermissions: custom,
		Effective:         all,
	}, nil
}

// CheckPermission decides whether the user holds the permission and where
// it came from. A direct grant wins over a role grant in the reported
// source; role attribution names the first granting role in assignment
// order.
func (s *Service) CheckPermission(ctx context.Context, userID, permID string) (Decision, error) {
	access, res, err := s.snapshot(ctx, userID)
	if err != nil {
		return Decision{}, err
	}
	return decide(access, res, permID), nil
}

// CheckPermissionsBatch evaluates every requested identifier against one
// snapshot. It must not re-fetch per identifier: a role edit committing
// midway through the list would otherwise leak two different views into a
// single response.
func (s *Service) CheckPermissionsBatch(ctx context.Context, userID string, permIDs []string) (map[string]Decision, error) {
	if len(permIDs) == 0 {
		return nil, fmt.Errorf("%w: permission id list is empty", httpx.ErrValidation)
	}
	access, res, err := s.snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	decisions := make(map[string]Decision, len(permIDs))
	for _, permID := range permIDs {
		decisions[permID] = decide(access, res, permID)
	}
	return decisions, nil
}

func decide(access *UserAccess, res *Resolution, permID string) Decision {
	for _, perm := range access.CustomPermissions {
		if perm == permID {
			return Decision{HasPermission: true, Source: SourceDirect}
		}
	}
	if roleID, ok := res.FirstRoleGranting(permID); ok {
		return Decision{HasPermission: true, Source: SourceRole, RoleID: roleID}
	}
	return Decision{Source: SourceNone}
}

// AdminOrOwner is the single reusable predicate for resource-scoped
// operations: the caller passes when they own the resource or hold the
// admin permission. Store failures propagate; the check never falls back
// to allow.
func (s *Service) AdminOrOwner(ctx context.Context, callerID, ownerID string, adminPerm string) error {
	if callerID != "" && callerID == ownerID {
		return nil
	}
	decision, err := s.CheckPermission(ctx, callerID, adminPerm)
	if err != nil {
		return err
	}
	if !decision.HasPermission {
		return fmt.Errorf("%w: not owner and missing %s", httpx.ErrForbidden, adminPerm)
	}
	return nil
}

// CreateRoleInput carries fields for a new role.
type CreateRoleInput struct {
	ID          string          `json:"id,omitempty"`
	Scope       string          `json:"scope,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Permissions []PermissionRef `json:"permissions"`
}

// CreateRole registers a new role in the marketplace scope.
func (s *Service) CreateRole(ctx context.Context, in CreateRoleInput) (*Role, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: role name is required", httpx.ErrValidation)
	}
	if len(name) > maxNameLen {
		return nil, fmt.Errorf("%w: role name exceeds %d characters", httpx.ErrValidation, maxNameLen)
	}
	scope := in.Scope
	if scope == "" {
		scope = RoleScopeMarketplace
	}
	if scope != RoleScopeMarketplace {
		return nil, fmt.Errorf("%w: unsupported role scope %q", httpx.ErrValidation, scope)
	}
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = GenerateRoleID(name)
		if id == "" {
			return nil, fmt.Errorf("%w: role name %q yields no identifier", httpx.ErrValidation, name)
		}
	}
	if !roleIDPattern.MatchString(id) {
		return nil, fmt.Errorf("%w: role id %q does not match %s", httpx.ErrValidation, id, roleIDPattern)
	}

	role := Role{
		ID:          id,
		Scope:       scope,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Permissions: dedupeRefs(in.Permissions),
	}
	if err := s.store.CreateRole(ctx, role); err != nil {
		return nil, err
	}
	return s.GetRole(ctx, id)
}

// UpdateRole changes a role's display name and description.
func (s *Service) UpdateRole(ctx context.Context, id, name, description string) (*Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: role name is required", httpx.ErrValidation)
	}
	updated, err := s.store.UpdateRole(ctx, Role{ID: id, Name: name, Description: strings.TrimSpace(description)})
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, fmt.Errorf("%w: role %s", httpx.ErrNotFound, id)
	}
	return s.GetRole(ctx, id)
}

// GetRole fetches a role by id.
func (s *Service) GetRole(ctx context.Context, id string) (*Role, error) {
	role, err := s.store.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, fmt.Errorf("%w: role %s", httpx.ErrNotFound, id)
	}
	return role, nil
}

// ListRoles returns all roles ordered by name.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.store.ListRoles(ctx)
}

// DeleteRole removes a role. User records referencing it keep the dangling
// assignment; resolution skips it.
func (s *Service) DeleteRole(ctx context.Context, id string) error {
	deleted, err := s.store.DeleteRole(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("%w: role %s", httpx.ErrNotFound, id)
	}
	return nil
}

// SetRolePermissions replaces the role's full permission reference list.
func (s *Service) SetRolePermissions(ctx context.Context, roleID string, refs []PermissionRef) (*Role, error) {
	updated, err := s.store.SetRolePermissions(ctx, roleID, dedupeRefs(refs))
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, fmt.Errorf("%w: role %s", httpx.ErrNotFound, roleID)
	}
	return s.GetRole(ctx, roleID)
}

// AttachRolePermissions appends refs the role does not already carry,
// preserving the existing order. Convenience on top of the replace
// operation.
func (s *Service) AttachRolePermissions(ctx context.Context, roleID string, refs []PermissionRef) (*Role, error) {
	role, err := s.GetRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	merged := dedupeRefs(append(append([]PermissionRef{}, role.Permissions...), refs...))
	return s.SetRolePermissions(ctx, roleID, merged)
}

// SetUserRoles replaces a user's role assignment list. An empty list is
// rejected: every user must keep at least one role after a role update.
func (s *Service) SetUserRoles(ctx context.Context, userID string, roleIDs []string) error {
	if len(roleIDs) == 0 {
		return fmt.Errorf("%w: at least one role is required", httpx.ErrValidation)
	}
	for _, id := range roleIDs {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: blank role id", httpx.ErrValidation)
		}
	}
	updated, err := s.store.SetUserRoles(ctx, userID, dedupeStrings(roleIDs))
	if err != nil {
		return err
	}
	if !updated {
		return fmt.Errorf("%w: user %s", httpx.ErrNotFound, userID)
	}
	return nil
}

// SetUserCustomPermissions replaces a user's direct grants. May be empty.
func (s *Service) SetUserCustomPermissions(ctx context.Context, userID string, permIDs []string) error {
	for _, id := range permIDs {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: blank permission id", httpx.ErrValidation)
		}
	}
	updated, err := s.store.SetUserCustomPermissions(ctx, userID, dedupeStrings(permIDs))
	if err != nil {
		return err
	}
	if !updated {
		return fmt.Errorf("%w: user %s", httpx.ErrNotFound, userID)
	}
	return nil
}

// GenerateRoleID derives a role identifier from a display name. Names that
// contain no identifier characters at all yield "".
func GenerateRoleID(name string) string {
	generated := GeneratePermissionID(name)
	slug := strings.TrimPrefix(generated, permissionIDPrefix)
	if slug == "" || slug == generated {
		return ""
	}
	return "role_" + slug
}

func dedupeRefs(refs []PermissionRef) []PermissionRef {
	seen := make(map[string]struct{}, len(refs))
	out := make([]PermissionRef, 0, len(refs))
	for _, ref := range refs {
		if ref.ID == "" {
			continue
		}
		if _, dup := seen[ref.ID]; dup {
			continue
		}
		seen[ref.ID] = struct{}{}
		out = append(out, ref)
	}
	return out
}

func dedupeStrings(ss []string) []string {
	seen := make(map[string]struct{}, len(ss))
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

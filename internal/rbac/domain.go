// Package rbac implements the permission catalog, role resolution and the
// access decision point used by every protected route. Authorization is
// re-derived from the backing store on each request: there is no cached
// decision state, so a revoked permission stops working on the next call.
package rbac

import "time"

// RoleScopeMarketplace is the only role scope currently supported.
const RoleScopeMarketplace = "marketplace"

// Permission represents an atomic grantable capability.
type Permission struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PermissionRef is a role's reference to a permission. The description is a
// cached copy for display; the catalog stays authoritative. The referenced
// permission may have been deleted, in which case the ref is simply inert.
type PermissionRef struct {
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`
}

// Role is a named, reusable bundle of permission references.
type Role struct {
	ID          string          `json:"id"`
	Scope       string          `json:"scope"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Permissions []PermissionRef `json:"permissions"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// UserAccess is the slice of a user record the decision point needs: the
// ordered role assignment list and the flat custom permission grants.
type UserAccess struct {
	UserID            string   `json:"user_id"`
	Roles             []string `json:"roles"`
	CustomPermissions []string `json:"custom_permissions"`
}

// Principal is the authenticated actor attached to a request. It is built
// once at authentication time and treated as immutable afterwards.
type Principal struct {
	ID                string
	Roles             []string
	CustomPermissions []string
}

// HasAnyRole reports flat membership in at least one of the given roles.
func (p Principal) HasAnyRole(roleIDs ...string) bool {
	for _, want := range roleIDs {
		for _, have := range p.Roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Source describes how a permission was granted.
type Source string

const (
	// SourceDirect means the permission is a custom grant on the user.
	SourceDirect Source = "direct"
	// SourceRole means the permission is reachable through a role.
	SourceRole Source = "role"
	// SourceNone means the permission is not granted.
	SourceNone Source = "none"
)

// Decision is the outcome of a single permission check. RoleID names the
// first role in assignment order that grants the permission when Source is
// SourceRole.
type Decision struct {
	HasPermission bool   `json:"has_permission"`
	Source        Source `json:"source"`
	RoleID        string `json:"role_id,omitempty"`
}

// EffectivePermissions is the derived, read-only union of role-derived and
// directly granted permissions. Never persisted; recomputed on demand.
type EffectivePermissions struct {
	UserID            string   `json:"user_id"`
	Roles             []string `json:"roles"`
	CustomPermissions []string `json:"custom_permissions"`
	Effective         []string `json:"effective_permissions"`
}

package rbac

import "context"

// Resolver turns an ordered list of role identifiers into the permissions
// those roles grant. A role id that no longer exists is skipped silently:
// a dangling assignment contributes no permissions and is not an error.
type Resolver struct {
	store Store
}

// NewResolver constructs a Resolver.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolution is the outcome of resolving a role list. Role order matches
// the input assignment order, which is what source attribution scans.
type Resolution struct {
	roleOrder []string
	byRole    map[string]map[string]struct{}
	union     map[string]struct{}
}

// Resolve fetches each role and unions the permission identifiers they
// reference. Only store failures produce an error.
func (r *Resolver) Resolve(ctx context.Context, roleIDs []string) (*Resolution, error) {
	res := &Resolution{
		byRole: make(map[string]map[string]struct{}, len(roleIDs)),
		union:  make(map[string]struct{}),
	}
	for _, roleID := range roleIDs {
		role, err := r.store.GetRole(ctx, roleID)
		if err != nil {
			return nil, err
		}
		if role == nil {
			continue
		}
		perms := make(map[string]struct{}, len(role.Permissions))
		for _, ref := range role.Permissions {
			if ref.ID == "" {
				continue
			}
			perms[ref.ID] = struct{}{}
			res.union[ref.ID] = struct{}{}
		}
		res.roleOrder = append(res.roleOrder, roleID)
		res.byRole[roleID] = perms
	}
	return res, nil
}

// Union returns the de-duplicated permission set granted by the roles.
func (res *Resolution) Union() map[string]struct{} {
	return res.union
}

// Grants reports whether any resolved role grants the permission.
func (res *Resolution) Grants(permID string) bool {
	_, ok := res.union[permID]
	return ok
}

// FirstRoleGranting returns the first role, in assignment order, whose
// permission refs include permID.
func (res *Resolution) FirstRoleGranting(permID string) (string, bool) {
	for _, roleID := range res.roleOrder {
		if _, ok := res.byRole[roleID][permID]; ok {
			return roleID, true
		}
	}
	return "", false
}

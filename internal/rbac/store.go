package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/motorlot/motorlot/internal/platform/httpx"
)

// Store is the document-store boundary the core depends on. Point reads
// return (nil, nil) when the record is absent; only transport or store
// failures surface as errors, and callers must treat those as deny.
type Store interface {
	GetPermission(ctx context.Context, id string) (*Permission, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	CreatePermission(ctx context.Context, p Permission) error
	UpdatePermission(ctx context.Context, p Permission) (bool, error)
	DeletePermission(ctx context.Context, id string) (bool, error)

	GetRole(ctx context.Context, id string) (*Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	CreateRole(ctx context.Context, r Role) error
	UpdateRole(ctx context.Context, r Role) (bool, error)
	SetRolePermissions(ctx context.Context, roleID string, refs []PermissionRef) (bool, error)
	DeleteRole(ctx context.Context, id string) (bool, error)

	GetUserAccess(ctx context.Context, userID string) (*UserAccess, error)
	SetUserRoles(ctx context.Context, userID string, roleIDs []string) (bool, error)
	SetUserCustomPermissions(ctx context.Context, userID string, perms []string) (bool, error)
}

// PGStore implements Store on PostgreSQL. Role references and grant lists
// live as jsonb documents on their rows: ordered, and with no foreign keys,
// so dangling references stay representable.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewStore constructs a PostgreSQL backed store.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) GetPermission(ctx context.Context, id string) (*Permission, error) {
	var p Permission
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, category, description, created_at, updated_at FROM permissions WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Name, &p.Category, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("rbac: get permission: %w", err)
	}
	return &p, nil
}

func (s *PGStore) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, category, description, created_at, updated_at FROM permissions ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("rbac: list permissions: %w", err)
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("rbac: scan permission: %w", err)
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (s *PGStore) CreatePermission(ctx context.Context, p Permission) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO permissions (id, name, category, description, created_at, updated_at) VALUES ($1, $2, $3, $4, NOW(), NOW())`,
		p.ID, p.Name, p.Category, p.Description,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: permission %s", httpx.ErrDuplicate, p.ID)
	}
	return err
}

func (s *PGStore) UpdatePermission(ctx context.Context, p Permission) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE permissions SET name = $2, category = $3, description = $4, updated_at = NOW() WHERE id = $1`,
		p.ID, p.Name, p.Category, p.Description,
	)
	if err != nil {
		return false, fmt.Errorf("rbac: update permission: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PGStore) DeletePermission(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("rbac: delete permission: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PGStore) GetRole(ctx context.Context, id string) (*Role, error) {
	var (
		r    Role
		refs []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, scope, name, description, permission_refs, created_at, updated_at FROM roles WHERE id = $1`,
		id,
	).Scan(&r.ID, &r.Scope, &r.Name, &r.Description, &refs, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("rbac: get role: %w", err)
	}
	if err := json.Unmarshal(refs, &r.Permissions); err != nil {
		return nil, fmt.Errorf("rbac: decode role refs: %w", err)
	}
	return &r, nil
}

func (s *PGStore) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, scope, name, description, permission_refs, created_at, updated_at FROM roles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("rbac: list roles: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var (
			r    Role
			refs []byte
		)
		if err := rows.Scan(&r.ID, &r.Scope, &r.Name, &r.Description, &refs, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("rbac: scan role: %w", err)
		}
		if err := json.Unmarshal(refs, &r.Permissions); err != nil {
			return nil, fmt.Errorf("rbac: decode role refs: %w", err)
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

func (s *PGStore) CreateRole(ctx context.Context, r Role) error {
	refs, err := json.Marshal(emptyRefs(r.Permissions))
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO roles (id, scope, name, description, permission_refs, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, NOW(), NOW())`,
		r.ID, r.Scope, r.Name, r.Description, refs,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: role %s", httpx.ErrDuplicate, r.ID)
	}
	return err
}

func (s *PGStore) UpdateRole(ctx context.Context, r Role) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE roles SET name = $2, description = $3, updated_at = NOW() WHERE id = $1`,
		r.ID, r.Name, r.Description,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return false, fmt.Errorf("%w: role name %s", httpx.ErrDuplicate, r.Name)
		}
		return false, fmt.Errorf("rbac: update role: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PGStore) SetRolePermissions(ctx context.Context, roleID string, refs []PermissionRef) (bool, error) {
	data, err := json.Marshal(emptyRefs(refs))
	if err != nil {
		return false, err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE roles SET permission_refs = $2, updated_at = NOW() WHERE id = $1`,
		roleID, data,
	)
	if err != nil {
		return false, fmt.Errorf("rbac: set role permissions: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PGStore) DeleteRole(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("rbac: delete role: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PGStore) GetUserAccess(ctx context.Context, userID string) (*UserAccess, error) {
	var (
		access UserAccess
		roles  []byte
		custom []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, role_ids, custom_permissions FROM users WHERE id = $1`,
		userID,
	).Scan(&access.UserID, &roles, &custom)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("rbac: get user access: %w", err)
	}
	if err := json.Unmarshal(roles, &access.Roles); err != nil {
		return nil, fmt.Errorf("rbac: decode user roles: %w", err)
	}
	if err := json.Unmarshal(custom, &access.CustomPermissions); err != nil {
		return nil, fmt.Errorf("rbac: decode user custom permissions: %w", err)
	}
	return &access, nil
}

func (s *PGStore) SetUserRoles(ctx context.Context, userID string, roleIDs []string) (bool, error) {
	data, err := json.Marshal(emptyStrings(roleIDs))
	if err != nil {
		return false, err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET role_ids = $2, updated_at = NOW() WHERE id = $1`,
		userID, data,
	)
	if err != nil {
		return false, fmt.Errorf("rbac: set user roles: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PGStore) SetUserCustomPermissions(ctx context.Context, userID string, perms []string) (bool, error) {
	data, err := json.Marshal(emptyStrings(perms))
	if err != nil {
		return false, err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET custom_permissions = $2, updated_at = NOW() WHERE id = $1`,
		userID, data,
	)
	if err != nil {
		return false, fmt.Errorf("rbac: set user custom permissions: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

var _ Store = (*PGStore)(nil)

// emptyRefs keeps jsonb columns as [] rather than null.
func emptyRefs(refs []PermissionRef) []PermissionRef {
	if refs == nil {
		return []PermissionRef{}
	}
	return refs
}

func emptyStrings(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

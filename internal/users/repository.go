package users

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

// Repository defines persistence operations for user accounts.
type Repository interface {
	Get(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, req ListUsersRequest) ([]User, int, error)
	Create(ctx context.Context, user User) error
	Update(ctx context.Context, id string, updates map[string]any) (bool, error)
}

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id, email, name, password_hash, is_active, role_ids, custom_permissions, created_at, updated_at`

func (r *PGRepository) Get(ctx context.Context, id string) (*User, error) {
	return r.getBy(ctx, "id", id)
}

func (r *PGRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getBy(ctx, "email", email)
}

func (r *PGRepository) getBy(ctx context.Context, column, value string) (*User, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM users WHERE %s = $1`, userColumns, column), value)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: user", httpx.ErrNotFound)
		}
		return nil, err
	}
	return user, nil
}

func (r *PGRepository) List(ctx context.Context, req ListUsersRequest) ([]User, int, error) {
	var conditions []string
	var args []any
	argPos := 1

	if req.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", argPos))
		args = append(args, *req.IsActive)
		argPos++
	}
	if req.Search != nil && *req.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(email ILIKE $%d OR name ILIKE $%d)", argPos, argPos))
		args = append(args, "%"+*req.Search+"%")
		argPos++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + conditions[0]
		for i := 1; i < len(conditions); i++ {
			whereClause += " AND " + conditions[i]
		}
	}

	var total int
	if err := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM users %s", whereClause), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM users %s ORDER BY email LIMIT $%d OFFSET $%d`, userColumns, whereClause, argPos, argPos+1)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *user)
	}
	return users, total, rows.Err()
}

func (r *PGRepository) Create(ctx context.Context, user User) error {
	roles, err := json.Marshal(user.Roles)
	if err != nil {
		return err
	}
	custom := user.CustomPermissions
	if custom == nil {
		custom = []string{}
	}
	customJSON, err := json.Marshal(custom)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO users (id, email, name, password_hash, is_active, role_ids, custom_permissions, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())`,
		user.ID, user.Email, user.Name, user.PasswordHash, user.IsActive, roles, customJSON,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: email already registered", httpx.ErrDuplicate)
	}
	return err
}

func (r *PGRepository) Update(ctx context.Context, id string, updates map[string]any) (bool, error) {
	query := "UPDATE users SET updated_at = NOW()"
	var args []any
	argPos := 1

	if v, ok := updates["name"]; ok {
		query += fmt.Sprintf(", name = $%d", argPos)
		args = append(args, v)
		argPos++
	}
	if v, ok := updates["is_active"]; ok {
		query += fmt.Sprintf(", is_active = $%d", argPos)
		args = append(args, v)
		argPos++
	}
	if v, ok := updates["password_hash"]; ok {
		query += fmt.Sprintf(", password_hash = $%d", argPos)
		args = append(args, v)
		argPos++
	}

	query += fmt.Sprintf(" WHERE id = $%d", argPos)
	args = append(args, id)

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

var _ Repository = (*PGRepository)(nil)

func scanUser(row pgx.Row) (*User, error) {
	var (
		u      User
		roles  []byte
		custom []byte
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.IsActive, &roles, &custom, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(roles, &u.Roles); err != nil {
		return nil, fmt.Errorf("users: decode roles: %w", err)
	}
	if err := json.Unmarshal(custom, &u.CustomPermissions); err != nil {
		return nil, fmt.Errorf("users: decode custom permissions: %w", err)
	}
	return &u, nil
}

package sellers

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/motorlot/motorlot/internal/platform/db"
	"github.com/motorlot/motorlot/internal/platform/httpx"
)

// Repository defines persistence operations for seller profiles.
type Repository interface {
	Get(ctx context.Context, id string) (*Seller, error)
	List(ctx context.Context, req ListSellersRequest) ([]Seller, int, error)
	Create(ctx context.Context, seller Seller) error
	Update(ctx context.Context, id string, updates map[string]any) (bool, error)
	Deactivate(ctx context.Context, id string) (bool, error)
}

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const sellerColumns = `id, owner_user_id, kind, name, contact_email, contact_phone, region, is_active, created_at, updated_at`

func (r *PGRepository) Get(ctx context.Context, id string) (*Seller, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM sellers WHERE id = $1`, sellerColumns), id)
	seller, err := scanSeller(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: seller", httpx.ErrNotFound)
		}
		return nil, err
	}
	return seller, nil
}

func (r *PGRepository) List(ctx context.Context, req ListSellersRequest) ([]Seller, int, error) {
	var conditions []string
	var args []any
	argPos := 1

	if req.Kind != "" {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", argPos))
		args = append(args, req.Kind)
		argPos++
	}
	if req.Region != "" {
		conditions = append(conditions, fmt.Sprintf("region = $%d", argPos))
		args = append(args, req.Region)
		argPos++
	}
	if req.OwnerUserID != "" {
		conditions = append(conditions, fmt.Sprintf("owner_user_id = $%d", argPos))
		args = append(args, req.OwnerUserID)
		argPos++
	}
	if req.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", argPos))
		args = append(args, *req.IsActive)
		argPos++
	}
	if req.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR contact_email ILIKE $%d)", argPos, argPos))
		args = append(args, "%"+req.Search+"%")
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
	if err := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM sellers %s", whereClause), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM sellers %s ORDER BY name LIMIT $%d OFFSET $%d`, sellerColumns, whereClause, argPos, argPos+1)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Seller
	for rows.Next() {
		seller, err := scanSeller(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *seller)
	}
	return out, total, rows.Err()
}

func (r *PGRepository) Create(ctx context.Context, seller Seller) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sellers (id, owner_user_id, kind, name, contact_email, contact_phone, region, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())`,
		seller.ID, seller.OwnerUserID, seller.Kind, seller.Name, seller.ContactEmail, seller.ContactPhone, seller.Region, seller.IsActive,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: seller already registered", httpx.ErrDuplicate)
	}
	return err
}

func (r *PGRepository) Update(ctx context.Context, id string, updates map[string]any) (bool, error) {
	query := "UPDATE sellers SET updated_at = NOW()"
	var args []any
	argPos := 1

	for _, column := range []string{"name", "contact_email", "contact_phone", "region", "is_active"} {
		if v, ok := updates[column]; ok {
			query += fmt.Sprintf(", %s = $%d", column, argPos)
			args = append(args, v)
			argPos++
		}
	}

	query += fmt.Sprintf(" WHERE id = $%d", argPos)
	args = append(args, id)

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Deactivate retires the seller and archives its open listings in one
// transaction so a half-retired profile never leaks published stock.
func (r *PGRepository) Deactivate(ctx context.Context, id string) (bool, error) {
	var found bool
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE sellers SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("deactivate seller: %w", err)
		}
		found = tag.RowsAffected() > 0
		if !found {
			return nil
		}
		_, err = tx.Exec(ctx,
			`UPDATE listings SET status = 'archived', updated_at = NOW() WHERE seller_id = $1 AND status IN ('draft', 'published')`,
			id,
		)
		if err != nil {
			return fmt.Errorf("archive seller listings: %w", err)
		}
		return nil
	})
	return found, err
}

var _ Repository = (*PGRepository)(nil)

func scanSeller(row pgx.Row) (*Seller, error) {
	var s Seller
	if err := row.Scan(&s.ID, &s.OwnerUserID, &s.Kind, &s.Name, &s.ContactEmail, &s.ContactPhone, &s.Region, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

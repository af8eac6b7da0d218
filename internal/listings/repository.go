package listings

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/motorlot/motorlot/internal/platform/httpx"
)

// Repository defines persistence operations for listings.
type Repository interface {
	Get(ctx context.Context, id string) (*Listing, error)
	List(ctx context.Context, req ListListingsRequest) ([]Listing, int, error)
	Create(ctx context.Context, listing Listing) error
	Update(ctx context.Context, id string, updates map[string]any) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const listingColumns = `id, seller_id, owner_user_id, title, make, model, year, price_cents, mileage, status, description, published_at, created_at, updated_at`

func (r *PGRepository) Get(ctx context.Context, id string) (*Listing, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM listings WHERE id = $1`, listingColumns), id)
	listing, err := scanListing(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: listing", httpx.ErrNotFound)
		}
		return nil, err
	}
	return listing, nil
}

func (r *PGRepository) List(ctx context.Context, req ListListingsRequest) ([]Listing, int, error) {
	var conditions []string
	var args []any
	argPos := 1

	add := func(cond string, value any) {
		conditions = append(conditions, fmt.Sprintf(cond, argPos))
		args = append(args, value)
		argPos++
	}

	if req.SellerID != "" {
		add("seller_id = $%d", req.SellerID)
	}
	if req.Status != "" {
		add("status = $%d", req.Status)
	}
	if req.Make != "" {
		add("make ILIKE $%d", req.Make)
	}
	if req.YearMin > 0 {
		add("year >= $%d", req.YearMin)
	}
	if req.YearMax > 0 {
		add("year <= $%d", req.YearMax)
	}
	if req.PriceMax > 0 {
		add("price_cents <= $%d", req.PriceMax)
	}
	if req.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR make ILIKE $%d OR model ILIKE $%d)", argPos, argPos, argPos))
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
	if err := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM listings %s", whereClause), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM listings %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, listingColumns, whereClause, argPos, argPos+1)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Listing
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *listing)
	}
	return out, total, rows.Err()
}

func (r *PGRepository) Create(ctx context.Context, listing Listing) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO listings (id, seller_id, owner_user_id, title, make, model, year, price_cents, mileage, status, description, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())`,
		listing.ID, listing.SellerID, listing.OwnerUserID, listing.Title, listing.Make, listing.Model,
		listing.Year, listing.PriceCents, listing.Mileage, listing.Status, listing.Description,
	)
	return err
}

func (r *PGRepository) Update(ctx context.Context, id string, updates map[string]any) (bool, error) {
	query := "UPDATE listings SET updated_at = NOW()"
	var args []any
	argPos := 1

	for _, column := range []string{"title", "price_cents", "mileage", "description", "status", "published_at"} {
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

func (r *PGRepository) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM listings WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

var _ Repository = (*PGRepository)(nil)

func scanListing(row pgx.Row) (*Listing, error) {
	var l Listing
	if err := row.Scan(&l.ID, &l.SellerID, &l.OwnerUserID, &l.Title, &l.Make, &l.Model, &l.Year,
		&l.PriceCents, &l.Mileage, &l.Status, &l.Description, &l.PublishedAt, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/motorlot/motorlot/internal/platform/httpx"
)

// Repository defines persistence operations for invoices.
type Repository interface {
	Get(ctx context.Context, id string) (*Invoice, error)
	GetByProviderRef(ctx context.Context, ref string) (*Invoice, error)
	List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error)
	Create(ctx context.Context, invoice Invoice) error
	SetStatus(ctx context.Context, id, status string, paidAt *time.Time) (bool, error)
}

// ListInvoicesRequest captures list filters.
type ListInvoicesRequest struct {
	SellerID       string
	SubscriptionID string
	Status         string
	Limit          int
	Offset         int
}

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const invoiceColumns = `id, seller_id, subscription_id, amount_cents, currency, status, provider_ref, paid_at, created_at, updated_at`

func (r *PGRepository) Get(ctx context.Context, id string) (*Invoice, error) {
	return r.getBy(ctx, "id", id)
}

func (r *PGRepository) GetByProviderRef(ctx context.Context, ref string) (*Invoice, error) {
	return r.getBy(ctx, "provider_ref", ref)
}

func (r *PGRepository) getBy(ctx context.Context, column, value string) (*Invoice, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM invoices WHERE %s = $1`, invoiceColumns, column), value)
	invoice, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: invoice", httpx.ErrNotFound)
		}
		return nil, err
	}
	return invoice, nil
}

func (r *PGRepository) List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error) {
	var conditions []string
	var args []any
	argPos := 1

	if req.SellerID != "" {
		conditions = append(conditions, fmt.Sprintf("seller_id = $%d", argPos))
		args = append(args, req.SellerID)
		argPos++
	}
	if req.SubscriptionID != "" {
		conditions = append(conditions, fmt.Sprintf("subscription_id = $%d", argPos))
		args = append(args, req.SubscriptionID)
		argPos++
	}
	if req.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, req.Status)
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
	if err := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM invoices %s", whereClause), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM invoices %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, invoiceColumns, whereClause, argPos, argPos+1)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *invoice)
	}
	return out, total, rows.Err()
}

func (r *PGRepository) Create(ctx context.Context, invoice Invoice) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO invoices (id, seller_id, subscription_id, amount_cents, currency, status, provider_ref, created_at, updated_at)
		 VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, NULLIF($7, ''), NOW(), NOW())`,
		invoice.ID, invoice.SellerID, invoice.SubscriptionID, invoice.AmountCents, invoice.Currency, invoice.Status, invoice.ProviderRef,
	)
	return err
}

// SetStatus moves an open invoice to a settled status. The status guard in
// the query makes replayed events no-ops at the database level.
func (r *PGRepository) SetStatus(ctx context.Context, id, status string, paidAt *time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE invoices SET status = $1, paid_at = COALESCE($2, paid_at), updated_at = NOW() WHERE id = $3 AND status = $4`,
		status, paidAt, id, StatusOpen,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

var _ Repository = (*PGRepository)(nil)

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var (
		inv         Invoice
		subID       *string
		providerRef *string
	)
	if err := row.Scan(&inv.ID, &inv.SellerID, &subID, &inv.AmountCents, &inv.Currency, &inv.Status, &providerRef, &inv.PaidAt, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
		return nil, err
	}
	if subID != nil {
		inv.SubscriptionID = *subID
	}
	if providerRef != nil {
		inv.ProviderRef = *providerRef
	}
	return &inv, nil
}

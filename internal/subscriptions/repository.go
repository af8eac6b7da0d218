package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/motorlot/motorlot/internal/platform/httpx"
)

// Repository defines persistence operations for plans and subscriptions.
type Repository interface {
	GetPlan(ctx context.Context, id string) (*Plan, error)
	GetPlanByCode(ctx context.Context, code string) (*Plan, error)
	ListPlans(ctx context.Context, activeOnly bool) ([]Plan, error)
	CreatePlan(ctx context.Context, plan Plan) error
	UpdatePlan(ctx context.Context, id string, updates map[string]any) (bool, error)

	GetSubscription(ctx context.Context, id string) (*Subscription, error)
	ActiveForSeller(ctx context.Context, sellerID string) (*Subscription, error)
	ListForSeller(ctx context.Context, sellerID string) ([]Subscription, error)
	CreateSubscription(ctx context.Context, sub Subscription) error
	SetStatus(ctx context.Context, id, status string, canceledAt *time.Time) (bool, error)
	ExpireLapsed(ctx context.Context, cutoff time.Time) ([]Subscription, error)
}

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const planColumns = `id, code, name, price_cents, currency, interval_months, listing_quota, is_active, created_at, updated_at`
const subscriptionColumns = `id, seller_id, plan_id, status, period_start, period_end, canceled_at, created_at, updated_at`

func (r *PGRepository) GetPlan(ctx context.Context, id string) (*Plan, error) {
	return r.getPlanBy(ctx, "id", id)
}

func (r *PGRepository) GetPlanByCode(ctx context.Context, code string) (*Plan, error) {
	return r.getPlanBy(ctx, "code", code)
}

func (r *PGRepository) getPlanBy(ctx context.Context, column, value string) (*Plan, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM plans WHERE %s = $1`, planColumns, column), value)
	plan, err := scanPlan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: plan", httpx.ErrNotFound)
		}
		return nil, err
	}
	return plan, nil
}

func (r *PGRepository) ListPlans(ctx context.Context, activeOnly bool) ([]Plan, error) {
	query := fmt.Sprintf(`SELECT %s FROM plans ORDER BY price_cents`, planColumns)
	if activeOnly {
		query = fmt.Sprintf(`SELECT %s FROM plans WHERE is_active ORDER BY price_cents`, planColumns)
	}
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Plan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *plan)
	}
	return out, rows.Err()
}

func (r *PGRepository) CreatePlan(ctx context.Context, plan Plan) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO plans (id, code, name, price_cents, currency, interval_months, listing_quota, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())`,
		plan.ID, plan.Code, plan.Name, plan.PriceCents, plan.Currency, plan.IntervalMonths, plan.ListingQuota, plan.IsActive,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: plan code already exists", httpx.ErrDuplicate)
	}
	return err
}

func (r *PGRepository) UpdatePlan(ctx context.Context, id string, updates map[string]any) (bool, error) {
	query := "UPDATE plans SET updated_at = NOW()"
	var args []any
	argPos := 1

	for _, column := range []string{"name", "price_cents", "listing_quota", "is_active"} {
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

func (r *PGRepository) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM subscriptions WHERE id = $1`, subscriptionColumns), id)
	sub, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: subscription", httpx.ErrNotFound)
		}
		return nil, err
	}
	return sub, nil
}

// ActiveForSeller returns the seller's current subscription, nil when the
// seller has none in a live status.
func (r *PGRepository) ActiveForSeller(ctx context.Context, sellerID string) (*Subscription, error) {
	row := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM subscriptions WHERE seller_id = $1 AND status IN ($2, $3, $4) ORDER BY period_end DESC LIMIT 1`, subscriptionColumns),
		sellerID, StatusActive, StatusPastDue, StatusCanceled,
	)
	sub, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return sub, nil
}

func (r *PGRepository) ListForSeller(ctx context.Context, sellerID string) ([]Subscription, error) {
	rows, err := r.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM subscriptions WHERE seller_id = $1 ORDER BY period_start DESC`, subscriptionColumns), sellerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sub)
	}
	return out, rows.Err()
}

func (r *PGRepository) CreateSubscription(ctx context.Context, sub Subscription) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO subscriptions (id, seller_id, plan_id, status, period_start, period_end, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())`,
		sub.ID, sub.SellerID, sub.PlanID, sub.Status, sub.PeriodStart, sub.PeriodEnd,
	)
	return err
}

func (r *PGRepository) SetStatus(ctx context.Context, id, status string, canceledAt *time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE subscriptions SET status = $1, canceled_at = COALESCE($2, canceled_at), updated_at = NOW() WHERE id = $3`,
		status, canceledAt, id,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ExpireLapsed flips every lapsed live subscription to expired and returns
// the affected rows.
func (r *PGRepository) ExpireLapsed(ctx context.Context, cutoff time.Time) ([]Subscription, error) {
	rows, err := r.pool.Query(ctx,
		fmt.Sprintf(`UPDATE subscriptions SET status = $1, updated_at = NOW()
		 WHERE period_end < $2 AND status IN ($3, $4, $5)
		 RETURNING %s`, subscriptionColumns),
		StatusExpired, cutoff, StatusActive, StatusPastDue, StatusCanceled,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sub)
	}
	return out, rows.Err()
}

var _ Repository = (*PGRepository)(nil)

func scanPlan(row pgx.Row) (*Plan, error) {
	var p Plan
	if err := row.Scan(&p.ID, &p.Code, &p.Name, &p.PriceCents, &p.Currency, &p.IntervalMonths, &p.ListingQuota, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanSubscription(row pgx.Row) (*Subscription, error) {
	var s Subscription
	if err := row.Scan(&s.ID, &s.SellerID, &s.PlanID, &s.Status, &s.PeriodStart, &s.PeriodEnd, &s.CanceledAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines persistence for inbox entries and preferences.
type Repository interface {
	Insert(ctx context.Context, n Notification) error
	ListForUser(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]Notification, int, error)
	MarkRead(ctx context.Context, id, userID string) (bool, error)
	Preferences(ctx context.Context, userID string) ([]Preference, error)
	SetPreference(ctx context.Context, pref Preference) error
}

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) Insert(ctx context.Context, n Notification) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO notifications (id, user_id, category, title, body, created_at) VALUES ($1, $2, $3, $4, $5, NOW())`,
		n.ID, n.UserID, n.Category, n.Title, n.Body,
	)
	return err
}

func (r *PGRepository) ListForUser(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]Notification, int, error) {
	where := "WHERE user_id = $1"
	if unreadOnly {
		where += " AND read_at IS NULL"
	}

	var total int
	if err := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM notifications %s", where), userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		fmt.Sprintf(`SELECT id, user_id, category, title, body, read_at, created_at FROM notifications %s ORDER BY created_at DESC LIMIT $2 OFFSET $3`, where),
		userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Category, &n.Title, &n.Body, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, n)
	}
	return out, total, rows.Err()
}

func (r *PGRepository) MarkRead(ctx context.Context, id, userID string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE notifications SET read_at = $1 WHERE id = $2 AND user_id = $3 AND read_at IS NULL`,
		time.Now().UTC(), id, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PGRepository) Preferences(ctx context.Context, userID string) ([]Preference, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, category, channel, enabled FROM notification_preferences WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Preference
	for rows.Next() {
		var p Preference
		if err := rows.Scan(&p.UserID, &p.Category, &p.Channel, &p.Enabled); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PGRepository) SetPreference(ctx context.Context, pref Preference) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO notification_preferences (user_id, category, channel, enabled)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, category, channel) DO UPDATE SET enabled = EXCLUDED.enabled`,
		pref.UserID, pref.Category, pref.Channel, pref.Enabled)
	return err
}

var _ Repository = (*PGRepository)(nil)

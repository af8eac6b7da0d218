// Package listings manages vehicle listings and their publishing lifecycle.
package listings

import "time"

// Listing lifecycle statuses. A listing starts as a draft, goes live when
// published and ends up sold or archived.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusSold      = "sold"
	StatusArchived  = "archived"
)

// Listing is a single vehicle for sale.
type Listing struct {
	ID          string    `json:"id"`
	SellerID    string    `json:"seller_id"`
	OwnerUserID string    `json:"owner_user_id"`
	Title       string    `json:"title"`
	Make        string    `json:"make"`
	Model       string    `json:"model"`
	Year        int       `json:"year"`
	PriceCents  int64     `json:"price_cents"`
	Mileage     int       `json:"mileage"`
	Status      string    `json:"status"`
	Description string    `json:"description,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to string) bool {
	switch from {
	case StatusDraft:
		return to == StatusPublished || to == StatusArchived
	case StatusPublished:
		return to == StatusSold || to == StatusArchived
	default:
		return false
	}
}

// Package subscriptions manages plans and seller subscriptions.
package subscriptions

import "time"

// Subscription statuses. Cancel keeps the paid period running; the nightly
// expiry scan flips lapsed periods to expired.
const (
	StatusActive   = "active"
	StatusPastDue  = "past_due"
	StatusCanceled = "canceled"
	StatusExpired  = "expired"
)

// Plan is a purchasable subscription tier.
type Plan struct {
	ID             string    `json:"id"`
	Code           string    `json:"code"`
	Name           string    `json:"name"`
	PriceCents     int64     `json:"price_cents"`
	Currency       string    `json:"currency"`
	IntervalMonths int       `json:"interval_months"`
	ListingQuota   int       `json:"listing_quota"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Subscription ties a seller to a plan for a billing period.
type Subscription struct {
	ID          string     `json:"id"`
	SellerID    string     `json:"seller_id"`
	PlanID      string     `json:"plan_id"`
	Status      string     `json:"status"`
	PeriodStart time.Time  `json:"period_start"`
	PeriodEnd   time.Time  `json:"period_end"`
	CanceledAt  *time.Time `json:"canceled_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// InGoodStanding reports whether the subscription still grants access at
// the given instant. Canceled subscriptions keep access until period end.
func (s Subscription) InGoodStanding(at time.Time) bool {
	switch s.Status {
	case StatusActive, StatusCanceled:
		return at.Before(s.PeriodEnd)
	default:
		return false
	}
}

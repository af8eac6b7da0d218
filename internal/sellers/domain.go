// Package sellers manages the seller/dealer profiles listings hang off.
package sellers

import "time"

const (
	KindPrivate = "private"
	KindDealer  = "dealer"
)

// Seller is a selling party on the marketplace, owned by a user account.
type Seller struct {
	ID           string    `json:"id"`
	OwnerUserID  string    `json:"owner_user_id"`
	Kind         string    `json:"kind"`
	Name         string    `json:"name"`
	ContactEmail string    `json:"contact_email"`
	ContactPhone string    `json:"contact_phone,omitempty"`
	Region       string    `json:"region,omitempty"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

package users

import "time"

// User represents a marketplace account. Role assignments and custom
// permission grants live on the record itself as ordered lists.
type User struct {
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	Name              string    `json:"name"`
	PasswordHash      string    `json:"-"`
	IsActive          bool      `json:"is_active"`
	Roles             []string  `json:"roles"`
	CustomPermissions []string  `json:"custom_permissions"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

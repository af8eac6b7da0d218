package notifications

import "time"

// Notification is one in-app inbox entry.
type Notification struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Category  string     `json:"category"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Preference is a stored per-user channel choice for one category.
type Preference struct {
	UserID   string `json:"user_id"`
	Category string `json:"category"`
	Channel  string `json:"channel"`
	Enabled  bool   `json:"enabled"`
}

// EmailPayload is handed to the queue for asynchronous delivery. The
// template key selects subject and body server-side; params fill them in.
type EmailPayload struct {
	To          string            `json:"to"`
	TemplateKey string            `json:"template_key"`
	Params      map[string]string `json:"params,omitempty"`
}

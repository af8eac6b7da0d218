package sellers

// CreateSellerRequest carries the payload for registering a seller profile.
type CreateSellerRequest struct {
	OwnerUserID  string `json:"owner_user_id" validate:"required"`
	Kind         string `json:"kind" validate:"required,oneof=private dealer"`
	Name         string `json:"name" validate:"required,max=200"`
	ContactEmail string `json:"contact_email" validate:"required,email"`
	ContactPhone string `json:"contact_phone" validate:"omitempty,max=40"`
	Region       string `json:"region" validate:"omitempty,max=100"`
}

// UpdateSellerRequest carries a partial profile update.
type UpdateSellerRequest struct {
	Name         *string `json:"name" validate:"omitempty,max=200"`
	ContactEmail *string `json:"contact_email" validate:"omitempty,email"`
	ContactPhone *string `json:"contact_phone" validate:"omitempty,max=40"`
	Region       *string `json:"region" validate:"omitempty,max=100"`
	IsActive     *bool   `json:"is_active"`
}

// ListSellersRequest captures list filters.
type ListSellersRequest struct {
	Search      string
	Kind        string
	Region      string
	OwnerUserID string
	IsActive    *bool
	Limit       int
	Offset      int
}

package listings

// CreateListingRequest carries the payload for creating a draft listing.
type CreateListingRequest struct {
	SellerID    string `json:"seller_id" validate:"required"`
	Title       string `json:"title" validate:"required,max=200"`
	Make        string `json:"make" validate:"required,max=80"`
	Model       string `json:"model" validate:"required,max=80"`
	Year        int    `json:"year" validate:"required,gte=1900,lte=2100"`
	PriceCents  int64  `json:"price_cents" validate:"required,gt=0"`
	Mileage     int    `json:"mileage" validate:"gte=0"`
	Description string `json:"description" validate:"omitempty,max=5000"`
}

// UpdateListingRequest carries a partial update. Status changes go through
// the dedicated transition endpoints.
type UpdateListingRequest struct {
	Title       *string `json:"title" validate:"omitempty,max=200"`
	PriceCents  *int64  `json:"price_cents" validate:"omitempty,gt=0"`
	Mileage     *int    `json:"mileage" validate:"omitempty,gte=0"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
}

// ListListingsRequest captures search and filters.
type ListListingsRequest struct {
	Search   string
	SellerID string
	Status   string
	Make     string
	YearMin  int
	YearMax  int
	PriceMax int64
	Limit    int
	Offset   int
}

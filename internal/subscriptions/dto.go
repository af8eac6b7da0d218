package subscriptions

// CreatePlanRequest carries the payload for defining a plan.
type CreatePlanRequest struct {
	Code           string `json:"code" validate:"required,max=60"`
	Name           string `json:"name" validate:"required,max=200"`
	PriceCents     int64  `json:"price_cents" validate:"required,gt=0"`
	Currency       string `json:"currency" validate:"required,len=3"`
	IntervalMonths int    `json:"interval_months" validate:"required,gte=1,lte=24"`
	ListingQuota   int    `json:"listing_quota" validate:"required,gte=1"`
}

// UpdatePlanRequest carries a partial plan update. Code and interval are
// immutable once sellers are subscribed.
type UpdatePlanRequest struct {
	Name         *string `json:"name" validate:"omitempty,max=200"`
	PriceCents   *int64  `json:"price_cents" validate:"omitempty,gt=0"`
	ListingQuota *int    `json:"listing_quota" validate:"omitempty,gte=1"`
	IsActive     *bool   `json:"is_active"`
}

// SubscribeRequest starts a subscription for a seller.
type SubscribeRequest struct {
	SellerID string `json:"seller_id" validate:"required"`
	PlanCode string `json:"plan_code" validate:"required"`
}

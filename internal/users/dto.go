package users

type CreateUserRequest struct {
	Email    string   `json:"email" validate:"required,email,max=200"`
	Name     string   `json:"name" validate:"required,max=200"`
	Password string   `json:"password" validate:"required,min=10,max=128"`
	Roles    []string `json:"roles" validate:"required,min=1,dive,required"`
}

type UpdateUserRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,max=200"`
	IsActive *bool   `json:"is_active,omitempty"`
}

type ListUsersRequest struct {
	Search   *string `json:"search,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
	Limit    int     `json:"limit" validate:"gte=0,lte=1000"`
	Offset   int     `json:"offset" validate:"gte=0"`
}

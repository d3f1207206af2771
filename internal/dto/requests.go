package dto

// RegisterRequest represents the request to register a new account
type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest represents the request to log in
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest represents the request to refresh a token pair
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// CreateOfferRequest represents the request to create a service offer
type CreateOfferRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	ServiceType string `json:"service_type" binding:"required"`
	Hours       int    `json:"hours" binding:"required"`
	TimeCredits int    `json:"time_credits" binding:"required"`
}

// UpdateOfferRequest represents the request to edit an offer's fields
type UpdateOfferRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	ServiceType string `json:"service_type" binding:"required"`
	Hours       int    `json:"hours" binding:"required"`
	TimeCredits int    `json:"time_credits" binding:"required"`
}

// UpdateApplicationStatusRequest represents the request to accept or reject an application
type UpdateApplicationStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateProfileRequest represents the request to update the caller's profile
type UpdateProfileRequest struct {
	DisplayName string   `json:"display_name"`
	Bio         string   `json:"bio"`
	Location    string   `json:"location"`
	Services    []string `json:"services"`
}

package dto

import (
	"github.com/timecraft/timebank-backend/internal/models"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// SuccessResponse represents a standard success response
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// TokenPairResponse represents an issued access/refresh token pair
type TokenPairResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         *models.User `json:"user,omitempty"`
}

// OfferResponse represents an offer with its application count
type OfferResponse struct {
	*models.Offer
	ApplicationsCount int `json:"applications_count"`
}

// ClaimResponse represents the outcome of a credit claim.
// AlreadyClaimed is true when the credits were claimed earlier and
// this call changed nothing.
type ClaimResponse struct {
	Transaction    *models.Transaction `json:"transaction"`
	AlreadyClaimed bool                `json:"already_claimed"`
}

// BalanceResponse represents a user's stored and available balance
type BalanceResponse struct {
	Balance   int `json:"balance"`
	Available int `json:"available"`
}

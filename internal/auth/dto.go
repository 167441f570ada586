package auth

import "github.com/angelmondragon/marketprep-backend/internal/vendors"

// RegisterRequest is the payload for POST /api/v1/auth/register.
type RegisterRequest struct {
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=8,max=128"`
	BusinessName string `json:"business_name" validate:"required,min=1,max=200"`
}

// LoginRequest is the payload for POST /api/v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest exchanges a refresh token for a new token pair.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// AuthResponse is returned by register, login and refresh.
type AuthResponse struct {
	Vendor       vendors.VendorDTO `json:"vendor"`
	AccessToken  string            `json:"access_token"`
	RefreshToken string            `json:"refresh_token"`
	TokenType    string            `json:"token_type"`
}

package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/marketprep-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	VendorID uuid.UUID
	Tier     enums.SubscriptionTier
	// JTI doubles as the refresh session id; generated when empty.
	JTI string
}

// AccessTokenClaims represents the typed JWT issued to vendors.
type AccessTokenClaims struct {
	VendorID uuid.UUID              `json:"vid"`
	Tier     enums.SubscriptionTier `json:"tier"`
	jwt.RegisteredClaims
}

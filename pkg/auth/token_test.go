package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/marketprep-backend/pkg/config"
	"github.com/angelmondragon/marketprep-backend/pkg/enums"
)

var testJWT = config.JWTConfig{
	Secret:            "secret",
	Issuer:            "marketprep",
	ExpirationMinutes: 30,
}

func TestMintAndParseAccessToken(t *testing.T) {
	now := time.Now().UTC()
	vendorID := uuid.New()

	token, err := MintAccessToken(testJWT, now, AccessTokenPayload{
		VendorID: vendorID,
		Tier:     enums.SubscriptionTierPro,
		JTI:      "session-1",
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(testJWT, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.VendorID != vendorID {
		t.Fatalf("vendor id mismatch: %s", claims.VendorID)
	}
	if claims.Tier != enums.SubscriptionTierPro {
		t.Fatalf("tier mismatch: %s", claims.Tier)
	}
	if claims.ID != "session-1" {
		t.Fatalf("jti mismatch: %s", claims.ID)
	}
	if claims.Subject != vendorID.String() {
		t.Fatalf("subject mismatch: %s", claims.Subject)
	}
}

func TestMintAccessTokenValidation(t *testing.T) {
	now := time.Now()
	cases := map[string]struct {
		cfg     config.JWTConfig
		payload AccessTokenPayload
	}{
		"missing secret": {config.JWTConfig{Issuer: "i", ExpirationMinutes: 1}, AccessTokenPayload{VendorID: uuid.New(), Tier: enums.SubscriptionTierFree}},
		"missing vendor": {testJWT, AccessTokenPayload{Tier: enums.SubscriptionTierFree}},
		"bad tier":       {testJWT, AccessTokenPayload{VendorID: uuid.New(), Tier: "platinum"}},
	}
	for name, tc := range cases {
		if _, err := MintAccessToken(tc.cfg, now, tc.payload); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	token, err := MintAccessToken(testJWT, time.Now().Add(-2*time.Hour), AccessTokenPayload{
		VendorID: uuid.New(),
		Tier:     enums.SubscriptionTierFree,
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseAccessToken(testJWT, token); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestParseAccessTokenRejectsWrongIssuerAndAlg(t *testing.T) {
	token, err := MintAccessToken(testJWT, time.Now(), AccessTokenPayload{VendorID: uuid.New(), Tier: enums.SubscriptionTierFree})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	other := testJWT
	other.Issuer = "someone-else"
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatal("expected issuer mismatch")
	}

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, AccessTokenClaims{VendorID: uuid.New()})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := ParseAccessToken(testJWT, raw); err == nil || !strings.Contains(err.Error(), "signing method") {
		t.Fatalf("expected signing method rejection, got %v", err)
	}
}

package auth

import (
	"testing"

	"github.com/google/uuid"

	"github.com/agrilinkhq/mandi-backend/pkg/config"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "mandi-test",
		ExpirationMinutes: 5,
	}
}

func TestMintAndParseRoundTrip(t *testing.T) {
	cfg := testJWTConfig()
	userID := uuid.New()
	shopID := uuid.New()

	raw, err := MintAccessToken(cfg, userID, &shopID, "shop")
	if err != nil {
		t.Fatalf("mint error: %v", err)
	}

	claims, err := ParseAccessToken(cfg, raw)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if claims.UserID != userID {
		t.Fatalf("expected user %s, got %s", userID, claims.UserID)
	}
	if claims.ShopID == nil || *claims.ShopID != shopID {
		t.Fatalf("expected shop %s, got %v", shopID, claims.ShopID)
	}
	if claims.Role != "shop" {
		t.Fatalf("unexpected role %q", claims.Role)
	}
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	cfg := testJWTConfig()
	raw, err := MintAccessToken(cfg, uuid.New(), nil, "farmer")
	if err != nil {
		t.Fatalf("mint error: %v", err)
	}

	other := cfg
	other.Issuer = "someone-else"
	if _, err := ParseAccessToken(other, raw); err == nil {
		t.Fatal("expected issuer mismatch to fail")
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	cfg := testJWTConfig()
	raw, err := MintAccessToken(cfg, uuid.New(), nil, "buyer")
	if err != nil {
		t.Fatalf("mint error: %v", err)
	}

	other := cfg
	other.Secret = "different"
	if _, err := ParseAccessToken(other, raw); err == nil {
		t.Fatal("expected signature mismatch to fail")
	}
}

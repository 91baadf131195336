package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/agrilinkhq/mandi-backend/pkg/config"
)

// AccessClaims carries the caller identity the settlement API consumes.
// Issuing and refreshing tokens is owned by the identity service; this
// package only parses what arrives on the wire.
type AccessClaims struct {
	UserID uuid.UUID
	ShopID *uuid.UUID
	Role   string
}

type tokenClaims struct {
	Role   string `json:"role"`
	ShopID string `json:"shop_id,omitempty"`
	jwt.RegisteredClaims
}

// ParseAccessToken validates the bearer token signature, issuer, and expiry,
// returning the embedded identity.
func ParseAccessToken(cfg config.JWTConfig, raw string) (*AccessClaims, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(cfg.Secret), nil
	}, jwt.WithIssuer(cfg.Issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is invalid")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("invalid subject: %w", err)
	}

	out := &AccessClaims{UserID: userID, Role: claims.Role}
	if claims.ShopID != "" {
		shopID, err := uuid.Parse(claims.ShopID)
		if err != nil {
			return nil, fmt.Errorf("invalid shop id: %w", err)
		}
		out.ShopID = &shopID
	}
	return out, nil
}

// MintAccessToken signs a short-lived token; used by dev tooling and tests.
func MintAccessToken(cfg config.JWTConfig, userID uuid.UUID, shopID *uuid.UUID, role string) (string, error) {
	ttl := time.Duration(cfg.ExpirationMinutes) * time.Minute
	if ttl <= 0 {
		ttl = time.Hour
	}
	claims := tokenClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	if shopID != nil {
		claims.ShopID = shopID.String()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.Secret))
}

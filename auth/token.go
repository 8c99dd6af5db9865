package auth

import (
	"context"
	"fmt"
	"time"

	"chat-gateway/domain"
	apperrors "chat-gateway/errors"

	"github.com/golang-jwt/jwt/v5"
)

// Claims defines the structure of the data stored inside the JWT.
// The subject carries the user identifier, matching the tokens issued
// by the account service.
type Claims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

// Resolver validates bearer tokens locally with an HMAC secret shared
// with the token issuer. It implements contract.TokenResolver.
type Resolver struct {
	secret []byte
}

func NewResolver(secret string) *Resolver {
	return &Resolver{secret: []byte(secret)}
}

// Resolve parses and validates the signature and expiration of a JWT
// string and returns the identity it references.
func (r *Resolver) Resolve(_ context.Context, tokenString string) (domain.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return r.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", apperrors.ErrUnauthenticated, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return "", apperrors.ErrUnauthenticated
	}
	return domain.Identity(claims.UserID), nil
}

// GenerateToken creates a signed JWT for a specific user.
// Used by tests and local tooling; token issuance itself belongs to the
// account service.
func GenerateToken(secret string, userID string, duration time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "chat-gateway",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

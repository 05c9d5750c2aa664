// Package services issues and validates the bearer tokens used by the admin API.
package services

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role represents a caller's permission level.
type Role string

const (
	RoleAdmin Role = "admin" // Can preview scrubbing, read alert stats and reset the dedup cache
)

const issuer = "telemetry-relay"

// Claims represents the JWT payload for authenticated requests.
type Claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

// AuthService handles JWT token generation and validation.
type AuthService struct {
	secret        []byte
	tokenDuration time.Duration
}

// NewAuthService creates an AuthService with the given signing secret and token duration.
func NewAuthService(secret string, tokenDuration time.Duration) *AuthService {
	return &AuthService{
		secret:        []byte(secret),
		tokenDuration: tokenDuration,
	}
}

// GenerateToken creates a signed JWT for subject with the given role.
func (s *AuthService) GenerateToken(subject string, role Role) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(s.tokenDuration)

	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// ValidateToken verifies the JWT signature, issuer and expiry, returning the claims if valid.
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithIssuer(issuer))

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

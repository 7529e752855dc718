package session

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ClaimType distinguishes the tokens a cluster-wide deployment issues to
// bind a Handle to a verified principal set.
type ClaimType string

const (
	// AccessClaim authorizes lock and ACL operations for its lifetime.
	AccessClaim ClaimType = "access"
)

// Claims is the JWT payload carried by a cluster-authenticated session,
// grounded on the teacher's internal/server/auth.Claims shape.
type Claims struct {
	Type       ClaimType `json:"type"`
	Principals []string  `json:"principals"`
	jwt.RegisteredClaims
}

// ParseClaims verifies and decodes a session token signed with secret.
func ParseClaims(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse session claims: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("parse session claims: invalid token")
	}
	return claims, nil
}

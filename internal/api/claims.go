package api

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims are the informational claims a session token carries.
type TokenClaims struct {
	Subject   string
	Name      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type sessionClaims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// InspectToken decodes the token claims without verifying the signature.
// The client never holds the signing key; this is for display and expiry hints only.
func InspectToken(token string) (TokenClaims, error) {
	var c sessionClaims
	_, _, err := jwt.NewParser().ParseUnverified(token, &c)
	if err != nil {
		return TokenClaims{}, err
	}
	out := TokenClaims{Subject: c.Subject, Name: c.Name}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	if out.Subject == "" {
		return out, errors.New("token without subject")
	}
	return out, nil
}

// Expired reports whether the claims carry an expiry that has passed at now.
func (c TokenClaims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

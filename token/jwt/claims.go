package jwt

import (
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenTypeRefresh marks refresh tokens in the token_type claim. Access tokens
// carry a scope claim instead.
const TokenTypeRefresh = "refresh"

// Kind distinguishes access tokens from refresh tokens.
type Kind int

const (
	KindAccess Kind = iota
	KindRefresh
)

func (k Kind) String() string {
	if k == KindRefresh {
		return "refresh"
	}
	return "access"
}

// Claims is the claims set carried by every token this service issues.
type Claims struct {
	Scope     string `json:"scope,omitempty"`      // Space-joined role names (access tokens only)
	TokenType string `json:"token_type,omitempty"` // "refresh" for refresh tokens
	jwtlib.RegisteredClaims
}

// Kind reports whether the claims belong to an access or a refresh token.
func (c *Claims) Kind() Kind {
	if c.TokenType == TokenTypeRefresh {
		return KindRefresh
	}
	return KindAccess
}

// Scopes splits the scope claim into role names.
func (c *Claims) Scopes() []string {
	return strings.Fields(c.Scope)
}

// Expiry returns the expires-at time, or the zero time when absent.
func (c *Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// IssuedAtTime returns the issued-at time, or the zero time when absent.
func (c *Claims) IssuedAtTime() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// ExpiredAt reports whether the token is no longer valid at now.
func (c *Claims) ExpiredAt(now time.Time) bool {
	return !c.Expiry().After(now)
}

func newRegisteredClaims(issuer, audience, subject string, now time.Time, ttl time.Duration) jwtlib.RegisteredClaims {
	return jwtlib.RegisteredClaims{
		Issuer:    issuer,                              // The issuer of the token
		Subject:   subject,                             // The user the token was issued to
		Audience:  jwtlib.ClaimStrings{audience},       // The audience for which the token is intended
		IssuedAt:  jwtlib.NewNumericDate(now),          // Issued At: the time at which the token was issued
		ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)), // Expiry: when the token will expire
		ID:        uuid.New().String(),                 // Unique token ID, the ledger key for refresh tokens
	}
}

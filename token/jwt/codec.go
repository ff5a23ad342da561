package jwt

import (
	"fmt"
	"slices"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	autherrors "github.com/jrsteele09/recrutech-auth/internal/errors"
	"github.com/jrsteele09/recrutech-auth/token/keys"
)

// Codec encodes claims into RS256-signed JWTs and decodes them again.
// Decode verifies the signature and the token's shape only; expiry and
// revocation are left to the caller so each can be reported distinctly.
type Codec struct {
	provider *keys.Provider
	issuer   string
	audience string
	parser   *jwtlib.Parser
}

// NewCodec creates a codec bound to the process key provider.
func NewCodec(provider *keys.Provider, issuer, audience string) *Codec {
	return &Codec{
		provider: provider,
		issuer:   issuer,
		audience: audience,
		parser: jwtlib.NewParser(
			jwtlib.WithValidMethods([]string{keys.RS256}),
			jwtlib.WithoutClaimsValidation(),
		),
	}
}

// Issuer returns the fixed issuer written into every token.
func (c *Codec) Issuer() string {
	return c.issuer
}

// Audience returns the fixed audience written into every token.
func (c *Codec) Audience() string {
	return c.audience
}

// NewAccessClaims builds the claims of an access token for subject.
func (c *Codec) NewAccessClaims(subject string, scopes []string, now time.Time, ttl time.Duration) *Claims {
	return &Claims{
		Scope:            strings.Join(scopes, " "),
		RegisteredClaims: newRegisteredClaims(c.issuer, c.audience, subject, now, ttl),
	}
}

// NewRefreshClaims builds the claims of a refresh token for subject.
func (c *Codec) NewRefreshClaims(subject string, now time.Time, ttl time.Duration) *Claims {
	return &Claims{
		TokenType:        TokenTypeRefresh,
		RegisteredClaims: newRegisteredClaims(c.issuer, c.audience, subject, now, ttl),
	}
}

// Issue signs claims with the private key. The only failure is an unusable signing key.
func (c *Codec) Issue(claims *Claims) (string, error) {
	if c.provider == nil {
		return "", autherrors.ErrSigningKeyMissing
	}
	signed, err := c.provider.Signer().Sign(claims)
	if err != nil {
		return "", fmt.Errorf("%w: %v", autherrors.ErrSigningKeyMissing, err)
	}
	return signed, nil
}

// Decode verifies rawToken and returns its claims. Every failure wraps
// ErrInvalidToken: bad encoding, wrong algorithm, bad signature, unknown key
// id, missing required claims, or a foreign issuer or audience.
func (c *Codec) Decode(rawToken string) (*Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, fmt.Errorf("%w: empty token", autherrors.ErrInvalidToken)
	}
	if c.provider == nil {
		return nil, autherrors.ErrSigningKeyMissing
	}

	claims := &Claims{}
	token, err := c.parser.ParseWithClaims(rawToken, claims, c.provider.Signer().Keyfunc)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", autherrors.ErrInvalidToken, err)
	}

	if err := c.checkShape(claims); err != nil {
		return nil, fmt.Errorf("%w: %v", autherrors.ErrInvalidToken, err)
	}
	return claims, nil
}

func (c *Codec) checkShape(claims *Claims) error {
	switch {
	case claims.ID == "":
		return fmt.Errorf("missing jti claim")
	case claims.Subject == "":
		return fmt.Errorf("missing sub claim")
	case claims.IssuedAt == nil:
		return fmt.Errorf("missing iat claim")
	case claims.ExpiresAt == nil:
		return fmt.Errorf("missing exp claim")
	case !claims.ExpiresAt.After(claims.IssuedAt.Time):
		return fmt.Errorf("exp is not after iat")
	case claims.Issuer != c.issuer:
		return fmt.Errorf("unexpected issuer %q", claims.Issuer)
	case !slices.Contains(claims.Audience, c.audience):
		return fmt.Errorf("audience %v does not include %q", claims.Audience, c.audience)
	case claims.TokenType != "" && claims.TokenType != TokenTypeRefresh:
		return fmt.Errorf("unknown token_type %q", claims.TokenType)
	}
	return nil
}

// Package verifier validates access tokens on the resource-server side, using
// only the issuer's public keys.
package verifier

import (
	"context"
	"crypto"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	autherrors "github.com/jrsteele09/recrutech-auth/internal/errors"
	"github.com/jrsteele09/recrutech-auth/token/jwt"
	"github.com/jrsteele09/recrutech-auth/token/keys"
	"github.com/pkg/errors"
)

// Principal is the authenticated caller described by a verified access token.
type Principal struct {
	Subject string
	Roles   []string
	Expiry  time.Time
}

// HasRole reports whether the principal was granted role.
func (p *Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type accessClaims struct {
	Scope     string `json:"scope"`
	TokenType string `json:"token_type"`
}

// Verifier checks signature, issuer, audience and expiry of access tokens.
type Verifier struct {
	verifier *oidc.IDTokenVerifier
}

// Option configures a Verifier.
type Option func(*oidc.Config)

// WithNowFunc overrides the clock used for expiry checks.
func WithNowFunc(now func() time.Time) Option {
	return func(c *oidc.Config) {
		c.Now = now
	}
}

// NewVerifier verifies against keys fetched from a JWKS endpoint. Keys are
// cached and refetched when an unknown key id is seen.
func NewVerifier(ctx context.Context, issuer, audience, jwksURL string, options ...Option) *Verifier {
	return newVerifier(issuer, audience, oidc.NewRemoteKeySet(ctx, jwksURL), options)
}

// NewStaticVerifier verifies against the public key of an in-process provider.
func NewStaticVerifier(provider *keys.Provider, issuer, audience string, options ...Option) *Verifier {
	pub, _, _ := provider.CurrentKeyPair()
	keySet := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{pub}}
	return newVerifier(issuer, audience, keySet, options)
}

func newVerifier(issuer, audience string, keySet oidc.KeySet, options []Option) *Verifier {
	config := &oidc.Config{
		ClientID:             audience,
		SupportedSigningAlgs: []string{keys.RS256},
	}
	for _, opt := range options {
		opt(config)
	}
	return &Verifier{verifier: oidc.NewVerifier(issuer, keySet, config)}
}

// Verify returns the principal of a valid access token. Refresh tokens are
// rejected with ErrNotAnAccessToken; every other failure is ErrInvalidToken,
// except expiry which is ErrTokenExpired.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (*Principal, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		var expired *oidc.TokenExpiredError
		if errors.As(err, &expired) {
			return nil, autherrors.ErrTokenExpired
		}
		return nil, errors.Wrap(autherrors.ErrInvalidToken, err.Error())
	}

	var claims accessClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, errors.Wrap(autherrors.ErrInvalidToken, err.Error())
	}
	if claims.TokenType == jwt.TokenTypeRefresh {
		return nil, autherrors.ErrNotAnAccessToken
	}

	return &Principal{
		Subject: idToken.Subject,
		Roles:   strings.Fields(claims.Scope),
		Expiry:  idToken.Expiry,
	}, nil
}

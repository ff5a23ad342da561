package token

import (
	"context"
	"fmt"
	"time"

	autherrors "github.com/jrsteele09/recrutech-auth/internal/errors"
	"github.com/jrsteele09/recrutech-auth/internal/utils"
	"github.com/jrsteele09/recrutech-auth/metrics"
	"github.com/jrsteele09/recrutech-auth/token/jwt"
	"github.com/jrsteele09/recrutech-auth/token/refresh"
	"github.com/jrsteele09/recrutech-auth/users"
	"github.com/rs/zerolog/log"
)

// TokenPair is the result of a login, a registration or a rotation.
type TokenPair struct {
	Subject      string // User id both tokens were issued to
	AccessToken  string
	RefreshToken string
	ExpiresIn    int // Access token lifetime in seconds
	Scopes       []string
	User         *users.User // User the pair was issued to, as resolved at issuance
}

// TokenIntrospection represents the metadata of a token this service issued.
// The 'active' field indicates the state of the token - if it's false, other fields may not be populated.
type TokenIntrospection struct {
	Active    bool     `json:"active"`               // True or false - Is the token valid
	TokenType string   `json:"token_type,omitempty"` // "access" or "refresh"
	Aud       []string `json:"aud,omitempty"`        // Audience
	Exp       *int64   `json:"exp,omitempty"`        // Expiration
	Iat       *int64   `json:"iat,omitempty"`        // Issued at time
	Iss       *string  `json:"iss,omitempty"`        // Issuer of the token
	Jti       *string  `json:"jti,omitempty"`        // Unique token id
	Roles     []string `json:"roles,omitempty"`      // Roles carried in the scope claim
	Sub       *string  `json:"sub,omitempty"`        // Users unique ID
}

// Manager issues, validates, rotates and revokes tokens. It is safe for
// concurrent use: all shared state lives in the ledger, whose insert and
// compare-and-set are atomic.
type Manager struct {
	codec              *jwt.Codec
	ledger             refresh.Ledger
	userRepo           users.Directory
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
	ledgerTimeout      time.Duration
	nowFunc            func() time.Time
}

type ManagerOption func(*Manager)

func WithTokenExpiry(accessTokenExpiry time.Duration, refreshTokenExpiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.accessTokenExpiry = accessTokenExpiry
		m.refreshTokenExpiry = refreshTokenExpiry
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// WithLedgerTimeout bounds every ledger call.
func WithLedgerTimeout(timeout time.Duration) ManagerOption {
	return func(m *Manager) {
		m.ledgerTimeout = timeout
	}
}

func New(codec *jwt.Codec, ledger refresh.Ledger, userRepo users.Directory, options ...ManagerOption) *Manager {
	m := &Manager{
		codec:    codec,
		ledger:   ledger,
		userRepo: userRepo,
	}

	for _, opt := range options {
		opt(m)
	}

	if m.accessTokenExpiry == 0 {
		m.accessTokenExpiry = 15 * time.Minute
	}
	if m.refreshTokenExpiry == 0 {
		m.refreshTokenExpiry = 7 * 24 * time.Hour
	}
	if m.ledgerTimeout == 0 {
		m.ledgerTimeout = 3 * time.Second
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	return m
}

// AccessTokenExpiry is the lifetime given to access tokens.
func (c *Manager) AccessTokenExpiry() time.Duration {
	return c.accessTokenExpiry
}

func (c *Manager) ledgerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.ledgerTimeout)
}

// IssueAccessToken signs a short-lived access token. Access tokens are not persisted.
func (c *Manager) IssueAccessToken(_ context.Context, subject string, scopes []string) (string, error) {
	claims := c.codec.NewAccessClaims(subject, scopes, c.nowFunc(), c.accessTokenExpiry)
	signed, err := c.codec.Issue(claims)
	if err != nil {
		return "", autherrors.Wrapf(err, "Manager.IssueAccessToken")
	}
	metrics.IncrementTokensIssued(jwt.KindAccess.String())
	return signed, nil
}

// IssueRefreshToken signs a refresh token and records it in the ledger. If
// the ledger insert fails the signed string is dropped and never returned.
func (c *Manager) IssueRefreshToken(ctx context.Context, subject string) (string, error) {
	signed, _, err := c.issueRefreshToken(ctx, subject)
	return signed, err
}

func (c *Manager) issueRefreshToken(ctx context.Context, subject string) (string, string, error) {
	now := c.nowFunc()
	claims := c.codec.NewRefreshClaims(subject, now, c.refreshTokenExpiry)
	signed, err := c.codec.Issue(claims)
	if err != nil {
		return "", "", autherrors.Wrapf(err, "Manager.IssueRefreshToken")
	}

	ledgerCtx, cancel := c.ledgerContext(ctx)
	defer cancel()
	err = c.ledger.Insert(ledgerCtx, &refresh.Record{
		TokenID:   claims.ID,
		UserID:    subject,
		Token:     signed,
		ExpiresAt: claims.Expiry(),
		CreatedAt: now,
	})
	if err != nil {
		return "", "", autherrors.Wrapf(err, "Manager.IssueRefreshToken Insert")
	}
	metrics.IncrementTokensIssued(jwt.KindRefresh.String())
	return signed, claims.ID, nil
}

// IssueTokenPair issues an access token scoped to the user's roles and a
// fresh refresh token.
func (c *Manager) IssueTokenPair(ctx context.Context, user *users.User) (*TokenPair, error) {
	pair, _, err := c.issueTokenPair(ctx, user)
	return pair, err
}

func (c *Manager) issueTokenPair(ctx context.Context, user *users.User) (*TokenPair, string, error) {
	scopes := user.RoleNames()
	accessToken, err := c.IssueAccessToken(ctx, user.ID, scopes)
	if err != nil {
		return nil, "", err
	}
	refreshToken, refreshID, err := c.issueRefreshToken(ctx, user.ID)
	if err != nil {
		return nil, "", err
	}
	return &TokenPair{
		Subject:      user.ID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(c.accessTokenExpiry.Seconds()),
		Scopes:       scopes,
		User:         user,
	}, refreshID, nil
}

// ValidateAccessToken returns the claims of a live access token.
func (c *Manager) ValidateAccessToken(_ context.Context, rawToken string) (*jwt.Claims, error) {
	claims, err := c.codec.Decode(rawToken)
	if err != nil {
		return nil, err
	}
	if claims.Kind() != jwt.KindAccess {
		return nil, autherrors.ErrNotAnAccessToken
	}
	if claims.ExpiredAt(c.nowFunc()) {
		return nil, autherrors.ErrTokenExpired
	}
	return claims, nil
}

// Rotate exchanges a live refresh token for a new pair and retires the old
// token. Each refresh token rotates at most once: of several concurrent
// callers presenting the same token exactly one succeeds, the rest get
// ErrTokenRevoked.
func (c *Manager) Rotate(ctx context.Context, oldRefreshToken string) (*TokenPair, error) {
	pair, err := c.rotate(ctx, oldRefreshToken)
	metrics.IncrementRotation(rotationResult(err))
	return pair, err
}

func (c *Manager) rotate(ctx context.Context, oldRefreshToken string) (*TokenPair, error) {
	claims, err := c.codec.Decode(oldRefreshToken)
	if err != nil {
		return nil, err
	}
	if claims.Kind() != jwt.KindRefresh {
		return nil, autherrors.ErrNotARefreshToken
	}
	if claims.ExpiredAt(c.nowFunc()) {
		return nil, autherrors.ErrTokenExpired
	}

	record, err := c.findRecord(ctx, claims.ID)
	if err != nil {
		if autherrors.Is(err, autherrors.ErrRecordNotFound) {
			return nil, autherrors.Wrapf(autherrors.ErrTokenRevoked, "Manager.Rotate no ledger record for %s", claims.ID)
		}
		return nil, autherrors.Wrapf(err, "Manager.Rotate FindByID")
	}
	if record.Revoked {
		return nil, autherrors.ErrTokenRevoked
	}

	user, err := c.userRepo.FindByID(ctx, claims.Subject)
	if err != nil {
		return nil, autherrors.Wrapf(err, "Manager.Rotate FindByID user")
	}
	if user.Blocked {
		return nil, autherrors.Wrapf(autherrors.ErrUserNotFound, "Manager.Rotate user %s is blocked", user.ID)
	}

	pair, newRefreshID, err := c.issueTokenPair(ctx, user)
	if err != nil {
		return nil, autherrors.Wrapf(err, "Manager.Rotate issue")
	}

	flipped, err := c.markRevoked(ctx, record.TokenID)
	if err == nil && flipped {
		return pair, nil
	}

	// Lost the race, or could not retire the old token: the new pair must not
	// outlive this call.
	if _, discardErr := c.markRevoked(ctx, newRefreshID); discardErr != nil {
		log.Warn().Err(discardErr).Str("jti", newRefreshID).Msg("failed to discard refresh token of an aborted rotation")
	}
	switch {
	case err == nil, autherrors.Is(err, autherrors.ErrRecordNotFound):
		log.Info().Str("jti", record.TokenID).Msg("concurrent rotation lost the compare-and-set")
		return nil, autherrors.ErrTokenRevoked
	default:
		return nil, autherrors.Wrapf(err, "Manager.Rotate MarkRevoked")
	}
}

// Revoke retires a refresh token. It is idempotent: an already revoked,
// expired or unknown record is not an error.
func (c *Manager) Revoke(ctx context.Context, refreshToken string) error {
	claims, err := c.codec.Decode(refreshToken)
	if err != nil {
		return err
	}
	if claims.Kind() != jwt.KindRefresh {
		return autherrors.ErrNotARefreshToken
	}
	if claims.ExpiredAt(c.nowFunc()) {
		return nil
	}

	record, err := c.findRecordByToken(ctx, refreshToken, claims)
	if err != nil {
		if autherrors.Is(err, autherrors.ErrRecordNotFound) {
			return nil
		}
		return autherrors.Wrapf(err, "Manager.Revoke FindByToken")
	}

	flipped, err := c.markRevoked(ctx, record.TokenID)
	if err != nil {
		if autherrors.Is(err, autherrors.ErrRecordNotFound) {
			return nil
		}
		return autherrors.Wrapf(err, "Manager.Revoke")
	}
	if flipped {
		metrics.AddRevocations(1)
	}
	return nil
}

// RevokeAllForUser retires every live refresh token owned by userID and
// returns how many were flipped.
func (c *Manager) RevokeAllForUser(ctx context.Context, userID string) (int, error) {
	ledgerCtx, cancel := c.ledgerContext(ctx)
	records, err := c.ledger.FindByOwner(ledgerCtx, userID)
	cancel()
	if err != nil {
		return 0, autherrors.Wrapf(err, "Manager.RevokeAllForUser FindByOwner")
	}

	now := c.nowFunc()
	revoked := 0
	for _, record := range records {
		if record.Revoked || record.ExpiredAt(now) {
			continue
		}
		flipped, err := c.markRevoked(ctx, record.TokenID)
		if err != nil {
			if autherrors.Is(err, autherrors.ErrRecordNotFound) {
				continue
			}
			return revoked, autherrors.Wrapf(err, "Manager.RevokeAllForUser MarkRevoked")
		}
		if flipped {
			revoked++
		}
	}
	metrics.AddRevocations(revoked)
	return revoked, nil
}

// IsRefreshTokenRevoked reports whether a decodable refresh token can no
// longer be rotated. A token without a ledger record counts as revoked.
func (c *Manager) IsRefreshTokenRevoked(ctx context.Context, refreshToken string) (bool, error) {
	claims, err := c.codec.Decode(refreshToken)
	if err != nil {
		return false, err
	}
	if claims.Kind() != jwt.KindRefresh {
		return false, autherrors.ErrNotARefreshToken
	}
	record, err := c.findRecordByToken(ctx, refreshToken, claims)
	if err != nil {
		if autherrors.Is(err, autherrors.ErrRecordNotFound) {
			return true, nil
		}
		return false, err
	}
	return record.Revoked, nil
}

// Introspect describes a token. Tokens that fail to decode are reported as
// inactive without an error; ledger failures are returned.
func (c *Manager) Introspect(ctx context.Context, rawToken string) (*TokenIntrospection, error) {
	claims, err := c.codec.Decode(rawToken)
	if err != nil {
		return &TokenIntrospection{Active: false}, nil
	}

	active := !claims.ExpiredAt(c.nowFunc())
	if active && claims.Kind() == jwt.KindRefresh {
		revoked, err := c.IsRefreshTokenRevoked(ctx, rawToken)
		if err != nil {
			return nil, err
		}
		active = !revoked
	}

	return &TokenIntrospection{
		Active:    active,
		TokenType: claims.Kind().String(),
		Aud:       claims.Audience,
		Exp:       utils.Ptr(claims.Expiry().Unix()),
		Iat:       utils.Ptr(claims.IssuedAtTime().Unix()),
		Iss:       utils.Ptr(claims.Issuer),
		Jti:       utils.Ptr(claims.ID),
		Roles:     claims.Scopes(),
		Sub:       utils.Ptr(claims.Subject),
	}, nil
}

func (c *Manager) findRecord(ctx context.Context, tokenID string) (*refresh.Record, error) {
	ledgerCtx, cancel := c.ledgerContext(ctx)
	defer cancel()
	return c.ledger.FindByID(ledgerCtx, tokenID)
}

// findRecordByToken looks a record up by the raw token and checks it was
// issued under the same jti and subject the token carries. A mismatch is
// reported as ErrRecordNotFound.
func (c *Manager) findRecordByToken(ctx context.Context, rawToken string, claims *jwt.Claims) (*refresh.Record, error) {
	ledgerCtx, cancel := c.ledgerContext(ctx)
	defer cancel()
	record, err := c.ledger.FindByToken(ledgerCtx, rawToken)
	if err != nil {
		return nil, err
	}
	if record.TokenID != claims.ID || record.UserID != claims.Subject {
		log.Warn().Str("jti", claims.ID).Str("record_jti", record.TokenID).Msg("ledger record does not match refresh token claims")
		return nil, autherrors.Wrapf(autherrors.ErrRecordNotFound, "record %s does not match token %s", record.TokenID, claims.ID)
	}
	return record, nil
}

func (c *Manager) markRevoked(ctx context.Context, tokenID string) (bool, error) {
	ledgerCtx, cancel := c.ledgerContext(ctx)
	defer cancel()
	return c.ledger.MarkRevoked(ledgerCtx, tokenID)
}

func rotationResult(err error) string {
	switch {
	case err == nil:
		return metrics.RotationRotated
	case autherrors.Is(err, autherrors.ErrTokenRevoked):
		return metrics.RotationRevoked
	case autherrors.Is(err, autherrors.ErrTokenExpired):
		return metrics.RotationExpired
	case autherrors.Is(err, autherrors.ErrInvalidToken), autherrors.Is(err, autherrors.ErrNotARefreshToken):
		return metrics.RotationInvalid
	default:
		return metrics.RotationError
	}
}

func (p *TokenPair) String() string {
	return fmt.Sprintf("TokenPair{expires_in=%d scopes=%v}", p.ExpiresIn, p.Scopes)
}

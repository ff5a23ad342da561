package refresh

import (
	"context"
	"time"
)

// Record is the server-side row kept for every issued refresh token. It is the
// only source of truth for revocation: a token whose record is missing or
// revoked never authorizes a rotation.
type Record struct {
	TokenID   string    // jti claim of the refresh token; primary key
	UserID    string    // Owner of the token
	Token     string    // Raw encoded token, for direct lookup
	ExpiresAt time.Time // exp claim of the refresh token
	Revoked   bool      // Flips to true once, on rotation or revocation
	CreatedAt time.Time
}

// ExpiredAt reports whether the record's token is past its expiry at now.
func (r *Record) ExpiredAt(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// Ledger stores refresh token records. Implementations must make Insert an
// atomic insert-if-absent and MarkRevoked an atomic compare-and-set so that
// concurrent rotations of one token have a single winner.
//
// Lookups return ErrRecordNotFound when no row matches, Insert returns
// ErrDuplicateRecord on a token id collision, and infrastructure failures wrap
// ErrLedgerUnavailable.
type Ledger interface {
	Insert(ctx context.Context, record *Record) error
	FindByID(ctx context.Context, tokenID string) (*Record, error)
	FindByToken(ctx context.Context, token string) (*Record, error)
	FindByOwner(ctx context.Context, userID string) ([]*Record, error)

	// MarkRevoked flips revoked from false to true. It reports true only for
	// the call that performed the flip; an already revoked row yields false.
	MarkRevoked(ctx context.Context, tokenID string) (bool, error)

	// DeleteExpired purges rows whose expiry is at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

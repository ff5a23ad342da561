package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds surfaced by the token lifecycle and the authentication flows.
// Callers branch on these with Is; no layer replaces one with a generic error.
var (
	// Token errors
	ErrInvalidToken      = errors.New("invalid token")
	ErrTokenExpired      = errors.New("token expired")
	ErrTokenRevoked      = errors.New("token revoked")
	ErrNotARefreshToken  = errors.New("not a refresh token")
	ErrNotAnAccessToken  = errors.New("not an access token")
	ErrSigningKeyMissing = errors.New("signing key unavailable")

	// Ledger errors. ErrLedgerUnavailable is transient and may be retried.
	ErrLedgerUnavailable = errors.New("refresh token ledger unavailable")
	ErrRecordNotFound    = errors.New("refresh token record not found")
	ErrDuplicateRecord   = errors.New("refresh token record already exists")

	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameTaken      = errors.New("username is already taken")
	ErrEmailTaken         = errors.New("email is already in use")
	ErrWeakPassword       = errors.New("password validation failed")

	// Throttle errors
	ErrRateLimited = errors.New("too many requests")

	// General errors
	ErrInvalidRequest = errors.New("invalid request")
	ErrInternal       = errors.New("internal error")
)

// PasswordPolicyError carries every violation found by the password policy.
type PasswordPolicyError struct {
	Violations []string
}

func (e *PasswordPolicyError) Error() string {
	return ErrWeakPassword.Error() + ": " + strings.Join(e.Violations, "; ")
}

func (e *PasswordPolicyError) Unwrap() error {
	return ErrWeakPassword
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New is errors.New, re-exported so callers need a single errors import.
func New(text string) error {
	return errors.New(text)
}

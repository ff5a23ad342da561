package users

import (
	"context"
	"sync"

	autherrors "github.com/jrsteele09/recrutech-auth/internal/errors"
)

// dummyHash is compared against when the username is unknown so both failure
// paths cost one bcrypt comparison.
var dummyHash = sync.OnceValue(func() string {
	hash, _ := HashPassword("not-a-real-password")
	return hash
})

// CredentialVerifier resolves a username/password pair to a user.
type CredentialVerifier struct {
	directory Directory
}

func NewCredentialVerifier(directory Directory) *CredentialVerifier {
	return &CredentialVerifier{directory: directory}
}

// Verify returns the user when the password matches. Unknown users, wrong
// passwords and blocked accounts all yield ErrInvalidCredentials.
func (v *CredentialVerifier) Verify(ctx context.Context, username, password string) (*User, error) {
	user, err := v.directory.FindByUsername(ctx, username)
	if err != nil {
		if autherrors.Is(err, autherrors.ErrUserNotFound) {
			CheckPasswordHash(password, dummyHash())
			return nil, autherrors.ErrInvalidCredentials
		}
		return nil, err
	}
	if !CheckPasswordHash(password, user.PasswordHash) || user.Blocked {
		return nil, autherrors.ErrInvalidCredentials
	}
	return user, nil
}

package users

import (
	"context"
	"time"
)

// Directory is the user store consulted by the token lifecycle. Lookups
// return ErrUserNotFound when nothing matches; Create returns
// ErrUsernameTaken or ErrEmailTaken on a uniqueness conflict.
type Directory interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, user *User) error
	SetLastLogin(ctx context.Context, id string, at time.Time) error
}

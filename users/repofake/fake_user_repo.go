package fakeuserrepo

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	autherrors "github.com/jrsteele09/recrutech-auth/internal/errors"
	"github.com/jrsteele09/recrutech-auth/users"
)

var _ users.Directory = (*FakeUserRepo)(nil)

// FakeUserRepo is an in-memory users.Directory. Usernames and emails are
// unique case-insensitively.
type FakeUserRepo struct {
	users       map[string]*users.User
	usernameIds map[string]string // lower-cased username to user id
	emailIds    map[string]string // lower-cased email to user id
	lock        sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:       make(map[string]*users.User),
		usernameIds: make(map[string]string),
		emailIds:    make(map[string]string),
	}
}

func (ur *FakeUserRepo) Create(_ context.Context, user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if _, ok := ur.usernameIds[strings.ToLower(user.Username)]; ok {
		return autherrors.ErrUsernameTaken
	}
	if _, ok := ur.emailIds[strings.ToLower(user.Email)]; ok {
		return autherrors.ErrEmailTaken
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	stored := *user
	ur.users[user.ID] = &stored
	ur.usernameIds[strings.ToLower(user.Username)] = user.ID
	ur.emailIds[strings.ToLower(user.Email)] = user.ID
	return nil
}

func (ur *FakeUserRepo) get(id string) (*users.User, error) {
	u, ok := ur.users[id]
	if !ok {
		return nil, autherrors.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (ur *FakeUserRepo) FindByID(_ context.Context, id string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()
	return ur.get(id)
}

func (ur *FakeUserRepo) FindByUsername(_ context.Context, username string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()
	id, ok := ur.usernameIds[strings.ToLower(username)]
	if !ok {
		return nil, autherrors.ErrUserNotFound
	}
	return ur.get(id)
}

func (ur *FakeUserRepo) FindByEmail(_ context.Context, email string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()
	id, ok := ur.emailIds[strings.ToLower(email)]
	if !ok {
		return nil, autherrors.ErrUserNotFound
	}
	return ur.get(id)
}

func (ur *FakeUserRepo) SetLastLogin(_ context.Context, id string, at time.Time) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()
	u, ok := ur.users[id]
	if !ok {
		return autherrors.ErrUserNotFound
	}
	u.LastLogin = at
	return nil
}

// SetBlocked blocks or unblocks a user.
func (ur *FakeUserRepo) SetBlocked(id string, blocked bool) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()
	u, ok := ur.users[id]
	if !ok {
		return autherrors.ErrUserNotFound
	}
	u.Blocked = blocked
	return nil
}

// Delete removes a user; used to simulate a subject that no longer resolves.
func (ur *FakeUserRepo) Delete(id string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()
	u, ok := ur.users[id]
	if !ok {
		return autherrors.ErrUserNotFound
	}
	delete(ur.usernameIds, strings.ToLower(u.Username))
	delete(ur.emailIds, strings.ToLower(u.Email))
	delete(ur.users, id)
	return nil
}

package users

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// RoleType is a role name as it appears in the scope claim of an access token.
type RoleType string

const (
	RoleUser  RoleType = "ROLE_USER"  // Default role assigned on registration
	RoleHR    RoleType = "ROLE_HR"    // Recruiters registered through the HR flow
	RoleAdmin RoleType = "ROLE_ADMIN" // Operators
)

type User struct {
	ID           string     `json:"id,omitempty"`          // Unique identifier for the user, the token subject
	Username     string     `json:"username,omitempty"`    // Unique username
	Email        string     `json:"email,omitempty"`       // User's email address, unique
	PasswordHash string     `json:"-"`                     // Hashed version of the user's password - never serialize
	FirstName    string     `json:"first_name,omitempty"`  // First name of the user
	LastName     string     `json:"last_name,omitempty"`   // Last name of the user
	Roles        []RoleType `json:"roles,omitempty"`       // Roles granted to the user
	DateJoined   time.Time  `json:"date_joined,omitempty"` // Date and time when the user registered
	LastLogin    time.Time  `json:"last_login,omitempty"`  // Last time the user logged in

	Blocked bool `json:"blocked,omitempty"` // Blocked, has the user been blocked from logging in
}

// RoleNames returns the user's roles as plain strings, in grant order.
func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, string(r))
	}
	return names
}

// HasRole reports whether the user was granted role.
func (u *User) HasRole(role RoleType) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

package auth

import (
	"fmt"
	"net/mail"
	"strings"

	autherrors "github.com/jrsteele09/recrutech-auth/internal/errors"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 50
)

// ValidationError reports a malformed request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return autherrors.ErrInvalidRequest
}

// ValidateLoginRequest checks the required login fields are present.
func ValidateLoginRequest(req *LoginRequest) error {
	if strings.TrimSpace(req.Username) == "" {
		return &ValidationError{Field: "username", Message: "is required"}
	}
	if req.Password == "" {
		return &ValidationError{Field: "password", Message: "is required"}
	}
	return nil
}

// ValidateRegisterRequest checks the registration fields other than the
// password, which is judged by the password policy.
func ValidateRegisterRequest(req *RegisterRequest) error {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return &ValidationError{Field: "username", Message: "is required"}
	}
	if len(username) < minUsernameLength || len(username) > maxUsernameLength {
		return &ValidationError{Field: "username", Message: fmt.Sprintf("must be between %d and %d characters", minUsernameLength, maxUsernameLength)}
	}
	if strings.ContainsAny(username, " \t\r\n") {
		return &ValidationError{Field: "username", Message: "must not contain whitespace"}
	}

	email := strings.TrimSpace(req.Email)
	if email == "" {
		return &ValidationError{Field: "email", Message: "is required"}
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return &ValidationError{Field: "email", Message: "is not a valid email address"}
	}

	if strings.TrimSpace(req.FirstName) == "" {
		return &ValidationError{Field: "firstName", Message: "is required"}
	}
	if strings.TrimSpace(req.LastName) == "" {
		return &ValidationError{Field: "lastName", Message: "is required"}
	}
	return nil
}

package errors_test

import (
	"fmt"
	"testing"

	autherrors "github.com/jrsteele09/recrutech-auth/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestWrapf(t *testing.T) {
	require.NoError(t, autherrors.Wrapf(nil, "context %d", 1))

	err := autherrors.Wrapf(autherrors.ErrTokenRevoked, "rotate %s", "abc")
	require.EqualError(t, err, "rotate abc: token revoked")
	require.True(t, autherrors.Is(err, autherrors.ErrTokenRevoked))
}

func TestPasswordPolicyError(t *testing.T) {
	var err error = &autherrors.PasswordPolicyError{Violations: []string{"too short", "no digit"}}
	wrapped := fmt.Errorf("register: %w", err)

	require.True(t, autherrors.Is(wrapped, autherrors.ErrWeakPassword))

	var policyErr *autherrors.PasswordPolicyError
	require.True(t, autherrors.As(wrapped, &policyErr))
	require.Equal(t, []string{"too short", "no digit"}, policyErr.Violations)
	require.Equal(t, "password validation failed: too short; no digit", err.Error())
}

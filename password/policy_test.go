package password_test

import (
	"strings"
	"testing"

	"github.com/jrsteele09/recrutech-auth/password"
	"github.com/stretchr/testify/require"
)

func TestValidate_StrongPassword(t *testing.T) {
	for _, pw := range []string{"Tr0ub4dor&Zx!", "Kx9!mQ2#vL7p", "Gr8-Wolf_Ride"} {
		require.Empty(t, password.Validate(pw), pw)
		require.True(t, password.IsValid(pw), pw)
	}
}

func TestValidate_Empty(t *testing.T) {
	require.Equal(t, []string{password.MsgEmpty}, password.Validate(""))
}

func TestValidate_TripleA(t *testing.T) {
	violations := password.Validate("aaa")

	require.Contains(t, violations, password.MsgTooShort())
	require.Contains(t, violations, password.MsgUppercase)
	require.Contains(t, violations, password.MsgDigit)
	require.Contains(t, violations, password.MsgSpecial)
	require.Contains(t, violations, password.MsgRepeated)
	require.NotContains(t, violations, password.MsgLowercase)
	require.NotContains(t, violations, password.MsgSequential)
}

func TestValidate_SequentialWithoutSpecial(t *testing.T) {
	violations := password.Validate("abc12345")

	require.Contains(t, violations, password.MsgSpecial)
	require.Contains(t, violations, password.MsgSequential)
	require.Contains(t, violations, password.MsgUppercase)
	require.NotContains(t, violations, password.MsgTooShort())
}

func TestValidate_DenyListIsCaseInsensitiveSubstring(t *testing.T) {
	violations := password.Validate("Password123!")

	// Deny-listed word and the ascending "123" run are both reported.
	require.ElementsMatch(t, []string{password.MsgCommon, password.MsgSequential}, violations)

	require.Contains(t, password.Validate("xx-QWERTY-9z"), password.MsgCommon)
	require.Contains(t, password.Validate("Mon!KeY7monkey"), password.MsgCommon)
}

func TestValidate_TooLong(t *testing.T) {
	pw := strings.Repeat("aB3$", 33) // 132 characters
	violations := password.Validate(pw)
	require.Equal(t, []string{password.MsgTooLong()}, violations)
}

func TestValidate_RunsAreStrict(t *testing.T) {
	// Descending runs and pairs are allowed.
	require.NotContains(t, password.Validate("Zcb9!xQ21"), password.MsgSequential)
	require.NotContains(t, password.Validate("Zaa9!xQbb"), password.MsgRepeated)

	require.Contains(t, password.Validate("Zk!9xyz0"), password.MsgSequential)
	require.Contains(t, password.Validate("Zk!9x000"), password.MsgRepeated)
}

// Package password checks candidate passwords against the account password policy.
package password

import (
	"fmt"
	"regexp"
	"unicode/utf8"
)

const (
	MinLength = 8
	MaxLength = 128

	// runLength is the shortest sequential or repeated run that is rejected.
	runLength = 3
)

// Violation messages, in the order Validate reports them.
const (
	MsgEmpty      = "Password cannot be empty"
	MsgUppercase  = "Password must contain at least one uppercase letter"
	MsgLowercase  = "Password must contain at least one lowercase letter"
	MsgDigit      = "Password must contain at least one digit"
	MsgSpecial    = "Password must contain at least one special character"
	MsgCommon     = "Password contains a common pattern and is too easy to guess"
	MsgSequential = "Password contains sequential characters (e.g., 'abc', '123')"
	MsgRepeated   = "Password contains repeated characters (e.g., 'aaa', '111')"
)

var (
	msgTooShort = fmt.Sprintf("Password must be at least %d characters long", MinLength)
	msgTooLong  = fmt.Sprintf("Password cannot be longer than %d characters", MaxLength)

	hasUppercase = regexp.MustCompile(`[A-Z]`)
	hasLowercase = regexp.MustCompile(`[a-z]`)
	hasDigit     = regexp.MustCompile(`[0-9]`)
	hasSpecial   = regexp.MustCompile(`[^A-Za-z0-9]`)

	commonPatterns = regexp.MustCompile(`(?i)(password|123456|qwerty|admin|welcome|letmein|abc123|monkey|1234567890|000000|iloveyou|1234|superman|princess|rockyou|ashley|bailey|shadow|123123|654321|football|baseball|welcome1|!@#\$%\^&\*|donald|password1|qwerty123)`)
)

// MsgTooShort and MsgTooLong return the length violation messages.
func MsgTooShort() string { return msgTooShort }
func MsgTooLong() string  { return msgTooLong }

// Validate returns every policy violation found in pw. An empty result means
// the password is acceptable. Rules are evaluated independently so callers see
// the full set, except for an empty password which only reports MsgEmpty.
func Validate(pw string) []string {
	if pw == "" {
		return []string{MsgEmpty}
	}

	violations := make([]string, 0)

	n := utf8.RuneCountInString(pw)
	if n < MinLength {
		violations = append(violations, msgTooShort)
	}
	if n > MaxLength {
		violations = append(violations, msgTooLong)
	}
	if !hasUppercase.MatchString(pw) {
		violations = append(violations, MsgUppercase)
	}
	if !hasLowercase.MatchString(pw) {
		violations = append(violations, MsgLowercase)
	}
	if !hasDigit.MatchString(pw) {
		violations = append(violations, MsgDigit)
	}
	if !hasSpecial.MatchString(pw) {
		violations = append(violations, MsgSpecial)
	}
	if commonPatterns.MatchString(pw) {
		violations = append(violations, MsgCommon)
	}
	if hasSequentialRun(pw, runLength) {
		violations = append(violations, MsgSequential)
	}
	if hasRepeatedRun(pw, runLength) {
		violations = append(violations, MsgRepeated)
	}

	return violations
}

// IsValid reports whether pw satisfies every rule.
func IsValid(pw string) bool {
	return len(Validate(pw)) == 0
}

// hasSequentialRun reports a run of length strictly ascending code points, each one above the last.
func hasSequentialRun(pw string, length int) bool {
	runes := []rune(pw)
	run := 1
	for i := 1; i < len(runes); i++ {
		if runes[i] == runes[i-1]+1 {
			run++
			if run >= length {
				return true
			}
			continue
		}
		run = 1
	}
	return false
}

func hasRepeatedRun(pw string, length int) bool {
	runes := []rune(pw)
	run := 1
	for i := 1; i < len(runes); i++ {
		if runes[i] == runes[i-1] {
			run++
			if run >= length {
				return true
			}
			continue
		}
		run = 1
	}
	return false
}

package services

import "unicode"

// Violation messages, in check order. Clients rely on both the wording and
// the position, so neither may change.
const (
	msgPasswordTooShort  = "password must contain at least 6 characters"
	msgPasswordNoSpecial = "password must contain at least 1 special character"
	msgPasswordNoUpper   = "password must contain at least 1 upper case letter"
	msgPasswordNoLower   = "password must contain at least 1 lower case letter"
	msgPasswordNoDigit   = "password must contain at least 1 digit"
)

const minPasswordLength = 6

// PasswordCheck is the verdict of the password policy for one candidate.
type PasswordCheck struct {
	Valid      bool
	Violations []string
}

// CheckPassword runs every policy rule against the candidate password and
// collects one violation message per failed rule, in a fixed order:
// length, special character, upper case, lower case, digit. All rules are
// evaluated; there is no short-circuit. The check is pure and does no I/O.
func CheckPassword(password string) PasswordCheck {
	var (
		hasSpecial bool
		hasUpper   bool
		hasLower   bool
		hasDigit   bool
	)
	for _, c := range password {
		if !unicode.IsLetter(c) && !unicode.IsDigit(c) {
			hasSpecial = true
		}
		if unicode.IsUpper(c) {
			hasUpper = true
		}
		if unicode.IsLower(c) {
			hasLower = true
		}
		if unicode.IsDigit(c) {
			hasDigit = true
		}
	}

	violations := []string{}
	if len([]rune(password)) < minPasswordLength {
		violations = append(violations, msgPasswordTooShort)
	}
	if !hasSpecial {
		violations = append(violations, msgPasswordNoSpecial)
	}
	if !hasUpper {
		violations = append(violations, msgPasswordNoUpper)
	}
	if !hasLower {
		violations = append(violations, msgPasswordNoLower)
	}
	if !hasDigit {
		violations = append(violations, msgPasswordNoDigit)
	}

	return PasswordCheck{
		Valid:      len(violations) == 0,
		Violations: violations,
	}
}

package services

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckPassword(t *testing.T) {
	tests := []struct {
		password   string
		violations int
	}{
		{"test", 4},
		{"TEST", 4},
		{"testpw", 3},
		{"Testpw", 2},
		{"testpw*", 2},
		{"Testpw*", 1},
		{"Testpw0*", 0},
	}

	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			check := CheckPassword(tt.password)
			require.Len(t, check.Violations, tt.violations)
			require.Equal(t, tt.violations == 0, check.Valid)
		})
	}
}

func TestCheckPasswordViolationOrder(t *testing.T) {
	// The empty password fails every rule; the violation list must come
	// back in the fixed length, special, upper, lower, digit order.
	check := CheckPassword("")
	require.False(t, check.Valid)
	require.Equal(t, []string{
		"password must contain at least 6 characters",
		"password must contain at least 1 special character",
		"password must contain at least 1 upper case letter",
		"password must contain at least 1 lower case letter",
		"password must contain at least 1 digit",
	}, check.Violations)
}

func TestCheckPasswordSingleViolationWording(t *testing.T) {
	check := CheckPassword("Testpw*")
	require.Equal(t, []string{"password must contain at least 1 digit"}, check.Violations)

	check = CheckPassword("TESTPW0*")
	require.Equal(t, []string{"password must contain at least 1 lower case letter"}, check.Violations)

	check = CheckPassword("Tp0*")
	require.Equal(t, []string{"password must contain at least 6 characters"}, check.Violations)
}

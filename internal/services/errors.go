package services

// The account operations report failures through a small taxonomy of error
// types. The HTTP boundary maps them to status codes: validation, conflict
// and auth errors are client mistakes (400), not-found is 404, anything
// else is an infrastructure failure (500).

// ValidationError reports malformed, missing or policy-violating input.
// Violations carries the ordered password policy messages when the failure
// came from the policy; otherwise it is nil and Message stands alone.
type ValidationError struct {
	Message    string
	Violations []string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError reports a uniqueness or state-transition conflict.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// AuthError reports a credential mismatch.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string { return e.Message }

// NotFoundError reports that the requested account does not exist.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

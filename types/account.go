package types

// Field classification keys understood by AccountFields.
const (
	FieldClassAuto     = "auto"
	FieldClassRequired = "required"
	FieldClassOptional = "optional"
	FieldClassAll      = "all"
)

// Account represents a registered account.
// It is the only entity the service persists.
type Account struct {
	// ID is the unique identifier of the account, assigned by the store.
	ID int `json:"id" db:"id"`

	// Email is the unique address the account was registered with.
	Email string `json:"email" db:"email"`

	// Username is the unique login name chosen at signup.
	Username string `json:"username" db:"username"`

	// PasswordHash stores the bcrypt hash of the account password.
	// The clear-text password is never persisted.
	PasswordHash string `json:"password" db:"password"`

	// Gender, PhoneNumber and Address are optional profile fields.
	// A nil pointer means the field is unset; the empty string is a value.
	Gender      *string `json:"gender" db:"gender"`
	PhoneNumber *string `json:"phone_number" db:"phone_number"`
	Address     *string `json:"address" db:"address"`

	// IsLoggedIn is the whole session state: no token, no expiry.
	// It is toggled by the login and logout transitions only.
	IsLoggedIn bool `json:"is_logged_in" db:"is_logged_in"`
}

var (
	autoFields     = []string{"id", "is_logged_in"}
	requiredFields = []string{"email", "username", "password"}
	optionalFields = []string{"gender", "phone_number", "address"}
)

// AccountFields returns the ordered field names in the given classification.
// Classification depends only on the declared shape of Account, never on
// instance data. Any unknown key falls back to the "all" set, the union of
// auto, required and optional fields in that order.
func AccountFields(class string) []string {
	switch class {
	case FieldClassAuto:
		return append([]string(nil), autoFields...)
	case FieldClassRequired:
		return append([]string(nil), requiredFields...)
	case FieldClassOptional:
		return append([]string(nil), optionalFields...)
	default:
		all := make([]string, 0, len(autoFields)+len(requiredFields)+len(optionalFields))
		all = append(all, autoFields...)
		all = append(all, requiredFields...)
		all = append(all, optionalFields...)
		return all
	}
}

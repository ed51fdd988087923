package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/akicestmoi/auth-apiserver/internal/store"
	"github.com/akicestmoi/auth-apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// Account event channels published through the event bus.
const (
	EventSignup  = "account.signup"
	EventLogin   = "account.login"
	EventLogout  = "account.logout"
	EventDeleted = "account.deleted"
)

// Wire messages shared by several operations.
const (
	msgAccountNotFound    = "the account does not exist"
	msgEmailTaken         = "an account is already registered with this email"
	msgUsernameTaken      = "the username is already taken"
	msgWrongUsername      = "wrong username"
	msgWrongPassword      = "wrong password"
	msgWrongOrigPassword  = "wrong original password"
	msgAlreadyLoggedIn    = "the account is already logged in"
	msgAlreadyLoggedOut   = "the account is already logged out"
	msgPasswordValMissing = "'password_validation' field missing (should contain original password as value)"
	passwordField         = "password"
	passwordValidationKey = "password_validation"
	missingFieldPrefix    = "missing field: "
)

// AccountRepository defines persistence operations for accounts.
type AccountRepository interface {
	GetByID(ctx context.Context, id int) (types.Account, error)
	GetByUsername(ctx context.Context, username string) (types.Account, error)
	GetByEmail(ctx context.Context, email string) (types.Account, error)
	List(ctx context.Context) ([]types.Account, error)
	EmailTaken(ctx context.Context, email string) (bool, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, account types.Account) (types.Account, error)
	Update(ctx context.Context, account types.Account) (types.Account, error)
	Delete(ctx context.Context, id int) error
}

// EventPublisher sends account lifecycle events to the configured broker.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// AccountService is the mutation core: it owns every account state
// transition and the validation rules around them. Persistence and event
// delivery are injected.
type AccountService struct {
	repo   AccountRepository
	events EventPublisher
	logger *slog.Logger
}

// NewAccountService constructs the service. events may be nil to disable
// lifecycle events; logger may be nil for the default logger.
func NewAccountService(repo AccountRepository, events EventPublisher, logger *slog.Logger) *AccountService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{repo: repo, events: events, logger: logger}
}

// Signup validates the payload and creates a new account. Checks run in a
// fixed order and only the first failure is reported: missing required
// fields, then email uniqueness, then username uniqueness, then the
// password policy. New accounts start logged in.
func (s *AccountService) Signup(ctx context.Context, payload map[string]any) (types.Account, error) {
	if missing := missingRequiredFields(payload); len(missing) > 0 {
		return types.Account{}, &ValidationError{Message: missingFieldPrefix + strings.Join(missing, ", ")}
	}

	email := stringField(payload, "email")
	username := stringField(payload, "username")
	password := stringField(payload, passwordField)

	taken, err := s.repo.EmailTaken(ctx, email)
	if err != nil {
		return types.Account{}, err
	}
	if taken {
		return types.Account{}, &ConflictError{Message: msgEmailTaken}
	}

	taken, err = s.repo.UsernameTaken(ctx, username)
	if err != nil {
		return types.Account{}, err
	}
	if taken {
		return types.Account{}, &ConflictError{Message: msgUsernameTaken}
	}

	if check := CheckPassword(password); !check.Valid {
		return types.Account{}, &ValidationError{
			Message:    strings.Join(check.Violations, ", "),
			Violations: check.Violations,
		}
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return types.Account{}, err
	}

	account := types.Account{
		Email:        email,
		Username:     username,
		PasswordHash: string(hashed),
		Gender:       optionalField(payload, "gender"),
		PhoneNumber:  optionalField(payload, "phone_number"),
		Address:      optionalField(payload, "address"),
		IsLoggedIn:   true,
	}

	created, err := s.repo.Create(ctx, account)
	if err != nil {
		return types.Account{}, mapDuplicate(err)
	}

	s.publish(ctx, EventSignup, created)
	return created, nil
}

// Login verifies credentials and flips the session flag on. A second login
// on an already-logged-in account is an error, not a no-op.
func (s *AccountService) Login(ctx context.Context, username, password string) (types.Account, error) {
	account, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if isStoreNotFound(err) {
			return types.Account{}, &NotFoundError{Message: msgWrongUsername}
		}
		return types.Account{}, err
	}

	if account.IsLoggedIn {
		return types.Account{}, &ConflictError{Message: msgAlreadyLoggedIn}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return types.Account{}, &AuthError{Message: msgWrongPassword}
	}

	account.IsLoggedIn = true
	updated, err := s.repo.Update(ctx, account)
	if err != nil {
		return types.Account{}, err
	}

	s.publish(ctx, EventLogin, updated)
	return updated, nil
}

// Logout flips the session flag off, symmetric with Login: logging out an
// already-logged-out account is an error.
func (s *AccountService) Logout(ctx context.Context, id int) (types.Account, error) {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if isStoreNotFound(err) {
			return types.Account{}, &NotFoundError{Message: msgAccountNotFound}
		}
		return types.Account{}, err
	}

	if !account.IsLoggedIn {
		return types.Account{}, &ConflictError{Message: msgAlreadyLoggedOut}
	}

	account.IsLoggedIn = false
	updated, err := s.repo.Update(ctx, account)
	if err != nil {
		return types.Account{}, err
	}

	s.publish(ctx, EventLogout, updated)
	return updated, nil
}

// PartialUpdate overwrites the named fields of an existing account. The
// contract is deliberately loose: unknown keys and auto-managed fields
// (id, is_logged_in) are silently ignored, and supplied values are taken
// as-is. The one guarded field is the password, which requires the current
// plaintext under "password_validation" and must satisfy the policy.
// Nothing is persisted unless every key was processed without error.
func (s *AccountService) PartialUpdate(ctx context.Context, id int, payload map[string]any) (types.Account, error) {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if isStoreNotFound(err) {
			return types.Account{}, &NotFoundError{Message: msgAccountNotFound}
		}
		return types.Account{}, err
	}

	for key, value := range payload {
		switch key {
		case "email":
			if v, ok := value.(string); ok {
				account.Email = v
			}
		case "username":
			if v, ok := value.(string); ok {
				account.Username = v
			}
		case "gender":
			account.Gender = toOptional(value)
		case "phone_number":
			account.PhoneNumber = toOptional(value)
		case "address":
			account.Address = toOptional(value)
		case passwordField:
			newHash, err := s.changedPasswordHash(account, payload)
			if err != nil {
				return types.Account{}, err
			}
			account.PasswordHash = newHash
		}
	}

	updated, err := s.repo.Update(ctx, account)
	if err != nil {
		if isStoreNotFound(err) {
			return types.Account{}, &NotFoundError{Message: msgAccountNotFound}
		}
		return types.Account{}, mapDuplicate(err)
	}
	return updated, nil
}

// changedPasswordHash runs the password-change sub-protocol of
// PartialUpdate: the payload must carry the current plaintext under
// "password_validation", it must verify against the stored hash, and the
// new password must pass the policy.
func (s *AccountService) changedPasswordHash(account types.Account, payload map[string]any) (string, error) {
	validation, present := payload[passwordValidationKey]
	if !present {
		return "", &ValidationError{Message: msgPasswordValMissing}
	}

	original, _ := validation.(string)
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(original)); err != nil {
		return "", &AuthError{Message: msgWrongOrigPassword}
	}

	newPassword := stringField(payload, passwordField)
	if check := CheckPassword(newPassword); !check.Valid {
		return "", &ValidationError{
			Message:    strings.Join(check.Violations, ", "),
			Violations: check.Violations,
		}
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ResetOptionalFields nulls every optional-classified field and leaves
// required and auto fields untouched.
func (s *AccountService) ResetOptionalFields(ctx context.Context, id int) (types.Account, error) {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if isStoreNotFound(err) {
			return types.Account{}, &NotFoundError{Message: msgAccountNotFound}
		}
		return types.Account{}, err
	}

	account.Gender = nil
	account.PhoneNumber = nil
	account.Address = nil

	updated, err := s.repo.Update(ctx, account)
	if err != nil {
		return types.Account{}, err
	}
	return updated, nil
}

// Delete removes the account permanently. There is no soft delete.
func (s *AccountService) Delete(ctx context.Context, id int) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if isStoreNotFound(err) {
			return &NotFoundError{Message: msgAccountNotFound}
		}
		return err
	}

	s.publish(ctx, EventDeleted, types.Account{ID: id})
	return nil
}

// GetOne fetches a single account by id.
func (s *AccountService) GetOne(ctx context.Context, id int) (types.Account, error) {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if isStoreNotFound(err) {
			return types.Account{}, &NotFoundError{Message: msgAccountNotFound}
		}
		return types.Account{}, err
	}
	return account, nil
}

// GetAll returns every account ordered by id ascending.
func (s *AccountService) GetAll(ctx context.Context) ([]types.Account, error) {
	return s.repo.List(ctx)
}

// publish sends a lifecycle event best-effort: delivery failures are
// logged and never surfaced to the client.
func (s *AccountService) publish(ctx context.Context, channel string, account types.Account) {
	if s.events == nil {
		return
	}

	data, err := json.Marshal(map[string]any{
		"id":       account.ID,
		"email":    account.Email,
		"username": account.Username,
	})
	if err != nil {
		s.logger.Error("marshal account event", "channel", channel, "error", err)
		return
	}

	attrs := map[string]string{"account_id": strconv.Itoa(account.ID)}
	if _, err := s.events.Publish(ctx, channel, data, attrs); err != nil {
		s.logger.Error("publish account event", "channel", channel, "error", err)
	}
}

// missingRequiredFields lists the required fields absent from the payload,
// in schema order. Presence means the key exists, whatever its value.
func missingRequiredFields(payload map[string]any) []string {
	missing := []string{}
	for _, field := range types.AccountFields(types.FieldClassRequired) {
		if _, ok := payload[field]; !ok {
			missing = append(missing, field)
		}
	}
	return missing
}

func stringField(payload map[string]any, key string) string {
	v, _ := payload[key].(string)
	return v
}

// optionalField reads an optional field from a signup payload: an absent
// key or a non-string value becomes null, never the empty string.
func optionalField(payload map[string]any, key string) *string {
	return toOptional(payload[key])
}

func toOptional(value any) *string {
	if v, ok := value.(string); ok {
		return &v
	}
	return nil
}

func isStoreNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

// mapDuplicate converts a unique-constraint backstop failure into the same
// ConflictError the application-level pre-check would have produced.
func mapDuplicate(err error) error {
	switch {
	case errors.Is(err, store.ErrDuplicateEmail):
		return &ConflictError{Message: msgEmailTaken}
	case errors.Is(err, store.ErrDuplicateUsername):
		return &ConflictError{Message: msgUsernameTaken}
	default:
		return err
	}
}

package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"testing"

	"github.com/akicestmoi/auth-apiserver/internal/store"
	"github.com/akicestmoi/auth-apiserver/types"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// memoryRepo is an in-memory AccountRepository mirroring the postgres
// behavior, unique constraints included.
type memoryRepo struct {
	nextID   int
	accounts map[int]types.Account
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1, accounts: map[int]types.Account{}}
}

func (r *memoryRepo) GetByID(_ context.Context, id int) (types.Account, error) {
	account, ok := r.accounts[id]
	if !ok {
		return types.Account{}, store.ErrNotFound
	}
	return account, nil
}

func (r *memoryRepo) GetByUsername(_ context.Context, username string) (types.Account, error) {
	for _, account := range r.accounts {
		if account.Username == username {
			return account, nil
		}
	}
	return types.Account{}, store.ErrNotFound
}

func (r *memoryRepo) GetByEmail(_ context.Context, email string) (types.Account, error) {
	for _, account := range r.accounts {
		if account.Email == email {
			return account, nil
		}
	}
	return types.Account{}, store.ErrNotFound
}

func (r *memoryRepo) List(_ context.Context) ([]types.Account, error) {
	accounts := []types.Account{}
	for _, account := range r.accounts {
		accounts = append(accounts, account)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts, nil
}

func (r *memoryRepo) EmailTaken(_ context.Context, email string) (bool, error) {
	for _, account := range r.accounts {
		if account.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepo) UsernameTaken(_ context.Context, username string) (bool, error) {
	for _, account := range r.accounts {
		if account.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepo) Create(ctx context.Context, account types.Account) (types.Account, error) {
	if taken, _ := r.EmailTaken(ctx, account.Email); taken {
		return types.Account{}, store.ErrDuplicateEmail
	}
	if taken, _ := r.UsernameTaken(ctx, account.Username); taken {
		return types.Account{}, store.ErrDuplicateUsername
	}
	account.ID = r.nextID
	r.nextID++
	r.accounts[account.ID] = account
	return account, nil
}

func (r *memoryRepo) Update(_ context.Context, account types.Account) (types.Account, error) {
	if _, ok := r.accounts[account.ID]; !ok {
		return types.Account{}, store.ErrNotFound
	}
	r.accounts[account.ID] = account
	return account, nil
}

func (r *memoryRepo) Delete(_ context.Context, id int) error {
	if _, ok := r.accounts[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.accounts, id)
	return nil
}

// recordingPublisher captures published event channels.
type recordingPublisher struct {
	channels []string
}

func (p *recordingPublisher) Publish(_ context.Context, channel string, _ []byte, _ map[string]string) (string, error) {
	p.channels = append(p.channels, channel)
	return "msg-id", nil
}

func newTestService(repo AccountRepository, events EventPublisher) *AccountService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAccountService(repo, events, logger)
}

func validSignupPayload() map[string]any {
	return map[string]any{
		"email":    "test_email@test.com",
		"username": "test_name",
		"password": "Testpw0-",
	}
}

func TestSignupMissingFields(t *testing.T) {
	svc := newTestService(newMemoryRepo(), nil)

	tests := []struct {
		name    string
		payload map[string]any
		message string
	}{
		{"empty", map[string]any{}, "missing field: email, username, password"},
		{"unknown keys only", map[string]any{"random_field": "random_value"}, "missing field: email, username, password"},
		{"username only", map[string]any{"username": "test"}, "missing field: email, password"},
		{"missing username", map[string]any{"password": "test_password", "email": "test_email"}, "missing field: username"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Signup(context.Background(), tt.payload)
			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			require.Equal(t, tt.message, validationErr.Message)
		})
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	svc := newTestService(newMemoryRepo(), nil)

	_, err := svc.Signup(context.Background(), validSignupPayload())
	require.NoError(t, err)

	payload := validSignupPayload()
	payload["username"] = "another_name"
	_, err = svc.Signup(context.Background(), payload)
	var conflictErr *ConflictError
	require.ErrorAs(t, err, &conflictErr)
	require.Equal(t, "an account is already registered with this email", conflictErr.Message)
}

func TestSignupDuplicateUsername(t *testing.T) {
	svc := newTestService(newMemoryRepo(), nil)

	_, err := svc.Signup(context.Background(), validSignupPayload())
	require.NoError(t, err)

	payload := validSignupPayload()
	payload["email"] = "another_email@test.com"
	_, err = svc.Signup(context.Background(), payload)
	var conflictErr *ConflictError
	require.ErrorAs(t, err, &conflictErr)
	require.Equal(t, "the username is already taken", conflictErr.Message)
}

func TestSignupCheckOrder(t *testing.T) {
	// Duplicate email wins over an invalid password: only the first
	// failing check is reported.
	svc := newTestService(newMemoryRepo(), nil)

	_, err := svc.Signup(context.Background(), validSignupPayload())
	require.NoError(t, err)

	payload := validSignupPayload()
	payload["username"] = "another_name"
	payload["password"] = "weak"
	_, err = svc.Signup(context.Background(), payload)
	var conflictErr *ConflictError
	require.ErrorAs(t, err, &conflictErr)
	require.Equal(t, "an account is already registered with this email", conflictErr.Message)
}

func TestSignupInvalidPassword(t *testing.T) {
	svc := newTestService(newMemoryRepo(), nil)

	payload := validSignupPayload()
	payload["password"] = "testpw"
	_, err := svc.Signup(context.Background(), payload)
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Len(t, validationErr.Violations, 3)
}

func TestSignupSuccess(t *testing.T) {
	repo := newMemoryRepo()
	publisher := &recordingPublisher{}
	svc := newTestService(repo, publisher)

	payload := validSignupPayload()
	payload["gender"] = "M"
	created, err := svc.Signup(context.Background(), payload)
	require.NoError(t, err)

	require.NotZero(t, created.ID)
	require.True(t, created.IsLoggedIn)
	require.Equal(t, "test_email@test.com", created.Email)
	require.NotNil(t, created.Gender)
	require.Equal(t, "M", *created.Gender)
	require.Nil(t, created.PhoneNumber)
	require.Nil(t, created.Address)

	// Stored as a verifiable hash, never the plaintext.
	require.NotEqual(t, "Testpw0-", created.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("Testpw0-")))

	require.Equal(t, []string{EventSignup}, publisher.channels)
}

func TestLoginAndLogoutTransitions(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)

	created, err := svc.Signup(context.Background(), validSignupPayload())
	require.NoError(t, err)

	// Fresh accounts start logged in, so a login attempt conflicts even
	// with the right credentials.
	_, err = svc.Login(context.Background(), "test_name", "Testpw0-")
	var conflictErr *ConflictError
	require.ErrorAs(t, err, &conflictErr)
	require.Equal(t, "the account is already logged in", conflictErr.Message)

	_, err = svc.Logout(context.Background(), created.ID)
	require.NoError(t, err)

	_, err = svc.Logout(context.Background(), created.ID)
	require.ErrorAs(t, err, &conflictErr)
	require.Equal(t, "the account is already logged out", conflictErr.Message)

	_, err = svc.Login(context.Background(), "test_name", "wrong_password")
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, "wrong password", authErr.Message)

	_, err = svc.Login(context.Background(), "no_such_name", "Testpw0-")
	var notFoundErr *NotFoundError
	require.ErrorAs(t, err, &notFoundErr)
	require.Equal(t, "wrong username", notFoundErr.Message)

	logged, err := svc.Login(context.Background(), "test_name", "Testpw0-")
	require.NoError(t, err)
	require.True(t, logged.IsLoggedIn)
}

func TestLogoutUnknownAccount(t *testing.T) {
	svc := newTestService(newMemoryRepo(), nil)

	_, err := svc.Logout(context.Background(), 42)
	var notFoundErr *NotFoundError
	require.ErrorAs(t, err, &notFoundErr)
	require.Equal(t, "the account does not exist", notFoundErr.Message)
}

func TestPartialUpdateFields(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)

	created, err := svc.Signup(context.Background(), validSignupPayload())
	require.NoError(t, err)

	updated, err := svc.PartialUpdate(context.Background(), created.ID, map[string]any{
		"gender":       "F",
		"phone_number": "0143058596",
		"unknown_key":  "ignored",
	})
	require.NoError(t, err)
	require.Equal(t, "F", *updated.Gender)
	require.Equal(t, "0143058596", *updated.PhoneNumber)
	require.Equal(t, created.Email, updated.Email)
}

func TestPartialUpdateSkipsAutoFields(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)

	created, err := svc.Signup(context.Background(), validSignupPayload())
	require.NoError(t, err)

	updated, err := svc.PartialUpdate(context.Background(), created.ID, map[string]any{
		"id":           999,
		"is_logged_in": false,
	})
	require.NoError(t, err)
	require.Equal(t, created.ID, updated.ID)
	require.True(t, updated.IsLoggedIn)
}

func TestPartialUpdatePasswordChange(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)

	created, err := svc.Signup(context.Background(), validSignupPayload())
	require.NoError(t, err)

	// Missing password_validation sibling.
	_, err = svc.PartialUpdate(context.Background(), created.ID, map[string]any{
		"password": "Newpwd1!",
	})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "'password_validation' field missing (should contain original password as value)", validationErr.Message)

	// Wrong original password.
	_, err = svc.PartialUpdate(context.Background(), created.ID, map[string]any{
		"password":            "Newpwd1!",
		"password_validation": "not_the_password",
	})
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, "wrong original password", authErr.Message)

	// Policy-violating replacement.
	_, err = svc.PartialUpdate(context.Background(), created.ID, map[string]any{
		"password":            "weak",
		"password_validation": "Testpw0-",
	})
	require.ErrorAs(t, err, &validationErr)
	require.NotEmpty(t, validationErr.Violations)

	// Valid change: the new hash verifies against the new plaintext only.
	updated, err := svc.PartialUpdate(context.Background(), created.ID, map[string]any{
		"password":            "Newpwd1!",
		"password_validation": "Testpw0-",
	})
	require.NoError(t, err)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(updated.PasswordHash), []byte("Newpwd1!")))
	require.Error(t, bcrypt.CompareHashAndPassword([]byte(updated.PasswordHash), []byte("Testpw0-")))
}

func TestPartialUpdateFailureDoesNotPersist(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)

	created, err := svc.Signup(context.Background(), validSignupPayload())
	require.NoError(t, err)

	_, err = svc.PartialUpdate(context.Background(), created.ID, map[string]any{
		"gender":   "F",
		"password": "Newpwd1!",
	})
	require.Error(t, err)

	stored, err := svc.GetOne(context.Background(), created.ID)
	require.NoError(t, err)
	require.Nil(t, stored.Gender)
	require.Equal(t, created.PasswordHash, stored.PasswordHash)
}

func TestPartialUpdateUnknownAccount(t *testing.T) {
	svc := newTestService(newMemoryRepo(), nil)

	_, err := svc.PartialUpdate(context.Background(), 42, map[string]any{"gender": "F"})
	var notFoundErr *NotFoundError
	require.ErrorAs(t, err, &notFoundErr)
}

func TestResetOptionalFields(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)

	payload := validSignupPayload()
	payload["gender"] = "F"
	payload["phone_number"] = "0101010101"
	payload["address"] = "random_address"
	created, err := svc.Signup(context.Background(), payload)
	require.NoError(t, err)

	reset, err := svc.ResetOptionalFields(context.Background(), created.ID)
	require.NoError(t, err)
	require.Nil(t, reset.Gender)
	require.Nil(t, reset.PhoneNumber)
	require.Nil(t, reset.Address)

	// Required and auto fields stay untouched.
	require.Equal(t, created.ID, reset.ID)
	require.Equal(t, created.Email, reset.Email)
	require.Equal(t, created.Username, reset.Username)
	require.Equal(t, created.PasswordHash, reset.PasswordHash)
	require.Equal(t, created.IsLoggedIn, reset.IsLoggedIn)
}

func TestDeleteAccount(t *testing.T) {
	repo := newMemoryRepo()
	publisher := &recordingPublisher{}
	svc := newTestService(repo, publisher)

	created, err := svc.Signup(context.Background(), validSignupPayload())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), created.ID))
	require.Equal(t, []string{EventSignup, EventDeleted}, publisher.channels)

	_, err = svc.GetOne(context.Background(), created.ID)
	var notFoundErr *NotFoundError
	require.ErrorAs(t, err, &notFoundErr)

	err = svc.Delete(context.Background(), created.ID)
	require.ErrorAs(t, err, &notFoundErr)
}

func TestGetAll(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)

	accounts, err := svc.GetAll(context.Background())
	require.NoError(t, err)
	require.Empty(t, accounts)

	_, err = svc.Signup(context.Background(), validSignupPayload())
	require.NoError(t, err)

	second := validSignupPayload()
	second["email"] = "second@test.com"
	second["username"] = "second_name"
	_, err = svc.Signup(context.Background(), second)
	require.NoError(t, err)

	accounts, err = svc.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	require.Less(t, accounts[0].ID, accounts[1].ID)
}

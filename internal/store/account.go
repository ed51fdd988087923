package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/akicestmoi/auth-apiserver/types"
	"github.com/lib/pq"
)

const uniqueViolationCode = "23505"

// AccountRepository handles persistence for accounts.
type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, email, username, password, gender, phone_number, address, is_logged_in`

func scanAccount(row *sql.Row) (types.Account, error) {
	var account types.Account
	err := row.Scan(
		&account.ID,
		&account.Email,
		&account.Username,
		&account.PasswordHash,
		&account.Gender,
		&account.PhoneNumber,
		&account.Address,
		&account.IsLoggedIn,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Account{}, ErrNotFound
		}
		return types.Account{}, err
	}
	return account, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id int) (types.Account, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE id = $1`
	return scanAccount(r.db.QueryRowContext(ctx, query, id))
}

func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (types.Account, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE username = $1`
	return scanAccount(r.db.QueryRowContext(ctx, query, username))
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (types.Account, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE email = $1`
	return scanAccount(r.db.QueryRowContext(ctx, query, email))
}

// List returns every account ordered by id ascending. An empty store
// yields an empty slice, not an error.
func (r *AccountRepository) List(ctx context.Context) ([]types.Account, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM accounts
		ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := []types.Account{}
	for rows.Next() {
		var account types.Account
		if err := rows.Scan(
			&account.ID,
			&account.Email,
			&account.Username,
			&account.PasswordHash,
			&account.Gender,
			&account.PhoneNumber,
			&account.Address,
			&account.IsLoggedIn,
		); err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// EmailTaken reports whether any account already uses the exact email.
func (r *AccountRepository) EmailTaken(ctx context.Context, email string) (bool, error) {
	const query = `SELECT COUNT(*) FROM accounts WHERE email = $1`
	var count int
	if err := r.db.QueryRowContext(ctx, query, email).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// UsernameTaken reports whether any account already uses the exact username.
func (r *AccountRepository) UsernameTaken(ctx context.Context, username string) (bool, error) {
	const query = `SELECT COUNT(*) FROM accounts WHERE username = $1`
	var count int
	if err := r.db.QueryRowContext(ctx, query, username).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *AccountRepository) Create(ctx context.Context, account types.Account) (types.Account, error) {
	const query = `
		INSERT INTO accounts (email, username, password, gender, phone_number, address, is_logged_in)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		account.Email,
		account.Username,
		account.PasswordHash,
		account.Gender,
		account.PhoneNumber,
		account.Address,
		account.IsLoggedIn,
	).Scan(&account.ID); err != nil {
		if dupErr := duplicateError(err); dupErr != nil {
			return types.Account{}, dupErr
		}
		return types.Account{}, err
	}
	return account, nil
}

func (r *AccountRepository) Update(ctx context.Context, account types.Account) (types.Account, error) {
	const query = `
		UPDATE accounts
		SET email = $1,
			username = $2,
			password = $3,
			gender = $4,
			phone_number = $5,
			address = $6,
			is_logged_in = $7
		WHERE id = $8`
	result, err := r.db.ExecContext(
		ctx,
		query,
		account.Email,
		account.Username,
		account.PasswordHash,
		account.Gender,
		account.PhoneNumber,
		account.Address,
		account.IsLoggedIn,
		account.ID,
	)
	if err != nil {
		if dupErr := duplicateError(err); dupErr != nil {
			return types.Account{}, dupErr
		}
		return types.Account{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Account{}, err
	}
	if affected == 0 {
		return types.Account{}, ErrNotFound
	}
	return account, nil
}

func (r *AccountRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM accounts WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// duplicateError translates a postgres unique_violation into the matching
// sentinel, or returns nil when err is anything else. The accounts table
// carries UNIQUE constraints on email and username as the backstop for the
// racy application-level pre-checks.
func duplicateError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || string(pqErr.Code) != uniqueViolationCode {
		return nil
	}
	if pqErr.Constraint == "accounts_username_key" {
		return ErrDuplicateUsername
	}
	return ErrDuplicateEmail
}

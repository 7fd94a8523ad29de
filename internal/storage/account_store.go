// Copyright (c) 2025 The lifeos Authors
//
// This file is part of lifeos. Licensed under the GNU Affero General
// Public License v3.0. See https://www.gnu.org/licenses/agpl-3.0.html

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lifeos/lifeos/pkg/user"
)

// pgUniqueViolation is the PostgreSQL error code for unique constraint
// violations.
const pgUniqueViolation = "23505"

// AccountStore implements user.Store backed by PostgreSQL. Credentials
// are loaded alongside accounts but written through CredentialStore, so
// Update never touches the credentials table.
type AccountStore struct {
	db *sql.DB
}

// NewAccountStore creates an account store over an open database handle.
// The store does not own the handle.
func NewAccountStore(db *sql.DB) *AccountStore {
	return &AccountStore{db: db}
}

// Create persists a new account.
func (s *AccountStore) Create(ctx context.Context, account *user.Account) error {
	email := user.NormalizeEmail(account.Email)
	if !user.ValidEmail(email) {
		return user.ErrInvalidEmail
	}
	account.Email = email

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (
			id, email, display_name, password_hash, role, active,
			biometric_enabled, last_biometric_verification,
			failed_login_attempts, locked_until, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		account.ID, account.Email, account.DisplayName, account.PasswordHash,
		string(account.Role), account.Active, account.BiometricEnabled,
		nullTime(account.LastBiometricVerification),
		account.FailedLoginAttempts, nullTime(account.LockedUntil),
		account.CreatedAt, account.UpdatedAt)
	if isUniqueViolation(err) {
		return user.ErrUserAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// GetByID retrieves an account and its credentials by user handle.
func (s *AccountStore) GetByID(ctx context.Context, id []byte) (*user.Account, error) {
	return s.get(ctx, `WHERE id = $1`, id)
}

// GetByEmail retrieves an account and its credentials by email.
func (s *AccountStore) GetByEmail(ctx context.Context, email string) (*user.Account, error) {
	return s.get(ctx, `WHERE email = $1`, user.NormalizeEmail(email))
}

func (s *AccountStore) get(ctx context.Context, where string, arg any) (*user.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, password_hash, role, active,
		       biometric_enabled, last_biometric_verification,
		       failed_login_attempts, locked_until, created_at, updated_at
		FROM accounts `+where, arg)

	account, err := scanAccount(row)
	if err != nil {
		return nil, err
	}

	creds, err := loadCredentials(ctx, s.db, account.ID)
	if err != nil {
		return nil, err
	}
	account.Credentials = creds
	return account, nil
}

// Update saves changes to an existing account. Credentials are not
// written here.
func (s *AccountStore) Update(ctx context.Context, account *user.Account) error {
	email := user.NormalizeEmail(account.Email)
	if !user.ValidEmail(email) {
		return user.ErrInvalidEmail
	}
	account.Email = email
	account.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET
			email = $2, display_name = $3, password_hash = $4, role = $5,
			active = $6, biometric_enabled = $7,
			last_biometric_verification = $8, failed_login_attempts = $9,
			locked_until = $10, updated_at = $11
		WHERE id = $1`,
		account.ID, account.Email, account.DisplayName, account.PasswordHash,
		string(account.Role), account.Active, account.BiometricEnabled,
		nullTime(account.LastBiometricVerification),
		account.FailedLoginAttempts, nullTime(account.LockedUntil),
		account.UpdatedAt)
	if isUniqueViolation(err) {
		return user.ErrUserAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if affected == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

// Delete removes an account. Credentials cascade.
func (s *AccountStore) Delete(ctx context.Context, id []byte) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if affected == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

// List returns all accounts with their credentials.
func (s *AccountStore) List(ctx context.Context) ([]*user.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, email, display_name, password_hash, role, active,
		       biometric_enabled, last_biometric_verification,
		       failed_login_attempts, locked_until, created_at, updated_at
		FROM accounts ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*user.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	for _, account := range accounts {
		creds, err := loadCredentials(ctx, s.db, account.ID)
		if err != nil {
			return nil, err
		}
		account.Credentials = creds
	}
	return accounts, nil
}

// Count returns the number of accounts.
func (s *AccountStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM accounts`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return count, nil
}

// Close is a no-op; the database handle is owned by the caller.
func (s *AccountStore) Close() error {
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*user.Account, error) {
	var (
		account       user.Account
		role          string
		lastBiometric sql.NullTime
		lockedUntil   sql.NullTime
	)
	err := row.Scan(
		&account.ID, &account.Email, &account.DisplayName,
		&account.PasswordHash, &role, &account.Active,
		&account.BiometricEnabled, &lastBiometric,
		&account.FailedLoginAttempts, &lockedUntil,
		&account.CreatedAt, &account.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, user.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}

	account.Role = user.Role(role)
	if lastBiometric.Valid {
		account.LastBiometricVerification = lastBiometric.Time
	}
	if lockedUntil.Valid {
		account.LockedUntil = lockedUntil.Time
	}
	return &account, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

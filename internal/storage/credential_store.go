// Copyright (c) 2025 The lifeos Authors
//
// This file is part of lifeos. Licensed under the GNU Affero General
// Public License v3.0. See https://www.gnu.org/licenses/agpl-3.0.html

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lifeos/lifeos/pkg/webauthn"
)

// CredentialStore implements webauthn.CredentialStore backed by
// PostgreSQL. The signature counter lives in its own column so
// UpdateSignCount can compare-and-swap in a single conditional UPDATE.
type CredentialStore struct {
	db *sql.DB
}

// NewCredentialStore creates a credential store over an open database
// handle. The store does not own the handle.
func NewCredentialStore(db *sql.DB) *CredentialStore {
	return &CredentialStore{db: db}
}

// Save persists a newly registered credential. The primary key enforces
// global uniqueness of credential IDs.
func (s *CredentialStore) Save(ctx context.Context, cred *webauthn.Credential) error {
	payload, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO credentials (id, user_id, sign_count, credential, created_at, last_used_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		cred.ID, cred.UserID, int64(cred.Authenticator.SignCount), payload,
		cred.CreatedAt, nullTime(cred.LastUsedAt))
	if isUniqueViolation(err) {
		return webauthn.ErrCredentialAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

// GetByUserID returns all credentials registered to a user.
func (s *CredentialStore) GetByUserID(ctx context.Context, userID []byte) ([]*webauthn.Credential, error) {
	return loadCredentials(ctx, s.db, userID)
}

// GetByCredentialID looks up a credential by its ID.
func (s *CredentialStore) GetByCredentialID(ctx context.Context, credID []byte) (*webauthn.Credential, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT credential, sign_count, last_used_at
		FROM credentials WHERE id = $1`, credID)

	cred, err := scanCredential(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, webauthn.ErrCredentialNotFound
	}
	if err != nil {
		return nil, err
	}
	return cred, nil
}

// UpdateSignCount advances a credential's signature counter only if the
// stored counter still equals oldCount. A conditional write keeps the
// check atomic under concurrent assertions.
func (s *CredentialStore) UpdateSignCount(ctx context.Context, credID []byte, oldCount, newCount uint32) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE credentials
		SET sign_count = $3, last_used_at = now()
		WHERE id = $1 AND sign_count = $2`,
		credID, int64(oldCount), int64(newCount))
	if err != nil {
		return fmt.Errorf("update sign count: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update sign count: %w", err)
	}
	if affected == 1 {
		return nil
	}

	// Distinguish a missing credential from a counter mismatch.
	var exists bool
	err = s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM credentials WHERE id = $1)`, credID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("update sign count: %w", err)
	}
	if !exists {
		return webauthn.ErrCredentialNotFound
	}
	return webauthn.ErrCredentialCloned
}

// Delete removes a credential. When the account's last credential is
// removed, biometric login is disabled.
func (s *CredentialStore) Delete(ctx context.Context, credID []byte) error {
	var userID []byte
	err := s.db.QueryRowContext(ctx, `
		DELETE FROM credentials WHERE id = $1 RETURNING user_id`, credID).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return webauthn.ErrCredentialNotFound
	}
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE accounts SET biometric_enabled = FALSE
		WHERE id = $1
		  AND NOT EXISTS (SELECT 1 FROM credentials WHERE user_id = $1)`, userID)
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

// loadCredentials reads the credentials registered to a user.
func loadCredentials(ctx context.Context, db *sql.DB, userID []byte) ([]*webauthn.Credential, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT credential, sign_count, last_used_at
		FROM credentials WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	defer rows.Close()

	var creds []*webauthn.Credential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	return creds, nil
}

func scanCredential(row rowScanner) (*webauthn.Credential, error) {
	var (
		payload    []byte
		signCount  int64
		lastUsedAt sql.NullTime
	)
	if err := row.Scan(&payload, &signCount, &lastUsedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan credential: %w", err)
	}

	var cred webauthn.Credential
	if err := json.Unmarshal(payload, &cred); err != nil {
		return nil, fmt.Errorf("unmarshal credential: %w", err)
	}

	// The column is authoritative for the counter.
	cred.Authenticator.SignCount = uint32(signCount)
	if lastUsedAt.Valid {
		cred.LastUsedAt = lastUsedAt.Time
	}
	return &cred, nil
}

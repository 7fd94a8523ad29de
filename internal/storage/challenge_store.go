// Copyright (c) 2025 The lifeos Authors
//
// This file is part of lifeos. Licensed under the GNU Affero General
// Public License v3.0. See https://www.gnu.org/licenses/agpl-3.0.html

package storage

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	wa "github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"

	"github.com/lifeos/lifeos/pkg/webauthn"
)

const (
	userChallengeKeyPrefix       = "user:"
	standaloneChallengeKeyPrefix = "standalone:"
)

// ChallengeStore implements webauthn.ChallengeStore backed by
// PostgreSQL. Consumption is a single DELETE RETURNING, so each
// challenge is spent at most once even across server instances.
type ChallengeStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewChallengeStore creates a challenge store with the given challenge
// lifetime. A non-positive ttl falls back to five minutes.
func NewChallengeStore(db *sql.DB, ttl time.Duration) *ChallengeStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ChallengeStore{
		db:  db,
		ttl: ttl,
		now: time.Now,
	}
}

// SetClock overrides the store's time source. Intended for tests.
func (s *ChallengeStore) SetClock(now func() time.Time) {
	s.now = now
}

// PutUser stores a registration or login challenge for a user,
// replacing any outstanding one.
func (s *ChallengeStore) PutUser(ctx context.Context, userID []byte, data *wa.SessionData) error {
	return s.put(ctx, userChallengeKeyPrefix+hex.EncodeToString(userID), data)
}

// ConsumeUser atomically retrieves and deletes a user's outstanding
// challenge.
func (s *ChallengeStore) ConsumeUser(ctx context.Context, userID []byte) (*wa.SessionData, error) {
	data, _, err := s.consume(ctx, userChallengeKeyPrefix+hex.EncodeToString(userID))
	return data, err
}

// PutStandalone stores a discoverable login challenge under a fresh
// challenge ID.
func (s *ChallengeStore) PutStandalone(ctx context.Context, data *wa.SessionData) (string, error) {
	challengeID := uuid.NewString()
	if err := s.put(ctx, standaloneChallengeKeyPrefix+challengeID, data); err != nil {
		return "", err
	}
	return challengeID, nil
}

// ConsumeStandalone atomically retrieves and deletes a standalone
// challenge. Consuming past the challenge lifetime reports expiry.
func (s *ChallengeStore) ConsumeStandalone(ctx context.Context, challengeID string) (*wa.SessionData, error) {
	data, expiresAt, err := s.consume(ctx, standaloneChallengeKeyPrefix+challengeID)
	if err != nil {
		return nil, err
	}
	if expiresAt.Valid && s.now().After(expiresAt.Time) {
		return nil, webauthn.ErrChallengeExpired
	}
	return data, nil
}

// PruneExpired removes challenges past their lifetime that were never
// consumed.
func (s *ChallengeStore) PruneExpired(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM webauthn_challenges WHERE expires_at < $1`, s.now())
	if err != nil {
		return 0, fmt.Errorf("prune challenges: %w", err)
	}
	return result.RowsAffected()
}

func (s *ChallengeStore) put(ctx context.Context, key string, data *wa.SessionData) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal challenge: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO webauthn_challenges (key, session, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE
		SET session = EXCLUDED.session,
		    expires_at = EXCLUDED.expires_at,
		    created_at = EXCLUDED.created_at`,
		key, payload, s.now().Add(s.ttl), s.now())
	if err != nil {
		return fmt.Errorf("store challenge: %w", err)
	}
	return nil
}

func (s *ChallengeStore) consume(ctx context.Context, key string) (*wa.SessionData, sql.NullTime, error) {
	var (
		payload   []byte
		expiresAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		DELETE FROM webauthn_challenges WHERE key = $1
		RETURNING session, expires_at`, key).Scan(&payload, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sql.NullTime{}, webauthn.ErrChallengeNotFound
	}
	if err != nil {
		return nil, sql.NullTime{}, fmt.Errorf("consume challenge: %w", err)
	}

	var data wa.SessionData
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, sql.NullTime{}, fmt.Errorf("unmarshal challenge: %w", err)
	}
	return &data, expiresAt, nil
}

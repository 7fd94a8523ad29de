// Copyright (c) 2025 The lifeos Authors
//
// This file is part of lifeos. Licensed under the GNU Affero General
// Public License v3.0. See https://www.gnu.org/licenses/agpl-3.0.html

package webauthn

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	redisUserChallengePrefix       = "webauthn:challenge:user:"
	redisStandaloneChallengePrefix = "webauthn:challenge:standalone:"

	// Expired standalone records are kept around briefly so a late consume
	// can distinguish "expired" from "never existed".
	redisExpiryGrace = 1 * time.Minute
)

// RedisChallengeStore is a ChallengeStore backed by Redis. Consumption uses
// GETDEL so concurrent finish attempts race atomically and exactly one wins.
type RedisChallengeStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

type redisChallengeRecord struct {
	Data      *webauthn.SessionData `json:"data"`
	ExpiresAt time.Time             `json:"expires_at,omitempty"`
}

// NewRedisChallengeStore creates a challenge store on an existing Redis
// client with the given standalone challenge TTL.
func NewRedisChallengeStore(client *redis.Client, ttl time.Duration) *RedisChallengeStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisChallengeStore{
		client: client,
		ttl:    ttl,
		now:    time.Now,
	}
}

// SetClock overrides the time source. For tests.
func (s *RedisChallengeStore) SetClock(now func() time.Time) {
	s.now = now
}

// PutUser stores a pending challenge for a user, replacing any previous one.
// The record is capped at the ceremony timeout horizon via the store TTL.
func (s *RedisChallengeStore) PutUser(ctx context.Context, userID []byte, data *webauthn.SessionData) error {
	payload, err := json.Marshal(redisChallengeRecord{Data: data})
	if err != nil {
		return fmt.Errorf("marshal challenge: %w", err)
	}
	key := redisUserChallengePrefix + hex.EncodeToString(userID)
	if err := s.client.Set(ctx, key, payload, s.ttl+redisExpiryGrace).Err(); err != nil {
		return fmt.Errorf("store challenge: %w", err)
	}
	return nil
}

// ConsumeUser atomically retrieves and removes the pending challenge for a user.
func (s *RedisChallengeStore) ConsumeUser(ctx context.Context, userID []byte) (*webauthn.SessionData, error) {
	key := redisUserChallengePrefix + hex.EncodeToString(userID)
	payload, err := s.client.GetDel(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("consume challenge: %w", err)
	}

	var record redisChallengeRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("unmarshal challenge: %w", err)
	}
	return record.Data, nil
}

// PutStandalone stores a challenge not bound to any user and returns its ID.
func (s *RedisChallengeStore) PutStandalone(ctx context.Context, data *webauthn.SessionData) (string, error) {
	id := uuid.NewString()
	payload, err := json.Marshal(redisChallengeRecord{
		Data:      data,
		ExpiresAt: s.now().Add(s.ttl).UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal challenge: %w", err)
	}
	key := redisStandaloneChallengePrefix + id
	if err := s.client.Set(ctx, key, payload, s.ttl+redisExpiryGrace).Err(); err != nil {
		return "", fmt.Errorf("store challenge: %w", err)
	}
	return id, nil
}

// ConsumeStandalone atomically retrieves and removes a standalone challenge.
// A record past its expiry is removed and reported as ErrChallengeExpired.
func (s *RedisChallengeStore) ConsumeStandalone(ctx context.Context, challengeID string) (*webauthn.SessionData, error) {
	key := redisStandaloneChallengePrefix + challengeID
	payload, err := s.client.GetDel(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("consume challenge: %w", err)
	}

	var record redisChallengeRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("unmarshal challenge: %w", err)
	}
	if !record.ExpiresAt.IsZero() && s.now().After(record.ExpiresAt) {
		return nil, ErrChallengeExpired
	}
	return record.Data, nil
}

// Copyright (c) 2025 The lifeos Authors
//
// This file is part of lifeos. Licensed under the GNU Affero General
// Public License v3.0. See https://www.gnu.org/licenses/agpl-3.0.html

package rest

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lifeos/lifeos/internal/config"
	"github.com/lifeos/lifeos/internal/storage"
	"github.com/lifeos/lifeos/pkg/user"
	"github.com/lifeos/lifeos/pkg/webauthn"
)

// Stores bundles the persistence implementations selected by the
// storage configuration. The memory backend serves development and
// tests; postgres serves production. Redis, when configured, holds
// challenges so they survive restarts and are shared across instances.
type Stores struct {
	Accounts    user.Store
	Users       webauthn.UserStore
	Credentials webauthn.CredentialStore
	Challenges  webauthn.ChallengeStore

	db          *sql.DB
	redisClient *redis.Client
}

// NewStores builds the store set for the given storage configuration.
func NewStores(ctx context.Context, cfg *config.StorageConfig, challengeTTL time.Duration) (*Stores, error) {
	stores := &Stores{}

	switch cfg.Backend {
	case "memory":
		accounts := user.NewMemoryStore()
		stores.Accounts = accounts
		stores.Users = user.NewWebAuthnUserAdapter(accounts)
		stores.Credentials = user.NewWebAuthnCredentialAdapter(accounts)
		stores.Challenges = webauthn.NewMemoryChallengeStoreWithTTL(challengeTTL)

	case "postgres":
		db, err := storage.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := storage.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		stores.db = db
		stores.Accounts = storage.NewAccountStore(db)
		stores.Users = user.NewWebAuthnUserAdapter(stores.Accounts)
		stores.Credentials = storage.NewCredentialStore(db)
		stores.Challenges = storage.NewChallengeStore(db, challengeTTL)

	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			stores.Close()
			client.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		stores.redisClient = client
		stores.Challenges = webauthn.NewRedisChallengeStore(client, challengeTTL)
	}

	return stores, nil
}

// Close releases database and Redis connections.
func (s *Stores) Close() error {
	var firstErr error
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			firstErr = err
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Copyright (c) 2025 The lifeos Authors
//
// This file is part of lifeos. Licensed under the GNU Affero General
// Public License v3.0. See https://www.gnu.org/licenses/agpl-3.0.html

package user

import (
	"context"
	"encoding/hex"
	"sync"
	"time"
)

// Store defines the interface for account persistence.
type Store interface {
	// Create persists a new account. The email must be unique.
	Create(ctx context.Context, account *Account) error

	// GetByID retrieves an account by its user handle.
	GetByID(ctx context.Context, id []byte) (*Account, error)

	// GetByEmail retrieves an account by its normalized email.
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// Update saves changes to an existing account.
	Update(ctx context.Context, account *Account) error

	// Delete removes an account by its user handle.
	Delete(ctx context.Context, id []byte) error

	// List returns all accounts.
	List(ctx context.Context) ([]*Account, error)

	// Count returns the number of accounts.
	Count(ctx context.Context) (int, error)

	// Close releases resources held by the store.
	Close() error
}

// MemoryStore is an in-memory Store implementation. It is safe for
// concurrent use and intended for tests and single-node deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]*Account
	byEmail map[string]*Account
	closed  bool
}

// NewMemoryStore creates an empty in-memory account store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]*Account),
		byEmail: make(map[string]*Account),
	}
}

// Create persists a new account.
func (s *MemoryStore) Create(ctx context.Context, account *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStorageClosed
	}

	email := NormalizeEmail(account.Email)
	if !ValidEmail(email) {
		return ErrInvalidEmail
	}
	if _, exists := s.byEmail[email]; exists {
		return ErrUserAlreadyExists
	}
	if _, exists := s.byID[hex.EncodeToString(account.ID)]; exists {
		return ErrUserAlreadyExists
	}

	account.Email = email
	s.byID[hex.EncodeToString(account.ID)] = account
	s.byEmail[email] = account
	return nil
}

// GetByID retrieves an account by its user handle.
func (s *MemoryStore) GetByID(ctx context.Context, id []byte) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStorageClosed
	}

	account, ok := s.byID[hex.EncodeToString(id)]
	if !ok {
		return nil, ErrUserNotFound
	}
	return account, nil
}

// GetByEmail retrieves an account by its email. The lookup is
// case-insensitive.
func (s *MemoryStore) GetByEmail(ctx context.Context, email string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStorageClosed
	}

	account, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	return account, nil
}

// Update saves changes to an existing account. If the email changed, the
// new email must not collide with another account.
func (s *MemoryStore) Update(ctx context.Context, account *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStorageClosed
	}

	key := hex.EncodeToString(account.ID)
	existing, ok := s.byID[key]
	if !ok {
		return ErrUserNotFound
	}

	email := NormalizeEmail(account.Email)
	if email != existing.Email {
		if !ValidEmail(email) {
			return ErrInvalidEmail
		}
		if other, exists := s.byEmail[email]; exists && other != existing {
			return ErrUserAlreadyExists
		}
		delete(s.byEmail, existing.Email)
	}

	account.Email = email
	account.UpdatedAt = time.Now().UTC()
	s.byID[key] = account
	s.byEmail[email] = account
	return nil
}

// Delete removes an account by its user handle.
func (s *MemoryStore) Delete(ctx context.Context, id []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStorageClosed
	}

	key := hex.EncodeToString(id)
	account, ok := s.byID[key]
	if !ok {
		return ErrUserNotFound
	}
	delete(s.byID, key)
	delete(s.byEmail, account.Email)
	return nil
}

// List returns all accounts.
func (s *MemoryStore) List(ctx context.Context) ([]*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStorageClosed
	}

	accounts := make([]*Account, 0, len(s.byID))
	for _, account := range s.byID {
		accounts = append(accounts, account)
	}
	return accounts, nil
}

// Count returns the number of accounts.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrStorageClosed
	}
	return len(s.byID), nil
}

// Close marks the store as closed. Subsequent operations return
// ErrStorageClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

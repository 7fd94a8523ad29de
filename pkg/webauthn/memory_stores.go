// Copyright (c) 2025 The lifeos Authors
//
// This file is part of lifeos. Licensed under the GNU Affero General
// Public License v3.0. See https://www.gnu.org/licenses/agpl-3.0.html

package webauthn

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
)

// MemoryUserStore is an in-memory implementation of UserStore.
// This is intended for development and testing only.
type MemoryUserStore struct {
	mu       sync.RWMutex
	byID     map[string]*DefaultUser
	byEmail  map[string]*DefaultUser
	idToMail map[string]string
}

// NewMemoryUserStore creates a new in-memory user store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID:     make(map[string]*DefaultUser),
		byEmail:  make(map[string]*DefaultUser),
		idToMail: make(map[string]string),
	}
}

// GetByID retrieves a user by their WebAuthn ID.
func (s *MemoryUserStore) GetByID(ctx context.Context, userID []byte) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := hex.EncodeToString(userID)
	user, ok := s.byID[key]
	if !ok {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// GetByEmail retrieves a user by their email address.
func (s *MemoryUserStore) GetByEmail(ctx context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byEmail[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// Create creates a new user with the given email and display name.
func (s *MemoryUserStore) Create(ctx context.Context, email, displayName string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[email]; ok {
		return nil, fmt.Errorf("user %s already exists", email)
	}

	user := NewDefaultUserFromEmail(email, displayName)
	key := hex.EncodeToString(user.WebAuthnID())

	s.byID[key] = user
	s.byEmail[email] = user
	s.idToMail[key] = email

	return user, nil
}

// Save persists changes to an existing user.
func (s *MemoryUserStore) Save(ctx context.Context, user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := hex.EncodeToString(user.WebAuthnID())
	defaultUser, ok := user.(*DefaultUser)
	if !ok {
		return fmt.Errorf("unsupported user type %T", user)
	}

	if oldEmail, ok := s.idToMail[key]; ok && oldEmail != defaultUser.Email() {
		delete(s.byEmail, oldEmail)
	}

	s.byID[key] = defaultUser
	s.byEmail[defaultUser.Email()] = defaultUser
	s.idToMail[key] = defaultUser.Email()

	return nil
}

// Count returns the number of users in the store.
func (s *MemoryUserStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Clear removes all users from the store.
func (s *MemoryUserStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = make(map[string]*DefaultUser)
	s.byEmail = make(map[string]*DefaultUser)
	s.idToMail = make(map[string]string)
}

// MemoryChallengeStore is an in-memory implementation of ChallengeStore.
// This is intended for development and testing only.
type MemoryChallengeStore struct {
	mu         sync.Mutex
	users      map[string]*webauthn.SessionData
	standalone map[string]*challengeEntry
	ttl        time.Duration
	now        func() time.Time
}

type challengeEntry struct {
	data      *webauthn.SessionData
	expiresAt time.Time
}

// NewMemoryChallengeStore creates a new in-memory challenge store with a
// 5 minute standalone TTL.
func NewMemoryChallengeStore() *MemoryChallengeStore {
	return NewMemoryChallengeStoreWithTTL(5 * time.Minute)
}

// NewMemoryChallengeStoreWithTTL creates a new in-memory challenge store
// with a custom standalone TTL.
func NewMemoryChallengeStoreWithTTL(ttl time.Duration) *MemoryChallengeStore {
	return &MemoryChallengeStore{
		users:      make(map[string]*webauthn.SessionData),
		standalone: make(map[string]*challengeEntry),
		ttl:        ttl,
		now:        time.Now,
	}
}

// SetClock overrides the time source. For tests.
func (s *MemoryChallengeStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// PutUser stores a pending challenge for a user, replacing any previous one.
func (s *MemoryChallengeStore) PutUser(ctx context.Context, userID []byte, data *webauthn.SessionData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[hex.EncodeToString(userID)] = data
	return nil
}

// ConsumeUser atomically retrieves and removes the pending challenge for a user.
func (s *MemoryChallengeStore) ConsumeUser(ctx context.Context, userID []byte) (*webauthn.SessionData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := hex.EncodeToString(userID)
	data, ok := s.users[key]
	if !ok {
		return nil, ErrChallengeNotFound
	}
	delete(s.users, key)
	return data, nil
}

// PutStandalone stores a challenge not bound to any user and returns its ID.
func (s *MemoryChallengeStore) PutStandalone(ctx context.Context, data *webauthn.SessionData) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	s.standalone[id] = &challengeEntry{
		data:      data,
		expiresAt: s.now().Add(s.ttl),
	}
	return id, nil
}

// ConsumeStandalone atomically retrieves and removes a standalone challenge.
// Expired entries are removed and reported as ErrChallengeExpired.
func (s *MemoryChallengeStore) ConsumeStandalone(ctx context.Context, challengeID string) (*webauthn.SessionData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.standalone[challengeID]
	if !ok {
		return nil, ErrChallengeNotFound
	}
	delete(s.standalone, challengeID)

	if s.now().After(entry.expiresAt) {
		return nil, ErrChallengeExpired
	}
	return entry.data, nil
}

// PruneExpired removes expired standalone challenges and reports how many
// were removed.
func (s *MemoryChallengeStore) PruneExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, entry := range s.standalone {
		if now.After(entry.expiresAt) {
			delete(s.standalone, id)
			removed++
		}
	}
	return removed
}

// Count returns the number of pending challenges in the store.
func (s *MemoryChallengeStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users) + len(s.standalone)
}

// Clear removes all challenges from the store.
func (s *MemoryChallengeStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = make(map[string]*webauthn.SessionData)
	s.standalone = make(map[string]*challengeEntry)
}

// MemoryCredentialStore is an in-memory implementation of CredentialStore.
// This is intended for development and testing only.
type MemoryCredentialStore struct {
	mu       sync.RWMutex
	byID     map[string]*Credential
	byUserID map[string][]*Credential
	idToUser map[string]string
}

// NewMemoryCredentialStore creates a new in-memory credential store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{
		byID:     make(map[string]*Credential),
		byUserID: make(map[string][]*Credential),
		idToUser: make(map[string]string),
	}
}

// Save stores a new credential. Credential IDs are unique across all users.
func (s *MemoryCredentialStore) Save(ctx context.Context, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	credKey := hex.EncodeToString(cred.ID)
	userKey := hex.EncodeToString(cred.UserID)

	if _, ok := s.byID[credKey]; ok {
		return ErrCredentialAlreadyExists
	}

	s.byID[credKey] = cred
	s.byUserID[userKey] = append(s.byUserID[userKey], cred)
	s.idToUser[credKey] = userKey

	return nil
}

// GetByUserID retrieves all credentials for a user.
func (s *MemoryCredentialStore) GetByUserID(ctx context.Context, userID []byte) ([]*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := hex.EncodeToString(userID)
	creds, ok := s.byUserID[key]
	if !ok {
		return []*Credential{}, nil
	}

	// Return a copy to prevent external modification
	result := make([]*Credential, len(creds))
	copy(result, creds)
	return result, nil
}

// GetByCredentialID retrieves a credential by its ID.
func (s *MemoryCredentialStore) GetByCredentialID(ctx context.Context, credID []byte) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := hex.EncodeToString(credID)
	cred, ok := s.byID[key]
	if !ok {
		return nil, ErrCredentialNotFound
	}
	return cred, nil
}

// UpdateSignCount advances the signature counter with a conditional write.
// If the stored counter is no longer oldCount the update is refused and
// ErrCredentialCloned is returned.
func (s *MemoryCredentialStore) UpdateSignCount(ctx context.Context, credID []byte, oldCount, newCount uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	credKey := hex.EncodeToString(credID)
	cred, ok := s.byID[credKey]
	if !ok {
		return ErrCredentialNotFound
	}

	if cred.Authenticator.SignCount != oldCount {
		return ErrCredentialCloned
	}

	cred.Authenticator.SignCount = newCount
	cred.LastUsedAt = time.Now().UTC()
	return nil
}

// Delete removes a credential by its ID.
func (s *MemoryCredentialStore) Delete(ctx context.Context, credID []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	credKey := hex.EncodeToString(credID)
	userKey, ok := s.idToUser[credKey]
	if !ok {
		return ErrCredentialNotFound
	}

	delete(s.byID, credKey)
	delete(s.idToUser, credKey)

	// Remove from user's credential list
	creds := s.byUserID[userKey]
	for i, c := range creds {
		if hex.EncodeToString(c.ID) == credKey {
			s.byUserID[userKey] = append(creds[:i], creds[i+1:]...)
			break
		}
	}

	return nil
}

// Count returns the total number of credentials in the store.
func (s *MemoryCredentialStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Clear removes all credentials from the store.
func (s *MemoryCredentialStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = make(map[string]*Credential)
	s.byUserID = make(map[string][]*Credential)
	s.idToUser = make(map[string]string)
}

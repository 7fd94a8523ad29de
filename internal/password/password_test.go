// Copyright (c) 2025 The lifeos Authors
//
// This file is part of lifeos. Licensed under the GNU Affero General
// Public License v3.0. See https://www.gnu.org/licenses/agpl-3.0.html

package password

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifeos/lifeos/pkg/user"
)

func TestHasherRoundTrip(t *testing.T) {
	hasher := NewHasher()

	encoded, err := hasher.Hash("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$"))

	ok, err := hasher.Verify("correct horse battery staple", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = hasher.Verify("wrong password", encoded)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasherRejectsShortPassword(t *testing.T) {
	hasher := NewHasher()
	_, err := hasher.Hash("short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func newGuardFixture(t *testing.T, pw string) (*Guard, *user.MemoryStore, *user.Account) {
	t.Helper()
	store := user.NewMemoryStore()
	hasher := NewHasher()

	account, err := user.NewAccount("alice@example.com", "Alice", user.RoleUser)
	require.NoError(t, err)
	account.PasswordHash, err = hasher.Hash(pw)
	require.NoError(t, err)
	require.NoError(t, store.Create(context.Background(), account))

	return NewGuard(store, hasher), store, account
}

func TestGuardAuthenticate(t *testing.T) {
	ctx := context.Background()
	guard, _, account := newGuardFixture(t, "hunter2hunter2")

	got, err := guard.Authenticate(ctx, "alice@example.com", "hunter2hunter2")
	require.NoError(t, err)
	assert.Equal(t, account.ID, got.ID)

	// Unknown emails and bad passwords are indistinguishable.
	_, err = guard.Authenticate(ctx, "nobody@example.com", "hunter2hunter2")
	assert.ErrorIs(t, err, ErrInvalidPassword)
	_, err = guard.Authenticate(ctx, "alice@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidPassword)
}

func TestGuardRejectsPasswordlessAccount(t *testing.T) {
	ctx := context.Background()
	store := user.NewMemoryStore()

	account, err := user.NewAccount("passkey@example.com", "Passkey Only", user.RoleUser)
	require.NoError(t, err)
	require.Empty(t, account.PasswordHash)
	require.NoError(t, store.Create(ctx, account))

	guard := NewGuard(store, NewHasher())
	_, err = guard.Authenticate(ctx, "passkey@example.com", "any password here")
	assert.ErrorIs(t, err, ErrInvalidPassword)
}

func TestGuardRejectsDisabledAccount(t *testing.T) {
	ctx := context.Background()
	guard, store, account := newGuardFixture(t, "hunter2hunter2")

	account.Active = false
	require.NoError(t, store.Update(ctx, account))

	_, err := guard.Authenticate(ctx, "alice@example.com", "hunter2hunter2")
	assert.ErrorIs(t, err, user.ErrUserDisabled)
}

func TestGuardLockout(t *testing.T) {
	ctx := context.Background()
	guard, _, _ := newGuardFixture(t, "hunter2hunter2")

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	guard.SetClock(func() time.Time { return now })

	for i := 0; i < DefaultMaxAttempts-1; i++ {
		_, err := guard.Authenticate(ctx, "alice@example.com", "wrong-password")
		assert.ErrorIs(t, err, ErrInvalidPassword)
	}

	// The fifth failure trips the lock.
	_, err := guard.Authenticate(ctx, "alice@example.com", "wrong-password")
	assert.ErrorIs(t, err, user.ErrUserLocked)

	// Even the correct password is refused while locked.
	_, err = guard.Authenticate(ctx, "alice@example.com", "hunter2hunter2")
	assert.ErrorIs(t, err, user.ErrUserLocked)

	// The lock expires after the lockout duration.
	now = base.Add(DefaultLockoutDuration + time.Second)
	got, err := guard.Authenticate(ctx, "alice@example.com", "hunter2hunter2")
	require.NoError(t, err)
	assert.Zero(t, got.FailedLoginAttempts)
	assert.True(t, got.LockedUntil.IsZero())
}

func TestGuardSuccessResetsFailureCount(t *testing.T) {
	ctx := context.Background()
	guard, store, account := newGuardFixture(t, "hunter2hunter2")

	for i := 0; i < 3; i++ {
		_, err := guard.Authenticate(ctx, "alice@example.com", "wrong-password")
		assert.ErrorIs(t, err, ErrInvalidPassword)
	}

	got, err := store.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.FailedLoginAttempts)

	_, err = guard.Authenticate(ctx, "alice@example.com", "hunter2hunter2")
	require.NoError(t, err)

	got, err = store.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Zero(t, got.FailedLoginAttempts)
}

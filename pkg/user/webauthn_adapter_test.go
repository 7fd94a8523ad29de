// Copyright (c) 2025 The lifeos Authors
//
// This file is part of lifeos. Licensed under the GNU Affero General
// Public License v3.0. See https://www.gnu.org/licenses/agpl-3.0.html

package user

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgwebauthn "github.com/lifeos/lifeos/pkg/webauthn"
)

var (
	_ pkgwebauthn.UserStore       = (*WebAuthnUserAdapter)(nil)
	_ pkgwebauthn.CredentialStore = (*WebAuthnCredentialAdapter)(nil)
	_ pkgwebauthn.User            = (*WebAuthnUser)(nil)
)

func newAdapterFixture(t *testing.T) (*MemoryStore, *WebAuthnUserAdapter, *WebAuthnCredentialAdapter, *Account) {
	t.Helper()
	store := NewMemoryStore()
	account, err := NewAccount("alice@example.com", "Alice", RoleUser)
	require.NoError(t, err)
	require.NoError(t, store.Create(context.Background(), account))
	return store, NewWebAuthnUserAdapter(store), NewWebAuthnCredentialAdapter(store), account
}

func testCredential(id byte, userID []byte) *pkgwebauthn.Credential {
	return &pkgwebauthn.Credential{
		ID:        []byte{id, 0x01, 0x02, 0x03},
		UserID:    userID,
		PublicKey: []byte{0xa5, 0x01, 0x02},
		CreatedAt: time.Now().UTC(),
	}
}

func TestUserAdapterLookups(t *testing.T) {
	ctx := context.Background()
	_, users, _, account := newAdapterFixture(t)

	u, err := users.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, account.ID, u.WebAuthnID())
	assert.Equal(t, "alice@example.com", u.WebAuthnName())
	assert.Equal(t, "Alice", u.WebAuthnDisplayName())

	u, err = users.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", u.Email())

	_, err = users.GetByID(ctx, []byte("no-such-handle!!"))
	assert.ErrorIs(t, err, pkgwebauthn.ErrUserNotFound)
	_, err = users.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, pkgwebauthn.ErrUserNotFound)
}

func TestUserAdapterSavePersistsCeremonyState(t *testing.T) {
	ctx := context.Background()
	store, users, _, account := newAdapterFixture(t)

	u, err := users.GetByID(ctx, account.ID)
	require.NoError(t, err)

	verifiedAt := time.Now().UTC()
	u.MarkBiometricVerified(verifiedAt)
	require.NoError(t, users.Save(ctx, u))

	got, err := store.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, got.BiometricEnabled)
	assert.Equal(t, verifiedAt, got.LastBiometricVerification)
}

func TestCredentialAdapterSave(t *testing.T) {
	ctx := context.Background()
	store, _, creds, account := newAdapterFixture(t)

	cred := testCredential(0x01, account.ID)
	require.NoError(t, creds.Save(ctx, cred))

	got, err := store.GetByID(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, got.Credentials, 1)

	list, err := creds.GetByUserID(ctx, account.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	found, err := creds.GetByCredentialID(ctx, cred.ID)
	require.NoError(t, err)
	assert.Equal(t, cred.ID, found.ID)
}

func TestCredentialAdapterGlobalUniqueness(t *testing.T) {
	ctx := context.Background()
	store, _, creds, alice := newAdapterFixture(t)

	bob, err := NewAccount("bob@example.com", "Bob", RoleUser)
	require.NoError(t, err)
	require.NoError(t, store.Create(ctx, bob))

	cred := testCredential(0x01, alice.ID)
	require.NoError(t, creds.Save(ctx, cred))

	// Same credential ID under a different account is rejected.
	duplicate := testCredential(0x01, bob.ID)
	assert.ErrorIs(t, creds.Save(ctx, duplicate), pkgwebauthn.ErrCredentialAlreadyExists)

	bobCreds, err := creds.GetByUserID(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, bobCreds)
}

func TestCredentialAdapterUpdateSignCount(t *testing.T) {
	ctx := context.Background()
	_, _, creds, account := newAdapterFixture(t)

	cred := testCredential(0x01, account.ID)
	cred.Authenticator.SignCount = 5
	require.NoError(t, creds.Save(ctx, cred))

	t.Run("matching old count advances", func(t *testing.T) {
		require.NoError(t, creds.UpdateSignCount(ctx, cred.ID, 5, 6))

		got, err := creds.GetByCredentialID(ctx, cred.ID)
		require.NoError(t, err)
		assert.Equal(t, uint32(6), got.Authenticator.SignCount)
		assert.False(t, got.LastUsedAt.IsZero())
	})

	t.Run("stale old count is rejected", func(t *testing.T) {
		err := creds.UpdateSignCount(ctx, cred.ID, 5, 7)
		assert.ErrorIs(t, err, pkgwebauthn.ErrCredentialCloned)

		got, err := creds.GetByCredentialID(ctx, cred.ID)
		require.NoError(t, err)
		assert.Equal(t, uint32(6), got.Authenticator.SignCount)
	})

	t.Run("unknown credential", func(t *testing.T) {
		err := creds.UpdateSignCount(ctx, []byte{0xff}, 0, 1)
		assert.ErrorIs(t, err, pkgwebauthn.ErrCredentialNotFound)
	})
}

func TestCredentialAdapterDelete(t *testing.T) {
	ctx := context.Background()
	store, _, creds, account := newAdapterFixture(t)

	account.BiometricEnabled = true
	first := testCredential(0x01, account.ID)
	second := testCredential(0x02, account.ID)
	require.NoError(t, creds.Save(ctx, first))
	require.NoError(t, creds.Save(ctx, second))

	require.NoError(t, creds.Delete(ctx, first.ID))
	got, err := store.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Len(t, got.Credentials, 1)
	assert.True(t, got.BiometricEnabled)

	// Removing the last credential disables biometric login.
	require.NoError(t, creds.Delete(ctx, second.ID))
	got, err = store.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Credentials)
	assert.False(t, got.BiometricEnabled)

	assert.ErrorIs(t, creds.Delete(ctx, first.ID), pkgwebauthn.ErrCredentialNotFound)
}

func TestWebAuthnUserAddCredentialIdempotent(t *testing.T) {
	account, err := NewAccount("alice@example.com", "Alice", RoleUser)
	require.NoError(t, err)
	u := NewWebAuthnUser(account)

	cred := testCredential(0x01, account.ID)
	u.AddCredential(cred)
	u.AddCredential(cred)
	assert.Len(t, account.Credentials, 1)
}

func TestWebAuthnUserUpdateCredential(t *testing.T) {
	account, err := NewAccount("alice@example.com", "Alice", RoleUser)
	require.NoError(t, err)
	u := NewWebAuthnUser(account)

	cred := testCredential(0x01, account.ID)
	u.AddCredential(cred)

	updated := testCredential(0x01, account.ID)
	updated.Authenticator.SignCount = 9
	u.UpdateCredential(updated)

	require.Len(t, account.Credentials, 1)
	assert.Equal(t, uint32(9), account.Credentials[0].Authenticator.SignCount)
}

func TestWebAuthnUserDisplayNameFallsBackToEmail(t *testing.T) {
	account, err := NewAccount("alice@example.com", "", RoleUser)
	require.NoError(t, err)
	u := NewWebAuthnUser(account)
	assert.Equal(t, "alice@example.com", u.WebAuthnDisplayName())
}

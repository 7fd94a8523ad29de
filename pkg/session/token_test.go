// Copyright (c) 2025 The lifeos Authors
//
// This file is part of lifeos. Licensed under the GNU Affero General
// Public License v3.0. See https://www.gnu.org/licenses/agpl-3.0.html

package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifeos/lifeos/pkg/webauthn"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	manager, err := NewManager(&ManagerConfig{
		Secret: []byte("test-signing-secret-0123456789ab"),
	})
	require.NoError(t, err)
	return manager
}

func TestNewManager(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		_, err := NewManager(nil)
		assert.Error(t, err)
	})

	t.Run("missing secret", func(t *testing.T) {
		_, err := NewManager(&ManagerConfig{})
		assert.Error(t, err)
	})

	t.Run("defaults", func(t *testing.T) {
		manager := newTestManager(t)
		assert.Equal(t, DefaultTokenTTL, manager.TokenTTL())
	})
}

func TestIssueAndVerify(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t)
	u := webauthn.NewDefaultUserFromEmail("alice@example.com", "Alice")

	token, err := manager.Issue(ctx, u)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := manager.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, "Alice", claims.Name)
	assert.Equal(t, DefaultIssuer, claims.Issuer)
	assert.NotEmpty(t, claims.ID)

	userID, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, u.WebAuthnID(), userID)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t)
	u := webauthn.NewDefaultUserFromEmail("alice@example.com", "Alice")

	token, err := manager.Issue(ctx, u)
	require.NoError(t, err)

	other, err := NewManager(&ManagerConfig{
		Secret: []byte("a-completely-different-secret-00"),
	})
	require.NoError(t, err)

	_, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	manager := newTestManager(t)
	_, err := manager.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	manager.SetClock(func() time.Time { return now })

	u := webauthn.NewDefaultUserFromEmail("alice@example.com", "Alice")
	token, err := manager.Issue(ctx, u)
	require.NoError(t, err)

	now = base.Add(DefaultTokenTTL - time.Second)
	_, err = manager.Verify(token)
	require.NoError(t, err)

	now = base.Add(DefaultTokenTTL + time.Minute)
	_, err = manager.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t)
	u := webauthn.NewDefaultUserFromEmail("alice@example.com", "Alice")

	token, err := manager.Issue(ctx, u)
	require.NoError(t, err)

	require.NoError(t, manager.Revoke(token))

	_, err = manager.Verify(token)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	// Revoking twice is a no-op.
	assert.NoError(t, manager.Revoke(token))
}

func TestRevokeRejectsInvalidToken(t *testing.T) {
	manager := newTestManager(t)
	assert.ErrorIs(t, manager.Revoke("not.a.token"), ErrInvalidToken)
}

func TestRevocationListPrunes(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	manager.SetClock(func() time.Time { return now })

	u := webauthn.NewDefaultUserFromEmail("alice@example.com", "Alice")
	first, err := manager.Issue(ctx, u)
	require.NoError(t, err)
	require.NoError(t, manager.Revoke(first))

	// Once the first token has expired on its own, revoking another
	// token sweeps its entry.
	now = base.Add(DefaultTokenTTL + time.Minute)
	second, err := manager.Issue(ctx, u)
	require.NoError(t, err)
	require.NoError(t, manager.Revoke(second))

	manager.mu.Lock()
	defer manager.mu.Unlock()
	assert.Len(t, manager.revoked, 1)
}

// Copyright (c) 2025 The lifeos Authors
//
// This file is part of lifeos. Licensed under the GNU Affero General
// Public License v3.0. See https://www.gnu.org/licenses/agpl-3.0.html

package webauthn

import (
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialConversion(t *testing.T) {
	wc := &webauthn.Credential{
		ID:              []byte("cred-id"),
		PublicKey:       []byte("public-key"),
		AttestationType: "none",
		Transport:       []protocol.AuthenticatorTransport{protocol.Internal},
		Flags: webauthn.CredentialFlags{
			UserPresent:  true,
			UserVerified: true,
		},
		Authenticator: webauthn.Authenticator{
			AAGUID:    []byte("aaguid-16-bytes!"),
			SignCount: 42,
		},
	}

	cred := FromWebAuthnCredential([]byte("user-id"), wc)
	require.NotNil(t, cred)
	assert.Equal(t, []byte("user-id"), cred.UserID)
	assert.Equal(t, uint32(42), cred.Authenticator.SignCount)
	assert.True(t, cred.Flags.UserVerified)
	assert.False(t, cred.CreatedAt.IsZero())

	back := cred.ToWebAuthn()
	assert.Equal(t, wc.ID, back.ID)
	assert.Equal(t, wc.PublicKey, back.PublicKey)
	assert.Equal(t, wc.Transport, back.Transport)
	assert.Equal(t, wc.Flags, back.Flags)
	assert.Equal(t, wc.Authenticator.SignCount, back.Authenticator.SignCount)
}

func TestCredentialDescriptor(t *testing.T) {
	cred := &Credential{
		ID:              []byte("cred-id"),
		Transport:       []protocol.AuthenticatorTransport{protocol.Internal},
		AttestationType: "none",
	}

	desc := cred.Descriptor()
	assert.Equal(t, protocol.PublicKeyCredentialType, desc.Type)
	assert.Equal(t, []byte("cred-id"), []byte(desc.CredentialID))
	assert.Equal(t, cred.Transport, desc.Transport)
}

func TestGenerateUserID(t *testing.T) {
	a := GenerateUserID()
	b := GenerateUserID()

	assert.Len(t, a, 16)
	assert.NotEqual(t, a, b)
}

func TestDefaultUser(t *testing.T) {
	user := NewDefaultUserFromEmail("alice@example.com", "Alice")

	assert.Equal(t, "alice@example.com", user.WebAuthnName())
	assert.Equal(t, "Alice", user.WebAuthnDisplayName())
	assert.Equal(t, "Alice", user.DisplayName())
	assert.NotEmpty(t, user.WebAuthnID())
	assert.False(t, user.BiometricEnabled())
	assert.Empty(t, user.WebAuthnCredentials())

	t.Run("display name falls back to email", func(t *testing.T) {
		anon := NewDefaultUserFromEmail("bob@example.com", "")
		assert.Equal(t, "bob@example.com", anon.WebAuthnDisplayName())
	})

	t.Run("biometric verification", func(t *testing.T) {
		at := time.Now()
		user.MarkBiometricVerified(at)
		assert.True(t, user.BiometricEnabled())
		assert.Equal(t, at, user.LastBiometricVerification())
	})

	t.Run("credentials", func(t *testing.T) {
		cred := &Credential{ID: []byte("cred-1"), UserID: user.WebAuthnID()}
		user.AddCredential(cred)
		assert.Len(t, user.WebAuthnCredentials(), 1)

		updated := &Credential{ID: []byte("cred-1"), UserID: user.WebAuthnID()}
		updated.Authenticator.SignCount = 5
		user.UpdateCredential(updated)
		require.Len(t, user.Credentials(), 1)
		assert.Equal(t, uint32(5), user.Credentials()[0].Authenticator.SignCount)

		// Updating an unknown credential is a no-op.
		user.UpdateCredential(&Credential{ID: []byte("other")})
		assert.Len(t, user.Credentials(), 1)
	})
}

// Copyright (c) 2025 The lifeos Authors
//
// This file is part of lifeos. Licensed under the GNU Affero General
// Public License v3.0. See https://www.gnu.org/licenses/agpl-3.0.html

package webauthn

import (
	"context"

	"github.com/go-webauthn/webauthn/webauthn"
)

// UserStore is the interface applications implement for user persistence.
// This interface is intentionally minimal - applications bring their own user model.
type UserStore interface {
	// GetByID retrieves a user by their WebAuthn ID (user handle).
	// Returns ErrUserNotFound if the user does not exist.
	GetByID(ctx context.Context, userID []byte) (User, error)

	// GetByEmail retrieves a user by their email address.
	// Returns ErrUserNotFound if the user does not exist.
	GetByEmail(ctx context.Context, email string) (User, error)

	// Save persists changes to an existing user (biometric flags, etc.).
	Save(ctx context.Context, user User) error
}

// ChallengeStore manages pending ceremony challenges. A user holds at most
// one pending challenge at a time; standalone challenges back discoverable
// authentication where no account is known up front.
type ChallengeStore interface {
	// PutUser stores a pending challenge for a user, replacing any
	// previous one. Issuing a new challenge invalidates the old.
	PutUser(ctx context.Context, userID []byte, data *webauthn.SessionData) error

	// ConsumeUser atomically retrieves and removes the pending challenge
	// for a user. Returns ErrChallengeNotFound if none exists. Concurrent
	// consumers race; exactly one wins.
	ConsumeUser(ctx context.Context, userID []byte) (*webauthn.SessionData, error)

	// PutStandalone stores a challenge not bound to any user and returns
	// its generated ID. The challenge expires after the store's TTL.
	PutStandalone(ctx context.Context, data *webauthn.SessionData) (string, error)

	// ConsumeStandalone atomically retrieves and removes a standalone
	// challenge by ID. Returns ErrChallengeNotFound if absent or already
	// consumed, ErrChallengeExpired if present but past its TTL. The
	// record is removed in either case.
	ConsumeStandalone(ctx context.Context, challengeID string) (*webauthn.SessionData, error)
}

// CredentialStore manages WebAuthn credential persistence.
// Credentials are the public key records stored by the Relying Party.
// Credential IDs are unique across all users.
type CredentialStore interface {
	// Save stores a new credential. Returns ErrCredentialAlreadyExists if
	// the credential ID is already registered, to any user.
	Save(ctx context.Context, cred *Credential) error

	// GetByUserID retrieves all credentials for a user.
	// Returns an empty slice if the user has no credentials.
	GetByUserID(ctx context.Context, userID []byte) ([]*Credential, error)

	// GetByCredentialID retrieves a credential by its ID.
	// Returns ErrCredentialNotFound if the credential does not exist.
	GetByCredentialID(ctx context.Context, credID []byte) (*Credential, error)

	// UpdateSignCount advances the signature counter from oldCount to
	// newCount. The write is conditional on the stored value still being
	// oldCount; if it moved, ErrCredentialCloned is returned and nothing
	// is written. The counter never regresses.
	UpdateSignCount(ctx context.Context, credID []byte, oldCount, newCount uint32) error

	// Delete removes a credential by its ID.
	// Returns ErrCredentialNotFound if the credential does not exist.
	Delete(ctx context.Context, credID []byte) error
}

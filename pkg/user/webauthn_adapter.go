// Copyright (c) 2025 The lifeos Authors
//
// This file is part of lifeos. Licensed under the GNU Affero General
// Public License v3.0. See https://www.gnu.org/licenses/agpl-3.0.html

package user

import (
	"context"
	"fmt"
	"sync"
	"time"

	wa "github.com/go-webauthn/webauthn/webauthn"

	pkgwebauthn "github.com/lifeos/lifeos/pkg/webauthn"
)

// WebAuthnUserAdapter implements pkgwebauthn.UserStore on top of the
// account store.
type WebAuthnUserAdapter struct {
	store Store
}

// NewWebAuthnUserAdapter creates a user adapter over the given store.
func NewWebAuthnUserAdapter(store Store) *WebAuthnUserAdapter {
	return &WebAuthnUserAdapter{store: store}
}

// GetByID retrieves a user by their WebAuthn user handle.
func (a *WebAuthnUserAdapter) GetByID(ctx context.Context, userID []byte) (pkgwebauthn.User, error) {
	account, err := a.store.GetByID(ctx, userID)
	if err != nil {
		return nil, mapUserError(err)
	}
	return &WebAuthnUser{account: account}, nil
}

// GetByEmail retrieves a user by email.
func (a *WebAuthnUserAdapter) GetByEmail(ctx context.Context, email string) (pkgwebauthn.User, error) {
	account, err := a.store.GetByEmail(ctx, email)
	if err != nil {
		return nil, mapUserError(err)
	}
	return &WebAuthnUser{account: account}, nil
}

// Save persists changes made to a user during a ceremony.
func (a *WebAuthnUserAdapter) Save(ctx context.Context, u pkgwebauthn.User) error {
	wu, ok := u.(*WebAuthnUser)
	if !ok {
		return fmt.Errorf("unsupported user type %T", u)
	}
	return a.store.Update(ctx, wu.account)
}

// WebAuthnCredentialAdapter implements pkgwebauthn.CredentialStore on
// top of the account store. Credentials live on the account records they
// belong to.
type WebAuthnCredentialAdapter struct {
	store Store

	// mu serializes credential writes so the compare-and-swap in
	// UpdateSignCount observes a consistent counter.
	mu sync.Mutex
}

// NewWebAuthnCredentialAdapter creates a credential adapter over the
// given store.
func NewWebAuthnCredentialAdapter(store Store) *WebAuthnCredentialAdapter {
	return &WebAuthnCredentialAdapter{store: store}
}

// Save persists a newly registered credential. Credential IDs are unique
// across all accounts.
func (a *WebAuthnCredentialAdapter) Save(ctx context.Context, cred *pkgwebauthn.Credential) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, _, err := a.findCredential(ctx, cred.ID); err == nil {
		return pkgwebauthn.ErrCredentialAlreadyExists
	}

	account, err := a.store.GetByID(ctx, cred.UserID)
	if err != nil {
		return mapUserError(err)
	}
	if account.CredentialByID(cred.ID) == nil {
		account.Credentials = append(account.Credentials, cred)
	}
	return a.store.Update(ctx, account)
}

// GetByUserID returns all credentials registered to a user.
func (a *WebAuthnCredentialAdapter) GetByUserID(ctx context.Context, userID []byte) ([]*pkgwebauthn.Credential, error) {
	account, err := a.store.GetByID(ctx, userID)
	if err != nil {
		return nil, mapUserError(err)
	}
	creds := make([]*pkgwebauthn.Credential, len(account.Credentials))
	copy(creds, account.Credentials)
	return creds, nil
}

// GetByCredentialID looks up a credential by its ID across all accounts.
func (a *WebAuthnCredentialAdapter) GetByCredentialID(ctx context.Context, credID []byte) (*pkgwebauthn.Credential, error) {
	_, cred, err := a.findCredential(ctx, credID)
	if err != nil {
		return nil, err
	}
	return cred, nil
}

// UpdateSignCount advances a credential's signature counter, but only if
// the stored counter still equals oldCount. A mismatch means another
// assertion got there first and is treated as a possible clone.
func (a *WebAuthnCredentialAdapter) UpdateSignCount(ctx context.Context, credID []byte, oldCount, newCount uint32) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	account, cred, err := a.findCredential(ctx, credID)
	if err != nil {
		return err
	}
	if cred.Authenticator.SignCount != oldCount {
		return pkgwebauthn.ErrCredentialCloned
	}
	cred.Authenticator.SignCount = newCount
	cred.LastUsedAt = time.Now().UTC()
	return a.store.Update(ctx, account)
}

// Delete removes a credential. When the last credential is removed,
// biometric login is disabled for the account.
func (a *WebAuthnCredentialAdapter) Delete(ctx context.Context, credID []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	account, _, err := a.findCredential(ctx, credID)
	if err != nil {
		return err
	}
	kept := account.Credentials[:0]
	for _, c := range account.Credentials {
		if string(c.ID) != string(credID) {
			kept = append(kept, c)
		}
	}
	account.Credentials = kept
	if len(account.Credentials) == 0 {
		account.BiometricEnabled = false
	}
	return a.store.Update(ctx, account)
}

// findCredential scans accounts for the credential with the given ID.
func (a *WebAuthnCredentialAdapter) findCredential(ctx context.Context, credID []byte) (*Account, *pkgwebauthn.Credential, error) {
	accounts, err := a.store.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	for _, account := range accounts {
		if cred := account.CredentialByID(credID); cred != nil {
			return account, cred, nil
		}
	}
	return nil, nil, pkgwebauthn.ErrCredentialNotFound
}

func mapUserError(err error) error {
	if err == ErrUserNotFound {
		return pkgwebauthn.ErrUserNotFound
	}
	return err
}

// WebAuthnUser adapts an Account to the ceremony service's User
// interface. Mutations are applied to the underlying account and become
// durable when the service saves the user.
type WebAuthnUser struct {
	account *Account
}

// NewWebAuthnUser wraps an account for use in WebAuthn ceremonies.
func NewWebAuthnUser(account *Account) *WebAuthnUser {
	return &WebAuthnUser{account: account}
}

// Account returns the wrapped account.
func (u *WebAuthnUser) Account() *Account {
	return u.account
}

// WebAuthnID returns the account's user handle.
func (u *WebAuthnUser) WebAuthnID() []byte {
	return u.account.ID
}

// WebAuthnName returns the account's email.
func (u *WebAuthnUser) WebAuthnName() string {
	return u.account.Email
}

// WebAuthnDisplayName returns the name shown in authenticator prompts.
func (u *WebAuthnUser) WebAuthnDisplayName() string {
	if u.account.DisplayName == "" {
		return u.account.Email
	}
	return u.account.DisplayName
}

// WebAuthnCredentials returns the account's credentials in the format
// expected by the go-webauthn library.
func (u *WebAuthnUser) WebAuthnCredentials() []wa.Credential {
	creds := make([]wa.Credential, len(u.account.Credentials))
	for i, c := range u.account.Credentials {
		creds[i] = c.ToWebAuthn()
	}
	return creds
}

// Email returns the account's email.
func (u *WebAuthnUser) Email() string {
	return u.account.Email
}

// DisplayName returns the account's display name.
func (u *WebAuthnUser) DisplayName() string {
	return u.account.DisplayName
}

// BiometricEnabled reports whether biometric login is enabled.
func (u *WebAuthnUser) BiometricEnabled() bool {
	return u.account.BiometricEnabled
}

// MarkBiometricVerified enables biometric login and records the ceremony
// time on the account.
func (u *WebAuthnUser) MarkBiometricVerified(at time.Time) {
	u.account.BiometricEnabled = true
	u.account.LastBiometricVerification = at
}

// AddCredential attaches a credential to the account. Adding a credential
// that is already present is a no-op.
func (u *WebAuthnUser) AddCredential(cred *pkgwebauthn.Credential) {
	if u.account.CredentialByID(cred.ID) != nil {
		return
	}
	u.account.Credentials = append(u.account.Credentials, cred)
}

// UpdateCredential replaces the stored credential with the same ID.
func (u *WebAuthnUser) UpdateCredential(cred *pkgwebauthn.Credential) {
	for i, c := range u.account.Credentials {
		if string(c.ID) == string(cred.ID) {
			u.account.Credentials[i] = cred
			return
		}
	}
}

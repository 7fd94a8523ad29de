// Copyright (c) 2025 The lifeos Authors
//
// This file is part of lifeos. Licensed under the GNU Affero General
// Public License v3.0. See https://www.gnu.org/licenses/agpl-3.0.html

package user

import (
	"strings"
	"time"

	"github.com/lifeos/lifeos/pkg/webauthn"
)

// Role represents a user's role in the system.
type Role string

const (
	// RoleAdmin has full access to administrative operations.
	RoleAdmin Role = "admin"

	// RoleUser has access to their own account and data.
	RoleUser Role = "user"
)

// Valid returns true if the role is a recognized value.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser:
		return true
	}
	return false
}

// Account represents a registered user.
type Account struct {
	// ID is the stable 16-byte user identifier, also used as the WebAuthn
	// user handle.
	ID []byte `json:"id"`

	// Email is the unique, lowercase login identifier.
	Email string `json:"email"`

	// DisplayName is the human-friendly name shown in UI and passkey
	// prompts.
	DisplayName string `json:"display_name"`

	// PasswordHash is the encoded argon2 hash of the account password.
	PasswordHash string `json:"password_hash,omitempty"`

	// Role determines the account's permissions.
	Role Role `json:"role"`

	// Active indicates whether the account may sign in.
	Active bool `json:"active"`

	// BiometricEnabled is true once at least one WebAuthn credential has
	// been registered.
	BiometricEnabled bool `json:"biometric_enabled"`

	// LastBiometricVerification records the most recent successful
	// biometric ceremony.
	LastBiometricVerification time.Time `json:"last_biometric_verification,omitempty"`

	// FailedLoginAttempts counts consecutive failed password logins.
	FailedLoginAttempts int `json:"failed_login_attempts,omitempty"`

	// LockedUntil is set when the account is temporarily locked after too
	// many failed logins.
	LockedUntil time.Time `json:"locked_until,omitempty"`

	// Credentials holds the account's registered WebAuthn credentials.
	Credentials []*webauthn.Credential `json:"credentials,omitempty"`

	// CreatedAt is when the account was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the account was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewAccount creates an account with a fresh user handle and sensible
// defaults. The email is normalized to lowercase.
func NewAccount(email, displayName string, role Role) (*Account, error) {
	email = NormalizeEmail(email)
	if !ValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	now := time.Now().UTC()
	return &Account{
		ID:          webauthn.GenerateUserID(),
		Email:       email,
		DisplayName: displayName,
		Role:        role,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// IsAdmin returns true if the account has the admin role.
func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// IsLocked reports whether the account is locked at the given time.
func (a *Account) IsLocked(now time.Time) bool {
	return !a.LockedUntil.IsZero() && now.Before(a.LockedUntil)
}

// CredentialByID returns the credential with the given ID, or nil.
func (a *Account) CredentialByID(credentialID []byte) *webauthn.Credential {
	for _, cred := range a.Credentials {
		if string(cred.ID) == string(credentialID) {
			return cred
		}
	}
	return nil
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail performs a minimal structural check on an email address.
func ValidEmail(email string) bool {
	at := strings.Index(email, "@")
	if at < 1 || at == len(email)-1 {
		return false
	}
	return !strings.ContainsAny(email, " \t\r\n")
}

// Copyright (c) 2025 The lifeos Authors
//
// This file is part of lifeos. Licensed under the GNU Affero General
// Public License v3.0. See https://www.gnu.org/licenses/agpl-3.0.html

package webauthn

import (
	"errors"
	"fmt"
)

// Sentinel errors for ceremony operations.
var (
	// ErrUserNotFound is returned when a user cannot be found.
	ErrUserNotFound = errors.New("user not found")

	// ErrNoCredentials is returned when an authentication ceremony is
	// requested for an account with biometric login disabled or with no
	// registered credentials. No challenge is issued in that case.
	ErrNoCredentials = errors.New("no credentials registered")

	// ErrChallengeNotFound is returned when no pending challenge exists for
	// the ceremony, including when it was already consumed by an earlier
	// verification attempt.
	ErrChallengeNotFound = errors.New("challenge not found")

	// ErrChallengeExpired is returned when a standalone challenge is
	// consumed after its expiry. The record is removed regardless.
	ErrChallengeExpired = errors.New("challenge expired")

	// ErrCredentialNotFound is returned when a credential cannot be found.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrCredentialAlreadyExists is returned when a registration response
	// carries a credential ID that is already registered, to this or any
	// other user.
	ErrCredentialAlreadyExists = errors.New("credential already registered")

	// ErrVerificationFailed is returned when an attestation or assertion
	// fails verification against the expected challenge, origin, rpID or
	// public key.
	ErrVerificationFailed = errors.New("verification failed")

	// ErrCredentialCloned is returned when the signature counter reported
	// by an authenticator did not advance past the stored one. Callers
	// must present it identically to ErrVerificationFailed; the
	// distinction exists for audit only.
	ErrCredentialCloned = errors.New("possible credential clone detected")

	// ErrNotConfigured is returned when the service is not properly configured.
	ErrNotConfigured = errors.New("webauthn service not configured")
)

// CeremonyError wraps an error with the operation that failed.
type CeremonyError struct {
	Op  string // Operation that failed
	Err error  // Underlying error
}

// Error returns the error message.
func (e *CeremonyError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *CeremonyError) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches.
func (e *CeremonyError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewError creates a new CeremonyError with the given operation and error.
func NewError(op string, err error) error {
	return &CeremonyError{
		Op:  op,
		Err: err,
	}
}

// WrapError wraps an error with an operation name if it's not nil.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(op, err)
}

// IsUserNotFound returns true if the error indicates a user was not found.
func IsUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

// IsCredentialNotFound returns true if the error indicates a credential was not found.
func IsCredentialNotFound(err error) bool {
	return errors.Is(err, ErrCredentialNotFound)
}

// IsChallengeNotFound returns true if the error indicates a missing or
// already-consumed challenge.
func IsChallengeNotFound(err error) bool {
	return errors.Is(err, ErrChallengeNotFound)
}

// IsChallengeExpired returns true if the error indicates an expired challenge.
func IsChallengeExpired(err error) bool {
	return errors.Is(err, ErrChallengeExpired)
}

// IsVerificationFailed returns true if the error indicates verification
// failed, including suspected credential cloning.
func IsVerificationFailed(err error) bool {
	return errors.Is(err, ErrVerificationFailed) || errors.Is(err, ErrCredentialCloned)
}

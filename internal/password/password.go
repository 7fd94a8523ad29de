// Copyright (c) 2025 The lifeos Authors
//
// This file is part of lifeos. Licensed under the GNU Affero General
// Public License v3.0. See https://www.gnu.org/licenses/agpl-3.0.html

// Package password provides argon2id password hashing and a login guard
// that locks accounts after repeated failures.
package password

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matthewhartstonge/argon2"

	"github.com/lifeos/lifeos/pkg/user"
)

const (
	// MinLength is the minimum accepted password length.
	MinLength = 8

	// DefaultMaxAttempts is the number of consecutive failed logins
	// before an account is locked.
	DefaultMaxAttempts = 5

	// DefaultLockoutDuration is how long an account stays locked.
	DefaultLockoutDuration = 15 * time.Minute
)

var (
	// ErrInvalidPassword is returned when a password does not match. The
	// message is deliberately indistinguishable from an unknown email.
	ErrInvalidPassword = errors.New("invalid email or password")

	// ErrPasswordTooShort is returned when a new password is below the
	// minimum length.
	ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinLength)
)

// Hasher hashes and verifies passwords using argon2id.
type Hasher struct {
	config argon2.Config
}

// NewHasher creates a hasher with the library's recommended defaults.
func NewHasher() *Hasher {
	return &Hasher{config: argon2.DefaultConfig()}
}

// Hash returns the encoded argon2id hash of the password.
func (h *Hasher) Hash(password string) (string, error) {
	if len(password) < MinLength {
		return "", ErrPasswordTooShort
	}
	encoded, err := h.config.HashEncoded([]byte(password))
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(encoded), nil
}

// Verify reports whether the password matches the encoded hash.
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	ok, err := argon2.VerifyEncoded([]byte(password), []byte(encoded))
	if err != nil {
		return false, fmt.Errorf("verify password: %w", err)
	}
	return ok, nil
}

// Guard authenticates accounts by password and enforces a lockout after
// repeated failures.
type Guard struct {
	store       user.Store
	hasher      *Hasher
	maxAttempts int
	lockout     time.Duration
	now         func() time.Time
}

// NewGuard creates a guard over the given account store.
func NewGuard(store user.Store, hasher *Hasher) *Guard {
	return &Guard{
		store:       store,
		hasher:      hasher,
		maxAttempts: DefaultMaxAttempts,
		lockout:     DefaultLockoutDuration,
		now:         time.Now,
	}
}

// SetClock overrides the guard's time source. Intended for tests.
func (g *Guard) SetClock(now func() time.Time) {
	g.now = now
}

// Authenticate verifies the password for the account with the given
// email. Failed attempts are counted; once the limit is reached the
// account is locked for the lockout duration. A successful login resets
// the counter.
func (g *Guard) Authenticate(ctx context.Context, email, pw string) (*user.Account, error) {
	account, err := g.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, ErrInvalidPassword
		}
		return nil, err
	}

	now := g.now().UTC()
	if !account.Active {
		return nil, user.ErrUserDisabled
	}
	if account.IsLocked(now) {
		return nil, user.ErrUserLocked
	}

	// Accounts without a password hash are passwordless-only and can
	// never authenticate this way.
	ok := false
	if account.PasswordHash != "" {
		ok, err = g.hasher.Verify(pw, account.PasswordHash)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		account.FailedLoginAttempts++
		if account.FailedLoginAttempts >= g.maxAttempts {
			account.LockedUntil = now.Add(g.lockout)
			account.FailedLoginAttempts = 0
		}
		if updateErr := g.store.Update(ctx, account); updateErr != nil {
			return nil, updateErr
		}
		if account.IsLocked(now) {
			return nil, user.ErrUserLocked
		}
		return nil, ErrInvalidPassword
	}

	if account.FailedLoginAttempts != 0 || !account.LockedUntil.IsZero() {
		account.FailedLoginAttempts = 0
		account.LockedUntil = time.Time{}
		if err := g.store.Update(ctx, account); err != nil {
			return nil, err
		}
	}
	return account, nil
}

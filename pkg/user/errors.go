// Copyright (c) 2025 The lifeos Authors
//
// This file is part of lifeos. Licensed under the GNU Affero General
// Public License v3.0. See https://www.gnu.org/licenses/agpl-3.0.html

package user

import "errors"

var (
	// ErrUserNotFound is returned when a user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists is returned when creating a user with an email
	// that is already registered.
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrUserDisabled is returned when an operation targets a deactivated
	// account.
	ErrUserDisabled = errors.New("user account is disabled")

	// ErrUserLocked is returned when an account is temporarily locked after
	// repeated failed login attempts.
	ErrUserLocked = errors.New("user account is locked")

	// ErrInvalidEmail is returned when an email address fails validation.
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrInvalidRole is returned when a role value is not recognized.
	ErrInvalidRole = errors.New("invalid role")

	// ErrStorageClosed is returned when an operation is attempted on a
	// closed store.
	ErrStorageClosed = errors.New("user storage is closed")
)

// Copyright (c) 2025 The lifeos Authors
//
// This file is part of lifeos. Licensed under the GNU Affero General
// Public License v3.0. See https://www.gnu.org/licenses/agpl-3.0.html

package session

import (
	"bytes"
	"errors"
	"sync"
	"time"
)

// DefaultInactivityWindow is how long a session may sit idle before it
// locks.
const DefaultInactivityWindow = 15 * time.Minute

var (
	// ErrNotAuthenticated is returned when an operation requires an
	// authenticated session.
	ErrNotAuthenticated = errors.New("session is not authenticated")

	// ErrSessionLocked is returned when the session has locked due to
	// inactivity and must be re-verified.
	ErrSessionLocked = errors.New("session is locked")

	// ErrIdentityMismatch is returned when an unlock attempt presents a
	// different identity than the one that locked.
	ErrIdentityMismatch = errors.New("unlock identity does not match session owner")
)

// Status describes the state of an interactive session.
type Status int

const (
	// StatusUnauthenticated means no identity is bound to the session.
	StatusUnauthenticated Status = iota

	// StatusAuthenticated means the session is active.
	StatusAuthenticated

	// StatusLocked means the inactivity window elapsed and the owner must
	// re-verify before continuing.
	StatusLocked
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusAuthenticated:
		return "authenticated"
	case StatusLocked:
		return "locked"
	default:
		return "unauthenticated"
	}
}

// Lifecycle tracks an interactive session's state. A session locks after
// the inactivity window elapses; only the same identity can unlock it.
// Lifecycle is safe for concurrent use.
type Lifecycle struct {
	mu           sync.Mutex
	status       Status
	userID       []byte
	lastActivity time.Time
	window       time.Duration
	now          func() time.Time
}

// NewLifecycle creates an unauthenticated session with the default
// inactivity window.
func NewLifecycle() *Lifecycle {
	return NewLifecycleWithWindow(DefaultInactivityWindow)
}

// NewLifecycleWithWindow creates an unauthenticated session with a
// custom inactivity window.
func NewLifecycleWithWindow(window time.Duration) *Lifecycle {
	if window <= 0 {
		window = DefaultInactivityWindow
	}
	return &Lifecycle{
		window: window,
		now:    time.Now,
	}
}

// SetClock overrides the session's time source. Intended for tests.
func (l *Lifecycle) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Authenticate binds an identity to the session and starts the activity
// window.
func (l *Lifecycle) Authenticate(userID []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status = StatusAuthenticated
	l.userID = append([]byte(nil), userID...)
	l.lastActivity = l.now()
}

// Touch records activity, extending the window. Touching a locked or
// unauthenticated session has no effect.
func (l *Lifecycle) Touch() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.statusLocked() != StatusAuthenticated {
		return
	}
	l.lastActivity = l.now()
}

// Status returns the session state, transitioning to locked if the
// inactivity window has elapsed.
func (l *Lifecycle) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.statusLocked()
}

// UserID returns the identity bound to the session, or nil.
func (l *Lifecycle) UserID() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.status == StatusUnauthenticated {
		return nil
	}
	return append([]byte(nil), l.userID...)
}

// Unlock re-activates a locked session. The presented identity must
// match the session owner.
func (l *Lifecycle) Unlock(userID []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.statusLocked() {
	case StatusUnauthenticated:
		return ErrNotAuthenticated
	case StatusAuthenticated:
		l.lastActivity = l.now()
		return nil
	}

	if !bytes.Equal(l.userID, userID) {
		return ErrIdentityMismatch
	}
	l.status = StatusAuthenticated
	l.lastActivity = l.now()
	return nil
}

// SignOut clears the session back to unauthenticated.
func (l *Lifecycle) SignOut() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status = StatusUnauthenticated
	l.userID = nil
	l.lastActivity = time.Time{}
}

// statusLocked evaluates the inactivity window. Callers must hold mu.
func (l *Lifecycle) statusLocked() Status {
	if l.status == StatusAuthenticated && l.now().Sub(l.lastActivity) > l.window {
		l.status = StatusLocked
	}
	return l.status
}

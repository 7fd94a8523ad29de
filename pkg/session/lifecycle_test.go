// Copyright (c) 2025 The lifeos Authors
//
// This file is part of lifeos. Licensed under the GNU Affero General
// Public License v3.0. See https://www.gnu.org/licenses/agpl-3.0.html

package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifecycleInitialState(t *testing.T) {
	l := NewLifecycle()
	assert.Equal(t, StatusUnauthenticated, l.Status())
	assert.Nil(t, l.UserID())
	assert.ErrorIs(t, l.Unlock([]byte("alice")), ErrNotAuthenticated)
}

func TestLifecycleAuthenticate(t *testing.T) {
	l := NewLifecycle()
	l.Authenticate([]byte("alice"))

	assert.Equal(t, StatusAuthenticated, l.Status())
	assert.Equal(t, []byte("alice"), l.UserID())
}

func TestLifecycleLocksAfterInactivity(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base

	l := NewLifecycle()
	l.SetClock(func() time.Time { return now })
	l.Authenticate([]byte("alice"))

	// Exactly at the window boundary the session is still active.
	now = base.Add(DefaultInactivityWindow)
	assert.Equal(t, StatusAuthenticated, l.Status())

	now = base.Add(DefaultInactivityWindow + time.Second)
	assert.Equal(t, StatusLocked, l.Status())

	// Identity stays bound while locked.
	assert.Equal(t, []byte("alice"), l.UserID())
}

func TestLifecycleTouchExtendsWindow(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base

	l := NewLifecycle()
	l.SetClock(func() time.Time { return now })
	l.Authenticate([]byte("alice"))

	now = base.Add(10 * time.Minute)
	l.Touch()

	now = base.Add(20 * time.Minute)
	assert.Equal(t, StatusAuthenticated, l.Status())

	now = base.Add(26 * time.Minute)
	assert.Equal(t, StatusLocked, l.Status())
}

func TestLifecycleTouchWhileLockedIsNoOp(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base

	l := NewLifecycle()
	l.SetClock(func() time.Time { return now })
	l.Authenticate([]byte("alice"))

	now = base.Add(DefaultInactivityWindow + time.Minute)
	l.Touch()
	assert.Equal(t, StatusLocked, l.Status())
}

func TestLifecycleUnlock(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base

	l := NewLifecycle()
	l.SetClock(func() time.Time { return now })
	l.Authenticate([]byte("alice"))

	now = base.Add(DefaultInactivityWindow + time.Minute)
	require.Equal(t, StatusLocked, l.Status())

	// Another identity cannot take over a locked session.
	assert.ErrorIs(t, l.Unlock([]byte("mallory")), ErrIdentityMismatch)
	assert.Equal(t, StatusLocked, l.Status())

	require.NoError(t, l.Unlock([]byte("alice")))
	assert.Equal(t, StatusAuthenticated, l.Status())

	// Unlocking an active session just records activity.
	assert.NoError(t, l.Unlock([]byte("alice")))
}

func TestLifecycleSignOut(t *testing.T) {
	l := NewLifecycle()
	l.Authenticate([]byte("alice"))
	l.SignOut()

	assert.Equal(t, StatusUnauthenticated, l.Status())
	assert.Nil(t, l.UserID())
	assert.ErrorIs(t, l.Unlock([]byte("alice")), ErrNotAuthenticated)
}

func TestLifecycleCustomWindow(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base

	l := NewLifecycleWithWindow(time.Minute)
	l.SetClock(func() time.Time { return now })
	l.Authenticate([]byte("alice"))

	now = base.Add(2 * time.Minute)
	assert.Equal(t, StatusLocked, l.Status())
}

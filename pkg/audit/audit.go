// Copyright (c) 2025 The lifeos Authors
//
// This file is part of lifeos. Licensed under the GNU Affero General
// Public License v3.0. See https://www.gnu.org/licenses/agpl-3.0.html

// Package audit records security-relevant events in a bounded in-memory
// log. Clone suspicions are recorded here rather than surfaced to end
// users, so an attacker probing with a cloned authenticator sees only a
// generic verification failure.
package audit

import (
	"context"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType classifies an audit event.
type EventType string

const (
	// EventCloneSuspected records a failed assertion whose signature
	// counter did not advance.
	EventCloneSuspected EventType = "credential_clone_suspected"

	// EventClientError records an error reported by a client application.
	EventClientError EventType = "client_error"

	// EventSignIn records a successful authentication.
	EventSignIn EventType = "sign_in"

	// EventSignOut records a session termination.
	EventSignOut EventType = "sign_out"

	// EventAccountLocked records an account lockout after repeated
	// failed logins.
	EventAccountLocked EventType = "account_locked"
)

// Event is a single audit log entry.
type Event struct {
	// ID uniquely identifies the event.
	ID string `json:"id"`

	// Type classifies the event.
	Type EventType `json:"type"`

	// At is when the event occurred.
	At time.Time `json:"at"`

	// UserID is the hex-encoded user handle, if known.
	UserID string `json:"user_id,omitempty"`

	// CredentialID is the hex-encoded credential ID, if relevant.
	CredentialID string `json:"credential_id,omitempty"`

	// Detail carries a free-form description.
	Detail string `json:"detail,omitempty"`
}

// DefaultCapacity is the number of events retained before the oldest are
// evicted.
const DefaultCapacity = 1024

// Log is a bounded, thread-safe audit event log. When full, the oldest
// events are evicted first. It implements the ceremony service's
// AuditSink.
type Log struct {
	mu     sync.Mutex
	events []Event
	cap    int
	logger *slog.Logger
	now    func() time.Time
}

// NewLog creates an audit log with the default capacity.
func NewLog(logger *slog.Logger) *Log {
	return NewLogWithCapacity(logger, DefaultCapacity)
}

// NewLogWithCapacity creates an audit log retaining at most cap events.
func NewLogWithCapacity(logger *slog.Logger, capacity int) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		cap:    capacity,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock overrides the log's time source. Intended for tests.
func (l *Log) SetClock(now func() time.Time) {
	l.now = now
}

// CloneSuspected records a possible credential clone.
func (l *Log) CloneSuspected(ctx context.Context, userID, credentialID []byte) {
	l.append(Event{
		Type:         EventCloneSuspected,
		UserID:       hex.EncodeToString(userID),
		CredentialID: hex.EncodeToString(credentialID),
		Detail:       "assertion signature counter did not advance",
	})
}

// ClientError records an error reported by a client application.
func (l *Log) ClientError(ctx context.Context, userID []byte, detail string) {
	l.append(Event{
		Type:   EventClientError,
		UserID: hex.EncodeToString(userID),
		Detail: detail,
	})
}

// Record appends an arbitrary event of the given type.
func (l *Log) Record(ctx context.Context, eventType EventType, userID []byte, detail string) {
	l.append(Event{
		Type:   eventType,
		UserID: hex.EncodeToString(userID),
		Detail: detail,
	})
}

func (l *Log) append(event Event) {
	event.ID = uuid.NewString()
	event.At = l.now().UTC()

	l.mu.Lock()
	l.events = append(l.events, event)
	if len(l.events) > l.cap {
		l.events = l.events[len(l.events)-l.cap:]
	}
	l.mu.Unlock()

	l.logger.Info("audit event",
		"event_id", event.ID,
		"type", string(event.Type),
		"user_id", event.UserID,
		"detail", event.Detail)
}

// Events returns a snapshot of retained events, oldest first.
func (l *Log) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// EventsByType returns retained events of the given type, oldest first.
func (l *Log) EventsByType(eventType EventType) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, e := range l.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of retained events.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

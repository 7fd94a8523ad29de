// Copyright (c) 2025 The lifeos Authors
//
// This file is part of lifeos. Licensed under the GNU Affero General
// Public License v3.0. See https://www.gnu.org/licenses/agpl-3.0.html

package session

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/lifeos/lifeos/pkg/webauthn"
)

const (
	// DefaultIssuer is the default JWT issuer claim.
	DefaultIssuer = "lifeos"

	// DefaultTokenTTL matches the session inactivity window.
	DefaultTokenTTL = 15 * time.Minute
)

var (
	// ErrInvalidToken is returned when a token fails signature or claim
	// validation.
	ErrInvalidToken = errors.New("invalid session token")

	// ErrTokenRevoked is returned when a token has been invalidated
	// server-side.
	ErrTokenRevoked = errors.New("session token revoked")
)

// Claims are the JWT claims carried by a session token.
type Claims struct {
	jwt.RegisteredClaims

	// Email is the account's login email.
	Email string `json:"email,omitempty"`

	// Name is the account's display name.
	Name string `json:"name,omitempty"`
}

// UserID decodes the subject claim back into the user handle.
func (c *Claims) UserID() ([]byte, error) {
	id, err := base64.RawURLEncoding.DecodeString(c.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return id, nil
}

// ManagerConfig configures a token Manager.
type ManagerConfig struct {
	// Secret is the HMAC signing key (required).
	Secret []byte

	// Issuer is the JWT issuer claim. Defaults to "lifeos".
	Issuer string

	// TokenTTL is how long tokens are valid. Defaults to 15 minutes.
	TokenTTL time.Duration
}

// Manager issues and verifies HS256 session tokens, with server-side
// revocation so a sign-out invalidates the token before it expires.
type Manager struct {
	secret   []byte
	issuer   string
	tokenTTL time.Duration
	now      func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time
}

// NewManager creates a token manager with the given configuration.
func NewManager(config *ManagerConfig) (*Manager, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if len(config.Secret) == 0 {
		return nil, fmt.Errorf("signing secret is required")
	}

	issuer := config.Issuer
	if issuer == "" {
		issuer = DefaultIssuer
	}
	tokenTTL := config.TokenTTL
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}

	return &Manager{
		secret:   config.Secret,
		issuer:   issuer,
		tokenTTL: tokenTTL,
		now:      time.Now,
		revoked:  make(map[string]time.Time),
	}, nil
}

// SetClock overrides the manager's time source. Intended for tests.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// TokenTTL returns the token validity duration.
func (m *Manager) TokenTTL() time.Duration {
	return m.tokenTTL
}

// Issue creates a signed token for the authenticated user.
func (m *Manager) Issue(ctx context.Context, u webauthn.User) (string, error) {
	now := m.now().UTC()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.issuer,
			Subject:   base64.RawURLEncoding.EncodeToString(u.WebAuthnID()),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenTTL)),
		},
		Email: u.Email(),
		Name:  u.WebAuthnDisplayName(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify validates a token's signature and claims and checks the
// revocation list.
func (m *Manager) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return m.now() }),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	m.mu.Lock()
	_, revoked := m.revoked[claims.ID]
	m.mu.Unlock()
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Revoke invalidates a token server-side. The token must still be valid;
// revoking an expired or malformed token is a no-op error.
func (m *Manager) Revoke(tokenString string) error {
	claims, err := m.Verify(tokenString)
	if err != nil {
		if errors.Is(err, ErrTokenRevoked) {
			return nil
		}
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[claims.ID] = claims.ExpiresAt.Time
	m.pruneLocked()
	return nil
}

// pruneLocked drops revocation entries for tokens that have expired on
// their own. Callers must hold mu.
func (m *Manager) pruneLocked() {
	now := m.now()
	for jti, exp := range m.revoked {
		if now.After(exp) {
			delete(m.revoked, jti)
		}
	}
}

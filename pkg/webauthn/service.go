// Copyright (c) 2025 The lifeos Authors
//
// This file is part of lifeos. Licensed under the GNU Affero General
// Public License v3.0. See https://www.gnu.org/licenses/agpl-3.0.html

package webauthn

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// AuditSink receives security-relevant ceremony events. Clone suspicion is
// recorded here; callers present it to users as a generic verification
// failure.
type AuditSink interface {
	// CloneSuspected records a signature counter regression for a credential.
	CloneSuspected(ctx context.Context, userID, credentialID []byte)
}

// Service provides WebAuthn registration and authentication operations.
type Service struct {
	webauthn   *webauthn.WebAuthn
	config     *Config
	users      UserStore
	challenges ChallengeStore
	creds      CredentialStore
	audit      AuditSink // optional
	logger     *slog.Logger
	now        func() time.Time
	configured bool
}

// ServiceParams contains dependencies for creating a WebAuthn service.
type ServiceParams struct {
	// Config is the WebAuthn configuration (required).
	Config *Config

	// UserStore is the user persistence layer (required).
	UserStore UserStore

	// ChallengeStore is the pending challenge persistence layer (required).
	ChallengeStore ChallengeStore

	// CredentialStore is the credential persistence layer (required).
	CredentialStore CredentialStore

	// AuditSink records security events. Optional.
	AuditSink AuditSink

	// Logger is the structured logger. Defaults to slog.Default().
	Logger *slog.Logger
}

// NewService creates a new WebAuthn service with the provided dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if params.UserStore == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if params.ChallengeStore == nil {
		return nil, fmt.Errorf("challenge store is required")
	}
	if params.CredentialStore == nil {
		return nil, fmt.Errorf("credential store is required")
	}

	// Set defaults and validate
	params.Config.SetDefaults()
	if err := params.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// Create the go-webauthn instance
	wa, err := webauthn.New(params.Config.ToWebAuthnConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create webauthn instance: %w", err)
	}

	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		webauthn:   wa,
		config:     params.Config,
		users:      params.UserStore,
		challenges: params.ChallengeStore,
		creds:      params.CredentialStore,
		audit:      params.AuditSink,
		logger:     logger,
		now:        time.Now,
		configured: true,
	}, nil
}

// BeginRegistration starts the WebAuthn registration ceremony for an
// existing user. The returned options carry an exclude list of every
// credential the user already registered, so the authenticator refuses to
// re-enroll one. The issued challenge replaces any pending one.
func (s *Service) BeginRegistration(ctx context.Context, userID []byte) (*protocol.CredentialCreation, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, WrapError("get user", err)
	}

	existingCreds, err := s.creds.GetByUserID(ctx, userID)
	if err != nil {
		return nil, WrapError("get credentials", err)
	}

	excludeList := make([]protocol.CredentialDescriptor, len(existingCreds))
	for i, cred := range existingCreds {
		excludeList[i] = cred.Descriptor()
	}

	options, session, err := s.webauthn.BeginRegistration(user,
		webauthn.WithExclusions(excludeList),
	)
	if err != nil {
		return nil, WrapError("begin registration", err)
	}

	if err := s.challenges.PutUser(ctx, userID, session); err != nil {
		return nil, WrapError("store challenge", err)
	}

	return options, nil
}

// FinishRegistration completes the WebAuthn registration ceremony. The
// pending challenge is consumed before verification, so a second attempt
// against the same challenge fails with ErrChallengeNotFound whether or not
// the first attempt verified. On success the credential is stored and the
// user's biometric login is enabled.
func (s *Service) FinishRegistration(ctx context.Context, userID []byte, response *protocol.ParsedCredentialCreationData) (*Credential, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}

	session, err := s.challenges.ConsumeUser(ctx, userID)
	if err != nil {
		return nil, WrapError("consume challenge", err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, WrapError("get user", err)
	}

	credential, err := s.webauthn.CreateCredential(user, *session, response)
	if err != nil {
		s.logger.Debug("attestation verification failed",
			"user", user.Email(),
			"error", err)
		return nil, NewError("verify attestation", fmt.Errorf("%w: %v", ErrVerificationFailed, err))
	}

	cred := FromWebAuthnCredential(userID, credential)
	if err := s.creds.Save(ctx, cred); err != nil {
		return nil, WrapError("save credential", err)
	}

	user.AddCredential(cred)
	user.MarkBiometricVerified(s.now().UTC())
	if err := s.users.Save(ctx, user); err != nil {
		return nil, WrapError("save user", err)
	}

	s.logger.Info("credential registered",
		"user", user.Email(),
		"transports", cred.Transport)

	return cred, nil
}

// BeginLogin starts the WebAuthn authentication ceremony.
//
// With an email, the ceremony is bound to that account: the account must
// have biometric login enabled and at least one registered credential
// before a challenge is issued, otherwise ErrNoCredentials is returned and
// nothing is stored. The options carry an allow list of the account's
// credentials and the returned challenge ID is empty.
//
// With an empty email, the ceremony is discoverable: a standalone challenge
// is minted and its ID returned for the finish call.
func (s *Service) BeginLogin(ctx context.Context, email string) (*protocol.CredentialAssertion, string, error) {
	if !s.configured {
		return nil, "", ErrNotConfigured
	}

	if email == "" {
		options, session, err := s.webauthn.BeginDiscoverableLogin()
		if err != nil {
			return nil, "", WrapError("begin discoverable login", err)
		}
		challengeID, err := s.challenges.PutStandalone(ctx, session)
		if err != nil {
			return nil, "", WrapError("store challenge", err)
		}
		return options, challengeID, nil
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", WrapError("get user", err)
	}

	// The eligibility gate runs before any challenge is minted.
	if !user.BiometricEnabled() {
		return nil, "", ErrNoCredentials
	}
	creds, err := s.creds.GetByUserID(ctx, user.WebAuthnID())
	if err != nil {
		return nil, "", WrapError("get credentials", err)
	}
	if len(creds) == 0 {
		return nil, "", ErrNoCredentials
	}

	options, session, err := s.webauthn.BeginLogin(user)
	if err != nil {
		return nil, "", WrapError("begin login", err)
	}

	if err := s.challenges.PutUser(ctx, user.WebAuthnID(), session); err != nil {
		return nil, "", WrapError("store challenge", err)
	}

	return options, "", nil
}

// FinishLogin completes the WebAuthn authentication ceremony and returns
// the authenticated user. With an email the user's pending challenge is
// consumed; with an empty email the standalone challenge identified by
// challengeID is consumed instead and the account is resolved from the
// asserted credential. In both flows the challenge is gone after this call.
//
// A signature counter that fails to advance is treated as a possible
// credential clone: the attempt is rejected with ErrCredentialCloned and no
// state is written beyond the consumed challenge.
func (s *Service) FinishLogin(ctx context.Context, email, challengeID string, response *protocol.ParsedCredentialAssertionData) (User, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}

	var user User
	var credential *webauthn.Credential

	if email == "" {
		session, err := s.challenges.ConsumeStandalone(ctx, challengeID)
		if err != nil {
			return nil, WrapError("consume challenge", err)
		}

		credential, err = s.webauthn.ValidateDiscoverableLogin(
			s.discoverableUserHandler(ctx),
			*session,
			response,
		)
		if err != nil {
			s.logger.Debug("assertion verification failed", "error", err)
			return nil, NewError("verify assertion", fmt.Errorf("%w: %v", ErrVerificationFailed, err))
		}

		stored, err := s.creds.GetByCredentialID(ctx, credential.ID)
		if err != nil {
			return nil, WrapError("get credential", err)
		}
		user, err = s.users.GetByID(ctx, stored.UserID)
		if err != nil {
			return nil, WrapError("get user", err)
		}
	} else {
		var err error
		user, err = s.users.GetByEmail(ctx, email)
		if err != nil {
			return nil, WrapError("get user", err)
		}

		session, err := s.challenges.ConsumeUser(ctx, user.WebAuthnID())
		if err != nil {
			return nil, WrapError("consume challenge", err)
		}

		credential, err = s.webauthn.ValidateLogin(user, *session, response)
		if err != nil {
			s.logger.Debug("assertion verification failed",
				"user", user.Email(),
				"error", err)
			return nil, NewError("verify assertion", fmt.Errorf("%w: %v", ErrVerificationFailed, err))
		}
	}

	// The library flags a counter that did not advance. Reject without
	// touching the stored credential so the legitimate device keeps
	// working.
	if credential.Authenticator.CloneWarning {
		if s.audit != nil {
			s.audit.CloneSuspected(ctx, user.WebAuthnID(), credential.ID)
		}
		s.logger.Warn("signature counter regression",
			"user", user.Email())
		return nil, NewError("verify assertion", ErrCredentialCloned)
	}

	stored, err := s.creds.GetByCredentialID(ctx, credential.ID)
	if err != nil {
		return nil, WrapError("get credential for update", err)
	}

	err = s.creds.UpdateSignCount(ctx, stored.ID,
		stored.Authenticator.SignCount,
		credential.Authenticator.SignCount)
	if err != nil {
		if IsVerificationFailed(err) {
			if s.audit != nil {
				s.audit.CloneSuspected(ctx, user.WebAuthnID(), credential.ID)
			}
			s.logger.Warn("signature counter conflict",
				"user", user.Email())
		}
		return nil, WrapError("update sign count", err)
	}

	stored.Authenticator.SignCount = credential.Authenticator.SignCount
	stored.LastUsedAt = s.now().UTC()
	user.UpdateCredential(stored)
	user.MarkBiometricVerified(s.now().UTC())
	if err := s.users.Save(ctx, user); err != nil {
		return nil, WrapError("save user", err)
	}

	s.logger.Info("authentication verified", "user", user.Email())

	return user, nil
}

// IsRegistered checks if a user has any registered credentials.
func (s *Service) IsRegistered(ctx context.Context, userID []byte) (bool, error) {
	if !s.configured {
		return false, ErrNotConfigured
	}

	if userID == nil {
		return false, nil
	}

	creds, err := s.creds.GetByUserID(ctx, userID)
	if err != nil {
		return false, WrapError("get credentials", err)
	}

	return len(creds) > 0, nil
}

// GetUser retrieves a user by their WebAuthn ID.
func (s *Service) GetUser(ctx context.Context, userID []byte) (User, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}

	return s.users.GetByID(ctx, userID)
}

// GetUserByEmail retrieves a user by their email address.
func (s *Service) GetUserByEmail(ctx context.Context, email string) (User, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}

	return s.users.GetByEmail(ctx, email)
}

// GetCredentials retrieves all credentials for a user.
func (s *Service) GetCredentials(ctx context.Context, userID []byte) ([]*Credential, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}

	return s.creds.GetByUserID(ctx, userID)
}

// DeleteCredential removes a credential.
func (s *Service) DeleteCredential(ctx context.Context, credID []byte) error {
	if !s.configured {
		return ErrNotConfigured
	}

	return s.creds.Delete(ctx, credID)
}

// Config returns the service configuration.
func (s *Service) Config() *Config {
	return s.config
}

// discoverableUserHandler returns a handler for discoverable credential login.
func (s *Service) discoverableUserHandler(ctx context.Context) func(rawID, userHandle []byte) (webauthn.User, error) {
	return func(rawID, userHandle []byte) (webauthn.User, error) {
		user, err := s.users.GetByID(ctx, userHandle)
		if err != nil {
			return nil, err
		}
		return user, nil
	}
}

// Copyright (c) 2025 The lifeos Authors
//
// This file is part of lifeos. Licensed under the GNU Affero General
// Public License v3.0. See https://www.gnu.org/licenses/agpl-3.0.html

package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/lifeos/lifeos/internal/password"
	"github.com/lifeos/lifeos/pkg/audit"
	"github.com/lifeos/lifeos/pkg/metrics"
	"github.com/lifeos/lifeos/pkg/user"
	webauthnhttp "github.com/lifeos/lifeos/pkg/webauthn/http"
)

// SignupHandler handles POST /auth/signup.
func (s *Server) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, password.ErrPasswordTooShort) {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		s.logger.Error("hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	account, err := user.NewAccount(req.Email, req.DisplayName, user.RoleUser)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	account.PasswordHash = hash

	if err := s.stores.Accounts.Create(r.Context(), account); err != nil {
		if errors.Is(err, user.ErrUserAlreadyExists) {
			writeError(w, http.StatusConflict, "conflict", "an account with this email already exists")
			return
		}
		s.logger.Error("create account", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	s.logger.Info("account created", "email", account.Email)
	writeJSON(w, http.StatusCreated, accountResponse(account))
}

// LoginHandler handles POST /auth/login with email and password.
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	account, err := s.guard.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		metrics.RecordCeremony(metrics.CeremonyPasswordLogin, metrics.StatusError, time.Since(start).Seconds())
		switch {
		case errors.Is(err, password.ErrInvalidPassword):
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
		case errors.Is(err, user.ErrUserLocked):
			metrics.RecordAccountLockout()
			s.audit.Record(r.Context(), audit.EventAccountLocked, nil, req.Email)
			writeError(w, http.StatusLocked, "account_locked", "account is temporarily locked")
		case errors.Is(err, user.ErrUserDisabled):
			writeError(w, http.StatusForbidden, "account_disabled", "account is disabled")
		default:
			s.logger.Error("password login", "error", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		}
		return
	}

	token, err := s.tokens.Issue(r.Context(), user.NewWebAuthnUser(account))
	if err != nil {
		s.logger.Error("issue token", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	metrics.RecordCeremony(metrics.CeremonyPasswordLogin, metrics.StatusSuccess, time.Since(start).Seconds())
	metrics.SessionStarted()
	s.audit.Record(r.Context(), audit.EventSignIn, account.ID, "password login")

	writeJSON(w, http.StatusOK, LoginResponse{
		Token:                    token,
		Account:                  accountResponse(account),
		BiometricSetupRequired:   !account.BiometricEnabled,
		InactivityTimeoutSeconds: int(s.inactivityWindow.Seconds()),
	})
}

// LogoutHandler handles POST /auth/logout. The presented token is
// revoked server-side.
func (s *Server) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if err := s.tokens.Revoke(token); err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "invalid session token")
		return
	}

	if userID, ok := webauthnhttp.UserIDFromContext(r.Context()); ok {
		detail := ""
		if claims, ok := claimsFromContext(r.Context()); ok {
			detail = claims.Email
		}
		s.audit.Record(r.Context(), audit.EventSignOut, userID, detail)
	}
	metrics.SessionEnded()
	w.WriteHeader(http.StatusNoContent)
}

// MeHandler handles GET /auth/me for the authenticated account.
func (s *Server) MeHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := webauthnhttp.UserIDFromContext(r.Context())
	account, err := s.stores.Accounts.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user_not_found", "account not found")
			return
		}
		s.logger.Error("load account", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, accountResponse(account))
}

// ClientErrorHandler handles POST /client-errors, recording errors
// reported by client applications in the audit log.
func (s *Server) ClientErrorHandler(w http.ResponseWriter, r *http.Request) {
	var req ClientErrorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "message is required")
		return
	}

	userID, _ := webauthnhttp.UserIDFromContext(r.Context())
	s.audit.ClientError(r.Context(), userID, req.Message)
	w.WriteHeader(http.StatusAccepted)
}

// HealthHandler handles GET /health.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func accountResponse(account *user.Account) AccountResponse {
	resp := AccountResponse{
		Email:            account.Email,
		DisplayName:      account.DisplayName,
		Role:             string(account.Role),
		BiometricEnabled: account.BiometricEnabled,
	}
	if !account.LastBiometricVerification.IsZero() {
		resp.LastBiometricVerification = account.LastBiometricVerification.UTC().Format(time.RFC3339)
	}
	return resp
}

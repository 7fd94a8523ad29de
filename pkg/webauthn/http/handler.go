// Copyright (c) 2025 The lifeos Authors
//
// This file is part of lifeos. Licensed under the GNU Affero General
// Public License v3.0. See https://www.gnu.org/licenses/agpl-3.0.html

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/lifeos/lifeos/pkg/webauthn"
)

type contextKey string

// userIDKey holds the authenticated user's WebAuthn ID in the request context.
const userIDKey contextKey = "webauthn.userID"

// WithUserID returns a context carrying the authenticated user's ID.
// Session middleware calls this for requests with a valid session.
func WithUserID(ctx context.Context, userID []byte) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext extracts the authenticated user's ID from the context.
func UserIDFromContext(ctx context.Context) ([]byte, bool) {
	userID, ok := ctx.Value(userIDKey).([]byte)
	return userID, ok && len(userID) > 0
}

// TokenIssuer mints a session token after a successful authentication
// ceremony.
type TokenIssuer interface {
	Issue(ctx context.Context, user webauthn.User) (string, error)
}

// Handler provides HTTP handlers for WebAuthn ceremonies.
// These handlers can be mounted on any HTTP router.
type Handler struct {
	service *webauthn.Service
	tokens  TokenIssuer // optional
	logger  *slog.Logger
}

// NewHandler creates a new WebAuthn HTTP handler.
func NewHandler(service *webauthn.Service) *Handler {
	return &Handler{
		service: service,
		logger:  slog.Default(),
	}
}

// WithLogger sets a custom logger for the handler.
func (h *Handler) WithLogger(logger *slog.Logger) *Handler {
	h.logger = logger
	return h
}

// WithTokenIssuer sets the token issuer used after successful
// authentication ceremonies.
func (h *Handler) WithTokenIssuer(tokens TokenIssuer) *Handler {
	h.tokens = tokens
	return h
}

// RegistrationOptions handles POST /registration/options
//
// Requires an authenticated session; the user ID comes from the request
// context. Responds 401 without one.
//
// Response: WebAuthn PublicKeyCredentialCreationOptions
func (h *Handler) RegistrationOptions(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, ErrorCodeUnauthenticated, "authentication required")
		return
	}

	options, err := h.service.BeginRegistration(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, options)
}

// RegistrationVerify handles POST /registration/verify
//
// Requires an authenticated session.
// Request body: the attestation response produced by the authenticator.
// Response: {"verified": true}
func (h *Handler) RegistrationVerify(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, ErrorCodeUnauthenticated, "authentication required")
		return
	}

	response, err := protocol.ParseCredentialCreationResponseBody(r.Body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid attestation response")
		return
	}

	if _, err := h.service.FinishRegistration(r.Context(), userID, response); err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, VerifyResponse{Verified: true})
}

// AuthenticationOptions handles POST /authentication/options
//
// Request body:
//
//	{
//	    "email": "user@example.com" // optional
//	}
//
// With an email the ceremony is bound to that account; the account must
// have biometric login enabled and registered credentials, otherwise 400.
// Without one the discoverable flow is used and the response carries an
// X-Challenge-Id header for the verify call.
//
// Response: WebAuthn PublicKeyCredentialRequestOptions
func (h *Handler) AuthenticationOptions(w http.ResponseWriter, r *http.Request) {
	var req AuthenticationOptionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// Allow empty body for the discoverable flow
		req = AuthenticationOptionsRequest{}
	}

	options, challengeID, err := h.service.BeginLogin(r.Context(), req.Email)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	if challengeID != "" {
		w.Header().Set(HeaderChallengeID, challengeID)
	}
	h.writeJSON(w, http.StatusOK, options)
}

// AuthenticationVerify handles POST /authentication/verify
//
// Request body:
//
//	{
//	    "email": "user@example.com", // optional
//	    "response": { ... }          // assertion response
//	}
//
// Header: X-Challenge-Id (required for the discoverable flow)
// Response: VerifyResponse with a session token on success.
//
// A suspected credential clone is reported exactly like any other failed
// verification; the distinction is audit-only.
func (h *Handler) AuthenticationVerify(w http.ResponseWriter, r *http.Request) {
	var req AuthenticationVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid request body")
		return
	}
	if len(req.Response) == 0 {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "assertion response is required")
		return
	}

	challengeID := r.Header.Get(HeaderChallengeID)
	if req.Email == "" && challengeID == "" {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "challenge ID header is required without an email")
		return
	}

	response, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(req.Response))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid assertion response")
		return
	}

	user, err := h.service.FinishLogin(r.Context(), req.Email, challengeID, response)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	result := VerifyResponse{
		Verified: true,
		Email:    user.Email(),
	}
	if h.tokens != nil {
		token, err := h.tokens.Issue(r.Context(), user)
		if err != nil {
			h.logger.Error("failed to issue session token",
				"user", user.Email(),
				"error", err)
			h.writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal server error")
			return
		}
		result.Token = token
	}

	h.writeJSON(w, http.StatusOK, result)
}

// handleServiceError maps service errors to HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case webauthn.IsUserNotFound(err):
		h.writeError(w, http.StatusNotFound, ErrorCodeUserNotFound, "user not found")
	case webauthn.IsChallengeNotFound(err):
		h.writeError(w, http.StatusBadRequest, ErrorCodeChallengeNotFound, "challenge not found")
	case webauthn.IsChallengeExpired(err):
		h.writeError(w, http.StatusBadRequest, ErrorCodeChallengeExpired, "challenge expired")
	case webauthn.IsVerificationFailed(err):
		// Clone suspicion lands here too and is indistinguishable from
		// any other failed verification.
		h.writeError(w, http.StatusBadRequest, ErrorCodeVerificationFailed, "verification failed")
	case errors.Is(err, webauthn.ErrNoCredentials):
		h.writeError(w, http.StatusBadRequest, ErrorCodeNoCredentials, "biometric login is not set up for this account")
	case errors.Is(err, webauthn.ErrCredentialAlreadyExists):
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "credential already registered")
	default:
		h.logger.Error("webauthn ceremony failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal server error")
	}
}

// writeJSON writes a JSON response.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Response headers already written, can only log the error
		h.logger.Error("failed to encode JSON response",
			"error", err,
			"status", status)
	}
}

// writeError writes an error response.
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: message,
	})
}

// Copyright (c) 2025 The lifeos Authors
//
// This file is part of lifeos. Licensed under the GNU Affero General
// Public License v3.0. See https://www.gnu.org/licenses/agpl-3.0.html

package http

import "encoding/json"

// HeaderChallengeID carries the standalone challenge ID for discoverable
// authentication ceremonies.
const HeaderChallengeID = "X-Challenge-Id"

// AuthenticationOptionsRequest is the request body for starting an
// authentication ceremony. An empty email requests the discoverable flow.
type AuthenticationOptionsRequest struct {
	// Email identifies the account to authenticate (optional).
	Email string `json:"email,omitempty"`
}

// AuthenticationVerifyRequest is the request body for completing an
// authentication ceremony.
type AuthenticationVerifyRequest struct {
	// Email identifies the account being authenticated (optional; empty
	// for the discoverable flow).
	Email string `json:"email,omitempty"`

	// Response is the raw assertion response from the authenticator.
	Response json.RawMessage `json:"response"`
}

// VerifyResponse is the response after a verification attempt.
type VerifyResponse struct {
	// Verified indicates whether the ceremony completed successfully.
	Verified bool `json:"verified"`

	// Token is the session token issued after a successful
	// authentication. Empty for registration ceremonies.
	Token string `json:"token,omitempty"`

	// Email is the authenticated account's email address.
	Email string `json:"email,omitempty"`
}

// ErrorResponse is the response format for errors.
type ErrorResponse struct {
	// Error is the error code.
	Error string `json:"error"`

	// Message is a human-readable error message.
	Message string `json:"message"`
}

// Error codes returned in ErrorResponse.
const (
	ErrorCodeInvalidRequest     = "invalid_request"
	ErrorCodeUnauthenticated    = "unauthenticated"
	ErrorCodeUserNotFound       = "user_not_found"
	ErrorCodeNoCredentials      = "no_credentials"
	ErrorCodeChallengeNotFound  = "challenge_not_found"
	ErrorCodeChallengeExpired   = "challenge_expired"
	ErrorCodeVerificationFailed = "verification_failed"
	ErrorCodeInternalError      = "internal_error"
)

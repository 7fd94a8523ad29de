// Copyright (c) 2025 The lifeos Authors
//
// This file is part of lifeos. Licensed under the GNU Affero General
// Public License v3.0. See https://www.gnu.org/licenses/agpl-3.0.html

package rest

import (
	"encoding/json"
	"net/http"
)

// SignupRequest is the request body for POST /auth/signup.
type SignupRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

// LoginRequest is the request body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AccountResponse describes an account to API clients.
type AccountResponse struct {
	Email                     string `json:"email"`
	DisplayName               string `json:"display_name"`
	Role                      string `json:"role"`
	BiometricEnabled          bool   `json:"biometric_enabled"`
	LastBiometricVerification string `json:"last_biometric_verification,omitempty"`
}

// LoginResponse is returned after a successful password login.
type LoginResponse struct {
	Token   string          `json:"token"`
	Account AccountResponse `json:"account"`

	// BiometricSetupRequired tells the client the account has no
	// registered biometric credential yet.
	BiometricSetupRequired bool `json:"biometric_setup_required"`

	// InactivityTimeoutSeconds is how long the client may stay idle
	// before it must lock the session and demand a fresh verification.
	InactivityTimeoutSeconds int `json:"inactivity_timeout_seconds"`
}

// ClientErrorRequest is the request body for POST /client-errors.
type ClientErrorRequest struct {
	Message string `json:"message"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}

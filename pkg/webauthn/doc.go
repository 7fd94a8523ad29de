// Copyright (c) 2025 The lifeos Authors
//
// This file is part of lifeos. Licensed under the GNU Affero General
// Public License v3.0. See https://www.gnu.org/licenses/agpl-3.0.html

// Package webauthn implements the server side of WebAuthn (FIDO2)
// biometric authentication for lifeos.
//
// This package wraps the go-webauthn/webauthn library and provides:
//   - Registration and authentication ceremonies with single-use challenges
//   - Pluggable storage interfaces for users, credentials, and challenges
//   - In-memory and Redis-backed challenge stores
//   - Signature counter enforcement with clone suspicion reporting
//
// # Architecture
//
// The package is designed with a layered architecture:
//
//  1. Service layer (Service) - Ceremony orchestration and verification
//  2. Storage layer (UserStore, CredentialStore, ChallengeStore) - Pluggable persistence
//  3. HTTP layer (pkg/webauthn/http) - Composable HTTP handlers
//
// # Challenges
//
// Every ceremony starts by minting a challenge. A user holds at most one
// pending challenge; issuing a new one replaces it. Discoverable logins use
// standalone challenges that expire after five minutes. All challenges are
// consumed on the first verification attempt, successful or not, so replays
// fail with ErrChallengeNotFound.
//
// # Usage
//
// Basic usage with in-memory storage (for development):
//
//	svc, err := webauthn.NewService(webauthn.ServiceParams{
//	    Config: &webauthn.Config{
//	        RPID:          "localhost",
//	        RPDisplayName: "My App",
//	        RPOrigins:     []string{"https://localhost:3000"},
//	    },
//	    UserStore:       webauthn.NewMemoryUserStore(),
//	    ChallengeStore:  webauthn.NewMemoryChallengeStore(),
//	    CredentialStore: webauthn.NewMemoryCredentialStore(),
//	})
//
// For production, implement the storage interfaces with your database and
// use NewRedisChallengeStore for challenges.
//
// # WebAuthn Specification Compliance
//
// This implementation follows the W3C Web Authentication specification:
//   - https://www.w3.org/TR/webauthn-2/
//   - https://www.w3.org/TR/webauthn-3/
//
// Note: WebAuthn requires HTTPS for all operations. Browsers will only
// expose the WebAuthn API in secure contexts.
package webauthn

// Copyright (c) 2025 The lifeos Authors
//
// This file is part of lifeos. Licensed under the GNU Affero General
// Public License v3.0. See https://www.gnu.org/licenses/agpl-3.0.html

// Package http provides composable HTTP handlers for WebAuthn ceremonies.
//
// This package lets the REST server mount the ceremony endpoints without
// coupling them to the rest of the API surface.
//
// # Usage
//
// Create a handler from a WebAuthn service and mount it on your router:
//
//	svc, _ := webauthn.NewService(...)
//	handler := webauthnhttp.NewHandler(svc).WithTokenIssuer(tokens)
//
//	r.Route("/api/v1/webauthn", func(r chi.Router) {
//	    webauthnhttp.MountChi(r, handler)
//	})
//
// # Endpoints
//
// The handler provides the following endpoints:
//
//	POST /registration/options    - Start registration ceremony (session required)
//	POST /registration/verify     - Complete registration (session required)
//	POST /authentication/options  - Start authentication ceremony
//	POST /authentication/verify   - Complete authentication
//
// Registration endpoints require an authenticated session: the session
// middleware stores the user's ID in the request context via WithUserID,
// and the handlers respond 401 when it is absent.
//
// # Headers
//
// The discoverable authentication flow uses a custom header:
//
//	X-Challenge-Id: Standalone challenge identifier returned by the
//	                options call, required on the verify call
//
// # Response Format
//
// All responses are JSON. Successful responses include the data directly.
// Error responses have the format:
//
//	{
//	    "error": "error_code",
//	    "message": "Human-readable message"
//	}
package http

// Copyright (c) 2025 The lifeos Authors
//
// This file is part of lifeos. Licensed under the GNU Affero General
// Public License v3.0. See https://www.gnu.org/licenses/agpl-3.0.html

package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountChi mounts WebAuthn ceremony routes on a chi router.
//
// Example:
//
//	handler := webauthnhttp.NewHandler(svc)
//	r.Route("/api/v1/webauthn", func(r chi.Router) {
//	    webauthnhttp.MountChi(r, handler)
//	})
func MountChi(r chi.Router, h *Handler) {
	r.Post("/registration/options", h.RegistrationOptions)
	r.Post("/registration/verify", h.RegistrationVerify)
	r.Post("/authentication/options", h.AuthenticationOptions)
	r.Post("/authentication/verify", h.AuthenticationVerify)
}

// RouteEntry represents a single route with its method, path, and handler.
type RouteEntry struct {
	Method  string
	Path    string
	Handler http.HandlerFunc
}

// Routes returns a slice of route entries for manual mounting.
// Useful for routers without a chi-compatible API.
func (h *Handler) Routes() []RouteEntry {
	return []RouteEntry{
		{Method: "POST", Path: "/registration/options", Handler: h.RegistrationOptions},
		{Method: "POST", Path: "/registration/verify", Handler: h.RegistrationVerify},
		{Method: "POST", Path: "/authentication/options", Handler: h.AuthenticationOptions},
		{Method: "POST", Path: "/authentication/verify", Handler: h.AuthenticationVerify},
	}
}

// Copyright (c) 2025 The lifeos Authors
//
// This file is part of lifeos. Licensed under the GNU Affero General
// Public License v3.0. See https://www.gnu.org/licenses/agpl-3.0.html

package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMountChi(t *testing.T) {
	env := newHandlerEnv(t)

	r := chi.NewRouter()
	r.Route("/api/v1/webauthn", func(r chi.Router) {
		MountChi(r, env.handler)
	})

	// Registration endpoints are mounted and session-gated.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webauthn/registration/options", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Authentication options accept an empty body.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/webauthn/authentication/options", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Unknown paths fall through to the router's 404.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/webauthn/unknown", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// GET on a POST route is rejected.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/webauthn/authentication/options", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRoutes(t *testing.T) {
	env := newHandlerEnv(t)

	routes := env.handler.Routes()
	require.Len(t, routes, 4)

	paths := make(map[string]string, len(routes))
	for _, route := range routes {
		require.NotNil(t, route.Handler)
		paths[route.Path] = route.Method
	}
	assert.Equal(t, "POST", paths["/registration/options"])
	assert.Equal(t, "POST", paths["/registration/verify"])
	assert.Equal(t, "POST", paths["/authentication/options"])
	assert.Equal(t, "POST", paths["/authentication/verify"])
}

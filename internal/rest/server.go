// Copyright (c) 2025 The lifeos Authors
//
// This file is part of lifeos. Licensed under the GNU Affero General
// Public License v3.0. See https://www.gnu.org/licenses/agpl-3.0.html

// Package rest provides the HTTP API server. It wires the WebAuthn
// ceremony service, password authentication, session tokens, and the
// audit log behind a chi router.
package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lifeos/lifeos/internal/config"
	"github.com/lifeos/lifeos/internal/password"
	"github.com/lifeos/lifeos/pkg/audit"
	"github.com/lifeos/lifeos/pkg/metrics"
	"github.com/lifeos/lifeos/pkg/ratelimit"
	"github.com/lifeos/lifeos/pkg/session"
	"github.com/lifeos/lifeos/pkg/webauthn"
	webauthnhttp "github.com/lifeos/lifeos/pkg/webauthn/http"
)

// Server is the HTTP API server.
type Server struct {
	server  *http.Server
	router  *chi.Mux
	stores  *Stores
	service *webauthn.Service
	tokens  *session.Manager
	guard   *password.Guard
	hasher  *password.Hasher
	audit   *audit.Log
	limiter *ratelimit.Limiter
	logger  *slog.Logger
	port    int

	inactivityWindow time.Duration
}

// NewServer creates the API server from the loaded configuration.
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = cfg.BuildLogger()
	}

	stores, err := NewStores(ctx, &cfg.Storage, cfg.WebAuthn.ChallengeTTL)
	if err != nil {
		return nil, err
	}

	waConfig, err := webauthn.ConfigFromOrigin(cfg.WebAuthn.Origin, cfg.WebAuthn.DisplayName)
	if err != nil {
		stores.Close()
		return nil, fmt.Errorf("webauthn config: %w", err)
	}
	if cfg.WebAuthn.ChallengeTTL > 0 {
		waConfig.ChallengeTTL = cfg.WebAuthn.ChallengeTTL
	}

	auditLog := audit.NewLog(logger)

	service, err := webauthn.NewService(webauthn.ServiceParams{
		Config:          waConfig,
		UserStore:       stores.Users,
		ChallengeStore:  stores.Challenges,
		CredentialStore: stores.Credentials,
		AuditSink:       auditLog,
		Logger:          logger,
	})
	if err != nil {
		stores.Close()
		return nil, fmt.Errorf("webauthn service: %w", err)
	}

	tokens, err := session.NewManager(&session.ManagerConfig{
		Secret:   []byte(cfg.Session.Secret),
		TokenTTL: cfg.Session.TokenTTL,
	})
	if err != nil {
		stores.Close()
		return nil, fmt.Errorf("session manager: %w", err)
	}

	hasher := password.NewHasher()

	inactivityWindow := cfg.Session.InactivityWindow
	if inactivityWindow <= 0 {
		inactivityWindow = session.DefaultInactivityWindow
	}

	s := &Server{
		stores:  stores,
		service: service,
		tokens:  tokens,
		guard:   password.NewGuard(stores.Accounts, hasher),
		hasher:  hasher,
		audit:   auditLog,
		limiter: ratelimit.New(&ratelimit.Config{
			Enabled:           cfg.RateLimit.Enabled,
			RequestsPerMinute: cfg.RateLimit.RequestsPerMin,
			Burst:             cfg.RateLimit.Burst,
		}),
		logger:           logger,
		port:             cfg.Server.Port,
		inactivityWindow: inactivityWindow,
	}

	s.router = s.setupRouter(cfg)
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// setupRouter configures the chi router with all routes and middleware.
func (s *Server) setupRouter(cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	r.Use(s.RecoveryMiddleware())
	r.Use(s.LoggingMiddleware())
	r.Use(metrics.HTTPMiddleware)
	r.Use(s.SessionMiddleware())

	r.Get("/health", s.HealthHandler)

	if cfg.Metrics.Enabled {
		path := cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, promhttp.Handler())
	}

	waHandler := webauthnhttp.NewHandler(s.service).
		WithLogger(s.logger).
		WithTokenIssuer(s.tokens)

	r.Route("/api/v1", func(r chi.Router) {
		// Anything reachable without a session is rate limited per
		// client IP.
		r.Group(func(r chi.Router) {
			r.Use(ratelimit.Middleware(s.limiter))

			r.Post("/auth/register", s.SignupHandler)
			r.Post("/auth/login", s.LoginHandler)

			r.Route("/webauthn", func(r chi.Router) {
				for _, entry := range waHandler.Routes() {
					r.Method(entry.Method, entry.Path, s.instrumentCeremony(entry.Path, entry.Handler))
				}
			})
		})

		r.Post("/auth/logout", s.RequireSession(s.LogoutHandler))
		r.Get("/auth/me", s.RequireSession(s.MeHandler))
		r.Post("/logs/client-errors", s.ClientErrorHandler)
	})

	return r
}

// ceremonyLabels maps ceremony route paths to their metric labels.
var ceremonyLabels = map[string]string{
	"/registration/options":   metrics.CeremonyRegistrationBegin,
	"/registration/verify":    metrics.CeremonyRegistrationFinish,
	"/authentication/options": metrics.CeremonyLoginBegin,
	"/authentication/verify":  metrics.CeremonyLoginFinish,
}

// instrumentCeremony records outcome metrics for a ceremony endpoint.
func (s *Server) instrumentCeremony(path string, next http.HandlerFunc) http.HandlerFunc {
	label, ok := ceremonyLabels[path]
	if !ok {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next(recorder, r)

		status := metrics.StatusSuccess
		if recorder.status >= http.StatusBadRequest {
			status = metrics.StatusError
		}
		metrics.RecordCeremony(label, status, time.Since(start).Seconds())
		if recorder.status == http.StatusBadRequest && strings.HasSuffix(path, "/verify") {
			metrics.RecordVerificationFailure("verification_failed")
		}
	}
}

// Router returns the configured router. Intended for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Audit returns the server's audit log.
func (s *Server) Audit() *audit.Log {
	return s.audit
}

// Start starts the API server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.Info("starting http server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start http server: %w", err)
	}
	return nil
}

// Stop gracefully stops the API server and releases storage handles.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("shutting down server")
	s.limiter.Stop()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return s.stores.Close()
}

// Port returns the port the server listens on.
func (s *Server) Port() int {
	return s.port
}

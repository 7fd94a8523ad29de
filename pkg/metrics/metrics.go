// Copyright (c) 2025 The lifeos Authors
//
// This file is part of lifeos. Licensed under the GNU Affero General
// Public License v3.0. See https://www.gnu.org/licenses/agpl-3.0.html

// Package metrics provides Prometheus instrumentation for authentication
// operations. It exposes ceremony counters, latency histograms, and
// security event counters for monitoring server health.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all metrics.
	Namespace = "lifeos"

	// Label names
	LabelCeremony   = "ceremony"
	LabelStatus     = "status"
	LabelReason     = "reason"
	LabelMethod     = "method"
	LabelStatusCode = "status_code"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// Ceremony names
	CeremonyRegistrationBegin  = "registration_begin"
	CeremonyRegistrationFinish = "registration_finish"
	CeremonyLoginBegin         = "login_begin"
	CeremonyLoginFinish        = "login_finish"
	CeremonyPasswordLogin      = "password_login"
)

var (
	// CeremoniesTotal tracks authentication ceremonies by type and status.
	CeremoniesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "ceremonies_total",
			Help:      "Total number of authentication ceremonies by type and status",
		},
		[]string{LabelCeremony, LabelStatus},
	)

	// CeremonyDuration tracks ceremony handling duration in seconds.
	CeremonyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "ceremony_duration_seconds",
			Help:      "Duration of authentication ceremonies in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{LabelCeremony},
	)

	// VerificationFailuresTotal tracks failed verifications by reason.
	// Reasons should be coarse, such as "signature", "challenge_missing",
	// "challenge_expired", or "clone_suspected".
	VerificationFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "verification_failures_total",
			Help:      "Total number of failed verifications by reason",
		},
		[]string{LabelReason},
	)

	// AccountLockoutsTotal counts accounts locked after repeated failed
	// password logins.
	AccountLockoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "account_lockouts_total",
			Help:      "Total number of account lockouts",
		},
	)

	// ActiveSessions tracks the number of active authenticated sessions.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "active_sessions",
			Help:      "Number of active authenticated sessions",
		},
	)

	// HTTPRequestsTotal tracks HTTP requests by method and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method and status code",
		},
		[]string{LabelMethod, LabelStatusCode},
	)

	// HTTPRequestDuration tracks HTTP request duration in seconds.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelMethod},
	)

	// enabled tracks whether metrics collection is enabled
	enabled atomic.Bool
)

func init() {
	enabled.Store(true)
}

// RecordCeremony records an authentication ceremony with its duration
// and status.
func RecordCeremony(ceremony, status string, duration float64) {
	if !enabled.Load() {
		return
	}
	CeremoniesTotal.WithLabelValues(ceremony, status).Inc()
	CeremonyDuration.WithLabelValues(ceremony).Observe(duration)
}

// RecordVerificationFailure records a failed verification by reason.
func RecordVerificationFailure(reason string) {
	if !enabled.Load() {
		return
	}
	VerificationFailuresTotal.WithLabelValues(reason).Inc()
}

// RecordAccountLockout records an account lockout.
func RecordAccountLockout() {
	if !enabled.Load() {
		return
	}
	AccountLockoutsTotal.Inc()
}

// RecordHTTPRequest records an HTTP request with its duration and status.
func RecordHTTPRequest(method, statusCode string, duration float64) {
	if !enabled.Load() {
		return
	}
	HTTPRequestsTotal.WithLabelValues(method, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(method).Observe(duration)
}

// SessionStarted increments the active session gauge.
func SessionStarted() {
	if !enabled.Load() {
		return
	}
	ActiveSessions.Inc()
}

// SessionEnded decrements the active session gauge.
func SessionEnded() {
	if !enabled.Load() {
		return
	}
	ActiveSessions.Dec()
}

// Enable enables metrics collection.
func Enable() {
	enabled.Store(true)
}

// Disable disables metrics collection. Useful for testing.
func Disable() {
	enabled.Store(false)
}

// IsEnabled returns whether metrics collection is currently enabled.
func IsEnabled() bool {
	return enabled.Load()
}

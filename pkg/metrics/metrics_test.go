// Copyright (c) 2025 The lifeos Authors
//
// This file is part of lifeos. Licensed under the GNU Affero General
// Public License v3.0. See https://www.gnu.org/licenses/agpl-3.0.html

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsEnabled(t *testing.T) {
	if !IsEnabled() {
		t.Error("Expected metrics to be enabled by default")
	}

	Disable()
	if IsEnabled() {
		t.Error("Expected metrics to be disabled after Disable()")
	}

	Enable()
	if !IsEnabled() {
		t.Error("Expected metrics to be enabled after Enable()")
	}
}

func TestRecordCeremony(t *testing.T) {
	Enable()
	CeremoniesTotal.Reset()
	CeremonyDuration.Reset()

	RecordCeremony(CeremonyRegistrationBegin, StatusSuccess, 0.01)

	if count := testutil.CollectAndCount(CeremoniesTotal); count != 1 {
		t.Errorf("Expected 1 ceremony recorded, got %d", count)
	}
	if count := testutil.CollectAndCount(CeremonyDuration); count != 1 {
		t.Errorf("Expected 1 histogram sample, got %d", count)
	}

	RecordCeremony(CeremonyLoginFinish, StatusError, 0.05)

	if count := testutil.CollectAndCount(CeremoniesTotal); count != 2 {
		t.Errorf("Expected 2 ceremonies recorded, got %d", count)
	}
}

func TestRecordCeremonyWhenDisabled(t *testing.T) {
	Disable()
	defer Enable()

	CeremoniesTotal.Reset()
	RecordCeremony(CeremonyLoginBegin, StatusSuccess, 0.01)

	if count := testutil.CollectAndCount(CeremoniesTotal); count != 0 {
		t.Errorf("Expected no ceremonies recorded while disabled, got %d", count)
	}
}

func TestRecordVerificationFailure(t *testing.T) {
	Enable()
	VerificationFailuresTotal.Reset()

	RecordVerificationFailure("clone_suspected")
	RecordVerificationFailure("signature")
	RecordVerificationFailure("signature")

	value := testutil.ToFloat64(VerificationFailuresTotal.WithLabelValues("signature"))
	if value != 2 {
		t.Errorf("Expected 2 signature failures, got %v", value)
	}
}

func TestSessionGauge(t *testing.T) {
	Enable()
	ActiveSessions.Set(0)

	SessionStarted()
	SessionStarted()
	SessionEnded()

	if value := testutil.ToFloat64(ActiveSessions); value != 1 {
		t.Errorf("Expected 1 active session, got %v", value)
	}
}

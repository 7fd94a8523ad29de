// Copyright (c) 2025 The lifeos Authors
//
// This file is part of lifeos. Licensed under the GNU Affero General
// Public License v3.0. See https://www.gnu.org/licenses/agpl-3.0.html

package webauthn

import (
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name:    "missing rpid",
			config:  Config{RPDisplayName: "App", RPOrigins: []string{"https://app.example.com"}},
			wantErr: "RPID is required",
		},
		{
			name:    "missing display name",
			config:  Config{RPID: "example.com", RPOrigins: []string{"https://app.example.com"}},
			wantErr: "RPDisplayName is required",
		},
		{
			name:    "missing origins",
			config:  Config{RPID: "example.com", RPDisplayName: "App"},
			wantErr: "at least one RPOrigin is required",
		},
		{
			name: "invalid user verification",
			config: Config{
				RPID: "example.com", RPDisplayName: "App",
				RPOrigins:        []string{"https://app.example.com"},
				UserVerification: "always",
			},
			wantErr: "invalid user verification",
		},
		{
			name: "invalid attestation",
			config: Config{
				RPID: "example.com", RPDisplayName: "App",
				RPOrigins:             []string{"https://app.example.com"},
				AttestationPreference: "full",
			},
			wantErr: "invalid attestation preference",
		},
		{
			name: "invalid resident key",
			config: Config{
				RPID: "example.com", RPDisplayName: "App",
				RPOrigins:              []string{"https://app.example.com"},
				ResidentKeyRequirement: "maybe",
			},
			wantErr: "invalid resident key requirement",
		},
		{
			name: "invalid attachment",
			config: Config{
				RPID: "example.com", RPDisplayName: "App",
				RPOrigins:               []string{"https://app.example.com"},
				AuthenticatorAttachment: "usb",
			},
			wantErr: "invalid authenticator attachment",
		},
		{
			name: "valid",
			config: Config{
				RPID: "example.com", RPDisplayName: "App",
				RPOrigins: []string{"https://app.example.com"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigSetDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()

	assert.Equal(t, 60*time.Second, cfg.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.ChallengeTTL)
	assert.Equal(t, "preferred", cfg.UserVerification)
	assert.Equal(t, "none", cfg.AttestationPreference)
	assert.Equal(t, "required", cfg.ResidentKeyRequirement)
	assert.Equal(t, "platform", cfg.AuthenticatorAttachment)
}

func TestConfigSetDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := &Config{
		Timeout:                 30 * time.Second,
		ChallengeTTL:            time.Minute,
		UserVerification:        "required",
		ResidentKeyRequirement:  "preferred",
		AuthenticatorAttachment: "cross-platform",
	}
	cfg.SetDefaults()

	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, time.Minute, cfg.ChallengeTTL)
	assert.Equal(t, "required", cfg.UserVerification)
	assert.Equal(t, "preferred", cfg.ResidentKeyRequirement)
	assert.Equal(t, "cross-platform", cfg.AuthenticatorAttachment)
}

func TestConfigFromOrigin(t *testing.T) {
	tests := []struct {
		name    string
		origin  string
		wantRP  string
		wantErr bool
	}{
		{"production", "https://app.example.com", "app.example.com", false},
		{"localhost with port", "http://localhost:3000", "localhost", false},
		{"missing scheme", "app.example.com", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ConfigFromOrigin(tt.origin, "App")
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRP, cfg.RPID)
			assert.Equal(t, []string{tt.origin}, cfg.RPOrigins)
			assert.NoError(t, cfg.Validate())
		})
	}
}

func TestToWebAuthnConfig(t *testing.T) {
	cfg := &Config{
		RPID:          "example.com",
		RPDisplayName: "App",
		RPOrigins:     []string{"https://example.com"},
	}
	cfg.SetDefaults()

	waCfg := cfg.ToWebAuthnConfig()
	assert.Equal(t, "example.com", waCfg.RPID)
	assert.Equal(t, "App", waCfg.RPDisplayName)
	assert.True(t, waCfg.Timeouts.Login.Enforce)
	assert.Equal(t, 60*time.Second, waCfg.Timeouts.Registration.Timeout)
	assert.Equal(t, protocol.PreferNoAttestation, waCfg.AttestationPreference)
	assert.Equal(t, protocol.ResidentKeyRequirementRequired, waCfg.AuthenticatorSelection.ResidentKey)
	assert.Equal(t, protocol.Platform, waCfg.AuthenticatorSelection.AuthenticatorAttachment)
	assert.Equal(t, protocol.VerificationPreferred, waCfg.AuthenticatorSelection.UserVerification)
}

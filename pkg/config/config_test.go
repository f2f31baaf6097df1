// Copyright 2026 NebulaFS Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nebulafs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
server:
  host: 127.0.0.1
  port: 9100
  limits:
    max_body_bytes: 1048576
storage:
  base_path: /srv/data
  temp_path: /srv/tmp
  metadata_path: /srv/meta.db
  multipart:
    max_upload_ttl_seconds: 3600
cleanup:
  enabled: true
  sweep_interval_seconds: 30
  grace_period_seconds: 120
  max_uploads_per_sweep: 50
auth:
  enabled: true
  issuer: https://issuer.example
  audience: nebulafs
  jwks_url: https://issuer.example/jwks.json
observability:
  log_level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, int64(1048576), cfg.Server.Limits.MaxBodyBytes)
	assert.Equal(t, "/srv/data", cfg.Storage.BasePath)
	assert.Equal(t, time.Hour, cfg.UploadTTL())
	assert.Equal(t, 30*time.Second, cfg.SweepInterval())
	assert.Equal(t, 2*time.Minute, cfg.GracePeriod())
	assert.Equal(t, 50, cfg.Cleanup.MaxUploadsPerSweep)
	assert.True(t, cfg.Auth.Enabled)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)

	// Unset fields keep their defaults.
	assert.Equal(t, "RS256", cfg.Auth.AllowedAlg)
	assert.Equal(t, 300, cfg.Auth.CacheTTLSeconds)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		mutate      func(c *Config)
		errContains string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name: "auth enabled requires issuer",
			mutate: func(c *Config) {
				c.Auth.Enabled = true
				c.Auth.JWKSURL = "https://x/jwks.json"
			},
			errContains: "auth.issuer",
		},
		{
			name: "auth enabled requires jwks url",
			mutate: func(c *Config) {
				c.Auth.Enabled = true
				c.Auth.Issuer = "https://x"
				c.Auth.JWKSURL = "  "
			},
			errContains: "auth.jwks_url",
		},
		{
			name: "upload ttl must be positive",
			mutate: func(c *Config) {
				c.Storage.Multipart.MaxUploadTTLSeconds = 0
			},
			errContains: "max_upload_ttl_seconds",
		},
		{
			name: "sweep interval must be positive",
			mutate: func(c *Config) {
				c.Cleanup.SweepIntervalSeconds = -1
			},
			errContains: "sweep_interval_seconds",
		},
		{
			name: "sweep batch must be positive",
			mutate: func(c *Config) {
				c.Cleanup.MaxUploadsPerSweep = 0
			},
			errContains: "max_uploads_per_sweep",
		},
		{
			name: "port range",
			mutate: func(c *Config) {
				c.Server.Port = 70000
			},
			errContains: "server.port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errContains == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errContains)
		})
	}
}

// Copyright 2026 NebulaFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads and validates the server configuration.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full configuration tree.
type Config struct {
	Server        Server        `mapstructure:"server"`
	Storage       Storage       `mapstructure:"storage"`
	Cleanup       Cleanup       `mapstructure:"cleanup"`
	Auth          Auth          `mapstructure:"auth"`
	Observability Observability `mapstructure:"observability"`
}

// Server holds the HTTP listener settings.
type Server struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	Threads int    `mapstructure:"threads"`
	TLS     *TLS   `mapstructure:"tls"`
	Limits  Limits `mapstructure:"limits"`
}

// TLS points at the certificate pair. When nil the listener is plain.
type TLS struct {
	Cert string `mapstructure:"cert"`
	Key  string `mapstructure:"key"`
}

// Limits caps request bodies.
type Limits struct {
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
}

// Storage holds filesystem layout and the metadata database location.
type Storage struct {
	BasePath     string    `mapstructure:"base_path"`
	TempPath     string    `mapstructure:"temp_path"`
	MetadataPath string    `mapstructure:"metadata_path"`
	Multipart    Multipart `mapstructure:"multipart"`
}

// Multipart bounds upload lifetimes.
type Multipart struct {
	MaxUploadTTLSeconds int `mapstructure:"max_upload_ttl_seconds"`
}

// Cleanup configures the expiry sweeper.
type Cleanup struct {
	Enabled              bool `mapstructure:"enabled"`
	SweepIntervalSeconds int  `mapstructure:"sweep_interval_seconds"`
	GracePeriodSeconds   int  `mapstructure:"grace_period_seconds"`
	MaxUploadsPerSweep   int  `mapstructure:"max_uploads_per_sweep"`
}

// Auth configures bearer-token verification.
type Auth struct {
	Enabled          bool   `mapstructure:"enabled"`
	Issuer           string `mapstructure:"issuer"`
	Audience         string `mapstructure:"audience"`
	JWKSURL          string `mapstructure:"jwks_url"`
	CacheTTLSeconds  int    `mapstructure:"cache_ttl_seconds"`
	ClockSkewSeconds int    `mapstructure:"clock_skew_seconds"`
	AllowedAlg       string `mapstructure:"allowed_alg"`
}

// Observability holds logging settings.
type Observability struct {
	LogLevel string `mapstructure:"log_level"`
}

// Default returns the configuration used when the file leaves a field
// unset.
func Default() Config {
	return Config{
		Server: Server{
			Host:    "0.0.0.0",
			Port:    9000,
			Threads: 4,
			Limits:  Limits{MaxBodyBytes: 5 << 30},
		},
		Storage: Storage{
			BasePath:     "./data",
			TempPath:     "./data/tmp",
			MetadataPath: "./data/metadata.db",
			Multipart:    Multipart{MaxUploadTTLSeconds: 86400},
		},
		Cleanup: Cleanup{
			Enabled:              true,
			SweepIntervalSeconds: 60,
			GracePeriodSeconds:   300,
			MaxUploadsPerSweep:   100,
		},
		Auth: Auth{
			CacheTTLSeconds:  300,
			ClockSkewSeconds: 60,
			AllowedAlg:       "RS256",
		},
		Observability: Observability{LogLevel: "info"},
	}
}

// Load reads the configuration file at path, layering environment
// variables (NEBULAFS_ prefix) over it, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("NEBULAFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces the invariants the rest of the system assumes.
func (c *Config) Validate() error {
	if c.Auth.Enabled {
		if strings.TrimSpace(c.Auth.Issuer) == "" {
			return fmt.Errorf("auth.issuer is required when auth is enabled")
		}
		if strings.TrimSpace(c.Auth.JWKSURL) == "" {
			return fmt.Errorf("auth.jwks_url is required when auth is enabled")
		}
	}
	if c.Storage.Multipart.MaxUploadTTLSeconds <= 0 {
		return fmt.Errorf("storage.multipart.max_upload_ttl_seconds must be positive")
	}
	if c.Cleanup.SweepIntervalSeconds <= 0 {
		return fmt.Errorf("cleanup.sweep_interval_seconds must be positive")
	}
	if c.Cleanup.MaxUploadsPerSweep <= 0 {
		return fmt.Errorf("cleanup.max_uploads_per_sweep must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range")
	}
	if c.Storage.BasePath == "" || c.Storage.TempPath == "" {
		return fmt.Errorf("storage paths must be set")
	}
	return nil
}

// UploadTTL returns the multipart TTL as a duration.
func (c *Config) UploadTTL() time.Duration {
	return time.Duration(c.Storage.Multipart.MaxUploadTTLSeconds) * time.Second
}

// SweepInterval returns the sweep interval as a duration.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Cleanup.SweepIntervalSeconds) * time.Second
}

// GracePeriod returns the sweeper grace period as a duration.
func (c *Config) GracePeriod() time.Duration {
	return time.Duration(c.Cleanup.GracePeriodSeconds) * time.Second
}

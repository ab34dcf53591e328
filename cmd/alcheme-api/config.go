// Copyright 2026 The Alcheme Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the service configuration, loaded from a single YAML file
// named by the --config flag. No discovery, no fallbacks: the running
// config is always the file the operator pointed at.
type Config struct {
	// Listen is the HTTP listen address, e.g. ":8080".
	Listen string `yaml:"listen"`

	// LogLevel is one of debug, info, warn, error. Defaults to info.
	LogLevel string `yaml:"log_level"`

	// Store configures the document store.
	Store StoreConfig `yaml:"store"`

	// Session configures session-cookie minting and verification.
	Session SessionConfig `yaml:"session"`

	// Identity configures verification of identity-provider tokens
	// presented on session exchange.
	Identity IdentityConfig `yaml:"identity"`

	// Agent configures the upstream agent service client.
	Agent AgentConfig `yaml:"agent"`
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path     string `yaml:"path"`
	PoolSize int    `yaml:"pool_size"`
}

// SessionConfig holds the session signing keypair. Key files contain
// the base64 raw key bytes (64 for the private key, 32 for the
// public).
type SessionConfig struct {
	PrivateKeyPath string `yaml:"private_key_path"`
	PublicKeyPath  string `yaml:"public_key_path"`

	// Lifetime of minted sessions and their cookie. Zero selects the
	// five-day default.
	Lifetime Duration `yaml:"lifetime"`
}

// IdentityConfig holds the identity provider's verification key.
type IdentityConfig struct {
	PublicKeyPath string `yaml:"public_key_path"`
}

// AgentConfig points at the agent service. The API key is named by
// environment variable rather than stored in the file, so configs can
// be committed.
type AgentConfig struct {
	BaseURL        string   `yaml:"base_url"`
	APIKeyEnv      string   `yaml:"api_key_env"`
	ConnectTimeout Duration `yaml:"connect_timeout"`
	StreamTimeout  Duration `yaml:"stream_timeout"`
}

// Duration is a time.Duration that unmarshals from YAML strings like
// "30s" or "2m30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var text string
	if err := value.Decode(&text); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// LoadConfig reads and validates the configuration file.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(string(raw)))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Listen == "" {
		cfg.Listen = ":8080"
	}
	if cfg.Store.Path == "" {
		return nil, fmt.Errorf("config %s: store.path is required", path)
	}
	if cfg.Session.PrivateKeyPath == "" || cfg.Session.PublicKeyPath == "" {
		return nil, fmt.Errorf("config %s: session key paths are required", path)
	}
	if cfg.Identity.PublicKeyPath == "" {
		return nil, fmt.Errorf("config %s: identity.public_key_path is required", path)
	}
	if cfg.Agent.BaseURL == "" {
		return nil, fmt.Errorf("config %s: agent.base_url is required", path)
	}
	return &cfg, nil
}

// AgentAPIKey resolves the agent API key from the configured
// environment variable. Empty when no variable is configured.
func (c *Config) AgentAPIKey() string {
	if c.Agent.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.Agent.APIKeyEnv)
}

// loadPrivateKey reads a base64 ed25519 private key file.
func loadPrivateKey(path string) (ed25519.PrivateKey, error) {
	raw, err := loadKeyBytes(path)
	if err != nil {
		return nil, err
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("key %s: got %d bytes, want %d", path, len(raw), ed25519.PrivateKeySize)
	}
	return ed25519.PrivateKey(raw), nil
}

// loadPublicKey reads a base64 ed25519 public key file.
func loadPublicKey(path string) (ed25519.PublicKey, error) {
	raw, err := loadKeyBytes(path)
	if err != nil {
		return nil, err
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("key %s: got %d bytes, want %d", path, len(raw), ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(raw), nil
}

func loadKeyBytes(path string) ([]byte, error) {
	encoded, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(encoded)))
	if err != nil {
		return nil, fmt.Errorf("key %s: decoding base64: %w", path, err)
	}
	return raw, nil
}

// logLevel maps the config string to a slog level.
func logLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
}

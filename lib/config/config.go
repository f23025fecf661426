// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/concord-chat/concord/lib/ref"
)

// EnvConfigPath is the environment variable naming the config file
// when the --config flag is not given.
const EnvConfigPath = "CONCORD_CONFIG"

// Config is the tool's full configuration. Zero fields fall back to
// the defaults documented per field.
type Config struct {
	// HomeserverURL is the base URL of the Matrix homeserver.
	HomeserverURL string `yaml:"homeserver_url"`

	// Space is the space room: a room ID ("!...") or alias ("#...").
	Space string `yaml:"space"`

	// UserID is the Matrix user the tool acts as.
	UserID string `yaml:"user_id"`

	// TokenEnv names the environment variable holding the access
	// token. Defaults to CONCORD_ACCESS_TOKEN. The token itself never
	// appears in the file.
	TokenEnv string `yaml:"token_env"`

	// SystemActor is the identity recorded on scheduler-initiated
	// audit entries. Defaults to UserID.
	SystemActor string `yaml:"system_actor"`

	Audit AuditConfig `yaml:"audit"`

	// BulkConcurrency caps parallel backend calls in bulk moderation.
	// Zero uses the engine default.
	BulkConcurrency int `yaml:"bulk_concurrency"`

	// ExpiryInterval is the timed ban expiry poll interval. Zero uses
	// the engine default.
	ExpiryInterval Duration `yaml:"expiry_interval"`

	// Environments holds named override sets applied by Load when an
	// environment is selected.
	Environments map[string]Overrides `yaml:"environments,omitempty"`
}

// AuditConfig configures the audit store.
type AuditConfig struct {
	// Path is the SQLite database file. Required.
	Path string `yaml:"path"`

	// PoolSize is the connection pool size. Zero uses the store
	// default.
	PoolSize int `yaml:"pool_size"`
}

// Overrides is the subset of Config an environment may replace.
// Non-zero fields win over the base configuration.
type Overrides struct {
	HomeserverURL   string        `yaml:"homeserver_url,omitempty"`
	Space           string        `yaml:"space,omitempty"`
	UserID          string        `yaml:"user_id,omitempty"`
	TokenEnv        string        `yaml:"token_env,omitempty"`
	AuditPath       string   `yaml:"audit_path,omitempty"`
	BulkConcurrency int      `yaml:"bulk_concurrency,omitempty"`
	ExpiryInterval  Duration `yaml:"expiry_interval,omitempty"`
}

// Duration is a time.Duration that unmarshals from YAML duration
// strings ("90s", "5m") as well as integer nanoseconds.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err == nil {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", raw, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var nanos int64
	if err := value.Decode(&nanos); err != nil {
		return fmt.Errorf("invalid duration %q", value.Value)
	}
	*d = Duration(nanos)
	return nil
}

// MarshalYAML implements yaml.Marshaler; durations serialize as
// strings.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// DefaultTokenEnv is the access token variable when token_env is not
// set.
const DefaultTokenEnv = "CONCORD_ACCESS_TOKEN"

// Load reads and validates the config file at path, then applies the
// named environment's overrides. An empty environment applies none;
// naming an environment the file does not define is an error.
func Load(path, environment string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if environment != "" {
		overrides, ok := cfg.Environments[environment]
		if !ok {
			return nil, fmt.Errorf("config: %s defines no environment %q", path, environment)
		}
		cfg.apply(overrides)
	}
	cfg.Environments = nil

	if cfg.TokenEnv == "" {
		cfg.TokenEnv = DefaultTokenEnv
	}
	if cfg.SystemActor == "" {
		cfg.SystemActor = cfg.UserID
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &cfg, nil
}

// PathFromEnv returns the config path from CONCORD_CONFIG, or an
// error when unset.
func PathFromEnv() (string, error) {
	path := os.Getenv(EnvConfigPath)
	if path == "" {
		return "", fmt.Errorf("config: %s is not set and no --config flag was given", EnvConfigPath)
	}
	return path, nil
}

// apply copies non-zero override fields over the base config.
func (c *Config) apply(overrides Overrides) {
	if overrides.HomeserverURL != "" {
		c.HomeserverURL = overrides.HomeserverURL
	}
	if overrides.Space != "" {
		c.Space = overrides.Space
	}
	if overrides.UserID != "" {
		c.UserID = overrides.UserID
	}
	if overrides.TokenEnv != "" {
		c.TokenEnv = overrides.TokenEnv
	}
	if overrides.AuditPath != "" {
		c.Audit.Path = overrides.AuditPath
	}
	if overrides.BulkConcurrency != 0 {
		c.BulkConcurrency = overrides.BulkConcurrency
	}
	if overrides.ExpiryInterval != 0 {
		c.ExpiryInterval = overrides.ExpiryInterval
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	switch {
	case c.HomeserverURL == "":
		errs = append(errs, fmt.Errorf("homeserver_url is required"))
	default:
		if parsed, err := url.Parse(c.HomeserverURL); err != nil {
			errs = append(errs, fmt.Errorf("homeserver_url: %w", err))
		} else if parsed.Scheme != "http" && parsed.Scheme != "https" {
			errs = append(errs, fmt.Errorf("homeserver_url: scheme must be http or https, got %q", parsed.Scheme))
		}
	}

	if c.Space == "" {
		errs = append(errs, fmt.Errorf("space is required"))
	} else if c.Space[0] != '!' && c.Space[0] != '#' {
		errs = append(errs, fmt.Errorf("space %q: want a room ID (!...) or alias (#...)", c.Space))
	}

	if c.UserID == "" {
		errs = append(errs, fmt.Errorf("user_id is required"))
	} else if _, err := ref.ParseUserID(c.UserID); err != nil {
		errs = append(errs, fmt.Errorf("user_id: %w", err))
	}

	if c.SystemActor != "" {
		if _, err := ref.ParseUserID(c.SystemActor); err != nil {
			errs = append(errs, fmt.Errorf("system_actor: %w", err))
		}
	}

	if c.Audit.Path == "" {
		errs = append(errs, fmt.Errorf("audit.path is required"))
	}
	if c.BulkConcurrency < 0 {
		errs = append(errs, fmt.Errorf("bulk_concurrency must not be negative"))
	}
	if c.ExpiryInterval < 0 {
		errs = append(errs, fmt.Errorf("expiry_interval must not be negative"))
	}

	return errors.Join(errs...)
}

// AccessToken reads the token from the configured environment
// variable.
func (c *Config) AccessToken() (string, error) {
	token := os.Getenv(c.TokenEnv)
	if token == "" {
		return "", fmt.Errorf("config: access token variable %s is empty", c.TokenEnv)
	}
	return token, nil
}

// Package config assembles runtime settings from defaults, an optional YAML
// file and WAYPOINT_* environment variables. Command-line flags are applied on
// top by cmd/waypoint.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/aretw0/waypoint/internal/logging"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces environment overrides, e.g. WAYPOINT_BACKEND_URL.
const EnvPrefix = "WAYPOINT"

// Config holds every setting the CLI and server need.
type Config struct {
	BackendURL     string        `yaml:"backend_url" split_words:"true"`
	BackendPath    string        `yaml:"backend_path" split_words:"true"`
	BackendTimeout time.Duration `yaml:"backend_timeout" split_words:"true"`

	Port      int    `yaml:"port"`
	LogLevel  string `yaml:"log_level" split_words:"true"`
	LogFormat string `yaml:"log_format" split_words:"true"`

	MetricsEnabled bool `yaml:"metrics_enabled" split_words:"true"`

	RedisAddr     string        `yaml:"redis_addr" split_words:"true"`
	RedisPassword string        `yaml:"redis_password" split_words:"true"`
	RedisDB       int           `yaml:"redis_db" split_words:"true"`
	RedisTTL      time.Duration `yaml:"redis_ttl" split_words:"true"`
	RedisPrefix   string        `yaml:"redis_prefix" split_words:"true"`

	// PlanDir stores plans as JSON files when Redis is not configured.
	PlanDir string `yaml:"plan_dir" split_words:"true"`

	// EncryptionKey is a base64 AES-256 key. When set, stored plans are encrypted at rest.
	EncryptionKey          string   `yaml:"encryption_key" split_words:"true"`
	EncryptionFallbackKeys []string `yaml:"encryption_fallback_keys" split_words:"true"`

	GeocoderURL string `yaml:"geocoder_url" split_words:"true"`
	CatalogDir  string `yaml:"catalog_dir" split_words:"true"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		BackendURL:     "http://localhost:1416",
		BackendPath:    "/generate_action_plan/run",
		BackendTimeout: 60 * time.Second,
		Port:           8080,
		LogLevel:       "info",
		LogFormat:      "text",
		MetricsEnabled: true,
		RedisTTL:       24 * time.Hour,
		RedisPrefix:    "waypoint:plan:",
		GeocoderURL:    "https://geocoding.geo.census.gov",
	}
}

// Load returns Default overlaid with the YAML file at path (when non-empty)
// and then the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate rejects settings that would only fail later at request time.
func (c Config) Validate() error {
	if c.BackendURL != "" {
		u, err := url.Parse(c.BackendURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid backend_url %q", c.BackendURL)
		}
	}
	if c.BackendTimeout <= 0 {
		return fmt.Errorf("backend_timeout must be positive, got %s", c.BackendTimeout)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log_format %q (want text or json)", c.LogFormat)
	}
	if c.RedisTTL < 0 {
		return fmt.Errorf("redis_ttl must not be negative, got %s", c.RedisTTL)
	}
	return nil
}

// RedisEnabled reports whether plans should be persisted in Redis.
func (c Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

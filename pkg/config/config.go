// Package config provides unified configuration for the kirogate gateway.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (KIROGATE_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the kirogate gateway.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Upstream      UpstreamConfig      `yaml:"upstream"`
	Storage       StorageConfig       `yaml:"storage"`
	Auth          AuthConfig          `yaml:"auth"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 30s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 0 (streams must not be cut off)
	MaxBodySize     int64         `yaml:"max_body_size"`    // default: 10 MiB
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 10s
}

// UpstreamConfig holds Kiro backend connection settings.
type UpstreamConfig struct {
	BaseURL        string            `yaml:"base_url"`        // required
	ProfileArn     string            `yaml:"profile_arn"`     // optional
	TokenFile      string            `yaml:"token_file"`      // required: path to the credentials JSON
	RefreshURL     string            `yaml:"refresh_url"`     // optional: token refresh endpoint
	DefaultModel   string            `yaml:"default_model"`   // optional
	ModelMap       map[string]string `yaml:"model_map"`       // client model name -> upstream model ID
	ConnectTimeout time.Duration     `yaml:"connect_timeout"` // time to first byte, default: 30s
}

// StorageConfig holds usage accounting storage settings.
type StorageConfig struct {
	Type     string         `yaml:"type"`     // "memory" or "postgres", default: "memory"
	MaxSize  int            `yaml:"max_size"` // for memory store, default: 10000
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string        `yaml:"dsn"`
	DSNFile        string        `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32         `yaml:"max_conns"`        // default: 25
	MinConns       int32         `yaml:"min_conns"`        // default: 5
	ConnLifetime   time.Duration `yaml:"conn_lifetime"`    // default: 5m
	MigrateOnStart bool          `yaml:"migrate_on_start"` // default: false
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	Type      string          `yaml:"type"`       // "none", "apikey", default: "none"
	APIKeys   []APIKeyConfig  `yaml:"api_keys"`   // API key entries for type=apikey
	RateLimit RateLimitConfig `yaml:"rate_limit"` // per-tier request budgets
}

// RateLimitConfig holds per-tier request budgets. Budgets are counted
// per tenant (falling back to subject) per minute; zero means
// unlimited.
type RateLimitConfig struct {
	Enabled    bool           `yaml:"enabled"`
	DefaultRPM int            `yaml:"default_rpm"` // fallback for tiers not listed
	Tiers      map[string]int `yaml:"tiers"`       // tier name -> requests per minute
}

// APIKeyConfig describes a single API key entry. The json tags carry
// the KIROGATE_API_KEYS env override, which is a JSON array.
type APIKeyConfig struct {
	Key         string `yaml:"key" json:"key"`
	KeyFile     string `yaml:"key_file" json:"key_file"` // _file variant for key
	Subject     string `yaml:"subject" json:"subject"`
	TenantID    string `yaml:"tenant_id" json:"tenant_id"`
	ServiceTier string `yaml:"service_tier" json:"service_tier"`
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			MaxBodySize:     10 << 20,
			ShutdownTimeout: 10 * time.Second,
		},
		Upstream: UpstreamConfig{
			ConnectTimeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			Type:    "memory",
			MaxSize: 10000,
			Postgres: PostgresConfig{
				MaxConns: 25,
			},
		},
		Auth: AuthConfig{
			Type: "none",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load builds the effective configuration: defaults, then the YAML file
// (explicit path, KIROGATE_CONFIG, ./config.yaml,
// /etc/kirogate/config.yaml), then KIROGATE_* environment overrides,
// then _file secret indirection, then validation.
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	if path := findConfigFile(configPath); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
		// Fields absent from the YAML keep their defaults.
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return &cfg, nil
}

// findConfigFile resolves the config file path, or "" to run on
// defaults and environment alone. An explicit path and KIROGATE_CONFIG
// are trusted as given; the well-known locations must exist to be
// chosen.
func findConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv("KIROGATE_CONFIG"); envPath != "" {
		return envPath
	}
	for _, path := range []string{"config.yaml", "/etc/kirogate/config.yaml"} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// applyEnvOverrides layers KIROGATE_* variables over whatever the YAML
// set. Unparseable numeric or duration values are ignored, keeping the
// prior value.
func applyEnvOverrides(cfg *Config) {
	for _, s := range []struct {
		env    string
		target *string
	}{
		{"KIROGATE_UPSTREAM_URL", &cfg.Upstream.BaseURL},
		{"KIROGATE_PROFILE_ARN", &cfg.Upstream.ProfileArn},
		{"KIROGATE_TOKEN_FILE", &cfg.Upstream.TokenFile},
		{"KIROGATE_REFRESH_URL", &cfg.Upstream.RefreshURL},
		{"KIROGATE_MODEL", &cfg.Upstream.DefaultModel},
		{"KIROGATE_STORAGE", &cfg.Storage.Type},
		{"KIROGATE_POSTGRES_DSN", &cfg.Storage.Postgres.DSN},
		{"KIROGATE_AUTH_TYPE", &cfg.Auth.Type},
	} {
		if v := os.Getenv(s.env); v != "" {
			*s.target = v
		}
	}

	if v := os.Getenv("KIROGATE_CONNECT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Upstream.ConnectTimeout = d
		}
	}
	if v := os.Getenv("KIROGATE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("KIROGATE_STORAGE_SIZE"); v != "" {
		if size, err := strconv.Atoi(v); err == nil {
			cfg.Storage.MaxSize = size
		}
	}

	// KIROGATE_API_KEYS: JSON array of API key entries.
	if v := os.Getenv("KIROGATE_API_KEYS"); v != "" {
		if keys, err := parseAPIKeysJSON(v); err == nil && len(keys) > 0 {
			cfg.Auth.APIKeys = keys
		}
	}

	// KIROGATE_RATE_LIMIT_RPM: default per-minute budget; enables limiting.
	if v := os.Getenv("KIROGATE_RATE_LIMIT_RPM"); v != "" {
		if rpm, err := strconv.Atoi(v); err == nil && rpm > 0 {
			cfg.Auth.RateLimit.Enabled = true
			cfg.Auth.RateLimit.DefaultRPM = rpm
		}
	}

	// KIROGATE_MODEL_MAP: JSON object of client model -> upstream model ID.
	if v := os.Getenv("KIROGATE_MODEL_MAP"); v != "" {
		var m map[string]string
		if err := json.Unmarshal([]byte(v), &m); err == nil && len(m) > 0 {
			cfg.Upstream.ModelMap = m
		}
	}
}

func parseAPIKeysJSON(raw string) ([]APIKeyConfig, error) {
	var keys []APIKeyConfig
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, fmt.Errorf("parsing API keys JSON: %w", err)
	}
	return keys, nil
}

// resolveFileReferences fills value fields from their _file companions:
// the file is read, whitespace-trimmed, and used only when the value
// itself is unset. Keeps credentials out of YAML and environment.
func resolveFileReferences(cfg *Config) error {
	pg := &cfg.Storage.Postgres
	if pg.DSNFile != "" && pg.DSN == "" {
		dsn, err := readSecret(pg.DSNFile)
		if err != nil {
			return fmt.Errorf("storage.postgres.dsn_file: %w", err)
		}
		pg.DSN = dsn
	}

	for i := range cfg.Auth.APIKeys {
		entry := &cfg.Auth.APIKeys[i]
		if entry.KeyFile == "" || entry.Key != "" {
			continue
		}
		key, err := readSecret(entry.KeyFile)
		if err != nil {
			return fmt.Errorf("auth.api_keys[%d].key_file: %w", i, err)
		}
		entry.Key = key
	}
	return nil
}

func readSecret(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

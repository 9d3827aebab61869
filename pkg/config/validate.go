package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	// upstream.base_url is required.
	if c.Upstream.BaseURL == "" {
		errs = append(errs, fmt.Errorf("upstream.base_url is required"))
	}

	// upstream.token_file is required: there is no anonymous access to the backend.
	if c.Upstream.TokenFile == "" {
		errs = append(errs, fmt.Errorf("upstream.token_file is required"))
	}

	// server.port must be positive.
	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	// storage.type must be a known value.
	switch c.Storage.Type {
	case "memory", "postgres":
		// valid
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"memory\" or \"postgres\", got %q", c.Storage.Type))
	}

	// If storage.type is "postgres", DSN or DSNFile must be set.
	if c.Storage.Type == "postgres" {
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
	}

	// auth.type must be a known value.
	switch c.Auth.Type {
	case "none", "apikey":
		// valid
	default:
		errs = append(errs, fmt.Errorf("auth.type must be \"none\" or \"apikey\", got %q", c.Auth.Type))
	}

	if c.Auth.Type == "apikey" && len(c.Auth.APIKeys) == 0 {
		errs = append(errs, fmt.Errorf("auth.api_keys must not be empty when auth.type is \"apikey\""))
	}

	// Rate-limit budgets must not be negative; zero means unlimited.
	if c.Auth.RateLimit.DefaultRPM < 0 {
		errs = append(errs, fmt.Errorf("auth.rate_limit.default_rpm must be >= 0, got %d", c.Auth.RateLimit.DefaultRPM))
	}
	for tier, rpm := range c.Auth.RateLimit.Tiers {
		if rpm < 0 {
			errs = append(errs, fmt.Errorf("auth.rate_limit.tiers[%q] must be >= 0, got %d", tier, rpm))
		}
	}

	return errors.Join(errs...)
}

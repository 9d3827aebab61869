// Command server runs the kirogate gateway.
//
// Configuration is layered: built-in defaults, a YAML config file
// (-config flag, KIROGATE_CONFIG env, ./config.yaml, /etc/kirogate/config.yaml),
// then KIROGATE_* environment variable overrides. See pkg/config.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirogate/kirogate/pkg/auth"
	"github.com/kirogate/kirogate/pkg/auth/apikey"
	"github.com/kirogate/kirogate/pkg/auth/noop"
	"github.com/kirogate/kirogate/pkg/config"
	"github.com/kirogate/kirogate/pkg/debug"
	"github.com/kirogate/kirogate/pkg/engine"
	"github.com/kirogate/kirogate/pkg/observability"
	"github.com/kirogate/kirogate/pkg/provider"
	"github.com/kirogate/kirogate/pkg/provider/kiro"
	"github.com/kirogate/kirogate/pkg/storage"
	"github.com/kirogate/kirogate/pkg/storage/memory"
	"github.com/kirogate/kirogate/pkg/storage/postgres"
	"github.com/kirogate/kirogate/pkg/transport"
	transporthttp "github.com/kirogate/kirogate/pkg/transport/http"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	debug.Init("", "")

	if err := run(*configPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := slog.Default()

	// Upstream token source.
	tokens, err := kiro.NewFileTokenSource(kiro.FileTokenSourceConfig{
		Path:       cfg.Upstream.TokenFile,
		RefreshURL: cfg.Upstream.RefreshURL,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("creating token source: %w", err)
	}

	// Upstream provider.
	var observer provider.Observer
	if debug.WireObserverEnabled() {
		observer = debug.WireObserver{}
	}
	prov, err := kiro.New(kiro.Config{
		BaseURL:        cfg.Upstream.BaseURL,
		ProfileArn:     cfg.Upstream.ProfileArn,
		Tokens:         tokens,
		ModelMap:       cfg.Upstream.ModelMap,
		ConnectTimeout: cfg.Upstream.ConnectTimeout,
		Observer:       observer,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("creating provider: %w", err)
	}
	defer prov.Close()

	// Usage store.
	store, err := buildStore(cfg)
	if err != nil {
		return fmt.Errorf("creating storage: %w", err)
	}
	defer store.Close()

	// Engine.
	eng, err := engine.New(prov, store, engine.Config{
		DefaultModel: cfg.Upstream.DefaultModel,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	// HTTP adapter with the default transport middleware.
	adapter := transporthttp.NewAdapter(eng, []transporthttp.HealthChecker{store},
		transporthttp.Config{MaxBodySize: cfg.Server.MaxBodySize},
		transport.Recovery(),
		transport.RequestID(),
		transport.Logging(logger),
	)

	handler := buildAuthMiddleware(cfg)(adapter.Handler())
	handler = observability.MetricsMiddleware(handler)

	mux := http.NewServeMux()
	mux.Handle("/", handler)
	if cfg.Observability.Metrics.Enabled {
		mux.Handle("GET "+cfg.Observability.Metrics.Path, promhttp.Handler())
	}

	logger.Info("gateway configured",
		"port", cfg.Server.Port,
		"upstream", cfg.Upstream.BaseURL,
		"storage", cfg.Storage.Type,
		"auth", cfg.Auth.Type,
		"rate_limit", cfg.Auth.RateLimit.Enabled)

	srv := transporthttp.NewServer(mux, transporthttp.ServerConfig{
		Addr:            fmt.Sprintf(":%d", cfg.Server.Port),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Logger:          logger,
	})
	return srv.ListenAndServe()
}

func buildStore(cfg *config.Config) (storage.UsageStore, error) {
	switch cfg.Storage.Type {
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return postgres.New(ctx, postgres.Config{
			DSN:             cfg.Storage.Postgres.DSN,
			MaxConns:        cfg.Storage.Postgres.MaxConns,
			MinConns:        cfg.Storage.Postgres.MinConns,
			MaxConnLifetime: cfg.Storage.Postgres.ConnLifetime,
			MigrateOnStart:  cfg.Storage.Postgres.MigrateOnStart,
		})
	default:
		return memory.New(cfg.Storage.MaxSize), nil
	}
}

func buildAuthMiddleware(cfg *config.Config) func(http.Handler) http.Handler {
	bypass := append([]string{}, auth.DefaultBypassEndpoints...)
	if cfg.Observability.Metrics.Enabled {
		bypass = append(bypass, cfg.Observability.Metrics.Path)
	}
	limiter := buildRateLimiter(cfg)

	if cfg.Auth.Type != "apikey" {
		chain := &auth.Chain{
			Authenticators:  []auth.Authenticator{noop.New()},
			DefaultDecision: auth.Yes,
		}
		return auth.Middleware(chain, limiter, bypass)
	}

	entries := make([]apikey.RawKeyEntry, 0, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		tier := k.ServiceTier
		if tier == "" {
			tier = "default"
		}
		subject := k.Subject
		if subject == "" {
			subject = "api-key"
		}
		entry := apikey.RawKeyEntry{
			Key: k.Key,
			Identity: auth.Identity{
				Subject:     subject,
				ServiceTier: tier,
			},
		}
		if k.TenantID != "" {
			entry.Identity.Metadata = map[string]string{"tenant_id": k.TenantID}
		}
		entries = append(entries, entry)
	}

	chain := &auth.Chain{
		Authenticators:  []auth.Authenticator{apikey.New(entries)},
		DefaultDecision: auth.No,
	}
	return auth.Middleware(chain, limiter, bypass)
}

// buildRateLimiter turns the configured tier budgets into an in-process
// limiter, or nil when limiting is disabled.
func buildRateLimiter(cfg *config.Config) auth.RateLimiter {
	rl := cfg.Auth.RateLimit
	if !rl.Enabled {
		return nil
	}
	tiers := make(map[string]auth.TierConfig, len(rl.Tiers))
	for name, rpm := range rl.Tiers {
		tiers[name] = auth.TierConfig{RequestsPerMinute: rpm}
	}
	return auth.NewInProcessLimiter(tiers, rl.DefaultRPM)
}

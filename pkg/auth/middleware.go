package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/kirogate/kirogate/pkg/api"
	"github.com/kirogate/kirogate/pkg/observability"
	"github.com/kirogate/kirogate/pkg/storage"
)

// DefaultBypassEndpoints skip authentication entirely.
var DefaultBypassEndpoints = []string{"/health", "/metrics"}

// Middleware builds the HTTP auth layer: bypass check, chain vote,
// rate-limit check, then identity and tenant injection into the request
// context. A nil limiter disables rate limiting.
func Middleware(chain *Chain, limiter RateLimiter, bypassEndpoints []string) func(http.Handler) http.Handler {
	bypass := make(map[string]bool, len(bypassEndpoints))
	for _, ep := range bypassEndpoints {
		bypass[ep] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bypass[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			result := chain.Authenticate(r.Context(), r)
			switch {
			case result.Decision == No:
				slog.Warn("authentication failed",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", result.Err)
				writeAuthError(w, api.NewAuthenticationError("invalid or missing credentials"))
				return
			case result.Decision != Yes || result.Identity == nil:
				writeAuthError(w, api.NewAuthenticationError("invalid or missing credentials"))
				return
			case result.Identity.Subject == "":
				slog.Error("authenticator returned identity with empty subject")
				writeAuthError(w, api.NewAPIErrorf("internal authentication error"))
				return
			}

			slog.Debug("authentication succeeded",
				"subject", result.Identity.Subject,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr)

			if limiter != nil {
				if err := limiter.Allow(r.Context(), result.Identity); err != nil {
					slog.Warn("rate limit exceeded",
						"subject", result.Identity.Subject,
						"tier", result.Identity.ServiceTier)
					observability.RateLimitRejectedTotal.WithLabelValues(result.Identity.ServiceTier).Inc()
					writeAuthError(w, api.NewRateLimitError("rate limit exceeded"))
					return
				}
			}

			ctx := WithIdentity(r.Context(), result.Identity)
			if tenantID := result.Identity.TenantID(); tenantID != "" {
				ctx = storage.SetTenant(ctx, tenantID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeAuthError(w http.ResponseWriter, apiErr *api.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.HTTPStatus())
	json.NewEncoder(w).Encode(api.NewErrorResponse(apiErr))
}

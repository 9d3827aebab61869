package kiro

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSource yields a bearer token for upstream requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource returns the same token forever. Useful for tests
// and short-lived tooling.
type StaticTokenSource struct {
	token string
}

// NewStaticTokenSource wraps a fixed token.
func NewStaticTokenSource(token string) *StaticTokenSource {
	return &StaticTokenSource{token: token}
}

func (s *StaticTokenSource) Token(context.Context) (string, error) {
	return s.token, nil
}

// credentialsFile mirrors the Kiro SSO token cache format.
type credentialsFile struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresAt    string `json:"expiresAt,omitempty"`
}

// FileTokenSource reads credentials from a JSON token cache file and
// refreshes the access token against the Kiro auth endpoint when it is
// close to expiry. Refreshed credentials are written back to the file
// so other consumers of the cache see the new token.
//
// Expiry is taken from the file's expiresAt field; when absent, the
// exp claim of the access token itself is used. The token is treated
// as a signed statement from the auth service; its signature is the
// upstream's problem, so the claim is read without verification.
type FileTokenSource struct {
	path       string
	refreshURL string
	margin     time.Duration
	httpClient *http.Client
	logger     *slog.Logger

	mu        sync.Mutex
	token     string
	refresh   string
	expiresAt time.Time
}

// FileTokenSourceConfig configures a FileTokenSource.
type FileTokenSourceConfig struct {
	// Path is the token cache file.
	Path string

	// RefreshURL is the endpoint refresh requests are posted to.
	// Empty disables refreshing; expired tokens are then an error.
	RefreshURL string

	// Margin is how long before expiry a refresh is attempted.
	// Defaults to 5 minutes.
	Margin time.Duration

	// HTTPClient overrides the client used for refresh calls.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// NewFileTokenSource creates a refreshing token source backed by the
// given cache file.
func NewFileTokenSource(cfg FileTokenSourceConfig) (*FileTokenSource, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("kiro auth: token file path is required")
	}
	if cfg.Margin <= 0 {
		cfg.Margin = 5 * time.Minute
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &FileTokenSource{
		path:       cfg.Path,
		refreshURL: cfg.RefreshURL,
		margin:     cfg.Margin,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
	}, nil
}

// Token returns a valid access token, reloading the cache file and
// refreshing against the auth endpoint as needed.
func (s *FileTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && time.Until(s.expiresAt) > s.margin {
		return s.token, nil
	}

	if err := s.load(); err != nil {
		return "", err
	}
	if time.Until(s.expiresAt) > s.margin {
		return s.token, nil
	}

	if s.refreshURL == "" || s.refresh == "" {
		// Opaque tokens with no expiry metadata are used as-is.
		if s.expiresAt.IsZero() || time.Now().Before(s.expiresAt) {
			return s.token, nil
		}
		return "", fmt.Errorf("kiro auth: token expired at %s and no refresh is configured", s.expiresAt.Format(time.RFC3339))
	}
	if err := s.doRefresh(ctx); err != nil {
		return "", err
	}
	return s.token, nil
}

func (s *FileTokenSource) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("kiro auth: read token file: %w", err)
	}
	var creds credentialsFile
	if err := json.Unmarshal(data, &creds); err != nil {
		return fmt.Errorf("kiro auth: parse token file: %w", err)
	}
	if creds.AccessToken == "" {
		return fmt.Errorf("kiro auth: token file has no accessToken")
	}
	s.token = creds.AccessToken
	s.refresh = creds.RefreshToken
	s.expiresAt = tokenExpiry(creds)
	return nil
}

func (s *FileTokenSource) doRefresh(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{"refreshToken": s.refresh})
	if err != nil {
		return fmt.Errorf("kiro auth: encode refresh request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.refreshURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("kiro auth: build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("kiro auth: refresh request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("kiro auth: refresh returned status %d", resp.StatusCode)
	}

	var result struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
		ExpiresAt    string `json:"expiresAt"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("kiro auth: decode refresh response: %w", err)
	}
	if result.AccessToken == "" {
		return fmt.Errorf("kiro auth: refresh response has no accessToken")
	}

	s.token = result.AccessToken
	if result.RefreshToken != "" {
		s.refresh = result.RefreshToken
	}
	creds := credentialsFile{
		AccessToken:  s.token,
		RefreshToken: s.refresh,
		ExpiresAt:    result.ExpiresAt,
	}
	s.expiresAt = tokenExpiry(creds)

	if data, err := json.MarshalIndent(creds, "", "  "); err == nil {
		if err := os.WriteFile(s.path, data, 0o600); err != nil {
			s.logger.Warn("could not persist refreshed credentials", "path", s.path, "error", err)
		}
	}
	s.logger.Info("refreshed kiro access token", "expires_at", s.expiresAt.Format(time.RFC3339))
	return nil
}

// tokenExpiry determines when credentials lapse: the explicit
// expiresAt when present, the JWT exp claim otherwise. Unknowable
// expiry is reported as the zero time, which always reads as expired
// and forces a refresh attempt.
func tokenExpiry(creds credentialsFile) time.Time {
	if creds.ExpiresAt != "" {
		if t, err := time.Parse(time.RFC3339, creds.ExpiresAt); err == nil {
			return t
		}
	}
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(creds.AccessToken, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

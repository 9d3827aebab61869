// Package apikey provides an API key authenticator that validates keys
// from the x-api-key header (the Anthropic client convention), with
// Authorization: Bearer as a fallback, against a static key store using
// SHA-256 hashing and constant-time comparison.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/kirogate/kirogate/pkg/auth"
)

// KeyEntry maps a key hash to an identity.
type KeyEntry struct {
	KeyHash  [32]byte
	Identity auth.Identity
}

// Authenticator validates API keys against a static key store.
type Authenticator struct {
	keys []KeyEntry
}

// RawKeyEntry is the configuration format for API keys.
type RawKeyEntry struct {
	Key      string
	Identity auth.Identity
}

// New creates an API key authenticator from a list of raw keys and
// identities. Keys are hashed immediately; plaintext keys are not stored.
func New(entries []RawKeyEntry) *Authenticator {
	a := &Authenticator{}
	for _, e := range entries {
		a.keys = append(a.keys, KeyEntry{
			KeyHash:  sha256.Sum256([]byte(e.Key)),
			Identity: e.Identity,
		})
	}
	return a
}

// Authenticate extracts the API key and validates it. The x-api-key
// header takes precedence; a Bearer token is accepted as a fallback.
// Returns Yes if valid, No if a key is present but invalid, Abstain if
// the request carries no recognizable credentials.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.Result {
	key := r.Header.Get("x-api-key")
	if key == "" {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			return auth.Result{Decision: auth.Abstain}
		}
		key = strings.TrimPrefix(header, "Bearer ")
	}
	if key == "" {
		return auth.Result{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}

	keyHash := sha256.Sum256([]byte(key))
	for _, entry := range a.keys {
		if subtle.ConstantTimeCompare(keyHash[:], entry.KeyHash[:]) == 1 {
			// Copy identity to avoid shared state.
			id := entry.Identity
			return auth.Result{Decision: auth.Yes, Identity: &id}
		}
	}

	// Credentials present but not found.
	return auth.Result{Decision: auth.No, Err: auth.ErrUnauthenticated}
}

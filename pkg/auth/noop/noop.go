// Package noop provides a no-op authenticator that accepts all requests.
// Used for development and as a default voter in the auth chain.
package noop

import (
	"context"
	"net/http"

	"github.com/kirogate/kirogate/pkg/auth"
)

// Authenticator accepts every request with an anonymous identity.
type Authenticator struct{}

// New creates a no-op authenticator.
func New() *Authenticator { return &Authenticator{} }

// Authenticate always returns Yes with an anonymous identity.
func (a *Authenticator) Authenticate(context.Context, *http.Request) auth.Result {
	return auth.Result{
		Decision: auth.Yes,
		Identity: &auth.Identity{Subject: "anonymous", ServiceTier: "default"},
	}
}

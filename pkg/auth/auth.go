package auth

import (
	"context"
	"errors"
	"net/http"
)

// Decision is the outcome of one authenticator's vote.
type Decision int

const (
	// Yes: credentials are valid, stop the chain and use the identity.
	Yes Decision = iota

	// No: credentials are present but wrong, stop the chain and reject.
	No

	// Abstain: this authenticator does not handle the credential type,
	// let the next one vote.
	Abstain
)

// Result carries one authentication attempt's outcome.
type Result struct {
	Decision Decision
	Identity *Identity // set only on Yes
	Err      error     // set only on No
}

// Identity is the caller a request runs as. The transport layer puts it
// on the request context; usage records and rate limits are scoped by
// it.
type Identity struct {
	// Subject uniquely names the caller. Never empty on Yes.
	Subject string

	// ServiceTier selects the caller's rate-limit tier.
	ServiceTier string

	// Scopes lists granted authorization scopes.
	Scopes []string

	// Metadata carries provider-specific attributes. The "tenant_id"
	// key scopes usage accounting.
	Metadata map[string]string
}

// TenantID returns the tenant identifier from metadata, or "".
func (id *Identity) TenantID() string {
	if id == nil || id.Metadata == nil {
		return ""
	}
	return id.Metadata["tenant_id"]
}

// Authenticator examines request credentials and votes.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) Result
}

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("access denied")
	ErrTooManyRequests = errors.New("rate limit exceeded")
)

// Chain evaluates authenticators left to right, stopping at the first
// Yes or No. When every authenticator abstains the DefaultDecision
// applies: Yes grants an anonymous identity (open gateways), No rejects
// (API-key deployments).
type Chain struct {
	Authenticators  []Authenticator
	DefaultDecision Decision
}

// Authenticate runs the chain.
func (c *Chain) Authenticate(ctx context.Context, r *http.Request) Result {
	for _, authn := range c.Authenticators {
		if result := authn.Authenticate(ctx, r); result.Decision != Abstain {
			return result
		}
	}

	if c.DefaultDecision == Yes {
		return Result{
			Decision: Yes,
			Identity: &Identity{Subject: "anonymous", ServiceTier: "default"},
		}
	}
	return Result{Decision: No, Err: ErrUnauthenticated}
}

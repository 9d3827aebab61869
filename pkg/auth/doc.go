// Package auth guards the gateway's message endpoint.
//
// Authenticators form a chain with three-outcome voting: Yes accepts
// with an identity, No rejects, Abstain passes to the next voter. The
// chain's default decision applies when everyone abstains, so the same
// machinery serves open development gateways and API-key deployments.
//
// The package is plain HTTP middleware. Besides authentication it
// scopes the request context to the identity's tenant for usage
// accounting and enforces per-tier rate limits.
package auth

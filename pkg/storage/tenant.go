package storage

import "context"

type tenantKey struct{}

// SetTenant returns a context scoped to a tenant. The auth middleware
// sets this from the authenticated identity; usage records written
// under the context inherit the tenant.
func SetTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenantID)
}

// GetTenant returns the context's tenant, or "" in single-tenant mode.
func GetTenant(ctx context.Context) string {
	tenant, _ := ctx.Value(tenantKey{}).(string)
	return tenant
}

package auth

import "context"

type contextKey struct{}

var tenantKey contextKey

// WithTenant returns a context carrying the resolved tenant identity.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantKey, tenantID)
}

// TenantFrom returns the tenant identity placed in the context by the auth
// middleware, or "" if the request never passed authentication.
func TenantFrom(ctx context.Context) string {
	tenant, _ := ctx.Value(tenantKey).(string)
	return tenant
}

package auth

import (
	"net/http"
	"strings"

	"github.com/YibinLong/ZapStream/internal/apperr"
)

// Resolver maps opaque API credentials to tenant identities. The table is
// loaded once at startup and never mutated, so lookups need no locking.
type Resolver struct {
	tenants map[string]string
}

func NewResolver(table map[string]string) *Resolver {
	tenants := make(map[string]string, len(table))
	for key, tenant := range table {
		tenants[key] = tenant
	}
	return &Resolver{tenants: tenants}
}

// Resolve returns the tenant that owns the credential.
func (r *Resolver) Resolve(credential string) (string, error) {
	if credential == "" {
		return "", apperr.New(apperr.CodeUnauthenticated, "API key required")
	}
	tenant, ok := r.tenants[credential]
	if !ok {
		return "", apperr.New(apperr.CodeUnauthenticated, "invalid API key")
	}
	return tenant, nil
}

// Credential extracts the API key from a request. Precedence: Authorization
// bearer token, then X-API-Key header, then the api_key query parameter when
// allowQuery is set (stream endpoints only, where custom headers are not
// available to EventSource clients).
func Credential(r *http.Request, allowQuery bool) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") && token != "" {
			return token
		}
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	if allowQuery {
		return r.URL.Query().Get("api_key")
	}
	return ""
}

package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/YibinLong/ZapStream/internal/apperr"
	"github.com/YibinLong/ZapStream/internal/auth"
)

// Authenticate resolves the request credential to a tenant and injects it
// into the context. Unresolved credentials are rejected before any handler
// runs. allowQuery additionally accepts ?api_key=, for the stream endpoint
// where EventSource clients cannot set headers.
func Authenticate(resolver *auth.Resolver, allowQuery bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID, err := resolver.Resolve(auth.Credential(r, allowQuery))
			if err != nil {
				message := "authentication required"
				var ae *apperr.Error
				if errors.As(err, &ae) {
					message = ae.Message
				}

				w.Header().Set("WWW-Authenticate", "Bearer")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]string{
						"code":       string(apperr.CodeUnauthenticated),
						"message":    message,
						"request_id": chimiddleware.GetReqID(r.Context()),
					},
				})
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithTenant(r.Context(), tenantID)))
		})
	}
}

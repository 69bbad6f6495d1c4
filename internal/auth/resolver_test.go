package auth_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YibinLong/ZapStream/internal/apperr"
	"github.com/YibinLong/ZapStream/internal/auth"
)

func TestResolve(t *testing.T) {
	resolver := auth.NewResolver(map[string]string{
		"key_a": "tenant_a",
		"key_b": "tenant_b",
	})

	tenant, err := resolver.Resolve("key_a")
	require.NoError(t, err)
	assert.Equal(t, "tenant_a", tenant)

	_, err = resolver.Resolve("unknown")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeUnauthenticated, apperr.CodeOf(err))

	_, err = resolver.Resolve("")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeUnauthenticated, apperr.CodeOf(err))
}

func TestCredentialPrecedence(t *testing.T) {
	r := httptest.NewRequest("GET", "/inbox?api_key=query_key", nil)
	r.Header.Set("Authorization", "Bearer bearer_key")
	r.Header.Set("X-API-Key", "header_key")

	assert.Equal(t, "bearer_key", auth.Credential(r, true))

	r.Header.Del("Authorization")
	assert.Equal(t, "header_key", auth.Credential(r, true))

	r.Header.Del("X-API-Key")
	assert.Equal(t, "query_key", auth.Credential(r, true))
}

func TestCredentialQueryOnlyWhenAllowed(t *testing.T) {
	r := httptest.NewRequest("GET", "/inbox?api_key=query_key", nil)
	assert.Empty(t, auth.Credential(r, false))
}

func TestCredentialMalformedAuthorization(t *testing.T) {
	r := httptest.NewRequest("GET", "/inbox", nil)
	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	r.Header.Set("X-API-Key", "header_key")

	// A non-bearer Authorization header falls through to X-API-Key.
	assert.Equal(t, "header_key", auth.Credential(r, false))
}

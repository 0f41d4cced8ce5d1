package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/gift-exchange/internal/config"
)

func TestTokenRoundTrip(t *testing.T) {
	v := NewVerifier(config.AuthConfig{Enabled: true, SigningSecret: "test-secret"})

	token := v.Token("Organizer@Example.com")
	email, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "organizer@example.com", email)
}

func TestVerifyRejectsTampering(t *testing.T) {
	v := NewVerifier(config.AuthConfig{Enabled: true, SigningSecret: "test-secret"})
	other := NewVerifier(config.AuthConfig{Enabled: true, SigningSecret: "other-secret"})

	_, err := v.Verify("not-a-token")
	assert.Error(t, err)

	_, err = v.Verify(other.Token("organizer@example.com"))
	assert.Error(t, err, "token signed with a different secret")

	token := v.Token("a@example.com")
	_, err = v.Verify("b@example.com" + token[len("a@example.com"):])
	assert.Error(t, err, "email swapped under existing signature")
}

func callerEcho() (http.Handler, *string) {
	var got string
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = CallerFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}), &got
}

func TestMiddlewareEnabled(t *testing.T) {
	v := NewVerifier(config.AuthConfig{Enabled: true, SigningSecret: "test-secret"})
	next, got := callerEcho()
	h := v.Middleware(next)

	// No header.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Valid bearer token.
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.Header.Set("Authorization", "Bearer "+v.Token("organizer@example.com"))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "organizer@example.com", *got)
}

func TestMiddlewareDevMode(t *testing.T) {
	v := NewVerifier(config.AuthConfig{Enabled: false})
	next, got := callerEcho()
	h := v.Middleware(next)

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.Header.Set("X-Dev-Email", "Someone@Example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "someone@example.com", *got)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	assert.Equal(t, "dev@localhost", *got)
}

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AshishSahani0/saarthi-portal/internal/config"

	"github.com/stretchr/testify/assert"
)

func authedConfig() config.APIConfig {
	return config.APIConfig{
		Enabled: true,
		HTTP:    config.APIHTTPConfig{Enabled: true},
		Auth: config.APIAuthConfig{
			Enabled:      true,
			HeaderAPIKey: "x-api-key",
			HeaderExtra:  "x-api-extra",
			APIKeys: []config.APIClientKey{
				{Key: "reader", Extra: "reader-extra", Name: "dashboard", Permissions: []string{"read:sessions"}},
				{Key: "admin", Extra: "admin-extra", Name: "staff"},
			},
		},
	}
}

func wrap(cfg config.APIConfig) http.Handler {
	auth := NewHTTPAuth(cfg)
	return auth.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func get(handler http.Handler, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAuthMissingHeaders(t *testing.T) {
	handler := wrap(authedConfig())
	rec := get(handler, "/api/v1/sessions", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthInvalidKey(t *testing.T) {
	handler := wrap(authedConfig())
	rec := get(handler, "/api/v1/sessions", map[string]string{
		"x-api-key":   "nope",
		"x-api-extra": "nope",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthWrongExtra(t *testing.T) {
	handler := wrap(authedConfig())
	rec := get(handler, "/api/v1/sessions", map[string]string{
		"x-api-key":   "reader",
		"x-api-extra": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthValidKey(t *testing.T) {
	handler := wrap(authedConfig())
	rec := get(handler, "/api/v1/sessions", map[string]string{
		"x-api-key":   "reader",
		"x-api-extra": "reader-extra",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthPermissionDenied(t *testing.T) {
	handler := wrap(authedConfig())
	// Reader key cannot download exports or read screening history.
	rec := get(handler, "/api/v1/export/schedule", map[string]string{
		"x-api-key":   "reader",
		"x-api-extra": "reader-extra",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = get(handler, "/api/v1/screenings/s-1", map[string]string{
		"x-api-key":   "reader",
		"x-api-extra": "reader-extra",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAuthEmptyPermissionsAllowAll(t *testing.T) {
	handler := wrap(authedConfig())
	rec := get(handler, "/api/v1/export/schedule", map[string]string{
		"x-api-key":   "admin",
		"x-api-extra": "admin-extra",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthzBypassesAuth(t *testing.T) {
	handler := wrap(authedConfig())
	rec := get(handler, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitExceeded(t *testing.T) {
	cfg := authedConfig()
	cfg.Auth.Enabled = false
	cfg.RateLimit = config.APIRateLimitConfig{RPS: 1, Burst: 2}
	handler := wrap(cfg)

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		rec := get(handler, "/api/v1/sessions", map[string]string{"x-api-key": "client-a"})
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, http.StatusOK, codes[0])
	assert.Equal(t, http.StatusOK, codes[1])
	assert.Equal(t, http.StatusTooManyRequests, codes[2], "burst exhausted")
}

func TestRateLimitPerKey(t *testing.T) {
	cfg := authedConfig()
	cfg.Auth.Enabled = false
	cfg.RateLimit = config.APIRateLimitConfig{RPS: 1, Burst: 1}
	handler := wrap(cfg)

	rec := get(handler, "/api/v1/sessions", map[string]string{"x-api-key": "client-a"})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = get(handler, "/api/v1/sessions", map[string]string{"x-api-key": "client-a"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// A different key gets its own bucket.
	rec = get(handler, "/api/v1/sessions", map[string]string{"x-api-key": "client-b"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

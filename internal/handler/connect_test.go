package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealersight/credential-server-go/internal/config"
	"github.com/dealersight/credential-server-go/internal/middleware"
	"github.com/dealersight/credential-server-go/internal/model"
	"github.com/dealersight/credential-server-go/internal/service"
)

func passThrough(next http.Handler) http.Handler {
	return next
}

// fakeSession injects a user context the way the session middleware would.
func fakeSession(userCtx *model.UserContext) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), middleware.UserContextKey, userCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newConnectHandler(t *testing.T, cfg *config.Config, userCtx *model.UserContext) *ConnectHandler {
	t.Helper()
	codec, err := service.NewStateCodec(cfg)
	require.NoError(t, err)
	svc := service.NewConnectService(cfg, codec, nil, nil, nil, nil)
	return NewConnectHandler(svc, fakeSession(userCtx), passThrough, "https://app.example.com/settings/connections")
}

func TestConnectInitiate(t *testing.T) {
	cfg := &config.Config{StateSigningSecret: "test-secret-0123456789abcdefghij"}
	userCtx := &model.UserContext{UserID: "u1", Role: model.RoleSuperAdmin}

	t.Run("unknown provider returns 404", func(t *testing.T) {
		h := newConnectHandler(t, cfg, userCtx)

		req := httptest.NewRequest("GET", "/facebook", nil)
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unconfigured provider returns 501", func(t *testing.T) {
		h := newConnectHandler(t, cfg, userCtx)

		req := httptest.NewRequest("GET", "/analytics", nil)
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotImplemented, rec.Code)
	})

	t.Run("configured provider redirects to Google consent", func(t *testing.T) {
		configured := &config.Config{
			StateSigningSecret: "test-secret-0123456789abcdefghij",
			GoogleClientID:     "client-id",
			OAuthRedirectBase:  "https://app.example.com",
		}
		h := newConnectHandler(t, configured, userCtx)

		req := httptest.NewRequest("GET", "/analytics", nil)
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
		assert.Contains(t, rec.Header().Get("Location"), "accounts.google.com")
	})
}

func TestConnectCallback(t *testing.T) {
	cfg := &config.Config{
		StateSigningSecret: "test-secret-0123456789abcdefghij",
		GoogleClientID:     "client-id",
	}
	userCtx := &model.UserContext{UserID: "u1", Role: model.RoleSuperAdmin}

	t.Run("provider error redirects with oauth_denied", func(t *testing.T) {
		h := newConnectHandler(t, cfg, userCtx)

		req := httptest.NewRequest("GET", "/analytics/callback?error=access_denied", nil)
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
		assert.Contains(t, rec.Header().Get("Location"), "error=oauth_denied")
	})

	t.Run("missing params redirects", func(t *testing.T) {
		h := newConnectHandler(t, cfg, userCtx)

		req := httptest.NewRequest("GET", "/analytics/callback", nil)
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
		assert.Contains(t, rec.Header().Get("Location"), "error=missing_params")
	})

	t.Run("forged state redirects with invalid_state", func(t *testing.T) {
		h := newConnectHandler(t, cfg, userCtx)

		req := httptest.NewRequest("GET", "/analytics/callback?code=abc&state=forged.state", nil)
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
		assert.Contains(t, rec.Header().Get("Location"), "error=invalid_state")
	})
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

// bcrypt hash of "password"
const testAdminHash = "$2a$10$maNoUof7lodozh6nstFvnu8ouDI4pKoln/rK/6c4NnGmcTzyDAKLK"

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAdminAuthMiddleware(t *testing.T) {
	t.Run("unconfigured admin disables the surface", func(t *testing.T) {
		mw := NewAdminAuthMiddleware("")

		req := httptest.NewRequest("POST", "/integrity/scan", nil)
		rec := httptest.NewRecorder()
		mw.Handler(okHandler()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("missing credential rejected", func(t *testing.T) {
		mw := NewAdminAuthMiddleware(testAdminHash)

		req := httptest.NewRequest("POST", "/integrity/scan", nil)
		rec := httptest.NewRecorder()
		mw.Handler(okHandler()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong credential rejected", func(t *testing.T) {
		mw := NewAdminAuthMiddleware(testAdminHash)

		req := httptest.NewRequest("POST", "/integrity/scan", nil)
		req.Header.Set("Authorization", "Bearer not-the-password")
		rec := httptest.NewRecorder()
		mw.Handler(okHandler()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("correct credential passes", func(t *testing.T) {
		mw := NewAdminAuthMiddleware(testAdminHash)

		req := httptest.NewRequest("POST", "/integrity/scan", nil)
		req.Header.Set("Authorization", "Bearer password")
		rec := httptest.NewRecorder()
		mw.Handler(okHandler()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dealersight/credential-server-go/internal/audit"
	"github.com/dealersight/credential-server-go/internal/util"
)

// AdminAuthMiddleware gates the integrity endpoints behind a single operator
// credential, compared against a bcrypt hash from config. No hash configured
// means the surface is disabled entirely.
type AdminAuthMiddleware struct {
	adminPasswordHash string
}

func NewAdminAuthMiddleware(adminPasswordHash string) *AdminAuthMiddleware {
	return &AdminAuthMiddleware{adminPasswordHash: adminPasswordHash}
}

func (m *AdminAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.adminPasswordHash == "" {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "Admin not configured",
			})
			return
		}

		token := extractBearer(r)
		if token == "" || !util.CheckPasswordHash(token, m.adminPasswordHash) {
			log.Warn().Str("path", r.URL.Path).Msg("admin auth failed")
			audit.LogFromRequest(r, audit.Event{Type: audit.EventAdminAuthFailure})
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Unauthorized",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func extractBearer(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

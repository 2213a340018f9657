package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dealersight/credential-server-go/internal/model"
	"github.com/dealersight/credential-server-go/internal/repository"
	"github.com/dealersight/credential-server-go/internal/util"
)

const (
	SessionCookie = "ds_session"
	SessionMaxAge = 24 * time.Hour
)

type contextKey string

const (
	UserContextKey contextKey = "userContext"
	SessionKey     contextKey = "userSession"
)

// GetUserContext returns the authenticated user's tenancy snapshot, or nil.
// The snapshot was read fresh for this request; never carry it across
// requests.
func GetUserContext(ctx context.Context) *model.UserContext {
	if uc, ok := ctx.Value(UserContextKey).(*model.UserContext); ok {
		return uc
	}
	return nil
}

// SessionMiddleware resolves the session cookie to a user context. Sessions
// are minted by the main application; this service only validates them.
type SessionMiddleware struct {
	sessionRepo   repository.SessionRepository
	userRepo      repository.UserRepository
	sessionSecret string
}

func NewSessionMiddleware(
	sessionRepo repository.SessionRepository,
	userRepo repository.UserRepository,
	sessionSecret string,
) *SessionMiddleware {
	return &SessionMiddleware{
		sessionRepo:   sessionRepo,
		userRepo:      userRepo,
		sessionSecret: sessionSecret,
	}
}

func (m *SessionMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookie)
		if err != nil || cookie.Value == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Unauthorized",
			})
			return
		}

		tokenHash := util.HmacSHA256(m.sessionSecret, cookie.Value)
		session, err := m.sessionRepo.FindByTokenHash(r.Context(), tokenHash)
		if err != nil {
			log.Error().Err(err).Msg("session middleware: database error")
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "Session validation failed",
			})
			return
		}

		if session == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Unauthorized",
			})
			return
		}

		userCtx, err := m.userRepo.FindContext(r.Context(), session.UserID)
		if err != nil || userCtx == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Unauthorized",
			})
			return
		}

		ctx := r.Context()
		ctx = context.WithValue(ctx, SessionKey, session)
		ctx = context.WithValue(ctx, UserContextKey, userCtx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func SetSessionCookie(w http.ResponseWriter, name, token, path string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     path,
		MaxAge:   int(SessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearSessionCookie(w http.ResponseWriter, name, path string) {
	http.SetCookie(w, &http.Cookie{
		Name:   name,
		Value:  "",
		Path:   path,
		MaxAge: -1,
	})
}

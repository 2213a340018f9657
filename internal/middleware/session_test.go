package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/dealersight/credential-server-go/internal/model"
	"github.com/dealersight/credential-server-go/internal/repository"
	"github.com/dealersight/credential-server-go/internal/util"
)

type mockSessionRepo struct {
	mock.Mock
}

func (m *mockSessionRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.UserSession, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UserSession), args.Error(1)
}

func (m *mockSessionRepo) WithTx(tx *sqlx.Tx) repository.SessionRepository {
	return m
}

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) FindContext(ctx context.Context, userID string) (*model.UserContext, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UserContext), args.Error(1)
}

func (m *mockUserRepo) Exists(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserRepo) WithTx(tx *sqlx.Tx) repository.UserRepository {
	return m
}

func TestSessionMiddleware(t *testing.T) {
	const secret = "session-secret"

	echoUser := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUserContext(r.Context()) == nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	t.Run("no cookie rejected", func(t *testing.T) {
		mw := NewSessionMiddleware(new(mockSessionRepo), new(mockUserRepo), secret)

		req := httptest.NewRequest("GET", "/connections", nil)
		rec := httptest.NewRecorder()
		mw.Handler(echoUser).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown session rejected", func(t *testing.T) {
		sessions := new(mockSessionRepo)
		sessions.On("FindByTokenHash", mock.Anything, mock.Anything).Return(nil, nil)
		mw := NewSessionMiddleware(sessions, new(mockUserRepo), secret)

		req := httptest.NewRequest("GET", "/connections", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "stale-token"})
		rec := httptest.NewRecorder()
		mw.Handler(echoUser).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid session resolves a fresh user context", func(t *testing.T) {
		token := "valid-token"
		sessions := new(mockSessionRepo)
		sessions.On("FindByTokenHash", mock.Anything, util.HmacSHA256(secret, token)).Return(&model.UserSession{
			ID:        "s1",
			UserID:    "u1",
			ExpiresAt: time.Now().Add(time.Hour),
		}, nil)
		users := new(mockUserRepo)
		users.On("FindContext", mock.Anything, "u1").Return(&model.UserContext{
			UserID: "u1",
			Role:   model.RoleUser,
		}, nil)

		mw := NewSessionMiddleware(sessions, users, secret)

		req := httptest.NewRequest("GET", "/connections", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
		rec := httptest.NewRecorder()
		mw.Handler(echoUser).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("session for a deleted user rejected", func(t *testing.T) {
		token := "valid-token"
		sessions := new(mockSessionRepo)
		sessions.On("FindByTokenHash", mock.Anything, mock.Anything).Return(&model.UserSession{
			ID:     "s1",
			UserID: "ghost",
		}, nil)
		users := new(mockUserRepo)
		users.On("FindContext", mock.Anything, "ghost").Return(nil, nil)

		mw := NewSessionMiddleware(sessions, users, secret)

		req := httptest.NewRequest("GET", "/connections", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
		rec := httptest.NewRecorder()
		mw.Handler(echoUser).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

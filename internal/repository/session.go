package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/dealersight/credential-server-go/internal/model"
)

// SessionRepository looks up browser sessions minted by the main application.
// This service only reads them; login and logout live elsewhere.
type SessionRepository interface {
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.UserSession, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) SessionRepository
}

type sessionDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type sessionRepo struct {
	db sessionDB
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) WithTx(tx *sqlx.Tx) SessionRepository {
	return &sessionRepo{db: tx}
}

func (r *sessionRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.UserSession, error) {
	var session model.UserSession
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM user_sessions
		WHERE token_hash = $1 AND expires_at > $2
	`, tokenHash, time.Now())
	return HandleNotFound(&session, err)
}

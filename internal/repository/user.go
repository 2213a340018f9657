package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/dealersight/credential-server-go/internal/model"
)

// UserRepository reads user tenancy context. FindContext must be called fresh
// for every credential operation; callers never cache the result across
// operations because role and dealership assignments change out of band.
type UserRepository interface {
	FindContext(ctx context.Context, userID string) (*model.UserContext, error)
	Exists(ctx context.Context, userID string) (bool, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) UserRepository
}

type userDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type userRepo struct {
	db userDB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) WithTx(tx *sqlx.Tx) UserRepository {
	return &userRepo{db: tx}
}

func (r *userRepo) FindContext(ctx context.Context, userID string) (*model.UserContext, error) {
	var uc model.UserContext
	err := r.db.GetContext(ctx, &uc, `
		SELECT id, role, primary_dealership_id, current_dealership_id, agency_id
		FROM users
		WHERE id = $1
	`, userID)
	return HandleNotFound(&uc, err)
}

func (r *userRepo) Exists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)
	`, userID)
	if err != nil {
		return false, err
	}
	return exists, nil
}

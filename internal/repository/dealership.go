package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/dealersight/credential-server-go/internal/model"
)

// DealershipRepository reads dealership rows and per-user grants. Access
// checks re-read the dealership row every time instead of trusting an
// agency id carried in the caller's context.
type DealershipRepository interface {
	FindByID(ctx context.Context, id string) (*model.Dealership, error)
	// FindEarliestByAgency returns the agency's oldest dealership, with id as
	// tiebreaker so the pick is deterministic.
	FindEarliestByAgency(ctx context.Context, agencyID string) (*model.Dealership, error)
	HasGrant(ctx context.Context, userID, dealershipID string) (bool, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) DealershipRepository
}

type dealershipDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type dealershipRepo struct {
	db dealershipDB
}

func NewDealershipRepository(db *sqlx.DB) DealershipRepository {
	return &dealershipRepo{db: db}
}

func (r *dealershipRepo) WithTx(tx *sqlx.Tx) DealershipRepository {
	return &dealershipRepo{db: tx}
}

func (r *dealershipRepo) FindByID(ctx context.Context, id string) (*model.Dealership, error) {
	var d model.Dealership
	err := r.db.GetContext(ctx, &d, `
		SELECT * FROM dealerships WHERE id = $1
	`, id)
	return HandleNotFound(&d, err)
}

func (r *dealershipRepo) FindEarliestByAgency(ctx context.Context, agencyID string) (*model.Dealership, error) {
	var d model.Dealership
	err := r.db.GetContext(ctx, &d, `
		SELECT * FROM dealerships
		WHERE agency_id = $1
		ORDER BY created_at, id
		LIMIT 1
	`, agencyID)
	return HandleNotFound(&d, err)
}

func (r *dealershipRepo) HasGrant(ctx context.Context, userID, dealershipID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS(
			SELECT 1 FROM user_dealerships
			WHERE user_id = $1 AND dealership_id = $2
		)
	`, userID, dealershipID)
	if err != nil {
		return false, err
	}
	return exists, nil
}

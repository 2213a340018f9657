package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/dealersight/credential-server-go/internal/model"
)

// ConnectionRepository is the persistence boundary for stored provider
// credentials. Two tables (one per provider) sit behind one implementation.
// The (user_id, dealership_id) pairing is unique-ish only: legacy rows may
// violate it, so uniqueness is enforced by the integrity auditor, not assumed
// as a DB constraint.
type ConnectionRepository interface {
	FindByID(ctx context.Context, provider model.Provider, id string) (*model.Connection, error)
	FindByUserAndDealership(ctx context.Context, provider model.Provider, userID string, dealershipID *string) (*model.Connection, error)
	Upsert(ctx context.Context, provider model.Provider, params model.UpsertConnectionParams) (*model.Connection, error)
	Delete(ctx context.Context, provider model.Provider, id string) error
	// DeleteByIDs deletes a snapshot of primary keys. Callers must snapshot ids
	// before deleting so a concurrent callback's fresh row is never caught.
	DeleteByIDs(ctx context.Context, provider model.Provider, ids []string) (int64, error)
	ListAll(ctx context.Context, provider model.Provider) ([]model.Connection, error)
	ListByUser(ctx context.Context, provider model.Provider, userID string) ([]model.Connection, error)
	ListGroupedByUserDealership(ctx context.Context, provider model.Provider) ([]model.ConnectionGroup, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) ConnectionRepository
}

// connectionDB is an interface satisfied by both *sqlx.DB and *sqlx.Tx
type connectionDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type connectionRepo struct {
	db connectionDB
}

func NewConnectionRepository(db *sqlx.DB) ConnectionRepository {
	return &connectionRepo{db: db}
}

func (r *connectionRepo) WithTx(tx *sqlx.Tx) ConnectionRepository {
	return &connectionRepo{db: tx}
}

func tableFor(provider model.Provider) string {
	if provider == model.ProviderSearchConsole {
		return "search_console_connections"
	}
	return "analytics_connections"
}

func (r *connectionRepo) FindByID(ctx context.Context, provider model.Provider, id string) (*model.Connection, error) {
	var conn model.Connection
	err := r.db.GetContext(ctx, &conn, fmt.Sprintf(`
		SELECT * FROM %s WHERE id = $1
	`, tableFor(provider)), id)
	return HandleNotFound(&conn, err)
}

func (r *connectionRepo) FindByUserAndDealership(ctx context.Context, provider model.Provider, userID string, dealershipID *string) (*model.Connection, error) {
	var conn model.Connection
	err := r.db.GetContext(ctx, &conn, fmt.Sprintf(`
		SELECT * FROM %s
		WHERE user_id = $1
		AND dealership_id IS NOT DISTINCT FROM $2
		ORDER BY updated_at DESC
		LIMIT 1
	`, tableFor(provider)), userID, dealershipID)
	return HandleNotFound(&conn, err)
}

// Upsert is last-write-wins on (user_id, dealership_id). It cannot rely on a
// DB unique constraint (legacy data may already violate it), so it updates the
// newest matching row or inserts. A true concurrent-insert race can leave a
// transient duplicate; the integrity auditor is the backstop for that.
func (r *connectionRepo) Upsert(ctx context.Context, provider model.Provider, params model.UpsertConnectionParams) (*model.Connection, error) {
	existing, err := r.FindByUserAndDealership(ctx, provider, params.UserID, params.DealershipID)
	if err != nil {
		return nil, err
	}

	var conn model.Connection
	if existing != nil {
		err = r.db.GetContext(ctx, &conn, fmt.Sprintf(`
			UPDATE %s SET
				access_token = $2,
				refresh_token = COALESCE($3, refresh_token),
				resource_id = $4,
				expires_at = $5,
				updated_at = $6
			WHERE id = $1
			RETURNING *
		`, tableFor(provider)), existing.ID, params.AccessToken, params.RefreshToken,
			params.ResourceID, params.ExpiresAt, time.Now())
	} else {
		err = r.db.GetContext(ctx, &conn, fmt.Sprintf(`
			INSERT INTO %s (user_id, dealership_id, access_token, refresh_token, resource_id, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING *
		`, tableFor(provider)), params.UserID, params.DealershipID, params.AccessToken,
			params.RefreshToken, params.ResourceID, params.ExpiresAt)
	}
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

func (r *connectionRepo) Delete(ctx context.Context, provider model.Provider, id string) error {
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM %s WHERE id = $1
	`, tableFor(provider)), id)
	return err
}

func (r *connectionRepo) DeleteByIDs(ctx context.Context, provider model.Provider, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result, err := r.db.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM %s WHERE id = ANY($1)
	`, tableFor(provider)), pq.Array(ids))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *connectionRepo) ListAll(ctx context.Context, provider model.Provider) ([]model.Connection, error) {
	var conns []model.Connection
	err := r.db.SelectContext(ctx, &conns, fmt.Sprintf(`
		SELECT * FROM %s ORDER BY created_at
	`, tableFor(provider)))
	if err != nil {
		return nil, err
	}
	return conns, nil
}

func (r *connectionRepo) ListByUser(ctx context.Context, provider model.Provider, userID string) ([]model.Connection, error) {
	var conns []model.Connection
	err := r.db.SelectContext(ctx, &conns, fmt.Sprintf(`
		SELECT * FROM %s WHERE user_id = $1 ORDER BY created_at
	`, tableFor(provider)), userID)
	if err != nil {
		return nil, err
	}
	return conns, nil
}

func (r *connectionRepo) ListGroupedByUserDealership(ctx context.Context, provider model.Provider) ([]model.ConnectionGroup, error) {
	var conns []model.Connection
	err := r.db.SelectContext(ctx, &conns, fmt.Sprintf(`
		SELECT * FROM %s
		ORDER BY user_id, dealership_id NULLS FIRST, updated_at DESC
	`, tableFor(provider)))
	if err != nil {
		return nil, err
	}
	return GroupConnections(conns), nil
}

// GroupConnections buckets connections by (userID, dealershipID), preserving
// input order within each group.
func GroupConnections(conns []model.Connection) []model.ConnectionGroup {
	index := make(map[string]int)
	groups := make([]model.ConnectionGroup, 0)
	for _, conn := range conns {
		key := conn.UserID + "\x00"
		if conn.DealershipID != nil {
			key += *conn.DealershipID
		}
		i, ok := index[key]
		if !ok {
			groups = append(groups, model.ConnectionGroup{
				UserID:       conn.UserID,
				DealershipID: conn.DealershipID,
			})
			i = len(groups) - 1
			index[key] = i
		}
		groups[i].Connections = append(groups[i].Connections, conn)
	}
	return groups
}

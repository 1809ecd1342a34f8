// Package postgres implements the session store on PostgreSQL. Every
// transaction pins app.tenant_id so row-level security policies apply.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/allerhed/rythm/internal/domain"
)

const setTenantSQL = "SELECT set_config('app.tenant_id', $1, true)"

// Store provides Postgres-backed persistence for session aggregates and outbox events.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Begin implements domain.TxBeginner.
func (s *Store) Begin(ctx context.Context, tenantID string) (domain.Tx, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	if _, err := tx.Exec(ctx, setTenantSQL, tenantID); err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("set tenant: %w", err)
	}
	return &sessionTx{tx: tx}, nil
}

// readTx runs fn in a read-only transaction scoped to tenantID.
func (s *Store) readTx(ctx context.Context, tenantID string, fn func(pgx.Tx) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, setTenantSQL, tenantID); err != nil {
		return err
	}
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetSession implements domain.Store.
func (s *Store) GetSession(ctx context.Context, sessionID, userID, tenantID string) (*domain.SessionAggregate, error) {
	var result *domain.SessionAggregate
	err := s.readTx(ctx, tenantID, func(tx pgx.Tx) error {
		session, err := scanSession(tx.QueryRow(ctx, selectSessionSQL+` WHERE session_id=$1 AND user_id=$2 AND tenant_id=$3`, sessionID, userID, tenantID))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		aggs, err := loadAggregates(ctx, tx, tenantID, []domain.Session{session})
		if err != nil {
			return err
		}
		result = &aggs[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListSessions implements domain.Store.
func (s *Store) ListSessions(ctx context.Context, userID, tenantID string, filter domain.ListFilter) ([]domain.SessionAggregate, *domain.Cursor, error) {
	args := []any{tenantID, userID, filter.Limit}
	query := selectSessionSQL + ` WHERE tenant_id=$1 AND user_id=$2`
	if from, to, ok := filter.DayBounds(); ok {
		args = append(args, from, to)
		query += fmt.Sprintf(` AND started_at >= $%d AND started_at < $%d`, len(args)-1, len(args))
	}
	if c := filter.Cursor; c != nil {
		args = append(args, c.StartedAt, c.ID)
		query += fmt.Sprintf(` AND (started_at, session_id) < ($%d, $%d)`, len(args)-1, len(args))
	}
	query += ` ORDER BY started_at DESC, session_id DESC LIMIT $3`

	var results []domain.SessionAggregate
	err := s.readTx(ctx, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		sessions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Session, error) {
			return scanSession(row)
		})
		if err != nil {
			return err
		}
		results, err = loadAggregates(ctx, tx, tenantID, sessions)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	var next *domain.Cursor
	if len(results) == filter.Limit {
		last := results[len(results)-1]
		next = &domain.Cursor{StartedAt: last.StartedAt, ID: last.ID}
	}
	return results, next, nil
}

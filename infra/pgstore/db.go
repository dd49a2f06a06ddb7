// Package pgstore implements the dispatch store on PostgreSQL using pgx.
package pgstore

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quickbite/dispatch/core/store"
)

// NewPool creates and pings a new pgx connection pool.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// PGStore implements store.Store backed by a pgx connection pool.
type PGStore struct{ db *pgxpool.Pool }

// New creates a PGStore over an existing pool.
func New(db *pgxpool.Pool) *PGStore { return &PGStore{db: db} }

// Close releases the underlying pool.
func (s *PGStore) Close() { s.db.Close() }

var _ store.Store = (*PGStore)(nil)

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool is the shared connection pool all stores in this package hang
// off of.
type Pool struct {
	*pgxpool.Pool
}

// NewPool opens a pool against dsn and verifies it answers before
// handing it out.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// Close releases every connection in the pool.
func (p *Pool) Close() {
	p.Pool.Close()
}

// unique_violation, per the PostgreSQL error code table.
const pgErrUniqueViolation = "23505"

// isDuplicateKeyError reports whether err is a unique constraint
// violation, which the stores map to storage.ErrDuplicateKey.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation
}

// isNotFoundError reports whether err means the query matched no rows.
func isNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

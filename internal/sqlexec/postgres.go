// Copyright (c) 2025 Rowscope
// Licensed under the MIT License. See LICENSE file in the project root for details.

package sqlexec

import (
	"context"

	"rowscope/cli/internal/backend"
	xerrors "rowscope/cli/internal/errors"
	"rowscope/cli/internal/model"
	"rowscope/cli/internal/query"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresPort runs queries on a PostgreSQL connection pool.
type PostgresPort struct {
	// Pool is the PostgreSQL connection pool
	Pool *pgxpool.Pool
}

// NewPostgres wraps an existing pool.
func NewPostgres(pool *pgxpool.Pool) *PostgresPort {
	return &PostgresPort{Pool: pool}
}

func openPostgres(ctx context.Context, normalizedDSN string) (backend.Port, error) {
	return OpenPostgres(ctx, normalizedDSN)
}

// OpenPostgres creates a pool for dsn and verifies it with a ping.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresPort, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.ConnectFailed, "failed to create connection pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, xerrors.Wrap(xerrors.ConnectFailed, "failed to reach database", err)
	}
	return &PostgresPort{Pool: pool}, nil
}

// Count runs a COUNT(*) query.
func (p *PostgresPort) Count(ctx context.Context, sql string) (int64, error) {
	var n int64
	if err := p.Pool.QueryRow(ctx, sql).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// FetchWindow runs a window query, reading at most limit rows.
func (p *PostgresPort) FetchWindow(ctx context.Context, sql string, offset, limit int64) (model.Window, error) {
	return p.run(ctx, sql, limit)
}

// Query runs sql and returns all rows.
func (p *PostgresPort) Query(ctx context.Context, sql string) (model.Window, error) {
	return p.run(ctx, sql, -1)
}

func (p *PostgresPort) run(ctx context.Context, sql string, limit int64) (model.Window, error) {
	conn, err := p.Pool.Acquire(ctx)
	if err != nil {
		return model.Window{}, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, sql)
	if err != nil {
		return model.Window{}, err
	}
	defer rows.Close()

	return collect(rows, fieldNames(rows), limit, rows.Values)
}

func fieldNames(rows pgx.Rows) []string {
	fds := rows.FieldDescriptions()
	cols := make([]string, len(fds))
	for i, fd := range fds {
		cols[i] = fd.Name
	}
	return cols
}

// Dialect reports PostgreSQL.
func (p *PostgresPort) Dialect() query.Dialect { return query.DialectPostgres }

// Ping checks the connection.
func (p *PostgresPort) Ping(ctx context.Context) error { return p.Pool.Ping(ctx) }

// Close closes the pool.
func (p *PostgresPort) Close() error {
	p.Pool.Close()
	return nil
}

// Copyright (c) 2025 Rowscope
// Licensed under the MIT License. See LICENSE file in the project root for details.

package sqlexec

import (
	"context"
	"database/sql"
	"strings"

	"rowscope/cli/internal/backend"
	xerrors "rowscope/cli/internal/errors"
	"rowscope/cli/internal/model"
	"rowscope/cli/internal/query"

	_ "modernc.org/sqlite"
)

// SQLitePort runs queries on a SQLite database file.
type SQLitePort struct {
	DB   *sql.DB
	Path string
}

func openSQLite(ctx context.Context, normalizedDSN string) (backend.Port, error) {
	return OpenSQLite(ctx, normalizedDSN)
}

// OpenSQLite opens dsn (a file: URI or path) and verifies it with a ping.
// The busy timeout lets window loads wait for a concurrent writer.
func OpenSQLite(ctx context.Context, dsn string) (*SQLitePort, error) {
	if !strings.Contains(dsn, "_pragma=busy_timeout") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.ConnectFailed, "failed to open database", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, xerrors.Wrap(xerrors.ConnectFailed, "failed to open database", err)
	}
	path, _, _ := strings.Cut(strings.TrimPrefix(dsn, "file:"), "?")
	return &SQLitePort{DB: db, Path: path}, nil
}

// Count runs a COUNT(*) query.
func (p *SQLitePort) Count(ctx context.Context, q string) (int64, error) {
	var n int64
	if err := p.DB.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// FetchWindow runs a window query, reading at most limit rows.
func (p *SQLitePort) FetchWindow(ctx context.Context, q string, offset, limit int64) (model.Window, error) {
	return p.run(ctx, q, limit)
}

// Query runs q and returns all rows.
func (p *SQLitePort) Query(ctx context.Context, q string) (model.Window, error) {
	return p.run(ctx, q, -1)
}

func (p *SQLitePort) run(ctx context.Context, q string, limit int64) (model.Window, error) {
	rows, err := p.DB.QueryContext(ctx, q)
	if err != nil {
		return model.Window{}, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return model.Window{}, err
	}
	return collect(rows, cols, limit, func() ([]any, error) {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		return vals, nil
	})
}

// Exec runs a statement that returns no rows.
func (p *SQLitePort) Exec(ctx context.Context, q string, args ...any) error {
	_, err := p.DB.ExecContext(ctx, q, args...)
	return err
}

// Dialect reports SQLite.
func (p *SQLitePort) Dialect() query.Dialect { return query.DialectSQLite }

// Ping checks the database file is usable.
func (p *SQLitePort) Ping(ctx context.Context) error { return p.DB.PingContext(ctx) }

// Close closes the database.
func (p *SQLitePort) Close() error { return p.DB.Close() }

// Copyright (c) 2025 Rowscope
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package sqlexec implements backend.Port over real databases: PostgreSQL
// through a pgx connection pool and SQLite through the modernc driver.
//
// Both ports run already-rewritten SQL. Window fetches never return more rows
// than the requested limit, and driver-specific values are converted to plain
// Go values (strings, numbers, times, byte slices) before they reach the cache.
package sqlexec

import (
	"database/sql/driver"
	"fmt"

	"rowscope/cli/internal/backend"
	"rowscope/cli/internal/dsn"
	"rowscope/cli/internal/model"
)

func init() {
	backend.Register(dsn.DBTypePostgreSQL, openPostgres)
	backend.Register(dsn.DBTypeSQLite, openSQLite)
}

// rowSource is the part of pgx.Rows and *sql.Rows that collect needs.
type rowSource interface {
	Next() bool
	Err() error
}

// collect reads rows from src until it is exhausted or limit rows were read.
// A negative limit reads everything.
func collect(src rowSource, columns []string, limit int64, values func() ([]any, error)) (model.Window, error) {
	w := model.Window{Columns: columns}
	for (limit < 0 || int64(len(w.Rows)) < limit) && src.Next() {
		vals, err := values()
		if err != nil {
			return model.Window{}, err
		}
		row := make(model.Row, len(vals))
		for i, v := range vals {
			row[i] = plainValue(v)
		}
		w.Rows = append(w.Rows, row)
	}
	if err := src.Err(); err != nil {
		return model.Window{}, err
	}
	return w, nil
}

// plainValue converts driver types to values the grid can format.
func plainValue(v any) any {
	switch x := v.(type) {
	case nil, string, bool, int64, float64, []byte:
		return x
	case int32:
		return int64(x)
	case int16:
		return int64(x)
	case int8:
		return int64(x)
	case int:
		return int64(x)
	case float32:
		return float64(x)
	case [16]byte:
		return x
	case driver.Valuer:
		dv, err := x.Value()
		if err != nil {
			return fmt.Sprint(x)
		}
		return plainValue(dv)
	default:
		return x
	}
}

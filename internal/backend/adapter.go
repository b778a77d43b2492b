// Copyright (c) 2025 Rowscope
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package backend defines the contract between the windowing engine and a
// SQL data store. It provides the Port interface the engine consumes, schema
// description types, and a registry that opens a Port for a DSN.
// Concrete implementations live in package sqlexec.
package backend

import (
	"context"

	"rowscope/cli/internal/model"
	"rowscope/cli/internal/query"
)

// Port defines the backend operations the engine depends on.
// Implementations may talk to a real database or provide fakes for tests.
// All methods must be safe for concurrent use.
type Port interface {
	// Count runs a COUNT(*) query and returns its single value.
	Count(ctx context.Context, sql string) (int64, error)
	// FetchWindow runs a window query already limited to [offset, offset+limit).
	// It may return fewer than limit rows only at the end of the result.
	FetchWindow(ctx context.Context, sql string, offset, limit int64) (model.Window, error)
	// Query runs a statement and returns every row it produces.
	Query(ctx context.Context, sql string) (model.Window, error)
	// Dialect tells the rewriter which SQL flavor to produce.
	Dialect() query.Dialect
	// Close releases connections.
	Close() error
}

// SchemaReader is implemented by ports that can describe the database.
type SchemaReader interface {
	Schema(ctx context.Context) (Schema, error)
}

// Schema lists the user objects of a database.
type Schema struct {
	Database string
	Tables   []Table
	Views    []string
	Indexes  []Index
}

// Table is a table with its columns in ordinal order.
type Table struct {
	Name    string
	Columns []Column
}

// Column describes one table column.
type Column struct {
	Name       string
	Type       string
	PrimaryKey bool
	Nullable   bool
}

// Index names an index and the table it belongs to.
type Index struct {
	Name  string
	Table string
}

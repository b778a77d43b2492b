// Copyright (c) 2025 Rowscope
// Licensed under the MIT License. See LICENSE file in the project root for details.

package sqlexec

import (
	"context"
	"path/filepath"
	"sort"

	"rowscope/cli/internal/backend"

	"github.com/jackc/pgx/v5"
)

// Schema lists user tables with their columns, views and indexes from
// information_schema and pg_indexes. System schemas are skipped.
func (p *PostgresPort) Schema(ctx context.Context) (backend.Schema, error) {
	var s backend.Schema
	conn, err := p.Pool.Acquire(ctx)
	if err != nil {
		return s, err
	}
	defer conn.Release()

	if err := conn.QueryRow(ctx, `SELECT current_database()`).Scan(&s.Database); err != nil {
		return s, err
	}

	primary, err := pgPrimaryKeys(ctx, conn.Conn())
	if err != nil {
		return s, err
	}

	rows, err := conn.Query(ctx, `
		SELECT c.table_schema, c.table_name, c.column_name, c.data_type, c.is_nullable = 'YES'
		FROM information_schema.columns c
		JOIN information_schema.tables t
		  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
		WHERE t.table_type = 'BASE TABLE'
		  AND c.table_schema NOT IN ('pg_catalog', 'information_schema')
		ORDER BY c.table_schema, c.table_name, c.ordinal_position`)
	if err != nil {
		return s, err
	}
	byName := map[string]int{}
	for rows.Next() {
		var schema, table string
		var col backend.Column
		if err := rows.Scan(&schema, &table, &col.Name, &col.Type, &col.Nullable); err != nil {
			rows.Close()
			return s, err
		}
		name := qualify(schema, table)
		col.PrimaryKey = primary[name+"."+col.Name]
		i, ok := byName[name]
		if !ok {
			i = len(s.Tables)
			byName[name] = i
			s.Tables = append(s.Tables, backend.Table{Name: name})
		}
		s.Tables[i].Columns = append(s.Tables[i].Columns, col)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return s, err
	}

	views, err := conn.Query(ctx, `
		SELECT table_schema, table_name FROM information_schema.views
		WHERE table_schema NOT IN ('pg_catalog', 'information_schema')
		ORDER BY table_schema, table_name`)
	if err != nil {
		return s, err
	}
	for views.Next() {
		var schema, name string
		if err := views.Scan(&schema, &name); err != nil {
			views.Close()
			return s, err
		}
		s.Views = append(s.Views, qualify(schema, name))
	}
	views.Close()
	if err := views.Err(); err != nil {
		return s, err
	}

	indexes, err := conn.Query(ctx, `
		SELECT schemaname, tablename, indexname FROM pg_indexes
		WHERE schemaname NOT IN ('pg_catalog', 'information_schema')
		ORDER BY schemaname, tablename, indexname`)
	if err != nil {
		return s, err
	}
	defer indexes.Close()
	for indexes.Next() {
		var schema, table, name string
		if err := indexes.Scan(&schema, &table, &name); err != nil {
			return s, err
		}
		s.Indexes = append(s.Indexes, backend.Index{Name: name, Table: qualify(schema, table)})
	}
	return s, indexes.Err()
}

// pgPrimaryKeys returns the set of "table.column" names that are part of a
// primary key.
func pgPrimaryKeys(ctx context.Context, conn *pgx.Conn) (map[string]bool, error) {
	rows, err := conn.Query(ctx, `
		SELECT kc.table_schema, kc.table_name, kc.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kc
		  ON tc.constraint_name = kc.constraint_name AND tc.table_schema = kc.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]bool{}
	for rows.Next() {
		var schema, table, col string
		if err := rows.Scan(&schema, &table, &col); err != nil {
			return nil, err
		}
		out[qualify(schema, table)+"."+col] = true
	}
	return out, rows.Err()
}

// qualify drops the default schema from a table name.
func qualify(schema, table string) string {
	if schema == "" || schema == "public" {
		return table
	}
	return schema + "." + table
}

// Schema lists tables with their columns, views and indexes from
// sqlite_master. Internal sqlite_ objects are skipped.
func (p *SQLitePort) Schema(ctx context.Context) (backend.Schema, error) {
	s := backend.Schema{Database: filepath.Base(p.Path)}

	rows, err := p.DB.QueryContext(ctx, `
		SELECT type, name, tbl_name FROM sqlite_master
		WHERE name NOT LIKE 'sqlite_%'
		ORDER BY name`)
	if err != nil {
		return s, err
	}
	var tables []string
	for rows.Next() {
		var kind, name, table string
		if err := rows.Scan(&kind, &name, &table); err != nil {
			rows.Close()
			return s, err
		}
		switch kind {
		case "table":
			tables = append(tables, name)
		case "view":
			s.Views = append(s.Views, name)
		case "index":
			s.Indexes = append(s.Indexes, backend.Index{Name: name, Table: table})
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return s, err
	}

	for _, name := range tables {
		cols, err := p.columns(ctx, name)
		if err != nil {
			return s, err
		}
		s.Tables = append(s.Tables, backend.Table{Name: name, Columns: cols})
	}
	sort.Slice(s.Tables, func(i, j int) bool { return s.Tables[i].Name < s.Tables[j].Name })
	return s, nil
}

func (p *SQLitePort) columns(ctx context.Context, table string) ([]backend.Column, error) {
	rows, err := p.DB.QueryContext(ctx, `SELECT name, type, "notnull", pk FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []backend.Column
	for rows.Next() {
		var (
			col     backend.Column
			notNull int
			pk      int
		)
		if err := rows.Scan(&col.Name, &col.Type, &notNull, &pk); err != nil {
			return nil, err
		}
		col.Nullable = notNull == 0
		col.PrimaryKey = pk > 0
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

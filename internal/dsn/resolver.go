// Copyright (c) 2025 Rowscope
// Licensed under the MIT License. See LICENSE file in the project root for details.

package dsn

import (
	"path/filepath"
	"strings"
)

var sqliteExtensions = []string{".db", ".sqlite", ".sqlite3", ".db3"}

// DetectDBType detects the database type from a DSN string.
// A bare path with a SQLite file extension is treated as SQLite.
func DetectDBType(dsn string) DBType {
	lower := strings.ToLower(strings.TrimSpace(dsn))

	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return DBTypePostgreSQL
	case strings.HasPrefix(lower, "sqlite://"), strings.HasPrefix(lower, "sqlite3://"), strings.HasPrefix(lower, "file:"):
		return DBTypeSQLite
	case strings.HasPrefix(lower, "mysql://"):
		return DBTypeMySQL
	case strings.HasPrefix(lower, "oracle://"):
		return DBTypeOracle
	}
	if isKeywordValue(lower) {
		return DBTypePostgreSQL
	}
	if !strings.Contains(lower, "://") {
		ext := filepath.Ext(strings.SplitN(lower, "?", 2)[0])
		for _, e := range sqliteExtensions {
			if ext == e {
				return DBTypeSQLite
			}
		}
	}
	return DBTypeUnknown
}

// resolverFor returns the resolver for dsn or a ParseError explaining why
// there is none.
func resolverFor(dsn string) (Resolver, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, NewParseError(dsn, "empty DSN", "provide a valid database connection string")
	}
	switch DetectDBType(dsn) {
	case DBTypePostgreSQL:
		return NewPostgreSQLResolver(), nil
	case DBTypeSQLite:
		return NewSQLiteResolver(), nil
	case DBTypeMySQL:
		return nil, NewParseError(dsn, "MySQL support not yet implemented", "use PostgreSQL or SQLite for now")
	case DBTypeOracle:
		return nil, NewParseError(dsn, "Oracle support not yet implemented", "use PostgreSQL or SQLite for now")
	default:
		return nil, NewParseError(dsn, "unknown database type", "use postgres://, sqlite:// or a path to a .db file")
	}
}

// Parse parses a DSN string and returns normalized connection string
// This is the main entry point for DSN parsing
func Parse(dsn string) (string, error) {
	resolver, err := resolverFor(dsn)
	if err != nil {
		return "", err
	}

	info, err := resolver.Parse(dsn)
	if err != nil {
		return "", err
	}

	return resolver.Normalize(info)
}

// Validate validates a DSN string without normalizing it
func Validate(dsn string) error {
	resolver, err := resolverFor(dsn)
	if err != nil {
		return err
	}
	return resolver.Validate(dsn)
}

// ParseInfo parses a DSN string and returns detailed DSN info
// Useful for inspecting connection details
func ParseInfo(dsn string) (*DSNInfo, error) {
	resolver, err := resolverFor(dsn)
	if err != nil {
		return nil, err
	}
	return resolver.Parse(dsn)
}

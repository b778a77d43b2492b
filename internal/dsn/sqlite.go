// Copyright (c) 2025 Rowscope
// Licensed under the MIT License. See LICENSE file in the project root for details.

package dsn

import (
	"net/url"
	"sort"
	"strings"
)

// SQLiteResolver handles SQLite file DSNs: sqlite://path, file:path or a
// bare path to a database file.
type SQLiteResolver struct{}

// NewSQLiteResolver creates a new SQLite resolver
func NewSQLiteResolver() *SQLiteResolver {
	return &SQLiteResolver{}
}

// Parse extracts the file path and query parameters.
func (r *SQLiteResolver) Parse(dsn string) (*DSNInfo, error) {
	s := strings.TrimSpace(dsn)
	if s == "" {
		return nil, NewParseError(dsn, "empty DSN", "provide a path to a SQLite database file")
	}

	lower := strings.ToLower(s)
	for _, prefix := range []string{"sqlite3://", "sqlite://", "file:"} {
		if strings.HasPrefix(lower, prefix) {
			s = s[len(prefix):]
			break
		}
	}

	path, rawQuery, _ := strings.Cut(s, "?")
	if path == "" {
		return nil, NewParseError(dsn, "missing database file path", "use sqlite:///path/to/file.db")
	}

	info := &DSNInfo{
		Type:     DBTypeSQLite,
		Database: path,
		Params:   make(map[string]string),
		Original: dsn,
	}
	if rawQuery != "" {
		values, err := url.ParseQuery(rawQuery)
		if err != nil {
			return nil, NewParseError(dsn, "invalid query parameters", "parameters must be key=value pairs joined by &")
		}
		for k, v := range values {
			if len(v) > 0 {
				info.Params[k] = v[0]
			}
		}
	}
	return info, nil
}

// Normalize renders info as a file: URI accepted by the SQLite driver.
func (r *SQLiteResolver) Normalize(info *DSNInfo) (string, error) {
	if info == nil || info.Database == "" {
		return "", NewParseError("", "missing database file path", "use sqlite:///path/to/file.db")
	}

	var b strings.Builder
	b.WriteString("file:")
	b.WriteString(info.Database)

	if len(info.Params) > 0 {
		keys := make([]string, 0, len(info.Params))
		for k := range info.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("?")
		for i, k := range keys {
			if i > 0 {
				b.WriteString("&")
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteString("=")
			b.WriteString(url.QueryEscape(info.Params[k]))
		}
	}
	return b.String(), nil
}

// Validate checks that the DSN names a file.
func (r *SQLiteResolver) Validate(dsn string) error {
	_, err := r.Parse(dsn)
	return err
}

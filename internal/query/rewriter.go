// Copyright (c) 2025 Rowscope
// Licensed under the MIT License. See LICENSE file in the project root for details.

package query

import (
	"fmt"
	"strings"

	xerrors "rowscope/cli/internal/errors"
	"rowscope/cli/internal/model"

	"github.com/jackc/pgx/v5"
)

// Dialect selects the SQL flavor of the backing store.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// Subquery aliases. Both dialects require an alias on a derived table.
const (
	countAlias  = "rowscope_count"
	windowAlias = "rowscope_window"
)

// Rewriter wraps base queries for counting, sorting and windowing.
// All methods are pure.
type Rewriter struct {
	Dialect Dialect
}

// NewRewriter creates a rewriter for the dialect.
func NewRewriter(d Dialect) Rewriter { return Rewriter{Dialect: d} }

// Normalize trims whitespace, plus the semicolons and comments after the last
// token, so the text can be embedded as a subquery. A trailing line comment
// would otherwise swallow the closing parenthesis of the wrapper.
func Normalize(base string) string {
	return strings.TrimSpace(trimTrailing(base))
}

// trimTrailing cuts s right after its last token outside quotes and comments.
// Delimiters are ASCII, so scanning bytes is safe for UTF-8 text.
func trimTrailing(s string) string {
	end := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			j := strings.IndexByte(s[i+1:], c)
			if j < 0 {
				return s
			}
			i += j + 1
			end = i + 1
		case c == '-' && i+1 < len(s) && s[i+1] == '-':
			j := strings.IndexByte(s[i:], '\n')
			if j < 0 {
				i = len(s)
			} else {
				i += j
			}
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			j := strings.Index(s[i+2:], "*/")
			if j < 0 {
				i = len(s)
			} else {
				i += j + 3
			}
		case c == ';', c == ' ', c == '\t', c == '\n', c == '\r', c == '\f', c == '\v':
		default:
			end = i + 1
		}
	}
	return s[:end]
}

func wrapInput(base string) (string, error) {
	s := Normalize(base)
	if s == "" {
		return "", xerrors.New(xerrors.RewriteFailure, "empty query")
	}
	return s, nil
}

// CountQuery wraps base as a subquery under COUNT(*).
func (r Rewriter) CountQuery(base string) (string, error) {
	s, err := wrapInput(base)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SELECT COUNT(*) FROM (%s) AS %s", s, countAlias), nil
}

// SortedQuery wraps base and appends ORDER BY when sort is set. Without a sort
// the normalized base is returned unchanged.
func (r Rewriter) SortedQuery(base string, sort model.SortSpec) (string, error) {
	s, err := wrapInput(base)
	if err != nil {
		return "", err
	}
	if !sort.IsSet() {
		return s, nil
	}
	return fmt.Sprintf("SELECT * FROM (%s) AS %s ORDER BY %s", s, windowAlias, orderBy(sort)), nil
}

// WindowQuery wraps base, appends ORDER BY when sort is set, then LIMIT/OFFSET.
func (r Rewriter) WindowQuery(base string, sort model.SortSpec, limit, offset int64) (string, error) {
	if limit <= 0 {
		return "", xerrors.New(xerrors.RewriteFailure, fmt.Sprintf("window limit must be positive, got %d", limit))
	}
	if offset < 0 {
		return "", xerrors.New(xerrors.RewriteFailure, fmt.Sprintf("window offset must not be negative, got %d", offset))
	}
	s, err := wrapInput(base)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT * FROM (%s) AS %s", s, windowAlias)
	if sort.IsSet() {
		b.WriteString(" ORDER BY ")
		b.WriteString(orderBy(sort))
	}
	fmt.Fprintf(&b, " LIMIT %d OFFSET %d", limit, offset)
	return b.String(), nil
}

func orderBy(sort model.SortSpec) string {
	return pgx.Identifier{strings.TrimSpace(sort.Column)}.Sanitize() + " " + sort.Direction.String()
}

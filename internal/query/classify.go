// Copyright (c) 2025 Rowscope
// Licensed under the MIT License. See LICENSE file in the project root for details.

package query

import (
	"strings"
	"unicode"

	xerrors "rowscope/cli/internal/errors"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// Shape tells whether a query can be served through windows.
type Shape int

const (
	// ShapeSelect is a single row-returning statement that can be wrapped.
	ShapeSelect Shape = iota
	// ShapeOther is a valid statement that cannot be wrapped (DDL, DML, PRAGMA).
	// It is always run eagerly.
	ShapeOther
)

func (s Shape) String() string {
	if s == ShapeSelect {
		return "select"
	}
	return "other"
}

// Classify decides whether base is windowable. Malformed input yields a
// RewriteFailure.
func (r Rewriter) Classify(base string) (Shape, error) {
	s := Normalize(base)
	if s == "" {
		return ShapeOther, xerrors.New(xerrors.RewriteFailure, "empty query")
	}
	if r.Dialect == DialectPostgres {
		return classifyPostgres(s)
	}
	return classifyKeywords(s)
}

func classifyPostgres(s string) (Shape, error) {
	result, err := pg_query.Parse(s)
	if err != nil {
		return ShapeOther, xerrors.Wrap(xerrors.RewriteFailure, "failed to parse query", err)
	}
	switch len(result.Stmts) {
	case 0:
		return ShapeOther, xerrors.New(xerrors.RewriteFailure, "no statements found")
	case 1:
	default:
		return ShapeOther, xerrors.New(xerrors.RewriteFailure, "multiple statements cannot be wrapped")
	}
	if sel := result.Stmts[0].Stmt.GetSelectStmt(); sel != nil && sel.IntoClause == nil {
		return ShapeSelect, nil
	}
	return ShapeOther, nil
}

var selectKeywords = map[string]bool{"SELECT": true, "WITH": true, "VALUES": true}

func classifyKeywords(s string) (Shape, error) {
	stmts := splitStatements(s)
	if len(stmts) == 0 {
		return ShapeOther, xerrors.New(xerrors.RewriteFailure, "no statements found")
	}
	if len(stmts) > 1 {
		return ShapeOther, xerrors.New(xerrors.RewriteFailure, "multiple statements cannot be wrapped")
	}
	words := leadingWords(stmts[0], 4)
	if len(words) == 0 {
		return ShapeOther, xerrors.New(xerrors.RewriteFailure, "no statements found")
	}
	if !selectKeywords[words[0]] {
		return ShapeOther, nil
	}
	if words[0] == "WITH" {
		if verb := mainVerb(stmts[0]); verb != "SELECT" && verb != "VALUES" {
			return ShapeOther, nil
		}
	}
	for _, w := range words[1:] {
		if w == "INTO" {
			return ShapeOther, nil
		}
	}
	return ShapeSelect, nil
}

var statementVerbs = map[string]bool{
	"SELECT": true, "VALUES": true, "INSERT": true, "REPLACE": true, "UPDATE": true, "DELETE": true,
}

// mainVerb returns the statement keyword following the common table
// expressions of a WITH statement. Words inside parentheses or quotes belong
// to the CTE bodies and are skipped.
func mainVerb(stmt string) string {
	depth := 0
	var word strings.Builder
	check := func() string {
		w := strings.ToUpper(word.String())
		word.Reset()
		if depth == 0 && statementVerbs[w] {
			return w
		}
		return ""
	}
	runes := []rune(stmt)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_' {
			word.WriteRune(c)
			continue
		}
		if w := check(); w != "" {
			return w
		}
		switch c {
		case '(':
			depth++
		case ')':
			depth = max(depth-1, 0)
		case '\'', '"', '`':
			j := i + 1
			for j < len(runes) && runes[j] != c {
				j++
			}
			i = j
		}
	}
	return check()
}

// IsSchemaChange reports whether base creates, drops or alters a table, view
// or index.
func IsSchemaChange(base string) bool {
	for _, stmt := range splitStatements(Normalize(base)) {
		words := leadingWords(stmt, 6)
		if len(words) < 2 {
			continue
		}
		switch words[0] {
		case "CREATE", "DROP", "ALTER":
		default:
			continue
		}
		for _, w := range words[1:] {
			switch w {
			case "TABLE", "VIEW", "INDEX":
				return true
			}
		}
	}
	return false
}

// splitStatements splits on semicolons outside quotes and comments and drops
// empty statements.
func splitStatements(s string) []string {
	var out []string
	var cur strings.Builder
	flush := func() {
		if t := strings.TrimSpace(cur.String()); t != "" {
			out = append(out, t)
		}
		cur.Reset()
	}
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			j := i + 1
			for j < len(runes) && runes[j] != c {
				j++
			}
			cur.WriteString(string(runes[i:min(j+1, len(runes))]))
			i = j
		case c == '-' && i+1 < len(runes) && runes[i+1] == '-':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
			cur.WriteRune(' ')
		case c == '/' && i+1 < len(runes) && runes[i+1] == '*':
			i += 2
			for i+1 < len(runes) && !(runes[i] == '*' && runes[i+1] == '/') {
				i++
			}
			i++
			cur.WriteRune(' ')
		case c == ';':
			flush()
		default:
			cur.WriteRune(c)
		}
	}
	flush()
	return out
}

// leadingWords returns up to n upper-cased words, skipping punctuation such
// as the parenthesis of "(SELECT ...)".
func leadingWords(stmt string, n int) []string {
	fields := strings.FieldsFunc(stmt, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
	})
	if len(fields) > n {
		fields = fields[:n]
	}
	for i := range fields {
		fields[i] = strings.ToUpper(fields[i])
	}
	return fields
}

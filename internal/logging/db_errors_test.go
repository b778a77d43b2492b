// Copyright (c) 2025 Rowscope
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestParseDBError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want DBErrorType
	}{
		{name: "nil", err: nil, want: DBErrorUnknown},
		{name: "deadline", err: fmt.Errorf("count: %w", context.DeadlineExceeded), want: DBErrorTimeout},
		{name: "pg auth", err: &pgconn.PgError{Code: "28P01"}, want: DBErrorAuth},
		{name: "pg syntax", err: &pgconn.PgError{Code: "42601"}, want: DBErrorSyntax},
		{name: "pg missing table", err: &pgconn.PgError{Code: "42P01"}, want: DBErrorMissingObject},
		{name: "pg permission", err: &pgconn.PgError{Code: "42501"}, want: DBErrorPermission},
		{name: "pg cancel", err: &pgconn.PgError{Code: "57014"}, want: DBErrorTimeout},
		{name: "sqlite missing table", err: errors.New("SQL logic error: no such table: sales (1)"), want: DBErrorMissingObject},
		{name: "sqlite syntax", err: errors.New(`SQL logic error: near "SELEC": syntax error (1)`), want: DBErrorSyntax},
		{name: "refused", err: errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), want: DBErrorNetwork},
		{name: "other", err: errors.New("boom"), want: DBErrorUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseDBError(tt.err); got != tt.want {
				t.Errorf("ParseDBError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormatDBError_MasksDetails(t *testing.T) {
	err := errors.New("failed to connect to postgres://app:hunter2@db/sales: connection refused")
	out := FormatDBError(err)
	if strings.Contains(out, "hunter2") {
		t.Errorf("password leaked: %s", out)
	}
	if !strings.Contains(out, "could not be reached") {
		t.Errorf("expected network explanation, got: %s", out)
	}
	if FormatDBError(nil) != "" {
		t.Error("expected empty output for nil error")
	}
}

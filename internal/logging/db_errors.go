// Copyright (c) 2025 Rowscope
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pterm/pterm"
)

// DBErrorType is the category of a backend error.
type DBErrorType int

const (
	DBErrorUnknown DBErrorType = iota
	DBErrorNetwork
	DBErrorAuth
	DBErrorTimeout
	DBErrorSyntax
	DBErrorMissingObject
	DBErrorPermission
)

func (t DBErrorType) String() string {
	switch t {
	case DBErrorNetwork:
		return "network"
	case DBErrorAuth:
		return "auth"
	case DBErrorTimeout:
		return "timeout"
	case DBErrorSyntax:
		return "syntax"
	case DBErrorMissingObject:
		return "missing_object"
	case DBErrorPermission:
		return "permission"
	default:
		return "unknown"
	}
}

// ParseDBError categorizes an error returned by a database driver.
// Postgres errors are classified by SQLSTATE; everything else by message.
func ParseDBError(err error) DBErrorType {
	if err == nil {
		return DBErrorUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return DBErrorTimeout
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "28"):
			return DBErrorAuth
		case pgErr.Code == "42501":
			return DBErrorPermission
		case pgErr.Code == "42601":
			return DBErrorSyntax
		case pgErr.Code == "42P01", pgErr.Code == "42703", pgErr.Code == "3D000":
			return DBErrorMissingObject
		case pgErr.Code == "57014":
			return DBErrorTimeout
		case strings.HasPrefix(pgErr.Code, "08"):
			return DBErrorNetwork
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return DBErrorTimeout
		}
		return DBErrorNetwork
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "password authentication failed"),
		strings.Contains(lower, "authentication failed"):
		return DBErrorAuth
	case strings.Contains(lower, "permission denied"),
		strings.Contains(lower, "readonly database"):
		return DBErrorPermission
	case strings.Contains(lower, "syntax error"),
		strings.Contains(lower, "incomplete input"):
		return DBErrorSyntax
	case strings.Contains(lower, "no such table"),
		strings.Contains(lower, "no such column"),
		strings.Contains(lower, "does not exist"):
		return DBErrorMissingObject
	case strings.Contains(lower, "connection refused"),
		strings.Contains(lower, "connection reset"),
		strings.Contains(lower, "no such host"):
		return DBErrorNetwork
	case strings.Contains(lower, "timeout"),
		strings.Contains(lower, "canceling statement"):
		return DBErrorTimeout
	}
	return DBErrorUnknown
}

// FormatDBError formats a backend error in a user-friendly way.
func FormatDBError(err error) string {
	if err == nil {
		return ""
	}
	errType := ParseDBError(err)

	var builder strings.Builder
	builder.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint("Query failed"))
	builder.WriteString("\n\n")

	switch errType {
	case DBErrorNetwork:
		builder.WriteString("The database could not be reached.\n")
		builder.WriteString("Check that the server is running and the host and port are correct.\n")
	case DBErrorAuth:
		builder.WriteString("The database rejected the credentials.\n")
		builder.WriteString("Update the connection string with 'rowscope connect'.\n")
	case DBErrorTimeout:
		builder.WriteString("The database did not answer in time.\n")
		builder.WriteString("Large sorts on unindexed columns can be slow; try a narrower query.\n")
	case DBErrorSyntax:
		builder.WriteString("The statement is not valid SQL for this database.\n")
	case DBErrorMissingObject:
		builder.WriteString("The statement refers to a table or column that does not exist.\n")
		builder.WriteString("Run 'rowscope tables' to list what is available.\n")
	case DBErrorPermission:
		builder.WriteString("The connected user is not allowed to run this statement.\n")
	default:
		builder.WriteString("The database returned an error.\n")
	}

	builder.WriteString("\n")
	builder.WriteString(pterm.NewStyle(pterm.FgGray).Sprint("Technical details: " + Mask(err.Error())))
	return builder.String()
}

// PresentDBError prints a formatted backend error.
func PresentDBError(err error) {
	pterm.Println()
	pterm.Println(FormatDBError(err))
	pterm.Println()
}

// Copyright (c) 2025 Rowscope
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package model defines shared data structures for result browsing.
// It provides type definitions for rows, result windows, sort specifications
// and cell states that are exchanged between the backend adapters, the
// windowing engine and the presentation layer.
//
// The types in this package are backend-agnostic and carry no behavior
// beyond formatting helpers.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Row is one result record with values in column order.
type Row []any

// Window is a contiguous slice of a query result as returned by a backend.
type Window struct {
	Columns []string
	Rows    []Row
}

// SortDirection is the direction of an ORDER BY projection.
type SortDirection int

const (
	Asc SortDirection = iota
	Desc
)

func (d SortDirection) String() string {
	if d == Desc {
		return "DESC"
	}
	return "ASC"
}

// ParseSortDirection accepts asc/desc in any case. Empty input means Asc.
func ParseSortDirection(s string) (SortDirection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc", "ascending":
		return Asc, nil
	case "desc", "descending":
		return Desc, nil
	}
	return Asc, fmt.Errorf("unknown sort direction %q", s)
}

// SortSpec selects an optional ORDER BY column. The zero value means unsorted.
type SortSpec struct {
	Column    string
	Direction SortDirection
}

// IsSet reports whether a sort column is configured.
func (s SortSpec) IsSet() bool { return strings.TrimSpace(s.Column) != "" }

func (s SortSpec) String() string {
	if !s.IsSet() {
		return "unsorted"
	}
	return s.Column + " " + s.Direction.String()
}

// Mode is the loading strategy chosen for a query.
type Mode int

const (
	ModeUnknown Mode = iota
	ModeEager
	ModeWindowed
)

func (m Mode) String() string {
	switch m {
	case ModeEager:
		return "EAGER"
	case ModeWindowed:
		return "WINDOWED"
	}
	return "UNKNOWN"
}

// CellState tells the presentation layer how to render a cell.
type CellState int

const (
	CellValue CellState = iota
	CellLoading
	CellError
	CellOutOfRange
)

func (s CellState) String() string {
	switch s {
	case CellValue:
		return "VALUE"
	case CellLoading:
		return "LOADING"
	case CellError:
		return "ERROR"
	}
	return "OUT_OF_RANGE"
}

// Cell is the answer to a cell(row, col) query.
type Cell struct {
	State CellState
	Value any
	Err   error
}

// Text renders the cell for a terminal grid.
func (c Cell) Text() string {
	switch c.State {
	case CellLoading:
		return "…"
	case CellError:
		return "!error"
	case CellOutOfRange:
		return ""
	}
	return FormatValue(c.Value)
}

// FormatValue renders a single value, using NULL for nil.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return fmt.Sprintf("\\x%x", t)
	case [16]byte:
		return fmt.Sprintf("%x-%x-%x-%x-%x", t[0:4], t[4:6], t[6:8], t[8:10], t[10:16])
	case time.Time:
		return t.Format(time.RFC3339)
	case string:
		return t
	}
	return fmt.Sprint(v)
}

// IsNumeric reports whether v should be right-aligned in a grid.
func IsNumeric(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

// Estimate is the row count of a query version. Known is false when the
// count probe did not produce a value.
type Estimate struct {
	Value      int64
	Known      bool
	ComputedAt time.Time
	Epoch      int64
}

func (e Estimate) String() string {
	if !e.Known {
		return "UNKNOWN"
	}
	return fmt.Sprint(e.Value)
}

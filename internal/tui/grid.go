// Copyright (c) 2025 Rowscope
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package tui renders query results as a scrolling grid in the terminal.
package tui

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"rowscope/cli/internal/chunk"
	"rowscope/cli/internal/model"

	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"
)

// maxCellWidth bounds a rendered cell so one long text value cannot push
// the rest of the row off screen.
const maxCellWidth = 40

// Source provides the cells to render.
type Source interface {
	Columns() []string
	Cell(row int64, col int) model.Cell
}

// GridOptions selects what part of the result is drawn.
type GridOptions struct {
	First    int64
	Height   int
	Selected int
	Sort     model.SortSpec
}

// RenderGrid draws rows [First, First+Height) of src as a table. Numeric
// values are right-aligned and missing rows end the table early.
func RenderGrid(src Source, opts GridOptions) (string, error) {
	cols := src.Columns()
	if len(cols) == 0 {
		return pterm.FgGray.Sprint("waiting for the first rows"), nil
	}

	loading := model.Cell{State: model.CellLoading}.Text()

	header := make([]string, 0, len(cols)+1)
	header = append(header, "#")
	for i, c := range cols {
		header = append(header, headerLabel(c, i == opts.Selected, opts.Sort))
	}

	type cell struct {
		text    string
		numeric bool
	}
	var body [][]cell
	for r := opts.First; r < opts.First+int64(opts.Height); r++ {
		if src.Cell(r, 0).State == model.CellOutOfRange {
			break
		}
		row := make([]cell, 0, len(cols)+1)
		row = append(row, cell{text: humanize.Comma(r + 1), numeric: true})
		for c := range cols {
			v := src.Cell(r, c)
			row = append(row, cell{text: truncate(v.Text()), numeric: v.State == model.CellValue && model.IsNumeric(v.Value)})
		}
		body = append(body, row)
	}

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = textWidth(h)
	}
	for _, row := range body {
		for i, c := range row {
			widths[i] = max(widths[i], textWidth(c.text))
		}
	}

	data := make([][]string, 0, len(body)+1)
	data = append(data, header)
	for _, row := range body {
		line := make([]string, len(row))
		for i, c := range row {
			text := c.text
			if c.numeric {
				text = strings.Repeat(" ", widths[i]-textWidth(text)) + text
			}
			if c.text == loading || (c.text == "NULL" && !c.numeric) {
				text = pterm.FgGray.Sprint(text)
			}
			line[i] = text
		}
		data = append(data, line)
	}

	return pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
}

func headerLabel(name string, selected bool, sort model.SortSpec) string {
	label := name
	if sort.IsSet() && sort.Column == name {
		if sort.Direction == model.Desc {
			label += " ▼"
		} else {
			label += " ▲"
		}
	}
	if selected {
		label = pterm.NewStyle(pterm.FgCyan, pterm.Underscore).Sprint(label)
	}
	return label
}

func truncate(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if utf8.RuneCountInString(s) <= maxCellWidth {
		return s
	}
	r := []rune(s)
	return string(r[:maxCellWidth-1]) + "…"
}

func textWidth(s string) int {
	return utf8.RuneCountInString(pterm.RemoveColorFromString(s))
}

// Status is what the status bar shows.
type Status struct {
	First, Last int64
	Total       model.Estimate
	Mode        model.Mode
	State       string
	Sort        model.SortSpec
	Epoch       int64
	Cache       chunk.Stats
	Capacity    int
	Warning     string
}

// StatusLine renders the status bar.
func StatusLine(s Status) string {
	parts := []string{}

	total := "?"
	if s.Total.Known {
		total = humanize.Comma(s.Total.Value)
	}
	if s.Total.Known && s.Total.Value == 0 {
		parts = append(parts, "no rows")
	} else {
		parts = append(parts, fmt.Sprintf("rows %s-%s of %s", humanize.Comma(s.First+1), humanize.Comma(s.Last+1), total))
	}

	mode := s.Mode.String()
	if s.Mode == model.ModeUnknown {
		mode = s.State
	}
	parts = append(parts, pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint(mode))

	if s.Sort.IsSet() {
		parts = append(parts, "sorted by "+s.Sort.String())
	}
	if s.Mode == model.ModeWindowed {
		parts = append(parts, fmt.Sprintf("cache %d/%d hit %.0f%%", s.Cache.Size, s.Capacity, s.Cache.HitRate()*100))
	}
	parts = append(parts, fmt.Sprintf("epoch %d", s.Epoch))
	if s.Warning != "" {
		parts = append(parts, pterm.FgYellow.Sprint(s.Warning))
	}
	return strings.Join(parts, " │ ")
}

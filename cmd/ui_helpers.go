// Copyright (c) 2025 Rowscope
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"rowscope/cli/internal/backend"
	"rowscope/cli/internal/model"
	"rowscope/cli/internal/session"

	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"
)

// spinnerFrames are the frames used by startInlineSpinner.
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// startInlineSpinner starts a simple inline spinner animation on a single line.
// It displays rotating animation frames followed by the provided text, updating
// the same line in the terminal until the returned function is called. The
// line is cleared when the spinner stops.
func startInlineSpinner(w io.Writer, text string, frames []string, interval time.Duration) func() {
	stop := make(chan struct{})
	var wg sync.WaitGroup
	var once sync.Once
	wg.Add(1)
	go func() {
		defer wg.Done()
		i := 0
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			line := fmt.Sprintf("%s %s", frames[i%len(frames)], text)
			select {
			case <-stop:
				fmt.Fprintf(w, "\r%s\r", strings.Repeat(" ", len([]rune(line))))
				return
			case <-ticker.C:
				fmt.Fprintf(w, "\r%s", line)
				i++
			}
		}
	}()
	return func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
		})
	}
}

// printRunSummary prints what a finished run returned.
func printRunSummary(s *session.Session) {
	total := s.TotalRowEstimate()
	switch s.ModeIndicator() {
	case model.ModeEager:
		pterm.Success.Printf("%s rows returned in %.3f seconds\n", humanize.Comma(total.Value), s.Elapsed().Seconds())
	case model.ModeWindowed:
		pterm.Info.Printf("%s rows (%s mode, %s rows per chunk)\n", humanize.Comma(total.Value), model.ModeWindowed, humanize.Comma(int64(s.Config().ChunkSize)))
	}
	for _, w := range s.Warnings() {
		pterm.Warning.Println(w.Error())
	}
}

// renderSchema draws the tables, views and indexes of a database.
func renderSchema(schema backend.Schema) string {
	var sb strings.Builder
	title := pterm.NewStyle(pterm.FgCyan, pterm.Bold)

	if schema.Database != "" {
		sb.WriteString(title.Sprint("Database: ") + schema.Database + "\n\n")
	}
	if len(schema.Tables) == 0 {
		sb.WriteString(pterm.FgGray.Sprint("No tables") + "\n")
	}
	for _, t := range schema.Tables {
		data := pterm.TableData{{"column", "type", "key", "null"}}
		for _, c := range t.Columns {
			key, null := "", ""
			if c.PrimaryKey {
				key = "PK"
			}
			if c.Nullable {
				null = "yes"
			}
			data = append(data, []string{c.Name, c.Type, key, null})
		}
		sb.WriteString(title.Sprint(t.Name) + "\n")
		out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
		if err != nil {
			out = err.Error()
		}
		sb.WriteString(out + "\n\n")
	}
	if len(schema.Views) > 0 {
		sb.WriteString(title.Sprint("Views") + "\n")
		for _, v := range schema.Views {
			sb.WriteString("  " + v + "\n")
		}
		sb.WriteString("\n")
	}
	if len(schema.Indexes) > 0 {
		sb.WriteString(title.Sprint("Indexes") + "\n")
		for _, ix := range schema.Indexes {
			sb.WriteString(fmt.Sprintf("  %s on %s\n", ix.Name, ix.Table))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

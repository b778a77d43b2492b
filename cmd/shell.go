// Copyright (c) 2025 Rowscope
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"rowscope/cli/internal/backend"
	"rowscope/cli/internal/logging"
	"rowscope/cli/internal/model"
	"rowscope/cli/internal/session"
	"rowscope/cli/internal/tui"
	"rowscope/cli/internal/xdg"

	"github.com/dustin/go-humanize"
	"github.com/peterh/liner"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	shellPageSize int
)

// shellCommands are the backslash commands understood by the shell.
var shellCommands = []string{`\sort`, `\rerun`, `\tables`, `\mode`, `\stats`, `\page`, `\browse`, `\help`, `\q`}

const shellHelp = `Statements end with ';'. Commands:
  \sort <column> [asc|desc]  re-run the query ordered by column
  \rerun                     run the query again
  \page <n>                  show page n of the result
  \browse                    open the result in the interactive grid
  \tables                    list tables, views and indexes
  \mode                      show the loading mode and row estimate
  \stats                     show cache activity
  \q                         quit`

// shellCmd starts an interactive SQL prompt.
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive SQL prompt",
	Long: `The shell command reads SQL statements and prints the first page of each result.
Large results are loaded in windows, so '\page' and '\browse' stay fast on any
result size.

` + shellHelp,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Lazy.CheckSpan(int64(shellPageSize)); err != nil {
			return fmt.Errorf("invalid --page-size: %w", err)
		}
		ctx := cmd.Context()
		port, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer port.Close()

		s, err := newSession(port, nil)
		if err != nil {
			return err
		}
		defer s.Close()

		sh := &shell{s: s, port: port, pageSize: shellPageSize}
		line := liner.NewLiner()
		defer line.Close()
		line.SetCtrlCAborts(true)
		line.SetCompleter(sh.complete)

		historyPath, herr := xdg.HistoryFile()
		if herr == nil {
			if f, err := os.Open(historyPath); err == nil {
				_, _ = line.ReadHistory(f)
				_ = f.Close()
			}
		}
		defer func() {
			if herr != nil {
				return
			}
			if f, err := os.OpenFile(historyPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
				_, _ = line.WriteHistory(f)
				_ = f.Close()
			}
		}()

		pterm.Printf("Connected to %s. Type \\help for commands.\n", port.Dialect())
		var buf strings.Builder
		for {
			prompt := "rowscope> "
			if buf.Len() > 0 {
				prompt = "      ... "
			}
			input, err := line.Prompt(prompt)
			if errors.Is(err, liner.ErrPromptAborted) {
				buf.Reset()
				continue
			}
			if errors.Is(err, io.EOF) {
				pterm.Println()
				return nil
			}
			if err != nil {
				return err
			}

			stmt, ready := sh.feed(&buf, input)
			if !ready {
				continue
			}
			line.AppendHistory(stmt)
			quit, err := sh.exec(ctx, stmt)
			if err != nil {
				pterm.Error.Println(logging.PresentError("Error", err))
			}
			if quit {
				return nil
			}
		}
	},
}

// shell holds the state of one interactive session.
type shell struct {
	s        *session.Session
	port     backend.Port
	pageSize int
}

// feed appends one input line to buf. It returns a complete statement or
// command when one is ready.
func (sh *shell) feed(buf *strings.Builder, input string) (string, bool) {
	trimmed := strings.TrimSpace(input)
	if buf.Len() == 0 {
		if trimmed == "" {
			return "", false
		}
		if strings.HasPrefix(trimmed, `\`) {
			return trimmed, true
		}
	}
	if buf.Len() > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString(input)
	if !strings.HasSuffix(trimmed, ";") {
		return "", false
	}
	stmt := strings.TrimSpace(buf.String())
	buf.Reset()
	return stmt, true
}

// exec runs one statement or backslash command.
func (sh *shell) exec(ctx context.Context, stmt string) (quit bool, err error) {
	if !strings.HasPrefix(stmt, `\`) {
		return false, sh.run(ctx, func() error { return sh.s.Run(ctx, stmt) })
	}

	fields := strings.Fields(stmt)
	switch fields[0] {
	case `\q`, `\quit`:
		return true, nil
	case `\help`, `\?`:
		pterm.Println(shellHelp)
	case `\sort`:
		column, dir, err := parseSortArgs(fields[1:])
		if err != nil {
			return false, err
		}
		return false, sh.run(ctx, func() error { return sh.s.Sort(ctx, column, dir) })
	case `\rerun`:
		return false, sh.run(ctx, func() error { return sh.s.Rerun(ctx) })
	case `\page`:
		if len(fields) != 2 {
			return false, errors.New(`usage: \page <n>`)
		}
		n, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil || n < 1 {
			return false, fmt.Errorf("invalid page %q", fields[1])
		}
		return false, sh.showPage(ctx, n-1)
	case `\browse`:
		if sh.s.State() == session.StateIdle {
			return false, errors.New("no query to browse")
		}
		b := tui.NewBrowser(sh.s, sh.pageSize, sh.s.Config().CacheCapacity)
		if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return false, err
		}
	case `\tables`:
		return false, sh.showTables(ctx)
	case `\mode`:
		pterm.Printf("mode %s, state %s, estimate %s, epoch %d\n",
			sh.s.ModeIndicator(), sh.s.State(), sh.s.TotalRowEstimate(), sh.s.Epoch())
	case `\stats`:
		sh.showStats()
	default:
		return false, fmt.Errorf("unknown command %s; try \\help", fields[0])
	}
	return false, nil
}

// run starts a query and prints its first page and summary.
func (sh *shell) run(ctx context.Context, start func() error) error {
	if err := start(); err != nil {
		return err
	}
	if err := sh.showPage(ctx, 0); err != nil {
		return err
	}
	printRunSummary(sh.s)
	if sh.s.SchemaStale() {
		if err := sh.showTables(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (sh *shell) showPage(ctx context.Context, page int64) error {
	if sh.s.State() == session.StateIdle {
		return errors.New("no query has been run")
	}
	first := page * int64(sh.pageSize)
	last := first + int64(sh.pageSize) - 1
	if _, err := awaitRange(ctx, sh.s, first, last); err != nil {
		return err
	}
	if total := sh.s.TotalRowEstimate(); total.Known && first >= total.Value && total.Value > 0 {
		return fmt.Errorf("page %d is past the end of the result (%s rows)", page+1, humanize.Comma(total.Value))
	}
	out, err := renderPage(sh.s, first, sh.pageSize)
	if err != nil {
		return err
	}
	pterm.Println(out)
	return nil
}

func (sh *shell) showTables(ctx context.Context) error {
	out, err := describeSchema(ctx, sh.port)
	if err != nil {
		return err
	}
	pterm.Println(out)
	sh.s.MarkSchemaFresh()
	return nil
}

func (sh *shell) showStats() {
	st := sh.s.Stats()
	data := [][]string{
		{"state", st.State.String()},
		{"mode", st.Mode.String()},
		{"epoch", strconv.FormatInt(st.Epoch, 10)},
		{"cached chunks", fmt.Sprintf("%d/%d", st.Cache.Size, sh.s.Config().CacheCapacity)},
		{"in flight", strconv.FormatInt(st.Cache.InFlight, 10)},
		{"queued / running", fmt.Sprintf("%d / %d", st.Queued, st.Running)},
		{"hits / misses", fmt.Sprintf("%s / %s", humanize.Comma(st.Cache.Hits), humanize.Comma(st.Cache.Misses))},
		{"loads", humanize.Comma(st.Cache.Loads)},
		{"evictions", humanize.Comma(st.Cache.Evictions)},
		{"discarded", humanize.Comma(st.Cache.Discarded)},
		{"failures", humanize.Comma(st.Cache.Failures)},
	}
	_ = pterm.DefaultTable.WithData(data).Render()
}

// complete offers backslash commands and the current result's column names.
func (sh *shell) complete(line string) []string {
	var out []string
	if strings.HasPrefix(line, `\sort `) {
		prefix := strings.TrimPrefix(line, `\sort `)
		for _, c := range sh.s.Columns() {
			if strings.HasPrefix(c, prefix) {
				out = append(out, `\sort `+c)
			}
		}
		return out
	}
	for _, c := range shellCommands {
		if strings.HasPrefix(c, line) {
			out = append(out, c)
		}
	}
	return out
}

// parseSortArgs reads "<column> [asc|desc]".
func parseSortArgs(args []string) (string, model.SortDirection, error) {
	switch len(args) {
	case 1:
		return args[0], model.Asc, nil
	case 2:
		dir, err := model.ParseSortDirection(args[1])
		return args[0], dir, err
	default:
		return "", model.Asc, errors.New(`usage: \sort <column> [asc|desc]`)
	}
}

func init() {
	rootCmd.AddCommand(shellCmd)
	shellCmd.Flags().IntVar(&shellPageSize, "page-size", 20, "Rows per page")
}

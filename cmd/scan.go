// Copyright (c) 2025 Rowscope
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"rowscope/cli/internal/logging"
	"rowscope/cli/internal/model"
	"rowscope/cli/internal/session"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	scanStep  int
	scanLimit int64
	scanPrint bool
)

// scanCmd scrolls through a result from top to bottom without a terminal UI
// and reports how the cache behaved.
var scanCmd = &cobra.Command{
	Use:   "scan <sql>",
	Short: "Scroll through a result non-interactively and report cache activity",
	Long: `The scan command runs a query and moves a viewport from the first row to the
last, one step at a time, waiting for each step to load. It prints one line per
step and a summary of the loads, cache hits and evictions at the end.`,
	Example: `  rowscope scan "SELECT * FROM large_sales_data"
  rowscope scan --step 250 --limit 10000 --print "SELECT id, status FROM large_sales_data"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		step := int64(scanStep)
		if step <= 0 {
			step = int64(cfg.Lazy.ChunkSize)
		}
		if err := cfg.Lazy.CheckSpan(step); err != nil {
			return fmt.Errorf("invalid --step: %w", err)
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer cancel()

		port, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer port.Close()

		reg := prometheus.NewRegistry()
		s, err := newSession(port, reg)
		if err != nil {
			return err
		}
		defer s.Close()

		started := time.Now()
		if err := s.Run(ctx, strings.Join(args, " ")); err != nil {
			pterm.Error.Println(logging.PresentError("Query failed", err))
			return err
		}
		pterm.Info.Printf("%s mode, estimate %s\n", s.ModeIndicator(), s.TotalRowEstimate())

		var visited int64
		var failedChunks int
		for top := int64(0); ; top += step {
			last := top + step - 1
			if scanLimit > 0 {
				last = min(last, scanLimit-1)
			}
			failed, err := awaitRange(ctx, s, top, last)
			if err != nil {
				return err
			}
			failedChunks += failed

			total := s.TotalRowEstimate()
			if total.Known {
				last = min(last, total.Value-1)
			}
			if last < top {
				break
			}
			visited = last + 1
			printStep(s, top, last, failed)
			if scanPrint {
				page, err := renderPage(s, top, int(last-top+1))
				if err != nil {
					return err
				}
				pterm.Println(page)
			}

			if !total.Known || visited >= total.Value || (scanLimit > 0 && visited >= scanLimit) {
				break
			}
		}

		pterm.Println()
		printScanSummary(s, reg, visited, failedChunks, time.Since(started))
		return nil
	},
}

func printStep(s *session.Session, first, last int64, failed int) {
	st := s.Stats()
	line := fmt.Sprintf("rows %s-%s  cache %d/%d  loads %d  hits %d  evictions %d",
		humanize.Comma(first+1), humanize.Comma(last+1),
		st.Cache.Size, s.Config().CacheCapacity, st.Cache.Loads, st.Cache.Hits, st.Cache.Evictions)
	if failed > 0 {
		line += pterm.FgRed.Sprintf("  failed chunks %d", failed)
	}
	pterm.Println(line)
}

func printScanSummary(s *session.Session, g prometheus.Gatherer, visited int64, failed int, elapsed time.Duration) {
	st := s.Stats()
	data := pterm.TableData{
		{"metric", "value"},
		{"mode", s.ModeIndicator().String()},
		{"rows visited", humanize.Comma(visited)},
		{"elapsed", elapsed.Round(time.Millisecond).String()},
	}
	if s.ModeIndicator() == model.ModeWindowed {
		data = append(data,
			[]string{"chunk loads", humanize.Comma(st.Cache.Loads)},
			[]string{"cache hits", humanize.Comma(st.Cache.Hits)},
			[]string{"cache misses", humanize.Comma(st.Cache.Misses)},
			[]string{"hit rate", fmt.Sprintf("%.1f%%", st.Cache.HitRate()*100)},
			[]string{"evictions", humanize.Comma(st.Cache.Evictions)},
			[]string{"discarded", humanize.Comma(st.Cache.Discarded)},
			[]string{"failed chunks", humanize.Comma(int64(failed))},
		)
	}
	data = append(data, loadTimings(g)...)
	_ = pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Render()
}

// loadTimings summarizes the load histogram as "loads <kind> <result>" rows.
func loadTimings(g prometheus.Gatherer) [][]string {
	families, err := g.Gather()
	if err != nil {
		logger.Warn("failed to gather metrics", "error", err)
		return nil
	}
	var rows [][]string
	for _, mf := range families {
		if mf.GetName() != "rowscope_load_seconds" && mf.GetName() != "rowscope_count_probe_seconds" {
			continue
		}
		for _, m := range mf.GetMetric() {
			h := m.GetHistogram()
			if h.GetSampleCount() == 0 {
				continue
			}
			avg := time.Duration(h.GetSampleSum() / float64(h.GetSampleCount()) * float64(time.Second))
			rows = append(rows, []string{
				strings.TrimSuffix(strings.TrimPrefix(mf.GetName(), "rowscope_"), "_seconds") + " " + labelValues(m),
				fmt.Sprintf("%d, avg %s", h.GetSampleCount(), avg.Round(time.Microsecond)),
			})
		}
	}
	return rows
}

func labelValues(m *dto.Metric) string {
	vals := make([]string, 0, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		vals = append(vals, lp.GetValue())
	}
	return strings.Join(vals, "/")
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().IntVar(&scanStep, "step", 0, "Rows per scroll step (default lazy.chunk_size)")
	scanCmd.Flags().Int64Var(&scanLimit, "limit", 0, "Stop after this many rows (0 scans the whole result)")
	scanCmd.Flags().BoolVar(&scanPrint, "print", false, "Print the rows of every step")
}

// Copyright (c) 2025 Rowscope
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"time"

	"rowscope/cli/internal/logging"
	"rowscope/cli/internal/metrics"
	"rowscope/cli/internal/terminal"
	"rowscope/cli/internal/tui"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	metricsAddr string
)

// browseCmd opens an interactive grid over the result of a query.
var browseCmd = &cobra.Command{
	Use:   "browse <sql>",
	Short: "Scroll through the result of a query",
	Long: `The browse command runs a query and shows its result in an interactive grid.

Results with more rows than lazy.threshold are fetched in chunks of
lazy.chunk_size rows as you scroll; smaller ones are loaded at once.

Keys: arrows or h/j/k/l move, PgUp/PgDn page, Home/End jump, s sorts by the
selected column (again to reverse), r re-runs the query, q quits.`,
	Example: `  rowscope browse "SELECT * FROM large_sales_data"
  rowscope browse --metrics-addr :9464 "SELECT * FROM events"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !terminal.IsInteractive() {
			return errors.New("browse needs an interactive terminal; use 'rowscope scan' instead")
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

		if metricsAddr != "" {
			go func() {
				if err := metrics.Serve(ctx, metricsAddr, reg); err != nil {
					logger.Error("metrics server stopped", "addr", metricsAddr, "error", err)
				}
			}()
			logger.Info("serving metrics", "addr", metricsAddr)
		}

		sql := strings.Join(args, " ")
		stop := startInlineSpinner(os.Stderr, "counting rows", spinnerFrames, 100*time.Millisecond)
		err = s.Run(ctx, sql)
		stop()
		if err != nil {
			pterm.Error.Println(logging.PresentError("Query failed", err))
			return err
		}

		b := tui.NewBrowser(s, 20, cfg.Lazy.CacheCapacity)
		if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		printRunSummary(s)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(browseCmd)
	browseCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while browsing (e.g. :9464)")
}

// Copyright (c) 2025 Rowscope
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"path/filepath"

	"rowscope/cli/internal/sqlexec"

	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	demoRows int64
)

// demoCmd writes a large synthetic table to a SQLite file for trying out
// windowed loading.
var demoCmd = &cobra.Command{
	Use:   "demo [path]",
	Short: "Create a SQLite database with a large sample table",
	Long: `The demo command creates (or replaces) the large_sales_data table in a SQLite
file. The default of one million rows is well above lazy.threshold, so browsing
it uses windowed loading.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "rowscope-demo.db"
		if len(args) == 1 {
			path = args[0]
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}

		port, err := sqlexec.OpenSQLite(cmd.Context(), abs)
		if err != nil {
			return err
		}
		defer port.Close()

		bar, err := pterm.DefaultProgressbar.
			WithTotal(int(demoRows)).
			WithTitle("Generating " + sqlexec.DemoTable).
			WithRemoveWhenDone(true).
			Start()
		if err != nil {
			return err
		}
		var written int64
		err = sqlexec.GenerateDemo(cmd.Context(), port, demoRows, func(n int64) {
			bar.Add(int(n - written))
			written = n
		})
		_, _ = bar.Stop()
		if err != nil {
			return err
		}

		pterm.Success.Printf("Wrote %s rows to %s in %s\n", humanize.Comma(demoRows), sqlexec.DemoTable, abs)
		pterm.Println()
		pterm.Println("Try it:")
		pterm.Println(fmt.Sprintf("   rowscope browse --dsn sqlite://%s \"SELECT * FROM %s\"", abs, sqlexec.DemoTable))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(demoCmd)
	demoCmd.Flags().Int64Var(&demoRows, "rows", 1_000_000, "Number of rows to generate")
}

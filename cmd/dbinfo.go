// Copyright (c) 2025 Rowscope
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"errors"
	"fmt"

	"rowscope/cli/internal/dsn"
	"rowscope/cli/internal/logging"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// dbinfoCmd represents the dbinfo command for displaying database connection information.
// It shows the current database connection string with credentials masked.
var dbinfoCmd = &cobra.Command{
	Use:   "dbinfo",
	Short: "Show current database connection string",
	Long: `The dbinfo command displays the currently configured database connection string (DSN)
with the password masked for security. This helps verify which database you're connected to
without exposing sensitive credentials.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		raw, source, err := resolveDSN()
		if errors.Is(err, errNoDSN) {
			pterm.Warning.Println("No database connection configured")
			pterm.Println("   Please run: rowscope connect")
			return nil
		}
		if err != nil {
			return err
		}
		pterm.Printf("Using DSN from %s\n\n", source)

		info, err := dsn.ParseInfo(raw)
		if err != nil {
			return err
		}

		body := logging.Mask(raw)
		body += "\n\n" + fmt.Sprintf("type:     %s", info.Type)
		if info.Host != "" {
			body += "\n" + fmt.Sprintf("host:     %s:%s", info.Host, info.Port)
		}
		body += "\n" + fmt.Sprintf("database: %s", info.Database)

		pterm.DefaultBox.
			WithTitle(pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint("Database Connection")).
			WithPadding(1).
			Println(body)
		pterm.Println()
		pterm.Println("To update this connection, run: rowscope connect")
		pterm.Println()

		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbinfoCmd)
}

// Copyright (c) 2025 Rowscope
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"rowscope/cli/internal/backend"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	// Version holds the CLI version information.
	// This value is typically set at build time using -ldflags.
	Version = "0.0.0-dev"
)

// versionCmd prints the CLI version and the database backends compiled in.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		printVersion()
		return nil
	},
}

func printVersion() {
	pterm.Printf("rowscope %s\n", Version)
	pterm.Printf("backends %v\n", backend.Registered())
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

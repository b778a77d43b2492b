// Copyright (c) 2025 Rowscope
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package cmd provides the command-line interface for the Rowscope CLI application.
// It implements subcommands for connecting to a database, browsing query results
// of any size and inspecting the schema, using the Cobra CLI framework. Results
// are loaded whole when small and in cached windows when large.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"rowscope/cli/internal/config"
	"rowscope/cli/internal/logging"

	"github.com/spf13/cobra"
)

var (
	showVersion bool
	logLevel    string
	logFormat   string
	dsnFlag     string

	// cfg and logger are set before any subcommand runs.
	cfg    config.Config
	logger = slog.New(slog.DiscardHandler)
)

// rootCmd represents the base command when called without any subcommands.
// It serves as the entry point for the Rowscope CLI application.
var rootCmd = &cobra.Command{
	Use:   "rowscope",
	Short: "Browse SQL query results of any size from the terminal",
	Long: `Rowscope runs a SQL query and lets you scroll through its result. Small results
are loaded at once; large ones are fetched in windows as you scroll, so a
ten-million-row table opens as fast as a ten-row one.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			cfg.LogFormat = logFormat
		}
		l, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			printVersion()
			return nil
		}
		// If no flag is set, show help
		return cmd.Help()
	},
}

// Execute runs the CLI application.
// It executes the root command and handles any errors that occur during execution.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, logging.PresentError("", err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Show version information")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (trace, debug, info, warn, error, off)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", logging.FormatText, "Log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&dsnFlag, "dsn", "", "Database connection string (overrides ROWSCOPE_DSN, DATABASE_URL and the keychain)")
}

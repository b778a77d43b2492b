// Copyright (c) 2025 Rowscope
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"fmt"

	"rowscope/cli/internal/backend"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// tablesCmd lists the tables, views and indexes of the connected database.
var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List tables, views and indexes",
	RunE: func(cmd *cobra.Command, args []string) error {
		port, err := openDatabase(cmd.Context())
		if err != nil {
			return err
		}
		defer port.Close()

		out, err := describeSchema(cmd.Context(), port)
		if err != nil {
			return err
		}
		pterm.Println(out)
		return nil
	},
}

// describeSchema reads and renders the schema of port.
func describeSchema(ctx context.Context, port backend.Port) (string, error) {
	sr, ok := port.(backend.SchemaReader)
	if !ok {
		return "", fmt.Errorf("schema listing is not supported for %s", port.Dialect())
	}
	schema, err := sr.Schema(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read schema: %w", err)
	}
	return renderSchema(schema), nil
}

func init() {
	rootCmd.AddCommand(tablesCmd)
}

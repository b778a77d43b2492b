// Copyright (c) 2025 Rowscope
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"rowscope/cli/internal/config"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// configCmd groups the configuration subcommands.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change settings",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show all settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Show the file as stored, without flag overrides.
		c, err := config.Load()
		if err != nil {
			return err
		}
		data := pterm.TableData{{"key", "value"}}
		for _, k := range config.Keys() {
			v, err := c.Get(k)
			if err != nil {
				return err
			}
			data = append(data, []string{k, v})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

var configSetCmd = &cobra.Command{
	Use:       "set <key> <value>",
	Short:     "Change one setting",
	Args:      cobra.ExactArgs(2),
	ValidArgs: config.Keys(),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return err
		}
		if err := c.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := config.Save(c); err != nil {
			return err
		}
		pterm.Success.Printf("%s = %s\n", args[0], args[1])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd)
	rootCmd.AddCommand(configCmd)
}

// Package main is the entry point for the Rowscope CLI application.
// It browses SQL query results of any size from the terminal.
package main

import (
	"rowscope/cli/cmd"
)

// main is the entry point for the Rowscope CLI application.
// It initializes and executes the command-line interface.
func main() {
	cmd.Execute()
}

// Package cmd implements the CLI commands for richsync using Cobra.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "richsync",
	Short: "richsync — placeholder-based rich-text document synchronization",
	Long: `richsync keeps rich-text documents portable: the store never holds raw
image bytes or host-specific markup, only flat text with [IMG:<id>] tokens
plus a separate list of image records.

Usage:
  richsync serve --db richsync.db
  richsync export <document-id> --markdown
  richsync clean fragment.html`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

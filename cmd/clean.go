// Package cmd — clean command.
// Normalizes a markup fragment from a file or stdin to stdout. Useful for
// inspecting what the engine does to a fragment, and for one-off cleanup of
// legacy content before import.
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"richsync/core/normalize"
)

var cleanCmd = &cobra.Command{
	Use:   "clean [file]",
	Short: "Normalize a markup fragment to canonical form",
	Long: `Clean reads a rich-text fragment from the given file (or stdin when no
file is given), applies the markup normalizer, and writes the canonical
form to stdout.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	var input []byte
	var err error
	if len(args) == 1 {
		input, err = os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
	} else {
		input, err = io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
	}

	fmt.Fprintln(os.Stdout, normalize.New().Normalize(string(input)))
	return nil
}

// Package cmd — export command.
// Loads one document from the store and renders it to the chosen output
// format: Markdown, PDF, or structured JSON.
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"richsync/core"
	"richsync/core/render"
	"richsync/store"
)

var (
	flagExportDB  string
	flagMarkdown  bool
	flagPDF       bool
	flagJSON      bool
	flagOutputDir string
)

var exportCmd = &cobra.Command{
	Use:   "export <document-id>",
	Short: "Export a document to Markdown, PDF, or JSON",
	Long: `Export loads a document, decodes its storage form, and renders it.

Examples:
  richsync export 12 --markdown
  richsync export 12 --pdf --output_dir ./out`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&flagExportDB, "db", "richsync.db", "SQLite database path")
	exportCmd.Flags().BoolVar(&flagMarkdown, "markdown", false, "Output Markdown")
	exportCmd.Flags().BoolVar(&flagPDF, "pdf", false, "Output PDF")
	exportCmd.Flags().BoolVar(&flagJSON, "json", false, "Output structured JSON")
	exportCmd.Flags().StringVar(&flagOutputDir, "output_dir", "", "Output directory (default: current directory)")
}

func runExport(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid document id %q", args[0])
	}

	renderer, err := selectRenderer()
	if err != nil {
		return err
	}

	st, err := store.Open(flagExportDB)
	if err != nil {
		return err
	}
	defer st.Close()

	doc, err := st.Load(context.Background(), id)
	if err != nil {
		return err
	}

	data, err := renderer.Render(doc)
	if err != nil {
		return err
	}

	outDir := flagOutputDir
	if outDir == "" {
		if outDir, err = os.Getwd(); err != nil {
			return fmt.Errorf("getting working directory: %w", err)
		}
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	path := filepath.Join(outDir, fmt.Sprintf("document_%d%s", id, renderer.Extension()))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing file %s: %w", path, err)
	}

	fmt.Fprintf(os.Stdout, "✓ Written: %s\n", path)
	return nil
}

// selectRenderer creates the appropriate Renderer based on flags.
// Exactly one output format must be chosen.
func selectRenderer() (core.Renderer, error) {
	count := 0
	for _, f := range []bool{flagMarkdown, flagPDF, flagJSON} {
		if f {
			count++
		}
	}
	if count != 1 {
		return nil, fmt.Errorf("exactly one output format is required: --markdown, --pdf, or --json")
	}

	switch {
	case flagMarkdown:
		return render.NewMarkdownRenderer(), nil
	case flagPDF:
		return render.NewPDFRenderer(), nil
	default:
		return render.NewJSONRenderer(), nil
	}
}

// Package cmd — serve command.
// Starts the REST server over a SQLite document store and a disk-backed
// upload service, and serves the uploaded files themselves.
package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"richsync/api"
	"richsync/store"
	"richsync/upload"
)

var (
	flagAddr       string
	flagDB         string
	flagUploadsDir string
	flagBaseURL    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the document REST server",
	Long: `Serve exposes the document CRUD surface over HTTP:

  POST /api/documents              create a document
  GET  /api/documents              list documents
  GET  /api/documents/{id}         storage form + image records
  GET  /api/documents/{id}/display decoded display form
  PUT  /api/documents/{id}         save a display form (runs the full pipeline)

Uploaded images are written under --uploads_dir and served at /uploads/.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&flagAddr, "addr", ":8080", "Listen address")
	serveCmd.Flags().StringVar(&flagDB, "db", "richsync.db", "SQLite database path")
	serveCmd.Flags().StringVar(&flagUploadsDir, "uploads_dir", "./uploads", "Directory for uploaded images")
	serveCmd.Flags().StringVar(&flagBaseURL, "base_url", "", "Public base URL for uploaded images (default: http://<addr>/uploads)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log, err := zap.NewDevelopment()
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer log.Sync()

	st, err := store.Open(flagDB)
	if err != nil {
		return err
	}
	defer st.Close()

	baseURL := flagBaseURL
	if baseURL == "" {
		baseURL = "http://localhost" + flagAddr + "/uploads"
	}
	up, err := upload.New(flagUploadsDir, baseURL)
	if err != nil {
		return err
	}

	router := api.NewServer(st, up, log).Router()
	router.PathPrefix("/uploads/").Handler(
		http.StripPrefix("/uploads/", http.FileServer(http.Dir(flagUploadsDir))))

	log.Info("listening",
		zap.String("addr", flagAddr),
		zap.String("db", flagDB),
		zap.String("uploads_dir", flagUploadsDir))
	return http.ListenAndServe(flagAddr, router)
}

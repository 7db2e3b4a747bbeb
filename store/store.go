// Package store implements the document store on SQLite.
// Documents persist as storage text plus image-record rows; the position
// column preserves the reconciled first-appearance order across load/save.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"richsync/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	storage_text TEXT NOT NULL DEFAULT '',
	updated_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS document_images (
	document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	image_id    INTEGER NOT NULL,
	file_name   TEXT NOT NULL,
	url         TEXT NOT NULL,
	server_path TEXT NOT NULL DEFAULT '',
	position    INTEGER NOT NULL,
	PRIMARY KEY (document_id, image_id)
);
`

// SQLiteStore is a Store backed by a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// Open opens (creating if needed) the SQLite database at path and ensures
// the schema exists.
func Open(path string) (*SQLiteStore, error) {
	db, err := sqlx.Connect("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type documentRow struct {
	ID          int64  `db:"id"`
	StorageText string `db:"storage_text"`
}

type imageRow struct {
	DocumentID int64  `db:"document_id"`
	ImageID    int64  `db:"image_id"`
	FileName   string `db:"file_name"`
	URL        string `db:"url"`
	ServerPath string `db:"server_path"`
	Position   int    `db:"position"`
}

// Load returns the document's storage text and its image records in
// persisted (first-appearance) order.
func (s *SQLiteStore) Load(ctx context.Context, id int64) (*core.Document, error) {
	var doc documentRow
	err := s.db.GetContext(ctx, &doc,
		`SELECT id, storage_text FROM documents WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading document %d: %w", id, err)
	}

	var rows []imageRow
	err = s.db.SelectContext(ctx, &rows,
		`SELECT document_id, image_id, file_name, url, server_path, position
		 FROM document_images WHERE document_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("loading images for document %d: %w", id, err)
	}

	images := make([]core.ImageRecord, 0, len(rows))
	for _, r := range rows {
		images = append(images, core.ImageRecord{
			ID:         r.ImageID,
			Name:       r.FileName,
			URL:        r.URL,
			ServerPath: r.ServerPath,
		})
	}
	return &core.Document{ID: doc.ID, StorageText: doc.StorageText, Images: images}, nil
}

// Save persists the document's storage text and rewrites its image rows to
// match the reconciled record order, in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, doc *core.Document) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning save transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (id, storage_text, updated_at)
		 VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(id) DO UPDATE SET
		   storage_text = excluded.storage_text,
		   updated_at = CURRENT_TIMESTAMP`,
		doc.ID, doc.StorageText)
	if err != nil {
		return fmt.Errorf("saving document %d: %w", doc.ID, err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM document_images WHERE document_id = ?`, doc.ID); err != nil {
		return fmt.Errorf("clearing images for document %d: %w", doc.ID, err)
	}

	for i, img := range doc.Images {
		row := imageRow{
			DocumentID: doc.ID,
			ImageID:    img.ID,
			FileName:   img.Name,
			URL:        img.URL,
			ServerPath: img.ServerPath,
			Position:   i,
		}
		_, err := tx.NamedExecContext(ctx,
			`INSERT INTO document_images (document_id, image_id, file_name, url, server_path, position)
			 VALUES (:document_id, :image_id, :file_name, :url, :server_path, :position)`, row)
		if err != nil {
			return fmt.Errorf("saving image %d for document %d: %w", img.ID, doc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing save for document %d: %w", doc.ID, err)
	}
	return nil
}

// Create inserts an empty document and returns its id.
func (s *SQLiteStore) Create(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (storage_text) VALUES ('')`)
	if err != nil {
		return 0, fmt.Errorf("creating document: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading new document id: %w", err)
	}
	return id, nil
}

// List returns every document's id and storage text, without image records.
// Intended for listing screens; use Load for the full document.
func (s *SQLiteStore) List(ctx context.Context) ([]core.Document, error) {
	var rows []documentRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, storage_text FROM documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	docs := make([]core.Document, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, core.Document{ID: r.ID, StorageText: r.StorageText})
	}
	return docs, nil
}

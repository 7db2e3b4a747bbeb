// Package core defines the shared types and stage interfaces for richsync.
// Each stage of the synchronization engine is a clean, testable interface.
package core

import (
	"context"
	"fmt"
	"regexp"
)

// ImageRecord represents one image attached to a document.
// A record is pending while it only carries captured bytes; it becomes
// resolved once an upload assigns a durable URL and server path.
type ImageRecord struct {
	ID         int64  `json:"id"`
	Name       string `json:"file_name"`
	URL        string `json:"url,omitempty"`
	ServerPath string `json:"server_path,omitempty"`

	// SourceBytes holds image data captured this session, before upload.
	// Never persisted and never serialized to clients.
	SourceBytes []byte `json:"-"`
}

// Pending reports whether the record still lacks a durable URL.
func (r ImageRecord) Pending() bool {
	return r.URL == ""
}

// Document is the authoring unit: persisted storage text plus the ordered
// image records referenced by its placeholder tokens.
type Document struct {
	ID          int64         `json:"id"`
	StorageText string        `json:"storage_text"`
	Images      []ImageRecord `json:"images"`
}

// UploadResult is the durable location assigned to an uploaded image.
type UploadResult struct {
	URL        string `json:"url"`
	ServerPath string `json:"server_path"`
}

// TokenPattern matches a placeholder token [IMG:<id>] in storage text.
// The submatch is the numeric image id.
var TokenPattern = regexp.MustCompile(`\[IMG:(\d+)\]`)

// Token renders the placeholder token for an image id.
func Token(id int64) string {
	return fmt.Sprintf("[IMG:%d]", id)
}

// Normalizer rewrites a markup fragment into its canonical minimal form.
// Total and idempotent; it never fails.
type Normalizer interface {
	Normalize(markup string) string
}

// Codec converts between display form (live markup with inline images)
// and storage form (flat text with placeholder tokens).
type Codec interface {
	// Decode replaces each resolved record's tokens with inline image
	// elements and storage line breaks with break markers.
	Decode(storageText string, images []ImageRecord) string
	// Encode is the inverse. Inline images that carry embedded bytes
	// instead of a stable id are assigned newly minted ids; Encode returns
	// the pending records created for them.
	Encode(displayMarkup string) (string, []ImageRecord)
}

// Reconciler decides which image records the storage text still references,
// ordered by first appearance.
type Reconciler interface {
	Reconcile(storageText string, images []ImageRecord) []ImageRecord
}

// Store is the document store collaborator.
type Store interface {
	Load(ctx context.Context, id int64) (*Document, error)
	Save(ctx context.Context, doc *Document) error
	Create(ctx context.Context) (int64, error)
	List(ctx context.Context) ([]Document, error)
}

// Uploader is the upload service collaborator. It persists captured image
// bytes and returns their durable location.
type Uploader interface {
	Upload(ctx context.Context, name string, data []byte) (UploadResult, error)
}

// Renderer converts a document into a final output format.
type Renderer interface {
	Render(doc *Document) ([]byte, error)
	// Extension returns the file extension for this renderer (e.g. ".md", ".pdf").
	Extension() string
}

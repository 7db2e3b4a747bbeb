// Package render — JSON renderer.
// Emits the document's storage form, its Markdown rendering, and the image
// records in one structure, for consumers that index or post-process
// documents outside the editing pipeline.
package render

import (
	"encoding/json"
	"fmt"

	"richsync/core"
)

// documentJSON is the complete JSON output for a single document.
type documentJSON struct {
	ID          int64              `json:"id"`
	StorageText string             `json:"storage_text"`
	Markdown    string             `json:"markdown"`
	Images      []core.ImageRecord `json:"images"`
}

// JSONRenderer produces structured JSON output.
type JSONRenderer struct {
	markdown *MarkdownRenderer
}

// NewJSONRenderer creates a JSONRenderer.
func NewJSONRenderer() *JSONRenderer {
	return &JSONRenderer{markdown: NewMarkdownRenderer()}
}

// Render builds the JSON structure for the document.
func (r *JSONRenderer) Render(doc *core.Document) ([]byte, error) {
	markdown, err := r.markdown.Render(doc)
	if err != nil {
		return nil, err
	}

	images := doc.Images
	if images == nil {
		images = []core.ImageRecord{}
	}
	out := documentJSON{
		ID:          doc.ID,
		StorageText: doc.StorageText,
		Markdown:    string(markdown),
		Images:      images,
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling JSON: %w", err)
	}
	return data, nil
}

// Extension returns the file extension for JSON output.
func (r *JSONRenderer) Extension() string {
	return ".json"
}

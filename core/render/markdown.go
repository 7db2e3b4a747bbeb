// Package render provides output renderers for stored documents.
// Every renderer starts from the decoded display form, so exports see the
// same content an editing surface would, with image tokens resolved to
// their durable URLs.
package render

import (
	"fmt"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"richsync/core"
	"richsync/core/normalize"
	"richsync/core/placeholder"
)

// MarkdownRenderer converts a document into Markdown.
type MarkdownRenderer struct {
	codec core.Codec
	norm  core.Normalizer
}

// NewMarkdownRenderer creates a MarkdownRenderer.
func NewMarkdownRenderer() *MarkdownRenderer {
	return &MarkdownRenderer{codec: placeholder.New(), norm: normalize.New()}
}

// Render decodes the document and converts the display form to Markdown.
func (r *MarkdownRenderer) Render(doc *core.Document) ([]byte, error) {
	display := r.norm.Normalize(r.codec.Decode(doc.StorageText, doc.Images))
	markdown, err := htmltomarkdown.ConvertString(display)
	if err != nil {
		return nil, fmt.Errorf("converting document %d to markdown: %w", doc.ID, err)
	}
	return []byte(markdown), nil
}

// Extension returns the file extension for Markdown output.
func (r *MarkdownRenderer) Extension() string {
	return ".md"
}

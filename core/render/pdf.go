// Package render — PDF renderer.
// Converts the document's Markdown rendering into a PDF using gofpdf.
// The document model is flat (paragraphs, emphasis, image references), so
// the renderer handles plain lines, emphasis markers, and image links;
// the images themselves are referenced by name, not embedded.
package render

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"richsync/core"
)

// imageLink matches a Markdown image reference ![name](url).
var imageLink = regexp.MustCompile(`!\[([^\]]*)\]\(([^)]+)\)`)

// emphasisMarkers matches bold/italic runs so their markers can be
// stripped for plain PDF text.
var emphasisMarkers = regexp.MustCompile(`\*{1,3}([^*]+)\*{1,3}`)

// linkMarkers matches Markdown links [text](url), keeping the text.
var linkMarkers = regexp.MustCompile(`\[([^\]]*)\]\(([^)]+)\)`)

// PDFRenderer renders a document as a PDF.
type PDFRenderer struct {
	markdown *MarkdownRenderer
}

// NewPDFRenderer creates a PDFRenderer.
func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{markdown: NewMarkdownRenderer()}
}

// Render converts the document into PDF bytes.
func (r *PDFRenderer) Render(doc *core.Document) ([]byte, error) {
	md, err := r.markdown.Render(doc)
	if err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.MultiCell(0, 8, fmt.Sprintf("Document %d", doc.ID), "", "L", false)
	pdf.Ln(4)

	for _, line := range strings.Split(string(md), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			pdf.Ln(3)
			continue
		}

		// Image references render as an italic caption line.
		if m := imageLink.FindStringSubmatch(trimmed); m != nil {
			name := m[1]
			if name == "" {
				name = m[2]
			}
			pdf.SetFont("Helvetica", "I", 9)
			pdf.SetTextColor(100, 100, 100)
			pdf.MultiCell(0, 5, "[image: "+name+"]", "", "L", false)
			pdf.SetTextColor(0, 0, 0)
			continue
		}

		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 5.5, plainText(trimmed), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("writing PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// Extension returns the file extension for PDF output.
func (r *PDFRenderer) Extension() string {
	return ".pdf"
}

// plainText strips Markdown emphasis and link markers from a line.
func plainText(line string) string {
	line = emphasisMarkers.ReplaceAllString(line, "$1")
	line = linkMarkers.ReplaceAllString(line, "$1")
	return line
}

// Package placeholder implements the Codec interface.
// It converts between display form (live markup with inline <img> elements)
// and storage form (flat text where each image is the token [IMG:<id>] and
// line breaks are the storage break sequence).
//
// Decode is plain token substitution. Encode parses the display fragment
// and walks the tree, reducing it to the allowed storage tag set
// {strong, em, u, a} plus tokens and breaks. Inline images that carry
// embedded bytes instead of a stable id are assigned newly minted ids here;
// this is the only point where new image identifiers originate.
package placeholder

import (
	"encoding/base64"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"richsync/core"
	"richsync/core/normalize"
)

// StorageBreak is the line-break sequence of the storage wire format.
// Decode also tolerates a bare LF.
const StorageBreak = "\r\n"

// maxMintOffset bounds the random offset added to the timestamp when
// minting ids, keeping ids unique within a session without coordination.
const maxMintOffset = 1000

// droppedElements are removed wholesale during encoding, content included.
var droppedElements = map[string]bool{
	"script": true, "style": true, "noscript": true, "iframe": true,
}

// blockElements flatten to a line break after their content; the storage
// form is flat text, never nested block structure.
var blockElements = map[string]bool{
	"p": true, "div": true,
}

// Codec converts documents between display and storage form.
type Codec struct {
	norm   core.Normalizer
	now    func() time.Time
	offset func() int64
}

// New creates a Codec with the default normalizer and id minting source.
func New() *Codec {
	return &Codec{
		norm:   normalize.New(),
		now:    time.Now,
		offset: func() int64 { return rand.Int63n(maxMintOffset) },
	}
}

// NewWithMinter creates a Codec with a fixed clock and offset source.
// Used by tests that need deterministic ids.
func NewWithMinter(now func() time.Time, offset func() int64) *Codec {
	return &Codec{norm: normalize.New(), now: now, offset: offset}
}

// MintID returns a new image id: current timestamp plus a small random
// offset. Good enough to avoid collisions within a single editing session;
// not a global-uniqueness guarantee.
func (c *Codec) MintID() int64 {
	return c.now().UnixMilli() + c.offset()
}

// Decode replaces each resolved record's tokens in the storage text with an
// inline image element carrying the record's id, and storage line breaks
// with <br> markers. Records with no matching token are simply not inserted.
func (c *Codec) Decode(storageText string, images []core.ImageRecord) string {
	out := storageText
	for _, img := range images {
		if img.Pending() {
			continue
		}
		elem := fmt.Sprintf(`<img src="%s" data-image-id="%d" alt="%s">`,
			escapeText(img.URL), img.ID, escapeText(img.Name))
		out = strings.ReplaceAll(out, core.Token(img.ID), elem)
	}
	out = strings.ReplaceAll(out, StorageBreak, "<br>")
	out = strings.ReplaceAll(out, "\n", "<br>")
	return out
}

// Encode converts display markup into storage text. Inline images with a
// stable id become their token; images with embedded bytes are minted a new
// id and returned as pending records so they survive the round trip.
// Never fails: unparseable input falls back to the cleaned fragment.
func (c *Codec) Encode(displayMarkup string) (string, []core.ImageRecord) {
	clean := normalize.StripInvisible(displayMarkup)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(clean))
	if err != nil {
		return c.norm.Normalize(clean), nil
	}
	body := doc.Find("body")
	if len(body.Nodes) == 0 {
		return c.norm.Normalize(clean), nil
	}

	var b strings.Builder
	var minted []core.ImageRecord
	for n := body.Nodes[0].FirstChild; n != nil; n = n.NextSibling {
		c.walk(n, &b, &minted)
	}

	text := strings.TrimRight(b.String(), "\r\n")
	return c.norm.Normalize(text), minted
}

// walk renders one display node into storage form.
func (c *Codec) walk(n *html.Node, b *strings.Builder, minted *[]core.ImageRecord) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(escapeText(n.Data))
	case html.ElementNode:
		c.walkElement(n, b, minted)
	}
}

func (c *Codec) walkElement(n *html.Node, b *strings.Builder, minted *[]core.ImageRecord) {
	if droppedElements[n.Data] {
		return
	}

	switch n.Data {
	case "img":
		c.writeImage(n, b, minted)
	case "br":
		b.WriteString(StorageBreak)
	case "strong", "b":
		c.writeSpan(n, "strong", b, minted)
	case "em", "i":
		c.writeSpan(n, "em", b, minted)
	case "u":
		c.writeSpan(n, "u", b, minted)
	case "a":
		c.writeLink(n, b, minted)
	default:
		c.walkChildren(n, b, minted)
		if blockElements[n.Data] {
			b.WriteString(StorageBreak)
		}
	}
}

func (c *Codec) walkChildren(n *html.Node, b *strings.Builder, minted *[]core.ImageRecord) {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		c.walk(child, b, minted)
	}
}

func (c *Codec) writeSpan(n *html.Node, tag string, b *strings.Builder, minted *[]core.ImageRecord) {
	b.WriteString("<" + tag + ">")
	c.walkChildren(n, b, minted)
	b.WriteString("</" + tag + ">")
}

// writeLink keeps the link target only for http(s)/mailto/tel schemes;
// anything else keeps the wrapper with the target cleared.
func (c *Codec) writeLink(n *html.Node, b *strings.Builder, minted *[]core.ImageRecord) {
	href := attr(n, "href")
	if allowedScheme(href) {
		b.WriteString(`<a href="` + escapeText(href) + `">`)
	} else {
		b.WriteString("<a>")
	}
	c.walkChildren(n, b, minted)
	b.WriteString("</a>")
}

// writeImage emits the token for an image element. An element with a stable
// data-image-id uses that id; an element with an embedded data: source is
// minted a new id and a matching pending record. Anything else (an image the
// codec cannot attribute to a record) is dropped.
func (c *Codec) writeImage(n *html.Node, b *strings.Builder, minted *[]core.ImageRecord) {
	if idStr := attr(n, "data-image-id"); idStr != "" {
		var id int64
		if _, err := fmt.Sscanf(idStr, "%d", &id); err == nil {
			b.WriteString(core.Token(id))
		}
		return
	}

	src := attr(n, "src")
	if !strings.HasPrefix(src, "data:") {
		return
	}

	id := c.MintID()
	rec := core.ImageRecord{
		ID:          id,
		Name:        attr(n, "alt"),
		SourceBytes: decodeDataURL(src),
	}
	if rec.Name == "" {
		rec.Name = fmt.Sprintf("pasted-%d.%s", id, dataURLExt(src))
	}
	*minted = append(*minted, rec)
	b.WriteString(core.Token(id))
}

// attr returns the value of the named attribute, or "".
func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// allowedScheme reports whether a link target may be kept in storage form.
func allowedScheme(href string) bool {
	u, err := url.Parse(href)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "http", "https", "mailto", "tel":
		return true
	}
	return false
}

// decodeDataURL extracts the raw bytes from a base64 data: URL.
// Returns nil when the payload cannot be decoded.
func decodeDataURL(src string) []byte {
	comma := strings.Index(src, ",")
	if comma < 0 {
		return nil
	}
	meta, payload := src[:comma], src[comma+1:]
	if !strings.HasSuffix(meta, ";base64") {
		return nil
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil
	}
	return data
}

// dataURLExt derives a file extension from a data: URL's media type.
func dataURLExt(src string) string {
	rest := strings.TrimPrefix(src, "data:image/")
	if rest == src {
		return "bin"
	}
	for i, ch := range rest {
		if ch == ';' || ch == ',' {
			return rest[:i]
		}
	}
	return "bin"
}

// escapeText escapes the characters that are markup-significant in storage
// form. Deliberately minimal: quotes and apostrophes stay literal so text
// survives the display/storage round trip byte for byte.
func escapeText(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// Package normalize implements the Normalizer interface.
// It rewrites a rich-text fragment into a canonical, minimal form:
//  1. Emphasis aliases are unified (<b> → <strong>, <i> → <em>)
//  2. Empty, break-only, and nested same-type emphasis spans are removed
//  3. Spans are split at image tokens and line breaks
//  4. Directionality attributes and invisible characters are stripped
//
// Pattern rules handle the local rewrites; a structural pass with an
// explicit span stack handles everything a pattern cannot see across
// child elements (splitting, merging, balancing). Both repeat until a
// fixed point is reached, because one rewrite can expose another.
// Normalization is total: anything outside the recognized tag set passes
// through character for character.
package normalize

import (
	"regexp"
	"strings"
)

// emphasisTags is the managed emphasis tag set in canonical form.
var emphasisTags = []string{"strong", "em", "u"}

// invisibleChars matches zero-width spaces/joiners, the BOM, and
// bidirectional control characters introduced by editing-surface quirks.
var invisibleChars = regexp.MustCompile(`[\x{200B}\x{200C}\x{200D}\x{FEFF}\x{200E}\x{200F}\x{202A}-\x{202E}\x{2066}-\x{2069}]`)

// dirAttr matches dir attributes on any tag; left-to-right is enforced
// unconditionally, so the attribute carries no information.
var dirAttr = regexp.MustCompile(`\s+dir\s*=\s*("[^"]*"|'[^']*'|[a-zA-Z]+)`)

// dirStyle matches direction/bidi declarations inside style attributes.
var dirStyle = regexp.MustCompile(`(?:direction|unicode-bidi)\s*:\s*[^;"']*;?`)

// imageToken matches an image token at the start of the input.
var imageToken = regexp.MustCompile(`^\[IMG:\d+\]`)

// rule is a single rewrite: pattern in, replacement out.
type rule struct {
	re   *regexp.Regexp
	repl string
}

// rules are applied in order on every pass. Order matters: aliases are
// unified first so the per-tag rules only need canonical names.
var rules = buildRules()

func buildRules() []rule {
	rs := []rule{
		// Unify emphasis aliases, dropping any attributes they carry.
		{regexp.MustCompile(`(?i)<b(\s[^>]*)?>`), "<strong>"},
		{regexp.MustCompile(`(?i)</b\s*>`), "</strong>"},
		{regexp.MustCompile(`(?i)<i(\s[^>]*)?>`), "<em>"},
		{regexp.MustCompile(`(?i)</i\s*>`), "</em>"},
		{regexp.MustCompile(`(?i)<br\s*/?>`), "<br>"},
	}

	for _, t := range emphasisTags {
		rs = append(rs,
			// Emphasis tags carry no attributes in canonical form.
			rule{regexp.MustCompile(`<` + t + `\s[^>]*>`), "<" + t + ">"},
			// A span wrapping nothing, or nothing but whitespace and
			// breaks, carries no semantic weight. The inner content
			// (if any) survives outside the span.
			rule{regexp.MustCompile(`<` + t + `>((?:\s|<br>)*)</` + t + `>`), "$1"},
		)
	}
	return rs
}

// StripInvisible removes zero-width and bidirectional control characters
// without touching anything else. The codec applies it before parsing,
// where a full normalization pass would be premature.
func StripInvisible(s string) string {
	return invisibleChars.ReplaceAllString(s, "")
}

// MarkupNormalizer rewrites markup fragments to canonical form.
type MarkupNormalizer struct{}

// New creates a MarkupNormalizer.
func New() *MarkupNormalizer {
	return &MarkupNormalizer{}
}

// Normalize returns the canonical form of the given markup fragment.
// Deterministic and idempotent; never fails.
func (n *MarkupNormalizer) Normalize(markup string) string {
	out := invisibleChars.ReplaceAllString(markup, "")
	out = dirAttr.ReplaceAllString(out, "")
	out = dirStyle.ReplaceAllString(out, "")

	// Iterate to a fixed point, bounded by input length so pathological
	// fragments still terminate.
	limit := len(out) + 16
	for i := 0; i < limit; i++ {
		next := splitSpans(applyRules(out))
		if next == out {
			break
		}
		out = next
	}
	return out
}

func applyRules(s string) string {
	for _, r := range rules {
		s = r.re.ReplaceAllString(s, r.repl)
	}
	return s
}

// spanEntry tracks one open emphasis span during the structural pass.
// A span opened inside an already-open span of the same type is recorded
// but never emitted: its content merges into the outer span.
type spanEntry struct {
	tag     string
	emitted bool
}

// splitSpans walks the fragment left to right with an explicit span stack
// and restores the span invariants that pattern rules cannot see across
// child elements: spans are closed and reopened around image tokens and
// line breaks, nested same-type spans are merged, improperly interleaved
// spans are rebalanced, stray closing tags are dropped, and spans left
// open at the end are closed. Empty spans created by a split are removed
// by the pattern rules on the next pass.
func splitSpans(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var stack []spanEntry

	i := 0
	for i < len(s) {
		if tag, closing, n := spanTagAt(s[i:]); n > 0 {
			i += n
			if closing {
				closeSpan(&b, &stack, tag)
			} else {
				openSpan(&b, &stack, tag)
			}
			continue
		}
		if n := boundaryAt(s[i:]); n > 0 {
			writeBoundary(&b, stack, s[i:i+n])
			i += n
			if anyEmitted(stack) {
				i += hspace(s[i:])
			}
			continue
		}
		if s[i] == ' ' || s[i] == '\t' {
			// Horizontal whitespace butting a boundary inside a span is
			// trimmed together with the split.
			run := hspace(s[i:])
			if !(anyEmitted(stack) && boundaryAt(s[i+run:]) > 0) {
				b.WriteString(s[i : i+run])
			}
			i += run
			continue
		}
		b.WriteByte(s[i])
		i++
	}

	for j := len(stack) - 1; j >= 0; j-- {
		if stack[j].emitted {
			b.WriteString("</" + stack[j].tag + ">")
		}
	}
	return b.String()
}

func openSpan(b *strings.Builder, stack *[]spanEntry, tag string) {
	emit := true
	for _, e := range *stack {
		if e.tag == tag {
			emit = false
			break
		}
	}
	if emit {
		b.WriteString("<" + tag + ">")
	}
	*stack = append(*stack, spanEntry{tag: tag, emitted: emit})
}

// closeSpan closes the topmost open span of the given type. Spans opened
// after it close with it and reopen right after, so improper interleaving
// like <strong><em>a</strong>b</em> comes out properly nested. A close
// with no matching open is dropped.
func closeSpan(b *strings.Builder, stack *[]spanEntry, tag string) {
	st := *stack
	at := -1
	for j := len(st) - 1; j >= 0; j-- {
		if st[j].tag == tag {
			at = j
			break
		}
	}
	if at < 0 {
		return
	}
	for j := len(st) - 1; j >= at; j-- {
		if st[j].emitted {
			b.WriteString("</" + st[j].tag + ">")
		}
	}
	reopened := append([]spanEntry(nil), st[at+1:]...)
	*stack = st[:at]
	for _, e := range reopened {
		if e.emitted {
			b.WriteString("<" + e.tag + ">")
		}
		*stack = append(*stack, e)
	}
}

// writeBoundary emits a break or token outside every open span: the open
// spans close before it and reopen after it.
func writeBoundary(b *strings.Builder, stack []spanEntry, boundary string) {
	for j := len(stack) - 1; j >= 0; j-- {
		if stack[j].emitted {
			b.WriteString("</" + stack[j].tag + ">")
		}
	}
	b.WriteString(boundary)
	for _, e := range stack {
		if e.emitted {
			b.WriteString("<" + e.tag + ">")
		}
	}
}

// spanTagAt matches an opening or closing emphasis tag at the start of s,
// returning the consumed length, or 0 for no match.
func spanTagAt(s string) (tag string, closing bool, n int) {
	if len(s) < 3 || s[0] != '<' {
		return "", false, 0
	}
	rest := s[1:]
	if rest[0] == '/' {
		closing = true
		rest = rest[1:]
	}
	for _, t := range emphasisTags {
		if strings.HasPrefix(rest, t+">") {
			return t, closing, (len(s) - len(rest)) + len(t) + 1
		}
	}
	return "", false, 0
}

// boundaryAt matches a span boundary at the start of s: a break element,
// a raw line break, or an image token. Returns the consumed length.
func boundaryAt(s string) int {
	switch {
	case strings.HasPrefix(s, "<br>"):
		return 4
	case strings.HasPrefix(s, "\r\n"):
		return 2
	case s != "" && s[0] == '\n':
		return 1
	}
	return len(imageToken.FindString(s))
}

func anyEmitted(stack []spanEntry) bool {
	for _, e := range stack {
		if e.emitted {
			return true
		}
	}
	return false
}

// hspace returns the length of the run of spaces and tabs at the start of s.
func hspace(s string) int {
	n := 0
	for n < len(s) && (s[n] == ' ' || s[n] == '\t') {
		n++
	}
	return n
}

// Package evidence builds the bounded excerpts and source locators that
// accompany every derived fact.
package evidence

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/hurttlocker/filingintel/internal/document"
	"github.com/hurttlocker/filingintel/internal/locate"
)

// TruncationMarker is appended to text cut by Truncate.
const TruncationMarker = " [truncated]"

// DefaultMaxExcerpt caps a snippet excerpt when the builder is not told otherwise.
const DefaultMaxExcerpt = 600

// Locator identifies a span of a document: "doc#section@start-end".
type Locator struct {
	DocumentID string
	Section    string
	Start      int
	End        int
}

func (l Locator) String() string {
	if l.Section == "" {
		return fmt.Sprintf("%s@%d-%d", l.DocumentID, l.Start, l.End)
	}
	return fmt.Sprintf("%s#%s@%d-%d", l.DocumentID, l.Section, l.Start, l.End)
}

// Snippet is a bounded excerpt with provenance.
type Snippet struct {
	DocumentID  string `json:"document_id"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
	Excerpt     string `json:"excerpt"`
	SourceURL   string `json:"source_url,omitempty"`
	Locator     string `json:"source_locator"`
}

// Builder produces snippets. The zero value uses DefaultMaxExcerpt.
type Builder struct {
	MaxExcerpt int
}

// NewBuilder returns a Builder capping excerpts at maxExcerpt bytes.
func NewBuilder(maxExcerpt int) *Builder {
	return &Builder{MaxExcerpt: maxExcerpt}
}

func (b *Builder) max() int {
	if b == nil || b.MaxExcerpt <= 0 {
		return DefaultMaxExcerpt
	}
	return b.MaxExcerpt
}

// Around builds a snippet covering [matchStart, matchEnd) plus up to context
// bytes on each side. The window is pulled inward to word boundaries so no
// token is cut at either edge.
func (b *Builder) Around(doc *document.Document, matchStart, matchEnd, context int) Snippet {
	matchStart, matchEnd = doc.Clamp(matchStart, matchEnd)
	start, end := doc.Clamp(matchStart-context, matchEnd+context)
	text := doc.Text

	if start > 0 && !isSpaceAt(text, start-1) {
		if i := strings.IndexFunc(text[start:matchStart], unicode.IsSpace); i >= 0 {
			start += i + 1
		} else {
			start = matchStart
		}
	}
	if end < len(text) && !isSpaceAt(text, end) {
		if i := strings.LastIndexFunc(text[matchEnd:end], unicode.IsSpace); i >= 0 {
			end = matchEnd + i
		} else {
			end = matchEnd
		}
	}
	return b.span(doc, start, end, doc.HeadingAt(matchStart))
}

// Region builds a snippet for a located region centered on anchor. Regions
// longer than the excerpt cap are windowed around the anchor.
func (b *Builder) Region(doc *document.Document, r locate.Region, anchor, anchorEnd int) Snippet {
	section := r.Label
	if r.Source != locate.SourceHeading {
		section = doc.HeadingAt(anchor)
	}
	limit := b.max()
	if r.Len() <= limit {
		return b.span(doc, r.Start, r.End, section)
	}
	half := (limit - (anchorEnd - anchor)) / 2
	if half < 0 {
		half = 0
	}
	s := b.Around(doc, anchor, anchorEnd, half)
	s.Locator = Locator{DocumentID: doc.ID, Section: section, Start: s.StartOffset, End: s.EndOffset}.String()
	return s
}

func (b *Builder) span(doc *document.Document, start, end int, section string) Snippet {
	start, end = doc.Clamp(start, end)
	excerpt := strings.TrimSpace(strings.ReplaceAll(doc.Text[start:end], "\n", " "))
	excerpt, _ = Truncate(excerpt, b.max())
	return Snippet{
		DocumentID:  doc.ID,
		StartOffset: start,
		EndOffset:   end,
		Excerpt:     excerpt,
		SourceURL:   doc.SourceURL,
		Locator:     Locator{DocumentID: doc.ID, Section: section, Start: start, End: end}.String(),
	}
}

func isSpaceAt(s string, i int) bool {
	return i >= 0 && i < len(s) && unicode.IsSpace(rune(s[i]))
}

// Truncate shortens s to at most max bytes, cutting at the last whitespace
// that leaves room for TruncationMarker. It reports whether s was cut.
// Strings already within max are returned unchanged, so Truncate is
// idempotent.
func Truncate(s string, max int) (string, bool) {
	if len(s) <= max {
		return s, false
	}
	if max <= 0 {
		return "", true
	}
	marker := TruncationMarker
	budget := max - len(marker)
	if budget <= 0 {
		marker = ""
		budget = max
	}
	cut := strings.LastIndexFunc(s[:budget+1], unicode.IsSpace)
	if cut <= 0 {
		if m := strings.TrimSpace(TruncationMarker); len(m) <= max {
			return m, true
		}
		return "", true
	}
	kept := strings.TrimRightFunc(s[:cut], unicode.IsSpace)
	if kept == "" {
		return strings.TrimSpace(marker), true
	}
	return kept + marker, true
}

// Package document defines the NormalizedDocument: the single in-memory form
// every extractor works on, regardless of the markup dialect a filing arrived in.
//
// A Document is plain text plus an ordered structural index (headings and
// table boundaries) recovered from markup during normalization. All offsets
// are byte offsets into Text. Documents are immutable once built.
package document

import (
	"strings"
	"time"
	"unicode/utf8"
)

// MarkerKind classifies a structural index entry.
type MarkerKind string

const (
	KindHeading    MarkerKind = "heading"
	KindTableStart MarkerKind = "table_start"
	KindTableEnd   MarkerKind = "table_end"
)

// Marker is one entry of the structural index.
type Marker struct {
	Kind   MarkerKind `json:"kind"`
	Offset int        `json:"offset"`
	Label  string     `json:"label,omitempty"`
	Level  int        `json:"level,omitempty"` // headings only: 1 is outermost
}

// Meta is what a collaborator knows about a filing before its content is read.
type Meta struct {
	ID         string    `json:"id"`
	Identifier string    `json:"identifier,omitempty"`
	Form       string    `json:"form,omitempty"`
	FilingDate time.Time `json:"filing_date"`
	SourceURL  string    `json:"source_url,omitempty"`
}

// Document is a normalized filing or exhibit.
type Document struct {
	Meta
	Text      string   `json:"-"`
	RawLength int      `json:"raw_length"`
	Index     []Marker `json:"structural_index"`
}

// TableSpan is a table recovered from markup or inferred from column spacing.
// Rows are the newline-separated lines between Start and End; cells are
// separated by CellSeparator.
type TableSpan struct {
	Start  int
	End    int
	Header string
}

// CellSeparator joins table cells on a normalized row line.
const CellSeparator = " | "

// Line is a newline-delimited line of Text with its starting offset.
type Line struct {
	Offset int
	Text   string
}

// Len returns the length of the normalized text.
func (d *Document) Len() int { return len(d.Text) }

// HasHeadings reports whether any heading marker was recovered.
func (d *Document) HasHeadings() bool {
	for _, m := range d.Index {
		if m.Kind == KindHeading {
			return true
		}
	}
	return false
}

// Headings returns heading markers with their position in Index.
func (d *Document) Headings() []int {
	var out []int
	for i, m := range d.Index {
		if m.Kind == KindHeading {
			out = append(out, i)
		}
	}
	return out
}

// SectionEnd returns the offset where the section opened by the heading at
// Index[i] ends: the next heading of equal or higher level (lower or equal
// Level number), or the end of the text.
func (d *Document) SectionEnd(i int) int {
	if i < 0 || i >= len(d.Index) {
		return len(d.Text)
	}
	level := d.Index[i].Level
	for _, m := range d.Index[i+1:] {
		if m.Kind != KindHeading {
			continue
		}
		if m.Level <= level {
			return m.Offset
		}
	}
	return len(d.Text)
}

// Tables returns every table span in document order.
func (d *Document) Tables() []TableSpan {
	var out []TableSpan
	open := -1
	for i, m := range d.Index {
		switch m.Kind {
		case KindTableStart:
			open = i
		case KindTableEnd:
			if open < 0 {
				continue
			}
			start := d.Index[open]
			out = append(out, TableSpan{Start: start.Offset, End: m.Offset, Header: start.Label})
			open = -1
		}
	}
	return out
}

// Slice returns Text[start:end] with both bounds clamped and aligned to rune
// boundaries.
func (d *Document) Slice(start, end int) string {
	start, end = d.Clamp(start, end)
	return d.Text[start:end]
}

// Clamp bounds a span to the text and aligns it to rune boundaries.
func (d *Document) Clamp(start, end int) (int, int) {
	if start < 0 {
		start = 0
	}
	if end > len(d.Text) {
		end = len(d.Text)
	}
	if start > end {
		start = end
	}
	for start > 0 && start < len(d.Text) && !utf8.RuneStart(d.Text[start]) {
		start--
	}
	for end < len(d.Text) && end > 0 && !utf8.RuneStart(d.Text[end]) {
		end++
	}
	return start, end
}

// Lines splits Text[start:end] into lines, skipping empty ones.
func (d *Document) Lines(start, end int) []Line {
	start, end = d.Clamp(start, end)
	var out []Line
	off := start
	for off < end {
		nl := strings.IndexByte(d.Text[off:end], '\n')
		stop := end
		if nl >= 0 {
			stop = off + nl
		}
		if text := strings.TrimSpace(d.Text[off:stop]); text != "" {
			out = append(out, Line{Offset: off, Text: text})
		}
		off = stop + 1
	}
	return out
}

// HeadingAt returns the innermost heading label whose section contains offset,
// or "" when the offset precedes every heading.
func (d *Document) HeadingAt(offset int) string {
	label := ""
	for i, m := range d.Index {
		if m.Kind != KindHeading || m.Offset > offset {
			continue
		}
		if offset < d.SectionEnd(i) {
			label = m.Label
		}
	}
	return label
}

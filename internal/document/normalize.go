package document

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize builds a Document from fetched content, sniffing whether it is
// markup the same way the EDGAR text endpoints need: anything carrying html,
// div, p or table tags is parsed as HTML, everything else as plain text.
func Normalize(meta Meta, raw string) (*Document, error) {
	if LooksLikeHTML(raw) {
		return FromHTML(meta, raw)
	}
	return FromText(meta, raw), nil
}

// LooksLikeHTML reports whether raw carries block-level markup.
func LooksLikeHTML(raw string) bool {
	head := raw
	if len(head) > 64*1024 {
		head = head[:64*1024]
	}
	lower := strings.ToLower(head)
	for _, tag := range []string{"<html", "<div", "<p", "<table", "<body"} {
		if strings.Contains(lower, tag) {
			return true
		}
	}
	return false
}

// MaxHeadingLength caps heading candidates. Filing headings are short; longer
// bold runs are emphasized prose.
const MaxHeadingLength = 160

var (
	partRe = regexp.MustCompile(`(?i)^part\s+[ivx]+\b`)
	// itemRe matches 8-K ("Item 4.02") and 10-K ("Item 1A.") item captions.
	itemRe = regexp.MustCompile(`(?i)^item\s+\d{1,2}[a-z]?(?:\.\d{2})?(?:[\s.:\-\x{2013}\x{2014}]|$)`)
)

// headingLevel assigns a nesting level to a heading label.
func headingLevel(label string) int {
	switch {
	case partRe.MatchString(label):
		return 1
	case itemRe.MatchString(label):
		return 2
	case isAllCaps(label):
		return 2
	default:
		return 3
	}
}

// isItemCaption reports whether a line opens a form item.
func isItemCaption(line string) bool {
	return len(line) <= MaxHeadingLength*2 && itemRe.MatchString(line)
}

func isAllCaps(s string) bool {
	letters := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsLower(r) {
				return false
			}
		}
	}
	return letters >= 3
}

// minorWords may stay lower case inside a title-case heading.
var minorWords = map[string]bool{
	"a": true, "an": true, "and": true, "as": true, "at": true, "by": true, "for": true,
	"in": true, "of": true, "on": true, "or": true, "the": true, "to": true, "with": true,
}

// isTitleCase reports whether every significant word starts upper case.
func isTitleCase(s string) bool {
	words := strings.Fields(s)
	if len(words) == 0 {
		return false
	}
	significant := 0
	for i, w := range words {
		r := []rune(strings.TrimLeft(w, "(\"'"))
		if len(r) == 0 || !unicode.IsLetter(r[0]) {
			continue
		}
		if i > 0 && minorWords[strings.ToLower(w)] {
			continue
		}
		if !unicode.IsUpper(r[0]) {
			return false
		}
		significant++
	}
	return significant > 0
}

// looksLikeHeadingLine applies the plain-text heading heuristic: short lines
// in title case or all caps that do not end like a sentence.
func looksLikeHeadingLine(line string) bool {
	n := len([]rune(line))
	if n < 3 || n > 120 {
		return false
	}
	if strings.ContainsAny(line[len(line)-1:], ".:;,") {
		return false
	}
	return isAllCaps(line) || isTitleCase(line)
}

// cleanLine applies NFKC, folds every whitespace run to one space, and trims.
func cleanLine(s string) string {
	s = norm.NFKC.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// builder accumulates normalized text and the structural index.
type builder struct {
	sb    strings.Builder
	index []Marker
	open  bool
}

func (b *builder) line(s string) {
	s = cleanLine(s)
	if s == "" {
		return
	}
	b.sb.WriteString(s)
	b.sb.WriteByte('\n')
}

func (b *builder) heading(s string, level int) {
	s = cleanLine(s)
	if s == "" {
		return
	}
	if level <= 0 {
		level = headingLevel(s)
	}
	b.index = append(b.index, Marker{Kind: KindHeading, Offset: b.sb.Len(), Label: s, Level: level})
	b.sb.WriteString(s)
	b.sb.WriteByte('\n')
}

func (b *builder) tableStart(header string) {
	label := cleanLine(header)
	if len(label) > 120 {
		label = label[:120]
		label = strings.ToValidUTF8(label, "")
	}
	b.index = append(b.index, Marker{Kind: KindTableStart, Offset: b.sb.Len(), Label: label})
	b.open = true
}

func (b *builder) tableEnd() {
	if !b.open {
		return
	}
	b.index = append(b.index, Marker{Kind: KindTableEnd, Offset: b.sb.Len()})
	b.open = false
}

// row writes one table row. Empty cells are kept so column positions stay
// comparable with the header row; rows with no content are dropped.
func (b *builder) row(cells []string) {
	out := make([]string, len(cells))
	content := false
	for i, c := range cells {
		out[i] = cleanLine(c)
		if out[i] != "" {
			content = true
		}
	}
	if !content {
		return
	}
	b.sb.WriteString(strings.TrimRight(strings.Join(out, CellSeparator), " "))
	b.sb.WriteByte('\n')
}

func (b *builder) build(meta Meta, rawLength int) *Document {
	b.tableEnd()
	return &Document{
		Meta:      meta,
		Text:      b.sb.String(),
		RawLength: rawLength,
		Index:     b.index,
	}
}

package document

import (
	"regexp"
	"strings"
)

// columnSplitRe splits a plain-text row on pipes, tabs, or runs of two or more
// spaces (the column gutters of fixed-width filings).
var columnSplitRe = regexp.MustCompile(`\s*\|\s*|\t+|\s{2,}`)

// minTableRows is the shortest run of column-aligned lines treated as a table.
const minTableRows = 3

// FromText normalizes a plain-text filing. Headings are short title-case or
// all-caps lines and item captions; runs of column-aligned lines become table
// spans whose rows are rewritten with CellSeparator.
func FromText(meta Meta, raw string) *Document {
	text := strings.ReplaceAll(raw, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")

	b := &builder{}
	for i := 0; i < len(lines); {
		if n := tableRun(lines[i:]); n >= minTableRows {
			b.tableStart(strings.Join(splitColumns(lines[i]), CellSeparator))
			for _, l := range lines[i : i+n] {
				b.row(splitColumns(l))
			}
			b.tableEnd()
			i += n
			continue
		}

		line := cleanLine(lines[i])
		switch {
		case line == "":
		case isItemCaption(line) || looksLikeHeadingLine(line):
			b.heading(line, 0)
		default:
			b.line(line)
		}
		i++
	}
	return b.build(meta, len(raw))
}

// splitColumns returns the non-empty column cells of a fixed-width line.
func splitColumns(line string) []string {
	parts := columnSplitRe.Split(strings.TrimSpace(line), -1)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" && p != "|" {
			out = append(out, p)
		}
	}
	return glueCells(out, false)
}

// gutterRe matches the whitespace between fixed-width columns.
var gutterRe = regexp.MustCompile(`\t+|[ ]{2,}`)

// gutters returns the interior column gutters of line as [start,end) byte
// spans. Indentation and trailing blanks are not gutters.
func gutters(line string) [][2]int {
	trimmed := strings.TrimRight(line, " \t")
	lead := len(trimmed) - len(strings.TrimLeft(trimmed, " \t"))
	var out [][2]int
	for _, m := range gutterRe.FindAllStringIndex(trimmed, -1) {
		if m[0] <= lead {
			continue
		}
		out = append(out, [2]int{m[0], m[1]})
	}
	return out
}

// alignedWith reports whether every gutter of g overlaps a gutter of ref.
func alignedWith(g, ref [][2]int) bool {
	for _, s := range g {
		ok := false
		for _, r := range ref {
			if s[0] < r[1] && r[0] < s[1] {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// valueCellRe matches cells that look like table values rather than prose.
var valueCellRe = regexp.MustCompile(`\d|^(?i:n/a|none|-+|—|\*|\$)$`)

func hasValueCell(cells []string) bool {
	for _, c := range cells {
		if valueCellRe.MatchString(c) {
			return true
		}
	}
	return false
}

// tableRun counts the leading lines that form a table. Pipe-delimited lines
// qualify on their own. Space-delimited lines must keep their gutters under
// those of the first line, and at least half of them must carry a value cell,
// so justified or double-spaced prose is left as text.
func tableRun(lines []string) int {
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return 0
	}
	if strings.Contains(lines[0], "|") {
		n := 0
		for _, l := range lines {
			if !strings.Contains(l, "|") || len(splitColumns(l)) < 2 {
				break
			}
			n++
		}
		return n
	}

	ref := gutters(lines[0])
	if len(ref) == 0 {
		return 0
	}
	n, values := 0, 0
	for _, l := range lines {
		if strings.TrimSpace(l) == "" || strings.Contains(l, "|") {
			break
		}
		cells := splitColumns(l)
		g := gutters(l)
		if len(cells) < 2 || len(g) == 0 || len(g) > len(ref) || !alignedWith(g, ref) {
			break
		}
		if hasValueCell(cells) {
			values++
		}
		n++
	}
	if n < minTableRows || values*2 < n {
		return 0
	}
	return n
}

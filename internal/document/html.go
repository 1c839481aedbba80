package document

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var hiddenStyleRe = regexp.MustCompile(`(?i)display\s*:\s*none|visibility\s*:\s*hidden`)

var emphasisStyleRe = regexp.MustCompile(`(?i)font-weight\s*:\s*(bold|[6-9]00)|text-decoration\s*:\s*underline`)

// FromHTML normalizes an HTML or iXBRL filing. Block elements become lines,
// emphasized short blocks and item captions become headings, and data tables
// become row lines bracketed by table markers.
func FromHTML(meta Meta, raw string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}
	// iXBRL hidden header blocks carry machine facts, not disclosure text.
	doc.Find(`script, style, noscript, head, ix\:header`).Remove()

	w := &htmlWalker{b: &builder{}}
	for _, n := range doc.Selection.Nodes {
		w.walk(n)
	}
	w.flush()
	return w.b.build(meta, len(raw)), nil
}

type htmlWalker struct {
	b   *builder
	buf strings.Builder

	emphasis      int
	textRunes     int
	emphasisRunes int

	// lead collects the emphasized run that opens a block ("Audit Committee."
	// in a run-in heading) until the first plain text arrives.
	lead     strings.Builder
	leadOpen bool
	leadEnd  int
}

func (w *htmlWalker) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		w.text(n.Data)
		return
	case html.ElementNode:
	case html.DocumentNode:
		w.children(n)
		return
	default:
		return
	}

	if isHidden(n) {
		return
	}

	switch n.DataAtom {
	case atom.Br, atom.Hr:
		w.flush()
		return
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		w.flush()
		w.b.heading(nodeText(n), int(n.Data[1]-'0'))
		return
	case atom.Table:
		w.flush()
		if rows := tableRows(n); isDataTable(rows) {
			w.b.tableStart(strings.Join(nonEmpty(rows[0]), CellSeparator))
			for _, r := range rows {
				w.b.row(r)
			}
			w.b.tableEnd()
			return
		}
		// Layout table: treat rows and cells as ordinary blocks.
		w.children(n)
		w.flush()
		return
	}

	emphasized := isEmphasis(n)
	if emphasized {
		w.emphasis++
	}
	block := isBlock(n)
	if block {
		w.flush()
	}
	w.children(n)
	if block {
		w.flush()
	}
	if emphasized {
		w.emphasis--
	}
}

func (w *htmlWalker) children(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
}

func (w *htmlWalker) text(s string) {
	if w.buf.Len() == 0 && w.textRunes == 0 {
		w.leadOpen = true
	}
	visible := countVisible(s)
	w.textRunes += visible
	if w.emphasis > 0 {
		w.emphasisRunes += visible
		if w.leadOpen {
			w.lead.WriteString(s)
		}
	} else if visible > 0 && w.leadOpen {
		w.leadOpen = false
		w.leadEnd = w.buf.Len()
	}
	w.buf.WriteString(s)
}

func (w *htmlWalker) flush() {
	raw := w.buf.String()
	lead := cleanLine(w.lead.String())
	leadEnd := w.leadEnd
	total, emph := w.textRunes, w.emphasisRunes
	stillLead := w.leadOpen

	w.buf.Reset()
	w.lead.Reset()
	w.textRunes, w.emphasisRunes, w.leadEnd = 0, 0, 0
	w.leadOpen = false

	line := cleanLine(raw)
	if line == "" {
		return
	}
	fullyEmphasized := total > 0 && emph*10 >= total*9

	switch {
	case isItemCaption(line):
		w.b.heading(line, 0)
	case fullyEmphasized && len(line) <= MaxHeadingLength:
		w.b.heading(strings.TrimRight(line, ".:"), 0)
	case !stillLead && isRunInHeading(lead):
		// "Audit Committee. The Audit Committee oversees..." becomes a
		// heading line followed by the paragraph body.
		w.b.heading(strings.TrimRight(lead, ".:"), 4)
		w.b.line(raw[leadEnd:])
	default:
		w.b.line(line)
	}
}

func isRunInHeading(lead string) bool {
	n := len([]rune(lead))
	if n < 3 || n > 80 {
		return false
	}
	return isTitleCase(strings.TrimRight(lead, ".:")) || isAllCaps(lead)
}

func countVisible(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

func isHidden(n *html.Node) bool {
	for _, a := range n.Attr {
		if a.Key == "style" && hiddenStyleRe.MatchString(a.Val) {
			return true
		}
		if a.Key == "hidden" {
			return true
		}
	}
	return false
}

func isEmphasis(n *html.Node) bool {
	switch n.DataAtom {
	case atom.B, atom.Strong, atom.U:
		return true
	}
	for _, a := range n.Attr {
		if a.Key == "style" && emphasisStyleRe.MatchString(a.Val) {
			return true
		}
	}
	return false
}

func isBlock(n *html.Node) bool {
	switch n.DataAtom {
	case atom.P, atom.Div, atom.Li, atom.Ul, atom.Ol, atom.Section, atom.Article, atom.Center,
		atom.Blockquote, atom.Dl, atom.Dt, atom.Dd, atom.Pre, atom.Tr, atom.Td, atom.Th,
		atom.Caption, atom.Address, atom.Header, atom.Footer, atom.Nav, atom.Form, atom.Body:
		return true
	}
	return false
}

// nodeText collects visible text below n, one space between text nodes.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
			return
		case html.ElementNode:
			if isHidden(n) {
				return
			}
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript:
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return cleanLine(sb.String())
}

// tableRows returns the cell texts of every row that belongs to table t
// (rows of nested tables are flattened into their enclosing cell).
func tableRows(t *html.Node) [][]string {
	var rows [][]string
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode || isHidden(c) {
				continue
			}
			switch c.DataAtom {
			case atom.Table:
				continue
			case atom.Tr:
				var cells []string
				for cell := c.FirstChild; cell != nil; cell = cell.NextSibling {
					if cell.Type == html.ElementNode && (cell.DataAtom == atom.Td || cell.DataAtom == atom.Th) && !isHidden(cell) {
						cells = append(cells, nodeText(cell))
					}
				}
				if glued := glueCells(cells, true); len(nonEmpty(glued)) > 0 {
					rows = append(rows, glued)
				}
			default:
				visit(c)
			}
		}
	}
	visit(t)
	return rows
}

// glueCells reattaches currency and percent fragments that filings typeset in
// their own cells. Empty spacer cells are kept when keepEmpty is set.
func glueCells(cells []string, keepEmpty bool) []string {
	var out []string
	prefix := ""
	lastContent := -1
	for _, c := range cells {
		c = cleanLine(c)
		switch c {
		case "":
			if keepEmpty {
				out = append(out, "")
			}
			continue
		case "$", "(", "$(":
			prefix += c
			continue
		case "%", ")", "%)", ")%":
			if lastContent >= 0 && prefix == "" {
				out[lastContent] += c
				continue
			}
		}
		out = append(out, prefix+c)
		lastContent = len(out) - 1
		prefix = ""
	}
	if prefix != "" {
		out = append(out, prefix)
	}
	return out
}

func nonEmpty(cells []string) []string {
	var out []string
	for _, c := range cells {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// isDataTable separates tabular data from tables used for page layout.
func isDataTable(rows [][]string) bool {
	if len(rows) < 2 {
		return false
	}
	multi := 0
	for _, r := range rows {
		if len(nonEmpty(r)) >= 2 {
			multi++
		}
	}
	return multi >= 2
}

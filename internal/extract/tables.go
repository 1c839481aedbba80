package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/hurttlocker/filingintel/internal/cue"
	"github.com/hurttlocker/filingintel/internal/document"
	"github.com/hurttlocker/filingintel/internal/errcode"
	"github.com/hurttlocker/filingintel/internal/evidence"
	"github.com/hurttlocker/filingintel/internal/locate"
)

// BoardMember is one row of a board roster.
type BoardMember struct {
	Name        string `json:"name"`
	Role        string `json:"role,omitempty"`
	Age         int    `json:"age,omitempty"`
	Independent *bool  `json:"independent,omitempty"`
}

// BeneficialOwner is one row of a beneficial ownership table. Percent is a
// fraction in (0, 1]; holdings reported as "*" or "less than 1%" leave it
// unset and carry PercentNote "<1%".
type BeneficialOwner struct {
	Holder      string   `json:"holder"`
	Shares      int64    `json:"shares"`
	Percent     *float64 `json:"percent,omitempty"`
	PercentNote string   `json:"percent_note,omitempty"`
	Footnotes   []string `json:"footnotes,omitempty"`
}

// TableResult is a parsed table. DetectedRows counts the data rows found in
// the table; every detected row is either parsed or skipped.
type TableResult struct {
	Kind         cue.TableKind `json:"kind"`
	Header       []string      `json:"header"`
	DetectedRows int           `json:"detected_rows"`
	ParsedRows   int           `json:"parsed_rows"`
	SkippedRows  int           `json:"skipped_rows"`

	Members    []BoardMember       `json:"members,omitempty"`
	Committees map[string][]string `json:"committees,omitempty"`
	Chairs     map[string]string   `json:"chairs,omitempty"`
	Owners     []BeneficialOwner   `json:"owners,omitempty"`

	// PercentNonIncreasing reports whether holders of 5% or more appear in
	// non-increasing percent order, the convention ownership tables follow.
	PercentNonIncreasing *bool `json:"percent_non_increasing,omitempty"`

	EvidenceExcerpt string           `json:"evidence_excerpt,omitempty"`
	SourceURL       string           `json:"source_url,omitempty"`
	Evidence        evidence.Snippet `json:"evidence"`
}

// Table finds and parses the table of the given kind. It fails with
// PARSE_ERROR only when no table of that kind can be located; a located
// table with zero usable rows is a valid result.
func (e *Extractor) Table(doc *document.Document, kind cue.TableKind) (TableResult, error) {
	tc, ok := e.catalog.Table(kind)
	if !ok {
		return TableResult{}, errcode.Validationf("unknown table kind %q", kind)
	}
	if doc == nil {
		return TableResult{}, errcode.Parsef("no %s table found", kind)
	}
	span, ok := e.findTable(doc, tc)
	if !ok {
		return TableResult{}, errcode.Parsef("no %s table found", kind)
	}

	lines := doc.Lines(span.Start, span.End)
	header := splitCells(lines[0].Text)
	res := TableResult{Kind: kind, Header: nonEmpty(header), SourceURL: doc.SourceURL}
	cols := mapColumns(tc, header)

	switch kind {
	case cue.BoardRoster:
		parseRoster(&res, cols, lines[1:])
	case cue.CommitteeMembership:
		parseCommittees(&res, cols, lines[1:])
	case cue.BeneficialOwners:
		parseOwners(&res, cols, lines[1:], footnotesAfter(doc, span))
	}

	region := locate.Region{Start: span.Start, End: span.End, Label: doc.HeadingAt(span.Start), Source: locate.SourceHeading, Anchor: span.Start}
	res.Evidence = e.evidence.Region(doc, region, lines[0].Offset, lines[0].Offset+len(lines[0].Text))
	res.EvidenceExcerpt = res.Evidence.Excerpt
	return res, nil
}

// findTable prefers tables inside the kind's section, then any table in the
// document whose header qualifies.
func (e *Extractor) findTable(doc *document.Document, tc *cue.TableCue) (document.TableSpan, bool) {
	tables := doc.Tables()
	qualifies := func(t document.TableSpan) bool {
		lines := doc.Lines(t.Start, t.End)
		return len(lines) > 0 && tc.MatchesHeader(t.Header)
	}
	if s, ok := e.catalog.Section(tc.Section); ok {
		for _, r := range e.locator.Locate(doc, s.Target()) {
			for _, t := range tables {
				if t.Start >= r.Start && t.Start < r.End && qualifies(t) {
					return t, true
				}
			}
		}
	}
	for _, t := range tables {
		if qualifies(t) {
			return t, true
		}
	}
	return document.TableSpan{}, false
}

// columns maps fields to header positions.
type columns struct {
	width  int            // raw header cell count, spacer cells included
	fields map[string]int // field -> raw header position
	order  []string       // field of each non-empty header cell, in order ("" when unmapped)
	labels []string       // text of each non-empty header cell
	pos    []int          // raw position of each non-empty header cell
}

func mapColumns(tc *cue.TableCue, header []string) columns {
	c := columns{width: len(header), fields: make(map[string]int)}
	for i, cell := range header {
		if cell == "" {
			continue
		}
		f := tc.FieldFor(cell)
		if _, taken := c.fields[f]; f != "" && taken {
			f = ""
		}
		if f != "" {
			c.fields[f] = i
		}
		c.order = append(c.order, f)
		c.labels = append(c.labels, cell)
		c.pos = append(c.pos, i)
	}
	return c
}

// row resolves a data line into header-position-indexed cells. Lines with the
// header's raw width map positionally; otherwise the non-empty cells map onto
// the non-empty header cells, the first cell to the first column and the
// rest right-aligned, which absorbs spacer and merged currency cells.
func (c columns) row(line string) map[int]string {
	cells := splitCells(line)
	out := make(map[int]string, len(c.pos))
	if len(cells) == c.width {
		for _, p := range c.pos {
			out[p] = cells[p]
		}
		return out
	}
	values := nonEmpty(cells)
	if len(values) == 0 || len(c.pos) == 0 {
		return out
	}
	if len(values) >= len(c.pos) {
		// Extra leading cells belong to the first column (names split across
		// cells).
		extra := len(values) - len(c.pos)
		out[c.pos[0]] = strings.Join(values[:extra+1], " ")
		for i := 1; i < len(c.pos); i++ {
			out[c.pos[i]] = values[extra+i]
		}
		return out
	}
	out[c.pos[0]] = values[0]
	rest := values[1:]
	offset := len(c.pos) - len(rest)
	for i, v := range rest {
		out[c.pos[offset+i]] = v
	}
	return out
}

func (c columns) get(cells map[int]string, field string) (string, bool) {
	p, ok := c.fields[field]
	if !ok {
		return "", false
	}
	return cells[p], true
}

// isDataRow reports whether a line carries at least two values. Single-cell
// lines inside a table are group captions ("5% Stockholders:").
func isDataRow(line string) bool {
	return len(nonEmpty(splitCells(line))) >= 2
}

func parseRoster(res *TableResult, cols columns, lines []document.Line) {
	for _, l := range lines {
		if !isDataRow(l.Text) {
			continue
		}
		res.DetectedRows++
		cells := cols.row(l.Text)
		name, _ := cols.get(cells, "name")
		name, _ = stripMarkers(name)
		if name == "" {
			res.SkippedRows++
			continue
		}
		m := BoardMember{Name: name}
		if role, ok := cols.get(cells, "role"); ok {
			m.Role = role
		}
		if raw, ok := cols.get(cells, "age"); ok && raw != "" {
			age, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil || age <= 0 || age > 120 {
				res.SkippedRows++
				continue
			}
			m.Age = age
		}
		if raw, ok := cols.get(cells, "independent"); ok {
			m.Independent = parseYesNo(raw)
		}
		res.Members = append(res.Members, m)
		res.ParsedRows++
	}
}

func parseCommittees(res *TableResult, cols columns, lines []document.Line) {
	res.Committees = make(map[string][]string)
	res.Chairs = make(map[string]string)
	for _, l := range lines {
		if !isDataRow(l.Text) && !hasNameOnly(l.Text) {
			continue
		}
		res.DetectedRows++
		cells := cols.row(l.Text)
		name, _ := cols.get(cells, "name")
		name, _ = stripMarkers(name)
		if name == "" {
			res.SkippedRows++
			continue
		}
		for i, f := range cols.order {
			if f != "" {
				continue
			}
			committee := committeeName(cols.labels[i])
			member, chair := parseMark(cells[cols.pos[i]])
			if !member {
				continue
			}
			res.Committees[committee] = append(res.Committees[committee], name)
			if chair {
				res.Chairs[committee] = name
			}
		}
		res.ParsedRows++
	}
}

// hasNameOnly reports whether a committee matrix row names a director who
// sits on no committee: a positional row whose only value is the first cell.
func hasNameOnly(line string) bool {
	cells := splitCells(line)
	return len(cells) > 1 && cells[0] != "" && len(nonEmpty(cells)) == 1
}

func parseOwners(res *TableResult, cols columns, lines []document.Line, notes map[string]string) {
	for _, l := range lines {
		if !isDataRow(l.Text) {
			continue
		}
		res.DetectedRows++
		cells := cols.row(l.Text)
		holder, _ := cols.get(cells, "holder")
		holder, markers := stripMarkers(holder)
		rawShares, _ := cols.get(cells, "shares")
		shares, ok := parseShares(rawShares)
		if holder == "" || !ok {
			res.SkippedRows++
			continue
		}
		o := BeneficialOwner{Holder: holder, Shares: shares}
		if rawPct, has := cols.get(cells, "percent"); has {
			pct, note, ok := parsePercent(rawPct)
			if !ok {
				res.SkippedRows++
				continue
			}
			o.Percent, o.PercentNote = pct, note
		}
		for _, m := range markers {
			if text, ok := notes[m]; ok {
				o.Footnotes = append(o.Footnotes, text)
			}
		}
		res.Owners = append(res.Owners, o)
		res.ParsedRows++
	}

	var major []float64
	for _, o := range res.Owners {
		if o.Percent != nil && *o.Percent >= 0.05 {
			major = append(major, *o.Percent)
		}
	}
	if len(major) > 0 {
		ok := true
		for i := 1; i < len(major); i++ {
			if major[i] > major[i-1] {
				ok = false
				break
			}
		}
		res.PercentNonIncreasing = &ok
	}
}

var (
	markerRe   = regexp.MustCompile(`\s*\(\s*([0-9]{1,2}|[a-z])\s*\)\s*$`)
	footnoteRe = regexp.MustCompile(`^\(\s*([0-9]{1,2}|[a-z])\s*\)\s*(.+)$`)
	numberRe   = regexp.MustCompile(`^[0-9]+$`)
)

// stripMarkers removes trailing footnote markers such as "(1)(2)" and "*"
// from a name and returns the marker ids in order.
func stripMarkers(s string) (string, []string) {
	s = strings.TrimSpace(s)
	var ids []string
	for {
		trimmed := strings.TrimRight(s, "*† ")
		m := markerRe.FindStringSubmatchIndex(trimmed)
		if m == nil {
			s = trimmed
			break
		}
		ids = append([]string{trimmed[m[2]:m[3]]}, ids...)
		s = trimmed[:m[0]]
	}
	return strings.TrimSpace(s), ids
}

// parseShares reads a share count, tolerating "$", thousands separators and
// trailing footnote markers.
func parseShares(s string) (int64, bool) {
	s, _ = stripMarkers(s)
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	if !numberRe.MatchString(s) {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// parsePercent reads a percent cell into a fraction. Holdings below one
// percent are reported without a value.
func parsePercent(s string) (*float64, string, bool) {
	raw := strings.ToLower(strings.TrimSpace(s))
	switch {
	case raw == "*" || raw == "**" || strings.HasPrefix(raw, "less than 1") || strings.HasPrefix(raw, "<1") || strings.HasPrefix(raw, "< 1"):
		return nil, "<1%", true
	}
	raw, _ = stripMarkers(raw)
	raw = strings.TrimSpace(strings.TrimSuffix(raw, "%"))
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 || v > 100 {
		return nil, "", false
	}
	f := v / 100
	return &f, "", true
}

func parseYesNo(s string) *bool {
	v := strings.ToLower(strings.TrimSpace(s))
	var b bool
	switch v {
	case "yes", "y", "x", "✓", "✔", "independent", "•":
		b = true
	case "no", "n", "not independent", "-", "—":
		b = false
	default:
		return nil
	}
	return &b
}

// parseMark reads a committee matrix cell.
func parseMark(s string) (member, chair bool) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimRight(v, "*() 0123456789")
	switch {
	case v == "":
		return false, false
	case v == "c" || strings.HasPrefix(v, "chair"):
		return true, true
	case v == "x" || v == "m" || v == "✓" || v == "✔" || v == "•" || v == "member" || v == "yes":
		return true, false
	}
	return false, false
}

func committeeName(label string) string {
	name := strings.TrimSpace(label)
	if i := strings.LastIndex(strings.ToLower(name), " committee"); i > 0 && i == len(name)-len(" committee") {
		name = name[:i]
	}
	return name
}

// footnotesAfter collects "(n) text" lines that follow a table, stopping at
// the next heading or table.
func footnotesAfter(doc *document.Document, span document.TableSpan) map[string]string {
	end := doc.Len()
	for _, m := range doc.Index {
		if m.Offset > span.End && (m.Kind == document.KindHeading || m.Kind == document.KindTableStart) {
			end = m.Offset
			break
		}
	}
	notes := make(map[string]string)
	for _, l := range doc.Lines(span.End, end) {
		if m := footnoteRe.FindStringSubmatch(l.Text); m != nil {
			if _, dup := notes[m[1]]; !dup {
				notes[m[1]] = strings.TrimSpace(m[2])
			}
		}
	}
	return notes
}

func splitCells(line string) []string {
	parts := strings.Split(line, "|")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
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

package document_test

import (
	"strings"
	"testing"

	"github.com/hurttlocker/filingintel/internal/document"
	"github.com/hurttlocker/filingintel/internal/fixture"
)

func headingByLabel(doc *document.Document, label string) (int, bool) {
	for i, m := range doc.Index {
		if m.Kind == document.KindHeading && m.Label == label {
			return i, true
		}
	}
	return -1, false
}

func TestFromHTML_EightKItemCaptions(t *testing.T) {
	doc := fixture.Must(fixture.Meta("8k-1", "8-K", fixture.Date("2025-03-04")), fixture.EightKRestatement)

	i, ok := headingByLabel(doc, "Item 4.02")
	if !ok {
		t.Fatalf("Item 4.02 heading not recovered; index=%+v", doc.Index)
	}
	if doc.Index[i].Level != 2 {
		t.Errorf("Item 4.02 level = %d, want 2", doc.Index[i].Level)
	}
	if _, ok := headingByLabel(doc, "Item 9.01"); !ok {
		t.Error("Item 9.01 heading not recovered")
	}
	if strings.Contains(doc.Text, "hidden iXBRL") {
		t.Error("hidden block leaked into normalized text")
	}
	if strings.Contains(doc.Text, "p{margin") {
		t.Error("style content leaked into normalized text")
	}

	section := doc.Slice(doc.Index[i].Offset, doc.SectionEnd(i))
	if !strings.Contains(section, "should no longer be relied upon") {
		t.Errorf("Item 4.02 section missing disclosure text: %q", section)
	}
	if strings.Contains(section, "Press release dated") {
		t.Error("Item 4.02 section ran into Item 9.01")
	}
}

func TestFromHTML_HeadingLevels(t *testing.T) {
	doc := fixture.Must(fixture.Meta("proxy-1", "DEF 14A", fixture.Date("2025-04-20")), fixture.Proxy)

	tests := []struct {
		label string
		level int
	}{
		{"CORPORATE GOVERNANCE", 2},
		{"Director Independence", 3},
		{"Audit Committee", 3},
		{"Compensation Committee", 3},
		{"SECURITY OWNERSHIP OF CERTAIN BENEFICIAL OWNERS AND MANAGEMENT", 2},
	}
	for _, tt := range tests {
		i, ok := headingByLabel(doc, tt.label)
		if !ok {
			t.Errorf("heading %q not recovered", tt.label)
			continue
		}
		if got := doc.Index[i].Level; got != tt.level {
			t.Errorf("heading %q level = %d, want %d", tt.label, got, tt.level)
		}
	}

	audit, _ := headingByLabel(doc, "Audit Committee")
	comp, _ := headingByLabel(doc, "Compensation Committee")
	if got, want := doc.SectionEnd(audit), doc.Index[comp].Offset; got != want {
		t.Errorf("Audit Committee section ends at %d, want %d", got, want)
	}
}

func TestFromHTML_Tables(t *testing.T) {
	doc := fixture.Must(fixture.Meta("proxy-1", "DEF 14A", fixture.Date("2025-04-20")), fixture.Proxy)

	tables := doc.Tables()
	if len(tables) != 3 {
		t.Fatalf("expected 3 tables, got %d: %+v", len(tables), tables)
	}
	if tables[0].Header != "Name | Age | Position | Independent" {
		t.Errorf("roster header = %q", tables[0].Header)
	}
	if tables[1].Header != "Director | Audit | Compensation" {
		t.Errorf("committee header = %q", tables[1].Header)
	}

	owners := doc.Slice(tables[2].Start, tables[2].End)
	if !strings.Contains(owners, "Vanguard Group, Inc.(1) | $12,500,000 |  | 12.5%") {
		t.Errorf("currency and percent cells not glued:\n%s", owners)
	}
	if !strings.Contains(owners, "BlackRock, Inc.(2) |  | 8,250,000 |  | 8.3%") {
		t.Errorf("spacer cells not kept positional:\n%s", owners)
	}

	lines := doc.Lines(tables[1].Start, tables[1].End)
	if len(lines) != 4 {
		t.Fatalf("committee table lines = %d, want 4", len(lines))
	}
	if lines[3].Text != "John Doe |  |" {
		t.Errorf("empty membership row = %q", lines[3].Text)
	}
}

func TestFromHTML_RunInHeading(t *testing.T) {
	raw := `<html><body><p><b>Audit Committee.</b> The Audit Committee oversees financial reporting.</p></body></html>`
	doc := fixture.Must(fixture.Meta("p", "DEF 14A", fixture.Date("2025-01-01")), raw)

	i, ok := headingByLabel(doc, "Audit Committee")
	if !ok {
		t.Fatalf("run-in heading not split; text=%q index=%+v", doc.Text, doc.Index)
	}
	if doc.Index[i].Level != 4 {
		t.Errorf("run-in level = %d, want 4", doc.Index[i].Level)
	}
	if !strings.Contains(doc.Text, "Audit Committee\nThe Audit Committee oversees financial reporting.\n") {
		t.Errorf("unexpected text %q", doc.Text)
	}
}

func TestFromText_HeadingsAndTables(t *testing.T) {
	doc := fixture.Must(fixture.Meta("10k-1", "10-K", fixture.Date("2025-02-28")), fixture.PlainTenK)

	if i, ok := headingByLabel(doc, "PART II"); !ok || doc.Index[i].Level != 1 {
		t.Errorf("PART II heading missing or wrong level: %+v", doc.Index)
	}
	i, ok := headingByLabel(doc, "Item 9A. Controls and Procedures")
	if !ok {
		t.Fatalf("Item 9A heading missing: %+v", doc.Index)
	}
	section := doc.Slice(doc.Index[i].Offset, doc.SectionEnd(i))
	if !strings.Contains(section, "material weakness") || strings.Contains(section, "None.") {
		t.Errorf("Item 9A section = %q", section)
	}

	tables := doc.Tables()
	if len(tables) != 1 {
		t.Fatalf("expected 1 inferred table, got %d", len(tables))
	}
	if tables[0].Header != "Name | Shares | Percent" {
		t.Errorf("header = %q", tables[0].Header)
	}
	if got := doc.Slice(tables[0].Start, tables[0].End); !strings.Contains(got, "Acme Capital LLC | 5,000,000 | 10.0%") {
		t.Errorf("table rows not rewritten: %q", got)
	}
}

func TestFromText_TableInference(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		tables int
	}{
		{"justified prose", "The Company's cash  will not fund\noperations for twelve months, raising substantial  doubt about the\nCompany's ability to continue as a going  concern.\n", 0},
		{"aligned prose without values", "Our board  oversees risk\nThe panel  reviews pay\nEach year  we report\n", 0},
		{"fixed-width", "Holder      Shares     Percent\nAcme        1,000      5.0%\nBeta        2,000      10.0%\n", 1},
		{"pipes", "Name | Role\nJane Doe | Chair\nJohn Roe | Member\n", 1},
		{"two rows", "Holder      Shares\nAcme        1,000\n", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := document.FromText(document.Meta{ID: "t"}, tt.raw)
			if got := len(doc.Tables()); got != tt.tables {
				t.Fatalf("tables = %d, want %d; text %q", got, tt.tables, doc.Text)
			}
			if tt.tables == 0 && strings.Contains(doc.Text, "|") {
				t.Errorf("cell separators inserted into %q", doc.Text)
			}
		})
	}
}

func TestNormalize_Sniffing(t *testing.T) {
	if !document.LooksLikeHTML("<DIV>x</DIV>") {
		t.Error("upper-case markup not sniffed")
	}
	if document.LooksLikeHTML("Item 1.01 Entry into a Material Definitive Agreement") {
		t.Error("plain text sniffed as markup")
	}
	doc, err := document.Normalize(fixture.Meta("t", "8-K", fixture.Date("2025-01-01")), "Plain body text.\r\nSecond line.")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if doc.Text != "Plain body text.\nSecond line.\n" {
		t.Errorf("text = %q", doc.Text)
	}
	if doc.RawLength != len("Plain body text.\r\nSecond line.") {
		t.Errorf("raw length = %d", doc.RawLength)
	}
}

func TestNormalize_NFKC(t *testing.T) {
	doc := document.FromText(document.Meta{ID: "n"}, "Ｃｏｍｐａｎｙ reports  income")
	if doc.Text != "Company reports income\n" {
		t.Errorf("text = %q", doc.Text)
	}
}

func TestDocument_ClampAlignsRunes(t *testing.T) {
	doc := &document.Document{Text: "aé b"}
	if got := doc.Slice(0, 2); got != "aé" {
		t.Errorf("Slice(0,2) = %q, want %q", got, "aé")
	}
	if got := doc.Slice(-5, 100); got != "aé b" {
		t.Errorf("Slice clamp = %q", got)
	}
	start, end := doc.Clamp(4, 2)
	if start != end {
		t.Errorf("inverted span not collapsed: %d,%d", start, end)
	}
}

func TestDocument_HeadingAt(t *testing.T) {
	doc := fixture.Must(fixture.Meta("proxy-1", "DEF 14A", fixture.Date("2025-04-20")), fixture.Proxy)
	off := strings.Index(doc.Text, "financially literate")
	if off < 0 {
		t.Fatal("fixture text missing")
	}
	if got := doc.HeadingAt(off); got != "Audit Committee" {
		t.Errorf("HeadingAt = %q, want Audit Committee", got)
	}
	if got := doc.HeadingAt(0); got != "EXAMPLE CORP" {
		t.Errorf("HeadingAt(0) = %q", got)
	}
}

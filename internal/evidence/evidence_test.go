package evidence

import (
	"strings"
	"testing"
	"unicode"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/hurttlocker/filingintel/internal/document"
	"github.com/hurttlocker/filingintel/internal/fixture"
	"github.com/hurttlocker/filingintel/internal/locate"
)

func TestLocatorString(t *testing.T) {
	if got := (Locator{DocumentID: "0001", Section: "Item 4.02", Start: 10, End: 20}).String(); got != "0001#Item 4.02@10-20" {
		t.Errorf("got %q", got)
	}
	if got := (Locator{DocumentID: "0001", Start: 0, End: 5}).String(); got != "0001@0-5" {
		t.Errorf("got %q", got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		max     int
		want    string
		wantCut bool
	}{
		{"fits", "short text", 20, "short text", false},
		{"exact", "abcde", 5, "abcde", false},
		{"cut at space", "the audit committee oversees reporting", 30, "the audit" + TruncationMarker, true},
		{"single token", strings.Repeat("x", 50), 20, "[truncated]", true},
		{"tiny budget", "one two three", 5, "one", true},
		{"zero", "anything", 0, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, cut := Truncate(tt.in, tt.max)
			if got != tt.want || cut != tt.wantCut {
				t.Errorf("Truncate(%q, %d) = %q, %v; want %q, %v", tt.in, tt.max, got, cut, tt.want, tt.wantCut)
			}
		})
	}
}

func TestTruncateProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("result never exceeds the cap", prop.ForAll(
		func(words []string, max int) bool {
			out, _ := Truncate(strings.Join(words, " "), max)
			return len(out) <= max
		},
		gen.SliceOf(gen.AlphaString()),
		gen.IntRange(0, 400),
	))

	properties.Property("cut lands on a whitespace boundary", prop.ForAll(
		func(words []string, max int) bool {
			s := strings.Join(words, " ")
			out, cut := Truncate(s, max)
			if !cut {
				return out == s
			}
			kept := strings.TrimSuffix(out, TruncationMarker)
			if kept == "" || kept == strings.TrimSpace(TruncationMarker) {
				return true
			}
			return strings.HasPrefix(s, kept) && unicode.IsSpace(rune(s[len(kept)]))
		},
		gen.SliceOf(gen.AlphaString()),
		gen.IntRange(12, 400),
	))

	properties.Property("truncation is idempotent", prop.ForAll(
		func(words []string, max int) bool {
			once, _ := Truncate(strings.Join(words, " "), max)
			twice, _ := Truncate(once, max)
			return once == twice
		},
		gen.SliceOf(gen.AlphaString()),
		gen.IntRange(0, 400),
	))

	properties.TestingRun(t)
}

func TestAround_WordBoundaries(t *testing.T) {
	doc := &document.Document{
		Meta: document.Meta{ID: "d1", SourceURL: "https://example.test/d1"},
		Text: "alpha bravo charlie delta echo foxtrot golf hotel",
	}
	match := strings.Index(doc.Text, "delta")
	s := NewBuilder(0).Around(doc, match, match+len("delta"), 8)

	if s.Excerpt != "charlie delta echo" {
		t.Errorf("excerpt = %q", s.Excerpt)
	}
	if doc.Text[s.StartOffset:s.EndOffset] != s.Excerpt {
		t.Errorf("offsets %d-%d do not cover excerpt", s.StartOffset, s.EndOffset)
	}
	if s.SourceURL != "https://example.test/d1" || s.DocumentID != "d1" {
		t.Errorf("provenance missing: %+v", s)
	}
	if s.Locator != "d1@12-30" {
		t.Errorf("locator = %q", s.Locator)
	}
}

func TestAround_DocumentEdges(t *testing.T) {
	doc := &document.Document{Meta: document.Meta{ID: "d"}, Text: "restatement announced today"}
	s := NewBuilder(0).Around(doc, 0, len("restatement"), 500)
	if s.Excerpt != doc.Text {
		t.Errorf("excerpt = %q", s.Excerpt)
	}
}

func TestRegion_WindowsLongRegions(t *testing.T) {
	doc := fixture.Must(fixture.Meta("long", "DEF 14A", fixture.Date("2025-01-01")), fixture.Long("Audit Committee", 40))
	regions := locate.New(locate.DefaultOptions()).Locate(doc, locate.Target{Headings: []string{"Audit Committee"}})
	if len(regions) != 1 {
		t.Fatalf("expected 1 region, got %d", len(regions))
	}
	anchor := strings.Index(doc.Text, "Paragraph 20 ")
	b := NewBuilder(200)
	s := b.Region(doc, regions[0], anchor, anchor+len("Paragraph 20"))

	if len(s.Excerpt) > 200 {
		t.Errorf("excerpt length %d exceeds cap", len(s.Excerpt))
	}
	if !strings.Contains(s.Excerpt, "Paragraph 20") {
		t.Errorf("excerpt not centered on anchor: %q", s.Excerpt)
	}
	if !strings.HasPrefix(s.Locator, "long#Audit Committee@") {
		t.Errorf("locator = %q", s.Locator)
	}
}

func TestRegion_ShortRegionKeptWhole(t *testing.T) {
	doc := fixture.Must(fixture.Meta("proxy", "DEF 14A", fixture.Date("2025-01-01")), fixture.Proxy)
	regions := locate.New(locate.DefaultOptions()).Locate(doc, locate.Target{Headings: []string{"Compensation Committee"}})
	if len(regions) != 1 {
		t.Fatalf("expected 1 region, got %d", len(regions))
	}
	s := NewBuilder(0).Region(doc, regions[0], regions[0].Anchor, regions[0].Anchor)
	if !strings.HasPrefix(s.Excerpt, "Compensation Committee The Compensation Committee reviews") {
		t.Errorf("excerpt = %q", s.Excerpt)
	}
	if s.StartOffset != regions[0].Start || s.EndOffset != regions[0].End {
		t.Errorf("offsets %d-%d, region %d-%d", s.StartOffset, s.EndOffset, regions[0].Start, regions[0].End)
	}
}

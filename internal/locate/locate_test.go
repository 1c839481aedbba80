package locate

import (
	"regexp"
	"strings"
	"testing"

	"github.com/hurttlocker/filingintel/internal/document"
	"github.com/hurttlocker/filingintel/internal/fixture"
)

func proxyDoc(t *testing.T) *document.Document {
	t.Helper()
	return fixture.Must(fixture.Meta("proxy-1", "DEF 14A", fixture.Date("2025-04-20")), fixture.Proxy)
}

func TestHeadingKey(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Item 4.02", "item 4 02"},
		{"  Non-Reliance on Previously Issued  ", "non reliance on previously issued"},
		{"AUDIT COMMITTEE:", "audit committee"},
		{"Compensation Committee", "compensation committee"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := HeadingKey(tt.in); got != tt.want {
			t.Errorf("HeadingKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLocate_HeadingRegion(t *testing.T) {
	doc := proxyDoc(t)
	l := New(DefaultOptions())

	regions := l.Locate(doc, Target{Name: "audit", Headings: []string{"Audit Committee"}})
	if len(regions) != 1 {
		t.Fatalf("expected 1 region, got %d: %+v", len(regions), regions)
	}
	r := regions[0]
	if r.Source != SourceHeading || r.Label != "Audit Committee" {
		t.Errorf("unexpected region %+v", r)
	}
	text := doc.Slice(r.Start, r.End)
	if !strings.Contains(text, "financially literate") {
		t.Errorf("region text missing body: %q", text)
	}
	if strings.Contains(text, "Compensation Committee reviews") {
		t.Errorf("region ran into the next section: %q", text)
	}
}

func TestLocate_MissingSectionStaysMissing(t *testing.T) {
	doc := proxyDoc(t)
	l := New(DefaultOptions())

	regions := l.Locate(doc, Target{
		Name:     "nominating",
		Headings: []string{"Nominating Committee", "Nominating and Corporate Governance Committee"},
		Patterns: []*regexp.Regexp{regexp.MustCompile(`(?i)nominating`)},
	})
	if len(regions) != 0 {
		t.Errorf("expected no regions, got %+v", regions)
	}
}

func TestLocate_CueFallsBackToPatterns(t *testing.T) {
	doc := proxyDoc(t)
	l := New(DefaultOptions())

	regions := l.Locate(doc, Target{
		Name:     "classified_board",
		Headings: []string{"Classified Board"},
		Patterns: []*regexp.Regexp{regexp.MustCompile(`(?i)classified\s+board`)},
		Cue:      true,
	})
	if len(regions) != 1 {
		t.Fatalf("expected 1 fallback region, got %+v", regions)
	}
	r := regions[0]
	if r.Source != SourceFallback {
		t.Errorf("source = %s, want fallback", r.Source)
	}
	if got := doc.Text[r.Anchor : r.Anchor+len("classified board")]; got != "classified board" {
		t.Errorf("anchor points at %q", got)
	}
	if r.Anchor-r.Start > 400 || r.End-r.Anchor > 400+len("classified board") {
		t.Errorf("window exceeds bounds: %+v", r)
	}
}

func TestLocate_HeadinglessDocumentFallsBack(t *testing.T) {
	doc := &document.Document{Text: strings.Repeat("filler text. ", 100) + "The audit committee met four times. " + strings.Repeat("more filler. ", 100)}
	l := New(Options{Window: 50})

	regions := l.Locate(doc, Target{
		Headings: []string{"Audit Committee"},
		Patterns: []*regexp.Regexp{regexp.MustCompile(`(?i)audit committee`)},
	})
	if len(regions) != 1 {
		t.Fatalf("expected 1 region, got %+v", regions)
	}
	if got := regions[0].End - regions[0].Start; got != 50+len("audit committee")+50 {
		t.Errorf("window length = %d", got)
	}
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name string
		in   []Region
		want []Region
	}{
		{
			name: "contained region dropped",
			in:   []Region{{Start: 0, End: 100, Label: "outer"}, {Start: 10, End: 20, Label: "inner"}},
			want: []Region{{Start: 0, End: 100, Label: "outer"}},
		},
		{
			name: "large overlap merges",
			in:   []Region{{Start: 50, End: 150, Label: "b"}, {Start: 0, End: 100, Label: "a"}},
			want: []Region{{Start: 0, End: 150, Label: "a"}},
		},
		{
			name: "small overlap kept apart",
			in:   []Region{{Start: 0, End: 100}, {Start: 90, End: 200}},
			want: []Region{{Start: 0, End: 100}, {Start: 90, End: 200}},
		},
		{
			name: "disjoint",
			in:   []Region{{Start: 300, End: 400}, {Start: 0, End: 100}},
			want: []Region{{Start: 0, End: 100}, {Start: 300, End: 400}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge(tt.in, 32)
			if len(got) != len(tt.want) {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("region %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestLocate_NilDocument(t *testing.T) {
	if got := New(Options{}).Locate(nil, Target{Headings: []string{"x"}}); got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

// Package compact enforces per-call output budgets.
//
// Every function here is pure and idempotent: it returns a trimmed copy and
// never touches its input. Only raw text and sample lists shrink; presence
// booleans, counts and table row accounting pass through unchanged.
package compact

import (
	"github.com/hurttlocker/filingintel/internal/errcode"
	"github.com/hurttlocker/filingintel/internal/evidence"
	"github.com/hurttlocker/filingintel/internal/extract"
	"github.com/hurttlocker/filingintel/internal/window"
)

// Ceilings and defaults for caller-supplied size controls.
const (
	DefaultMaxHits = 3
	MaxMaxHits     = 50

	DefaultMaxSectionChars = 1500
	MinMaxSectionChars     = 64
	MaxMaxSectionChars     = 20000

	DefaultContextChars = 150
	MaxContextChars     = 1000

	DefaultWindowDays = 7
	MaxWindowDays     = 365

	DefaultSummaryOnly = true
)

// Limits is a validated output budget.
type Limits struct {
	SummaryOnly     bool
	MaxSectionChars int
	MaxHits         int
	MaxExcerptChars int
	ContextChars    int
	WindowDays      int
}

// DefaultLimits returns the compact defaults.
func DefaultLimits() Limits {
	return Limits{
		SummaryOnly:     DefaultSummaryOnly,
		MaxSectionChars: DefaultMaxSectionChars,
		MaxHits:         DefaultMaxHits,
		MaxExcerptChars: evidence.DefaultMaxExcerpt,
		ContextChars:    DefaultContextChars,
		WindowDays:      DefaultWindowDays,
	}
}

// Params are size controls as a caller supplies them; nil means default.
type Params struct {
	SummaryOnly     *bool `json:"summary_only,omitempty"`
	MaxSectionChars *int  `json:"max_section_chars,omitempty"`
	MaxHits         *int  `json:"max_hits,omitempty"`
	ContextChars    *int  `json:"context_chars,omitempty"`
	WindowDays      *int  `json:"window_days,omitempty"`
}

// Validate checks p against the ceilings and returns the resulting limits.
// Out-of-range values are a VALIDATION_ERROR; they are never clamped.
func Validate(p Params) (Limits, error) {
	l := DefaultLimits()
	if p.SummaryOnly != nil {
		l.SummaryOnly = *p.SummaryOnly
	}
	checks := []struct {
		name     string
		v        *int
		min, max int
		dst      *int
	}{
		{"max_section_chars", p.MaxSectionChars, MinMaxSectionChars, MaxMaxSectionChars, &l.MaxSectionChars},
		{"max_hits", p.MaxHits, 0, MaxMaxHits, &l.MaxHits},
		{"context_chars", p.ContextChars, 0, MaxContextChars, &l.ContextChars},
		{"window_days", p.WindowDays, 0, MaxWindowDays, &l.WindowDays},
	}
	for _, c := range checks {
		if c.v == nil {
			continue
		}
		if *c.v < c.min || *c.v > c.max {
			return Limits{}, errcode.Validationf("%s must be between %d and %d, got %d", c.name, c.min, c.max, *c.v)
		}
		*c.dst = *c.v
	}
	return l, nil
}

// Budget returns the per-document budget a window pack is built with.
func (l Limits) Budget() window.Budget {
	return window.Budget{
		SummaryOnly:     l.SummaryOnly,
		MaxSectionChars: l.MaxSectionChars,
		ContextChars:    l.ContextChars,
		MaxHits:         l.MaxHits,
	}
}

func (l Limits) excerptCap() int {
	if l.MaxExcerptChars <= 0 {
		return evidence.DefaultMaxExcerpt
	}
	return l.MaxExcerptChars
}

func snippet(s evidence.Snippet, l Limits) evidence.Snippet {
	s.Excerpt, _ = evidence.Truncate(s.Excerpt, l.excerptCap())
	return s
}

// snippets caps a sample list at n and bounds every excerpt.
func snippets(in []evidence.Snippet, n int, l Limits) []evidence.Snippet {
	if n < 0 {
		n = 0
	}
	if len(in) < n {
		n = len(in)
	}
	out := make([]evidence.Snippet, n)
	for i := range out {
		out[i] = snippet(in[i], l)
	}
	return out
}

// Flags bounds flag evidence. A present flag keeps at least one snippet so
// its evidence_excerpt always has a source.
func Flags(in []extract.Flag, l Limits) []extract.Flag {
	if in == nil {
		return nil
	}
	out := make([]extract.Flag, len(in))
	for i, f := range in {
		n := l.MaxHits
		if f.Present && n < 1 {
			n = 1
		}
		f.Evidence = snippets(f.Evidence, n, l)
		f.EvidenceExcerpt, _ = evidence.Truncate(f.EvidenceExcerpt, l.excerptCap())
		out[i] = f
	}
	return out
}

// Summary drops section text in summary-only mode and otherwise caps each
// excerpt at MaxSectionChars.
func Summary(in extract.SectionSummary, l Limits) extract.SectionSummary {
	out := in
	out.SectionsPresent = copyBools(in.SectionsPresent)
	out.Locators = copyStrings(in.Locators)
	if l.SummaryOnly {
		out.Excerpts = nil
		out.Truncated = nil
		out.HeadingsIndex = nil
		return out
	}
	out.Truncated = copyBools(in.Truncated)
	if in.Excerpts != nil {
		out.Excerpts = make(map[string]string, len(in.Excerpts))
		for name, text := range in.Excerpts {
			cut := false
			out.Excerpts[name], cut = evidence.Truncate(text, l.MaxSectionChars)
			if cut {
				if out.Truncated == nil {
					out.Truncated = make(map[string]bool)
				}
				out.Truncated[name] = true
			}
		}
	}
	if in.HeadingsIndex != nil {
		out.HeadingsIndex = append([]extract.HeadingRef(nil), in.HeadingsIndex...)
	}
	return out
}

// Table bounds the table's evidence. Rows and row counts are kept whole.
func Table(in extract.TableResult, l Limits) extract.TableResult {
	out := in
	out.Evidence = snippet(in.Evidence, l)
	out.EvidenceExcerpt, _ = evidence.Truncate(in.EvidenceExcerpt, l.excerptCap())
	return out
}

// Keywords caps samples per term at MaxHits. Counts are kept.
func Keywords(in map[string]extract.KeywordHit, l Limits) map[string]extract.KeywordHit {
	if in == nil {
		return nil
	}
	out := make(map[string]extract.KeywordHit, len(in))
	for term, hit := range in {
		hit.Samples = snippets(hit.Samples, l.MaxHits, l)
		out[term] = hit
	}
	return out
}

// Pack applies every rule above to a window pack.
func Pack(in window.Pack, l Limits) window.Pack {
	out := in
	out.Flags = Flags(in.Flags, l)
	if in.SectionSummary != nil {
		s := Summary(*in.SectionSummary, l)
		out.SectionSummary = &s
	}
	if in.Owners != nil {
		t := Table(*in.Owners, l)
		out.Owners = &t
	}
	out.ExhibitHits = Keywords(in.ExhibitHits, l)
	if in.DocumentsConsulted != nil {
		out.DocumentsConsulted = make([]string, len(in.DocumentsConsulted))
		copy(out.DocumentsConsulted, in.DocumentsConsulted)
	}
	out.Failures = append([]window.Failure(nil), in.Failures...)
	return out
}

func copyBools(m map[string]bool) map[string]bool {
	if m == nil {
		return nil
	}
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyStrings(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

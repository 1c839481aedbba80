// Package locate finds the regions of a normalized document that a heading
// target or a cue refers to.
//
// Heading matches are preferred: a heading whose label contains one of the
// target's variants opens a region that runs to the next heading at the same
// or an outer level. When headings do not help, pattern matches in the raw
// text anchor fixed-size windows instead. Locate never fails; an empty result
// means the target is absent.
package locate

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"

	"github.com/hurttlocker/filingintel/internal/document"
)

// Source records how a region was found.
type Source string

const (
	SourceHeading  Source = "heading"
	SourceFallback Source = "fallback"
)

// Region is a span of a document's text.
type Region struct {
	Start  int    `json:"start"`
	End    int    `json:"end"`
	Label  string `json:"label,omitempty"`
	Source Source `json:"source"`
	// Anchor is the offset of the heading or pattern match that produced the
	// region.
	Anchor int `json:"anchor"`
}

// Len returns the region length in bytes.
func (r Region) Len() int { return r.End - r.Start }

// Target describes what to look for.
type Target struct {
	Name     string
	Headings []string
	Patterns []*regexp.Regexp
	// Cue targets fall back to pattern scanning whenever no heading matched.
	// Plain heading targets only do so when the document has no headings at
	// all, so a missing section in a well-structured filing stays missing.
	Cue bool
}

// Options tunes region construction.
type Options struct {
	// Window is the number of bytes taken on each side of a fallback match.
	Window int
	// MergeThreshold is the overlap, in bytes, above which two regions merge.
	MergeThreshold int
	// MaxFallbackMatches bounds the matches taken per pattern during fallback.
	MaxFallbackMatches int
}

// DefaultOptions returns the standard locator settings.
func DefaultOptions() Options {
	return Options{
		Window:             400,
		MergeThreshold:     32,
		MaxFallbackMatches: 256,
	}
}

// Locator finds target regions in documents. It is stateless and safe for
// concurrent use.
type Locator struct {
	opts Options
}

// New creates a Locator. Zero option fields take their defaults.
func New(opts Options) *Locator {
	def := DefaultOptions()
	if opts.Window <= 0 {
		opts.Window = def.Window
	}
	if opts.MergeThreshold <= 0 {
		opts.MergeThreshold = def.MergeThreshold
	}
	if opts.MaxFallbackMatches <= 0 {
		opts.MaxFallbackMatches = def.MaxFallbackMatches
	}
	return &Locator{opts: opts}
}

// Options returns the effective settings.
func (l *Locator) Options() Options { return l.opts }

// Locate returns the merged regions of doc that t refers to, ordered by start
// offset.
func (l *Locator) Locate(doc *document.Document, t Target) []Region {
	if doc == nil {
		return nil
	}
	regions := l.byHeading(doc, t.Headings)
	if len(regions) == 0 && len(t.Patterns) > 0 && (t.Cue || !doc.HasHeadings()) {
		regions = l.byPattern(doc, t.Patterns)
	}
	return Merge(regions, l.opts.MergeThreshold)
}

func (l *Locator) byHeading(doc *document.Document, variants []string) []Region {
	if len(variants) == 0 {
		return nil
	}
	keys := make([]string, 0, len(variants))
	for _, v := range variants {
		if k := HeadingKey(v); k != "" {
			keys = append(keys, " "+k+" ")
		}
	}

	var out []Region
	for _, i := range doc.Headings() {
		m := doc.Index[i]
		label := " " + HeadingKey(m.Label) + " "
		for _, k := range keys {
			if strings.Contains(label, k) {
				out = append(out, Region{
					Start:  m.Offset,
					End:    doc.SectionEnd(i),
					Label:  m.Label,
					Source: SourceHeading,
					Anchor: m.Offset,
				})
				break
			}
		}
	}
	return out
}

func (l *Locator) byPattern(doc *document.Document, patterns []*regexp.Regexp) []Region {
	var out []Region
	for _, re := range patterns {
		for _, loc := range re.FindAllStringIndex(doc.Text, l.opts.MaxFallbackMatches) {
			start, end := doc.Clamp(loc[0]-l.opts.Window, loc[1]+l.opts.Window)
			out = append(out, Region{
				Start:  start,
				End:    end,
				Label:  doc.Text[loc[0]:loc[1]],
				Source: SourceFallback,
				Anchor: loc[0],
			})
		}
	}
	return out
}

// Merge sorts regions by start offset and merges any pair that overlaps by
// more than threshold bytes or where one contains the other. The earlier
// region keeps its label, source and anchor.
func Merge(regions []Region, threshold int) []Region {
	if len(regions) < 2 {
		return regions
	}
	sorted := append([]Region(nil), regions...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End > sorted[j].End
	})

	out := []Region{sorted[0]}
	for _, r := range sorted[1:] {
		cur := &out[len(out)-1]
		if r.End <= cur.End {
			continue
		}
		if cur.End-r.Start > threshold {
			cur.End = r.End
			continue
		}
		out = append(out, r)
	}
	return out
}

// HeadingKey folds a heading label or variant for comparison: case folded,
// every run of non-alphanumerics collapsed to one space.
func HeadingKey(s string) string {
	s = cases.Fold().String(s)
	var sb strings.Builder
	space := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteRune(r)
			space = false
			continue
		}
		space = true
	}
	return sb.String()
}

package extract

import (
	"github.com/hurttlocker/filingintel/internal/cue"
	"github.com/hurttlocker/filingintel/internal/document"
	"github.com/hurttlocker/filingintel/internal/errcode"
	"github.com/hurttlocker/filingintel/internal/evidence"
	"github.com/hurttlocker/filingintel/internal/locate"
)

// Flag is a boolean signal with its evidence. EvidenceExcerpt and SourceURL
// repeat the first snippet so presence and provenance travel together.
type Flag struct {
	Name            string             `json:"name"`
	Present         bool               `json:"present"`
	EvidenceExcerpt string             `json:"evidence_excerpt,omitempty"`
	SourceURL       string             `json:"source_url,omitempty"`
	Evidence        []evidence.Snippet `json:"evidence"`
}

// Flags evaluates the named cues against doc, in the requested order. An
// empty names list evaluates every cue in the catalog. Unknown names are a
// validation error.
func (e *Extractor) Flags(doc *document.Document, names []string) ([]Flag, error) {
	if len(names) == 0 {
		names = e.catalog.CueNames("")
	}
	cues := make([]*cue.Cue, len(names))
	for i, name := range names {
		c, ok := e.catalog.Cue(name)
		if !ok {
			return nil, errcode.Validationf("unknown flag %q", name)
		}
		cues[i] = c
	}

	out := make([]Flag, len(cues))
	for i, c := range cues {
		out[i] = e.evaluate(doc, c)
	}
	return out, nil
}

func (e *Extractor) evaluate(doc *document.Document, c *cue.Cue) Flag {
	f := Flag{Name: c.Name, Evidence: []evidence.Snippet{}}
	if doc == nil {
		return f
	}
	for _, r := range e.locator.Locate(doc, c.Target()) {
		if len(f.Evidence) >= e.evidenceCap {
			break
		}
		if excluded(doc, r, c) {
			continue
		}
		start, end, ok := primaryMatch(doc, r, c)
		if !ok {
			continue
		}
		f.Evidence = append(f.Evidence, e.evidence.Region(doc, r, start, end))
	}
	if len(f.Evidence) > 0 {
		f.Present = true
		f.EvidenceExcerpt = f.Evidence[0].Excerpt
		f.SourceURL = f.Evidence[0].SourceURL
	}
	return f
}

// excluded reports whether any exclusion pattern occurs in the region.
func excluded(doc *document.Document, r locate.Region, c *cue.Cue) bool {
	text := doc.Slice(r.Start, r.End)
	for _, re := range c.ExcludePatterns() {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// primaryMatch returns the first primary match in the region that has every
// required pattern within the cue's distance. Patterns are tried in catalog
// order so stronger wording wins over generic wording. A heading-only cue
// anchors on the heading itself.
func primaryMatch(doc *document.Document, r locate.Region, c *cue.Cue) (int, int, bool) {
	patterns := c.PrimaryPatterns()
	if len(patterns) == 0 {
		if r.Source != locate.SourceHeading {
			return 0, 0, false
		}
		end := r.Anchor + len(r.Label)
		return r.Anchor, end, requiredNear(doc, c, r.Anchor, end)
	}

	start, _ := doc.Clamp(r.Start, r.End)
	text := doc.Slice(r.Start, r.End)
	for _, re := range patterns {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			s, e := start+loc[0], start+loc[1]
			if requiredNear(doc, c, s, e) {
				return s, e, true
			}
		}
	}
	return 0, 0, false
}

// requiredNear reports whether every required pattern matches within
// MaxDistance bytes of [start, end).
func requiredNear(doc *document.Document, c *cue.Cue, start, end int) bool {
	required := c.RequiredPatterns()
	if len(required) == 0 {
		return true
	}
	window := doc.Slice(start-c.MaxDistance, end+c.MaxDistance)
	for _, re := range required {
		if !re.MatchString(window) {
			return false
		}
	}
	return true
}

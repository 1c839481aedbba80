package extract

import (
	"strings"

	"github.com/hurttlocker/filingintel/internal/cue"
	"github.com/hurttlocker/filingintel/internal/document"
	"github.com/hurttlocker/filingintel/internal/errcode"
	"github.com/hurttlocker/filingintel/internal/evidence"
)

// SectionSummary reports which governance sections a document contains.
// Excerpts and the headings index are only filled outside summary-only mode;
// presence, locators and counts are always reported.
type SectionSummary struct {
	SectionsPresent map[string]bool   `json:"sections_present"`
	Locators        map[string]string `json:"source_locators"`
	Excerpts        map[string]string `json:"excerpts,omitempty"`
	Truncated       map[string]bool   `json:"truncated,omitempty"`
	SourceURL       string            `json:"source_url,omitempty"`
	FullTextLen     int               `json:"full_text_len"`
	HeadingsIndex   []HeadingRef      `json:"headings_index,omitempty"`
}

// HeadingRef is one entry of the headings index.
type HeadingRef struct {
	Pos   int    `json:"pos"`
	Title string `json:"title"`
	Level int    `json:"level"`
}

// Summarize locates each named section. An empty names list uses the
// standard proxy sections. With summaryOnly set no text is returned;
// otherwise each present section's regions are joined and cut to
// maxSectionChars at a whitespace boundary.
func (e *Extractor) Summarize(doc *document.Document, names []string, summaryOnly bool, maxSectionChars int) (SectionSummary, error) {
	if len(names) == 0 {
		names = cue.SummarySections
	}
	sections := make([]*cue.Section, len(names))
	for i, name := range names {
		s, ok := e.catalog.Section(name)
		if !ok {
			return SectionSummary{}, errcode.Validationf("unknown section %q", name)
		}
		sections[i] = s
	}

	out := SectionSummary{
		SectionsPresent: make(map[string]bool, len(sections)),
		Locators:        make(map[string]string),
	}
	if doc == nil {
		for _, s := range sections {
			out.SectionsPresent[s.Name] = false
		}
		return out, nil
	}
	out.SourceURL = doc.SourceURL
	out.FullTextLen = doc.Len()
	if !summaryOnly {
		out.Excerpts = make(map[string]string)
		out.Truncated = make(map[string]bool)
		for _, i := range doc.Headings() {
			m := doc.Index[i]
			out.HeadingsIndex = append(out.HeadingsIndex, HeadingRef{Pos: m.Offset, Title: m.Label, Level: m.Level})
		}
	}

	for _, s := range sections {
		regions := e.locator.Locate(doc, s.Target())
		out.SectionsPresent[s.Name] = len(regions) > 0
		if len(regions) == 0 {
			continue
		}
		first := regions[0]
		section := first.Label
		out.Locators[s.Name] = evidence.Locator{DocumentID: doc.ID, Section: section, Start: first.Start, End: first.End}.String()
		if summaryOnly {
			continue
		}

		var sb strings.Builder
		for i, r := range regions {
			if i > 0 {
				sb.WriteString("\n\n")
			}
			sb.WriteString(strings.TrimSpace(doc.Slice(r.Start, r.End)))
			if sb.Len() > maxSectionChars {
				break
			}
		}
		excerpt, cut := evidence.Truncate(sb.String(), maxSectionChars)
		out.Excerpts[s.Name] = excerpt
		if cut {
			out.Truncated[s.Name] = true
		}
	}
	return out, nil
}

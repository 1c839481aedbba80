// Package cue holds the catalog of named signals the extractors look for.
//
// A Cue is data, not code: heading variants that locate the disclosure,
// primary patterns that anchor it, required context that must appear nearby
// and exclusion patterns that veto a region. Section definitions and table
// header cues live in the same catalog. The catalog is built once at startup
// (built-in definitions plus an optional YAML overlay) and never mutated.
package cue

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hurttlocker/filingintel/internal/locate"
)

// Kind groups cues by the document type they apply to.
type Kind string

const (
	// KindEvent cues are evaluated on 8-K and periodic reports.
	KindEvent Kind = "event"
	// KindGovernance cues describe charter and bylaw provisions, typically
	// found in proxy statements.
	KindGovernance Kind = "governance"
)

// DefaultMaxDistance bounds how far required context may sit from a primary
// match when a cue does not set its own distance.
const DefaultMaxDistance = 500

// Cue is a named match rule.
type Cue struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Kind        Kind     `yaml:"kind" json:"kind"`
	Headings    []string `yaml:"headings" json:"headings,omitempty"`
	Patterns    []string `yaml:"patterns" json:"patterns"`
	Required    []string `yaml:"required" json:"required,omitempty"`
	Exclude     []string `yaml:"exclude" json:"exclude,omitempty"`
	MaxDistance int      `yaml:"max_distance" json:"max_distance"`

	patterns []*regexp.Regexp
	required []*regexp.Regexp
	exclude  []*regexp.Regexp
}

// Compile validates the cue and compiles its patterns case-insensitively.
func (c *Cue) Compile() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("cue without name")
	}
	if len(c.Headings) == 0 && len(c.Patterns) == 0 {
		return fmt.Errorf("cue %s: needs headings or patterns", c.Name)
	}
	if c.Kind == "" {
		c.Kind = KindEvent
	}
	if c.Kind != KindEvent && c.Kind != KindGovernance {
		return fmt.Errorf("cue %s: unknown kind %q", c.Name, c.Kind)
	}
	if c.MaxDistance <= 0 {
		c.MaxDistance = DefaultMaxDistance
	}
	var err error
	if c.patterns, err = compileAll(c.Patterns); err != nil {
		return fmt.Errorf("cue %s patterns: %w", c.Name, err)
	}
	if c.required, err = compileAll(c.Required); err != nil {
		return fmt.Errorf("cue %s required: %w", c.Name, err)
	}
	if c.exclude, err = compileAll(c.Exclude); err != nil {
		return fmt.Errorf("cue %s exclude: %w", c.Name, err)
	}
	return nil
}

// PrimaryPatterns returns the compiled primary patterns.
func (c *Cue) PrimaryPatterns() []*regexp.Regexp { return c.patterns }

// RequiredPatterns returns the compiled required-context patterns.
func (c *Cue) RequiredPatterns() []*regexp.Regexp { return c.required }

// ExcludePatterns returns the compiled exclusion patterns.
func (c *Cue) ExcludePatterns() []*regexp.Regexp { return c.exclude }

// Target returns the locator target for the cue.
func (c *Cue) Target() locate.Target {
	return locate.Target{Name: c.Name, Headings: c.Headings, Patterns: c.patterns, Cue: true}
}

// Section is a named governance section located by heading variants.
type Section struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Headings    []string `yaml:"headings" json:"headings"`

	patterns []*regexp.Regexp
}

// Compile validates the section and derives literal fallback patterns from
// its heading variants.
func (s *Section) Compile() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("section without name")
	}
	if len(s.Headings) == 0 {
		return fmt.Errorf("section %s: needs headings", s.Name)
	}
	s.patterns = nil
	for _, h := range s.Headings {
		s.patterns = append(s.patterns, regexp.MustCompile(`(?i)`+literalPattern(h)))
	}
	return nil
}

// Target returns the locator target for the section.
func (s *Section) Target() locate.Target {
	return locate.Target{Name: s.Name, Headings: s.Headings, Patterns: s.patterns}
}

// TableKind names a table the TableExtractor understands.
type TableKind string

const (
	BoardRoster         TableKind = "board_roster"
	CommitteeMembership TableKind = "committee_membership"
	BeneficialOwners    TableKind = "beneficial_owners"
)

// TableKinds lists every supported table kind.
var TableKinds = []TableKind{BoardRoster, CommitteeMembership, BeneficialOwners}

// Column maps one output field to the header texts that may label it.
type Column struct {
	Field    string   `json:"field"`
	Synonyms []string `json:"synonyms"`
}

// TableCue describes how to find and read one kind of table.
type TableCue struct {
	Kind TableKind `json:"kind"`
	// Section names the catalog section searched first.
	Section string `json:"section"`
	// Require lists header term groups; a header qualifies when every group
	// has at least one term present.
	Require [][]string `json:"require"`
	// Columns are tried in order for each header cell; the first field whose
	// synonym the cell contains claims it.
	Columns []Column `json:"columns"`
}

// MatchesHeader reports whether a header row satisfies every required group.
// Terms match whole words.
func (t *TableCue) MatchesHeader(header string) bool {
	key, lower := locate.HeadingKey(header), strings.ToLower(header)
	for _, group := range t.Require {
		found := false
		for _, term := range group {
			if containsTerm(key, lower, term) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// FieldFor returns the field a header cell maps to, or "".
func (t *TableCue) FieldFor(cell string) string {
	key, lower := locate.HeadingKey(cell), strings.ToLower(cell)
	if lower == "" {
		return ""
	}
	for _, col := range t.Columns {
		for _, syn := range col.Synonyms {
			if containsTerm(key, lower, syn) {
				return col.Field
			}
		}
	}
	return ""
}

// containsTerm matches word terms on word boundaries of the folded key and
// symbol terms such as "%" on the raw lower-cased text.
func containsTerm(key, lower, term string) bool {
	if k := locate.HeadingKey(term); k != "" {
		return strings.Contains(" "+key+" ", " "+k+" ")
	}
	return strings.Contains(lower, term)
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(`(?i)` + p)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// literalPattern quotes s and lets any run of whitespace or punctuation
// between its words match flexibly.
func literalPattern(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	})
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return `\b` + strings.Join(words, `[\s\W]+`) + `\b`
}

package cue

import (
	"fmt"
	"sort"
)

// Catalog is the immutable registry of cues, sections, table cues and
// exhibit search terms. Share one Catalog by pointer; never mutate it after
// construction.
type Catalog struct {
	cues          []*Cue
	byName        map[string]*Cue
	sections      []*Section
	sectionByName map[string]*Section
	tables        map[TableKind]*TableCue
	exhibit       []string
}

// Definition is the serializable content of a catalog. It is what the
// built-in table and YAML overlays are written in.
type Definition struct {
	Cues         []Cue      `yaml:"cues" json:"cues"`
	Sections     []Section  `yaml:"sections" json:"sections"`
	ExhibitTerms []string   `yaml:"exhibit_terms" json:"exhibit_terms"`
	Tables       []TableCue `yaml:"-" json:"tables"`
}

// New compiles a catalog from a definition.
func New(def Definition) (*Catalog, error) {
	c := &Catalog{
		byName:        make(map[string]*Cue, len(def.Cues)),
		sectionByName: make(map[string]*Section, len(def.Sections)),
		tables:        make(map[TableKind]*TableCue, len(def.Tables)),
		exhibit:       append([]string(nil), def.ExhibitTerms...),
	}
	for i := range def.Cues {
		cue := def.Cues[i]
		if err := cue.Compile(); err != nil {
			return nil, err
		}
		if _, dup := c.byName[cue.Name]; dup {
			return nil, fmt.Errorf("duplicate cue %s", cue.Name)
		}
		c.byName[cue.Name] = &cue
		c.cues = append(c.cues, &cue)
	}
	for i := range def.Sections {
		sec := def.Sections[i]
		if err := sec.Compile(); err != nil {
			return nil, err
		}
		if _, dup := c.sectionByName[sec.Name]; dup {
			return nil, fmt.Errorf("duplicate section %s", sec.Name)
		}
		c.sectionByName[sec.Name] = &sec
		c.sections = append(c.sections, &sec)
	}
	for i := range def.Tables {
		t := def.Tables[i]
		if t.Section != "" {
			if _, ok := c.sectionByName[t.Section]; !ok {
				return nil, fmt.Errorf("table %s: unknown section %s", t.Kind, t.Section)
			}
		}
		c.tables[t.Kind] = &t
	}
	return c, nil
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := New(Builtin())
	if err != nil {
		panic(fmt.Sprintf("built-in cue catalog: %v", err))
	}
	return c
}

// Cue returns the named cue.
func (c *Catalog) Cue(name string) (*Cue, bool) {
	cue, ok := c.byName[name]
	return cue, ok
}

// Cues returns every cue in definition order.
func (c *Catalog) Cues() []*Cue { return c.cues }

// CueNames returns the names of cues of the given kind, or of every cue when
// kind is empty.
func (c *Catalog) CueNames(kind Kind) []string {
	var out []string
	for _, cue := range c.cues {
		if kind == "" || cue.Kind == kind {
			out = append(out, cue.Name)
		}
	}
	return out
}

// Section returns the named section definition.
func (c *Catalog) Section(name string) (*Section, bool) {
	s, ok := c.sectionByName[name]
	return s, ok
}

// Sections returns every section in definition order.
func (c *Catalog) Sections() []*Section { return c.sections }

// SectionNames returns section names in definition order.
func (c *Catalog) SectionNames() []string {
	out := make([]string, len(c.sections))
	for i, s := range c.sections {
		out[i] = s.Name
	}
	return out
}

// Table returns the cue for a table kind.
func (c *Catalog) Table(kind TableKind) (*TableCue, bool) {
	t, ok := c.tables[kind]
	return t, ok
}

// ExhibitTerms returns the keyword terms searched in exhibits.
func (c *Catalog) ExhibitTerms() []string { return c.exhibit }

// Definition returns a copy of the catalog content, used by the catalog
// tool and resource.
func (c *Catalog) Definition() Definition {
	def := Definition{ExhibitTerms: append([]string(nil), c.exhibit...)}
	for _, cue := range c.cues {
		cp := *cue
		cp.patterns, cp.required, cp.exclude = nil, nil, nil
		def.Cues = append(def.Cues, cp)
	}
	for _, s := range c.sections {
		cp := *s
		cp.patterns = nil
		def.Sections = append(def.Sections, cp)
	}
	kinds := make([]string, 0, len(c.tables))
	for k := range c.tables {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		def.Tables = append(def.Tables, *c.tables[TableKind(k)])
	}
	return def
}

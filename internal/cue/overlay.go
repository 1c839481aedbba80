package cue

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load returns the built-in catalog with the YAML overlay at path applied.
// An empty path returns the built-in catalog. Overlay cues and sections
// replace built-ins of the same name and are otherwise appended; a non-empty
// exhibit_terms list replaces the built-in terms.
//
// Example overlay:
//
//	cues:
//	  - name: auditor_going_concern
//	    kind: event
//	    patterns: ['substantial\s+doubt']
//	    required: ['going\s+concern']
//	exhibit_terms: [restatement, subpoena]
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog overlay: %w", err)
	}
	return Overlay(data)
}

// Overlay applies YAML overlay content to the built-in definition.
func Overlay(data []byte) (*Catalog, error) {
	var over Definition
	if err := yaml.Unmarshal(data, &over); err != nil {
		return nil, fmt.Errorf("parsing catalog overlay: %w", err)
	}
	def := Builtin()

	for _, c := range over.Cues {
		replaced := false
		for i := range def.Cues {
			if def.Cues[i].Name == c.Name {
				def.Cues[i] = c
				replaced = true
				break
			}
		}
		if !replaced {
			def.Cues = append(def.Cues, c)
		}
	}
	for _, s := range over.Sections {
		replaced := false
		for i := range def.Sections {
			if def.Sections[i].Name == s.Name {
				def.Sections[i] = s
				replaced = true
				break
			}
		}
		if !replaced {
			def.Sections = append(def.Sections, s)
		}
	}
	if len(over.ExhibitTerms) > 0 {
		def.ExhibitTerms = over.ExhibitTerms
	}

	cat, err := New(def)
	if err != nil {
		return nil, fmt.Errorf("catalog overlay: %w", err)
	}
	return cat, nil
}

// Package extract derives evidence-backed facts from normalized filings.
//
// Four producers share one Extractor:
// - Flags: boolean signals from the cue catalog (restatement, going concern, ...)
// - Summarize: which governance sections a proxy contains, with bounded excerpts
// - Table: board roster, committee membership and beneficial ownership rows
// - Search: bounded multi-term keyword search with sanitized patterns
//
// Extraction never fails on malformed but non-empty input: absent content is
// reported as absence. Errors are reserved for bad caller input and for
// tables whose region cannot be found at all.
package extract

import (
	"github.com/hurttlocker/filingintel/internal/cue"
	"github.com/hurttlocker/filingintel/internal/evidence"
	"github.com/hurttlocker/filingintel/internal/locate"
)

// DefaultEvidenceCap bounds the evidence snippets attached to one flag.
const DefaultEvidenceCap = 2

// Extractor applies a cue catalog to documents. It holds no per-document
// state and is safe for concurrent use.
type Extractor struct {
	catalog     *cue.Catalog
	locator     *locate.Locator
	evidence    *evidence.Builder
	evidenceCap int
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithEvidenceCap sets how many qualifying regions contribute evidence to a
// flag. Values below 1 are ignored.
func WithEvidenceCap(n int) Option {
	return func(e *Extractor) {
		if n >= 1 {
			e.evidenceCap = n
		}
	}
}

// WithMaxExcerpt caps the excerpt length of every evidence snippet.
func WithMaxExcerpt(n int) Option {
	return func(e *Extractor) {
		e.evidence = evidence.NewBuilder(n)
	}
}

// WithLocatorOptions replaces the region locator settings.
func WithLocatorOptions(opts locate.Options) Option {
	return func(e *Extractor) {
		e.locator = locate.New(opts)
	}
}

// New creates an Extractor over catalog. A nil catalog uses the built-in one.
func New(catalog *cue.Catalog, opts ...Option) *Extractor {
	if catalog == nil {
		catalog = cue.Default()
	}
	e := &Extractor{
		catalog:     catalog,
		locator:     locate.New(locate.DefaultOptions()),
		evidence:    evidence.NewBuilder(evidence.DefaultMaxExcerpt),
		evidenceCap: DefaultEvidenceCap,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog returns the catalog the extractor applies.
func (e *Extractor) Catalog() *cue.Catalog { return e.catalog }

// Package window assembles an event window pack: every filing of one
// issuer within a span of days around an event, each dispatched to the
// extractor that fits its kind and merged into one deterministic result.
//
// Documents are processed by a bounded worker pool with a per-document
// timeout. A failing document is recorded and marks the pack partial; it
// never aborts its siblings.
package window

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hurttlocker/filingintel/internal/cue"
	"github.com/hurttlocker/filingintel/internal/document"
	"github.com/hurttlocker/filingintel/internal/errcode"
	"github.com/hurttlocker/filingintel/internal/evidence"
	"github.com/hurttlocker/filingintel/internal/extract"
	"github.com/hurttlocker/filingintel/internal/observe"
	"github.com/hurttlocker/filingintel/internal/provider"
)

const (
	DefaultWorkers         = 4
	DefaultDocumentTimeout = 20 * time.Second
	DefaultMaxDocuments    = 25
)

const dateLayout = "2006-01-02"

// Span is the inclusive date range a pack covers.
type Span struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// Failure records a document that could not be processed.
type Failure struct {
	DocumentID string       `json:"document_id"`
	Form       string       `json:"form,omitempty"`
	Code       errcode.Code `json:"code"`
	Message    string       `json:"message"`
}

// Pack is the merged result of an event window.
type Pack struct {
	Identifier         string                        `json:"identifier"`
	EventDate          string                        `json:"event_date"`
	Window             Span                          `json:"window"`
	Flags              []extract.Flag                `json:"flags"`
	Owners             *extract.TableResult          `json:"owners,omitempty"`
	SectionSummary     *extract.SectionSummary       `json:"section_summary,omitempty"`
	ExhibitHits        map[string]extract.KeywordHit `json:"exhibit_hits,omitempty"`
	DocumentsConsulted []string                      `json:"documents_consulted"`
	Partial            bool                          `json:"partial"`
	Failures           []Failure                     `json:"failures,omitempty"`
}

// Budget bounds the text produced for each document.
type Budget struct {
	SummaryOnly     bool
	MaxSectionChars int
	ContextChars    int
	MaxHits         int
}

// Request describes one pack.
type Request struct {
	Identifier string
	EventDate  time.Time
	WindowDays int
	Budget     Budget
}

// FetchFunc loads one listed document.
type FetchFunc func(ctx context.Context, loc provider.Locator) (*document.Document, error)

// Aggregator builds packs. It is safe for concurrent use.
type Aggregator struct {
	provider  provider.Provider
	extractor *extract.Extractor
	fetch     FetchFunc
	workers   int
	timeout   time.Duration
	maxDocs   int
	logger    *zap.Logger
	tracer    trace.Tracer
	failures  metric.Int64Counter
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithWorkers bounds concurrent document processing.
func WithWorkers(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithDocumentTimeout bounds the fetch and extraction of one document.
func WithDocumentTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithMaxDocuments sets how many documents a window may hold.
func WithMaxDocuments(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.maxDocs = n
		}
	}
}

// WithFetcher replaces direct provider fetches, e.g. with a cached fetch.
func WithFetcher(f FetchFunc) Option {
	return func(a *Aggregator) {
		if f != nil {
			a.fetch = f
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithMeter records window failures on m.
func WithMeter(m metric.Meter) Option {
	return func(a *Aggregator) {
		if m != nil {
			a.failures, _ = m.Int64Counter("filingintel.window.failures")
		}
	}
}

// New creates an Aggregator over p.
func New(p provider.Provider, x *extract.Extractor, opts ...Option) *Aggregator {
	a := &Aggregator{
		provider:  p,
		extractor: x,
		fetch:     p.FetchDocument,
		workers:   DefaultWorkers,
		timeout:   DefaultDocumentTimeout,
		maxDocs:   DefaultMaxDocuments,
		logger:    zap.NewNop(),
		tracer:    observe.Tracer("window"),
	}
	WithMeter(observe.Meter("window"))(a)
	for _, o := range opts {
		o(a)
	}
	return a
}

// result is what one document contributes.
type result struct {
	loc     provider.Locator
	flags   []extract.Flag
	summary *extract.SectionSummary
	owners  *extract.TableResult
	hits    map[string]extract.KeywordHit
	err     error
}

// Build lists the issuer's documents within req.WindowDays of the event
// date, processes them and merges the results. More documents than the
// aggregator allows is a VALIDATION_ERROR, none at all is NOT_FOUND.
func (a *Aggregator) Build(ctx context.Context, req Request) (*Pack, error) {
	span := provider.Around(req.EventDate, req.WindowDays)
	locs, err := a.provider.ListDocuments(ctx, req.Identifier, span, nil)
	if err != nil {
		return nil, err
	}
	locs = dispatchable(locs)
	provider.Sort(locs)
	if len(locs) == 0 {
		return nil, errcode.NotFoundf("no filings for %s between %s and %s",
			req.Identifier, span.From.Format(dateLayout), span.To.Format(dateLayout))
	}
	if len(locs) > a.maxDocs {
		return nil, errcode.Validationf("window holds %d documents, more than %d; narrow window_days", len(locs), a.maxDocs)
	}

	results := make([]result, len(locs))
	var g errgroup.Group
	g.SetLimit(a.workers)
	for i, loc := range locs {
		g.Go(func() error {
			results[i] = a.process(ctx, loc, req.Budget)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, errcode.From(err)
	}

	pack := a.merge(results, req.Budget)
	pack.Identifier = req.Identifier
	pack.EventDate = req.EventDate.UTC().Format(dateLayout)
	pack.Window = Span{StartDate: span.From.Format(dateLayout), EndDate: span.To.Format(dateLayout)}
	return pack, nil
}

func dispatchable(locs []provider.Locator) []provider.Locator {
	out := make([]provider.Locator, 0, len(locs))
	for _, l := range locs {
		if l.Kind() != provider.KindOther {
			out = append(out, l)
		}
	}
	return out
}

func (a *Aggregator) process(ctx context.Context, loc provider.Locator, b Budget) (r result) {
	r.loc = loc
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	ctx, span := a.tracer.Start(ctx, "window.document", trace.WithAttributes(
		attribute.String("document_id", loc.DocumentID),
		attribute.String("form", loc.Form),
	))
	defer func() {
		if r.err != nil {
			span.RecordError(r.err)
			span.SetStatus(codes.Error, string(errcode.CodeOf(r.err)))
			a.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("code", string(errcode.CodeOf(r.err)))))
			a.logger.Warn("window: document failed",
				zap.String("document_id", loc.DocumentID), zap.String("form", loc.Form), zap.Error(r.err))
		}
		span.End()
	}()

	done := make(chan result, 1)
	go func() { done <- a.extract(ctx, loc, b) }()
	select {
	case out := <-done:
		out.loc = loc
		return out
	case <-ctx.Done():
		r.err = errcode.From(ctx.Err())
		return r
	}
}

// extract fetches and dispatches one document by kind.
func (a *Aggregator) extract(ctx context.Context, loc provider.Locator, b Budget) (r result) {
	doc, err := a.fetch(ctx, loc)
	if err != nil {
		r.err = err
		return r
	}
	x := a.extractor
	switch loc.Kind() {
	case provider.KindEvent, provider.KindPeriodic:
		r.flags, r.err = x.Flags(doc, x.Catalog().CueNames(cue.KindEvent))
	case provider.KindGovernance:
		s, err := x.Summarize(doc, nil, b.SummaryOnly, b.MaxSectionChars)
		if err != nil {
			r.err = err
			return r
		}
		r.summary = &s
		t, err := x.Table(doc, cue.BeneficialOwners)
		switch {
		case err == nil:
			r.owners = &t
		case errcode.Is(err, errcode.Parse):
			// no ownership table: absence, not failure
		default:
			r.err = err
		}
	case provider.KindExhibit:
		r.hits, r.err = x.Search(doc, x.Catalog().ExhibitTerms(), b.ContextChars, b.MaxHits)
	default:
		r.err = fmt.Errorf("window: no extractor for form %q", loc.Form)
	}
	return r
}

// merge folds per-document results in listing order.
func (a *Aggregator) merge(results []result, b Budget) *Pack {
	pack := &Pack{Flags: []extract.Flag{}, DocumentsConsulted: []string{}}
	flags := make(map[string]*extract.Flag)
	var order []string

	for _, r := range results {
		if r.err != nil {
			ce := errcode.From(r.err)
			pack.Partial = true
			pack.Failures = append(pack.Failures, Failure{
				DocumentID: r.loc.DocumentID,
				Form:       r.loc.Form,
				Code:       ce.Code,
				Message:    ce.Message,
			})
			continue
		}
		pack.DocumentsConsulted = append(pack.DocumentsConsulted, r.loc.DocumentID)

		for _, f := range r.flags {
			cur, seen := flags[f.Name]
			if !seen {
				f := f
				flags[f.Name] = &f
				order = append(order, f.Name)
				continue
			}
			if !cur.Present && f.Present {
				*cur = f
			}
		}
		if r.summary != nil {
			pack.SectionSummary = r.summary
			pack.Owners = r.owners
		}
		for term, hit := range r.hits {
			if pack.ExhibitHits == nil {
				pack.ExhibitHits = make(map[string]extract.KeywordHit)
			}
			merged := pack.ExhibitHits[term]
			merged.Count += hit.Count
			merged.Samples = append(merged.Samples, hit.Samples...)
			pack.ExhibitHits[term] = merged
		}
	}

	for _, name := range order {
		pack.Flags = append(pack.Flags, *flags[name])
	}
	for term, hit := range pack.ExhibitHits {
		hit.Samples = capSamples(hit.Samples, b.MaxHits)
		pack.ExhibitHits[term] = hit
	}
	return pack
}

// capSamples keeps the first n samples. Samples arrive grouped by document
// in listing order and by offset within a document.
func capSamples(s []evidence.Snippet, n int) []evidence.Snippet {
	if s == nil {
		return []evidence.Snippet{}
	}
	if n >= 0 && len(s) > n {
		s = s[:n]
	}
	return s
}

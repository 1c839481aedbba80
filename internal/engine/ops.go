package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hurttlocker/filingintel/internal/cache"
	"github.com/hurttlocker/filingintel/internal/compact"
	"github.com/hurttlocker/filingintel/internal/cue"
	"github.com/hurttlocker/filingintel/internal/errcode"
	"github.com/hurttlocker/filingintel/internal/extract"
	"github.com/hurttlocker/filingintel/internal/provider"
	"github.com/hurttlocker/filingintel/internal/window"
)

// FlagsRequest asks for boolean flags. Empty Flags evaluates every cue; a
// request without document_id or form reads the latest 8-K.
type FlagsRequest struct {
	Target
	Flags []string `json:"flags,omitempty"`
	compact.Params
}

// FlagsData is the payload of Flags. The press release fields are set for
// 8-K filings only.
type FlagsData struct {
	Flags           []extract.Flag `json:"flags"`
	HasPressRelease *bool          `json:"has_press_release,omitempty"`
	PressReleases   []PressRelease `json:"press_releases,omitempty"`
}

// PressRelease is an EX-99 exhibit filed under the same accession as an 8-K.
type PressRelease struct {
	DocumentID string `json:"document_id"`
	Form       string `json:"form"`
	URL        string `json:"url"`
}

// SectionsRequest asks for a governance section summary. Without
// document_id or form the latest proxy statement is used.
type SectionsRequest struct {
	Target
	Sections []string `json:"sections,omitempty"`
	compact.Params
}

// TableRequest asks for one governance table of a proxy statement.
type TableRequest struct {
	Target
	Kind string `json:"kind"`
	compact.Params
}

// SearchRequest asks for keyword hits in one document. It needs either
// document_id or identifier and form.
type SearchRequest struct {
	Target
	Terms []string `json:"terms"`
	compact.Params
}

// SearchData is the payload of Search.
type SearchData struct {
	Hits map[string]extract.KeywordHit `json:"hits"`
}

// WindowRequest asks for an event window pack. EventDate is YYYY-MM-DD.
type WindowRequest struct {
	Identifier string `json:"identifier"`
	EventDate  string `json:"event_date"`
	compact.Params
}

// Flags evaluates flag cues against one filing.
func (e *Engine) Flags(ctx context.Context, req FlagsRequest) Envelope {
	return e.run(ctx, "flags", func(ctx context.Context, log *zap.Logger) (any, *FilingReference, error) {
		limits, err := compact.Validate(req.Params)
		if err != nil {
			return nil, nil, err
		}
		for _, name := range req.Flags {
			if _, ok := e.extractor.Catalog().Cue(name); !ok {
				return nil, nil, errcode.Validationf("unknown flag %q", name)
			}
		}
		loc, err := e.resolve(ctx, req.Target, []string{provider.FormEightK}, EventLookbackDays)
		if err != nil {
			return nil, nil, err
		}
		key := cache.Key{DocumentID: loc.DocumentID, Signature: signature("flags", req.Flags, limits)}
		data, err := cache.Do(ctx, e.cache, key, func(ctx context.Context) (*FlagsData, error) {
			doc, err := e.document(ctx, loc)
			if err != nil {
				return nil, err
			}
			flags, err := e.extractor.Flags(doc, req.Flags)
			if err != nil {
				return nil, err
			}
			data := &FlagsData{Flags: compact.Flags(flags, limits)}
			if loc.Kind() == provider.KindEvent {
				releases, err := e.pressReleases(ctx, loc)
				if err != nil {
					return nil, err
				}
				has := len(releases) > 0
				data.HasPressRelease = &has
				data.PressReleases = releases
			}
			return data, nil
		})
		return data, reference(loc), err
	})
}

// pressReleases lists the EX-99 exhibits filed with loc, in listing order.
func (e *Engine) pressReleases(ctx context.Context, loc provider.Locator) ([]PressRelease, error) {
	if loc.Accession == "" || loc.Identifier == "" {
		return nil, nil
	}
	locs, err := e.provider.ListDocuments(ctx, loc.Identifier, provider.Around(loc.FilingDate, 0), nil)
	if err != nil {
		return nil, err
	}
	var out []PressRelease
	for _, l := range locs {
		if l.Accession == loc.Accession && l.Kind() == provider.KindExhibit && provider.IsPressRelease(l.Form) {
			out = append(out, PressRelease{DocumentID: l.DocumentID, Form: l.Form, URL: l.URL})
		}
	}
	return out, nil
}

// Sections summarizes the sections of a proxy statement, or of a periodic
// report when the target names one.
func (e *Engine) Sections(ctx context.Context, req SectionsRequest) Envelope {
	return e.run(ctx, "sections", func(ctx context.Context, log *zap.Logger) (any, *FilingReference, error) {
		limits, err := compact.Validate(req.Params)
		if err != nil {
			return nil, nil, err
		}
		for _, name := range req.Sections {
			if _, ok := e.extractor.Catalog().Section(name); !ok {
				return nil, nil, errcode.Validationf("unknown section %q", name)
			}
		}
		loc, err := e.resolve(ctx, req.Target, provider.ProxyForms, ProxyLookbackDays)
		if err != nil {
			return nil, nil, err
		}
		names := req.Sections
		if len(names) == 0 && loc.Kind() == provider.KindPeriodic {
			names = cue.PeriodicSections
		}
		key := cache.Key{DocumentID: loc.DocumentID, Signature: signature("sections", names, limits)}
		data, err := cache.Do(ctx, e.cache, key, func(ctx context.Context) (*extract.SectionSummary, error) {
			doc, err := e.document(ctx, loc)
			if err != nil {
				return nil, err
			}
			s, err := e.extractor.Summarize(doc, names, limits.SummaryOnly, limits.MaxSectionChars)
			if err != nil {
				return nil, err
			}
			s = compact.Summary(s, limits)
			return &s, nil
		})
		return data, reference(loc), err
	})
}

// Table extracts one governance table from a proxy statement.
func (e *Engine) Table(ctx context.Context, req TableRequest) Envelope {
	return e.run(ctx, "table", func(ctx context.Context, log *zap.Logger) (any, *FilingReference, error) {
		limits, err := compact.Validate(req.Params)
		if err != nil {
			return nil, nil, err
		}
		kind := cue.TableKind(strings.TrimSpace(req.Kind))
		if _, ok := e.extractor.Catalog().Table(kind); !ok {
			return nil, nil, errcode.Validationf("unknown table kind %q, want one of %v", req.Kind, cue.TableKinds)
		}
		loc, err := e.resolve(ctx, req.Target, provider.ProxyForms, ProxyLookbackDays)
		if err != nil {
			return nil, nil, err
		}
		key := cache.Key{DocumentID: loc.DocumentID, Signature: signature("table", kind, limits)}
		data, err := cache.Do(ctx, e.cache, key, func(ctx context.Context) (*extract.TableResult, error) {
			doc, err := e.document(ctx, loc)
			if err != nil {
				return nil, err
			}
			t, err := e.extractor.Table(doc, kind)
			if err != nil {
				return nil, err
			}
			t = compact.Table(t, limits)
			return &t, nil
		})
		return data, reference(loc), err
	})
}

// Search runs a bounded keyword search over one document.
func (e *Engine) Search(ctx context.Context, req SearchRequest) Envelope {
	return e.run(ctx, "search", func(ctx context.Context, log *zap.Logger) (any, *FilingReference, error) {
		limits, err := compact.Validate(req.Params)
		if err != nil {
			return nil, nil, err
		}
		if err := extract.ValidateTerms(req.Terms); err != nil {
			return nil, nil, err
		}
		loc, err := e.resolve(ctx, req.Target, nil, DefaultLookbackDays)
		if err != nil {
			return nil, nil, err
		}
		key := cache.Key{DocumentID: loc.DocumentID, Signature: signature("search", req.Terms, limits)}
		data, err := cache.Do(ctx, e.cache, key, func(ctx context.Context) (*SearchData, error) {
			doc, err := e.document(ctx, loc)
			if err != nil {
				return nil, err
			}
			hits, err := e.extractor.Search(doc, req.Terms, limits.ContextChars, limits.MaxHits)
			if err != nil {
				return nil, err
			}
			return &SearchData{Hits: compact.Keywords(hits, limits)}, nil
		})
		return data, reference(loc), err
	})
}

// Window builds an event window pack around req.EventDate.
func (e *Engine) Window(ctx context.Context, req WindowRequest) Envelope {
	return e.run(ctx, "window", func(ctx context.Context, log *zap.Logger) (any, *FilingReference, error) {
		limits, err := compact.Validate(req.Params)
		if err != nil {
			return nil, nil, err
		}
		identifier := strings.TrimSpace(req.Identifier)
		if identifier == "" {
			return nil, nil, errcode.Validationf("identifier is required")
		}
		day, err := time.Parse(dateLayout, strings.TrimSpace(req.EventDate))
		if err != nil {
			return nil, nil, errcode.Validationf("event_date %q is not YYYY-MM-DD", req.EventDate)
		}
		ref := &FilingReference{Identifier: identifier, Date: day.Format(dateLayout)}

		key := cache.Key{DocumentID: "window:" + identifier + "@" + ref.Date, Signature: signature("window", nil, limits)}
		// Partial packs are not stored so a recovered source is retried.
		data, err := cache.DoIf(ctx, e.cache, key, func(ctx context.Context) (*window.Pack, error) {
			pack, err := e.window.Build(ctx, window.Request{
				Identifier: identifier,
				EventDate:  day,
				WindowDays: limits.WindowDays,
				Budget:     limits.Budget(),
			})
			if err != nil {
				return nil, err
			}
			if pack.Partial {
				log.Info("engine: partial window pack", zap.Int("failures", len(pack.Failures)))
			}
			p := compact.Pack(*pack, limits)
			return &p, nil
		}, func(p *window.Pack) bool { return !p.Partial })
		return data, ref, err
	})
}

// Catalog returns the cue catalog the engine applies.
func (e *Engine) Catalog(ctx context.Context) Envelope {
	return e.run(ctx, "catalog", func(context.Context, *zap.Logger) (any, *FilingReference, error) {
		def := e.extractor.Catalog().Definition()
		return &def, nil, nil
	})
}

// signature identifies a result by operation, arguments and limits.
func signature(op string, args any, l compact.Limits) string {
	return fmt.Sprintf("%s|%v|%+v", op, args, l)
}

package engine

import (
	"context"
	"strings"

	"github.com/hurttlocker/filingintel/internal/errcode"
	"github.com/hurttlocker/filingintel/internal/provider"
)

const dateLayout = "2006-01-02"

// Lookback windows used when a request names no document.
const (
	ProxyLookbackDays   = 400
	EventLookbackDays   = 90
	DefaultLookbackDays = 400
	// idLookbackDays bounds the listing used to find a document id on
	// providers without provider.Lookup.
	idLookbackDays = 3650
)

// Target selects the filing an operation reads. DocumentID wins when set;
// otherwise the latest filing of Identifier with the requested form (or the
// operation's default forms) is used.
type Target struct {
	Identifier string `json:"identifier,omitempty"`
	DocumentID string `json:"document_id,omitempty"`
	Form       string `json:"form,omitempty"`
}

// resolve finds the filing t names. forms are the operation's default forms
// ranked most preferred first and lookback bounds the search in days; an
// explicit form replaces both with itself and DefaultLookbackDays.
func (e *Engine) resolve(ctx context.Context, t Target, forms []string, lookback int) (provider.Locator, error) {
	t.Identifier = strings.TrimSpace(t.Identifier)
	t.DocumentID = strings.TrimSpace(t.DocumentID)
	if t.DocumentID != "" {
		return e.lookup(ctx, t)
	}
	if t.Identifier == "" {
		return provider.Locator{}, errcode.Validationf("identifier or document_id is required")
	}
	if f := strings.TrimSpace(t.Form); f != "" {
		forms = []string{f}
		lookback = DefaultLookbackDays
	}
	if len(forms) == 0 {
		return provider.Locator{}, errcode.Validationf("form is required when no document_id is given")
	}

	locs, err := e.provider.ListDocuments(ctx, t.Identifier, provider.Since(e.now(), lookback), forms)
	if err != nil {
		return provider.Locator{}, err
	}
	loc, ok := latest(locs, forms)
	if !ok {
		return provider.Locator{}, errcode.NotFoundf("no %s filing for %s in the last %d days",
			strings.Join(forms, "/"), t.Identifier, lookback)
	}
	return loc, nil
}

func (e *Engine) lookup(ctx context.Context, t Target) (provider.Locator, error) {
	if l, ok := e.provider.(provider.Lookup); ok {
		return l.Lookup(ctx, t.DocumentID)
	}
	if t.Identifier == "" {
		return provider.Locator{}, errcode.Validationf("identifier is required to resolve document_id %q", t.DocumentID)
	}
	if l, ok := e.provider.(provider.IssuerLookup); ok {
		return l.LookupDocument(ctx, t.Identifier, t.DocumentID)
	}
	locs, err := e.provider.ListDocuments(ctx, t.Identifier, provider.Since(e.now(), idLookbackDays), nil)
	if err != nil {
		return provider.Locator{}, err
	}
	for _, l := range locs {
		if l.DocumentID == t.DocumentID || (l.Accession == t.DocumentID && l.Kind() != provider.KindExhibit) {
			return l, nil
		}
	}
	return provider.Locator{}, errcode.NotFoundf("document %q not found for %s", t.DocumentID, t.Identifier)
}

// latest picks the most recent filing whose form is in forms. Filings on the
// same day are ranked by the position of their form in forms, then by id.
func latest(locs []provider.Locator, forms []string) (provider.Locator, bool) {
	rank := func(form string) int {
		for i, f := range forms {
			if strings.EqualFold(strings.TrimSpace(f), strings.TrimSpace(form)) {
				return i
			}
		}
		return -1
	}
	var best provider.Locator
	bestRank, found := 0, false
	for _, l := range locs {
		r := rank(l.Form)
		if r < 0 {
			continue
		}
		switch {
		case !found:
		case l.FilingDate.After(best.FilingDate):
		case l.FilingDate.Equal(best.FilingDate) && r < bestRank:
		case l.FilingDate.Equal(best.FilingDate) && r == bestRank && l.DocumentID < best.DocumentID:
		default:
			continue
		}
		best, bestRank, found = l, r, true
	}
	return best, found
}

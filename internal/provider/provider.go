// Package provider defines how the engine lists and fetches filings.
//
// Listing and fetching are external collaborators: identifiers are taken as
// given (e.g. a CIK) and the engine never resolves names. Two adapters ship
// with the engine: edgar (SEC HTTP) and local (an offline SQLite corpus).
package provider

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/hurttlocker/filingintel/internal/document"
)

// Kind classifies a document for dispatch.
type Kind string

const (
	KindEvent      Kind = "event"
	KindPeriodic   Kind = "periodic"
	KindGovernance Kind = "governance"
	KindExhibit    Kind = "exhibit"
	KindOther      Kind = "other"
)

// Form names the engine ranks or dispatches on.
const (
	FormEightK   = "8-K"
	FormDEF14A   = "DEF 14A"
	FormDEFM14A  = "DEFM14A"
	FormPRE14A   = "PRE 14A"
	FormPREM14A  = "PREM14A"
	FormDEFA14A  = "DEFA14A"
	FormTenK     = "10-K"
	FormTenQ     = "10-Q"
	exhibitLabel = "EX-"
)

// ProxyForms lists proxy statement forms, most authoritative first.
var ProxyForms = []string{FormDEFM14A, FormDEF14A, FormPREM14A, FormPRE14A}

// KindOf maps a form type to its document kind. Amendments ("/A") take the
// kind of the form they amend.
func KindOf(form string) Kind {
	f := strings.ToUpper(strings.TrimSpace(form))
	f = strings.TrimSuffix(f, "/A")
	switch {
	case strings.HasPrefix(f, exhibitLabel):
		return KindExhibit
	case f == "8-K" || f == "6-K":
		return KindEvent
	case f == "10-K" || f == "10-Q" || f == "20-F" || f == "40-F" || f == "10-KT" || f == "10-QT":
		return KindPeriodic
	case strings.Contains(f, "14A") || strings.Contains(f, "14C"):
		return KindGovernance
	}
	return KindOther
}

// IsPressRelease reports whether form is an EX-99 exhibit, the exhibit type
// 8-K press releases are filed under.
func IsPressRelease(form string) bool {
	f := strings.ToUpper(strings.TrimSpace(form))
	return f == "EX-99" || strings.HasPrefix(f, "EX-99.")
}

// Locator identifies one listed document.
type Locator struct {
	DocumentID string    `json:"document_id"`
	Identifier string    `json:"identifier"`
	Form       string    `json:"form"`
	FilingDate time.Time `json:"filing_date"`
	URL        string    `json:"url"`
	// Accession groups a primary document with its exhibits.
	Accession string `json:"accession,omitempty"`
}

// Kind returns the document kind of the locator's form.
func (l Locator) Kind() Kind { return KindOf(l.Form) }

// Meta returns the document metadata the locator carries.
func (l Locator) Meta() document.Meta {
	return document.Meta{
		ID:         l.DocumentID,
		Identifier: l.Identifier,
		Form:       l.Form,
		FilingDate: l.FilingDate,
		SourceURL:  l.URL,
	}
}

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Around returns the range [day-days, day+days].
func Around(day time.Time, days int) DateRange {
	d := truncateDay(day)
	return DateRange{From: d.AddDate(0, 0, -days), To: d.AddDate(0, 0, days)}
}

// Since returns the range of the days days up to and including day.
func Since(day time.Time, days int) DateRange {
	d := truncateDay(day)
	return DateRange{From: d.AddDate(0, 0, -days), To: d}
}

// Contains reports whether t falls on a day within the range.
func (r DateRange) Contains(t time.Time) bool {
	d := truncateDay(t)
	return !d.Before(truncateDay(r.From)) && !d.After(truncateDay(r.To))
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Provider lists and fetches filings. Implementations return errcode errors:
// NOT_FOUND for unknown documents, TIMEOUT and RATE_LIMIT for upstream
// trouble.
type Provider interface {
	// ListDocuments returns the documents of identifier filed within r whose
	// form is one of forms (all forms when forms is empty), ordered by
	// filing date then document id.
	ListDocuments(ctx context.Context, identifier string, r DateRange, forms []string) ([]Locator, error)
	FetchDocument(ctx context.Context, loc Locator) (*document.Document, error)
}

// Lookup is implemented by providers that can find a document by id alone,
// without listing the issuer's filings first.
type Lookup interface {
	Lookup(ctx context.Context, documentID string) (Locator, error)
}

// IssuerLookup is implemented by providers that can find a document by id
// within one issuer's filings without listing all of them.
type IssuerLookup interface {
	LookupDocument(ctx context.Context, identifier, documentID string) (Locator, error)
}

// MatchForm reports whether form is one of forms, ignoring case. An empty
// forms list matches everything.
func MatchForm(form string, forms []string) bool {
	if len(forms) == 0 {
		return true
	}
	for _, f := range forms {
		if strings.EqualFold(strings.TrimSpace(f), strings.TrimSpace(form)) {
			return true
		}
	}
	return false
}

// Sort orders locators by filing date, then document id.
func Sort(locs []Locator) {
	sort.SliceStable(locs, func(i, j int) bool {
		a, b := locs[i], locs[j]
		if !a.FilingDate.Equal(b.FilingDate) {
			return a.FilingDate.Before(b.FilingDate)
		}
		return a.DocumentID < b.DocumentID
	})
}

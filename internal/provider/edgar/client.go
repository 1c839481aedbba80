// Package edgar lists and fetches filings from SEC EDGAR.
//
// Listing reads the data.sec.gov submissions feed (primary documents) and,
// when exhibits are wanted, each filing's index.json. Content comes from the
// Archives. Every request carries the mandatory User-Agent and waits on a
// shared rate limiter; SEC allows 10 requests per second, the default here
// is 5.
package edgar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hurttlocker/filingintel/internal/document"
	"github.com/hurttlocker/filingintel/internal/errcode"
	"github.com/hurttlocker/filingintel/internal/provider"
)

const (
	DefaultDataURL    = "https://data.sec.gov"
	DefaultArchiveURL = "https://www.sec.gov"
	DefaultRateLimit  = 5.0
	// MaxBodyBytes caps a downloaded document.
	MaxBodyBytes = 20 << 20
)

// Client is a provider.Provider over EDGAR.
type Client struct {
	http       *http.Client
	limiter    *rate.Limiter
	userAgent  string
	dataURL    string
	archiveURL string
	logger     *zap.Logger
	maxBody    int64
}

var (
	_ provider.Provider     = (*Client)(nil)
	_ provider.IssuerLookup = (*Client)(nil)
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithRateLimit sets the request rate in requests per second.
func WithRateLimit(rps float64) Option {
	return func(cl *Client) {
		if rps > 0 {
			cl.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithBaseURLs points the client at other hosts (tests, mirrors).
func WithBaseURLs(dataURL, archiveURL string) Option {
	return func(cl *Client) {
		cl.dataURL = strings.TrimRight(dataURL, "/")
		cl.archiveURL = strings.TrimRight(archiveURL, "/")
	}
}

// WithMaxBodyBytes caps the size of one downloaded response.
func WithMaxBodyBytes(n int64) Option {
	return func(cl *Client) {
		if n > 0 {
			cl.maxBody = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// New creates a Client. EDGAR rejects anonymous traffic, so userAgent
// ("Company Name admin@example.com") is required.
func New(userAgent string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(userAgent) == "" {
		return nil, errcode.Validationf("edgar: a User-Agent identifying the caller is required")
	}
	c := &Client{
		http:       &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
		userAgent:  userAgent,
		dataURL:    DefaultDataURL,
		archiveURL: DefaultArchiveURL,
		logger:     zap.NewNop(),
		maxBody:    MaxBodyBytes,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// submissions is the subset of the submissions feed the client reads.
type submissions struct {
	CIK     string `json:"cik"`
	Name    string `json:"name"`
	Filings struct {
		Recent struct {
			AccessionNumber []string `json:"accessionNumber"`
			FilingDate      []string `json:"filingDate"`
			Form            []string `json:"form"`
			PrimaryDocument []string `json:"primaryDocument"`
		} `json:"recent"`
	} `json:"filings"`
}

type filingIndex struct {
	Directory struct {
		Item []struct {
			Name string `json:"name"`
		} `json:"item"`
	} `json:"directory"`
}

// allTime covers every filing date in the submissions feed.
var allTime = provider.DateRange{To: time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)}

var cikRe = regexp.MustCompile(`^[0-9]{1,10}$`)

// filing is one row of the submissions feed.
type filing struct {
	primary provider.Locator
	folder  string
}

// filings reads the submissions feed of identifier and returns the primary
// documents filed within r.
func (c *Client) filings(ctx context.Context, identifier string, r provider.DateRange) ([]filing, error) {
	cik := strings.TrimLeft(strings.TrimSpace(identifier), "0")
	if !cikRe.MatchString(cik) {
		return nil, errcode.Validationf("edgar: identifier %q is not a CIK", identifier)
	}

	var sub submissions
	if err := c.getJSON(ctx, fmt.Sprintf("%s/submissions/CIK%s.json", c.dataURL, PadCIK(cik)), &sub); err != nil {
		return nil, err
	}

	rec := sub.Filings.Recent
	n := minLen(len(rec.AccessionNumber), len(rec.FilingDate), len(rec.Form), len(rec.PrimaryDocument))
	var out []filing
	for i := 0; i < n; i++ {
		date, err := time.Parse("2006-01-02", rec.FilingDate[i])
		if err != nil || !r.Contains(date) {
			continue
		}
		accession := rec.AccessionNumber[i]
		folder := fmt.Sprintf("%s/Archives/edgar/data/%s/%s", c.archiveURL, cik, strings.ReplaceAll(accession, "-", ""))
		out = append(out, filing{
			primary: provider.Locator{
				DocumentID: accession,
				Identifier: cik,
				Form:       rec.Form[i],
				FilingDate: date,
				URL:        folder + "/" + rec.PrimaryDocument[i],
				Accession:  accession,
			},
			folder: folder,
		})
	}
	return out, nil
}

// ListDocuments implements provider.Provider. Exhibits are listed when forms
// is empty or names an exhibit type.
func (c *Client) ListDocuments(ctx context.Context, identifier string, r provider.DateRange, forms []string) ([]provider.Locator, error) {
	filings, err := c.filings(ctx, identifier, r)
	if err != nil {
		return nil, err
	}
	wantExhibits, allExhibits := exhibitFilter(forms)

	var out []provider.Locator
	for _, f := range filings {
		if provider.MatchForm(f.primary.Form, forms) {
			out = append(out, f.primary)
		}
		if !wantExhibits || provider.KindOf(f.primary.Form) == provider.KindOther {
			continue
		}
		exhibits, err := c.exhibits(ctx, f.primary, f.folder)
		if err != nil {
			return nil, err
		}
		for _, ex := range exhibits {
			if allExhibits || provider.MatchForm(ex.Form, forms) {
				out = append(out, ex)
			}
		}
	}
	provider.Sort(out)
	c.logger.Debug("edgar: listed filings", zap.String("identifier", identifier), zap.Int("count", len(out)))
	return out, nil
}

// LookupDocument implements provider.IssuerLookup. An id is an accession
// ("0000320193-25-000002") or an exhibit id ("<accession>/<file>"); only the
// submissions feed and, for exhibits, that one filing's index are read.
func (c *Client) LookupDocument(ctx context.Context, identifier, documentID string) (provider.Locator, error) {
	id := strings.TrimSpace(documentID)
	accession, file, _ := strings.Cut(id, "/")
	if accession == "" {
		return provider.Locator{}, errcode.Validationf("edgar: document id %q has no accession", documentID)
	}
	filings, err := c.filings(ctx, identifier, allTime)
	if err != nil {
		return provider.Locator{}, err
	}
	for _, f := range filings {
		if f.primary.Accession != accession {
			continue
		}
		if file == "" {
			return f.primary, nil
		}
		exhibits, err := c.exhibits(ctx, f.primary, f.folder)
		if err != nil {
			return provider.Locator{}, err
		}
		for _, ex := range exhibits {
			if ex.DocumentID == id {
				return ex, nil
			}
		}
		break
	}
	return provider.Locator{}, errcode.NotFoundf("edgar: document %q not found for %s", documentID, identifier)
}

func (c *Client) exhibits(ctx context.Context, primary provider.Locator, folder string) ([]provider.Locator, error) {
	var idx filingIndex
	if err := c.getJSON(ctx, folder+"/index.json", &idx); err != nil {
		if errcode.Is(err, errcode.NotFound) {
			return nil, nil
		}
		return nil, err
	}
	var out []provider.Locator
	for _, item := range idx.Directory.Item {
		form, ok := ExhibitType(item.Name)
		if !ok || item.Name == primaryName(primary.URL) {
			continue
		}
		out = append(out, provider.Locator{
			DocumentID: primary.Accession + "/" + item.Name,
			Identifier: primary.Identifier,
			Form:       form,
			FilingDate: primary.FilingDate,
			URL:        folder + "/" + item.Name,
			Accession:  primary.Accession,
		})
	}
	return out, nil
}

var exhibitNameRe = regexp.MustCompile(`(?i)ex(?:hibit)?-?(\d{1,3})(?:[._-]?(\d{1,2}))?[^/]*\.(?:htm|html|txt)$`)

// ExhibitType infers an exhibit type ("EX-99.1") from an EDGAR file name
// such as "ex99-1.htm" or "d123456dex991.htm".
func ExhibitType(name string) (string, bool) {
	m := exhibitNameRe.FindStringSubmatch(name)
	if m == nil {
		return "", false
	}
	major, minor := m[1], m[2]
	// "ex991" packs 99.1 into one run of digits.
	if minor == "" && len(major) == 3 {
		major, minor = major[:2], major[2:]
	}
	if minor == "" {
		return "EX-" + major, true
	}
	return "EX-" + major + "." + minor, true
}

// FetchDocument implements provider.Provider.
func (c *Client) FetchDocument(ctx context.Context, loc provider.Locator) (*document.Document, error) {
	if loc.URL == "" {
		return nil, errcode.Validationf("edgar: document %q has no URL", loc.DocumentID)
	}
	body, err := c.get(ctx, loc.URL)
	if err != nil {
		return nil, err
	}
	return document.Normalize(loc.Meta(), string(body))
}

func (c *Client) getJSON(ctx context.Context, url string, v any) error {
	body, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errcode.Wrap(errcode.Parse, err, "edgar: malformed response from %s", url)
	}
	return nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errcode.Wrap(errcode.Timeout, err, "edgar: rate limiter wait abandoned")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("edgar: new request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Encoding", "identity")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || isTimeout(err) {
			return nil, errcode.Wrap(errcode.Timeout, err, "edgar: request to %s timed out", url)
		}
		return nil, fmt.Errorf("edgar: do: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("edgar: fetched",
		zap.String("url", url), zap.Int("status", resp.StatusCode), zap.Duration("duration", time.Since(start)))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		return nil, errcode.New(errcode.RateLimit, "edgar: upstream throttled the request (HTTP %d)", resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return nil, errcode.NotFoundf("edgar: %s not found", url)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("edgar: unexpected status %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		if isTimeout(err) {
			return nil, errcode.Wrap(errcode.Timeout, err, "edgar: reading %s timed out", url)
		}
		return nil, fmt.Errorf("edgar: read body: %w", err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, errcode.New(errcode.Parse, "edgar: %s exceeds the %d byte document limit", url, c.maxBody)
	}
	return body, nil
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

func primaryName(url string) string {
	if i := strings.LastIndexByte(url, '/'); i >= 0 {
		return url[i+1:]
	}
	return url
}

// exhibitFilter reports whether forms asks for exhibits at all, and whether
// it asks for every exhibit type (empty forms, or the bare "EX").
func exhibitFilter(forms []string) (want, all bool) {
	if len(forms) == 0 {
		return true, true
	}
	for _, f := range forms {
		f = strings.TrimSpace(f)
		if strings.EqualFold(f, "EX") {
			return true, true
		}
		if provider.KindOf(f) == provider.KindExhibit {
			want = true
		}
	}
	return want, false
}

func minLen(ns ...int) int {
	m := ns[0]
	for _, n := range ns[1:] {
		if n < m {
			m = n
		}
	}
	return m
}

// PadCIK renders a CIK the way the submissions feed names it.
func PadCIK(cik string) string {
	n, err := strconv.ParseUint(strings.TrimSpace(cik), 10, 64)
	if err != nil {
		return cik
	}
	return fmt.Sprintf("%010d", n)
}

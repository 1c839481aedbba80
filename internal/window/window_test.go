package window

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hurttlocker/filingintel/internal/document"
	"github.com/hurttlocker/filingintel/internal/errcode"
	"github.com/hurttlocker/filingintel/internal/extract"
	"github.com/hurttlocker/filingintel/internal/fixture"
	"github.com/hurttlocker/filingintel/internal/provider"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeProvider serves fixture documents. Documents listed in fail return an
// error; documents listed in hang block until their context ends.
type fakeProvider struct {
	locs    []provider.Locator
	content map[string]string
	fail    map[string]error
	hang    map[string]bool
	fetches atomic.Int32
	active  atomic.Int32
	peak    atomic.Int32
}

func (p *fakeProvider) ListDocuments(ctx context.Context, identifier string, r provider.DateRange, forms []string) ([]provider.Locator, error) {
	var out []provider.Locator
	for _, l := range p.locs {
		if l.Identifier == identifier && r.Contains(l.FilingDate) && provider.MatchForm(l.Form, forms) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (p *fakeProvider) FetchDocument(ctx context.Context, loc provider.Locator) (*document.Document, error) {
	p.fetches.Add(1)
	n := p.active.Add(1)
	defer p.active.Add(-1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	if err := p.fail[loc.DocumentID]; err != nil {
		return nil, err
	}
	if p.hang[loc.DocumentID] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return document.Normalize(loc.Meta(), p.content[loc.DocumentID])
}

func loc(id, form, date string) provider.Locator {
	return provider.Locator{
		DocumentID: id,
		Identifier: "123456",
		Form:       form,
		FilingDate: fixture.Date(date),
		URL:        "https://example.test/" + id,
	}
}

func eventWindow() *fakeProvider {
	return &fakeProvider{
		locs: []provider.Locator{
			loc("8k-restatement", "8-K", "2025-03-04"),
			loc("ex-991", "EX-99.1", "2025-03-04"),
			loc("proxy", "DEF 14A", "2025-03-01"),
			loc("8k-departure", "8-K", "2025-03-06"),
			loc("10-k", "10-K", "2025-02-27"),
			loc("s-8", "S-8", "2025-03-02"),
			loc("old-8k", "8-K", "2024-06-01"),
		},
		content: map[string]string{
			"8k-restatement": fixture.EightKRestatement,
			"ex-991":         fixture.Exhibit,
			"proxy":          fixture.Proxy,
			"8k-departure":   fixture.EightKDirectorDeparture,
			"10-k":           fixture.PlainTenK,
		},
		fail: map[string]error{},
		hang: map[string]bool{},
	}
}

var budget = Budget{SummaryOnly: true, MaxSectionChars: 1500, ContextChars: 80, MaxHits: 3}

func request() Request {
	return Request{Identifier: "123456", EventDate: fixture.Date("2025-03-04"), WindowDays: 7, Budget: budget}
}

func flag(t *testing.T, p *Pack, name string) extract.Flag {
	t.Helper()
	for _, f := range p.Flags {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("flag %s missing from pack", name)
	return extract.Flag{}
}

func TestBuild_MergesByKind(t *testing.T) {
	p := eventWindow()
	a := New(p, extract.New(nil))

	pack, err := a.Build(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, Span{StartDate: "2025-02-25", EndDate: "2025-03-11"}, pack.Window)
	assert.Equal(t, []string{"10-k", "proxy", "8k-restatement", "ex-991", "8k-departure"}, pack.DocumentsConsulted)
	assert.False(t, pack.Partial)
	assert.Empty(t, pack.Failures)

	restatement := flag(t, pack, "restatement_402")
	require.True(t, restatement.Present)
	assert.True(t, strings.HasPrefix(restatement.Evidence[0].DocumentID, "8k-restatement"))
	assert.True(t, flag(t, pack, "director_officer_change_502").Present)
	assert.True(t, flag(t, pack, "material_weakness").Present)
	assert.False(t, flag(t, pack, "going_concern").Present)

	require.NotNil(t, pack.SectionSummary)
	assert.True(t, pack.SectionSummary.SectionsPresent["audit"])
	assert.Nil(t, pack.SectionSummary.Excerpts)
	require.NotNil(t, pack.Owners)
	assert.Equal(t, 4, pack.Owners.ParsedRows)

	restatementHits := pack.ExhibitHits["restatement"]
	assert.Equal(t, 3, restatementHits.Count)
	assert.Len(t, restatementHits.Samples, 3)
	assert.Equal(t, 1, pack.ExhibitHits["material weakness"].Count)
}

func TestBuild_PartialOnFailures(t *testing.T) {
	p := eventWindow()
	p.fail["8k-departure"] = errcode.New(errcode.RateLimit, "upstream throttled")
	p.hang["ex-991"] = true
	a := New(p, extract.New(nil), WithDocumentTimeout(100*time.Millisecond))

	pack, err := a.Build(context.Background(), request())
	require.NoError(t, err)

	assert.True(t, pack.Partial)
	assert.Equal(t, []string{"10-k", "proxy", "8k-restatement"}, pack.DocumentsConsulted)
	want := []Failure{
		{DocumentID: "ex-991", Form: "EX-99.1", Code: errcode.Timeout, Message: "operation exceeded its deadline"},
		{DocumentID: "8k-departure", Form: "8-K", Code: errcode.RateLimit, Message: "upstream throttled"},
	}
	if diff := cmp.Diff(want, pack.Failures); diff != "" {
		t.Errorf("failures (-want +got):\n%s", diff)
	}
	assert.True(t, flag(t, pack, "restatement_402").Present)
	assert.False(t, flag(t, pack, "director_officer_change_502").Present)
	assert.Nil(t, pack.ExhibitHits)
	assert.EqualValues(t, 5, p.fetches.Load())
}

func TestBuild_InternalErrorsAreSanitized(t *testing.T) {
	p := eventWindow()
	p.fail["proxy"] = errors.New("dial tcp 10.0.0.1:443: connection refused")
	pack, err := New(p, extract.New(nil)).Build(context.Background(), request())
	require.NoError(t, err)
	require.Len(t, pack.Failures, 1)
	assert.Equal(t, errcode.Internal, pack.Failures[0].Code)
	assert.NotContains(t, pack.Failures[0].Message, "10.0.0.1")
	assert.Nil(t, pack.SectionSummary)
}

func TestBuild_BoundsConcurrency(t *testing.T) {
	p := eventWindow()
	_, err := New(p, extract.New(nil), WithWorkers(2)).Build(context.Background(), request())
	require.NoError(t, err)
	assert.LessOrEqual(t, p.peak.Load(), int32(2))
}

func TestBuild_TooManyDocuments(t *testing.T) {
	p := eventWindow()
	for i := 0; i < 30; i++ {
		l := loc(fmt.Sprintf("8k-%02d", i), "8-K", "2025-03-05")
		p.locs = append(p.locs, l)
	}
	_, err := New(p, extract.New(nil)).Build(context.Background(), request())
	assert.True(t, errcode.Is(err, errcode.Validation), "err = %v", err)
	assert.EqualValues(t, 0, p.fetches.Load())
}

func TestBuild_EmptyWindow(t *testing.T) {
	p := eventWindow()
	req := request()
	req.EventDate = fixture.Date("2023-01-01")
	_, err := New(p, extract.New(nil)).Build(context.Background(), req)
	assert.True(t, errcode.Is(err, errcode.NotFound), "err = %v", err)
}

func TestBuild_Deterministic(t *testing.T) {
	a := New(eventWindow(), extract.New(nil), WithWorkers(4))
	first, err := a.Build(context.Background(), request())
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := a.Build(context.Background(), request())
		require.NoError(t, err)
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("pack changed between runs (-first +again):\n%s", diff)
		}
	}
}

func TestBuild_CallerCancellation(t *testing.T) {
	p := eventWindow()
	for id := range p.content {
		p.hang[id] = true
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := New(p, extract.New(nil)).Build(ctx, request())
	assert.True(t, errcode.Is(err, errcode.Timeout), "err = %v", err)
}

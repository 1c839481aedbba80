package observe

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/hurttlocker/filingintel/internal/cache"
	"github.com/hurttlocker/filingintel/internal/fixture"
	"github.com/hurttlocker/filingintel/internal/provider/local"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
		err  bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"", zapcore.InfoLevel, false},
		{"INFO", zapcore.InfoLevel, false},
		{"warning", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"loud", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.err {
			t.Errorf("ParseLevel(%q) err = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("debug")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug level not enabled")
	}
	_ = logger.Sync()

	if _, err := NewLogger("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestTelemetryHandles(t *testing.T) {
	if Tracer("engine") == nil || Meter("engine") == nil {
		t.Fatal("nil telemetry handle")
	}
}

type fixedCache cache.Stats

func (f fixedCache) CacheStats() cache.Stats { return cache.Stats(f) }

type brokenCorpus struct{}

func (brokenCorpus) Stats(context.Context) (*local.Stats, error) { return nil, errors.New("disk gone") }

func TestGetStats_Corpus(t *testing.T) {
	st, err := local.Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	stats, err := GetStats(ctx, st, fixedCache{})
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.Filings != 0 || len(stats.Alerts) != 1 || !strings.HasPrefix(stats.Alerts[0], "corpus_empty") {
		t.Fatalf("empty corpus stats = %+v", stats)
	}

	for _, f := range []local.Filing{
		{ID: "a", Identifier: "1", Form: "8-K", FilingDate: fixture.Date("2025-03-04"), Content: fixture.EightKRestatement},
		{ID: "b", Identifier: "2", Form: "DEF 14A", FilingDate: fixture.Date("2025-03-01"), Content: fixture.Proxy},
	} {
		f := f
		if _, err := st.Import(ctx, &f); err != nil {
			t.Fatalf("import: %v", err)
		}
	}
	stats, err = GetStats(ctx, st, nil)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.Filings != 2 || stats.Identifiers != 2 || len(stats.Alerts) != 0 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestGetStats_CorpusError(t *testing.T) {
	if _, err := GetStats(context.Background(), brokenCorpus{}, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestBuildAlerts_Cache(t *testing.T) {
	stats, err := GetStats(context.Background(), nil, fixedCache{Hits: 10, Misses: 190, Computations: 190, Evictions: 120})
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.HitRatio != 0.05 {
		t.Errorf("hit ratio = %v", stats.HitRatio)
	}
	want := map[string]bool{"cache_hit_ratio_low": false, "cache_churn": false}
	for _, a := range stats.Alerts {
		for k := range want {
			if strings.HasPrefix(a, k) {
				want[k] = true
			}
		}
	}
	for k, seen := range want {
		if !seen {
			t.Errorf("missing alert %s in %v", k, stats.Alerts)
		}
	}

	quiet, _ := GetStats(context.Background(), nil, fixedCache{Hits: 5, Misses: 5})
	if len(quiet.Alerts) != 0 {
		t.Errorf("alerts below lookup floor: %v", quiet.Alerts)
	}
}

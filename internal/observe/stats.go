package observe

import (
	"context"
	"fmt"

	"github.com/hurttlocker/filingintel/internal/cache"
	"github.com/hurttlocker/filingintel/internal/provider/local"
)

// Stats holds corpus and cache health for the stats command.
type Stats struct {
	Filings      int64       `json:"filings"`
	Identifiers  int64       `json:"identifiers"`
	StorageBytes int64       `json:"storage_bytes"`
	Cache        cache.Stats `json:"cache"`
	HitRatio     float64     `json:"hit_ratio"`
	Alerts       []string    `json:"alerts,omitempty"`
}

// CorpusStatter is implemented by the local filing store.
type CorpusStatter interface {
	Stats(ctx context.Context) (*local.Stats, error)
}

// CacheStatter reports result cache counters.
type CacheStatter interface {
	CacheStats() cache.Stats
}

// GetStats collects corpus counts (when corpus is non-nil) and cache
// counters, and derives alerts from them.
func GetStats(ctx context.Context, corpus CorpusStatter, c CacheStatter) (*Stats, error) {
	stats := &Stats{}
	if corpus != nil {
		cs, err := corpus.Stats(ctx)
		if err != nil {
			return nil, fmt.Errorf("getting corpus stats: %w", err)
		}
		stats.Filings = cs.Filings
		stats.Identifiers = cs.Identifiers
		stats.StorageBytes = cs.DBSizeBytes
	}
	if c != nil {
		stats.Cache = c.CacheStats()
		if lookups := stats.Cache.Hits + stats.Cache.Misses; lookups > 0 {
			stats.HitRatio = float64(stats.Cache.Hits) / float64(lookups)
		}
	}
	stats.Alerts = buildAlerts(stats, corpus != nil)
	return stats, nil
}

func buildAlerts(s *Stats, haveCorpus bool) []string {
	alerts := make([]string, 0)

	const (
		warnStorageBytes = int64(1.5 * 1024 * 1024 * 1024)
		noteStorageBytes = int64(1.0 * 1024 * 1024 * 1024)
		minLookups       = 100
		lowHitRatio      = 0.2
	)

	switch {
	case s.StorageBytes >= warnStorageBytes:
		alerts = append(alerts, "db_size_high: corpus is above 1.5GB; run VACUUM or prune old filings")
	case s.StorageBytes >= noteStorageBytes:
		alerts = append(alerts, "db_size_notice: corpus is above 1.0GB; monitor growth")
	}
	if haveCorpus && s.Filings == 0 {
		alerts = append(alerts, "corpus_empty: no filings imported; run `filingintel import`")
	}
	if s.Cache.Hits+s.Cache.Misses >= minLookups && s.HitRatio < lowHitRatio {
		alerts = append(alerts, "cache_hit_ratio_low: consider a longer cache_ttl or larger cache_capacity")
	}
	if s.Cache.Evictions > 0 && s.Cache.Evictions >= s.Cache.Computations/2 && s.Cache.Computations > 0 {
		alerts = append(alerts, "cache_churn: half of computed results were evicted; raise cache_capacity")
	}
	return alerts
}

// Package cache is the bounded in-memory result cache.
//
// Entries are keyed by (document id, request signature), expire a fixed TTL
// after insertion and are evicted oldest-inserted first once the cache is
// full. Concurrent misses for one key share a single computation.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/hurttlocker/filingintel/internal/errcode"
)

const (
	DefaultTTL            = 12 * time.Minute
	DefaultCapacity       = 512
	DefaultSweepInterval  = time.Minute
	DefaultComputeTimeout = 60 * time.Second
)

// Key identifies a cached result.
type Key struct {
	DocumentID string
	Signature  string
}

func (k Key) String() string { return k.DocumentID + "\x00" + k.Signature }

// Options configures a Cache. Zero values take the defaults; a negative
// SweepInterval disables the background sweep.
type Options struct {
	TTL            time.Duration
	Capacity       int
	SweepInterval  time.Duration
	ComputeTimeout time.Duration
	Logger         *zap.Logger
	Meter          metric.Meter
}

// Stats counts cache activity since construction.
type Stats struct {
	Hits         int64 `json:"hits"`
	Misses       int64 `json:"misses"`
	Computations int64 `json:"computations"`
	Evictions    int64 `json:"evictions"`
	Entries      int   `json:"entries"`
}

type entry struct {
	key string
	seq uint64
}

// Cache is safe for concurrent use.
type Cache struct {
	store          *gocache.Cache
	group          singleflight.Group
	capacity       int
	computeTimeout time.Duration
	logger         *zap.Logger

	mu    sync.Mutex
	seq   uint64
	gen   map[string]uint64
	queue []entry

	hits, misses, computations, evictions atomic.Int64
	hitCounter, missCounter              metric.Int64Counter

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a Cache and starts its sweep loop. Call Close to stop it.
func New(opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.SweepInterval == 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.ComputeTimeout <= 0 {
		opts.ComputeTimeout = DefaultComputeTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Meter == nil {
		opts.Meter = noop.NewMeterProvider().Meter("filingintel/cache")
	}

	c := &Cache{
		// The sweep runs here rather than in go-cache's janitor so Close
		// can stop it deterministically.
		store:          gocache.New(opts.TTL, 0),
		capacity:       opts.Capacity,
		computeTimeout: opts.ComputeTimeout,
		logger:         opts.Logger,
		gen:            make(map[string]uint64),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
	c.store.OnEvicted(func(string, interface{}) { c.evictions.Add(1) })
	c.hitCounter, _ = opts.Meter.Int64Counter("filingintel.cache.hits")
	c.missCounter, _ = opts.Meter.Int64Counter("filingintel.cache.misses")

	if opts.SweepInterval > 0 {
		go c.sweep(opts.SweepInterval)
	} else {
		close(c.done)
	}
	return c
}

func (c *Cache) sweep(every time.Duration) {
	defer close(c.done)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-t.C:
			c.store.DeleteExpired()
			c.mu.Lock()
			c.compactQueue()
			c.mu.Unlock()
		}
	}
}

// Close stops the sweep loop. Lookups keep working with lazy expiry.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
	<-c.done
}

// Get returns a live entry.
func (c *Cache) Get(key Key) (any, bool) {
	v, ok := c.store.Get(key.String())
	if ok {
		c.hits.Add(1)
		c.hitCounter.Add(context.Background(), 1)
	}
	return v, ok
}

// Set stores v under key, evicting the oldest-inserted entries when full.
func (c *Cache) Set(key Key, v any) {
	c.set(key.String(), v)
}

func (c *Cache) set(k string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, live := c.store.Get(k); !live {
		for c.store.ItemCount() >= c.capacity {
			if !c.evictOldest() {
				break
			}
		}
	}
	c.seq++
	c.gen[k] = c.seq
	c.queue = append(c.queue, entry{key: k, seq: c.seq})
	c.store.SetDefault(k, v)
	if len(c.queue) > 2*c.capacity+16 {
		c.compactQueue()
	}
}

// evictOldest removes the oldest-inserted entry. Callers hold mu.
func (c *Cache) evictOldest() bool {
	for len(c.queue) > 0 {
		e := c.queue[0]
		c.queue = c.queue[1:]
		if c.gen[e.key] != e.seq {
			continue
		}
		delete(c.gen, e.key)
		c.store.Delete(e.key)
		return true
	}
	return false
}

// compactQueue drops queue entries for keys that were overwritten or have
// expired. Callers hold mu.
func (c *Cache) compactQueue() {
	kept := c.queue[:0]
	for _, e := range c.queue {
		if c.gen[e.key] != e.seq {
			continue
		}
		if _, live := c.store.Get(e.key); !live {
			delete(c.gen, e.key)
			continue
		}
		kept = append(kept, e)
	}
	c.queue = kept
}

// GetOrCompute returns the cached value for key or computes it. Concurrent
// callers missing on the same key share one computation, which re-checks
// the cache before running. The computation runs detached from any single
// caller, bounded by the compute timeout; a caller whose context ends stops
// waiting without cancelling it. Errors are returned to every waiter and
// are not cached.
func (c *Cache) GetOrCompute(ctx context.Context, key Key, compute func(context.Context) (any, error)) (any, error) {
	return c.getOrCompute(ctx, key, compute, nil)
}

// GetOrComputeIf is GetOrCompute, except that a computed value is stored
// only when keep reports true. Coalesced waiters still share it.
func (c *Cache) GetOrComputeIf(ctx context.Context, key Key, compute func(context.Context) (any, error), keep func(any) bool) (any, error) {
	return c.getOrCompute(ctx, key, compute, keep)
}

func (c *Cache) getOrCompute(ctx context.Context, key Key, compute func(context.Context) (any, error), keep func(any) bool) (any, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	c.misses.Add(1)
	c.missCounter.Add(ctx, 1)

	k := key.String()
	ch := c.group.DoChan(k, func() (any, error) {
		if v, ok := c.store.Get(k); ok {
			return v, nil
		}
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.computeTimeout)
		defer cancel()
		c.computations.Add(1)
		v, err := compute(cctx)
		if err != nil {
			c.logger.Debug("cache: computation failed",
				zap.String("document_id", key.DocumentID), zap.String("signature", key.Signature), zap.Error(err))
			return nil, err
		}
		if keep != nil && !keep(v) {
			c.logger.Debug("cache: result not stored",
				zap.String("document_id", key.DocumentID), zap.String("signature", key.Signature))
			return v, nil
		}
		c.set(k, v)
		return v, nil
	})

	select {
	case r := <-ch:
		return r.Val, r.Err
	case <-ctx.Done():
		return nil, errcode.From(ctx.Err())
	}
}

// Do is a typed GetOrCompute.
func Do[V any](ctx context.Context, c *Cache, key Key, compute func(context.Context) (V, error)) (V, error) {
	return DoIf(ctx, c, key, compute, nil)
}

// DoIf is a typed GetOrComputeIf. A nil keep stores every result.
func DoIf[V any](ctx context.Context, c *Cache, key Key, compute func(context.Context) (V, error), keep func(V) bool) (V, error) {
	var keepAny func(any) bool
	if keep != nil {
		keepAny = func(v any) bool {
			typed, ok := v.(V)
			return ok && keep(typed)
		}
	}
	v, err := c.getOrCompute(ctx, key, func(ctx context.Context) (any, error) {
		return compute(ctx)
	}, keepAny)
	if err != nil {
		var zero V
		return zero, err
	}
	typed, ok := v.(V)
	if !ok {
		var zero V
		return zero, errcode.New(errcode.Internal, "cache entry for %s has unexpected type", key.DocumentID)
	}
	return typed, nil
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
		Computations: c.computations.Load(),
		Evictions:    c.evictions.Load(),
		Entries:      c.store.ItemCount(),
	}
}

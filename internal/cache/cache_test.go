package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hurttlocker/filingintel/internal/errcode"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestCache(t *testing.T, opts Options) *Cache {
	t.Helper()
	c := New(opts)
	t.Cleanup(c.Close)
	return c
}

func TestGetOrComputeCoalesces(t *testing.T) {
	c := newTestCache(t, Options{})
	key := Key{DocumentID: "doc-1", Signature: "flags:all"}

	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(ctx context.Context) (any, error) {
		calls.Add(1)
		<-release
		return "result", nil
	}

	const callers = 16
	var wg sync.WaitGroup
	results := make([]any, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.GetOrCompute(context.Background(), key, compute)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	// Let every caller reach the flight before the computation finishes.
	require.Eventually(t, func() bool { return c.Stats().Misses == callers }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load())
	for _, v := range results {
		assert.Equal(t, "result", v)
	}
	st := c.Stats()
	assert.EqualValues(t, 1, st.Computations)
	assert.Equal(t, 1, st.Entries)

	v, err := c.GetOrCompute(context.Background(), key, compute)
	require.NoError(t, err)
	assert.Equal(t, "result", v)
	assert.EqualValues(t, 1, c.Stats().Hits)
}

func TestErrorsAreNotCached(t *testing.T) {
	c := newTestCache(t, Options{})
	key := Key{DocumentID: "doc-1", Signature: "s"}
	boom := errors.New("boom")

	_, err := c.GetOrCompute(context.Background(), key, func(context.Context) (any, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	v, err := c.GetOrCompute(context.Background(), key, func(context.Context) (any, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.EqualValues(t, 2, c.Stats().Computations)
}

func TestCallerAbandonDoesNotCancelComputation(t *testing.T) {
	c := newTestCache(t, Options{})
	key := Key{DocumentID: "doc-1", Signature: "s"}

	started := make(chan struct{})
	release := make(chan struct{})
	finished := make(chan error, 1)
	compute := func(ctx context.Context) (any, error) {
		close(started)
		select {
		case <-release:
		case <-ctx.Done():
		}
		finished <- ctx.Err()
		return "late", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := c.GetOrCompute(ctx, key, compute)
		errc <- err
	}()
	<-started
	cancel()
	err := <-errc
	assert.True(t, errcode.Is(err, errcode.Timeout), "err = %v", err)

	close(release)
	assert.NoError(t, <-finished, "shared computation saw the caller's cancellation")
	require.Eventually(t, func() bool {
		_, ok := c.Get(key)
		return ok
	}, time.Second, time.Millisecond)
}

func TestComputeTimeoutBoundsComputation(t *testing.T) {
	c := newTestCache(t, Options{ComputeTimeout: 20 * time.Millisecond})
	_, err := c.GetOrCompute(context.Background(), Key{DocumentID: "d"}, func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTTLExpiry(t *testing.T) {
	c := newTestCache(t, Options{TTL: 30 * time.Millisecond, SweepInterval: 10 * time.Millisecond})
	key := Key{DocumentID: "d", Signature: "s"}
	c.Set(key, "v")
	_, ok := c.Get(key)
	require.True(t, ok)

	require.Eventually(t, func() bool {
		_, ok := c.Get(key)
		return !ok
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return c.Stats().Entries == 0 }, time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 1, c.Stats().Evictions)
}

func TestCapacityEvictsOldestInserted(t *testing.T) {
	c := newTestCache(t, Options{Capacity: 3, SweepInterval: -1})
	for i := 0; i < 3; i++ {
		c.Set(Key{DocumentID: fmt.Sprintf("d%d", i)}, i)
	}
	// Reading d0 does not refresh it: eviction follows insertion order.
	_, ok := c.Get(Key{DocumentID: "d0"})
	require.True(t, ok)

	c.Set(Key{DocumentID: "d3"}, 3)
	_, ok = c.Get(Key{DocumentID: "d0"})
	assert.False(t, ok, "oldest entry survived")
	for _, id := range []string{"d1", "d2", "d3"} {
		_, ok := c.Get(Key{DocumentID: id})
		assert.True(t, ok, "%s evicted", id)
	}

	// Overwriting a live key does not evict anything.
	c.Set(Key{DocumentID: "d1"}, "again")
	assert.Equal(t, 3, c.Stats().Entries)
	assert.EqualValues(t, 1, c.Stats().Evictions)

	// d1 was re-inserted last, so d2 goes next.
	c.Set(Key{DocumentID: "d4"}, 4)
	_, ok = c.Get(Key{DocumentID: "d2"})
	assert.False(t, ok)
	_, ok = c.Get(Key{DocumentID: "d1"})
	assert.True(t, ok)
}

func TestDoTyped(t *testing.T) {
	c := newTestCache(t, Options{})
	key := Key{DocumentID: "d", Signature: "n"}
	n, err := Do(context.Background(), c, key, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	_, err = Do(context.Background(), c, key, func(context.Context) (string, error) { return "x", nil })
	assert.True(t, errcode.Is(err, errcode.Internal))
}

func TestDoIfSkipsRejectedResults(t *testing.T) {
	c := newTestCache(t, Options{})
	key := Key{DocumentID: "window:1@2025-03-04", Signature: "w"}
	complete := func(n int) bool { return n >= 0 }

	n, err := DoIf(context.Background(), c, key, func(context.Context) (int, error) { return -1, nil }, complete)
	require.NoError(t, err)
	assert.Equal(t, -1, n)
	_, ok := c.Get(key)
	assert.False(t, ok, "rejected result was stored")

	n, err = DoIf(context.Background(), c, key, func(context.Context) (int, error) { return 3, nil }, complete)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	v, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, 3, v)
	assert.EqualValues(t, 2, c.Stats().Computations)
}

func TestCloseIsIdempotent(t *testing.T) {
	c := New(Options{SweepInterval: time.Millisecond})
	c.Close()
	c.Close()
}

package query

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestCache(clock *fakeClock) *Cache {
	return NewCache(WithClock(clock.Now), WithDefaultStaleTime(time.Minute), WithFetchTimeout(5*time.Second))
}

// countingFetcher returns value after release is closed.
func countingFetcher(calls *atomic.Int32, release <-chan struct{}, value any) Fetcher {
	return func(ctx context.Context) (any, error) {
		calls.Add(1)
		if release != nil {
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return value, nil
	}
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, `["classes"]`, K("classes").String())
	assert.Equal(t, K("materials", 7).String(), K("materials", int64(7)).String())
	assert.NotEqual(t, K("materials", 7).String(), K("materials", "7").String())
	assert.True(t, K("materials", 7).HasPrefix(K("materials")))
	assert.False(t, K("materials").HasPrefix(K("materials", 7)))
}

func TestReadCoalescesConcurrentFetches(t *testing.T) {
	cache := newTestCache(newFakeClock())
	var calls atomic.Int32
	release := make(chan struct{})
	fetch := countingFetcher(&calls, release, []string{"a", "b"})
	key := K("classes")

	var wg sync.WaitGroup
	for _i := 0; _i < 20; _i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e := cache.Read(context.Background(), key, fetch, Options{})
			assert.Equal(t, StatusLoading, e.Status)
		}()
	}
	wg.Wait()
	close(release)

	entry, err := cache.Fetch(context.Background(), key, fetch, Options{})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, StatusSuccess, entry.Status)
	assert.Equal(t, []string{"a", "b"}, entry.Data)
}

func TestConcurrentFetchSharesResult(t *testing.T) {
	cache := newTestCache(newFakeClock())
	var calls atomic.Int32
	release := make(chan struct{})
	fetch := countingFetcher(&calls, release, 42)
	key := K("dashboard")

	results := make(chan Entry, 5)
	var wg sync.WaitGroup
	for _i := 0; _i < 5; _i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, err := cache.Fetch(context.Background(), key, fetch, Options{})
			assert.NoError(t, err)
			results <- e
		}()
	}
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()
	close(results)

	for e := range results {
		assert.Equal(t, 42, e.Data)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestFreshEntryIsNotRefetched(t *testing.T) {
	clock := newFakeClock()
	cache := newTestCache(clock)
	var calls atomic.Int32
	fetch := countingFetcher(&calls, nil, "v")
	key := K("subjects")

	_, err := cache.Fetch(context.Background(), key, fetch, Options{})
	require.NoError(t, err)
	clock.Advance(30 * time.Second)
	e := cache.Read(context.Background(), key, fetch, Options{})
	assert.False(t, e.Fetching)
	assert.Equal(t, int32(1), calls.Load())

	clock.Advance(31 * time.Second)
	_, err = cache.Fetch(context.Background(), key, fetch, Options{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOlderFetchDoesNotOverwriteNewer(t *testing.T) {
	cache := newTestCache(newFakeClock())
	key := K("classes")
	releaseA := make(chan struct{})
	startedA := make(chan struct{})
	fetchA := func(ctx context.Context) (any, error) {
		close(startedA)
		<-releaseA
		return "A", nil
	}
	fetchB := func(ctx context.Context) (any, error) { return "B", nil }

	doneA := make(chan struct{})
	go func() {
		defer close(doneA)
		_, _ = cache.Fetch(context.Background(), key, fetchA, Options{})
	}()
	<-startedA

	cache.Invalidate(key)
	e, err := cache.Fetch(context.Background(), key, fetchB, Options{})
	require.NoError(t, err)
	require.Equal(t, "B", e.Data)

	close(releaseA)
	<-doneA
	assert.Equal(t, "B", cache.Peek(key).Data)
}

func TestInvalidateTriggersRefetch(t *testing.T) {
	cache := newTestCache(newFakeClock())
	var calls atomic.Int32
	fetch := countingFetcher(&calls, nil, "v")
	key := K("classes")

	_, err := cache.Fetch(context.Background(), key, fetch, Options{StaleTime: time.Hour})
	require.NoError(t, err)

	cache.Invalidate(key)
	e := cache.Read(context.Background(), key, fetch, Options{StaleTime: time.Hour})
	assert.Equal(t, "v", e.Data, "data stays visible while refetching")
	assert.True(t, e.Fetching)

	_, err = cache.Fetch(context.Background(), key, fetch, Options{StaleTime: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.False(t, cache.Peek(key).Invalidated)
}

func TestInvalidatePrefix(t *testing.T) {
	cache := newTestCache(newFakeClock())
	cache.SetData(K("materials", 1), "m1")
	cache.SetData(K("materials", 2), "m2")
	cache.SetData(K("classes"), "c")

	keys := cache.InvalidatePrefix(K("materials"))
	assert.Len(t, keys, 2)
	assert.True(t, cache.Peek(K("materials", 1)).Invalidated)
	assert.False(t, cache.Peek(K("classes")).Invalidated)
}

func TestResubscribingDoesNotAddFetches(t *testing.T) {
	cache := newTestCache(newFakeClock())
	var calls atomic.Int32
	release := make(chan struct{})
	fetch := countingFetcher(&calls, release, "v")
	key := K("classes")

	var unsubs []func()
	for _i := 0; _i < 4; _i++ {
		_, unsub := cache.Watch(context.Background(), key, fetch, Options{}, func(Entry) {})
		unsubs = append(unsubs, unsub)
	}
	for _, unsub := range unsubs[:3] {
		unsub()
	}
	_, unsub := cache.Watch(context.Background(), key, fetch, Options{}, func(Entry) {})
	defer unsub()
	defer unsubs[3]()

	close(release)
	_, err := cache.Fetch(context.Background(), key, fetch, Options{})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDisabledReadStaysIdle(t *testing.T) {
	cache := newTestCache(newFakeClock())
	var calls atomic.Int32
	fetch := countingFetcher(&calls, nil, "v")

	e := cache.Read(context.Background(), K("materials", 0), fetch, EnabledIf(false))
	assert.Equal(t, StatusIdle, e.Status)
	assert.Nil(t, e.Data)

	e, err := cache.Fetch(context.Background(), K("materials", 0), fetch, EnabledIf(false))
	require.NoError(t, err)
	assert.Equal(t, StatusIdle, e.Status)
	assert.Equal(t, int32(0), calls.Load())
}

func TestFetchErrorKeepsData(t *testing.T) {
	clock := newFakeClock()
	cache := newTestCache(clock)
	key := K("classes")
	boom := errors.New("connection refused")

	_, err := cache.Fetch(context.Background(), key, func(context.Context) (any, error) { return "v1", nil }, Options{})
	require.NoError(t, err)
	updated := cache.Peek(key).LastUpdated

	clock.Advance(2 * time.Minute)
	e, err := cache.Fetch(context.Background(), key, func(context.Context) (any, error) { return nil, boom }, Options{})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, StatusError, e.Status)
	assert.Equal(t, "v1", e.Data)
	assert.Equal(t, updated, e.LastUpdated)
	assert.ErrorIs(t, e.Err, boom)
}

func TestFetcherPanicBecomesError(t *testing.T) {
	cache := newTestCache(newFakeClock())
	e, err := cache.Fetch(context.Background(), K("x"), func(context.Context) (any, error) { panic("bad") }, Options{})
	require.Error(t, err)
	assert.Equal(t, StatusError, e.Status)
}

func TestRefetchUsesRegisteredFetcher(t *testing.T) {
	cache := newTestCache(newFakeClock())
	var calls atomic.Int32
	fetch := countingFetcher(&calls, nil, "v")
	key := K("classes")

	_, err := cache.Refetch(context.Background(), key)
	require.ErrorIs(t, err, ErrNoFetcher)

	_, err = cache.Fetch(context.Background(), key, fetch, Options{StaleTime: time.Hour})
	require.NoError(t, err)
	_, err = cache.Refetch(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSubscribersNotifiedOnlyForTheirKey(t *testing.T) {
	cache := newTestCache(newFakeClock())
	var classes, subjects []Entry
	defer cache.Subscribe(K("classes"), func(e Entry) { classes = append(classes, e) })()
	defer cache.Subscribe(K("subjects"), func(e Entry) { subjects = append(subjects, e) })()

	cache.SetData(K("classes"), "c")
	cache.Invalidate(K("classes"))

	require.Len(t, classes, 1)
	assert.Equal(t, "c", classes[0].Data)
	assert.Empty(t, subjects)
}

func TestUnsubscribedCallbackIsNotInvoked(t *testing.T) {
	cache := newTestCache(newFakeClock())
	var calls atomic.Int32
	release := make(chan struct{})
	key := K("classes")
	fetch := countingFetcher(&calls, release, "v")

	var notified atomic.Int32
	_, unsub := cache.Watch(context.Background(), key, fetch, Options{}, func(Entry) { notified.Add(1) })
	before := notified.Load()
	unsub()
	unsub()

	close(release)
	_, err := cache.Fetch(context.Background(), key, fetch, Options{})
	require.NoError(t, err)
	assert.Equal(t, before, notified.Load())
	assert.Equal(t, "v", cache.Peek(key).Data, "fetch still warms the cache")
}

func TestCallbackMayReadFromCache(t *testing.T) {
	cache := newTestCache(newFakeClock())
	var seen []any
	defer cache.Subscribe(K("classes"), func(e Entry) {
		seen = append(seen, cache.Peek(K("classes")).Data)
		cache.Read(context.Background(), K("subjects"), func(context.Context) (any, error) { return "s", nil }, Options{})
	})()

	cache.SetData(K("classes"), "c")
	assert.Equal(t, []any{"c"}, seen)
}

func TestOptimisticAndRestore(t *testing.T) {
	cache := newTestCache(newFakeClock())
	key := K("classes")
	cache.SetData(key, []int{1, 2})

	var seen []Entry
	defer cache.Subscribe(key, func(e Entry) { seen = append(seen, e) })()

	snap := cache.Optimistic(key, func(cur any) any {
		return append(append([]int(nil), cur.([]int)...), -1)
	})
	require.Len(t, seen, 1)
	assert.Equal(t, []int{1, 2, -1}, seen[0].Data)

	cache.Restore(snap)
	require.Len(t, seen, 2)
	assert.Equal(t, []int{1, 2}, cache.Peek(key).Data)
}

func TestRestoreSkippedAfterReset(t *testing.T) {
	cache := newTestCache(newFakeClock())
	key := K("classes")
	cache.SetData(key, "secret")
	defer cache.Subscribe(key, func(Entry) {})()

	snap := cache.Optimistic(key, func(any) any { return "draft" })
	cache.Reset()
	cache.Restore(snap)

	e := cache.Peek(key)
	assert.Nil(t, e.Data)
	assert.Equal(t, StatusIdle, e.Status)
}

func TestRestoreSkippedAfterRemove(t *testing.T) {
	cache := newTestCache(newFakeClock())
	classes, subjects := K("classes"), K("subjects")
	cache.SetData(classes, "c")
	cache.SetData(subjects, "s")

	classSnap := cache.Optimistic(classes, func(any) any { return "c2" })
	subjectSnap := cache.Optimistic(subjects, func(any) any { return "s2" })
	cache.Remove(classes)

	cache.Restore(classSnap)
	cache.Restore(subjectSnap)
	assert.Nil(t, cache.Peek(classes).Data)
	assert.Equal(t, "s", cache.Peek(subjects).Data)
}

func TestRestoreOfLoadingEntryIsIdle(t *testing.T) {
	cache := newTestCache(newFakeClock())
	key := K("classes")
	release := make(chan struct{})
	defer close(release)
	var calls atomic.Int32
	fetch := countingFetcher(&calls, release, "server")

	e := cache.Read(context.Background(), key, fetch, Options{})
	require.Equal(t, StatusLoading, e.Status)
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	snap := cache.Optimistic(key, func(any) any { return "local" })
	assert.Equal(t, StatusLoading, snap.Entry.Status)
	cache.Restore(snap)

	got := cache.Peek(key)
	assert.Equal(t, StatusIdle, got.Status)
	assert.Nil(t, got.Data)
}

func TestOptimisticWriteDiscardsInFlightFetch(t *testing.T) {
	cache := newTestCache(newFakeClock())
	key := K("classes")
	release := make(chan struct{})
	var calls atomic.Int32
	fetch := countingFetcher(&calls, release, "server")

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = cache.Fetch(context.Background(), key, fetch, Options{})
	}()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	cache.Optimistic(key, func(any) any { return "local" })
	close(release)
	<-done
	assert.Equal(t, "local", cache.Peek(key).Data)
}

func TestHoldBlocksFetches(t *testing.T) {
	cache := newTestCache(newFakeClock())
	var calls atomic.Int32
	fetch := countingFetcher(&calls, nil, "v")
	key := K("classes")

	release := cache.Hold(key)
	e := cache.Read(context.Background(), key, fetch, Options{})
	assert.False(t, e.Fetching)
	release()
	release()

	_, err := cache.Fetch(context.Background(), key, fetch, Options{})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestResetKeepsSubscriptions(t *testing.T) {
	cache := newTestCache(newFakeClock())
	var last Entry
	defer cache.Subscribe(K("classes"), func(e Entry) { last = e })()
	cache.SetData(K("classes"), "c")
	cache.SetData(K("subjects"), "s")

	cache.Reset()
	assert.Equal(t, StatusIdle, last.Status)
	assert.Nil(t, last.Data)
	assert.Equal(t, []Key{K("classes")}, cache.Keys())
}

func TestRevalidateActive(t *testing.T) {
	clock := newFakeClock()
	cache := newTestCache(clock)
	var calls atomic.Int32
	fetch := countingFetcher(&calls, nil, "v")

	_, unsub := cache.Watch(context.Background(), K("classes"), fetch, Options{}, func(Entry) {})
	defer unsub()
	_, err := cache.Fetch(context.Background(), K("subjects"), fetch, Options{})
	require.NoError(t, err)
	_, err = cache.Fetch(context.Background(), K("classes"), fetch, Options{})
	require.NoError(t, err)

	assert.Equal(t, 0, cache.RevalidateActive(context.Background()))
	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, cache.RevalidateActive(context.Background()))
	_, err = cache.Fetch(context.Background(), K("classes"), fetch, Options{})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

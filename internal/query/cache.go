package query

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/five82/roster/internal/logging"
)

const (
	defaultStaleTime    = 30 * time.Second
	defaultFetchTimeout = 30 * time.Second
)

// ErrNoFetcher is returned by Refetch for keys that were never read.
var ErrNoFetcher = errors.New("query: key has no registered fetcher")

// Cache deduplicates and caches reads keyed by Key. Construct one per
// application (or per test) with NewCache; the zero value is not usable.
type Cache struct {
	mu           sync.Mutex
	slots        map[string]*slot
	nextSub      uint64
	now          func() time.Time
	staleTime    time.Duration
	fetchTimeout time.Duration
	log          logging.Logger

	// epoch counts Reset and Remove calls. A Snapshot older than the last
	// clear of its key is not restored.
	epoch     uint64
	resetAt   uint64
	removedAt map[string]uint64
}

// slot is the mutable state behind one key. Guarded by Cache.mu.
type slot struct {
	entry   Entry
	fetcher Fetcher
	call    *call

	// issued is the last generation handed to a fetch or write. Completions
	// at or below floor are discarded.
	issued uint64
	floor  uint64

	holds int
	subs  map[uint64]*subscription
}

// call is one in-flight fetch. Waiters block on done.
type call struct {
	gen   uint64
	done  chan struct{}
	entry Entry
	err   error
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithDefaultStaleTime sets the freshness window used when a read does not
// specify one.
func WithDefaultStaleTime(d time.Duration) CacheOption {
	return func(c *Cache) { c.staleTime = d }
}

// WithFetchTimeout bounds background fetches, which otherwise outlive the
// context of the read that started them.
func WithFetchTimeout(d time.Duration) CacheOption {
	return func(c *Cache) { c.fetchTimeout = d }
}

// WithLogger sets the cache logger.
func WithLogger(l logging.Logger) CacheOption {
	return func(c *Cache) { c.log = logging.OrDiscard(l) }
}

// NewCache returns an empty cache.
func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{
		slots:        make(map[string]*slot),
		now:          time.Now,
		staleTime:    defaultStaleTime,
		fetchTimeout: defaultFetchTimeout,
		log:          logging.Discard,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Peek returns the entry for key without triggering a fetch.
func (c *Cache) Peek(key Key) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.slots[key.String()]; ok {
		return s.entry
	}
	return Entry{Key: key}
}

// Read returns the current entry for key immediately and starts a background
// fetch when the entry is missing or stale and none is in flight. Concurrent
// reads of the same key share one fetch.
func (c *Cache) Read(ctx context.Context, key Key, fetch Fetcher, opts Options) Entry {
	if opts.Disabled || fetch == nil {
		return c.Peek(key)
	}
	c.mu.Lock()
	s := c.register(key, fetch, opts)
	var out []delivery
	if c.shouldFetch(s) {
		_, out = c.start(ctx, key, s)
	}
	e := s.entry
	c.mu.Unlock()
	deliver(out)
	return e
}

// Fetch is the blocking form of Read: it waits for the in-flight or newly
// started fetch and returns the settled entry with that fetch's error. A
// fresh entry is returned without network traffic. Cancelling ctx stops the
// wait, not the fetch.
func (c *Cache) Fetch(ctx context.Context, key Key, fetch Fetcher, opts Options) (Entry, error) {
	if opts.Disabled || fetch == nil {
		return c.Peek(key), nil
	}
	c.mu.Lock()
	s := c.register(key, fetch, opts)
	cl := s.call
	var out []delivery
	if cl == nil {
		if !c.shouldFetch(s) {
			e := s.entry
			c.mu.Unlock()
			return e, entryErr(e)
		}
		cl, out = c.start(ctx, key, s)
	}
	c.mu.Unlock()
	deliver(out)
	return c.wait(ctx, key, cl)
}

// Refetch starts a new fetch for key with the last registered fetcher, even
// when the entry is fresh, and waits for it. A fetch already in flight since
// the last invalidation is joined instead.
func (c *Cache) Refetch(ctx context.Context, key Key) (Entry, error) {
	c.mu.Lock()
	s, ok := c.slots[key.String()]
	if !ok || s.fetcher == nil {
		c.mu.Unlock()
		return Entry{Key: key}, fmt.Errorf("refetch %s: %w", key, ErrNoFetcher)
	}
	if s.holds > 0 {
		e := s.entry
		c.mu.Unlock()
		return e, nil
	}
	cl := s.call
	var out []delivery
	if cl == nil {
		cl, out = c.start(ctx, key, s)
	}
	c.mu.Unlock()
	deliver(out)
	return c.wait(ctx, key, cl)
}

// Invalidate marks key stale so the next read refetches. The data stays
// visible. A fetch in flight is detached and its result discarded.
func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.slots[key.String()]; ok {
		c.invalidate(s)
	}
}

// InvalidatePrefix invalidates every key starting with prefix and returns
// the affected keys.
func (c *Cache) InvalidatePrefix(prefix Key) []Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	var keys []Key
	for _, s := range c.slots {
		if s.entry.Key.HasPrefix(prefix) {
			c.invalidate(s)
			keys = append(keys, s.entry.Key)
		}
	}
	return keys
}

func (c *Cache) invalidate(s *slot) {
	s.entry.Invalidated = true
	c.supersede(s)
}

// supersede discards every fetch issued so far for the slot.
func (c *Cache) supersede(s *slot) {
	s.floor = s.issued
	s.call = nil
	s.entry.Fetching = false
}

// SetData stores server-confirmed data for key as a successful result.
func (c *Cache) SetData(key Key, data any) {
	c.mu.Lock()
	s := c.slot(key)
	s.issued++
	c.supersede(s)
	s.entry.Data = data
	s.entry.Status = StatusSuccess
	s.entry.Err = nil
	s.entry.Invalidated = false
	s.entry.LastUpdated = c.now()
	out := c.changed(s)
	c.mu.Unlock()
	deliver(out)
}

// Remove drops the data of key. Subscribers see an idle entry.
func (c *Cache) Remove(key Key) {
	c.mu.Lock()
	s, ok := c.slots[key.String()]
	if !ok {
		c.mu.Unlock()
		return
	}
	var out []delivery
	c.epoch++
	if c.removedAt == nil {
		c.removedAt = make(map[string]uint64)
	}
	c.removedAt[key.String()] = c.epoch
	c.supersede(s)
	if len(s.subs) == 0 && s.holds == 0 {
		delete(c.slots, key.String())
	} else {
		c.clear(s)
		out = c.changed(s)
	}
	c.mu.Unlock()
	deliver(out)
}

// Reset drops all cached data, e.g. on sign-out. Subscriptions and
// registered fetchers survive.
func (c *Cache) Reset() {
	c.mu.Lock()
	var out []delivery
	c.epoch++
	c.resetAt = c.epoch
	c.removedAt = nil
	for id, s := range c.slots {
		c.supersede(s)
		if len(s.subs) == 0 && s.holds == 0 {
			delete(c.slots, id)
			continue
		}
		c.clear(s)
		out = append(out, c.changed(s)...)
	}
	c.mu.Unlock()
	deliver(out)
}

func (c *Cache) clear(s *slot) {
	s.entry.Data = nil
	s.entry.Status = StatusIdle
	s.entry.Err = nil
	s.entry.LastUpdated = time.Time{}
	s.entry.Invalidated = false
}

// RevalidateActive starts background fetches for subscribed keys whose
// entries are stale and returns how many were started.
func (c *Cache) RevalidateActive(ctx context.Context) int {
	c.mu.Lock()
	var out []delivery
	started := 0
	for _, s := range c.slots {
		if len(s.subs) == 0 || s.fetcher == nil || !c.shouldFetch(s) {
			continue
		}
		_, d := c.start(ctx, s.entry.Key, s)
		out = append(out, d...)
		started++
	}
	c.mu.Unlock()
	deliver(out)
	return started
}

// ActiveKeys lists keys with at least one subscriber.
func (c *Cache) ActiveKeys() []Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	var keys []Key
	for _, s := range c.slots {
		if len(s.subs) > 0 {
			keys = append(keys, s.entry.Key)
		}
	}
	return keys
}

func (c *Cache) slot(key Key) *slot {
	id := key.String()
	s, ok := c.slots[id]
	if !ok {
		s = &slot{entry: Entry{Key: key, StaleAfter: c.staleTime}}
		c.slots[id] = s
	}
	return s
}

func (c *Cache) register(key Key, fetch Fetcher, opts Options) *slot {
	s := c.slot(key)
	s.fetcher = fetch
	s.entry.StaleAfter = c.staleTime
	if opts.StaleTime != 0 {
		s.entry.StaleAfter = opts.StaleTime
	}
	return s
}

func (c *Cache) shouldFetch(s *slot) bool {
	if s.call != nil || s.holds > 0 {
		return false
	}
	return s.entry.Status == StatusIdle || s.entry.IsStale(c.now())
}

// start attaches a new call to the slot and runs it in the background.
func (c *Cache) start(ctx context.Context, key Key, s *slot) (*call, []delivery) {
	s.issued++
	cl := &call{gen: s.issued, done: make(chan struct{})}
	s.call = cl
	s.entry.Fetching = true

	var out []delivery
	if !s.entry.HasData() && s.entry.Status != StatusLoading {
		s.entry.Status = StatusLoading
		s.entry.Err = nil
		out = c.changed(s)
	}

	fetch := s.fetcher
	fctx := context.WithoutCancel(ctx)
	c.log.Debugf("query: fetch %s gen=%d", key, cl.gen)
	go func() {
		var cancel context.CancelFunc = func() {}
		if c.fetchTimeout > 0 {
			fctx, cancel = context.WithTimeout(fctx, c.fetchTimeout)
		}
		defer cancel()
		data, err := runFetch(fctx, fetch)
		c.complete(key, s, cl, data, err)
	}()
	return cl, out
}

func runFetch(ctx context.Context, fetch Fetcher) (data any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("query: fetcher panicked: %v", r)
		}
	}()
	return fetch(ctx)
}

// complete applies a settled fetch unless a newer write already landed.
func (c *Cache) complete(key Key, s *slot, cl *call, data any, err error) {
	c.mu.Lock()
	if s.call == cl {
		s.call = nil
		s.entry.Fetching = false
	}
	var out []delivery
	current := c.slots[key.String()] == s
	if current && cl.gen > s.floor {
		s.floor = cl.gen
		if err != nil {
			s.entry.Status = StatusError
			s.entry.Err = err
			c.log.Warnf("query: fetch %s failed: %v", key, err)
		} else {
			s.entry.Data = data
			s.entry.Status = StatusSuccess
			s.entry.Err = nil
			s.entry.LastUpdated = c.now()
			s.entry.Invalidated = false
		}
		out = c.changed(s)
	} else {
		c.log.Debugf("query: discard %s gen=%d floor=%d", key, cl.gen, s.floor)
	}
	cl.entry = s.entry
	cl.err = err
	c.mu.Unlock()

	close(cl.done)
	deliver(out)
}

func (c *Cache) wait(ctx context.Context, key Key, cl *call) (Entry, error) {
	select {
	case <-cl.done:
		return cl.entry, cl.err
	case <-ctx.Done():
		return c.Peek(key), ctx.Err()
	}
}

func entryErr(e Entry) error {
	if e.Status == StatusError {
		return e.Err
	}
	return nil
}

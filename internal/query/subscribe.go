package query

import (
	"context"
	"sync/atomic"
)

type subscription struct {
	fn     func(Entry)
	active atomic.Bool
	last   atomic.Uint64
}

type delivery struct {
	sub   *subscription
	entry Entry
}

// changed bumps the slot version and collects one delivery per subscriber.
// Callers hold c.mu and pass the result to deliver after unlocking.
func (c *Cache) changed(s *slot) []delivery {
	s.entry.Version++
	if len(s.subs) == 0 {
		return nil
	}
	out := make([]delivery, 0, len(s.subs))
	for _, sub := range s.subs {
		out = append(out, delivery{sub: sub, entry: s.entry})
	}
	return out
}

func deliver(out []delivery) {
	for _, d := range out {
		d.sub.notify(d.entry)
	}
}

// notify drops deliveries older than one already seen, so a subscriber
// never observes versions going backwards.
func (s *subscription) notify(e Entry) {
	for {
		if !s.active.Load() {
			return
		}
		last := s.last.Load()
		if e.Version <= last {
			return
		}
		if s.last.CompareAndSwap(last, e.Version) {
			break
		}
	}
	s.fn(e)
}

// Subscribe registers fn for changes to key and returns the function that
// removes it. fn runs on the goroutine that caused the change, outside the
// cache lock, so it may call back into the cache. Subscribing does not fetch.
func (c *Cache) Subscribe(key Key, fn func(Entry)) (unsubscribe func()) {
	sub := &subscription{fn: fn}
	sub.active.Store(true)

	c.mu.Lock()
	s := c.slot(key)
	if s.subs == nil {
		s.subs = make(map[uint64]*subscription)
	}
	c.nextSub++
	id := c.nextSub
	s.subs[id] = sub
	sub.last.Store(s.entry.Version)
	c.mu.Unlock()

	return func() {
		if !sub.active.Swap(false) {
			return
		}
		c.mu.Lock()
		if cur, ok := c.slots[key.String()]; ok {
			delete(cur.subs, id)
		}
		c.mu.Unlock()
	}
}

// Watch subscribes to key and reads it, returning the current entry and the
// unsubscribe function. Later states arrive through fn.
func (c *Cache) Watch(ctx context.Context, key Key, fetch Fetcher, opts Options, fn func(Entry)) (Entry, func()) {
	unsubscribe := c.Subscribe(key, fn)
	return c.Read(ctx, key, fetch, opts), unsubscribe
}

package query

import (
	"sort"
	"sync"
)

// Snapshot is the state of one key captured before a local write.
type Snapshot struct {
	Key     Key
	Entry   Entry
	Existed bool

	epoch uint64
}

// Snapshot captures the current state of key.
func (c *Cache) Snapshot(key Key) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.slots[key.String()]
	if !ok {
		return Snapshot{Key: key, Entry: Entry{Key: key}, epoch: c.epoch}
	}
	return Snapshot{Key: key, Entry: s.entry, Existed: true, epoch: c.epoch}
}

// Optimistic snapshots key, replaces its data with apply(current) and
// notifies subscribers before returning. Fetches issued earlier for the key
// are discarded when they settle.
func (c *Cache) Optimistic(key Key, apply func(current any) any) Snapshot {
	c.mu.Lock()
	existing, existed := c.slots[key.String()]
	s := existing
	if !existed {
		s = c.slot(key)
	}
	snap := Snapshot{Key: key, Entry: s.entry, Existed: existed, epoch: c.epoch}
	s.issued++
	c.supersede(s)
	s.entry.Data = apply(s.entry.Data)
	s.entry.Status = StatusSuccess
	s.entry.Err = nil
	out := c.changed(s)
	c.mu.Unlock()
	deliver(out)
	return snap
}

// Restore writes a snapshot back and notifies subscribers once. A snapshot
// taken before the key was last cleared by Reset or Remove is dropped, so a
// rollback cannot bring back data from before a sign-out. A loading entry
// comes back idle since its fetch was discarded.
func (c *Cache) Restore(snap Snapshot) {
	c.mu.Lock()
	if c.clearedSince(snap) {
		c.mu.Unlock()
		return
	}
	s := c.slot(snap.Key)
	s.issued++
	c.supersede(s)
	prev := snap.Entry
	s.entry.Data = prev.Data
	s.entry.Status = prev.Status
	if s.entry.Status == StatusLoading {
		s.entry.Status = StatusIdle
	}
	s.entry.Err = prev.Err
	s.entry.LastUpdated = prev.LastUpdated
	s.entry.Invalidated = prev.Invalidated
	var out []delivery
	if !snap.Existed && len(s.subs) == 0 && s.holds == 0 && s.fetcher == nil {
		delete(c.slots, snap.Key.String())
	} else {
		out = c.changed(s)
	}
	c.mu.Unlock()
	deliver(out)
}

func (c *Cache) clearedSince(snap Snapshot) bool {
	return c.resetAt > snap.epoch || c.removedAt[snap.Key.String()] > snap.epoch
}

// Hold blocks fetches for keys until release is called. Holds nest.
func (c *Cache) Hold(keys ...Key) (release func()) {
	c.mu.Lock()
	held := make([]*slot, 0, len(keys))
	for _, k := range keys {
		s := c.slot(k)
		s.holds++
		held = append(held, s)
	}
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			for _, s := range held {
				s.holds--
			}
			c.mu.Unlock()
		})
	}
}

// Keys lists every key with a slot, sorted by canonical form.
func (c *Cache) Keys() []Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.slots))
	for id := range c.slots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	keys := make([]Key, len(ids))
	for i, id := range ids {
		keys[i] = c.slots[id].entry.Key
	}
	return keys
}

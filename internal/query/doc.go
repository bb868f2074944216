// Package query implements the read side of the data-sync layer: a keyed
// cache that deduplicates fetches, tracks freshness and notifies
// subscribers when an entry changes.
//
// # Reads
//
// Read returns the current Entry at once and starts a fetch in the
// background when the entry is idle or stale. Fetch does the same and waits
// for the result. Concurrent reads of one key share a single in-flight call.
// A read with Options.Disabled never touches the network and returns the
// entry as it is, idle when nothing was cached.
//
// # Ordering
//
// Each fetch and each local write takes the next generation number of its
// key. A fetch result is applied only when its generation is newer than the
// last applied one, so a slow response cannot overwrite fresher data or an
// optimistic write.
//
// # Errors
//
// A failed fetch sets StatusError and keeps the previous Data. Nothing is
// retried automatically; the next stale read or Refetch tries again.
//
// # Writes
//
// The mutation layer writes through Optimistic, Restore, SetData and
// Invalidate, and uses Hold to keep reads from refetching a key while a
// mutation on it is pending.
//
// # Subscriptions
//
// Subscribe registers a callback per key. Callbacks run outside the cache
// lock on the goroutine that caused the change and fire only when the
// entry's Version moves.
package query

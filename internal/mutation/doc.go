// Package mutation implements the write side of the data-sync layer.
//
// A Def names the request, the optimistic cache writes to apply before it
// is sent and the keys it affects. Mutate runs the sequence:
//
//  1. Validate the input; a failure returns without touching the cache.
//  2. Lock every key the call touches. Calls sharing a key are serialized,
//     so the second call snapshots the state the first one left behind.
//  3. Snapshot and apply the optimistic writes. Subscribers see them
//     before the request goes out.
//  4. Send the request.
//  5. Reconcile: on failure restore the snapshots, notifying each
//     subscriber once; on success invalidate the affected keys and, when
//     Refetch is set, wait for them to load again.
//
// Reconcile is a pure function of the snapshots and the outcome, so the
// rollback rules can be tested without a cache.
//
// Results come back as Result values rather than callbacks.
package mutation

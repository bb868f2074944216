package mutation

import "github.com/five82/roster/internal/query"

// Plan is the cache work that settles a mutation.
type Plan struct {
	// Restore holds the snapshots to write back, at most one per key.
	Restore []query.Snapshot
	// Invalidate lists keys to mark stale so reads converge on server data.
	Invalidate []query.Key
	// Refetch asks for Invalidate keys to be fetched before the mutation
	// returns.
	Refetch bool
}

// Reconcile decides what to do with the cache once a mutation settles. On
// failure every optimistic write is rolled back to the state captured
// before the first write to that key and nothing is invalidated. On success
// the snapshots are dropped and the affected and optimistically written
// keys are invalidated.
func Reconcile(snapshots []query.Snapshot, affected []query.Key, err error, refetch bool) Plan {
	if err != nil {
		seen := make(map[string]bool, len(snapshots))
		var restore []query.Snapshot
		for _, s := range snapshots {
			id := s.Key.String()
			if seen[id] {
				continue
			}
			seen[id] = true
			restore = append(restore, s)
		}
		return Plan{Restore: restore}
	}

	keys := make([]query.Key, 0, len(affected)+len(snapshots))
	keys = append(keys, affected...)
	for _, s := range snapshots {
		keys = append(keys, s.Key)
	}
	return Plan{Invalidate: uniqueKeys(keys), Refetch: refetch}
}

func uniqueKeys(keys []query.Key) []query.Key {
	seen := make(map[string]bool, len(keys))
	out := keys[:0:0]
	for _, k := range keys {
		id := k.String()
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, k)
	}
	return out
}

package mutation

import (
	"context"
	"sort"
	"sync"

	"github.com/five82/roster/internal/query"
)

// keyLocks serializes mutations per cache key. Locks are taken in canonical
// key order so overlapping key sets cannot deadlock.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[string]*keyLock)}
}

// acquire blocks until every key is held or ctx is done.
func (l *keyLocks) acquire(ctx context.Context, keys []query.Key) (release func(), err error) {
	ids := make([]string, 0, len(keys))
	for _, k := range uniqueKeys(keys) {
		ids = append(ids, k.String())
	}
	sort.Strings(ids)

	held := make([]string, 0, len(ids))
	releaseAll := func() {
		for i := len(held) - 1; i >= 0; i-- {
			l.unlock(held[i])
		}
	}
	for _, id := range ids {
		if err := l.lock(ctx, id); err != nil {
			releaseAll()
			return nil, err
		}
		held = append(held, id)
	}
	var once sync.Once
	return func() { once.Do(releaseAll) }, nil
}

func (l *keyLocks) lock(ctx context.Context, id string) error {
	l.mu.Lock()
	kl, ok := l.locks[id]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[id] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.drop(id, kl)
		return ctx.Err()
	}
}

func (l *keyLocks) unlock(id string) {
	l.mu.Lock()
	kl := l.locks[id]
	l.mu.Unlock()
	<-kl.ch
	l.drop(id, kl)
}

func (l *keyLocks) drop(id string, kl *keyLock) {
	l.mu.Lock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, id)
	}
	l.mu.Unlock()
}

package ui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/roster/internal/query"
)

// watcher turns cache notifications into Bubble Tea messages. Callbacks
// only raise a signal; the model re-reads the cache when it handles the
// resulting changeMsg, so coalescing several notifications loses nothing.
type watcher struct {
	ctx    context.Context
	signal chan struct{}

	mu     sync.Mutex
	unsubs map[string]func()
}

type changeMsg struct{}

func newWatcher(ctx context.Context) *watcher {
	return &watcher{
		ctx:    ctx,
		signal: make(chan struct{}, 1),
		unsubs: make(map[string]func()),
	}
}

func (w *watcher) notify(query.Entry) {
	select {
	case w.signal <- struct{}{}:
	default:
	}
}

// add subscribes to key once. watch performs the subscription and returns
// its unsubscribe func.
func (w *watcher) add(key query.Key, watch func(fn func(query.Entry)) func()) {
	id := key.String()
	w.mu.Lock()
	_, ok := w.unsubs[id]
	w.mu.Unlock()
	if ok {
		return
	}
	unsub := watch(w.notify)
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.unsubs[id]; ok {
		unsub()
		return
	}
	w.unsubs[id] = unsub
}

func (w *watcher) drop(key query.Key) {
	w.mu.Lock()
	unsub, ok := w.unsubs[key.String()]
	delete(w.unsubs, key.String())
	w.mu.Unlock()
	if ok {
		unsub()
	}
}

func (w *watcher) close() {
	w.mu.Lock()
	unsubs := w.unsubs
	w.unsubs = make(map[string]func())
	w.mu.Unlock()
	for _, unsub := range unsubs {
		unsub()
	}
}

// wait blocks until the next notification.
func (w *watcher) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-w.signal:
			return changeMsg{}
		case <-w.ctx.Done():
			return nil
		}
	}
}

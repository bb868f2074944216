package mutation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/roster/internal/query"
)

type class struct {
	ID   int64
	Name string
}

// fakeServer stands in for the classes endpoint.
type fakeServer struct {
	mu      sync.Mutex
	classes []class
	nextID  int64
	fail    error
	lists   atomic.Int32
}

func (s *fakeServer) list(context.Context) ([]class, error) {
	s.lists.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]class(nil), s.classes...), nil
}

func (s *fakeServer) create(_ context.Context, name string) (class, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return class{}, s.fail
	}
	c := class{ID: s.nextID, Name: name}
	s.nextID++
	s.classes = append(s.classes, c)
	return c, nil
}

var classesKey = query.K("classes")

func createClass(srv *fakeServer, refetch bool) Def[string, class] {
	return Def[string, class]{
		Name: "create-class",
		Do:   srv.create,
		Validate: func(name string) error {
			if name == "" {
				return errors.New("className: this field is required")
			}
			return nil
		},
		Optimistic: []Optimistic[string]{{
			Key: func(string) query.Key { return classesKey },
			Apply: func(cur any, name string) any {
				return Append(cur, class{ID: PlaceholderID(), Name: name})
			},
		}},
		Affected: func(string) []query.Key { return []query.Key{classesKey} },
		Refetch:  refetch,
	}
}

func seed(t *testing.T, cache *query.Cache, srv *fakeServer) {
	t.Helper()
	_, err := cache.Fetch(context.Background(), classesKey, query.FetcherOf(srv.list), query.Options{})
	require.NoError(t, err)
}

func TestCreateReplacesPlaceholderWithServerItem(t *testing.T) {
	cache := query.NewCache()
	srv := &fakeServer{classes: []class{{ID: 41, Name: "Lý 11"}}, nextID: 42}
	seed(t, cache, srv)
	runner := NewRunner(cache)

	var seen [][]class
	defer cache.Subscribe(classesKey, func(e query.Entry) {
		list, _ := query.Value[[]class](e)
		seen = append(seen, list)
	})()

	res := New(runner, createClass(srv, true)).Mutate(context.Background(), "Math 10")
	require.True(t, res.Ok(), "%v", res.Err())
	assert.Equal(t, int64(42), res.Value().ID)

	require.NotEmpty(t, seen)
	optimistic := seen[0]
	require.Len(t, optimistic, 2)
	assert.True(t, IsPlaceholder(optimistic[1].ID))

	final, ok := query.Value[[]class](cache.Peek(classesKey))
	require.True(t, ok)
	assert.Equal(t, []class{{ID: 41, Name: "Lý 11"}, {ID: 42, Name: "Math 10"}}, final)
	for _, c := range final {
		assert.False(t, IsPlaceholder(c.ID))
	}
	assert.Equal(t, int32(2), srv.lists.Load())
	assert.Empty(t, runner.Pending())
}

func TestFailedMutationRollsBackOnce(t *testing.T) {
	cache := query.NewCache()
	srv := &fakeServer{classes: []class{{ID: 1, Name: "Hóa 10"}}, fail: errors.New("503 service unavailable")}
	seed(t, cache, srv)
	before := cache.Peek(classesKey)

	var notified []query.Entry
	defer cache.Subscribe(classesKey, func(e query.Entry) { notified = append(notified, e) })()

	res := New(NewRunner(cache), createClass(srv, true)).Mutate(context.Background(), "Math 10")
	require.False(t, res.Ok())
	assert.EqualError(t, res.Err(), "503 service unavailable")

	require.Len(t, notified, 2, "one optimistic write, one rollback")
	assert.Equal(t, before.Data, notified[1].Data)
	after := cache.Peek(classesKey)
	assert.Equal(t, before.Data, after.Data)
	assert.False(t, after.Invalidated)
	assert.Equal(t, int32(1), srv.lists.Load())
}

func TestValidationFailureLeavesCacheUntouched(t *testing.T) {
	cache := query.NewCache()
	srv := &fakeServer{nextID: 1}
	seed(t, cache, srv)

	var notified atomic.Int32
	defer cache.Subscribe(classesKey, func(query.Entry) { notified.Add(1) })()

	res := New(NewRunner(cache), createClass(srv, false)).Mutate(context.Background(), "")
	require.Error(t, res.Err())
	assert.Zero(t, notified.Load())
	assert.Empty(t, srv.classes)
}

func TestMutationsOnSameKeyAreSerialized(t *testing.T) {
	cache := query.NewCache()
	cache.SetData(classesKey, []class{{ID: 1}})
	runner := NewRunner(cache)

	entered := make(chan struct{})
	release := make(chan struct{})
	var order []string
	var mu sync.Mutex
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}
	def := func(name string, block bool) Def[int64, struct{}] {
		return Def[int64, struct{}]{
			Name: name,
			Do: func(ctx context.Context, id int64) (struct{}, error) {
				record(name)
				if block {
					close(entered)
					<-release
				}
				return struct{}{}, errors.New("rejected")
			},
			Optimistic: []Optimistic[int64]{{
				Key:   func(int64) query.Key { return classesKey },
				Apply: func(cur any, id int64) any { return Append(cur, class{ID: id}) },
			}},
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		New(runner, def("first", true)).Mutate(context.Background(), -1)
	}()
	<-entered
	go func() {
		defer wg.Done()
		New(runner, def("second", false)).Mutate(context.Background(), -2)
	}()

	require.Never(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) > 1
	}, 50*time.Millisecond, 5*time.Millisecond)
	assert.Len(t, runner.Pending(), 1)
	close(release)
	wg.Wait()

	assert.Equal(t, []string{"first", "second"}, order)
	assert.Equal(t, []class{{ID: 1}}, cache.Peek(classesKey).Data)
}

func TestMutationsOnDifferentKeysRunConcurrently(t *testing.T) {
	cache := query.NewCache()
	runner := NewRunner(cache)
	release := make(chan struct{})
	blocked := New(runner, Def[int, int]{
		Do: func(ctx context.Context, in int) (int, error) {
			<-release
			return in, nil
		},
		Affected: func(int) []query.Key { return []query.Key{query.K("materials", 1)} },
	})
	free := New(runner, Def[int, int]{
		Do:       func(ctx context.Context, in int) (int, error) { return in * 2, nil },
		Affected: func(int) []query.Key { return []query.Key{query.K("materials", 2)} },
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		blocked.Mutate(context.Background(), 1)
	}()
	res := free.Mutate(context.Background(), 21)
	assert.Equal(t, 42, res.Value())
	close(release)
	<-done
}

func TestCancelledWhileWaitingForLock(t *testing.T) {
	cache := query.NewCache()
	runner := NewRunner(cache)
	release := make(chan struct{})
	entered := make(chan struct{})
	holder := New(runner, Def[int, int]{
		Do: func(ctx context.Context, in int) (int, error) {
			close(entered)
			<-release
			return in, nil
		},
		Affected: func(int) []query.Key { return []query.Key{classesKey} },
	})
	go holder.Mutate(context.Background(), 1)
	<-entered

	var called atomic.Bool
	waiter := New(runner, Def[int, int]{
		Do: func(ctx context.Context, in int) (int, error) {
			called.Store(true)
			return in, nil
		},
		Optimistic: []Optimistic[int]{{
			Key:   func(int) query.Key { return classesKey },
			Apply: func(any, int) any { return "optimistic" },
		}},
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res := waiter.Mutate(ctx, 2)
	require.ErrorIs(t, res.Err(), context.DeadlineExceeded)
	assert.False(t, called.Load())
	assert.Nil(t, cache.Peek(classesKey).Data)
	close(release)
}

func TestSettleHookSeesRecord(t *testing.T) {
	cache := query.NewCache()
	var got []Record
	runner := NewRunner(cache, WithSettleHook(func(r Record) { got = append(got, r) }))
	New(runner, Def[int, int]{
		Name: "noop",
		Do:   func(ctx context.Context, in int) (int, error) { return in, nil },
	}).Mutate(context.Background(), 7)

	require.Len(t, got, 1)
	assert.Equal(t, "noop", got[0].Name)
	assert.Equal(t, StatusSucceeded, got[0].Status)
	assert.Equal(t, 7, got[0].Input)
	assert.NotEqual(t, uuid.Nil, got[0].ID)
}

func TestPanickingRequestRollsBack(t *testing.T) {
	cache := query.NewCache()
	cache.SetData(classesKey, []class{{ID: 1}})
	res := New(NewRunner(cache), Def[int, int]{
		Do: func(context.Context, int) (int, error) { panic("boom") },
		Optimistic: []Optimistic[int]{{
			Key:   func(int) query.Key { return classesKey },
			Apply: func(cur any, _ int) any { return Remove(cur, func(c class) bool { return c.ID == 1 }) },
		}},
	}).Mutate(context.Background(), 0)
	require.Error(t, res.Err())
	assert.Equal(t, []class{{ID: 1}}, cache.Peek(classesKey).Data)
}

func TestPlaceholderIDsAreUniqueAndNegative(t *testing.T) {
	a, b := PlaceholderID(), PlaceholderID()
	assert.NotEqual(t, a, b)
	assert.True(t, IsPlaceholder(a))
	assert.False(t, IsPlaceholder(42))
}

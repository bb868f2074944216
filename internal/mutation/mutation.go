package mutation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/five82/roster/internal/logging"
	"github.com/five82/roster/internal/query"
)

// Status tracks one mutation call.
type Status int

const (
	StatusPending Status = iota
	StatusSucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Optimistic describes one local write applied before the request is sent.
type Optimistic[In any] struct {
	Key   func(in In) query.Key
	Apply func(current any, in In) any
}

// Def describes a write operation against the server.
type Def[In, Out any] struct {
	// Name shows up in logs and pending records.
	Name string
	// Do performs the request.
	Do func(ctx context.Context, in In) (Out, error)
	// Validate runs before anything touches the cache.
	Validate func(in In) error
	// Optimistic writes are applied in order and rolled back on failure.
	Optimistic []Optimistic[In]
	// Affected lists keys invalidated on success.
	Affected func(in In) []query.Key
	// Refetch waits for the invalidated keys to be fetched again before
	// Mutate returns.
	Refetch bool
}

// Record is the bookkeeping for one in-flight or settled call.
type Record struct {
	ID        uuid.UUID
	Name      string
	Input     any
	Keys      []query.Key
	Snapshots []query.Snapshot
	Status    Status
	Err       error
	Started   time.Time
}

// Runner applies mutations to a cache. One Runner serves the whole
// application; it is safe for concurrent use.
type Runner struct {
	cache *query.Cache
	locks *keyLocks
	log   logging.Logger
	now   func() time.Time

	mu      sync.Mutex
	pending map[uuid.UUID]*Record
	onDone  func(Record)
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the runner logger.
func WithLogger(l logging.Logger) RunnerOption {
	return func(r *Runner) { r.log = logging.OrDiscard(l) }
}

// WithSettleHook registers fn to observe every settled record, e.g. for a
// status line.
func WithSettleHook(fn func(Record)) RunnerOption {
	return func(r *Runner) { r.onDone = fn }
}

// NewRunner returns a Runner writing to cache.
func NewRunner(cache *query.Cache, opts ...RunnerOption) *Runner {
	r := &Runner{
		cache:   cache,
		locks:   newKeyLocks(),
		log:     logging.Discard,
		now:     time.Now,
		pending: make(map[uuid.UUID]*Record),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Cache returns the cache the runner writes to.
func (r *Runner) Cache() *query.Cache { return r.cache }

// Pending lists calls that have not settled, oldest first.
func (r *Runner) Pending() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, 0, len(r.pending))
	for _, rec := range r.pending {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Started.Before(out[j].Started) })
	return out
}

// Mutation binds a Def to a Runner.
type Mutation[In, Out any] struct {
	runner *Runner
	def    Def[In, Out]
}

// New returns a Mutation for def.
func New[In, Out any](r *Runner, def Def[In, Out]) *Mutation[In, Out] {
	return &Mutation[In, Out]{runner: r, def: def}
}

// Mutate validates in, applies the optimistic writes, sends the request and
// reconciles the cache with the outcome. Mutations touching a common key
// run one at a time.
func (m *Mutation[In, Out]) Mutate(ctx context.Context, in In) Result[Out] {
	r := m.runner
	if m.def.Do == nil {
		return Err[Out](fmt.Errorf("mutation %s: no request", m.def.Name))
	}
	if m.def.Validate != nil {
		if err := m.def.Validate(in); err != nil {
			return Err[Out](err)
		}
	}

	var affected []query.Key
	if m.def.Affected != nil {
		affected = m.def.Affected(in)
	}
	optKeys := make([]query.Key, len(m.def.Optimistic))
	for i, o := range m.def.Optimistic {
		optKeys[i] = o.Key(in)
	}
	keys := uniqueKeys(append(append([]query.Key(nil), optKeys...), affected...))

	unlock, err := r.locks.acquire(ctx, keys)
	if err != nil {
		return Err[Out](fmt.Errorf("mutation %s: %w", m.def.Name, err))
	}
	defer unlock()

	rec := r.begin(m.def.Name, in, keys)
	release := r.cache.Hold(optKeys...)
	snaps := make([]query.Snapshot, 0, len(optKeys))
	for i, o := range m.def.Optimistic {
		apply := o.Apply
		snaps = append(snaps, r.cache.Optimistic(optKeys[i], func(cur any) any { return apply(cur, in) }))
	}
	r.mu.Lock()
	rec.Snapshots = snaps
	r.mu.Unlock()

	out, err := call(ctx, m.def.Do, in)
	plan := Reconcile(snaps, affected, err, m.def.Refetch)
	r.apply(plan)
	release()

	if plan.Refetch {
		r.refetch(ctx, plan.Invalidate)
	}
	r.finish(rec, err)
	if err != nil {
		return Err[Out](err)
	}
	return Ok(out)
}

func call[In, Out any](ctx context.Context, do func(context.Context, In) (Out, error), in In) (out Out, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("mutation panicked: %v", p)
		}
	}()
	return do(ctx, in)
}

func (r *Runner) apply(plan Plan) {
	for _, snap := range plan.Restore {
		r.cache.Restore(snap)
	}
	for _, k := range plan.Invalidate {
		r.cache.Invalidate(k)
	}
}

// refetch fetches keys again. Failures land in the cache entries and are
// only logged here; the mutation itself already succeeded.
func (r *Runner) refetch(ctx context.Context, keys []query.Key) {
	var wg sync.WaitGroup
	for _, k := range keys {
		wg.Add(1)
		go func(k query.Key) {
			defer wg.Done()
			if _, err := r.cache.Refetch(ctx, k); err != nil && !errors.Is(err, query.ErrNoFetcher) {
				r.log.Warnf("mutation: refetch %s: %v", k, err)
			}
		}(k)
	}
	wg.Wait()
}

func (r *Runner) begin(name string, in any, keys []query.Key) *Record {
	rec := &Record{
		ID:      uuid.New(),
		Name:    name,
		Input:   in,
		Keys:    keys,
		Status:  StatusPending,
		Started: r.now(),
	}
	r.mu.Lock()
	r.pending[rec.ID] = rec
	r.mu.Unlock()
	r.log.Debugf("mutation %s %s started keys=%v", name, rec.ID, keys)
	return rec
}

func (r *Runner) finish(rec *Record, err error) {
	r.mu.Lock()
	delete(r.pending, rec.ID)
	if err != nil {
		rec.Status = StatusFailed
		rec.Err = err
	} else {
		rec.Status = StatusSucceeded
	}
	done := *rec
	r.mu.Unlock()

	if err != nil {
		r.log.Warnf("mutation %s %s failed after %s: %v", rec.Name, rec.ID, r.now().Sub(rec.Started), err)
	} else {
		r.log.Debugf("mutation %s %s succeeded", rec.Name, rec.ID)
	}
	if r.onDone != nil {
		r.onDone(done)
	}
}

var placeholderSeq atomic.Int64

// PlaceholderID returns a temporary negative id for an optimistically
// created item. Server ids are positive, so placeholders never collide.
func PlaceholderID() int64 {
	return -placeholderSeq.Add(1)
}

// IsPlaceholder reports whether id came from PlaceholderID.
func IsPlaceholder(id int64) bool { return id < 0 }

package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/five82/roster/internal/api"
	"github.com/five82/roster/internal/logging"
	"github.com/five82/roster/internal/mutation"
	"github.com/five82/roster/internal/query"
)

// Snapshot is the dashboard state shown in the console header.
type Snapshot struct {
	Stats               api.DashboardStats
	HasStats            bool
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int // Number of consecutive poll failures
	Pending             int // Mutations in flight
}

// IsOffline returns true when the API has been unreachable for multiple polls.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Store binds the API client to the query cache and exposes one query or
// mutation per backend operation. The dashboard bookkeeping (Update,
// Snapshot) works on the zero value; everything else needs New.
type Store struct {
	client *api.Client
	cache  *query.Cache
	runner *mutation.Runner
	log    logging.Logger

	refetch bool

	mu       sync.RWMutex
	snapshot Snapshot
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Store) { s.log = logging.OrDiscard(l) }
}

// WithRefetchOnWrite controls whether mutations wait for affected lists to
// reload before returning. It is on by default.
func WithRefetchOnWrite(on bool) Option {
	return func(s *Store) { s.refetch = on }
}

// New returns a Store issuing requests through client and caching them in
// cache.
func New(client *api.Client, cache *query.Cache, opts ...Option) *Store {
	s := &Store{
		client:  client,
		cache:   cache,
		log:     logging.Discard,
		refetch: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.runner = mutation.NewRunner(cache, mutation.WithLogger(s.log))
	return s
}

// Cache returns the underlying cache.
func (s *Store) Cache() *query.Cache { return s.cache }

// Client returns the underlying API client.
func (s *Store) Client() *api.Client { return s.client }

// Pending lists mutations that have not settled.
func (s *Store) Pending() []mutation.Record {
	if s.runner == nil {
		return nil
	}
	return s.runner.Pending()
}

// RefreshDashboard refetches the dashboard counters and records the outcome.
func (s *Store) RefreshDashboard(ctx context.Context) error {
	q := s.Dashboard()
	stats, err := q.Refetch(ctx)
	if err != nil {
		s.Update(nil, err)
		return err
	}
	s.Update(&stats, nil)
	return nil
}

// Reset drops all cached data and dashboard state, e.g. after sign-out.
func (s *Store) Reset() {
	if s.cache != nil {
		s.cache.Reset()
	}
	s.mu.Lock()
	s.snapshot = Snapshot{}
	s.mu.Unlock()
}

// Update records a dashboard poll. When err is non-nil the previous data is
// kept but the error is recorded for visibility.
func (s *Store) Update(stats *api.DashboardStats, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.snapshot.LastError = err
		s.snapshot.LastUpdated = time.Now()
		s.snapshot.ConsecutiveFailures++
		return
	}

	if stats != nil {
		s.snapshot.Stats = *stats
		s.snapshot.HasStats = true
	} else {
		s.snapshot.HasStats = false
	}
	s.snapshot.LastError = nil
	s.snapshot.LastUpdated = time.Now()
	s.snapshot.ConsecutiveFailures = 0
}

// Snapshot returns a copy of the current dashboard state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	snap := s.snapshot
	s.mu.RUnlock()

	if snap.LastError != nil {
		snap.LastError = fmt.Errorf("%w", snap.LastError)
	}
	snap.Pending = len(s.Pending())
	return snap
}

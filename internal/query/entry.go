package query

import (
	"context"
	"time"
)

// Status is the lifecycle state of a cache entry.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// Entry is a read-only copy of one cache slot.
type Entry struct {
	Key         Key
	Data        any
	Status      Status
	Err         error
	LastUpdated time.Time     // time of the last successful fetch
	StaleAfter  time.Duration // freshness window after LastUpdated
	Fetching    bool          // a fetch is attached to the slot
	Invalidated bool
	// Version increases whenever Data, Status or Err change. Subscribers are
	// notified exactly when it moves.
	Version uint64
}

// HasData reports whether the entry holds a value, possibly stale.
func (e Entry) HasData() bool { return e.Data != nil }

// IsStale reports whether a read at now should revalidate the entry.
func (e Entry) IsStale(now time.Time) bool {
	if e.Invalidated || e.LastUpdated.IsZero() {
		return true
	}
	return now.Sub(e.LastUpdated) >= e.StaleAfter
}

// Value returns the entry's data as T.
func Value[T any](e Entry) (T, bool) {
	v, ok := e.Data.(T)
	return v, ok
}

// Fetcher loads the value of one key from the server.
type Fetcher func(ctx context.Context) (any, error)

// FetcherOf adapts a typed loader to a Fetcher.
func FetcherOf[T any](fn func(ctx context.Context) (T, error)) Fetcher {
	return func(ctx context.Context) (any, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}

// Options tune a single read.
type Options struct {
	// StaleTime overrides the cache default freshness window. Negative means
	// always stale.
	StaleTime time.Duration
	// Disabled turns the read into a no-op returning an idle entry; use it
	// when a required parameter is missing.
	Disabled bool
}

// EnabledIf returns Options disabled unless cond holds.
func EnabledIf(cond bool) Options {
	return Options{Disabled: !cond}
}

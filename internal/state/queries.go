package state

import (
	"context"
	"errors"

	"github.com/five82/roster/internal/api"
	"github.com/five82/roster/internal/query"
)

// ErrDisabled is returned by Query.Load when a required parameter is
// missing and the query never ran.
var ErrDisabled = errors.New("query disabled: missing parameter")

// Cache keys. Class-scoped lists carry the class id as second element.
var (
	ClassesKey   = query.K("classes")
	SubjectsKey  = query.K("subjects")
	UsersKey     = query.K("users")
	DashboardKey = query.K("dashboard")
)

// AssignmentsKey addresses the assignments of one class.
func AssignmentsKey(classID int64) query.Key { return query.K("assignments", classID) }

// QuizzesKey addresses the quizzes of one class.
func QuizzesKey(classID int64) query.Key { return query.K("quizzes", classID) }

// AttendanceKey addresses the attendance of one class.
func AttendanceKey(classID int64) query.Key { return query.K("attendance", classID) }

// MaterialsKey addresses the materials of one class.
func MaterialsKey(classID int64) query.Key { return query.K("materials", classID) }

// SchedulesKey addresses the schedule patterns of one class.
func SchedulesKey(classID int64) query.Key { return query.K("schedules", classID) }

// Query is a typed handle on one cache key.
type Query[T any] struct {
	Key     query.Key
	Options query.Options
	cache   *query.Cache
	fetch   query.Fetcher
}

func newQuery[T any](c *query.Cache, key query.Key, opts query.Options, fn func(context.Context) (T, error)) Query[T] {
	return Query[T]{Key: key, Options: opts, cache: c, fetch: query.FetcherOf(fn)}
}

// Read returns the cached value and entry without waiting, starting a
// fetch when the entry is missing or stale.
func (q Query[T]) Read(ctx context.Context) (T, query.Entry) {
	e := q.cache.Read(ctx, q.Key, q.fetch, q.Options)
	v, _ := query.Value[T](e)
	return v, e
}

// Load waits for fresh data. Cached data younger than the stale time is
// returned as is.
func (q Query[T]) Load(ctx context.Context) (T, error) {
	var zero T
	if q.Options.Disabled {
		return zero, ErrDisabled
	}
	e, err := q.cache.Fetch(ctx, q.Key, q.fetch, q.Options)
	if err != nil {
		return zero, err
	}
	v, _ := query.Value[T](e)
	return v, nil
}

// Refetch loads the key again regardless of freshness.
func (q Query[T]) Refetch(ctx context.Context) (T, error) {
	var zero T
	if q.Options.Disabled {
		return zero, ErrDisabled
	}
	// Register the fetcher first so Refetch has one to run.
	q.cache.Read(ctx, q.Key, q.fetch, q.Options)
	e, err := q.cache.Refetch(ctx, q.Key)
	if err != nil {
		return zero, err
	}
	v, _ := query.Value[T](e)
	return v, nil
}

// Watch subscribes fn to the key and reads it.
func (q Query[T]) Watch(ctx context.Context, fn func(query.Entry)) (query.Entry, func()) {
	return q.cache.Watch(ctx, q.Key, q.fetch, q.Options, fn)
}

func byClass(classID int64) query.Options {
	return query.EnabledIf(classID > 0)
}

// Classes lists all classes.
func (s *Store) Classes() Query[[]api.Class] {
	return newQuery(s.cache, ClassesKey, query.Options{}, func(ctx context.Context) ([]api.Class, error) {
		return s.client.Classes().List(ctx, nil)
	})
}

// Subjects lists all subjects.
func (s *Store) Subjects() Query[[]api.Subject] {
	return newQuery(s.cache, SubjectsKey, query.Options{}, func(ctx context.Context) ([]api.Subject, error) {
		return s.client.Subjects().List(ctx, nil)
	})
}

// Users lists all users.
func (s *Store) Users() Query[[]api.User] {
	return newQuery(s.cache, UsersKey, query.Options{}, func(ctx context.Context) ([]api.User, error) {
		return s.client.Users().List(ctx, nil)
	})
}

// Assignments lists the assignments of a class. A zero classID disables the
// query.
func (s *Store) Assignments(classID int64) Query[[]api.Assignment] {
	return newQuery(s.cache, AssignmentsKey(classID), byClass(classID), func(ctx context.Context) ([]api.Assignment, error) {
		return s.client.Assignments().ListByClass(ctx, classID)
	})
}

// Quizzes lists the quizzes of a class.
func (s *Store) Quizzes(classID int64) Query[[]api.Quiz] {
	return newQuery(s.cache, QuizzesKey(classID), byClass(classID), func(ctx context.Context) ([]api.Quiz, error) {
		return s.client.Quizzes().ListByClass(ctx, classID)
	})
}

// Attendance lists the attendance records of a class.
func (s *Store) Attendance(classID int64) Query[[]api.Attendance] {
	return newQuery(s.cache, AttendanceKey(classID), byClass(classID), func(ctx context.Context) ([]api.Attendance, error) {
		return s.client.Attendance().ListByClass(ctx, classID)
	})
}

// Materials lists the materials of a class.
func (s *Store) Materials(classID int64) Query[[]api.Material] {
	return newQuery(s.cache, MaterialsKey(classID), byClass(classID), func(ctx context.Context) ([]api.Material, error) {
		return s.client.Materials().ListByClass(ctx, classID)
	})
}

// Schedules lists the weekly schedule patterns of a class.
func (s *Store) Schedules(classID int64) Query[[]api.SchedulePattern] {
	return newQuery(s.cache, SchedulesKey(classID), byClass(classID), func(ctx context.Context) ([]api.SchedulePattern, error) {
		return s.client.Schedules().ListByClass(ctx, classID)
	})
}

// Dashboard reads the admin counters. They go stale immediately so every
// poll reaches the server.
func (s *Store) Dashboard() Query[api.DashboardStats] {
	return newQuery(s.cache, DashboardKey, query.Options{StaleTime: -1}, s.client.FetchDashboard)
}

// Package state exposes the backend's resources as cached queries and
// optimistic mutations for the console and the CLI.
//
// # Overview
//
// Store wires an api.Client to a query.Cache. Each read operation returns a
// typed Query bound to a cache key; each write runs through the mutation
// layer with the optimistic writes and invalidations of that resource.
//
// # Keys
//
//	["classes"]            Classes()
//	["subjects"]           Subjects()
//	["users"]              Users()
//	["dashboard"]          Dashboard()
//	["assignments", id]    Assignments(id)
//	["quizzes", id]        Quizzes(id)
//	["attendance", id]     Attendance(id)
//	["materials", id]      Materials(id)
//	["schedules", id]      Schedules(id)
//
// Class-scoped queries with a zero class id are disabled: they never fetch
// and report an idle entry.
//
// # Mutations
//
// Creates append a row with a negative placeholder id, updates replace the
// row in place and deletes remove it. On success the list and the
// dashboard counters are invalidated and, unless WithRefetchOnWrite(false)
// is set, reloaded before the call returns.
//
// # Dashboard
//
// The poller calls RefreshDashboard on every tick. Snapshot carries the
// latest counters together with LastError and ConsecutiveFailures, so the
// header can show stale numbers with an offline marker instead of going
// blank:
//
//	// Success: counters replaced, failure count reset
//	store.Update(&stats, nil)
//
//	// Error: counters kept, error recorded
//	store.Update(nil, err)
//
// The dashboard bookkeeping works on a zero Store, which keeps its tests
// free of network setup.
package state

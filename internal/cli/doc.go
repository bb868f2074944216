// Package cli implements the roster command line.
//
// Every command shares the global flags in RootOptions and prints through
// OutputFormatter, so scripts can pass --format json or --format yaml and
// get a {"status", "data"} or {"status", "error"} envelope.
//
// Reads go through the state.Store queries and writes through its
// mutations, the same paths the console uses. A command process is short
// lived, so the cache only matters within one invocation.
//
// Exit codes:
//
//	0  success
//	1  the API rejected the request
//	2  bad usage or input file
//	3  not signed in, or the session was rejected
//	4  the API is unreachable or failing
package cli

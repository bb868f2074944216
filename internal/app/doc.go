// Package app is the composition root of roster.
//
// # Overview
//
// Build loads the configuration and wires the pieces every entry point
// needs: a gommon logger, the session store, the API client, the query
// cache and the state.Store on top of them. The CLI commands use the Env
// directly; Run adds the dashboard poller and hands the Env to the console.
//
// # Composition
//
//	Build()
//	  ├── config.LoadDotEnv(".env")
//	  ├── config.Load()            TOML + ROSTER_* overrides
//	  ├── logging.New()            log file, or Options.LogOutput
//	  ├── session.Open()           file, sqlite or memory
//	  ├── api.NewClient()          token from the session
//	  ├── query.NewCache()         configured stale time
//	  └── state.New()
//
// The client's unauthorized hook clears the session and resets the cache,
// so a revoked token signs the user out everywhere at once.
//
// # Poller
//
// StartPoller refreshes the dashboard counters on a fixed cadence and asks
// the cache to revalidate every subscribed key that went stale. After a
// failure the next poll waits twice as long, up to 30 seconds:
//
//	failures  delay (5s base)
//	0         5s
//	1         10s
//	2         20s
//	3+        30s
//
// Polls are skipped while nobody is signed in.
package app

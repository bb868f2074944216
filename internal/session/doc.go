// Package session persists the signed-in user between runs.
//
// Two keys are stored: "token" holds the bearer token and "user" the JSON
// profile returned by login. A session exists only when both are present
// and the profile decodes; anything else is wiped on the next read and the
// user has to sign in again.
//
// Storage backends:
//
//   - FileStorage: a JSON object in <data_dir>/session.json (default)
//   - SQLiteStorage: a kv table in <data_dir>/session.db
//   - MemoryStorage: nothing survives the process, used in tests
package session

// Package config loads roster's configuration.
//
// # Configuration Discovery
//
// Load follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/roster/config.toml (default)
//  3. If the config file doesn't exist, fall back to defaults
//  4. Apply ROSTER_* environment overrides
//
// LoadDotEnv reads a .env file into the environment first, so overrides can
// live next to a checkout during development.
//
// # Default Values
//
//   - API URL: http://127.0.0.1:8080
//   - Data directory: ~/.local/share/roster
//   - Session store: file (<data_dir>/session.json)
//   - Console log: <data_dir>/roster.log
//   - Poll interval: 5 seconds
//   - Stale time: 30 seconds
//
// # TOML Format
//
//	api_url = "https://lms.example.edu"
//	data_dir = "~/.local/share/roster"
//	session_store = "sqlite"   # file, sqlite or memory
//	poll_seconds = 5
//	stale_seconds = 30
//	debug = false
//
// # Environment
//
//   - ROSTER_API_URL
//   - ROSTER_SESSION_STORE
//   - ROSTER_DEBUG (strconv.ParseBool syntax)
//
// Missing config files are not an error; invalid TOML or an unknown
// session store is.
package config

// Package ui provides the roster console, a Bubble Tea terminal UI over the
// query cache.
//
// # Architecture Overview
//
// Model is a plain Bubble Tea model (Init/Update/View). It never calls the
// API directly: table views subscribe to their cache keys through
// state.Query.Watch and mutations go through state.Store, so optimistic
// rows appear immediately and roll back on their own when the server says
// no.
//
// # Package Structure
//
//   - app.go: Model, Options, key handling, commands and Run
//   - watch.go: bridges cache notifications into changeMsg
//   - tables.go: the classes, subjects, users and materials tables
//   - header.go: dashboard header, command bar, status line and boxes
//   - logs.go: tail of the console log file with level filter
//   - help.go, keys.go: help overlay and key bindings
//   - theme.go, style_helpers.go, strings.go: palettes and text helpers
//
// # Data Flow
//
//	cache notification ──> watcher.notify ──> changeMsg ──> Model.sync()
//	                                                          │
//	tickMsg ──> store.Snapshot() ──> snapshotMsg ──> header   │
//	                                                          v
//	key "d","y" ──> store.DeleteX() ──> mutationMsg ──> status line
//
// Notifications only raise a signal on a one-slot channel. The model
// re-reads every table entry with Cache.Peek when it handles the message,
// so bursts of notifications collapse into one redraw.
//
// # Views
//
//   - classes (c): enter opens the materials of the highlighted class
//   - subjects (s): n creates a subject from "CODE Subject name"
//   - users (u): role badges use the theme palette
//   - materials (m): scoped to the selected class; disabled until one is picked
//   - logs (l): the console's own log file, follow mode and level filter
//
// Rows with a negative id are optimistic placeholders and render faint
// until the server confirms them.
//
// # Preferences
//
// Theme (T), last view and selected class are saved to prefs.toml whenever
// they change and restored on the next start.
package ui

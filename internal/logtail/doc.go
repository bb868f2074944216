// Package logtail reads the tail of roster's log file.
//
// Read returns the last N lines using a ring buffer, so memory stays
// bounded by N regardless of file size. Parse splits the header written by
// the logging package ("<rfc3339> <LEVEL> <prefix> <message>") and Tail
// combines both with a minimum-level filter for the `logs` command and the
// console's log view.
//
//	lines, err := logtail.Tail(cfg.LogPath(), 200, "warn")
package logtail

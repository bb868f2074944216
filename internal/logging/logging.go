// Package logging provides the leveled logger shared by roster's packages.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/labstack/gommon/log"
)

// Logger is the subset of a leveled logger the rest of roster depends on.
// *log.Logger from gommon satisfies it.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

var _ Logger = (*log.Logger)(nil)

const header = `${time_rfc3339} ${level} ${prefix}`

// New returns a logger writing to w. Debug enables debug-level output.
func New(w io.Writer, debug bool) *log.Logger {
	l := log.New("roster")
	l.SetOutput(w)
	l.SetHeader(header)
	if debug {
		l.SetLevel(log.DEBUG)
	} else {
		l.SetLevel(log.INFO)
	}
	return l
}

// OpenFile opens (appending) the log file at path, creating parent
// directories as needed.
func OpenFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// Discard drops everything.
var Discard Logger = discard{}

type discard struct{}

func (discard) Debugf(string, ...interface{}) {}
func (discard) Infof(string, ...interface{})  {}
func (discard) Warnf(string, ...interface{})  {}
func (discard) Errorf(string, ...interface{}) {}

// OrDiscard returns l, or Discard when l is nil.
func OrDiscard(l Logger) Logger {
	if l == nil {
		return Discard
	}
	return l
}

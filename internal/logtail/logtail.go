package logtail

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Read returns at most maxLines from the end of the file at path. A
// non-positive maxLines returns every line. A missing file yields no lines.
func Read(path string, maxLines int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if maxLines <= 0 {
		var lines []string
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read log: %w", err)
		}
		return lines, nil
	}

	ring := make([]string, maxLines)
	count := 0
	idx := 0
	for scanner.Scan() {
		ring[idx] = scanner.Text()
		idx = (idx + 1) % maxLines
		if count < maxLines {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	lines := make([]string, count)
	if count == maxLines {
		for i := 0; i < count; i++ {
			lines[i] = ring[(idx+i)%maxLines]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, nil
}

// Line is one parsed log line: "<rfc3339> <LEVEL> <prefix> <message>".
type Line struct {
	Time    time.Time
	Level   string
	Prefix  string
	Message string
	Raw     string
}

var levels = map[string]int{"DEBUG": 1, "INFO": 2, "WARN": 3, "ERROR": 4}

// Parse splits a line written by the roster logger. Lines in another shape
// come back with only Raw and Message set.
func Parse(raw string) Line {
	line := Line{Raw: raw, Message: raw}
	fields := strings.SplitN(raw, " ", 4)
	if len(fields) < 3 {
		return line
	}
	ts, err := time.Parse(time.RFC3339, fields[0])
	if err != nil {
		return line
	}
	if _, ok := levels[fields[1]]; !ok {
		return line
	}
	line.Time = ts
	line.Level = fields[1]
	line.Prefix = fields[2]
	line.Message = ""
	if len(fields) == 4 {
		line.Message = fields[3]
	}
	return line
}

// AtLeast reports whether the line's level is minLevel or higher.
// Unparsed lines always pass.
func (l Line) AtLeast(minLevel string) bool {
	if l.Level == "" {
		return true
	}
	return levels[l.Level] >= levels[strings.ToUpper(minLevel)]
}

// Tail reads the last maxLines lines of path and keeps those at minLevel
// or above.
func Tail(path string, maxLines int, minLevel string) ([]Line, error) {
	raw, err := Read(path, maxLines)
	if err != nil {
		return nil, err
	}
	out := make([]Line, 0, len(raw))
	for _, r := range raw {
		if l := Parse(r); l.AtLeast(minLevel) {
			out = append(out, l)
		}
	}
	return out, nil
}

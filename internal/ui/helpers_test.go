package ui

import (
	"testing"
	"time"
)

func TestHumanizeDuration(t *testing.T) {
	cases := []struct {
		name string
		in   int64 // seconds
		want string
	}{
		{"negative", -5, "now"},
		{"subsecond", 0, "now"},
		{"seconds", 12, "12s"},
		{"minutes", 61, "1m"},
		{"hours_only", 2*60*60 + 10, "2h"},
		{"hours_minutes", 2*60*60 + 3*60, "2h 3m"},
		{"days", 24 * 60 * 60, "1d"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := humanizeDuration(timeSeconds(tc.in))
			if got != tc.want {
				t.Fatalf("humanizeDuration(%d) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestShortPath(t *testing.T) {
	if got := shortPath("  ", 10); got != "" {
		t.Fatalf("shortPath blank = %q, want empty", got)
	}
	if got := shortPath("/var/log/roster.log", 40); got != "/var/log/roster.log" {
		t.Fatalf("shortPath short = %q", got)
	}
	got := shortPath("/srv/school/data/share/roster/roster.log", 20)
	if got != "…/roster/roster.log" {
		t.Fatalf("shortPath = %q, want …/roster/roster.log", got)
	}
	if got := shortPath("/srv/a-very-long-file-name.log", 10); got != "a-very-..." {
		t.Fatalf("shortPath long name = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("Lớp 10A1 chuyên Toán", 8); got != "Lớp 1..." {
		t.Fatalf("truncate = %q, want %q", got, "Lớp 1...")
	}
	if got := truncate("Math", 10); got != "Math" {
		t.Fatalf("truncate short = %q", got)
	}
}

func TestPadRightAndTitleCase(t *testing.T) {
	if got := padRight("ab", 4); got != "ab  " {
		t.Fatalf("padRight = %q", got)
	}
	if got := titleCase("TEACHER"); got != "Teacher" {
		t.Fatalf("titleCase = %q, want Teacher", got)
	}
}

func timeSeconds(sec int64) time.Duration {
	return time.Duration(sec) * time.Second
}

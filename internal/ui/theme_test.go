package ui

import "testing"

func TestThemeNames(t *testing.T) {
	names := ThemeNames()
	want := []string{"Slate", "Dracula", "Nightfox", "Kanagawa"}
	if len(names) != len(want) {
		t.Fatalf("ThemeNames() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("ThemeNames() = %v, want %v", names, want)
		}
	}
	names[0] = "mutated"
	if ThemeNames()[0] != "Slate" {
		t.Fatalf("ThemeNames returned the shared slice")
	}
}

func TestNextTheme(t *testing.T) {
	if got := NextTheme("Slate"); got != "Dracula" {
		t.Fatalf("NextTheme(Slate) = %q, want Dracula", got)
	}
	if got := NextTheme("Kanagawa"); got != "Slate" {
		t.Fatalf("NextTheme(Kanagawa) = %q, want Slate", got)
	}
	if got := NextTheme("Unknown"); got != "Slate" {
		t.Fatalf("NextTheme(Unknown) = %q, want Slate", got)
	}
}

func TestGetTheme(t *testing.T) {
	for _, name := range ThemeNames() {
		if got := GetTheme(name).Name; got != name {
			t.Fatalf("GetTheme(%s).Name = %q", name, got)
		}
	}
	if got := GetTheme("Unknown").Name; got != "Slate" {
		t.Fatalf("GetTheme(Unknown).Name = %q, want Slate (fallback)", got)
	}
}

func TestThemesCoverBadges(t *testing.T) {
	for _, name := range ThemeNames() {
		th := GetTheme(name)
		for _, badge := range []string{"ADMIN", "TEACHER", "STUDENT", "PRESENT", "ABSENT", "ERROR"} {
			if th.StatusColors[badge] == "" {
				t.Fatalf("%s theme has no color for %s", name, badge)
			}
		}
	}
}

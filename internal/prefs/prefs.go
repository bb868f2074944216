// Package prefs persists console preferences: the theme, the view that
// was open on exit and the selected class. The default file is
// ~/.config/roster/prefs.toml.
//
// Preferences never block startup. A missing, unreadable or malformed file
// loads as the defaults.
package prefs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Prefs holds user preferences for the console.
type Prefs struct {
	Theme    string `toml:"theme"`
	LastView string `toml:"last_view"`
	ClassID  int64  `toml:"class_id,omitempty"`
}

const (
	defaultPrefsPath = "~/.config/roster/prefs.toml"
	defaultTheme     = "Slate"
	defaultView      = "classes"
)

// Default returns the preferences used when nothing is saved.
func Default() Prefs {
	return Prefs{Theme: defaultTheme, LastView: defaultView}
}

// DefaultPath returns the default preferences file path.
func DefaultPath() string {
	return defaultPrefsPath
}

// Load reads preferences from path, or from DefaultPath when path is
// empty. The error is always nil; it is kept for symmetry with Save.
func Load(path string) (Prefs, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Default(), nil
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return Default(), nil
	}
	p := Default()
	if err := toml.Unmarshal(data, &p); err != nil {
		return Default(), nil
	}
	return p.normalized(), nil
}

// Save writes p to path, creating parent directories as needed.
func Save(path string, p Prefs) error {
	resolved, err := resolvePath(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}
	data, err := toml.Marshal(p.normalized())
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}
	if err := os.WriteFile(resolved, data, 0o644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	return nil
}

func (p Prefs) normalized() Prefs {
	p.Theme = strings.TrimSpace(p.Theme)
	if p.Theme == "" {
		p.Theme = defaultTheme
	}
	p.LastView = strings.TrimSpace(p.LastView)
	if p.LastView == "" {
		p.LastView = defaultView
	}
	if p.ClassID < 0 {
		p.ClassID = 0
	}
	return p
}

func resolvePath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = defaultPrefsPath
	}
	if rest, ok := strings.CutPrefix(path, "~"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		path = filepath.Join(home, rest)
	}
	return filepath.Abs(path)
}

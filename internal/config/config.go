package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Session storage backends.
const (
	SessionFile   = "file"
	SessionSQLite = "sqlite"
	SessionMemory = "memory"
)

// Config holds everything roster needs to reach the API and keep a session.
type Config struct {
	APIURL       string
	DataDir      string
	SessionStore string
	PollInterval time.Duration
	StaleTime    time.Duration
	Debug        bool
}

const (
	defaultConfigPath   = "~/.config/roster/config.toml"
	defaultDataDir      = "~/.local/share/roster"
	defaultAPIURL       = "http://127.0.0.1:8080"
	defaultPollInterval = 5 * time.Second
	defaultStaleTime    = 30 * time.Second

	envAPIURL       = "ROSTER_API_URL"
	envSessionStore = "ROSTER_SESSION_STORE"
	envDebug        = "ROSTER_DEBUG"
)

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		APIURL:       defaultAPIURL,
		DataDir:      mustExpand(defaultDataDir),
		SessionStore: SessionFile,
		PollInterval: defaultPollInterval,
		StaleTime:    defaultStaleTime,
	}
}

// Load reads the config file at path (or the default location), falling back
// to defaults when it is missing, then applies environment overrides.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return finish(cfg)
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		APIURL       string `toml:"api_url"`
		DataDir      string `toml:"data_dir"`
		SessionStore string `toml:"session_store"`
		PollSeconds  int    `toml:"poll_seconds"`
		StaleSeconds int    `toml:"stale_seconds"`
		Debug        bool   `toml:"debug"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.APIURL); v != "" {
		cfg.APIURL = v
	}
	if v := strings.TrimSpace(raw.DataDir); v != "" {
		cfg.DataDir = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.SessionStore); v != "" {
		cfg.SessionStore = strings.ToLower(v)
	}
	if raw.PollSeconds > 0 {
		cfg.PollInterval = time.Duration(raw.PollSeconds) * time.Second
	}
	if raw.StaleSeconds > 0 {
		cfg.StaleTime = time.Duration(raw.StaleSeconds) * time.Second
	}
	cfg.Debug = raw.Debug

	return finish(cfg)
}

func finish(cfg Config) (Config, error) {
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=value pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadDotEnv(path string) error {
	if strings.TrimSpace(path) == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup(envAPIURL); ok && strings.TrimSpace(v) != "" {
		cfg.APIURL = strings.TrimSpace(v)
	}
	if v, ok := lookup(envSessionStore); ok && strings.TrimSpace(v) != "" {
		cfg.SessionStore = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := lookup(envDebug); ok && strings.TrimSpace(v) != "" {
		debug, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", envDebug, err)
		}
		cfg.Debug = debug
	}
	return nil
}

// Validate rejects settings no component can work with.
func (c Config) Validate() error {
	switch c.SessionStore {
	case SessionFile, SessionSQLite, SessionMemory:
	default:
		return fmt.Errorf("session_store %q: want file, sqlite or memory", c.SessionStore)
	}
	return nil
}

// LogPath returns the console log file.
func (c Config) LogPath() string {
	return filepath.Join(c.dataDir(), "roster.log")
}

// SessionPath returns where the session is persisted for the configured
// store. It is empty for the memory store.
func (c Config) SessionPath() string {
	switch c.SessionStore {
	case SessionSQLite:
		return filepath.Join(c.dataDir(), "session.db")
	case SessionMemory:
		return ""
	default:
		return filepath.Join(c.dataDir(), "session.json")
	}
}

// PrefsPath returns the preferences file next to the config file.
func PrefsPath(configPath string) string {
	resolved, err := resolvePath(configPath)
	if err != nil {
		return ""
	}
	return filepath.Join(filepath.Dir(resolved), "prefs.toml")
}

func (c Config) dataDir() string {
	if strings.TrimSpace(c.DataDir) == "" {
		return mustExpand(defaultDataDir)
	}
	return c.DataDir
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}

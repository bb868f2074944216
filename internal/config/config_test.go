package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{envAPIURL, envSessionStore, envDebug} {
		t.Setenv(k, "")
	}
}

func TestLoad_MissingConfigFallsBackToDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	clearEnv(t)

	cfg, err := Load(filepath.Join(home, "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIURL != defaultAPIURL {
		t.Fatalf("APIURL = %q, want %q", cfg.APIURL, defaultAPIURL)
	}

	wantDataDir, err := expandPath(defaultDataDir)
	if err != nil {
		t.Fatalf("expandPath(defaultDataDir) returned error: %v", err)
	}
	if cfg.DataDir != wantDataDir {
		t.Fatalf("DataDir = %q, want %q", cfg.DataDir, wantDataDir)
	}
	if cfg.SessionPath() != filepath.Join(wantDataDir, "session.json") {
		t.Fatalf("SessionPath = %q, want %q", cfg.SessionPath(), filepath.Join(wantDataDir, "session.json"))
	}
	if cfg.PollInterval != defaultPollInterval || cfg.StaleTime != defaultStaleTime {
		t.Fatalf("intervals = %v/%v, want defaults", cfg.PollInterval, cfg.StaleTime)
	}
}

func TestLoad_ParsesAndTrimsConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`
api_url = "  https://lms.example.edu  "
data_dir = "  ~/.roster  "
session_store = "SQLite"
poll_seconds = 10
stale_seconds = 60
debug = true
`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIURL != "https://lms.example.edu" {
		t.Fatalf("APIURL = %q, want %q", cfg.APIURL, "https://lms.example.edu")
	}
	if !strings.HasPrefix(cfg.DataDir, home) {
		t.Fatalf("DataDir = %q, want it under HOME %q", cfg.DataDir, home)
	}
	if cfg.SessionStore != SessionSQLite {
		t.Fatalf("SessionStore = %q, want sqlite", cfg.SessionStore)
	}
	if cfg.SessionPath() != filepath.Join(cfg.DataDir, "session.db") {
		t.Fatalf("SessionPath = %q, want session.db under DataDir", cfg.SessionPath())
	}
	if cfg.PollInterval != 10*time.Second || cfg.StaleTime != time.Minute {
		t.Fatalf("intervals = %v/%v, want 10s/1m", cfg.PollInterval, cfg.StaleTime)
	}
	if !cfg.Debug {
		t.Fatal("Debug = false, want true")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`api_url = "http://file:8080"`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv(envAPIURL, "http://env:9090")
	t.Setenv(envSessionStore, "memory")
	t.Setenv(envDebug, "1")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIURL != "http://env:9090" || cfg.SessionStore != SessionMemory || !cfg.Debug {
		t.Fatalf("cfg = %#v, want env values", cfg)
	}
	if cfg.SessionPath() != "" {
		t.Fatalf("SessionPath = %q, want empty for memory store", cfg.SessionPath())
	}
}

func TestLoad_BadEnvDebugFails(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearEnv(t)
	t.Setenv(envDebug, "sometimes")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("Load returned nil error, want ROSTER_DEBUG parse error")
	}
}

func TestLoad_UnknownSessionStoreFails(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`session_store = "redis"`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "session_store") {
		t.Fatalf("Load error = %v, want session_store error", err)
	}
}

func TestLoad_InvalidTOMLFails(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`api_url = [`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatalf("Load returned nil error, want parse error")
	}
	if !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("Load error = %q, want it to mention parse config", err.Error())
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("ROSTER_TEST_DOTENV=from-file\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("ROSTER_TEST_DOTENV", "")
	os.Unsetenv("ROSTER_TEST_DOTENV")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("ROSTER_TEST_DOTENV"); got != "from-file" {
		t.Fatalf("ROSTER_TEST_DOTENV = %q, want from-file", got)
	}
	if err := LoadDotEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv(missing) = %v, want nil", err)
	}
}

func TestExpandPath_ExpandsTildeAndReturnsAbs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := expandPath("~/a/b")
	if err != nil {
		t.Fatalf("expandPath returned error: %v", err)
	}
	want := filepath.Join(home, "a/b")
	if got != want {
		t.Fatalf("expandPath = %q, want %q", got, want)
	}
}

func TestExpandPath_EmptyErrors(t *testing.T) {
	if _, err := expandPath("   "); err == nil {
		t.Fatalf("expandPath returned nil error, want error")
	}
}

func TestLogPath_DefaultsWhenDataDirEmpty(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	var cfg Config
	got := cfg.LogPath()
	if !strings.HasPrefix(got, home) {
		t.Fatalf("LogPath = %q, want it under HOME %q", got, home)
	}
	if !strings.HasSuffix(got, filepath.FromSlash("/roster.log")) {
		t.Fatalf("LogPath = %q, want it to end with /roster.log", got)
	}
}

func TestPrefsPath_NextToConfig(t *testing.T) {
	dir := t.TempDir()
	got := PrefsPath(filepath.Join(dir, "config.toml"))
	if got != filepath.Join(dir, "prefs.toml") {
		t.Fatalf("PrefsPath = %q, want prefs.toml in %q", got, dir)
	}
}

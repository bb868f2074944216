package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/five82/roster/internal/api"
)

func writeConfig(t *testing.T, apiURL string) string {
	t.Helper()
	t.Setenv("ROSTER_API_URL", "")
	t.Setenv("ROSTER_SESSION_STORE", "")
	t.Setenv("ROSTER_DEBUG", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := "api_url = \"" + apiURL + "\"\n" +
		"data_dir = \"" + filepath.Join(dir, "data") + "\"\n" +
		"session_store = \"memory\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestBuild_LoginAndForcedSignOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/auth/login":
			_ = json.NewEncoder(w).Encode(api.LoginResponse{
				Token: "opaque-token",
				User:  api.User{ID: 1, Username: "admin", Role: api.RoleAdmin, Active: true},
			})
		case "/api/classes":
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"token revoked"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	env, err := Build(Options{ConfigPath: writeConfig(t, srv.URL), LogOutput: io.Discard})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer func() { _ = env.Close() }()

	if env.Session.LoggedIn() {
		t.Fatalf("fresh memory session should be signed out")
	}

	ctx := context.Background()
	user, err := env.Login(ctx, "admin", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if user.Username != "admin" || !env.Session.LoggedIn() {
		t.Fatalf("Login: user=%+v loggedIn=%v", user, env.Session.LoggedIn())
	}

	_, err = env.Store.Classes().Load(ctx)
	if !api.IsAuth(err) {
		t.Fatalf("Load err = %v, want auth error", err)
	}
	if env.Session.LoggedIn() {
		t.Fatalf("401 should clear the session")
	}
}

func TestBuild_APIURLOverride(t *testing.T) {
	env, err := Build(Options{
		ConfigPath: writeConfig(t, "http://config.invalid:1"),
		APIURL:     "http://override.invalid:2",
		LogOutput:  io.Discard,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer func() { _ = env.Close() }()

	if got := env.Client.BaseURL(); got != "http://override.invalid:2" {
		t.Fatalf("BaseURL = %q, want override", got)
	}
}

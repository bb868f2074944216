package ui

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/roster/internal/api"
	"github.com/five82/roster/internal/prefs"
	"github.com/five82/roster/internal/query"
	"github.com/five82/roster/internal/state"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", next)
	}
	return out, cmd
}

// classServer keeps a class list and honours deletes.
type classServer struct {
	mu      sync.Mutex
	classes []api.Class
}

func (s *classServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/classes":
		_ = json.NewEncoder(w).Encode(s.classes)
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/api/classes/"):
		kept := s.classes[:0]
		for _, c := range s.classes {
			if "/api/classes/"+jsonID(c.ID) != r.URL.Path {
				kept = append(kept, c)
			}
		}
		s.classes = kept
		w.WriteHeader(http.StatusNoContent)
	case r.URL.Path == "/api/dashboard/stats":
		_, _ = w.Write([]byte(`{"totalClasses":1}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func jsonID(id int64) string {
	data, _ := json.Marshal(id)
	return string(data)
}

func newTestModel(t *testing.T, handler http.Handler) (Model, *state.Store, string) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := api.NewClient(srv.URL, api.WithTokenSource(api.StaticToken("tok")))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	store := state.New(client, query.NewCache())
	prefsPath := filepath.Join(t.TempDir(), "prefs.toml")
	m := New(Options{
		Context:   context.Background(),
		Store:     store,
		User:      api.User{ID: 1, Username: "admin", Role: api.RoleAdmin},
		Prefs:     prefs.Prefs{Theme: "Slate", LastView: "classes"},
		PrefsPath: prefsPath,
	})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 30})
	return m, store, prefsPath
}

func TestModel_CycleThemeSavesPrefs(t *testing.T) {
	m, _, path := newTestModel(t, http.NotFoundHandler())

	m, _ = update(t, m, runes("T"))
	if m.theme.Name != "Dracula" {
		t.Fatalf("theme = %q, want Dracula", m.theme.Name)
	}
	saved, err := prefs.Load(path)
	if err != nil {
		t.Fatalf("prefs.Load: %v", err)
	}
	if saved.Theme != "Dracula" || saved.LastView != "classes" {
		t.Fatalf("saved prefs = %+v", saved)
	}
}

func TestModel_SwitchViewRemembersLastView(t *testing.T) {
	m, _, path := newTestModel(t, http.NotFoundHandler())

	m, _ = update(t, m, runes("u"))
	if m.currentView != ViewUsers {
		t.Fatalf("currentView = %v, want users", m.currentView)
	}
	saved, _ := prefs.Load(path)
	if saved.LastView != "users" {
		t.Fatalf("LastView = %q, want users", saved.LastView)
	}
	if parseView(saved.LastView) != ViewUsers {
		t.Fatalf("parseView round trip failed")
	}
}

func TestModel_RendersCachedClasses(t *testing.T) {
	m, store, _ := newTestModel(t, http.NotFoundHandler())
	store.Cache().SetData(state.ClassesKey, []api.Class{
		{ID: 7, ClassName: "Văn 10", SchoolYear: 2025, Semester: "HK1"},
		{ID: -1, ClassName: "Math 10", SchoolYear: 2025, Semester: "HK1"},
	})

	m, _ = update(t, m, syncMsg{})
	out := m.View()
	if !strings.Contains(out, "Văn 10") || !strings.Contains(out, "Math 10") {
		t.Fatalf("view does not list cached classes:\n%s", out)
	}
	if m.rowCount(ViewClasses) != 2 {
		t.Fatalf("rowCount = %d, want 2", m.rowCount(ViewClasses))
	}

	// Optimistic rows cannot be deleted.
	m, _ = update(t, m, runes("j"))
	if got := m.selectedLabel(); got != "" {
		t.Fatalf("selectedLabel on placeholder row = %q, want empty", got)
	}
}

func TestModel_DeleteNeedsConfirmation(t *testing.T) {
	backend := &classServer{classes: []api.Class{{ID: 7, ClassName: "Văn 10"}, {ID: 8, ClassName: "Toán 11"}}}
	m, store, _ := newTestModel(t, backend)
	if _, err := store.Classes().Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	m, _ = update(t, m, syncMsg{})

	m, _ = update(t, m, runes("d"))
	if !m.confirmDelete || !strings.Contains(m.status, "class #7 Văn 10") {
		t.Fatalf("confirmDelete=%v status=%q", m.confirmDelete, m.status)
	}
	m, cmd := update(t, m, runes("x"))
	if m.confirmDelete || cmd != nil || m.status != "Delete cancelled" {
		t.Fatalf("cancel: confirmDelete=%v status=%q", m.confirmDelete, m.status)
	}

	m, _ = update(t, m, runes("d"))
	m, cmd = update(t, m, runes("y"))
	if cmd == nil {
		t.Fatalf("confirmed delete returned no command")
	}
	msg := cmd()
	res, ok := msg.(mutationMsg)
	if !ok {
		t.Fatalf("delete command produced %T", msg)
	}
	if res.err != nil {
		t.Fatalf("delete failed: %v", res.err)
	}
	m, _ = update(t, m, res)
	if m.statusErr || !strings.HasSuffix(m.status, ": done") {
		t.Fatalf("status = %q (err=%v)", m.status, m.statusErr)
	}
	if m.rowCount(ViewClasses) != 1 {
		t.Fatalf("rowCount after delete = %d, want 1", m.rowCount(ViewClasses))
	}
}

func TestModel_EnterOpensClassMaterials(t *testing.T) {
	m, store, path := newTestModel(t, http.NotFoundHandler())
	store.Cache().SetData(state.ClassesKey, []api.Class{{ID: 7, ClassName: "Văn 10"}})
	store.Cache().SetData(state.MaterialsKey(7), []api.Material{{ID: 3, ClassID: 7, Title: "Đề cương", FileName: "de-cuong.pdf"}})
	m, _ = update(t, m, syncMsg{})

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.currentView != ViewMaterials || m.classID != 7 {
		t.Fatalf("view=%v classID=%d, want materials of 7", m.currentView, m.classID)
	}
	if !strings.Contains(m.View(), "de-cuong.pdf") {
		t.Fatalf("materials not rendered:\n%s", m.View())
	}
	saved, _ := prefs.Load(path)
	if saved.ClassID != 7 {
		t.Fatalf("saved ClassID = %d, want 7", saved.ClassID)
	}
}

func TestParseSubjectInput(t *testing.T) {
	in, err := parseSubjectInput("  MATH10 Đại số lớp 10 ")
	if err != nil {
		t.Fatalf("parseSubjectInput: %v", err)
	}
	if in.SubjectCode != "MATH10" || in.SubjectName != "Đại số lớp 10" {
		t.Fatalf("got %+v", in)
	}
	if _, err := parseSubjectInput("MATH10"); err == nil {
		t.Fatalf("expected an error without a name")
	}
}

func TestMutationMsgText(t *testing.T) {
	msg := mutationMsg{action: "create subject X", err: &api.Error{
		Kind:   api.KindValidation,
		Fields: []api.FieldError{{Field: "subjectCode", Message: "already exists"}},
	}}
	if got := msg.text(); got != "create subject X failed: subjectCode already exists" {
		t.Fatalf("text = %q", got)
	}
}

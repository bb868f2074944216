package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
)

func TestParseBaseURL_DefaultsAndNormalizes(t *testing.T) {
	u, err := parseBaseURL("")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.Scheme != "http" {
		t.Fatalf("scheme = %q, want http", u.Scheme)
	}
	if u.Host != defaultBaseURL {
		t.Fatalf("host = %q, want %q", u.Host, defaultBaseURL)
	}

	u, err = parseBaseURL("https://lms.example.com:8443/app?x=1#frag")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.Path != "" || u.RawQuery != "" || u.Fragment != "" {
		t.Fatalf("url not normalized: %q", u.String())
	}
	if u.Scheme != "https" {
		t.Fatalf("scheme = %q, want https", u.Scheme)
	}
}

func TestNormalizeList_EnvelopeAndBareArray(t *testing.T) {
	type item struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	bare, err := NormalizeList[item]([]byte(`[{"id":1,"name":"a"},{"id":2,"name":"b"}]`))
	if err != nil {
		t.Fatalf("bare array: %v", err)
	}
	wrapped, err := NormalizeList[item]([]byte(`{"content":[{"id":1,"name":"a"},{"id":2,"name":"b"}],"totalElements":2}`))
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	if !reflect.DeepEqual(bare, wrapped) {
		t.Fatalf("envelope = %#v, bare = %#v, want identical", wrapped, bare)
	}

	for _, body := range []string{"", "null", "[]", `{"content":null}`, `{"content":[]}`} {
		got, err := NormalizeList[item]([]byte(body))
		if err != nil {
			t.Fatalf("NormalizeList(%q) error: %v", body, err)
		}
		if got == nil || len(got) != 0 {
			t.Fatalf("NormalizeList(%q) = %#v, want empty non-nil slice", body, got)
		}
	}

	if _, err := NormalizeList[item]([]byte(`{"items":[]}`)); err == nil {
		t.Fatalf("envelope without content should fail")
	}
	if _, err := NormalizeList[item]([]byte(`"nope"`)); err == nil {
		t.Fatalf("string payload should fail")
	}
}

func TestClient_SendsBearerTokenAndNormalizesLists(t *testing.T) {
	t.Parallel()

	var gotAuth atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/classes":
			_, _ = w.Write([]byte(`{"content":[{"id":1,"className":"Math 10"},{"id":2,"className":"Physics 11"}]}`))
		case "/api/subjects":
			_, _ = w.Write([]byte(`[{"id":7,"subjectName":"Chemistry"}]`))
		case "/api/materials/class/5":
			_, _ = w.Write([]byte(`[{"id":3,"classId":5,"title":"Syllabus"}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL, WithTokenSource(StaticToken("secret")))
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)

	classes, err := c.Classes().List(ctx, nil)
	if err != nil {
		t.Fatalf("Classes().List returned error: %v", err)
	}
	if len(classes) != 2 || classes[0].ClassName != "Math 10" || classes[1].ID != 2 {
		t.Fatalf("classes = %#v, want 2 classes", classes)
	}
	if got := gotAuth.Load(); got != "Bearer secret" {
		t.Fatalf("Authorization = %v, want Bearer secret", got)
	}

	subjects, err := c.Subjects().List(ctx, nil)
	if err != nil {
		t.Fatalf("Subjects().List returned error: %v", err)
	}
	if len(subjects) != 1 || subjects[0].SubjectName != "Chemistry" {
		t.Fatalf("subjects = %#v, want Chemistry", subjects)
	}

	materials, err := c.Materials().ListByClass(ctx, 5)
	if err != nil {
		t.Fatalf("Materials().ListByClass returned error: %v", err)
	}
	if len(materials) != 1 || materials[0].ClassID != 5 {
		t.Fatalf("materials = %#v, want one material of class 5", materials)
	}
}

func TestClient_MissingTokenNeverHitsNetwork(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	t.Cleanup(server.Close)

	for name, opts := range map[string][]Option{
		"no source":   nil,
		"empty token": {WithTokenSource(StaticToken(""))},
		"source error": {WithTokenSource(TokenFunc(func() (string, error) {
			return "", errors.New("corrupt session")
		}))},
	} {
		c, err := NewClient(server.URL, opts...)
		if err != nil {
			t.Fatalf("%s: NewClient returned error: %v", name, err)
		}
		_, err = c.Classes().List(context.Background(), nil)
		if KindOf(err) != KindNoToken {
			t.Fatalf("%s: kind = %v, want no_token (err=%v)", name, KindOf(err), err)
		}
		if !IsAuth(err) {
			t.Fatalf("%s: IsAuth = false, want true", name)
		}
	}
	if n := hits.Load(); n != 0 {
		t.Fatalf("server hits = %d, want 0", n)
	}
}

func TestClient_ExpiredTokenRejectedBeforeCall(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	t.Cleanup(server.Close)

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{
		Subject:   "1",
		ExpiresAt: time.Now().Add(-time.Hour).Unix(),
	}).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	var hooked atomic.Bool
	c, err := NewClient(server.URL,
		WithTokenSource(StaticToken(tok)),
		WithUnauthorizedHook(func() { hooked.Store(true) }),
	)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	_, err = c.Subjects().List(context.Background(), nil)
	if KindOf(err) != KindAuth {
		t.Fatalf("kind = %v, want auth (err=%v)", KindOf(err), err)
	}
	if !hooked.Load() {
		t.Fatalf("unauthorized hook not called for expired token")
	}
	if hits.Load() != 0 {
		t.Fatalf("expired token reached the server")
	}
}

func TestClient_StatusErrorKinds(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/classes":
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"token invalid"}`))
		case "/api/subjects":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":"validation failed","errors":{"subjectCode":"already exists"}}`))
		case "/api/users":
			http.Error(w, "boom", http.StatusInternalServerError)
		case "/api/quizzes":
			_, _ = w.Write([]byte(`[{"title":"no id"}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	var hooked atomic.Int32
	c, err := NewClient(server.URL,
		WithTokenSource(StaticToken("opaque-token")),
		WithUnauthorizedHook(func() { hooked.Add(1) }),
	)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	ctx := context.Background()

	_, err = c.Classes().List(ctx, nil)
	if KindOf(err) != KindAuth || hooked.Load() != 1 {
		t.Fatalf("401: kind=%v hooked=%d, want auth and 1 hook call", KindOf(err), hooked.Load())
	}

	_, err = c.Subjects().List(ctx, nil)
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Kind != KindValidation {
		t.Fatalf("400: err = %v, want validation error", err)
	}
	if got := apiErr.FieldMessage("subjectCode"); got != "already exists" {
		t.Fatalf("field message = %q, want already exists", got)
	}
	if apiErr.Message != "validation failed" {
		t.Fatalf("message = %q, want validation failed", apiErr.Message)
	}

	_, err = c.Users().List(ctx, nil)
	if KindOf(err) != KindServer || !IsRetryable(err) {
		t.Fatalf("500: kind = %v, want server", KindOf(err))
	}
	if !strings.Contains(err.Error(), "status 500") {
		t.Fatalf("500 error text = %q, want status 500", err.Error())
	}

	_, err = c.Quizzes().List(ctx, nil)
	if KindOf(err) != KindDecode {
		t.Fatalf("invalid payload: kind = %v, want decode (err=%v)", KindOf(err), err)
	}
}

func TestClient_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c, err := NewClient(url, WithTokenSource(StaticToken("t")), WithTimeout(time.Second))
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	_, err = c.Classes().List(context.Background(), nil)
	if KindOf(err) != KindTransport {
		t.Fatalf("kind = %v, want transport (err=%v)", KindOf(err), err)
	}
}

func TestClient_CreateValidatesInputLocally(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL, WithTokenSource(StaticToken("t")))
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	_, err = c.Classes().Create(context.Background(), ClassInput{ClassName: "Math 10", SchoolYear: 1990})
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Kind != KindValidation {
		t.Fatalf("err = %v, want validation error", err)
	}
	if apiErr.FieldMessage("semester") != requiredText {
		t.Fatalf("semester message = %q, want %q", apiErr.FieldMessage("semester"), requiredText)
	}
	if apiErr.FieldMessage("schoolYear") == "" {
		t.Fatalf("schoolYear should be rejected: %#v", apiErr.Fields)
	}
	if hits.Load() != 0 {
		t.Fatalf("invalid input reached the server")
	}
}

func TestClient_CreateAndLogin(t *testing.T) {
	t.Parallel()

	var gotBody ClassInput
	var gotLoginAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/classes":
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
			_ = json.NewEncoder(w).Encode(Class{ID: 42, ClassName: gotBody.ClassName, SchoolYear: gotBody.SchoolYear, Semester: gotBody.Semester, TeacherID: gotBody.TeacherID})
		case r.Method == http.MethodPost && r.URL.Path == "/api/auth/login":
			gotLoginAuth = r.Header.Get("Authorization")
			_ = json.NewEncoder(w).Encode(LoginResponse{Token: "abc", User: User{ID: 1, Username: "admin", Role: RoleAdmin}})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL, WithTokenSource(StaticToken("t")))
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	in := ClassInput{ClassName: "Math 10", SchoolYear: 2025, Semester: "Học kỳ 1", TeacherID: 2}
	created, err := c.Classes().Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if created.ID != 42 || gotBody != in {
		t.Fatalf("created = %#v body = %#v", created, gotBody)
	}

	anon, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	login, err := anon.Login(context.Background(), LoginRequest{Username: "admin", Password: "pw"})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if login.Token != "abc" || login.User.Username != "admin" {
		t.Fatalf("login = %#v", login)
	}
	if gotLoginAuth != "" {
		t.Fatalf("login sent Authorization %q, want none", gotLoginAuth)
	}
}

func TestClient_UploadMaterialMultipart(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/materials/upload" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Material{
			ID:          9,
			ClassID:     5,
			Title:       r.FormValue("title"),
			FileName:    hdr.Filename,
			Description: string(data),
		})
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL, WithTokenSource(StaticToken("t")))
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	m, err := c.UploadMaterial(context.Background(), MaterialUpload{
		ClassID:  5,
		Title:    "Week 1",
		FileName: "week1.txt",
		Content:  strings.NewReader("hello"),
	})
	if err != nil {
		t.Fatalf("UploadMaterial returned error: %v", err)
	}
	if m.Title != "Week 1" || m.FileName != "week1.txt" || m.Description != "hello" {
		t.Fatalf("material = %#v", m)
	}

	_, err = c.UploadMaterial(context.Background(), MaterialUpload{ClassID: 5, Title: "x", FileName: "x.txt"})
	if !IsValidation(err) {
		t.Fatalf("missing content err = %v, want validation", err)
	}
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"

	"github.com/five82/roster/internal/logging"
)

// TokenSource supplies the bearer token for authenticated calls. An empty
// token with a nil error means nobody is signed in.
type TokenSource interface {
	Token() (string, error)
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() (string, error)

// Token implements TokenSource.
func (f TokenFunc) Token() (string, error) { return f() }

// StaticToken always returns the same token.
type StaticToken string

// Token implements TokenSource.
func (t StaticToken) Token() (string, error) { return string(t), nil }

// Client talks to the school management REST API.
type Client struct {
	baseURL        *url.URL
	http           *http.Client
	userAgent      string
	tokens         TokenSource
	log            logging.Logger
	onUnauthorized func()
	now            func() time.Time
}

const (
	defaultBaseURL   = "127.0.0.1:8080"
	defaultUserAgent = "roster/0.1"
	requestTimeout   = 10 * time.Second
	maxBodyBytes     = 16 << 20
)

// Option customizes a Client.
type Option func(*Client)

// WithTokenSource sets where bearer tokens come from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithLogger sets the logger used for server errors.
func WithLogger(l logging.Logger) Option {
	return func(c *Client) { c.log = logging.OrDiscard(l) }
}

// WithUnauthorizedHook registers fn to run whenever the backend rejects the
// session (401) or the token has expired.
func WithUnauthorizedHook(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// NewClient builds a Client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: requestTimeout,
		},
		userAgent: defaultUserAgent,
		log:       logging.Discard,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalized API root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// request describes one HTTP call.
type request struct {
	method      string
	path        string
	query       url.Values
	body        any
	rawBody     io.Reader
	contentType string
	anonymous   bool
}

type response struct {
	method string
	path   string
	status int
	body   []byte
}

func (c *Client) send(ctx context.Context, r request) (response, error) {
	if c == nil {
		return response{}, fmt.Errorf("client is nil")
	}
	res := response{method: r.method, path: r.path}

	var token string
	if !r.anonymous {
		tok, tokErr := c.token()
		if tokErr != nil {
			tokErr.Method, tokErr.Path = r.method, r.path
			return res, c.fail(tokErr)
		}
		token = tok
	}

	var body io.Reader
	contentType := r.contentType
	switch {
	case r.rawBody != nil:
		body = r.rawBody
	case r.body != nil:
		data, err := json.Marshal(r.body)
		if err != nil {
			return res, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	rel := &url.URL{Path: r.path}
	if len(r.query) > 0 {
		rel.RawQuery = r.query.Encode()
	}
	reqURL := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, r.method, reqURL.String(), body)
	if err != nil {
		return res, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return res, &Error{Kind: KindTransport, Method: r.method, Path: r.path, Message: "execute request", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	res.status = resp.StatusCode
	res.body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return res, &Error{Kind: KindTransport, Method: r.method, Path: r.path, Status: resp.StatusCode, Message: "read response", Err: err}
	}

	if resp.StatusCode >= 400 {
		return res, c.fail(statusError(res))
	}
	return res, nil
}

// token resolves the bearer token or explains why there is none.
func (c *Client) token() (string, *Error) {
	if c.tokens == nil {
		return "", &Error{Kind: KindNoToken, Err: ErrNoToken}
	}
	tok, err := c.tokens.Token()
	if err != nil {
		return "", &Error{Kind: KindNoToken, Err: err}
	}
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return "", &Error{Kind: KindNoToken, Err: ErrNoToken}
	}
	if tokenExpired(tok, c.now()) {
		return "", &Error{Kind: KindAuth, Message: "session token expired"}
	}
	return tok, nil
}

// fail logs server errors and fires the unauthorized hook before returning err.
func (c *Client) fail(err *Error) error {
	switch {
	case err.Kind == KindServer:
		c.log.Errorf("api %s %s returned status %d: %s", err.Method, err.Path, err.Status, err.Message)
	case err.Kind == KindAuth && (err.Status == http.StatusUnauthorized || err.Status == 0):
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
	}
	return err
}

func statusError(res response) *Error {
	apiErr := &Error{
		Kind:   kindForStatus(res.status),
		Method: res.method,
		Path:   res.path,
		Status: res.status,
	}
	var eb errorBody
	if len(res.body) > 0 && json.Unmarshal(res.body, &eb) == nil {
		apiErr.Message = eb.message()
		apiErr.Fields = eb.fields()
	} else if text := strings.TrimSpace(string(res.body)); text != "" {
		apiErr.Message = truncate(text, 200)
	}
	return apiErr
}

// tokenExpired reports whether tok is a JWT whose exp claim has passed.
// Opaque tokens are never considered expired here; the backend decides.
func tokenExpired(tok string, now time.Time) bool {
	var claims jwt.StandardClaims
	if _, _, err := new(jwt.Parser).ParseUnverified(tok, &claims); err != nil {
		return false
	}
	return claims.ExpiresAt != 0 && !claims.VerifyExpiresAt(now.Unix(), false)
}

// Login exchanges credentials for a session token. It is the only call that
// does not need a token.
func (c *Client) Login(ctx context.Context, creds LoginRequest) (LoginResponse, error) {
	if err := ValidateInput(creds); err != nil {
		return LoginResponse{}, err
	}
	res, err := c.send(ctx, request{
		method:    http.MethodPost,
		path:      "/api/auth/login",
		body:      creds,
		anonymous: true,
	})
	if err != nil {
		return LoginResponse{}, err
	}
	return decodeOne[LoginResponse](res)
}

// FetchDashboard retrieves the admin dashboard counters.
func (c *Client) FetchDashboard(ctx context.Context) (DashboardStats, error) {
	res, err := c.send(ctx, request{method: http.MethodGet, path: "/api/dashboard/stats"})
	if err != nil {
		return DashboardStats{}, err
	}
	return decodeOne[DashboardStats](res)
}

// UploadMaterial sends a file as multipart form data.
func (c *Client) UploadMaterial(ctx context.Context, up MaterialUpload) (Material, error) {
	if err := ValidateInput(up); err != nil {
		return Material{}, err
	}
	if up.Content == nil {
		return Material{}, &Error{Kind: KindValidation, Fields: []FieldError{{Field: "file", Message: requiredText}}}
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := map[string]string{
		"classId":     fmt.Sprint(up.ClassID),
		"title":       up.Title,
		"description": up.Description,
	}
	for _, name := range []string{"classId", "title", "description"} {
		if err := mw.WriteField(name, fields[name]); err != nil {
			return Material{}, fmt.Errorf("write form field: %w", err)
		}
	}
	part, err := mw.CreateFormFile("file", up.FileName)
	if err != nil {
		return Material{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, up.Content); err != nil {
		return Material{}, fmt.Errorf("copy upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return Material{}, fmt.Errorf("close multipart: %w", err)
	}

	res, err := c.send(ctx, request{
		method:      http.MethodPost,
		path:        "/api/materials/upload",
		rawBody:     &buf,
		contentType: mw.FormDataContentType(),
	})
	if err != nil {
		return Material{}, err
	}
	return decodeOne[Material](res)
}

// MarkAttendance records attendance for a class session.
func (c *Client) MarkAttendance(ctx context.Context, in AttendanceInput) ([]Attendance, error) {
	if err := ValidateInput(in); err != nil {
		return nil, err
	}
	res, err := c.send(ctx, request{method: http.MethodPost, path: "/api/attendance", body: in})
	if err != nil {
		return nil, err
	}
	return decodeList[Attendance](res)
}

// BatchUpdateSchedules replaces the weekly schedule patterns of a class.
// Patterns with a zero ID are created.
func (c *Client) BatchUpdateSchedules(ctx context.Context, in ScheduleBatch) ([]SchedulePattern, error) {
	if err := ValidateInput(in); err != nil {
		return nil, err
	}
	res, err := c.send(ctx, request{method: http.MethodPut, path: schedulePath + "/batch", body: in})
	if err != nil {
		return nil, err
	}
	return decodeList[SchedulePattern](res)
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = defaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api url %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, errors.New("api url has no host")
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}

package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgrijalva/jwt-go"

	"github.com/five82/roster/internal/api"
	"github.com/five82/roster/internal/logging"
)

// Persisted keys. Both must be present for the session to count as signed
// in.
const (
	KeyToken = "token"
	KeyUser  = "user"
)

// ErrSignedOut is returned when an operation needs a signed-in session.
var ErrSignedOut = errors.New("not signed in")

// Claims are the fields roster reads from the token. The signature is not
// verified; the server does that on every request.
type Claims struct {
	Subject   string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token is past its exp claim at now. Tokens
// without exp never expire locally.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// Session is the signed-in user and token, backed by Storage.
type Session struct {
	mu    sync.Mutex
	store Storage
	log   logging.Logger
}

// New returns a Session over store.
func New(store Storage, log logging.Logger) *Session {
	return &Session{store: store, log: logging.OrDiscard(log)}
}

// Login persists token and user.
func (s *Session) Login(token string, user api.User) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("login: empty token")
	}
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("login: encode user: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Set(KeyUser, string(data)); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := s.store.Set(KeyToken, token); err != nil {
		_ = s.store.Delete(KeyUser)
		return fmt.Errorf("login: %w", err)
	}
	return nil
}

// Logout removes both keys.
func (s *Session) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Delete(KeyToken, KeyUser); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// Clear is Logout for callbacks that cannot return an error, such as the
// API client's unauthorized hook.
func (s *Session) Clear() {
	if err := s.Logout(); err != nil {
		s.log.Warnf("session: clear: %v", err)
	}
}

// Token implements api.TokenSource. It returns an empty token when nobody
// is signed in.
func (s *Session) Token() (string, error) {
	tok, _, ok := s.load()
	if !ok {
		return "", nil
	}
	return tok, nil
}

// User returns the signed-in user.
func (s *Session) User() (api.User, bool) {
	_, user, ok := s.load()
	return user, ok
}

// LoggedIn reports whether a token and a readable user are both stored.
func (s *Session) LoggedIn() bool {
	_, _, ok := s.load()
	return ok
}

// Claims decodes the stored token.
func (s *Session) Claims() (Claims, error) {
	tok, _, ok := s.load()
	if !ok {
		return Claims{}, ErrSignedOut
	}
	return ParseClaims(tok)
}

// ParseClaims reads the registered claims of a JWT without verifying it.
func ParseClaims(token string) (Claims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return Claims{}, fmt.Errorf("parse token: %w", err)
	}
	var c Claims
	if v, ok := claims["sub"].(string); ok {
		c.Subject = v
	}
	if v, ok := claims["role"].(string); ok {
		c.Role = v
	}
	c.IssuedAt = unixClaim(claims["iat"])
	c.ExpiresAt = unixClaim(claims["exp"])
	return c, nil
}

func unixClaim(v any) time.Time {
	switch n := v.(type) {
	case float64:
		return time.Unix(int64(n), 0)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return time.Unix(i, 0)
		}
	}
	return time.Time{}
}

// load reads both keys. A partial or unreadable session is wiped so the
// next request asks for a fresh sign-in.
func (s *Session) load() (string, api.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, tokErr := s.store.Get(KeyToken)
	raw, userErr := s.store.Get(KeyUser)
	if errors.Is(tokErr, ErrNotFound) && errors.Is(userErr, ErrNotFound) {
		return "", api.User{}, false
	}

	var user api.User
	err := errors.Join(tokErr, userErr)
	if err == nil && strings.TrimSpace(tok) == "" {
		err = errors.New("empty token")
	}
	if err == nil {
		err = json.Unmarshal([]byte(raw), &user)
	}
	if err != nil {
		s.log.Warnf("session: discarding stored session: %v", err)
		if derr := s.store.Delete(KeyToken, KeyUser); derr != nil {
			s.log.Warnf("session: clear: %v", derr)
		}
		return "", api.User{}, false
	}
	return tok, user, true
}

var _ api.TokenSource = (*Session)(nil)

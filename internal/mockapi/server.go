package mockapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
)

const (
	defaultAddress  = "127.0.0.1:8080"
	defaultTokenTTL = 8 * time.Hour
)

// Options configures a Server.
type Options struct {
	Address        string
	Secret         []byte
	TokenTTL       time.Duration
	Logger         *log.Logger
	DisableReqLogs bool
	Debug          bool
}

// Server is an in-memory school management backend speaking the same REST
// contract as the real one.
type Server struct {
	opts  Options
	app   *echo.Echo
	data  *dataset
	auth  *authenticator
	fault *faults
}

var _ http.Handler = (*Server)(nil)

// NewServer builds a server over a freshly seeded dataset.
func NewServer(opts Options) *Server {
	if opts.Address == "" {
		opts.Address = defaultAddress
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = defaultTokenTTL
	}
	if len(opts.Secret) == 0 {
		opts.Secret = []byte("roster-mock-secret")
	}
	s := &Server{
		opts:  opts,
		app:   echo.New(),
		data:  seed(),
		fault: newFaults(),
	}
	s.auth = newAuthenticator(opts.Secret, opts.TokenTTL, s.data)
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.HidePort = true
	s.app.Debug = s.opts.Debug
	if s.opts.Logger != nil {
		s.app.Logger = s.opts.Logger
	}
	s.app.Validator = newValidator()
	s.app.HTTPErrorHandler = newHTTPErrorHandler(s.app.Logger)

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
			Format: "${method} ${uri} ${status} ${latency_human}\n",
			Output: s.app.Logger.Output(),
		}))
	}
	s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	s.app.Use(s.fault.middleware)

	g := s.app.Group("/api")
	g.POST("/auth/login", s.login)

	jwt := middleware.JWTWithConfig(s.auth.config())
	authed := g.Group("", jwt)
	s.registerRoutes(authed)
}

// Start listens on the configured address until Shutdown is called.
func (s *Server) Start() error {
	s.app.Logger.Infof("mock api listening on %s", s.opts.Address)
	err := s.app.Start(s.opts.Address)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the listener and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

// ServeHTTP lets tests drive the server through httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.app.ServeHTTP(w, r)
}

// Address returns the listen address.
func (s *Server) Address() string { return s.opts.Address }

// Token issues a session token for username without a password check.
func (s *Server) Token(username string) (string, error) {
	acc, ok := s.data.accountByUsername(username)
	if !ok {
		return "", errUserNotFound
	}
	return s.auth.issue(acc.User)
}

// FailNext makes the next request whose method and path match respond with
// status instead of reaching its handler.
func (s *Server) FailNext(method, path string, status int) {
	s.fault.add(method, path, status)
}

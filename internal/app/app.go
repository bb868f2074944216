package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/five82/roster/internal/api"
	"github.com/five82/roster/internal/config"
	"github.com/five82/roster/internal/logging"
	"github.com/five82/roster/internal/prefs"
	"github.com/five82/roster/internal/query"
	"github.com/five82/roster/internal/session"
	"github.com/five82/roster/internal/state"
	"github.com/five82/roster/internal/ui"
)

// Options configure the roster application.
type Options struct {
	ConfigPath string
	PrefsPath  string        // empty uses the prefs.toml next to the config file
	PollEvery  time.Duration // zero uses the configured interval
	APIURL     string        // overrides the configured API URL
	// LogOutput receives log lines. When nil the log file under the data
	// directory is used so the console is not corrupted.
	LogOutput io.Writer
	Verbose   bool
}

// Env is the wired object graph shared by the console and the CLI.
type Env struct {
	Config  config.Config
	Log     *log.Logger
	Session *session.Session
	Client  *api.Client
	Cache   *query.Cache
	Store   *state.Store

	closers []io.Closer
}

// Build loads configuration and wires session, client, cache and store.
// Callers must Close the returned Env.
func Build(opts Options) (*Env, error) {
	if err := config.LoadDotEnv(""); err != nil {
		return nil, err
	}
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load roster config: %w", err)
	}
	if opts.APIURL != "" {
		cfg.APIURL = opts.APIURL
	}

	env := &Env{Config: cfg}

	out := opts.LogOutput
	if out == nil {
		f, err := logging.OpenFile(cfg.LogPath())
		if err != nil {
			return nil, err
		}
		env.closers = append(env.closers, f)
		out = f
	}
	env.Log = logging.New(out, cfg.Debug || opts.Verbose)

	store, err := session.Open(cfg.SessionStore, cfg.SessionPath())
	if err != nil {
		_ = env.Close()
		return nil, fmt.Errorf("open session store: %w", err)
	}
	env.closers = append(env.closers, store)
	env.Session = session.New(store, env.Log)

	client, err := api.NewClient(cfg.APIURL,
		api.WithTokenSource(env.Session),
		api.WithLogger(env.Log),
		api.WithUnauthorizedHook(env.signOut),
	)
	if err != nil {
		_ = env.Close()
		return nil, fmt.Errorf("init api client: %w", err)
	}
	env.Client = client

	env.Cache = query.NewCache(
		query.WithDefaultStaleTime(cfg.StaleTime),
		query.WithLogger(env.Log),
	)
	env.Store = state.New(client, env.Cache, state.WithLogger(env.Log))
	return env, nil
}

// signOut forgets the session and every cached response. The client calls
// it when the backend rejects the token.
func (e *Env) signOut() {
	e.Log.Warnf("session rejected by server; signing out")
	e.Session.Clear()
	if e.Store != nil {
		e.Store.Reset()
	}
}

// Login signs in against the API and persists the session.
func (e *Env) Login(ctx context.Context, username, password string) (api.User, error) {
	res, err := e.Client.Login(ctx, api.LoginRequest{Username: username, Password: password})
	if err != nil {
		return api.User{}, err
	}
	if err := e.Session.Login(res.Token, res.User); err != nil {
		return api.User{}, err
	}
	e.Store.Reset()
	e.Log.Infof("signed in as %s", res.User.Username)
	return res.User, nil
}

// Logout clears the session and the cache.
func (e *Env) Logout() error {
	err := e.Session.Logout()
	e.Store.Reset()
	return err
}

// Close releases the session store and the log file.
func (e *Env) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}

// Run boots the roster console until the context is cancelled or the user
// quits.
func Run(ctx context.Context, opts Options) error {
	env, err := Build(opts)
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	if !env.Session.LoggedIn() {
		return fmt.Errorf("not signed in: run 'roster login' first")
	}

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = config.PrefsPath(opts.ConfigPath)
	}
	userPrefs, _ := prefs.Load(prefsPath)

	interval := env.Config.PollInterval
	if opts.PollEvery > 0 {
		interval = opts.PollEvery
	}

	StartPoller(ctx, env.Store, interval, env.Session.LoggedIn, env.Log)

	user, _ := env.Session.User()
	return ui.Run(ui.Options{
		Context:   ctx,
		Store:     env.Store,
		User:      user,
		LogPath:   env.Config.LogPath(),
		PollTick:  interval,
		Prefs:     userPrefs,
		PrefsPath: prefsPath,
	})
}

package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/five82/climdo/internal/api"
	"github.com/five82/climdo/internal/config"
	"github.com/five82/climdo/internal/observability"
	"github.com/five82/climdo/internal/prefs"
	"github.com/five82/climdo/internal/session"
	"github.com/five82/climdo/internal/state"
	"github.com/five82/climdo/internal/ui"
)

// Options configure the climdo runtime.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/climdo/prefs.toml
	APIURL     string // overrides config and environment when set
	LogLevel   string // overrides config and environment when set
}

// Runtime is everything a command needs: resolved config, the persisted
// session, the API client and the entity stores built on it.
type Runtime struct {
	Config  config.Config
	Logger  *slog.Logger
	Metrics *observability.Metrics
	Jar     *session.Jar
	Client  *api.Client
	Tasks   *state.TaskStore
	Groups  *state.GroupStore

	prefsPath string
	logFile   io.Closer
	expired   atomic.Bool
}

// Open resolves configuration, restores the saved session and builds the
// client. Call Close when done so refreshed cookies are persisted.
func Open(opts Options) (*Runtime, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if v := strings.TrimSpace(opts.APIURL); v != "" {
		cfg.APIURL = v
	}
	if v := strings.TrimSpace(opts.LogLevel); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, logFile, err := observability.OpenLogFile(cfg.LogDir, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	jar, err := session.NewJar(cfg.APIURL)
	if err != nil {
		_ = logFile.Close()
		return nil, fmt.Errorf("init session: %w", err)
	}
	if err := jar.Load(cfg.SessionPath); err != nil {
		// A corrupt session file only costs a new login.
		logger.Warn("discarding saved session", "path", cfg.SessionPath, "error", err)
	}

	metrics := observability.NewMetrics()
	client, err := api.New(api.Options{
		BaseURL:       cfg.APIURL,
		Timeout:       cfg.Timeout,
		Cookies:       jar,
		AccessCookie:  cfg.AccessCookie,
		RefreshCookie: cfg.RefreshCookie,
		Logger:        logger,
		Metrics:       metrics,
	})
	if err != nil {
		_ = logFile.Close()
		return nil, fmt.Errorf("init api client: %w", err)
	}

	rt := &Runtime{
		Config:    cfg,
		Logger:    logger,
		Metrics:   metrics,
		Jar:       jar,
		Client:    client,
		Tasks:     state.NewTaskStore(client, metrics),
		Groups:    state.NewGroupStore(client, metrics),
		prefsPath: opts.PrefsPath,
		logFile:   logFile,
	}
	client.OnSessionExpired(rt.handleExpired)
	return rt, nil
}

func (rt *Runtime) handleExpired(err *api.Error) {
	rt.expired.Store(true)
	rt.Logger.Warn("session expired, clearing saved session", "error", err.Err)
	rt.ClearSession()
}

// SessionExpired reports whether a refresh has failed since Open.
func (rt *Runtime) SessionExpired() bool {
	return rt.expired.Load()
}

// LoggedIn reports whether any session cookies are held.
func (rt *Runtime) LoggedIn() bool {
	return !rt.Jar.Empty()
}

// Login authenticates and persists the new session.
func (rt *Runtime) Login(ctx context.Context, username, password string) (api.User, error) {
	user, err := rt.Client.Login(ctx, username, password)
	if err != nil {
		return api.User{}, err
	}
	rt.expired.Store(false)
	if err := rt.SaveSession(); err != nil {
		return user, err
	}
	rt.Logger.Info("logged in", "username", user.Username)
	return user, nil
}

// Logout ends the session on the server and forgets it locally. A server
// failure is logged; the local session is cleared regardless.
func (rt *Runtime) Logout(ctx context.Context) {
	if err := rt.Client.Logout(ctx); err != nil {
		rt.Logger.Warn("server logout failed", "error", err)
	}
	rt.ClearSession()
}

// SaveSession writes the jar to the session file.
func (rt *Runtime) SaveSession() error {
	if err := rt.Jar.Save(rt.Config.SessionPath); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// ClearSession empties the jar and removes the session file.
func (rt *Runtime) ClearSession() {
	rt.Jar.Clear()
	if err := session.Remove(rt.Config.SessionPath); err != nil {
		rt.Logger.Warn("remove session file", "error", err)
	}
}

// Close persists the session (tokens may have been refreshed) and closes
// the log file.
func (rt *Runtime) Close() error {
	var saveErr error
	if !rt.expired.Load() && rt.LoggedIn() {
		saveErr = rt.SaveSession()
	}
	if rt.logFile != nil {
		if err := rt.logFile.Close(); err != nil && saveErr == nil {
			return err
		}
	}
	return saveErr
}

// Dashboard runs the TUI until the user quits or ctx is cancelled.
func (rt *Runtime) Dashboard(ctx context.Context) error {
	userPrefs, _ := prefs.Load(rt.prefsPath)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Populate the stores before the first frame.
	if err := refresh(ctx, rt.Tasks, rt.Groups); err != nil {
		rt.Logger.Warn("initial fetch failed", "error", err)
	}
	pollerDone := StartPoller(ctx, rt.Logger, rt.Config.PollInterval, rt.Tasks, rt.Groups)

	err := ui.Run(ui.Options{
		Context:        ctx,
		Tasks:          rt.Tasks,
		Groups:         rt.Groups,
		SessionExpired: rt.SessionExpired,
		ThemeName:      userPrefs.Theme,
		DefaultView:    userPrefs.DefaultView,
		PrefsPath:      rt.prefsPath,
		Logger:         rt.Logger,
	})
	cancel()
	<-pollerDone
	return err
}

package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/sb-ncbr/proptimus-web/internal/config"
	"github.com/sb-ncbr/proptimus-web/internal/hinting"
	"github.com/sb-ncbr/proptimus-web/internal/jobs"
	"github.com/sb-ncbr/proptimus-web/internal/logger"
	"github.com/sb-ncbr/proptimus-web/internal/models"
	"github.com/sb-ncbr/proptimus-web/internal/proptimus"
	"github.com/sb-ncbr/proptimus-web/internal/query"
	"github.com/sb-ncbr/proptimus-web/internal/results"
	"github.com/sb-ncbr/proptimus-web/internal/visualization"
	"github.com/sb-ncbr/proptimus-web/internal/websocket"
	"go.uber.org/zap"
)

// App holds the core components of the application that are shared
// between the server and the CLI.
type App struct {
	Config   *config.Config
	Logger   *zap.SugaredLogger
	LogLevel zap.AtomicLevel
	Version  string

	API       proptimus.API
	Query     *query.Client
	Jobs      *jobs.Manager
	Submitter *jobs.Submitter
	Hinter    *hinting.Hinter
	Viewers   *visualization.Manager
	WsHub     *websocket.Hub

	mu       sync.Mutex
	rendered map[string]bool
	closers  []func()
}

// New sets up and returns a new App instance. It loads config.yml (and
// .env), builds the logger and connects to the configured cache.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	lg, level := logger.New(cfg.Log.Level)
	api := proptimus.New(cfg.API.BaseURL, cfg.Hinting.UpstreamURL, cfg.API.Timeout)

	app, err := NewWithConfig(cfg, lg, api)
	if err != nil {
		return nil, err
	}
	app.LogLevel = level
	app.Logger.Infow("Core application setup complete.", "backend", cfg.API.BaseURL, "version", cfg.App.Version)
	return app, nil
}

// NewWithConfig builds an App around an existing config, logger and
// backend. Tests use it with fake backends.
func NewWithConfig(cfg *config.Config, lg *zap.SugaredLogger, api proptimus.API) (*App, error) {
	if lg == nil {
		lg = logger.Nop()
	}
	app := &App{
		Config:   cfg,
		Logger:   lg,
		LogLevel: zap.NewAtomicLevelAt(logger.ParseLevel(cfg.Log.Level)),
		Version:  cfg.App.Version,
		API:      api,
		rendered: make(map[string]bool),
	}

	store, err := app.openStore()
	if err != nil {
		return nil, err
	}
	app.Query = query.NewClient(store, lg.Named("query"))

	app.WsHub = websocket.NewHub(lg.Named("ws"))
	go app.WsHub.Run()

	app.Jobs = jobs.NewManager(api, app.Query, jobs.Options{
		PollInterval: cfg.Polling.Interval,
		TTL:          cfg.Tracker.TTL,
		Publisher:    app.WsHub,
		Watchers:     app.WsHub,
		IdleTimeout:  cfg.Tracker.IdleTimeout,
	}, lg.Named("jobs"))
	app.Jobs.SetListener(app.onJobState)
	app.closers = append(app.closers, app.Jobs.Close)

	app.Submitter = jobs.NewSubmitter(api, lg.Named("submit"))
	// Hint lists live in their own store so they expire on the hinting
	// retention rather than the artifact one.
	hintStore := query.NewMemoryStore(cfg.Cache.Size, cfg.Hinting.GCTime)
	app.Hinter = hinting.NewHinter(api, query.NewClient(hintStore, lg.Named("hints")), cfg.Hinting.StaleTime, lg.Named("hinting"))
	app.Viewers = visualization.NewManager(
		visualization.NewSessionFactory(app.WsHub),
		visualization.NewObjectURLStore("/blobs/"),
		visualization.Settings{Background: cfg.Viewer.Background, ShowUI: cfg.Viewer.ShowUI},
		lg.Named("viewer"),
	)
	app.closers = append(app.closers, app.Viewers.Close)
	return app, nil
}

func (a *App) openStore() (query.Store, error) {
	if url := a.Config.Cache.RedisURL; url != "" {
		rs, err := query.NewRedisStore(url, a.Config.Cache.GCTime)
		if err != nil {
			return nil, fmt.Errorf("failed to open query cache: %w", err)
		}
		a.closers = append(a.closers, func() { rs.Close() })
		a.Logger.Infow("Using redis query cache", "url", url)
		return rs, nil
	}
	return query.NewMemoryStore(a.Config.Cache.Size, a.Config.Cache.GCTime), nil
}

// SetLogLevel changes the level of the running logger.
func (a *App) SetLogLevel(level string) {
	a.LogLevel.SetLevel(logger.ParseLevel(level))
}

func (a *App) onJobState(st jobs.State) {
	a.ShowComparison(st)
}

// ShowComparison renders the comparison of a job whose structures are both
// available, unless its container already holds one. Pages call it on
// every visit so a container disposed by an earlier page is filled again.
func (a *App) ShowComparison(st jobs.State) {
	view := results.Derive(st.Key, st)
	if view.Kind != results.KindComparison {
		return
	}
	a.mu.Lock()
	if _, live := a.Viewers.Lookup(view.ContainerID); live && a.rendered[view.ContainerID] {
		a.mu.Unlock()
		return
	}
	a.rendered[view.ContainerID] = true
	wrapper := a.Viewers.Wrapper(view.ContainerID)
	a.mu.Unlock()

	proteins := results.ComparisonDescriptors(*st.Original, *st.Optimised)
	go func() {
		status := wrapper.Render(context.Background(), proteins)
		a.Logger.Debugw("comparison rendered", "job_key", st.Key, "state", status.State)
	}()
}

// ForgetViewer lets a disposed comparison container be rendered again.
func (a *App) ForgetViewer(containerID string) {
	a.mu.Lock()
	delete(a.rendered, containerID)
	a.mu.Unlock()
}

// Resubmitted tracks a job that was just submitted. Results of an earlier
// run under the same key are dropped and its comparison is rendered anew.
func (a *App) Resubmitted(ctx context.Context, key models.JobKey) *jobs.Tracker {
	t := a.Jobs.Restart(ctx, key)
	a.ForgetViewer(results.ContainerID(key))
	return t
}

// Close gracefully releases the application's resources.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.Logger.Sync()
}

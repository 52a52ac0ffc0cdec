// Package app builds every collaborator from configuration so transports
// receive one explicit context instead of reaching for process-wide state.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"chatbot/internal/config"
	"chatbot/internal/db"
	"chatbot/internal/desktop"
	"chatbot/internal/engine"
	"chatbot/internal/events"
	"chatbot/internal/history"
	"chatbot/internal/logging"
	"chatbot/internal/migrate"
	"chatbot/internal/remote"
	"chatbot/internal/repo"
	"chatbot/internal/runner"
)

type Options struct {
	Workspace string
	// ConfigPath overrides <workspace>/chatbot.yml; the file must then exist.
	ConfigPath string
	Config     *config.Config
	Log        zerolog.Logger
	Fs         afero.Fs
}

type App struct {
	Config  *config.Config
	DB      *sql.DB
	Engine  *engine.Engine
	Runner  *runner.Runner
	Remote  *remote.Facade
	Monitor *remote.Monitor
	Desktop *desktop.Controller
	History history.Cache
	Log     zerolog.Logger

	cancel context.CancelFunc
}

// LoadConfig resolves the config for a workspace, preferring an explicit path.
func LoadConfig(workspace, path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.LoadOptional(workspace)
}

// Open wires the application but starts no background work.
func Open(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		var err error
		if cfg, err = LoadConfig(opts.Workspace, opts.ConfigPath); err != nil {
			return nil, err
		}
	}
	log := opts.Log

	conn, err := db.Open(db.Config{Workspace: opts.Workspace})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := migrate.MigrateContext(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	cache, err := openHistory(ctx, cfg, log)
	if err != nil {
		conn.Close()
		return nil, err
	}

	facade := remote.New(cfg.Services, logging.WithComponent(log, "remote"))
	ctrl := desktop.New(desktop.Config{
		VNCPort:        cfg.Desktop.VNCPort,
		ChromeCDPPort:  cfg.Server.ChromeCDPPort,
		ScreenshotPath: cfg.Desktop.ScreenshotPath,
		Display:        cfg.Desktop.Display,
		StartCommand:   cfg.Desktop.StartCommand,
		Shell:          cfg.Runner.Shell,
	})

	runOpts := runner.Options{
		Workers:     cfg.Runner.Workers,
		QueueSize:   cfg.Runner.QueueSize,
		SearchDelay: cfg.Runner.SearchDelay,
		LiveSearch:  cfg.Runner.LiveSearch,
		Shell:       runner.ExecShell{Path: cfg.Runner.Shell},
		Fs:          opts.Fs,
		Desktop:     ctrl,
		Events:      &events.Writer{DB: conn},
		Log:         logging.WithComponent(log, "runner"),
	}
	if cfg.Runner.LiveSearch {
		runOpts.Searcher = facade
	}
	r := runner.New(repo.Repo{DB: conn}, runOpts)

	eng := engine.New(conn, cfg, engine.Options{
		Runner:  r,
		Remote:  facade,
		Desktop: ctrl,
		History: cache,
		Log:     logging.WithComponent(log, "engine"),
	})

	return &App{
		Config:  cfg,
		DB:      conn,
		Engine:  eng,
		Runner:  r,
		Remote:  facade,
		Monitor: remote.NewMonitor(facade, cfg.Health.Schedule, cfg.Health.Timeout, logging.WithComponent(log, "health")),
		Desktop: ctrl,
		History: cache,
		Log:     log,
	}, nil
}

func openHistory(ctx context.Context, cfg *config.Config, log zerolog.Logger) (history.Cache, error) {
	if cfg.History.Backend != "redis" {
		return history.NewMemory(cfg.History.Size), nil
	}
	rc := cfg.History.Redis
	cache, err := history.NewRedis(ctx, history.RedisOptions{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
		Key:      rc.Key,
		Size:     cfg.History.Size,
	})
	if err != nil {
		return nil, fmt.Errorf("history cache: %w", err)
	}
	log.Info().Str("addr", rc.Addr).Msg("using redis history cache")
	return cache, nil
}

// Start launches the action workers and, when enabled, the health monitor.
func (a *App) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)
	a.Runner.Start(ctx)
	if a.Config.Health.Enabled {
		if err := a.Monitor.Start(); err != nil {
			return err
		}
	}
	return nil
}

// Close stops background work and releases storage. Queued actions are
// drained before the database closes.
func (a *App) Close() error {
	var errs []error
	if a.Monitor != nil {
		a.Monitor.Stop()
	}
	if a.Runner != nil {
		if err := a.Runner.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.cancel != nil {
		a.cancel()
	}
	if a.History != nil {
		if err := a.History.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

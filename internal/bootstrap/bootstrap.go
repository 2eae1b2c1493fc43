// Package bootstrap holds the process wiring shared by every binary: env and
// config loading, the logger, signal handling and ordered shutdown of stores.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/farmlink-backend/pkg/config"
	"github.com/angelmondragon/farmlink-backend/pkg/db"
	"github.com/angelmondragon/farmlink-backend/pkg/instance"
	"github.com/angelmondragon/farmlink-backend/pkg/logger"
	"github.com/angelmondragon/farmlink-backend/pkg/migrate"
	"github.com/angelmondragon/farmlink-backend/pkg/redis"
)

// App is handed to a binary's run function.
type App struct {
	Kind   string
	Config *config.Config
	Logger *logger.Logger

	closers []namedCloser
}

type namedCloser struct {
	name string
	c    io.Closer
}

// Main loads configuration, runs fn until SIGINT or SIGTERM and exits
// non-zero when fn fails. Cancellation is a clean exit.
func Main(kind string, fn func(ctx context.Context, app *App) error) {
	app, err := load(kind)
	if err != nil {
		logger.New(logger.Options{ServiceName: kind}).Error(context.Background(), "startup.config_failed", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx = app.Logger.WithFields(ctx, map[string]any{
		"env":         app.Config.App.Env,
		"serviceKind": kind,
		"workerID":    instance.GetID(),
	})

	runErr := fn(ctx, app)
	stop()
	closeErr := app.Close()

	switch {
	case runErr != nil && !errors.Is(runErr, context.Canceled):
		app.Logger.Error(ctx, kind+".stopped", multierr.Append(runErr, closeErr))
		os.Exit(1)
	case closeErr != nil:
		app.Logger.Error(ctx, kind+".close_failed", closeErr)
	}
	app.Logger.Info(ctx, kind+".shutdown")
}

func load(kind string) (*App, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	cfg.Service.Kind = kind
	return &App{
		Kind:   kind,
		Config: cfg,
		Logger: logger.New(logger.Options{
			ServiceName: kind,
			Level:       logger.ParseLevel(cfg.App.LogLevel),
			WarnStack:   cfg.App.LogWarnStack,
			Format:      cfg.App.LogFormat,
		}),
	}, nil
}

// Database connects to Postgres and, in dev, applies pending migrations.
func (a *App) Database(ctx context.Context) (*db.Client, error) {
	client, err := db.New(ctx, a.Config.DB, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap database: %w", err)
	}
	a.OnClose("database", client)
	if err := migrate.MaybeRunDev(ctx, a.Config, a.Logger, client); err != nil {
		return nil, fmt.Errorf("dev migrations: %w", err)
	}
	return client, nil
}

func (a *App) Redis(ctx context.Context) (*redis.Client, error) {
	client, err := redis.New(ctx, a.Config.Redis, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap redis: %w", err)
	}
	a.OnClose("redis", client)
	return client, nil
}

// OnClose registers c to be closed on shutdown, after everything opened
// later.
func (a *App) OnClose(name string, c io.Closer) {
	a.closers = append(a.closers, namedCloser{name: name, c: c})
}

// Close releases resources in reverse order of registration. It is safe to
// call more than once.
func (a *App) Close() error {
	var errs error
	for i := len(a.closers) - 1; i >= 0; i-- {
		nc := a.closers[i]
		if err := nc.c.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close %s: %w", nc.name, err))
		}
	}
	a.closers = nil
	return errs
}

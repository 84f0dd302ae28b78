// Package app wires the service components together and manages their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"github.com/getout/app/internal/async"
	"github.com/getout/app/internal/config"
	"github.com/getout/app/internal/database"
	"github.com/getout/app/internal/logger"
	"github.com/getout/app/internal/metrics"
	"github.com/getout/app/internal/scheduler"
	"github.com/getout/app/internal/server"
	"github.com/getout/app/internal/tasks"
)

// App represents the running service and owns its components.
type App struct {
	logger     *slog.Logger
	cfg        *config.Config
	db         *sqlx.DB
	store      database.Store
	server     *server.Server
	scheduler  *scheduler.Scheduler
	dispatcher *async.Dispatcher
}

// New opens the database, applies migrations and constructs every component.
// The returned App owns the database handle; it is closed when Run returns.
func New(log *slog.Logger, cfg *config.Config) (*App, error) {
	db, err := database.NewDB(cfg.Database)
	if err != nil {
		return nil, err
	}

	a, err := NewWithDB(log, cfg, db)
	if err != nil {
		database.CloseDB(db)
		return nil, err
	}
	return a, nil
}

// NewWithDB constructs the App around an already migrated database.
func NewWithDB(log *slog.Logger, cfg *config.Config, db *sqlx.DB) (*App, error) {
	if log == nil {
		log = logger.Discard()
	}
	store := database.NewStore(db, log)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	taskMap := tasks.RegisterAllTasks(tasks.TaskDeps{Logger: log, Store: store})
	sched, err := scheduler.New(log, cfg.Scheduler, taskMap)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &App{
		logger:     log.With("component", "app"),
		cfg:        cfg,
		db:         db,
		store:      store,
		server:     server.New(cfg.Server, cfg.Metrics, log, m),
		scheduler:  sched,
		dispatcher: async.NewDispatcher(log, cfg.Async.MaxWorkers),
	}, nil
}

// Store exposes the persistence layer.
func (a *App) Store() database.Store {
	return a.store
}

// Run starts the HTTP server and the scheduler and blocks until ctx is
// cancelled or the server fails. Shutdown is bounded by server.shutdown_timeout.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("Starting application...", "addr", a.cfg.Server.Addr)
	defer database.CloseDB(a.db)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("Starting HTTP server...", "addr", a.cfg.Server.Addr)
		if err := a.server.ListenAndServe(); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		if gCtx.Err() == nil {
			a.logger.Warn("HTTP server stopped unexpectedly without context cancellation.")
			return errors.New("http server stopped unexpectedly")
		}
		a.logger.Info("HTTP server stopped.")
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("Shutdown signal received, stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gCtx), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("Error shutting down HTTP server", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		a.logger.Info("Starting scheduler...")
		if err := a.scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		a.runOnStart(gCtx)

		<-gCtx.Done()
		a.logger.Info("Shutdown signal received, stopping scheduler...")
		if err := a.scheduler.Stop(); err != nil {
			a.logger.Error("Error stopping scheduler", "error", err)
		}

		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(gCtx), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := a.dispatcher.Shutdown(drainCtx); err != nil {
			a.logger.Warn("Async jobs did not finish before timeout", "error", err)
		}
		return nil
	})

	a.logger.Info("Application running. Waiting for shutdown signal or error...")
	err := g.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	a.logger.Info("Application stopped gracefully.")
	return nil
}

// runOnStart submits every enabled task flagged run_on_start to the dispatcher.
func (a *App) runOnStart(ctx context.Context) {
	names := make([]string, 0, len(a.cfg.Scheduler.Tasks))
	for name, tc := range a.cfg.Scheduler.Tasks {
		if tc.Enabled && tc.RunOnStart {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		fn, ok := a.scheduler.Task(name)
		if !ok {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		if err := a.dispatcher.Submit(name, async.Func(fn)); err != nil {
			a.logger.Warn("Could not dispatch startup task", "task_name", name, "error", err)
		}
	}
}

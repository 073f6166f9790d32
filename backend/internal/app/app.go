// Package app wires configuration, the entry store, the graph service and
// the menu builder into one bundle shared by the server and the CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"contentgraph/backend/internal/api"
	"contentgraph/backend/internal/content"
	"contentgraph/backend/internal/graph"
	"contentgraph/backend/internal/menu"
	"contentgraph/backend/internal/store"
	"contentgraph/backend/internal/watch"
	"contentgraph/backend/pkg/config"
	"contentgraph/backend/pkg/logger"
)

// App holds the long-lived components
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Store    content.Store
	Graphs   *graph.Service
	Options  graph.BuildOptions
	Menus    *menu.Builder
	Services *api.Services

	closeStore store.Closer
}

// New opens the configured store and builds the services. Menus are not
// loaded until LoadMenus is called.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	log = logger.OrDefault(log)

	var schema *content.Schema
	if cfg.SchemaFile != "" {
		s, err := content.LoadSchema(cfg.SchemaFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load schema: %w", err)
		}
		schema = s
	}

	st, closeStore, err := store.Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	opts := graph.BuildOptions{
		IncludeIndirect:  cfg.IncludeIndirect,
		MaxIndirectDepth: cfg.MaxIndirectDepth,
	}
	graphs := graph.NewService(st, schema, log)
	menus := menu.NewBuilder(
		menu.DirSource{Root: cfg.ContentDir, Logger: log},
		menu.Options{MenuCollection: cfg.MenuCollection, StaticFile: cfg.StaticMenuFile, Schema: schema},
		log,
	)

	return &App{
		Config:     cfg,
		Logger:     log,
		Store:      st,
		Graphs:     graphs,
		Options:    opts,
		Menus:      menus,
		Services:   api.NewServices(graphs, opts, menus, log),
		closeStore: closeStore,
	}, nil
}

// LoadMenus runs a menu load
func (a *App) LoadMenus(ctx context.Context) (*menu.LoadResult, error) {
	return a.Menus.Load(ctx)
}

// Reload drops cached graphs and reloads menus. Failures are logged.
func (a *App) Reload(ctx context.Context, paths []string) {
	a.Graphs.ClearCache()
	if _, err := a.Menus.Load(ctx); err != nil {
		a.Logger.Error("Menu reload failed", zap.Int("changed", len(paths)), zap.Error(err))
	}
}

// Watch starts a content watcher calling Reload. It returns once the
// watcher is running; watching stops when ctx is cancelled.
func (a *App) Watch(ctx context.Context) error {
	w, err := watch.New(a.Config.ContentDir, time.Duration(a.Config.WatchDebounceMS)*time.Millisecond, a.Logger, a.Reload)
	if err != nil {
		return err
	}
	go func() {
		if err := w.Run(ctx); err != nil {
			a.Logger.Error("Content watcher stopped", zap.Error(err))
		}
	}()
	a.Logger.Info("Watching content directory", zap.String("root", a.Config.ContentDir))
	return nil
}

// Close releases the entry store
func (a *App) Close() error {
	if a.closeStore == nil {
		return nil
	}
	return a.closeStore()
}

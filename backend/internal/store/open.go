package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"contentgraph/backend/internal/content"
	"contentgraph/backend/pkg/config"
	"contentgraph/backend/pkg/logger"
)

// Backend names accepted by Open
const (
	BackendFS     = "fs"
	BackendMemory = "memory"
	BackendNeo4j  = "neo4j"
)

// Closer releases a backend's resources
type Closer func() error

func noopCloser() error { return nil }

// Open creates the entry store selected by cfg.StoreBackend. The memory
// backend is a snapshot of the content directory taken at startup.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (content.Store, Closer, error) {
	log = logger.OrDefault(log)

	switch cfg.StoreBackend {
	case "", BackendFS:
		log.Info("Using file entry store", zap.String("root", cfg.ContentDir))
		return NewFileStore(cfg.ContentDir, log), noopCloser, nil

	case BackendMemory:
		mem, err := Snapshot(ctx, NewFileStore(cfg.ContentDir, log))
		if err != nil {
			return nil, nil, err
		}
		log.Info("Using in-memory entry store", zap.String("root", cfg.ContentDir))
		return mem, noopCloser, nil

	case BackendNeo4j:
		s, err := ConnectNeo4j(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, log)
		if err != nil {
			return nil, nil, err
		}
		log.Info("Using Neo4j entry store", zap.String("uri", cfg.Neo4jURI))
		return s, s.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

// Snapshot copies every collection of src into a MemoryStore. Collections
// are read concurrently; entry order within a collection is preserved.
func Snapshot(ctx context.Context, src content.Store) (*content.MemoryStore, error) {
	names, err := src.Collections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}

	loaded := make([][]content.Entry, len(names))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			entries, err := src.Entries(gctx, name)
			if err != nil {
				return fmt.Errorf("failed to load collection %s: %w", name, err)
			}
			loaded[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	mem := content.NewMemoryStore()
	for _, entries := range loaded {
		mem.Add(entries...)
	}
	return mem, nil
}

package graph

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"contentgraph/backend/internal/content"
	"contentgraph/backend/pkg/logger"
)

// Service builds graphs lazily and caches them by BuildOptions.CacheKey.
//
// Two concurrent requests for the same uncached key may both build; the
// second result overwrites the first. Builds are deterministic, so this only
// costs time.
type Service struct {
	builder *Builder
	store   content.Store
	logger  *zap.Logger

	mu    sync.RWMutex
	cache map[string]*Graph
}

// NewService creates a graph service over a store
func NewService(store content.Store, schema *content.Schema, log *zap.Logger) *Service {
	log = logger.OrDefault(log)
	return &Service{
		builder: NewBuilder(store, schema, log),
		store:   store,
		logger:  log,
		cache:   make(map[string]*Graph),
	}
}

// Store returns the entry store the service reads from
func (s *Service) Store() content.Store {
	return s.store
}

// Schema returns the schema descriptor used for builds
func (s *Service) Schema() *content.Schema {
	return s.builder.Schema()
}

// Graph returns the cached graph for opts, building it on first request
func (s *Service) Graph(ctx context.Context, opts BuildOptions) (*Graph, error) {
	opts, err := s.resolve(ctx, opts)
	if err != nil {
		return nil, err
	}
	key := opts.CacheKey()

	s.mu.RLock()
	g, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		cacheLookups.WithLabelValues("hit").Inc()
		s.logger.Debug("Graph cache hit", zap.String("key", key), zap.String("build_id", g.BuildID))
		return g, nil
	}

	cacheLookups.WithLabelValues("miss").Inc()
	s.logger.Debug("Graph cache miss", zap.String("key", key))
	return s.Rebuild(ctx, opts)
}

// Rebuild builds a fresh graph for opts, bypassing and then refreshing the cache
func (s *Service) Rebuild(ctx context.Context, opts BuildOptions) (*Graph, error) {
	opts, err := s.resolve(ctx, opts)
	if err != nil {
		return nil, err
	}
	g, err := s.builder.Build(ctx, opts)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.cache[opts.CacheKey()] = g
	s.mu.Unlock()
	return g, nil
}

// Build builds a graph without touching the cache
func (s *Service) Build(ctx context.Context, opts BuildOptions) (*Graph, error) {
	return s.builder.Build(ctx, opts)
}

// Invalidate drops the cached graph for one option set
func (s *Service) Invalidate(ctx context.Context, opts BuildOptions) error {
	opts, err := s.resolve(ctx, opts)
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.cache, opts.CacheKey())
	s.mu.Unlock()
	return nil
}

// ClearCache drops every cached graph
func (s *Service) ClearCache() {
	s.mu.Lock()
	n := len(s.cache)
	s.cache = make(map[string]*Graph)
	s.mu.Unlock()
	s.logger.Debug("Graph cache cleared", zap.Int("evicted", n))
}

// CacheSize returns the number of cached graphs
func (s *Service) CacheSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

// resolve fills in the default collection list so equivalent requests share
// a cache key.
func (s *Service) resolve(ctx context.Context, opts BuildOptions) (BuildOptions, error) {
	if len(opts.Collections) == 0 {
		names, err := s.store.Collections(ctx)
		if err != nil {
			return opts, fmt.Errorf("failed to list collections: %w", err)
		}
		opts.Collections = names
	}
	return opts.normalized(), nil
}

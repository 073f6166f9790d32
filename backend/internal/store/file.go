// Package store provides the Entry Store backends: content directories on
// disk, an in-memory store, and Neo4j.
package store

import (
	"context"

	"go.uber.org/zap"

	"contentgraph/backend/internal/content"
	"contentgraph/backend/internal/frontmatter"
	"contentgraph/backend/pkg/logger"
)

// FileStore reads collections from a content root with one directory per
// collection. Every call reads the disk; the graph service caches builds.
type FileStore struct {
	root   string
	logger *zap.Logger
}

// NewFileStore creates a store over root
func NewFileStore(root string, log *zap.Logger) *FileStore {
	return &FileStore{root: root, logger: logger.OrDefault(log)}
}

// Root returns the content root
func (s *FileStore) Root() string {
	return s.root
}

// Entries implements content.Store. Entry ids come from the frontmatter id,
// then slug, then the file path; duplicates keep the first file.
func (s *FileStore) Entries(ctx context.Context, collection string) ([]content.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	docs, err := frontmatter.WalkCollection(s.root, collection, s.logger)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]string, len(docs))
	out := make([]content.Entry, 0, len(docs))
	for _, d := range docs {
		id := d.ID()
		if first, dup := seen[id]; dup {
			s.logger.Warn("Duplicate entry id, keeping first",
				zap.String("collection", collection),
				zap.String("id", id),
				zap.String("kept", first),
				zap.String("skipped", d.Path),
			)
			continue
		}
		seen[id] = d.Path
		out = append(out, content.Entry{Collection: collection, ID: id, Data: d.Data})
	}
	return out, nil
}

// Collections implements content.Store
func (s *FileStore) Collections(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return frontmatter.Collections(s.root)
}

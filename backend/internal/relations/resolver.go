// Package relations answers "relations of X" questions against cached
// relationship graphs. Lookups never fail on missing entries: a miss forces
// one uncached rebuild, and a second miss yields an empty relation map around
// a placeholder entry.
package relations

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"contentgraph/backend/internal/constants"
	"contentgraph/backend/internal/content"
	"contentgraph/backend/internal/graph"
	"contentgraph/backend/pkg/logger"
)

// PlaceholderField marks the data of synthetic entries returned for misses
const PlaceholderField = "_placeholder"

// Resolver resolves relations through a graph service
type Resolver struct {
	graphs *graph.Service
	opts   graph.BuildOptions
	logger *zap.Logger
}

// NewResolver creates a resolver that builds graphs with opts
func NewResolver(graphs *graph.Service, opts graph.BuildOptions, log *zap.Logger) *Resolver {
	return &Resolver{
		graphs: graphs,
		opts:   opts,
		logger: logger.OrDefault(log),
	}
}

// Options returns the build options used for lookups
func (r *Resolver) Options() graph.BuildOptions {
	return r.opts
}

// WithOptions returns a resolver sharing the graph service but building with opts
func (r *Resolver) WithOptions(opts graph.BuildOptions) *Resolver {
	return &Resolver{graphs: r.graphs, opts: opts, logger: r.logger}
}

// Graph returns the cached graph for the resolver's options
func (r *Resolver) Graph(ctx context.Context) (*graph.Graph, error) {
	return r.graphs.Graph(ctx, r.opts)
}

// Relations returns the relations of an entry, optionally restricted to the
// given types. The result is a copy and may be modified by the caller.
func (r *Resolver) Relations(ctx context.Context, collection, id string, types ...graph.RelationType) *graph.RelationMap {
	rm, _ := r.lookup(ctx, collection, id)
	return rm.Filter(types...)
}

// lookup finds the relation map of an entry, rebuilding once on a miss. The
// graph is nil when no build succeeded.
func (r *Resolver) lookup(ctx context.Context, collection, id string) (*graph.RelationMap, *graph.Graph) {
	g, err := r.graphs.Graph(ctx, r.opts)
	if err != nil {
		r.logger.Warn("Failed to load relationship graph",
			zap.String("collection", collection),
			zap.String("id", id),
			zap.Error(err),
		)
		return Placeholder(collection, id), nil
	}
	if rm, ok := g.Relations(collection, id); ok {
		return rm, g
	}

	r.logger.Debug("Entry missing from cached graph, rebuilding",
		zap.String("collection", collection),
		zap.String("id", id),
		zap.String("build_id", g.BuildID),
	)
	fresh, err := r.graphs.Rebuild(ctx, r.opts)
	if err != nil {
		r.logger.Warn("Failed to rebuild relationship graph", zap.Error(err))
		return Placeholder(collection, id), g
	}
	if rm, ok := fresh.Relations(collection, id); ok {
		return rm, fresh
	}
	return Placeholder(collection, id), fresh
}

// Placeholder returns an empty relation map wrapping a synthetic entry
func Placeholder(collection, id string) *graph.RelationMap {
	return graph.NewRelationMap(&content.Entry{
		Collection: collection,
		ID:         id,
		Data:       map[string]any{PlaceholderField: true},
	})
}

// IsPlaceholder reports whether an entry was synthesised for a miss
func IsPlaceholder(e *content.Entry) bool {
	if e == nil {
		return true
	}
	v, _ := e.Data[PlaceholderField].(bool)
	return v
}

// Filter narrows ReferencedEntries and ReferencingEntries results
type Filter struct {
	// Field keeps only relations created from this data field.
	Field string

	// Collection keeps only relations whose other end is in this collection.
	Collection string

	// Resolve attaches the related entry payload to each relation.
	Resolve bool
}

func (f Filter) match(rel graph.Relation) bool {
	if f.Field != "" && rel.Field != f.Field {
		return false
	}
	if f.Collection != "" && rel.Collection != f.Collection {
		return false
	}
	return true
}

// ReferencedEntries returns the entries the given entry references
func (r *Resolver) ReferencedEntries(ctx context.Context, collection, id string, f Filter) []graph.Relation {
	rm, g := r.lookup(ctx, collection, id)
	return r.filter(ctx, g, rm.References, f)
}

// ReferencingEntries returns the entries that reference the given entry
func (r *Resolver) ReferencingEntries(ctx context.Context, collection, id string, f Filter) []graph.Relation {
	rm, g := r.lookup(ctx, collection, id)
	return r.filter(ctx, g, rm.ReferencedBy, f)
}

func (r *Resolver) filter(ctx context.Context, g *graph.Graph, rels []graph.Relation, f Filter) []graph.Relation {
	out := make([]graph.Relation, 0, len(rels))
	for _, rel := range rels {
		if f.match(rel) {
			out = append(out, rel)
		}
	}
	if f.Resolve {
		out = r.resolveIn(ctx, g, out)
	}
	return out
}

// AllRelatedOptions controls AllRelatedEntries
type AllRelatedOptions struct {
	IncludeIndirect bool
	// MaxDepth bounds indirect relations; zero keeps every computed hop.
	MaxDepth int
	Resolve  bool
}

// AllRelatedEntries merges references, referencing entries and optionally
// indirect relations, de-duplicated by entry key in that order of preference.
func (r *Resolver) AllRelatedEntries(ctx context.Context, collection, id string, opts AllRelatedOptions) []graph.Relation {
	res := r
	depth := r.opts.MaxIndirectDepth
	if depth <= 0 {
		depth = constants.DefaultMaxIndirectDepth
	}
	// A graph built with fewer hops than requested would silently truncate.
	if opts.IncludeIndirect && (!r.opts.IncludeIndirect || opts.MaxDepth > depth) {
		o := r.opts
		o.IncludeIndirect = true
		if opts.MaxDepth > 0 {
			o.MaxIndirectDepth = opts.MaxDepth
		}
		res = r.WithOptions(o)
	}
	rm, g := res.lookup(ctx, collection, id)

	self := content.EntryKey{Collection: collection, ID: id}
	seen := map[content.EntryKey]struct{}{self: {}}
	var out []graph.Relation
	add := func(rels []graph.Relation) {
		for _, rel := range rels {
			if _, ok := seen[rel.Key()]; ok {
				continue
			}
			seen[rel.Key()] = struct{}{}
			out = append(out, rel)
		}
	}
	add(rm.References)
	add(rm.ReferencedBy)
	if opts.IncludeIndirect {
		add(slices.DeleteFunc(slices.Clone(rm.Indirect), func(rel graph.Relation) bool {
			return opts.MaxDepth > 0 && rel.Depth > opts.MaxDepth
		}))
	}
	if opts.Resolve {
		out = res.resolveIn(ctx, g, out)
	}
	return out
}

// ResolveRelations attaches entry payloads. Relations that already carry a
// payload are left untouched, so repeated calls are no-ops.
func (r *Resolver) ResolveRelations(ctx context.Context, rels []graph.Relation) []graph.Relation {
	g, err := r.graphs.Graph(ctx, r.opts)
	if err != nil {
		r.logger.Warn("Failed to load relationship graph for resolution", zap.Error(err))
		g = nil
	}
	return r.resolveIn(ctx, g, rels)
}

func (r *Resolver) resolveIn(ctx context.Context, g *graph.Graph, rels []graph.Relation) []graph.Relation {
	out := make([]graph.Relation, len(rels))
	copy(out, rels)

	var pending map[string][]int
	for i := range out {
		if out[i].Entry != nil {
			continue
		}
		if g != nil {
			if e, ok := g.Entry(out[i].Collection, out[i].ID); ok {
				out[i].Entry = e
				continue
			}
		}
		if pending == nil {
			pending = make(map[string][]int)
		}
		pending[out[i].Collection] = append(pending[out[i].Collection], i)
	}

	// Entries outside the graph fall back to the store.
	for collection, idx := range pending {
		entries, err := r.graphs.Store().Entries(ctx, collection)
		if err != nil {
			r.logger.Warn("Failed to load entries for resolution",
				zap.String("collection", collection),
				zap.Error(err),
			)
			continue
		}
		byID := make(map[string]*content.Entry, len(entries))
		for k := range entries {
			byID[entries[k].ID] = &entries[k]
		}
		for _, i := range idx {
			if e, ok := byID[out[i].ID]; ok {
				out[i].Entry = e
			}
		}
	}
	return out
}

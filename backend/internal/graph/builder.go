package graph

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"contentgraph/backend/internal/constants"
	"contentgraph/backend/internal/content"
	apperrors "contentgraph/backend/pkg/errors"
	"contentgraph/backend/pkg/logger"
)

// MaxConcurrentLoads bounds parallel collection reads during phase 1
const MaxConcurrentLoads = 8

// BuildOptions shape a graph build
type BuildOptions struct {
	// Collections to load. Empty means every collection the store knows.
	Collections []string `json:"collections"`

	IncludeIndirect  bool `json:"includeIndirect"`
	MaxIndirectDepth int  `json:"maxIndirectDepth"`
}

// normalized returns a copy with sorted, de-duplicated collections and a
// positive indirect depth.
func (o BuildOptions) normalized() BuildOptions {
	out := BuildOptions{
		Collections:      slices.Clone(o.Collections),
		IncludeIndirect:  o.IncludeIndirect,
		MaxIndirectDepth: o.MaxIndirectDepth,
	}
	sort.Strings(out.Collections)
	out.Collections = slices.Compact(out.Collections)
	if out.MaxIndirectDepth <= 0 {
		out.MaxIndirectDepth = constants.DefaultMaxIndirectDepth
	}
	return out
}

// CacheKey identifies builds that produce the same graph
func (o BuildOptions) CacheKey() string {
	n := o.normalized()
	return strings.Join(n.Collections, ",") + "|" +
		strconv.FormatBool(n.IncludeIndirect) + "|" +
		strconv.Itoa(n.MaxIndirectDepth)
}

// Builder turns store contents into a Graph
type Builder struct {
	store  content.Store
	schema *content.Schema
	logger *zap.Logger
}

// NewBuilder creates a builder. A nil schema treats every collection as
// undeclared.
func NewBuilder(store content.Store, schema *content.Schema, log *zap.Logger) *Builder {
	return &Builder{
		store:  store,
		schema: schema,
		logger: logger.OrDefault(log),
	}
}

// Schema returns the schema descriptor used by the builder
func (b *Builder) Schema() *content.Schema {
	return b.schema
}

// Build loads every requested collection and constructs the graph.
// Unknown collections contribute no entries; references to missing entries
// are dropped.
func (b *Builder) Build(ctx context.Context, opts BuildOptions) (*Graph, error) {
	start := time.Now()

	if len(opts.Collections) == 0 {
		names, err := b.store.Collections(ctx)
		if err != nil {
			buildTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("failed to list collections: %w", err)
		}
		opts.Collections = names
	}
	opts = opts.normalized()

	g := newGraph(opts)
	g.BuildID = uuid.New().String()
	g.collections = opts.Collections

	if err := b.load(ctx, g); err != nil {
		buildTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	b.linkReferences(g)
	b.linkHierarchy(g)
	b.computeHierarchy(g)
	if opts.IncludeIndirect {
		b.computeIndirect(g, opts.MaxIndirectDepth)
	}
	g.BuiltAt = time.Now()

	elapsed := time.Since(start)
	buildTotal.WithLabelValues("success").Inc()
	buildDuration.Observe(elapsed.Seconds())
	buildEntries.Observe(float64(len(g.nodes)))
	stats := g.Stats()
	for t, n := range stats.Edges {
		buildEdges.WithLabelValues(string(t)).Add(float64(n))
	}

	b.logger.Info("Built relationship graph",
		zap.String("build_id", g.BuildID),
		zap.Strings("collections", g.collections),
		zap.Int("entries", len(g.nodes)),
		zap.Bool("indirect", opts.IncludeIndirect),
		zap.Duration("elapsed", elapsed),
	)
	return g, nil
}

// load is phase 1: read every collection concurrently, then register nodes
// in collection order so arena indexes are deterministic.
func (b *Builder) load(ctx context.Context, g *Graph) error {
	results := make([][]content.Entry, len(g.collections))

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(MaxConcurrentLoads)
	for i, name := range g.collections {
		eg.Go(func() error {
			entries, err := b.store.Entries(egctx, name)
			if err != nil {
				return fmt.Errorf("failed to load collection %s: %w", name, err)
			}
			results[i] = entries
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	for i, name := range g.collections {
		if len(results[i]) == 0 {
			b.logger.Debug("Collection has no entries", zap.String("collection", name))
		}
		for _, e := range results[i] {
			if e.Collection == "" {
				e.Collection = name
			}
			if _, ok := g.add(e); !ok {
				b.logger.Warn("Duplicate entry id, keeping first",
					zap.String("collection", e.Collection),
					zap.String("id", e.ID),
				)
			}
		}
	}
	return nil
}

// linkReferences is phase 2: forward reference edges plus the reverse
// referenced-by edge. Targets outside the graph are dropped.
func (b *Builder) linkReferences(g *Graph) {
	for _, n := range g.nodes {
		cs := b.schema.For(n.entry.Collection)
		seen := make(map[edge]struct{})
		for _, fr := range cs.References(n.entry) {
			j, ok := g.lookup(fr.Target.Collection, fr.Target.ID)
			if !ok {
				continue
			}
			e := edge{to: j, field: fr.Field}
			if _, dup := seen[e]; dup {
				continue
			}
			seen[e] = struct{}{}

			target := g.nodes[j]
			n.refs = append(n.refs, e)
			n.rel.References = append(n.rel.References, Relation{
				Type:       RelationReference,
				Collection: target.entry.Collection,
				ID:         target.entry.ID,
				Field:      fr.Field,
			})
			target.rel.ReferencedBy = append(target.rel.ReferencedBy, Relation{
				Type:       RelationReferencedBy,
				Collection: n.entry.Collection,
				ID:         n.entry.ID,
				Field:      fr.Field,
			})

			tk := target.entry.Key()
			if !slices.Contains(g.byReference[tk], n.entry.Key()) {
				g.byReference[tk] = append(g.byReference[tk], n.entry.Key())
			}
		}
	}
}

// linkHierarchy is the first half of phase 3: bidirectional parent/child
// edges for same-collection parent values.
func (b *Builder) linkHierarchy(g *Graph) {
	for i, n := range g.nodes {
		cs := b.schema.For(n.entry.Collection)
		for _, ref := range cs.ParentRefs(n.entry) {
			if ref.Collection != n.entry.Collection {
				continue
			}
			j, ok := g.lookup(ref.Collection, ref.ID)
			if !ok {
				continue
			}
			if j == i {
				b.logger.Warn("Entry lists itself as parent",
					zap.Error(apperrors.NewCircularReference(n.entry.Collection, n.entry.ID, []string{n.entry.ID, n.entry.ID})),
				)
				continue
			}
			if slices.Contains(n.parents, j) {
				continue
			}
			parent := g.nodes[j]
			n.parents = append(n.parents, j)
			parent.children = append(parent.children, i)

			n.rel.Parents = append(n.rel.Parents, Relation{
				Type:       RelationParent,
				Collection: parent.entry.Collection,
				ID:         parent.entry.ID,
				Depth:      1,
			})
			parent.rel.Children = append(parent.rel.Children, Relation{
				Type:       RelationChild,
				Collection: n.entry.Collection,
				ID:         n.entry.ID,
				Depth:      1,
			})
			g.byParent[n.entry.Key()] = append(g.byParent[n.entry.Key()], parent.entry.Key())
		}
	}
}

// computeHierarchy is the second half of phase 3: ancestors, depth,
// descendants and siblings per entry.
func (b *Builder) computeHierarchy(g *Graph) {
	visited := newBitset(len(g.nodes))
	for i, n := range g.nodes {
		n.rel.IsRoot = len(n.parents) == 0
		n.rel.HasChildren = len(n.children) > 0
		n.rel.IsLeaf = !n.rel.HasChildren
		if len(n.parents) > 0 {
			p := n.rel.Parents[0]
			n.rel.Parent = &p
		}

		visited.clear()
		b.walkAncestors(g, i, visited)

		visited.clear()
		b.walkDescendants(g, i, visited)

		n.rel.Siblings = siblingsOf(g, i)
	}
}

// walkAncestors runs a BFS up the multi-parent chain. Depth is the BFS level
// at which the first root is met; without a reachable root it is the deepest
// level walked.
func (b *Builder) walkAncestors(g *Graph, i int, visited bitset) {
	n := g.nodes[i]
	visited.set(i)

	depth := 0
	rootFound := len(n.parents) == 0
	frontier := n.parents
	for level := 1; len(frontier) > 0; level++ {
		var next []int
		for _, p := range frontier {
			if visited.testAndSet(p) {
				// Only a cycle through the start is reported here. An entry
				// below a cycle stays silent; the cycle members report it
				// from their own walks.
				if p == i {
					b.warnCycle(g, i, p)
				}
				continue
			}
			pn := g.nodes[p]
			n.rel.Ancestors = append(n.rel.Ancestors, Relation{
				Type:       RelationAncestor,
				Collection: pn.entry.Collection,
				ID:         pn.entry.ID,
				Depth:      level,
			})
			if !rootFound {
				depth = level
				if len(pn.parents) == 0 {
					rootFound = true
				}
			}
			next = append(next, pn.parents...)
		}
		frontier = next
	}
	n.rel.Depth = depth
}

// walkDescendants runs an iterative pre-order DFS down the children chain
func (b *Builder) walkDescendants(g *Graph, i int, visited bitset) {
	n := g.nodes[i]
	visited.set(i)

	type frame struct{ idx, depth int }
	stack := make([]frame, 0, len(n.children))
	for k := len(n.children) - 1; k >= 0; k-- {
		stack = append(stack, frame{n.children[k], 1})
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited.testAndSet(f.idx) {
			if f.idx == i {
				b.warnCycle(g, i, f.idx)
			}
			continue
		}
		cn := g.nodes[f.idx]
		n.rel.Descendants = append(n.rel.Descendants, Relation{
			Type:       RelationDescendant,
			Collection: cn.entry.Collection,
			ID:         cn.entry.ID,
			Depth:      f.depth,
		})
		for k := len(cn.children) - 1; k >= 0; k-- {
			stack = append(stack, frame{cn.children[k], f.depth + 1})
		}
	}
}

// siblingsOf is the union of the children of every parent, minus i
func siblingsOf(g *Graph, i int) []Relation {
	n := g.nodes[i]
	out := []Relation{}
	seen := map[int]struct{}{i: {}}
	for _, p := range n.parents {
		for _, c := range g.nodes[p].children {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			cn := g.nodes[c]
			out = append(out, Relation{
				Type:       RelationSibling,
				Collection: cn.entry.Collection,
				ID:         cn.entry.ID,
			})
		}
	}
	return out
}

// computeIndirect is phase 4: BFS over forward references up to maxDepth
// hops. The visited set is scoped to each source entry; hop 1 is a direct
// reference and is not repeated here.
func (b *Builder) computeIndirect(g *Graph, maxDepth int) {
	type hop struct {
		idx  int
		path []string
	}
	visited := newBitset(len(g.nodes))
	for i, n := range g.nodes {
		if len(n.refs) == 0 {
			continue
		}
		visited.clear()
		visited.set(i)

		frontier := []hop{{idx: i, path: []string{n.entry.Collection}}}
		for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
			var next []hop
			for _, h := range frontier {
				for _, e := range g.nodes[h.idx].refs {
					if visited.testAndSet(e.to) {
						continue
					}
					tn := g.nodes[e.to]
					path := append(slices.Clone(h.path), tn.entry.Collection)
					if depth >= 2 {
						n.rel.Indirect = append(n.rel.Indirect, Relation{
							Type:       RelationIndirect,
							Collection: tn.entry.Collection,
							ID:         tn.entry.ID,
							Field:      e.field,
							Depth:      depth,
							Path:       path,
						})
					}
					next = append(next, hop{idx: e.to, path: path})
				}
			}
			frontier = next
		}
	}
}

func (b *Builder) warnCycle(g *Graph, from, repeat int) {
	fn, rn := g.nodes[from], g.nodes[repeat]
	err := apperrors.NewCircularReference(fn.entry.Collection, fn.entry.ID, []string{fn.entry.ID, rn.entry.ID})
	b.logger.Warn("Circular hierarchy detected, stopping traversal", zap.Error(err))
}

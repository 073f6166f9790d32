// Package hierarchy navigates the parent/child structure of a collection on
// top of the relationship graph.
package hierarchy

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"contentgraph/backend/internal/content"
	"contentgraph/backend/internal/graph"
	apperrors "contentgraph/backend/pkg/errors"
	"contentgraph/backend/pkg/logger"
)

// TreeNode is one entry in a collection tree
type TreeNode struct {
	Entry    content.Entry `json:"entry"`
	Children []*TreeNode   `json:"children"`
	Depth    int           `json:"depth"`
}

// Navigator answers hierarchy questions against cached graphs
type Navigator struct {
	graphs *graph.Service
	opts   graph.BuildOptions
	logger *zap.Logger
}

// NewNavigator creates a navigator reading graphs built with opts
func NewNavigator(graphs *graph.Service, opts graph.BuildOptions, log *zap.Logger) *Navigator {
	return &Navigator{
		graphs: graphs,
		opts:   opts,
		logger: logger.OrDefault(log),
	}
}

func (n *Navigator) graph(ctx context.Context) (*graph.Graph, error) {
	return n.graphs.Graph(ctx, n.opts)
}

// Parent returns the first parent of an entry, or nil for roots and
// unknown entries.
func (n *Navigator) Parent(ctx context.Context, collection, id string) (*content.Entry, error) {
	g, err := n.graph(ctx)
	if err != nil {
		return nil, err
	}
	return parentOf(g, collection, id), nil
}

func parentOf(g *graph.Graph, collection, id string) *content.Entry {
	keys := g.ParentKeys(content.EntryKey{Collection: collection, ID: id})
	if len(keys) == 0 {
		return nil
	}
	e, ok := g.Entry(keys[0].Collection, keys[0].ID)
	if !ok {
		return nil
	}
	return e
}

// Children returns the entries whose parent list contains the entry,
// ordered by their order field.
func (n *Navigator) Children(ctx context.Context, collection, id string) ([]content.Entry, error) {
	g, err := n.graph(ctx)
	if err != nil {
		return nil, err
	}
	return childrenOf(g, collection, id), nil
}

// childrenOf scans the collection; hierarchy reads happen at build time
// where collections are small.
func childrenOf(g *graph.Graph, collection, id string) []content.Entry {
	target := content.EntryKey{Collection: collection, ID: id}
	var out []content.Entry
	for _, e := range g.Entries(collection) {
		if slices.Contains(g.ParentKeys(e.Key()), target) {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, content.CompareOrder)
	return out
}

// Ancestors walks first parents upward, nearest first
func (n *Navigator) Ancestors(ctx context.Context, collection, id string) ([]content.Entry, error) {
	g, err := n.graph(ctx)
	if err != nil {
		return nil, err
	}
	return n.ancestorsOf(g, collection, id), nil
}

func (n *Navigator) ancestorsOf(g *graph.Graph, collection, id string) []content.Entry {
	var out []content.Entry
	visited := map[string]struct{}{id: {}}
	chain := []string{id}
	cur := id
	for {
		p := parentOf(g, collection, cur)
		if p == nil {
			return out
		}
		chain = append(chain, p.ID)
		if _, seen := visited[p.ID]; seen {
			n.logger.Warn("Circular hierarchy detected, stopping ancestor walk",
				zap.Error(apperrors.NewCircularReference(collection, id, chain)))
			return out
		}
		visited[p.ID] = struct{}{}
		out = append(out, *p)
		cur = p.ID
	}
}

// Descendants walks children downward breadth first
func (n *Navigator) Descendants(ctx context.Context, collection, id string) ([]content.Entry, error) {
	g, err := n.graph(ctx)
	if err != nil {
		return nil, err
	}

	var out []content.Entry
	visited := map[string]struct{}{id: {}}
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, c := range childrenOf(g, collection, cur) {
			if _, seen := visited[c.ID]; seen {
				if c.ID == id {
					n.logger.Warn("Circular hierarchy detected, stopping descendant walk",
						zap.Error(apperrors.NewCircularReference(collection, id, []string{cur, c.ID})))
				}
				continue
			}
			visited[c.ID] = struct{}{}
			out = append(out, c)
			queue = append(queue, c.ID)
		}
	}
	return out, nil
}

// Siblings returns the other children of the entry's parents. Roots have none.
func (n *Navigator) Siblings(ctx context.Context, collection, id string) ([]content.Entry, error) {
	g, err := n.graph(ctx)
	if err != nil {
		return nil, err
	}
	var out []content.Entry
	seen := map[string]struct{}{id: {}}
	for _, pk := range g.ParentKeys(content.EntryKey{Collection: collection, ID: id}) {
		for _, c := range childrenOf(g, collection, pk.ID) {
			if _, ok := seen[c.ID]; ok {
				continue
			}
			seen[c.ID] = struct{}{}
			out = append(out, c)
		}
	}
	return out, nil
}

// Roots returns the entries of a collection without a parent
func (n *Navigator) Roots(ctx context.Context, collection string) ([]content.Entry, error) {
	return n.filter(ctx, collection, func(rm *graph.RelationMap) bool { return rm.IsRoot })
}

// Leaves returns the entries of a collection without children
func (n *Navigator) Leaves(ctx context.Context, collection string) ([]content.Entry, error) {
	return n.filter(ctx, collection, func(rm *graph.RelationMap) bool { return rm.IsLeaf })
}

func (n *Navigator) filter(ctx context.Context, collection string, keep func(*graph.RelationMap) bool) ([]content.Entry, error) {
	g, err := n.graph(ctx)
	if err != nil {
		return nil, err
	}
	var out []content.Entry
	for _, rm := range g.RelationMaps(collection) {
		if keep(rm) {
			out = append(out, *rm.Entry)
		}
	}
	slices.SortStableFunc(out, content.CompareOrder)
	return out, nil
}

// Tree builds the collection forest starting from its roots
func (n *Navigator) Tree(ctx context.Context, collection string) ([]*TreeNode, error) {
	g, err := n.graph(ctx)
	if err != nil {
		return nil, err
	}
	roots, err := n.Roots(ctx, collection)
	if err != nil {
		return nil, err
	}

	var build func(e content.Entry, depth int, path map[string]struct{}) *TreeNode
	build = func(e content.Entry, depth int, path map[string]struct{}) *TreeNode {
		node := &TreeNode{Entry: e, Depth: depth, Children: []*TreeNode{}}
		path[e.ID] = struct{}{}
		defer delete(path, e.ID)
		for _, c := range childrenOf(g, collection, e.ID) {
			if _, onPath := path[c.ID]; onPath {
				n.logger.Warn("Circular hierarchy detected while building tree",
					zap.Error(apperrors.NewCircularReference(collection, c.ID, []string{e.ID, c.ID})))
				continue
			}
			node.Children = append(node.Children, build(c, depth+1, path))
		}
		return node
	}

	out := make([]*TreeNode, 0, len(roots))
	for _, r := range roots {
		out = append(out, build(r, 0, map[string]struct{}{}))
	}
	return out, nil
}

// Breadcrumbs returns the ancestors root first followed by the entry itself.
// Unknown entries have no breadcrumbs.
func (n *Navigator) Breadcrumbs(ctx context.Context, collection, id string) ([]content.Entry, error) {
	g, err := n.graph(ctx)
	if err != nil {
		return nil, err
	}
	self, ok := g.Entry(collection, id)
	if !ok {
		return nil, nil
	}
	crumbs := n.ancestorsOf(g, collection, id)
	slices.Reverse(crumbs)
	return append(crumbs, *self), nil
}

// IsAncestorOf reports whether ancestorID appears in the ancestor chain of id
func (n *Navigator) IsAncestorOf(ctx context.Context, collection, ancestorID, id string) (bool, error) {
	ancestors, err := n.Ancestors(ctx, collection, id)
	if err != nil {
		return false, err
	}
	return slices.ContainsFunc(ancestors, func(e content.Entry) bool { return e.ID == ancestorID }), nil
}

// IsDescendantOf reports whether descendantID appears below id
func (n *Navigator) IsDescendantOf(ctx context.Context, collection, descendantID, id string) (bool, error) {
	descendants, err := n.Descendants(ctx, collection, id)
	if err != nil {
		return false, err
	}
	return slices.ContainsFunc(descendants, func(e content.Entry) bool { return e.ID == descendantID }), nil
}

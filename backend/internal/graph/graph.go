// Package graph builds the relationship graph over content collections:
// forward and reverse references, same-collection parent/child hierarchy,
// and optional multi-hop indirect references. Entries live in an arena of
// dense integer indexes; every traversal carries a visited bitset so cyclic
// data terminates.
package graph

import (
	"time"

	"contentgraph/backend/internal/content"
)

// node is one arena slot
type node struct {
	entry    content.Entry
	rel      *RelationMap
	parents  []int
	children []int
	refs     []edge
}

// edge is an outgoing reference to another arena slot
type edge struct {
	to    int
	field string
}

// Graph is an immutable relationship graph produced by a Builder
type Graph struct {
	BuildID string       `json:"buildId"`
	BuiltAt time.Time    `json:"builtAt"`
	Options BuildOptions `json:"options"`

	nodes        []*node
	index        map[content.EntryKey]int
	byCollection map[string][]int
	byParent     map[content.EntryKey][]content.EntryKey
	byReference  map[content.EntryKey][]content.EntryKey
	collections  []string
}

func newGraph(opts BuildOptions) *Graph {
	return &Graph{
		Options:      opts,
		index:        make(map[content.EntryKey]int),
		byCollection: make(map[string][]int),
		byParent:     make(map[content.EntryKey][]content.EntryKey),
		byReference:  make(map[content.EntryKey][]content.EntryKey),
	}
}

// Collections returns the collection names the graph was built from
func (g *Graph) Collections() []string {
	out := make([]string, len(g.collections))
	copy(out, g.collections)
	return out
}

// TotalEntries returns the number of entries in the graph
func (g *Graph) TotalEntries() int {
	return len(g.nodes)
}

// Has reports whether the graph holds the entry
func (g *Graph) Has(collection, id string) bool {
	_, ok := g.index[content.EntryKey{Collection: collection, ID: id}]
	return ok
}

// Entry returns the payload of an entry
func (g *Graph) Entry(collection, id string) (*content.Entry, bool) {
	i, ok := g.index[content.EntryKey{Collection: collection, ID: id}]
	if !ok {
		return nil, false
	}
	return &g.nodes[i].entry, true
}

// Relations returns the relation map of an entry. The map is shared; callers
// that modify it must Clone first.
func (g *Graph) Relations(collection, id string) (*RelationMap, bool) {
	i, ok := g.index[content.EntryKey{Collection: collection, ID: id}]
	if !ok {
		return nil, false
	}
	return g.nodes[i].rel, true
}

// Entries returns the entries of a collection in load order
func (g *Graph) Entries(collection string) []content.Entry {
	idx := g.byCollection[collection]
	out := make([]content.Entry, len(idx))
	for i, n := range idx {
		out[i] = g.nodes[n].entry
	}
	return out
}

// RelationMaps returns the relation maps of a collection in load order
func (g *Graph) RelationMaps(collection string) []*RelationMap {
	idx := g.byCollection[collection]
	out := make([]*RelationMap, len(idx))
	for i, n := range idx {
		out[i] = g.nodes[n].rel
	}
	return out
}

// Nodes returns the collection → id → relation map view of the graph
func (g *Graph) Nodes() map[string]map[string]*RelationMap {
	out := make(map[string]map[string]*RelationMap, len(g.byCollection))
	for collection, idx := range g.byCollection {
		m := make(map[string]*RelationMap, len(idx))
		for _, n := range idx {
			m[g.nodes[n].entry.ID] = g.nodes[n].rel
		}
		out[collection] = m
	}
	return out
}

// ParentKeys returns the byParent index entry: the parents of an entry
func (g *Graph) ParentKeys(key content.EntryKey) []content.EntryKey {
	return g.byParent[key]
}

// Referrers returns the byReference index entry: entries referencing key
func (g *Graph) Referrers(key content.EntryKey) []content.EntryKey {
	return g.byReference[key]
}

// Keys returns every entry key in arena order
func (g *Graph) Keys() []content.EntryKey {
	out := make([]content.EntryKey, len(g.nodes))
	for i, n := range g.nodes {
		out[i] = n.entry.Key()
	}
	return out
}

// Stats summarises the graph for logs and inspection endpoints
type Stats struct {
	BuildID       string               `json:"buildId"`
	Collections   []string             `json:"collections"`
	TotalEntries  int                  `json:"totalEntries"`
	PerCollection map[string]int       `json:"perCollection"`
	Edges         map[RelationType]int `json:"edges"`
}

// Stats counts entries and edges
func (g *Graph) Stats() Stats {
	s := Stats{
		BuildID:       g.BuildID,
		Collections:   g.Collections(),
		TotalEntries:  len(g.nodes),
		PerCollection: make(map[string]int, len(g.byCollection)),
		Edges:         make(map[RelationType]int, len(AllRelationTypes)),
	}
	for c, idx := range g.byCollection {
		s.PerCollection[c] = len(idx)
	}
	for _, n := range g.nodes {
		for _, t := range AllRelationTypes {
			s.Edges[t] += len(n.rel.Of(t))
		}
	}
	return s
}

func (g *Graph) add(e content.Entry) (int, bool) {
	key := e.Key()
	if _, exists := g.index[key]; exists {
		return 0, false
	}
	i := len(g.nodes)
	n := &node{entry: e}
	n.rel = NewRelationMap(&n.entry)
	g.nodes = append(g.nodes, n)
	g.index[key] = i
	g.byCollection[e.Collection] = append(g.byCollection[e.Collection], i)
	return i, true
}

func (g *Graph) lookup(collection, id string) (int, bool) {
	i, ok := g.index[content.EntryKey{Collection: collection, ID: id}]
	return i, ok
}

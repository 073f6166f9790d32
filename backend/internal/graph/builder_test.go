package graph

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"contentgraph/backend/internal/content"
)

func entry(collection, id string, data map[string]any) content.Entry {
	if data == nil {
		data = map[string]any{}
	}
	return content.Entry{Collection: collection, ID: id, Data: data}
}

func siteStore() *content.MemoryStore {
	return content.NewMemoryStore(
		entry("services", "root", nil),
		entry("services", "frontend", map[string]any{"parent": "root", "order": 1}),
		entry("services", "backend", map[string]any{"parent": "root", "order": 2}),
		entry("services", "api", map[string]any{"parent": "backend"}),
		entry("authors", "jane-doe", map[string]any{"name": "Jane", "team": "platform"}),
		entry("teams", "platform", nil),
		entry("blog", "hello", map[string]any{"author": "jane-doe", "related": []any{"world", "ghost"}}),
		entry("blog", "world", map[string]any{"author": "jane-doe", "parent": map[string]any{"collection": "services", "id": "root"}}),
	)
}

func siteSchema() *content.Schema {
	return content.NewSchema(
		content.CollectionSchema{Name: "blog", ReferenceFields: map[string]string{"author": "authors", "related": "blog"}},
		content.CollectionSchema{Name: "authors", ReferenceFields: map[string]string{"team": "teams"}},
	)
}

func buildSite(t *testing.T, opts BuildOptions) *Graph {
	t.Helper()
	g, err := NewBuilder(siteStore(), siteSchema(), zap.NewNop()).Build(context.Background(), opts)
	require.NoError(t, err)
	return g
}

func ids(rels []Relation) []string {
	out := make([]string, len(rels))
	for i, r := range rels {
		out[i] = r.ID
	}
	return out
}

func TestBuild_LoadsAllCollections(t *testing.T) {
	g := buildSite(t, BuildOptions{})

	assert.Equal(t, []string{"authors", "blog", "services", "teams"}, g.Collections())
	assert.Equal(t, 8, g.TotalEntries())
	assert.NotEmpty(t, g.BuildID)
	assert.Len(t, g.Nodes()["services"], 4)
}

func TestBuild_UnknownCollectionIsEmpty(t *testing.T) {
	g := buildSite(t, BuildOptions{Collections: []string{"nope"}})

	assert.Equal(t, 0, g.TotalEntries())
	assert.Equal(t, []string{"nope"}, g.Collections())
}

func TestBuild_References(t *testing.T) {
	g := buildSite(t, BuildOptions{})

	hello, ok := g.Relations("blog", "hello")
	require.True(t, ok)
	// "ghost" does not exist and is dropped.
	assert.Equal(t, []string{"jane-doe", "world"}, ids(hello.References))
	assert.Equal(t, "author", hello.References[0].Field)

	jane, _ := g.Relations("authors", "jane-doe")
	assert.ElementsMatch(t, []string{"hello", "world"}, ids(jane.ReferencedBy))
	assert.ElementsMatch(t,
		[]content.EntryKey{{Collection: "blog", ID: "hello"}, {Collection: "blog", ID: "world"}},
		g.Referrers(content.EntryKey{Collection: "authors", ID: "jane-doe"}),
	)

	_, ok = g.Relations("blog", "ghost")
	assert.False(t, ok)
}

func TestBuild_Hierarchy(t *testing.T) {
	g := buildSite(t, BuildOptions{})

	root, _ := g.Relations("services", "root")
	assert.True(t, root.IsRoot)
	assert.Equal(t, 0, root.Depth)
	assert.True(t, root.HasChildren)
	assert.False(t, root.IsLeaf)
	assert.Equal(t, []string{"frontend", "backend"}, ids(root.Children))
	assert.Equal(t, []string{"frontend", "backend", "api"}, ids(root.Descendants))

	api, _ := g.Relations("services", "api")
	assert.False(t, api.IsRoot)
	assert.True(t, api.IsLeaf)
	assert.Equal(t, 2, api.Depth)
	require.NotNil(t, api.Parent)
	assert.Equal(t, "backend", api.Parent.ID)
	assert.Equal(t, []string{"backend", "root"}, ids(api.Ancestors))

	frontend, _ := g.Relations("services", "frontend")
	assert.Equal(t, []string{"backend"}, ids(frontend.Siblings))

	assert.Equal(t,
		[]content.EntryKey{{Collection: "services", ID: "backend"}},
		g.ParentKeys(content.EntryKey{Collection: "services", ID: "api"}),
	)
}

func TestBuild_CrossCollectionParentIgnored(t *testing.T) {
	g := buildSite(t, BuildOptions{})

	world, _ := g.Relations("blog", "world")
	assert.True(t, world.IsRoot)
	assert.Empty(t, world.Parents)
	assert.Equal(t, 0, world.Depth)
}

func TestBuild_ParentChildSymmetry(t *testing.T) {
	g := buildSite(t, BuildOptions{})

	for _, key := range g.Keys() {
		rm, _ := g.Relations(key.Collection, key.ID)
		for _, p := range rm.Parents {
			assert.Equal(t, key.Collection, p.Collection)
			parent, ok := g.Relations(p.Collection, p.ID)
			require.True(t, ok)
			assert.Contains(t, ids(parent.Children), key.ID)
		}
		if len(rm.Parents) == 0 {
			assert.True(t, rm.IsRoot)
			assert.Equal(t, 0, rm.Depth)
		} else {
			minDepth := -1
			for _, p := range rm.Parents {
				pr, _ := g.Relations(p.Collection, p.ID)
				if minDepth < 0 || pr.Depth < minDepth {
					minDepth = pr.Depth
				}
			}
			assert.Equal(t, minDepth+1, rm.Depth, key.String())
		}
	}
}

func TestBuild_DescendantsOfRootsCoverNonRoots(t *testing.T) {
	g := buildSite(t, BuildOptions{Collections: []string{"services"}})

	covered := map[string]bool{}
	nonRoots := map[string]bool{}
	for _, rm := range g.RelationMaps("services") {
		if rm.IsRoot {
			for _, d := range rm.Descendants {
				covered[d.ID] = true
			}
		} else {
			nonRoots[rm.Entry.ID] = true
		}
	}
	assert.Equal(t, nonRoots, covered)
}

func TestBuild_MultiParentDepthUsesNearestRoot(t *testing.T) {
	store := content.NewMemoryStore(
		entry("docs", "a", nil),
		entry("docs", "b", map[string]any{"parent": "a"}),
		entry("docs", "c", map[string]any{"parent": "b"}),
		entry("docs", "d", map[string]any{"parent": []any{"c", "a"}}),
	)
	g, err := NewBuilder(store, nil, zap.NewNop()).Build(context.Background(), BuildOptions{})
	require.NoError(t, err)

	d, _ := g.Relations("docs", "d")
	assert.Equal(t, 1, d.Depth)
	assert.Equal(t, []string{"c", "a", "b"}, ids(d.Ancestors))

	b, _ := g.Relations("docs", "b")
	assert.ElementsMatch(t, []string{"d"}, ids(b.Siblings))
}

func TestBuild_CycleTerminates(t *testing.T) {
	store := content.NewMemoryStore(
		entry("docs", "a", map[string]any{"parent": "b"}),
		entry("docs", "b", map[string]any{"parent": "a"}),
		entry("docs", "self", map[string]any{"parent": "self"}),
	)
	g, err := NewBuilder(store, nil, zap.NewNop()).Build(context.Background(), BuildOptions{})
	require.NoError(t, err)

	a, _ := g.Relations("docs", "a")
	assert.Equal(t, []string{"b"}, ids(a.Ancestors))
	assert.Equal(t, []string{"b"}, ids(a.Descendants))
	assert.False(t, a.IsRoot)

	self, _ := g.Relations("docs", "self")
	assert.True(t, self.IsRoot)
	assert.Empty(t, self.Ancestors)
}

func TestBuild_EntryBelowCycle(t *testing.T) {
	store := content.NewMemoryStore(
		entry("docs", "a", map[string]any{"parent": "b"}),
		entry("docs", "b", map[string]any{"parent": "a"}),
		entry("docs", "c", map[string]any{"parent": "a"}),
	)
	core, logs := observer.New(zap.WarnLevel)
	g, err := NewBuilder(store, nil, zap.New(core)).Build(context.Background(), BuildOptions{})
	require.NoError(t, err)

	c, _ := g.Relations("docs", "c")
	assert.Equal(t, []string{"a", "b"}, ids(c.Ancestors))

	warnings := logs.FilterMessage("Circular hierarchy detected, stopping traversal").All()
	require.NotEmpty(t, warnings)
	for _, w := range warnings {
		assert.NotContains(t, w.ContextMap()["error"], "docs:c")
	}
}

func TestBuild_Indirect(t *testing.T) {
	g := buildSite(t, BuildOptions{IncludeIndirect: true, MaxIndirectDepth: 3})

	hello, _ := g.Relations("blog", "hello")
	// hello -> jane-doe -> platform, hello -> world -> jane-doe (already seen)
	require.Len(t, hello.Indirect, 1)
	ind := hello.Indirect[0]
	assert.Equal(t, RelationIndirect, ind.Type)
	assert.Equal(t, "platform", ind.ID)
	assert.Equal(t, 2, ind.Depth)
	assert.Equal(t, []string{"blog", "authors", "teams"}, ind.Path)

	shallow := buildSite(t, BuildOptions{IncludeIndirect: true, MaxIndirectDepth: 1})
	h, _ := shallow.Relations("blog", "hello")
	assert.Empty(t, h.Indirect)

	plain := buildSite(t, BuildOptions{})
	h, _ = plain.Relations("blog", "hello")
	assert.Empty(t, h.Indirect)
}

func TestBuild_IndirectVisitedPerSource(t *testing.T) {
	// Diamond: s -> a, s -> b, a -> t, b -> t. Each source sees t once.
	schema := content.NewSchema(content.CollectionSchema{Name: "n", ReferenceFields: map[string]string{"to": "n"}})
	store := content.NewMemoryStore(
		entry("n", "s", map[string]any{"to": []any{"a", "b"}}),
		entry("n", "a", map[string]any{"to": "t"}),
		entry("n", "b", map[string]any{"to": "t"}),
		entry("n", "t", map[string]any{"to": "u"}),
		entry("n", "u", nil),
	)
	g, err := NewBuilder(store, schema, zap.NewNop()).Build(context.Background(), BuildOptions{IncludeIndirect: true, MaxIndirectDepth: 5})
	require.NoError(t, err)

	s, _ := g.Relations("n", "s")
	assert.Equal(t, []string{"t", "u"}, ids(s.Indirect))
	a, _ := g.Relations("n", "a")
	assert.Equal(t, []string{"u"}, ids(a.Indirect))
}

func TestBuild_Deterministic(t *testing.T) {
	first := buildSite(t, BuildOptions{IncludeIndirect: true})
	second := buildSite(t, BuildOptions{IncludeIndirect: true})

	firstKeys := first.Keys()
	secondKeys := second.Keys()
	sortKeys := func(k []content.EntryKey) {
		sort.Slice(k, func(i, j int) bool { return k[i].String() < k[j].String() })
	}
	sortKeys(firstKeys)
	sortKeys(secondKeys)
	require.Equal(t, firstKeys, secondKeys)

	for _, key := range firstKeys {
		a, _ := first.Relations(key.Collection, key.ID)
		b, _ := second.Relations(key.Collection, key.ID)
		for _, rt := range AllRelationTypes {
			assert.ElementsMatch(t, a.Of(rt), b.Of(rt), "%s %s", key, rt)
		}
		assert.Equal(t, a.Depth, b.Depth)
	}
}

func TestRelationMap_Filter(t *testing.T) {
	g := buildSite(t, BuildOptions{})
	api, _ := g.Relations("services", "api")

	only := api.Filter(RelationParent)
	assert.NotNil(t, only.Parent)
	assert.Len(t, only.Parents, 1)
	assert.Empty(t, only.Ancestors)
	assert.Len(t, api.Ancestors, 2, "filter must not mutate the graph")
}

func TestBitset(t *testing.T) {
	b := newBitset(130)
	assert.False(t, b.testAndSet(129))
	assert.True(t, b.test(129))
	assert.True(t, b.testAndSet(129))
	b.clear()
	assert.False(t, b.test(129))
}

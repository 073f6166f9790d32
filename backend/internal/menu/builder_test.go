package menu

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"contentgraph/backend/internal/content"
	"contentgraph/backend/internal/frontmatter"
)

type sliceSource []frontmatter.Document

func (s sliceSource) Documents() ([]frontmatter.Document, error) {
	out := make([]frontmatter.Document, len(s))
	copy(out, s)
	return out, nil
}

func doc(collection, slug string, data map[string]any) frontmatter.Document {
	if data == nil {
		data = map[string]any{}
	}
	return frontmatter.Document{
		Path:       collection + "/" + slug + ".md",
		Collection: collection,
		Slug:       slug,
		Data:       data,
	}
}

func load(t *testing.T, src Source, opts Options) (*Builder, *LoadResult) {
	t.Helper()
	b := NewBuilder(src, opts, zap.NewNop())
	res, err := b.Load(context.Background())
	require.NoError(t, err)
	return b, res
}

func itemIDs(items []MenuItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func servicesSource(directive map[string]any) sliceSource {
	return sliceSource{
		doc("menus", "main", map[string]any{"title": "Main", "collections": []any{directive}}),
		doc("services", "root", map[string]any{"title": "Root"}),
		doc("services", "frontend", map[string]any{"parent": "root", "order": 1}),
		doc("services", "backend", map[string]any{"parent": "root", "order": 2}),
		doc("services", "api", map[string]any{"parent": "backend"}),
	}
}

func TestLoad_CollectionDirectiveKeepsHierarchy(t *testing.T) {
	b, res := load(t, servicesSource(map[string]any{"collection": "services", "title": "Services", "order": 1}), Options{})
	store := b.Store()

	assert.Equal(t, 5, res.Items)
	assert.Empty(t, res.Unresolved)
	assert.Equal(t, []string{"services", "root", "frontend-root", "backend-root", "api-root-backend"}, itemIDs(store.Items()))

	ph, ok := store.Get("services")
	require.True(t, ok)
	assert.Equal(t, "Services", ph.Title)
	assert.Equal(t, "/services", ph.URL)

	api, ok := store.Get("api-root-backend")
	require.True(t, ok)
	assert.Equal(t, "backend-root", api.Parent)
	assert.True(t, api.ParentResolved)
	assert.Equal(t, "/services/api", api.URL)
	assert.Equal(t, "services", api.Collection)
	assert.Equal(t, "api", api.EntryID)

	assert.Equal(t, []string{"services"}, itemIDs(store.Roots("main")))
	assert.Equal(t, []string{"frontend-root", "backend-root"}, itemIDs(store.Children("root")))

	tree := store.Tree("main")
	require.Len(t, tree, 1)
	require.Len(t, tree[0].Children, 1)
	root := tree[0].Children[0]
	assert.Equal(t, "root", root.Item.ID)
	assert.Equal(t, 1, root.Depth)
	require.Len(t, root.Children, 2)
	assert.Equal(t, "frontend-root", root.Children[0].Item.ID)
	require.Len(t, root.Children[1].Children, 1)
	assert.Equal(t, "api-root-backend", root.Children[1].Children[0].Item.ID)
	assert.Equal(t, 3, root.Children[1].Children[0].Depth)
}

func TestLoad_MissingPlaceholderPromotesToRoot(t *testing.T) {
	b, _ := load(t, servicesSource(map[string]any{"collection": "services", "placeholder": false}), Options{})
	store := b.Store()

	_, ok := store.Get("services")
	assert.False(t, ok)

	root, ok := store.Get("root")
	require.True(t, ok)
	assert.Empty(t, root.Parent)
	assert.Equal(t, []string{"root"}, itemIDs(store.Roots("main")))
}

func TestLoad_RespectHierarchyFalse(t *testing.T) {
	src := servicesSource(map[string]any{"collection": "services", "respectHierarchy": false})
	b, _ := load(t, src, Options{})

	api, ok := b.Store().Get("api-root-backend")
	require.True(t, ok)
	assert.Equal(t, "services", api.Parent, "placeholder wins over the content parent")
}

func TestLoad_EntryDirectiveKeepsCollectionRespectHierarchy(t *testing.T) {
	src := servicesSource(map[string]any{"collection": "services", "respectHierarchy": false})
	src[4].Data["menu"] = "main"
	b, _ := load(t, src, Options{})

	api, ok := b.Store().Get("api-root-backend")
	require.True(t, ok)
	assert.Equal(t, "services", api.Parent)
}

func TestLoad_EntryDirectiveOverridesRespectHierarchy(t *testing.T) {
	src := servicesSource(map[string]any{"collection": "services", "respectHierarchy": false})
	src[4].Data["menu"] = map[string]any{"menu": "main", "respectHierarchy": true}
	b, _ := load(t, src, Options{})

	api, ok := b.Store().Get("api-root-backend")
	require.True(t, ok)
	assert.Equal(t, "backend-root", api.Parent)

	backend, ok := b.Store().Get("backend-root")
	require.True(t, ok)
	assert.Equal(t, "services", backend.Parent)
}

func TestLoad_SchemaParentField(t *testing.T) {
	src := sliceSource{
		doc("menus", "main", map[string]any{"collections": []any{"services"}}),
		doc("services", "root", nil),
		doc("services", "backend", map[string]any{"up": "root"}),
		doc("services", "api", map[string]any{"up": "backend"}),
	}
	schema := content.NewSchema(content.CollectionSchema{Name: "services", ParentField: "up"})
	b, res := load(t, src, Options{Schema: schema})

	assert.Empty(t, res.Unresolved)
	api, ok := b.Store().Get("api-root-backend")
	require.True(t, ok)
	assert.Equal(t, "backend-root", api.Parent)
}

func TestLoad_DuplicateBaseIDs(t *testing.T) {
	src := sliceSource{
		doc("blog", "intro", map[string]any{"menu": "main"}),
		doc("docs", "intro", map[string]any{"menu": "main"}),
		doc("docs", "intro-guide", map[string]any{"id": "intro", "menu": "main"}),
	}
	b, res := load(t, src, Options{})

	// docs/intro-guide declares the id of docs/intro and is dropped as a duplicate.
	assert.Equal(t, 2, res.Items)
	items := b.Store().Items()
	assert.Equal(t, []string{"intro", "intro-2"}, itemIDs(items))
	assert.Equal(t, "blog", items[0].Collection)
	assert.Equal(t, "docs", items[1].Collection)
}

func TestLoad_MultipleMenusSuffixMenuID(t *testing.T) {
	src := sliceSource{
		doc("pages", "about", map[string]any{"title": "About", "menu": []any{"main", "footer"}}),
		doc("pages", "contact", map[string]any{"menu": "footer"}),
	}
	b, _ := load(t, src, Options{})
	store := b.Store()

	assert.Equal(t, []string{"about-main", "about-footer", "contact"}, itemIDs(store.Items()))
	assert.Equal(t, []string{"about-footer", "contact"}, itemIDs(store.Menu("footer")))
	assert.Equal(t, []string{"footer", "main"}, store.Menus())
}

func TestLoad_ForwardReferencesAndUnresolved(t *testing.T) {
	src := sliceSource{
		doc("pages", "child", map[string]any{"menu": map[string]any{"menu": "main", "parent": "zeta"}}),
		doc("pages", "orphan", map[string]any{"menu": map[string]any{"menu": "main", "parent": "nowhere"}}),
		doc("pages", "zeta", map[string]any{"menu": "main"}),
	}
	b, res := load(t, src, Options{})

	child, ok := b.Store().Get("child")
	require.True(t, ok)
	assert.Equal(t, "zeta", child.Parent)
	assert.True(t, child.ParentResolved)

	assert.Equal(t, 2, res.Passes)
	assert.Equal(t, []UnresolvedParent{{ItemID: "orphan", Parent: "nowhere"}}, res.Unresolved)

	orphan, _ := b.Store().Get("orphan")
	assert.Equal(t, "nowhere", orphan.Parent, "unresolved parents keep the literal value")
	assert.False(t, orphan.ParentResolved)
	assert.ElementsMatch(t, []string{"orphan", "zeta"}, itemIDs(b.Store().Roots("main")))
}

func TestLoad_StaticItemsAndParentMatching(t *testing.T) {
	dir := t.TempDir()
	static := filepath.Join(dir, "static.yaml")
	require.NoError(t, os.WriteFile(static, []byte(`
- id: About
  title: About us
  url: /about
  menus: [main]
- id: docs
  title: Reserved
  menus: [main]
`), 0o644))

	src := sliceSource{
		doc("pages", "team", map[string]any{"menu": map[string]any{"menu": "main", "parent": "ABOUT"}}),
		doc("pages", "press", map[string]any{"menu": map[string]any{"menu": "main", "parent": map[string]any{"url": "ABOUT"}}}),
		doc("pages", "jobs", map[string]any{"menu": map[string]any{"menu": "main", "parent": "about"}}),
		doc("docs", "docs", map[string]any{"menu": "main"}),
	}
	b, res := load(t, src, Options{StaticFile: static})
	store := b.Store()

	team, _ := store.Get("team")
	assert.Equal(t, "About", team.Parent, "case-insensitive id match")
	jobs, _ := store.Get("jobs")
	assert.Equal(t, "About", jobs.Parent)

	press, _ := store.Get("press")
	assert.Equal(t, "About", press.Parent, "url match ignores case and the leading slash")
	assert.Empty(t, res.Unresolved)

	// Static ids are reserved before content ids are allocated.
	_, ok := store.Get("docs-2")
	assert.True(t, ok)
	assert.True(t, b.Registry().Has("About"))
}

func TestLoad_ParentByURL(t *testing.T) {
	src := sliceSource{
		doc("pages", "company", map[string]any{"menu": "main", "url": "/company"}),
		doc("pages", "history", map[string]any{"menu": map[string]any{"menu": "main", "parent": "/Company"}}),
		doc("pages", "legal", map[string]any{"menu": map[string]any{"menu": "main", "parent": "company"}}),
	}
	b, _ := load(t, src, Options{})

	history, _ := b.Store().Get("history")
	assert.Equal(t, "company", history.Parent)
	assert.True(t, history.ParentResolved)
}

func TestLoad_ContentCycleTerminates(t *testing.T) {
	src := sliceSource{
		doc("menus", "main", map[string]any{"collections": []any{map[string]any{"collection": "loop", "placeholder": false}}}),
		doc("loop", "a", map[string]any{"parent": "b"}),
		doc("loop", "b", map[string]any{"parent": "a"}),
	}
	b, _ := load(t, src, Options{})
	store := b.Store()

	assert.Equal(t, []string{"a-b", "b-a"}, itemIDs(store.Items()))
	assert.Empty(t, store.Roots("main"))
	assert.Empty(t, store.Tree("main"))
}

func TestLoad_DirectoryReloadClears(t *testing.T) {
	dir := t.TempDir()
	write := func(rel, body string) {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	write("menus/main.md", "---\ntitle: Main\ncollections:\n  - guides\n---\n")
	write("guides/intro.md", "---\ntitle: Intro\norder: 1\n---\nHello\n")
	write("guides/setup.md", "---\ntitle: Setup\nparent: intro\n---\n")
	write("guides/broken.md", "---\ntitle: [unclosed\n---\n")

	b := NewBuilder(DirSource{Root: dir, Logger: zap.NewNop()}, Options{}, zap.NewNop())
	res, err := b.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Items)
	assert.Equal(t, []string{"guides", "intro", "setup-intro"}, itemIDs(b.Store().Items()))

	require.NoError(t, os.Remove(filepath.Join(dir, "guides", "setup.md")))
	res, err = b.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Items)
	assert.Equal(t, []string{"guides", "intro"}, itemIDs(b.Store().Items()))
}

func TestLoad_MalformedDefinitionSkipped(t *testing.T) {
	src := sliceSource{
		doc("menus", "bad", map[string]any{"collections": []any{map[string]any{"title": "no collection"}}}),
		doc("pages", "home", map[string]any{"menu": []any{42}}),
		doc("pages", "about", map[string]any{"menu": "main"}),
	}
	b, res := load(t, src, Options{})

	assert.Equal(t, 1, res.Items)
	assert.Equal(t, []string{"about"}, itemIDs(b.Store().Items()))
}

func TestIDRegistry(t *testing.T) {
	r := NewIDRegistry()

	assert.Equal(t, "Intro", r.Register("Intro"))
	assert.Equal(t, "Intro-2", r.Register("Intro"))
	assert.Equal(t, "Intro-3", r.Register("Intro"))
	assert.Equal(t, "Intro-2-2", r.Register("Intro-2"))
	assert.Equal(t, "intro", r.Register("intro"))

	r.Clear()
	assert.False(t, r.Has("Intro"))
	assert.Equal(t, "Intro", r.Register("Intro"))
}

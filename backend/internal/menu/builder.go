package menu

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"contentgraph/backend/internal/constants"
	"contentgraph/backend/internal/content"
	"contentgraph/backend/internal/frontmatter"
	apperrors "contentgraph/backend/pkg/errors"
	"contentgraph/backend/pkg/logger"
)

// Source yields the raw frontmatter documents a load reads
type Source interface {
	Documents() ([]frontmatter.Document, error)
}

// DirSource walks a content directory
type DirSource struct {
	Root   string
	Logger *zap.Logger
}

// Documents implements Source
func (s DirSource) Documents() ([]frontmatter.Document, error) {
	return frontmatter.Walk(s.Root, s.Logger)
}

// Options configure a Builder
type Options struct {
	// MenuCollection is the directory holding menu definitions.
	MenuCollection string

	// StaticFile is an optional YAML or JSON list of pre-seeded items.
	StaticFile string

	// Schema supplies per-collection parent fields. Nil means the reserved
	// parent field everywhere.
	Schema *content.Schema
}

// UnresolvedParent reports an item whose parent never matched another item
type UnresolvedParent struct {
	ItemID string `json:"itemId"`
	Parent string `json:"parent"`
}

// LoadResult summarises one load
type LoadResult struct {
	LoadID     string             `json:"loadId"`
	Items      int                `json:"items"`
	Passes     int                `json:"passes"`
	Unresolved []UnresolvedParent `json:"unresolved"`
}

// Builder loads menus into its Store. Each load clears and repopulates the
// store and the id registry.
type Builder struct {
	mu       sync.Mutex
	source   Source
	opts     Options
	store    *Store
	registry *IDRegistry
	logger   *zap.Logger
}

// NewBuilder creates a builder reading from source
func NewBuilder(source Source, opts Options, log *zap.Logger) *Builder {
	if opts.MenuCollection == "" {
		opts.MenuCollection = constants.DefaultMenuCollection
	}
	return &Builder{
		source:   source,
		opts:     opts,
		store:    NewStore(),
		registry: NewIDRegistry(),
		logger:   logger.OrDefault(log),
	}
}

// Store returns the item store filled by Load
func (b *Builder) Store() *Store {
	return b.store
}

// Registry returns the id registry used by the last load
func (b *Builder) Registry() *IDRegistry {
	return b.registry
}

type attachKey struct {
	menu       string
	collection string
	entry      string
}

type placeholderKey struct {
	menu       string
	collection string
}

// attachment is one entry attached to one menu
type attachment struct {
	key              attachKey
	doc              *frontmatter.Document
	title            string
	parent           parentRef
	order            *int
	respectHierarchy *bool
}

type placeholder struct {
	key       placeholderKey
	directive CollectionDirective
}

// loadState is the scratch space of a single load
type loadState struct {
	index        map[content.EntryKey]*frontmatter.Document
	attachments  []*attachment
	byKey        map[attachKey]int
	placeholders []placeholder

	ids            map[attachKey]string
	placeholderIDs map[placeholderKey]string

	items []*MenuItem
	refs  map[*MenuItem]parentRef
}

// Load rebuilds the store from the source and the static file
func (b *Builder) Load(ctx context.Context) (*LoadResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	start := time.Now()
	res := &LoadResult{LoadID: uuid.New().String(), Unresolved: []UnresolvedParent{}}

	b.registry.Clear()
	st := &loadState{
		index:          make(map[content.EntryKey]*frontmatter.Document),
		byKey:          make(map[attachKey]int),
		ids:            make(map[attachKey]string),
		placeholderIDs: make(map[placeholderKey]string),
		refs:           make(map[*MenuItem]parentRef),
	}

	for _, it := range b.loadStatic() {
		it.ID = b.registry.Register(it.ID)
		if it.Parent != "" {
			st.refs[it] = newParentRef(it.Parent)
		}
		st.items = append(st.items, it)
	}

	docs, err := b.source.Documents()
	if err != nil {
		loadTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to read menu sources: %w", err)
	}
	if err := ctx.Err(); err != nil {
		loadTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	b.collectAttachments(st, docs)
	b.allocateIDs(st)
	b.buildItems(st)
	res.Passes = b.resolveParents(st)

	for _, it := range st.items {
		if it.Parent != "" && !it.ParentResolved {
			res.Unresolved = append(res.Unresolved, UnresolvedParent{ItemID: it.ID, Parent: it.Parent})
			b.logger.Warn("Menu parent unresolved, keeping literal value",
				zap.String("load_id", res.LoadID),
				zap.Error(apperrors.NewUnresolvedParent(it.ID, it.Parent)),
			)
		}
	}

	b.store.replace(st.items)
	res.Items = len(st.items)

	loadTotal.WithLabelValues("success").Inc()
	itemsGauge.Set(float64(res.Items))
	unresolvedGauge.Set(float64(len(res.Unresolved)))
	resolvePasses.Observe(float64(res.Passes))

	b.logger.Info("Loaded menus",
		zap.String("load_id", res.LoadID),
		zap.Strings("menus", b.store.Menus()),
		zap.Int("items", res.Items),
		zap.Int("passes", res.Passes),
		zap.Int("unresolved", len(res.Unresolved)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// loadStatic reads the pre-seeded items. A missing or malformed file is
// logged and yields no items.
func (b *Builder) loadStatic() []*MenuItem {
	if b.opts.StaticFile == "" {
		return nil
	}
	items, err := LoadStatic(b.opts.StaticFile)
	if err != nil {
		b.logger.Warn("Skipping static menu file",
			zap.Error(apperrors.NewMalformedFrontmatter(b.opts.StaticFile, err)),
		)
		return nil
	}
	out := make([]*MenuItem, 0, len(items))
	for i := range items {
		if items[i].ID == "" {
			continue
		}
		it := items[i]
		it.ParentResolved = false
		out = append(out, &it)
	}
	return out
}

// LoadStatic decodes a YAML or JSON list of menu items
func LoadStatic(path string) ([]MenuItem, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var items []MenuItem
	if err := yaml.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// collectAttachments is the first half of pass A: menu definitions attach
// whole collections, then entries attach themselves. A per-entry directive
// for an already attached entry overrides only the settings it declares.
func (b *Builder) collectAttachments(st *loadState, docs []frontmatter.Document) {
	byCollection := make(map[string][]*frontmatter.Document)
	var defs []Definition
	for i := range docs {
		doc := &docs[i]
		if doc.Collection == b.opts.MenuCollection {
			def, err := parseDefinition(*doc)
			if err != nil {
				b.logger.Warn("Skipping malformed menu definition",
					zap.Error(apperrors.NewMalformedFrontmatter(doc.Path, err)))
				continue
			}
			defs = append(defs, def)
			continue
		}
		key := docKey(doc)
		if _, dup := st.index[key]; dup {
			b.logger.Warn("Duplicate entry id, keeping first",
				zap.String("collection", key.Collection),
				zap.String("id", key.ID),
				zap.String("path", doc.Path),
			)
			continue
		}
		st.index[key] = doc
		byCollection[doc.Collection] = append(byCollection[doc.Collection], doc)
	}

	for _, def := range defs {
		for _, d := range def.Collections {
			if boolOr(d.Placeholder, true) {
				st.placeholders = append(st.placeholders, placeholder{
					key:       placeholderKey{menu: def.ID, collection: d.Collection},
					directive: d,
				})
			}
			for _, doc := range byCollection[d.Collection] {
				st.attach(&attachment{
					key:              attachKey{menu: def.ID, collection: doc.Collection, entry: doc.ID()},
					doc:              doc,
					respectHierarchy: d.RespectHierarchy,
				})
			}
		}
	}

	for _, doc := range sortedDocs(st.index, byCollection) {
		directives, err := parseItemDirectives(doc.Data[constants.MenuField])
		if err != nil {
			b.logger.Warn("Skipping malformed menu directive",
				zap.Error(apperrors.NewMalformedFrontmatter(doc.Path, err)))
			continue
		}
		for _, d := range directives {
			st.attach(&attachment{
				key:              attachKey{menu: d.Menu, collection: doc.Collection, entry: doc.ID()},
				doc:              doc,
				title:            d.Title,
				parent:           newParentRef(d.Parent),
				order:            d.Order,
				respectHierarchy: d.RespectHierarchy,
			})
		}
	}
}

// sortedDocs returns the indexed documents in walk order
func sortedDocs(index map[content.EntryKey]*frontmatter.Document, byCollection map[string][]*frontmatter.Document) []*frontmatter.Document {
	collections := make([]string, 0, len(byCollection))
	for c := range byCollection {
		collections = append(collections, c)
	}
	slices.Sort(collections)
	out := make([]*frontmatter.Document, 0, len(index))
	for _, c := range collections {
		out = append(out, byCollection[c]...)
	}
	return out
}

func (st *loadState) attach(a *attachment) {
	if i, ok := st.byKey[a.key]; ok {
		prev := st.attachments[i]
		if a.title != "" {
			prev.title = a.title
		}
		if !a.parent.empty() {
			prev.parent = a.parent
		}
		if a.order != nil {
			prev.order = a.order
		}
		if a.respectHierarchy != nil {
			prev.respectHierarchy = a.respectHierarchy
		}
		return
	}
	st.byKey[a.key] = len(st.attachments)
	st.attachments = append(st.attachments, a)
}

// allocateIDs is the second half of pass A: every placeholder and attached
// entry reserves its semantic id before any parent is assigned, so content
// parents can be looked up regardless of processing order.
func (b *Builder) allocateIDs(st *loadState) {
	placeholderMenus := make(map[string]map[string]struct{})
	for _, p := range st.placeholders {
		if placeholderMenus[p.key.collection] == nil {
			placeholderMenus[p.key.collection] = make(map[string]struct{})
		}
		placeholderMenus[p.key.collection][p.key.menu] = struct{}{}
	}
	entryMenus := make(map[content.EntryKey]map[string]struct{})
	for _, a := range st.attachments {
		k := docKey(a.doc)
		if entryMenus[k] == nil {
			entryMenus[k] = make(map[string]struct{})
		}
		entryMenus[k][a.key.menu] = struct{}{}
	}

	for _, p := range st.placeholders {
		if _, dup := st.placeholderIDs[p.key]; dup {
			continue
		}
		base := slugPart(p.key.collection)
		if len(placeholderMenus[p.key.collection]) > 1 {
			base += "-" + p.key.menu
		}
		st.placeholderIDs[p.key] = b.registry.Register(base)
	}
	for _, a := range st.attachments {
		multi := len(entryMenus[docKey(a.doc)]) > 1
		st.ids[a.key] = b.registry.Register(b.semanticID(st, a.doc, a.key.menu, multi))
	}
}

// semanticID joins the entry id, its content ancestors root first, and the
// menu id when the entry is attached to several menus.
func (b *Builder) semanticID(st *loadState, doc *frontmatter.Document, menuID string, withMenu bool) string {
	chain := b.ancestorChain(st, doc)
	slices.Reverse(chain)
	parts := append([]string{slugPart(doc.ID())}, chain...)
	if withMenu {
		parts = append(parts, menuID)
	}
	return strings.Join(parts, "-")
}

// ancestorChain walks the content parent field upward, nearest first
func (b *Builder) ancestorChain(st *loadState, doc *frontmatter.Document) []string {
	var chain []string
	visited := map[string]struct{}{doc.ID(): {}}
	cur := doc
	for {
		pid := b.contentParent(cur)
		if pid == "" {
			return chain
		}
		if _, seen := visited[pid]; seen {
			b.logger.Warn("Circular content hierarchy in menu entry",
				zap.Error(apperrors.NewCircularReference(doc.Collection, doc.ID(), append([]string{doc.ID()}, chain...))))
			return chain
		}
		parent, ok := st.index[content.EntryKey{Collection: cur.Collection, ID: pid}]
		if !ok {
			return chain
		}
		visited[pid] = struct{}{}
		chain = append(chain, slugPart(parent.ID()))
		cur = parent
	}
}

// contentParent returns the first same-collection parent id of a document
func (b *Builder) contentParent(doc *frontmatter.Document) string {
	v := doc.Data[b.opts.Schema.For(doc.Collection).Parent()]
	if m, ok := content.AsMap(v); ok {
		id, _ := m["id"].(string)
		return id
	}
	if list, ok := v.([]any); ok && len(list) > 0 {
		if m, ok := content.AsMap(list[0]); ok {
			id, _ := m["id"].(string)
			return id
		}
	}
	if ids := content.ToStrings(v); len(ids) > 0 {
		return ids[0]
	}
	return ""
}

func docKey(doc *frontmatter.Document) content.EntryKey {
	return content.EntryKey{Collection: doc.Collection, ID: doc.ID()}
}

func slugPart(id string) string {
	return strings.ReplaceAll(strings.Trim(id, "/"), "/", "-")
}

// buildItems creates items in processing order and assigns parents. Explicit
// parents resolve against the items built so far; forward references stay
// raw for the fixpoint passes.
func (b *Builder) buildItems(st *loadState) {
	r := &resolver{items: st.items}

	built := make(map[placeholderKey]struct{}, len(st.placeholders))
	for _, p := range st.placeholders {
		if _, dup := built[p.key]; dup {
			continue
		}
		built[p.key] = struct{}{}
		it := &MenuItem{
			ID:         st.placeholderIDs[p.key],
			Title:      firstNonEmpty(p.directive.Title, p.key.collection),
			URL:        "/" + p.key.collection,
			Menus:      []string{p.key.menu},
			Order:      p.directive.Order,
			Collection: p.key.collection,
		}
		b.assignExplicit(st, r, it, newParentRef(p.directive.Parent))
		st.items = append(st.items, it)
		r.items = st.items
	}

	for _, a := range st.attachments {
		it := newItem(a, st.ids[a.key])
		switch pid := b.contentParent(a.doc); {
		case pid != "" && boolOr(a.respectHierarchy, true) && st.hasID(attachKey{menu: a.key.menu, collection: a.key.collection, entry: pid}):
			it.Parent = st.ids[attachKey{menu: a.key.menu, collection: a.key.collection, entry: pid}]
			it.ParentResolved = true
		case !a.parent.empty():
			b.assignExplicit(st, r, it, a.parent)
		default:
			// The implicit attach point is the collection placeholder; without
			// one the item is a root.
			if phID, ok := st.placeholderIDs[placeholderKey{menu: a.key.menu, collection: a.key.collection}]; ok {
				it.Parent = phID
				it.ParentResolved = true
			}
		}
		st.items = append(st.items, it)
		r.items = st.items
	}
}

func (b *Builder) assignExplicit(st *loadState, r *resolver, it *MenuItem, ref parentRef) {
	if ref.empty() {
		return
	}
	if id, ok := r.resolve(ref, it); ok {
		it.Parent = id
		it.ParentResolved = true
		return
	}
	it.Parent = ref.raw()
	st.refs[it] = ref
}

func (st *loadState) hasID(k attachKey) bool {
	_, ok := st.ids[k]
	return ok
}

// resolveParents is pass B: re-resolve every raw parent against the full
// item set until a pass changes nothing or the pass limit is reached.
// Returns the number of passes run.
func (b *Builder) resolveParents(st *loadState) int {
	r := &resolver{items: st.items}
	passes := 0
	for passes < constants.MaxMenuResolvePasses {
		passes++
		changed := 0
		for _, it := range st.items {
			if it.ParentResolved || it.Parent == "" {
				continue
			}
			ref, ok := st.refs[it]
			if !ok {
				ref = newParentRef(it.Parent)
			}
			if id, ok := r.resolve(ref, it); ok {
				it.Parent = id
				it.ParentResolved = true
				changed++
			}
		}
		b.logger.Debug("Menu parent resolution pass",
			zap.Int("pass", passes),
			zap.Int("resolved", changed),
		)
		if changed == 0 {
			break
		}
	}
	return passes
}

func newItem(a *attachment, id string) *MenuItem {
	d := a.doc
	it := &MenuItem{
		ID:           id,
		Title:        firstNonEmpty(a.title, str(d.Data, "menuTitle"), str(d.Data, "title"), d.ID()),
		Description:  str(d.Data, "description"),
		URL:          urlFor(d),
		Menus:        []string{a.key.menu},
		Order:        a.order,
		OpenInNewTab: truthy(d.Data["openInNewTab"]),
		Tags:         content.ToStrings(d.Data["tags"]),
		Collection:   d.Collection,
		EntryID:      d.ID(),
	}
	if it.Order == nil {
		if f, ok := content.ToFloat(d.Data[content.OrderField]); ok {
			o := int(f)
			it.Order = &o
		}
	}
	return it
}

func urlFor(d *frontmatter.Document) string {
	if u := str(d.Data, "url"); u != "" {
		return u
	}
	if d.Slug == "" || d.Slug == "index" {
		return "/" + d.Collection
	}
	return "/" + d.Collection + "/" + d.Slug
}

func str(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return strings.TrimSpace(s)
}

func truthy(v any) bool {
	b, _ := v.(bool)
	return b
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}

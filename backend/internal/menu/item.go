// Package menu builds navigation menus from content frontmatter: menu
// definitions attach whole collections, entries attach themselves, and every
// item gets a collision-free semantic id and a resolved parent.
package menu

import (
	"cmp"
	"slices"
	"sync"
)

// MenuItem is one navigation entry
type MenuItem struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description"`
	URL         string `json:"url,omitempty" yaml:"url"`

	// Parent is the resolved parent item id, or the raw parent value when
	// ParentResolved is false.
	Parent         string `json:"parent,omitempty" yaml:"parent"`
	ParentResolved bool   `json:"parentResolved" yaml:"-"`

	Menus        []string `json:"menus" yaml:"menus"`
	Order        *int     `json:"order,omitempty" yaml:"order"`
	OpenInNewTab bool     `json:"openInNewTab" yaml:"openInNewTab"`
	Tags         []string `json:"tags,omitempty" yaml:"tags"`

	// Collection and EntryID point back at the content entry. Placeholder
	// items carry only the collection; static items carry neither.
	Collection string `json:"collection,omitempty" yaml:"-"`
	EntryID    string `json:"entryId,omitempty" yaml:"-"`
}

// InMenu reports whether the item is attached to menuID
func (m *MenuItem) InMenu(menuID string) bool {
	return slices.Contains(m.Menus, menuID)
}

func (m *MenuItem) clone() MenuItem {
	out := *m
	out.Menus = slices.Clone(m.Menus)
	out.Tags = slices.Clone(m.Tags)
	if m.Order != nil {
		o := *m.Order
		out.Order = &o
	}
	return out
}

// compareItems orders by Order ascending with unordered items last
func compareItems(a, b *MenuItem) int {
	switch {
	case a.Order != nil && b.Order != nil:
		return cmp.Compare(*a.Order, *b.Order)
	case a.Order != nil:
		return -1
	case b.Order != nil:
		return 1
	}
	return 0
}

// TreeNode is one item in a rendered menu tree
type TreeNode struct {
	Item     MenuItem    `json:"item"`
	Children []*TreeNode `json:"children"`
	Depth    int         `json:"depth"`
}

// Store is the flat menu item store produced by a load. Reads are safe
// during a concurrent load; they see either the old or the new contents.
type Store struct {
	mu    sync.RWMutex
	items map[string]*MenuItem
	order []string
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{items: make(map[string]*MenuItem)}
}

// replace swaps the store contents for items in load order
func (s *Store) replace(items []*MenuItem) {
	m := make(map[string]*MenuItem, len(items))
	order := make([]string, 0, len(items))
	for _, it := range items {
		m[it.ID] = it
		order = append(order, it.ID)
	}
	s.mu.Lock()
	s.items = m
	s.order = order
	s.mu.Unlock()
}

// Len returns the number of items
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Items returns every item in load order
func (s *Store) Items() []MenuItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]MenuItem, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id].clone())
	}
	return out
}

// Get returns one item by id
func (s *Store) Get(id string) (MenuItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[id]
	if !ok {
		return MenuItem{}, false
	}
	return it.clone(), true
}

// Menus lists the menu ids referenced by any item, sorted
func (s *Store) Menus() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, id := range s.order {
		for _, m := range s.items[id].Menus {
			if !slices.Contains(out, m) {
				out = append(out, m)
			}
		}
	}
	slices.Sort(out)
	return out
}

// Menu returns the items attached to menuID ordered by Order, then load order
func (s *Store) Menu(menuID string) []MenuItem {
	return s.collect(func(it *MenuItem) bool { return it.InMenu(menuID) })
}

// Children returns the items whose resolved parent is id
func (s *Store) Children(id string) []MenuItem {
	return s.collect(func(it *MenuItem) bool { return it.ParentResolved && it.Parent == id })
}

// Roots returns the items of menuID without a resolved parent
func (s *Store) Roots(menuID string) []MenuItem {
	return s.collect(func(it *MenuItem) bool { return it.InMenu(menuID) && !it.ParentResolved })
}

func (s *Store) collect(keep func(*MenuItem) bool) []MenuItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*MenuItem
	for _, id := range s.order {
		if it := s.items[id]; keep(it) {
			matched = append(matched, it)
		}
	}
	slices.SortStableFunc(matched, compareItems)
	out := make([]MenuItem, len(matched))
	for i, it := range matched {
		out[i] = it.clone()
	}
	return out
}

// Tree builds the menu forest of menuID from its roots. Children outside the
// menu are not followed.
func (s *Store) Tree(menuID string) []*TreeNode {
	var build func(it MenuItem, depth int, path map[string]struct{}) *TreeNode
	build = func(it MenuItem, depth int, path map[string]struct{}) *TreeNode {
		node := &TreeNode{Item: it, Depth: depth, Children: []*TreeNode{}}
		path[it.ID] = struct{}{}
		defer delete(path, it.ID)
		for _, c := range s.Children(it.ID) {
			if _, onPath := path[c.ID]; onPath || !c.InMenu(menuID) {
				continue
			}
			node.Children = append(node.Children, build(c, depth+1, path))
		}
		return node
	}

	roots := s.Roots(menuID)
	out := make([]*TreeNode, 0, len(roots))
	for _, r := range roots {
		out = append(out, build(r, 0, map[string]struct{}{}))
	}
	return out
}

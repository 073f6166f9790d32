package menu

import (
	"fmt"
	"strings"

	"contentgraph/backend/internal/content"
)

// parentRef is a parent value as written in frontmatter: a string that may
// be an id, slug or URL, or an object carrying any of those.
type parentRef struct {
	ID   string
	Slug string
	URL  string
}

func newParentRef(v any) parentRef {
	switch val := v.(type) {
	case nil:
		return parentRef{}
	case string:
		s := strings.TrimSpace(val)
		return parentRef{ID: s, Slug: s, URL: s}
	}
	m, ok := content.AsMap(v)
	if !ok {
		s := strings.TrimSpace(fmt.Sprint(v))
		return parentRef{ID: s, Slug: s, URL: s}
	}
	str := func(k string) string {
		s, _ := m[k].(string)
		return strings.TrimSpace(s)
	}
	return parentRef{ID: str("id"), Slug: str("slug"), URL: str("url")}
}

func (p parentRef) empty() bool {
	return p.ID == "" && p.Slug == "" && p.URL == ""
}

// raw is the fallback string kept when the parent does not resolve
func (p parentRef) raw() string {
	switch {
	case p.ID != "":
		return p.ID
	case p.Slug != "":
		return p.Slug
	}
	return p.URL
}

// resolver matches parent values against a set of items
type resolver struct {
	items []*MenuItem
}

// resolve finds the item a parent value points at: exact id, then
// case-insensitive id, then case-insensitive URL with or without a leading
// slash. Items in the child's menus win over items elsewhere; the child
// itself never matches.
func (r *resolver) resolve(p parentRef, child *MenuItem) (string, bool) {
	if p.empty() {
		return "", false
	}
	ids := nonEmpty(p.ID, p.Slug)

	matchers := []func(*MenuItem) bool{
		func(it *MenuItem) bool {
			for _, id := range ids {
				if it.ID == id {
					return true
				}
			}
			return false
		},
		func(it *MenuItem) bool {
			for _, id := range ids {
				if strings.EqualFold(it.ID, id) {
					return true
				}
			}
			return false
		},
		func(it *MenuItem) bool {
			return it.URL != "" && p.URL != "" && strings.EqualFold(trimSlash(it.URL), trimSlash(p.URL))
		},
	}

	for _, match := range matchers {
		var elsewhere *MenuItem
		for _, it := range r.items {
			if it == child || !match(it) {
				continue
			}
			if sharesMenu(it, child) {
				return it.ID, true
			}
			if elsewhere == nil {
				elsewhere = it
			}
		}
		if elsewhere != nil {
			return elsewhere.ID, true
		}
	}
	return "", false
}

func sharesMenu(a, b *MenuItem) bool {
	for _, m := range a.Menus {
		if b.InMenu(m) {
			return true
		}
	}
	return false
}

func trimSlash(s string) string {
	return strings.TrimPrefix(s, "/")
}

func nonEmpty(ss ...string) []string {
	out := ss[:0]
	for _, s := range ss {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

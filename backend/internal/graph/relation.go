package graph

import (
	"slices"

	"contentgraph/backend/internal/content"
)

// RelationType is the kind of edge between two entries
type RelationType string

const (
	RelationReference    RelationType = "reference"
	RelationReferencedBy RelationType = "referenced-by"
	RelationParent       RelationType = "parent"
	RelationChild        RelationType = "child"
	RelationSibling      RelationType = "sibling"
	RelationAncestor     RelationType = "ancestor"
	RelationDescendant   RelationType = "descendant"
	RelationIndirect     RelationType = "indirect"
)

// AllRelationTypes lists every relation type in RelationMap field order
var AllRelationTypes = []RelationType{
	RelationReference,
	RelationReferencedBy,
	RelationParent,
	RelationChild,
	RelationSibling,
	RelationAncestor,
	RelationDescendant,
	RelationIndirect,
}

// Relation is a typed edge from the owning entry to Collection/ID
type Relation struct {
	Type       RelationType `json:"type"`
	Collection string       `json:"collection"`
	ID         string       `json:"id"`
	Field      string       `json:"field,omitempty"`
	Depth      int          `json:"depth,omitempty"`
	Path       []string     `json:"path,omitempty"`

	// Entry is the resolved payload of the target, filled lazily.
	Entry *content.Entry `json:"entry,omitempty"`
}

// Key returns the key of the related entry
func (r Relation) Key() content.EntryKey {
	return content.EntryKey{Collection: r.Collection, ID: r.ID}
}

// RelationMap holds every relation of one entry
type RelationMap struct {
	Entry *content.Entry `json:"entry"`

	References   []Relation `json:"references"`
	ReferencedBy []Relation `json:"referencedBy"`
	Parent       *Relation  `json:"parent,omitempty"`
	Parents      []Relation `json:"parents"`
	Children     []Relation `json:"children"`
	Siblings     []Relation `json:"siblings"`
	Ancestors    []Relation `json:"ancestors"`
	Descendants  []Relation `json:"descendants"`
	Indirect     []Relation `json:"indirect"`

	Depth       int  `json:"depth"`
	HasChildren bool `json:"hasChildren"`
	IsRoot      bool `json:"isRoot"`
	IsLeaf      bool `json:"isLeaf"`
}

// NewRelationMap returns an empty map for an entry: no relations, depth 0,
// root and leaf.
func NewRelationMap(entry *content.Entry) *RelationMap {
	return &RelationMap{
		Entry:        entry,
		References:   []Relation{},
		ReferencedBy: []Relation{},
		Parents:      []Relation{},
		Children:     []Relation{},
		Siblings:     []Relation{},
		Ancestors:    []Relation{},
		Descendants:  []Relation{},
		Indirect:     []Relation{},
		IsRoot:       true,
		IsLeaf:       true,
	}
}

// Clone returns a deep copy of the relation lists. Entry payloads are shared.
func (m *RelationMap) Clone() *RelationMap {
	out := *m
	out.References = cloneRelations(m.References)
	out.ReferencedBy = cloneRelations(m.ReferencedBy)
	out.Parents = cloneRelations(m.Parents)
	out.Children = cloneRelations(m.Children)
	out.Siblings = cloneRelations(m.Siblings)
	out.Ancestors = cloneRelations(m.Ancestors)
	out.Descendants = cloneRelations(m.Descendants)
	out.Indirect = cloneRelations(m.Indirect)
	if m.Parent != nil {
		p := *m.Parent
		out.Parent = &p
	}
	return &out
}

// Filter returns a copy keeping only the listed relation types. No types
// keeps everything.
func (m *RelationMap) Filter(types ...RelationType) *RelationMap {
	out := m.Clone()
	if len(types) == 0 {
		return out
	}
	keep := func(t RelationType) bool { return slices.Contains(types, t) }
	if !keep(RelationReference) {
		out.References = []Relation{}
	}
	if !keep(RelationReferencedBy) {
		out.ReferencedBy = []Relation{}
	}
	if !keep(RelationParent) {
		out.Parent = nil
		out.Parents = []Relation{}
	}
	if !keep(RelationChild) {
		out.Children = []Relation{}
	}
	if !keep(RelationSibling) {
		out.Siblings = []Relation{}
	}
	if !keep(RelationAncestor) {
		out.Ancestors = []Relation{}
	}
	if !keep(RelationDescendant) {
		out.Descendants = []Relation{}
	}
	if !keep(RelationIndirect) {
		out.Indirect = []Relation{}
	}
	return out
}

// Of returns the relation list for a type
func (m *RelationMap) Of(t RelationType) []Relation {
	switch t {
	case RelationReference:
		return m.References
	case RelationReferencedBy:
		return m.ReferencedBy
	case RelationParent:
		return m.Parents
	case RelationChild:
		return m.Children
	case RelationSibling:
		return m.Siblings
	case RelationAncestor:
		return m.Ancestors
	case RelationDescendant:
		return m.Descendants
	case RelationIndirect:
		return m.Indirect
	}
	return nil
}

func cloneRelations(in []Relation) []Relation {
	out := make([]Relation, len(in))
	for i, r := range in {
		if r.Path != nil {
			r.Path = slices.Clone(r.Path)
		}
		out[i] = r
	}
	return out
}

package content

import (
	"fmt"
	"os"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"

	"contentgraph/backend/internal/constants"
)

// CollectionSchema declares which data fields of a collection hold references.
// ReferenceFields maps a field name to its target collection; an empty target
// means the field must carry fully qualified {collection, id} values.
type CollectionSchema struct {
	Name            string            `yaml:"-" json:"name"`
	ReferenceFields map[string]string `yaml:"references" json:"references,omitempty"`
	ParentField     string            `yaml:"parentField" json:"parentField,omitempty"`
}

// Schema is the per-collection descriptor set supplied by the caller
type Schema struct {
	Collections map[string]*CollectionSchema `yaml:"collections" json:"collections"`
}

// NewSchema creates a schema from collection descriptors
func NewSchema(collections ...CollectionSchema) *Schema {
	s := &Schema{Collections: make(map[string]*CollectionSchema, len(collections))}
	for i := range collections {
		cs := collections[i]
		s.Collections[cs.Name] = &cs
	}
	return s
}

// LoadSchema reads a YAML schema descriptor file
func LoadSchema(path string) (*Schema, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	var s Schema
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to parse schema %s: %w", path, err)
	}
	if s.Collections == nil {
		s.Collections = make(map[string]*CollectionSchema)
	}
	for name, cs := range s.Collections {
		if cs == nil {
			cs = &CollectionSchema{}
			s.Collections[name] = cs
		}
		cs.Name = name
	}
	return &s, nil
}

// For returns the descriptor for a collection. Undeclared collections get an
// empty descriptor: only explicitly typed Reference values count as references.
func (s *Schema) For(collection string) *CollectionSchema {
	if s != nil && s.Collections != nil {
		if cs, ok := s.Collections[collection]; ok && cs != nil {
			return cs
		}
	}
	return &CollectionSchema{Name: collection}
}

// Parent returns the name of the parent field for the collection
func (cs *CollectionSchema) Parent() string {
	if cs.ParentField != "" {
		return cs.ParentField
	}
	return constants.ParentField
}

// FieldReference is a reference found in a named data field
type FieldReference struct {
	Field  string
	Target Reference
}

// References extracts the references held by an entry's data, in field name order.
func (cs *CollectionSchema) References(e Entry) []FieldReference {
	if len(e.Data) == 0 {
		return nil
	}
	fields := make([]string, 0, len(e.Data))
	for field := range e.Data {
		if cs.isReserved(field) {
			continue
		}
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var refs []FieldReference
	for _, field := range fields {
		target, declared := cs.ReferenceFields[field]
		for _, ref := range extractRefs(e.Data[field], target, declared) {
			refs = append(refs, FieldReference{Field: field, Target: ref})
		}
	}
	return refs
}

// ParentRefs extracts same-collection parent ids from the entry's parent field
func (cs *CollectionSchema) ParentRefs(e Entry) []Reference {
	v, ok := e.Data[cs.Parent()]
	if !ok {
		return nil
	}
	return extractRefs(v, e.Collection, true)
}

func (cs *CollectionSchema) isReserved(field string) bool {
	return field == cs.Parent() || slices.Contains(constants.ReservedFields, field)
}

// extractRefs pulls references out of a field value. Bare strings only count
// when the field is declared with a target collection.
func extractRefs(v any, target string, declared bool) []Reference {
	switch val := v.(type) {
	case nil:
		return nil
	case Reference:
		if val.ID == "" || val.Collection == "" {
			return nil
		}
		return []Reference{val}
	case *Reference:
		if val == nil {
			return nil
		}
		return extractRefs(*val, target, declared)
	case []Reference:
		out := make([]Reference, 0, len(val))
		for _, r := range val {
			out = append(out, extractRefs(r, target, declared)...)
		}
		return out
	case string:
		if !declared || target == "" || val == "" {
			return nil
		}
		return []Reference{{Collection: target, ID: val}}
	case []string:
		var out []Reference
		for _, s := range val {
			out = append(out, extractRefs(s, target, declared)...)
		}
		return out
	case []any:
		var out []Reference
		for _, item := range val {
			out = append(out, extractRefs(item, target, declared)...)
		}
		return out
	}

	m, ok := asMap(v)
	if !ok {
		return nil
	}
	id, _ := m["id"].(string)
	if id == "" {
		return nil
	}
	collection, _ := m["collection"].(string)
	if collection == "" {
		if !declared || target == "" {
			return nil
		}
		collection = target
	}
	return []Reference{{Collection: collection, ID: id}}
}

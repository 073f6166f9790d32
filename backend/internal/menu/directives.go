package menu

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"contentgraph/backend/internal/content"
	"contentgraph/backend/internal/frontmatter"
)

var validate = validator.New()

// Definition is a menu declared by a file in the menu collection
type Definition struct {
	ID          string                `yaml:"-" validate:"required"`
	Title       string                `yaml:"title"`
	Description string                `yaml:"description"`
	Collections []CollectionDirective `yaml:"-" validate:"dive"`
}

// CollectionDirective attaches every entry of a collection to a menu
type CollectionDirective struct {
	Collection string `yaml:"collection" validate:"required"`

	// Title, Parent and Order shape the collection placeholder item.
	Title  string `yaml:"title"`
	Parent any    `yaml:"parent"`
	Order  *int   `yaml:"order"`

	// RespectHierarchy lets entries nest under their content parent. Default true.
	RespectHierarchy *bool `yaml:"respectHierarchy"`

	// Placeholder registers an item standing for the collection. Default true.
	Placeholder *bool `yaml:"placeholder"`
}

// ItemDirective attaches a single entry to a menu
type ItemDirective struct {
	Menu             string `yaml:"menu" validate:"required"`
	Title            string `yaml:"title"`
	Parent           any    `yaml:"parent"`
	Order            *int   `yaml:"order"`
	RespectHierarchy *bool  `yaml:"respectHierarchy"`
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// decodeInto re-encodes a frontmatter value into a typed struct
func decodeInto(v any, out any) error {
	raw, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(raw, out)
}

// parseDefinition reads a menu definition document. Collection directives
// may be a bare collection name or an object.
func parseDefinition(doc frontmatter.Document) (Definition, error) {
	def := Definition{ID: doc.ID()}
	if err := decodeInto(doc.Data, &def); err != nil {
		return Definition{}, fmt.Errorf("menu %s: %w", def.ID, err)
	}

	var raw []any
	switch v := doc.Data["collections"].(type) {
	case nil:
	case []any:
		raw = v
	default:
		raw = []any{v}
	}
	for _, item := range raw {
		var d CollectionDirective
		if name, ok := item.(string); ok {
			d.Collection = name
		} else if err := decodeInto(item, &d); err != nil {
			return Definition{}, fmt.Errorf("menu %s: collection directive: %w", def.ID, err)
		}
		def.Collections = append(def.Collections, d)
	}

	if err := validate.Struct(def); err != nil {
		return Definition{}, fmt.Errorf("menu %s: %w", def.ID, err)
	}
	return def, nil
}

// parseItemDirectives reads the menu field of a content entry: a menu id, a
// list of menu ids, an object, or a list of objects.
func parseItemDirectives(v any) ([]ItemDirective, error) {
	var raw []any
	switch val := v.(type) {
	case nil:
		return nil, nil
	case []any:
		raw = val
	default:
		raw = []any{val}
	}

	out := make([]ItemDirective, 0, len(raw))
	for _, item := range raw {
		var d ItemDirective
		if name, ok := item.(string); ok {
			d.Menu = name
		} else if _, ok := content.AsMap(item); ok {
			if err := decodeInto(item, &d); err != nil {
				return nil, err
			}
		} else {
			return nil, fmt.Errorf("unsupported menu directive %v", item)
		}
		if err := validate.Struct(d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

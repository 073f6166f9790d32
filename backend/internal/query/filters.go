package query

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/itchyny/gojq"

	"contentgraph/backend/internal/content"
	apperrors "contentgraph/backend/pkg/errors"
)

// Filter is a predicate over an entry. Filters added to a query are AND-combined.
type Filter func(e content.Entry) bool

// WhereEquals matches entries whose field equals value. List fields match
// when any element equals value.
func WhereEquals(field string, value any) Filter {
	return func(e content.Entry) bool {
		v, ok := e.Field(field)
		if !ok {
			return false
		}
		if list, isList := v.([]any); isList {
			return slices.ContainsFunc(list, func(item any) bool { return equal(item, value) })
		}
		return equal(v, value)
	}
}

// WhereNotEquals is the negation of WhereEquals; missing fields match
func WhereNotEquals(field string, value any) Filter {
	return Not(WhereEquals(field, value))
}

// WhereIn matches entries whose field equals any of values
func WhereIn(field string, values ...any) Filter {
	return func(e content.Entry) bool {
		for _, v := range values {
			if WhereEquals(field, v)(e) {
				return true
			}
		}
		return false
	}
}

// WhereContains matches a substring of a string field (case-insensitive) or
// an element of a list field.
func WhereContains(field string, value string) Filter {
	needle := strings.ToLower(value)
	return func(e content.Entry) bool {
		v, ok := e.Field(field)
		if !ok {
			return false
		}
		switch val := v.(type) {
		case string:
			return strings.Contains(strings.ToLower(val), needle)
		case []any, []string:
			return slices.ContainsFunc(content.ToStrings(val), func(s string) bool {
				return strings.EqualFold(s, value)
			})
		}
		return false
	}
}

// WhereExists matches entries carrying a non-nil value in field
func WhereExists(field string) Filter {
	return func(e content.Entry) bool {
		v, ok := e.Field(field)
		return ok && v != nil
	}
}

// WhereDateBefore matches entries whose date field is strictly before t.
// Undated entries never match.
func WhereDateBefore(field string, t time.Time) Filter {
	return func(e content.Entry) bool {
		d, ok := e.Time(field)
		return ok && d.Before(t)
	}
}

// WhereDateAfter matches entries whose date field is strictly after t
func WhereDateAfter(field string, t time.Time) Filter {
	return func(e content.Entry) bool {
		d, ok := e.Time(field)
		return ok && d.After(t)
	}
}

// WhereReferences matches entries whose field points at target, either as a
// bare id or as a {collection, id} value.
func WhereReferences(field string, target content.EntryKey) Filter {
	return func(e content.Entry) bool {
		v, ok := e.Field(field)
		if !ok {
			return false
		}
		return referencesTarget(v, target)
	}
}

func referencesTarget(v any, target content.EntryKey) bool {
	switch val := v.(type) {
	case string:
		return val == target.ID
	case content.Reference:
		return val.Key() == target
	case []any:
		return slices.ContainsFunc(val, func(item any) bool { return referencesTarget(item, target) })
	case []string:
		return slices.Contains(val, target.ID)
	}
	m, ok := content.AsMap(v)
	if !ok {
		return false
	}
	id, _ := m["id"].(string)
	collection, _ := m["collection"].(string)
	return id == target.ID && (collection == "" || collection == target.Collection)
}

// WhereJQ compiles a jq expression evaluated against
// {"collection", "id", "data"}. An entry matches when the first output is
// truthy in the jq sense (neither null nor false).
func WhereJQ(expr string) (Filter, error) {
	parsed, err := gojq.Parse(expr)
	if err != nil {
		return nil, apperrors.NewInvalidQuery(fmt.Sprintf("invalid jq expression %q", expr), err)
	}
	code, err := gojq.Compile(parsed)
	if err != nil {
		return nil, apperrors.NewInvalidQuery(fmt.Sprintf("invalid jq expression %q", expr), err)
	}
	return func(e content.Entry) bool {
		input, err := jqInput(e)
		if err != nil {
			return false
		}
		iter := code.Run(input)
		v, ok := iter.Next()
		if !ok {
			return false
		}
		if _, isErr := v.(error); isErr {
			return false
		}
		return v != nil && v != false
	}, nil
}

// jqInput normalises entry data into the plain JSON value shapes gojq accepts
func jqInput(e content.Entry) (any, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// And matches when every filter matches
func And(filters ...Filter) Filter {
	return func(e content.Entry) bool {
		for _, f := range filters {
			if !f(e) {
				return false
			}
		}
		return true
	}
}

// Or matches when any filter matches
func Or(filters ...Filter) Filter {
	return func(e content.Entry) bool {
		for _, f := range filters {
			if f(e) {
				return true
			}
		}
		return false
	}
}

// Not inverts a filter
func Not(f Filter) Filter {
	return func(e content.Entry) bool {
		return !f(e)
	}
}

// equal compares frontmatter values, treating all numeric kinds alike
func equal(a, b any) bool {
	if af, ok := content.ToFloat(a); ok {
		bf, ok := content.ToFloat(b)
		return ok && af == bf
	}
	if at, ok := a.(time.Time); ok {
		bt, ok := content.ToTime(b)
		return ok && at.Equal(bt)
	}
	return reflect.DeepEqual(a, b)
}

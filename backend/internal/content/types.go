package content

import (
	"fmt"
	"strings"
	"time"
)

// ============================================================================
// Content Types
// ============================================================================

// EntryKey identifies an entry across collections
type EntryKey struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

// String returns the "collection:id" form of the key
func (k EntryKey) String() string {
	return k.Collection + ":" + k.ID
}

// ParseEntryKey parses the "collection:id" form produced by EntryKey.String.
// The id may itself contain colons.
func ParseEntryKey(s string) (EntryKey, error) {
	collection, id, ok := strings.Cut(s, ":")
	if !ok || collection == "" || id == "" {
		return EntryKey{}, fmt.Errorf("invalid entry key %q", s)
	}
	return EntryKey{Collection: collection, ID: id}, nil
}

// Reference points from one entry's data field to another entry
type Reference struct {
	Collection string `json:"collection" yaml:"collection"`
	ID         string `json:"id" yaml:"id"`
}

// Key returns the entry key the reference points to
func (r Reference) Key() EntryKey {
	return EntryKey{Collection: r.Collection, ID: r.ID}
}

// Entry is a single content record
type Entry struct {
	Collection string         `json:"collection"`
	ID         string         `json:"id"`
	Data       map[string]any `json:"data"`
}

// Key returns the entry key
func (e Entry) Key() EntryKey {
	return EntryKey{Collection: e.Collection, ID: e.ID}
}

// Field looks up a possibly dotted path ("seo.title") in the entry data
func (e Entry) Field(path string) (any, bool) {
	if e.Data == nil {
		return nil, false
	}
	var cur any = e.Data
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// String returns the field value as a string, or "" when absent or not scalar
func (e Entry) String(path string) string {
	v, ok := e.Field(path)
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	case int, int64, float64, bool:
		return fmt.Sprint(s)
	}
	return ""
}

// Number returns the field value as a float64
func (e Entry) Number(path string) (float64, bool) {
	v, ok := e.Field(path)
	if !ok {
		return 0, false
	}
	return ToFloat(v)
}

// Time returns the field value as a time, accepting time.Time and common string layouts
func (e Entry) Time(path string) (time.Time, bool) {
	v, ok := e.Field(path)
	if !ok {
		return time.Time{}, false
	}
	return ToTime(v)
}

// ============================================================================
// Value coercion helpers
// ============================================================================

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ToTime converts a frontmatter value into a time
func ToTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, !t.IsZero()
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

// ToFloat converts numeric frontmatter values into a float64
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// ToStrings converts a scalar or list value into a string slice
func ToStrings(v any) []string {
	switch s := v.(type) {
	case nil:
		return nil
	case string:
		if s == "" {
			return nil
		}
		return []string{s}
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok && str != "" {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// asMap accepts both map shapes produced by the YAML and JSON decoders
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	}
	return nil, false
}

// AsMap is the exported form of asMap for other packages decoding frontmatter
func AsMap(v any) (map[string]any, bool) {
	return asMap(v)
}

// OrderField is the conventional numeric sort field for sibling entries
const OrderField = "order"

// CompareOrder orders entries by their numeric order field, entries without
// one last. Ties compare equal so stable sorts keep load order.
func CompareOrder(a, b Entry) int {
	ao, aok := a.Number(OrderField)
	bo, bok := b.Number(OrderField)
	switch {
	case aok && bok:
		if ao < bo {
			return -1
		}
		if ao > bo {
			return 1
		}
		return 0
	case aok:
		return -1
	case bok:
		return 1
	}
	return 0
}

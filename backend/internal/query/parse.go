package query

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"contentgraph/backend/internal/content"
	apperrors "contentgraph/backend/pkg/errors"
)

var whereExpr = regexp.MustCompile(`^([A-Za-z0-9_][A-Za-z0-9_.-]*)(!=|=|:|~|<|>|@|\?)(.*)$`)

// ParseWhere turns a textual condition into a Filter. Supported forms:
//
//	field=value  field:value   equals; "a|b" matches any alternative
//	field!=value               not equals
//	field~text                 contains
//	field<date   field>date    date before / after
//	field@collection:id        references
//	field?                     exists
//
// Values are decoded as YAML scalars, so "3" compares as a number and "true"
// as a boolean.
func ParseWhere(expr string) (Filter, error) {
	m := whereExpr.FindStringSubmatch(strings.TrimSpace(expr))
	if m == nil {
		return nil, apperrors.NewInvalidQuery(fmt.Sprintf("cannot parse condition %q", expr), nil)
	}
	field, op, raw := m[1], m[2], m[3]

	switch op {
	case "?":
		if raw != "" {
			return nil, apperrors.NewInvalidQuery(fmt.Sprintf("unexpected value after %q", field+op), nil)
		}
		return WhereExists(field), nil
	case "~":
		return WhereContains(field, raw), nil
	case "<", ">":
		t, ok := content.ToTime(raw)
		if !ok {
			return nil, apperrors.NewInvalidQuery(fmt.Sprintf("invalid date %q", raw), nil)
		}
		if op == "<" {
			return WhereDateBefore(field, t), nil
		}
		return WhereDateAfter(field, t), nil
	case "@":
		key, err := content.ParseEntryKey(raw)
		if err != nil {
			return nil, apperrors.NewInvalidQuery("invalid reference target", err)
		}
		return WhereReferences(field, key), nil
	case "!=":
		return WhereNotEquals(field, scalar(raw)), nil
	}

	if alts := strings.Split(raw, "|"); len(alts) > 1 {
		values := make([]any, len(alts))
		for i, a := range alts {
			values[i] = scalar(a)
		}
		return WhereIn(field, values...), nil
	}
	return WhereEquals(field, scalar(raw)), nil
}

// scalar decodes a YAML scalar, falling back to the raw string
func scalar(raw string) any {
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil || v == nil {
		return raw
	}
	switch v.(type) {
	case map[string]any, []any:
		return raw
	}
	return v
}

// ParseSort turns "field", "field:desc", "date:published:desc" or
// "field:views:asc" into a Sort. The fields "order" and "title" use the
// dedicated order and title comparisons.
func ParseSort(expr string) (Sort, error) {
	parts := strings.Split(strings.TrimSpace(expr), ":")
	if len(parts) == 0 || parts[0] == "" || len(parts) > 3 {
		return nil, apperrors.NewInvalidQuery(fmt.Sprintf("cannot parse sort %q", expr), nil)
	}

	kind := ""
	if len(parts) > 1 && (parts[0] == "date" || parts[0] == "field") && !isDirection(parts[1]) {
		kind, parts = parts[0], parts[1:]
	}
	if len(parts) > 2 {
		return nil, apperrors.NewInvalidQuery(fmt.Sprintf("cannot parse sort %q", expr), nil)
	}
	field, dir := parts[0], Asc
	if len(parts) == 2 {
		if !isDirection(parts[1]) {
			return nil, apperrors.NewInvalidQuery(fmt.Sprintf("invalid sort direction %q", parts[1]), nil)
		}
		dir = ParseDirection(parts[1])
	}

	switch {
	case kind == "date":
		return SortByDate(field, dir), nil
	case kind == "" && field == content.OrderField && dir == Asc:
		return SortByOrder(), nil
	case kind == "" && field == "title":
		return SortByTitle(dir), nil
	}
	return SortByField(field, dir), nil
}

func isDirection(s string) bool {
	return strings.EqualFold(s, string(Asc)) || strings.EqualFold(s, string(Desc))
}

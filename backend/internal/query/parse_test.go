package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentgraph/backend/internal/content"
)

func TestParseWhere(t *testing.T) {
	post := content.Entry{Collection: "blog", ID: "p", Data: map[string]any{
		"status":  "published",
		"views":   12,
		"tags":    []any{"go", "graphs"},
		"date":    "2024-03-01",
		"author":  "jane",
		"title":   "Graph Walks",
		"draft":   false,
		"summary": nil,
	}}

	tests := []struct {
		expr  string
		match bool
	}{
		{"status=published", true},
		{"status:published", true},
		{"status=draft", false},
		{"status=draft|published", true},
		{"views=12", true},
		{"views!=12", false},
		{"draft=false", true},
		{"tags=go", true},
		{"title~graph", true},
		{"date<2024-06-01", true},
		{"date>2024-06-01", false},
		{"author@authors:jane", true},
		{"author@authors:joe", false},
		{"title?", true},
		{"summary?", false},
		{"missing?", false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			f, err := ParseWhere(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.match, f(post))
		})
	}
}

func TestParseWhere_Invalid(t *testing.T) {
	for _, expr := range []string{"", "=value", "date<not-a-date", "author@nocolon", "title?x"} {
		_, err := ParseWhere(expr)
		assert.Error(t, err, expr)
	}
}

func TestParseSort(t *testing.T) {
	a := content.Entry{ID: "a", Data: map[string]any{"title": "alpha", "views": 5, "order": 2, "date": "2024-01-01"}}
	b := content.Entry{ID: "b", Data: map[string]any{"title": "Beta", "views": 10, "order": 1, "date": "2024-02-01"}}

	tests := []struct {
		expr string
		want int
	}{
		{"title", -1},
		{"title:desc", 1},
		{"views", -1},
		{"views:desc", 1},
		{"field:views:desc", 1},
		{"order", 1},
		{"date:date:desc", 1},
		{"date", -1},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			s, err := ParseSort(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, s(a, b))
		})
	}

	for _, expr := range []string{"", "views:sideways", "a:b:c:d"} {
		_, err := ParseSort(expr)
		assert.Error(t, err, expr)
	}
}

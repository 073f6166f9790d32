package query

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"contentgraph/backend/internal/content"
	"contentgraph/backend/internal/graph"
	"contentgraph/backend/internal/relations"
	apperrors "contentgraph/backend/pkg/errors"
)

func blogStore() *content.MemoryStore {
	post := func(id, author, date string, extra map[string]any) content.Entry {
		data := map[string]any{"author": author, "title": id}
		if date != "" {
			data["publishDate"] = date
		}
		for k, v := range extra {
			data[k] = v
		}
		return content.Entry{Collection: "blog", ID: id, Data: data}
	}
	return content.NewMemoryStore(
		post("old", "jane-doe", "2023-01-05", map[string]any{"tags": []any{"go", "graphs"}, "order": 3}),
		post("draft", "jane-doe", "", map[string]any{"draft": true}),
		post("new", "jane-doe", "2024-06-01", map[string]any{"tags": []any{"go"}, "order": 1}),
		post("mid", "jane-doe", "2023-11-20T10:00:00Z", nil),
		post("other", "john", "2024-01-01", nil),
		content.Entry{Collection: "authors", ID: "jane-doe", Data: map[string]any{"name": "Jane"}},
	)
}

func newEngine(store content.Store) *Engine {
	schema := content.NewSchema(content.CollectionSchema{
		Name:            "blog",
		ReferenceFields: map[string]string{"author": "authors"},
	})
	svc := graph.NewService(store, schema, zap.NewNop())
	return NewEngine(store, relations.NewResolver(svc, graph.BuildOptions{}, zap.NewNop()), zap.NewNop())
}

func TestQuery_AuthorByDateScenario(t *testing.T) {
	q := newEngine(blogStore()).Query("blog").
		Where(WhereEquals("author", "jane-doe")).
		OrderBy(SortByDate("publishDate", Desc)).
		Limit(10)

	res, err := q.Get(context.Background())
	require.NoError(t, err)

	require.LessOrEqual(t, len(res.Items), 10)
	var ids []string
	for _, e := range res.Entries() {
		assert.Equal(t, "jane-doe", e.Data["author"])
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"new", "mid", "old", "draft"}, ids)
	assert.Equal(t, 4, res.Total)

	require.NotNil(t, res.Pagination)
	assert.Equal(t, 1, res.Pagination.Page)
	assert.False(t, res.Pagination.HasNext)
	assert.False(t, res.Pagination.HasPrev)
}

func TestQuery_UndatedLastAscending(t *testing.T) {
	res, err := newEngine(blogStore()).Query("blog").
		OrderBy(SortByDate("publishDate", Asc)).
		Get(context.Background())
	require.NoError(t, err)

	ids := idsOf(res)
	assert.Equal(t, "old", ids[0])
	assert.Equal(t, "draft", ids[len(ids)-1])
	assert.Nil(t, res.Pagination)
}

func TestQuery_Pagination(t *testing.T) {
	ctx := context.Background()
	q := newEngine(blogStore()).Query("blog").OrderBy(SortByTitle(Asc)).Limit(2).Offset(2)

	res, err := q.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "old"}, idsOf(res))
	assert.Equal(t, 5, res.Total)
	assert.Equal(t, &Pagination{Page: 2, PageSize: 2, Offset: 2, TotalPages: 3, HasNext: true, HasPrev: true}, res.Pagination)

	res, err = q.Offset(10).Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.False(t, res.Pagination.HasNext)
}

func TestQuery_TerminalOpsDoNotMutateBuilder(t *testing.T) {
	ctx := context.Background()
	q := newEngine(blogStore()).Query("blog").OrderBy(SortByOrder(), SortByTitle(Asc))

	first, err := q.First(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "new", first.Entry.ID)

	all, err := q.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	count, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	// Multi-key: ordered entries first, then by title.
	var ids []string
	for _, it := range all {
		ids = append(ids, it.Entry.ID)
	}
	assert.Equal(t, []string{"new", "old", "draft", "mid", "other"}, ids)
}

func TestQuery_Filters(t *testing.T) {
	ctx := context.Background()
	e := newEngine(blogStore())
	cutoff := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"not equals", WhereNotEquals("author", "jane-doe"), []string{"other"}},
		{"in", WhereIn("author", "john", "nobody"), []string{"other"}},
		{"list equals", WhereEquals("tags", "graphs"), []string{"old"}},
		{"contains list", WhereContains("tags", "GO"), []string{"old", "new"}},
		{"contains string", WhereContains("title", "ID"), []string{"mid"}},
		{"exists", WhereExists("draft"), []string{"draft"}},
		{"date before", WhereDateBefore("publishDate", cutoff), []string{"old"}},
		{"date after", WhereDateAfter("publishDate", cutoff), []string{"new", "mid", "other"}},
		{"numeric equals", WhereEquals("order", 1.0), []string{"new"}},
		{"references", WhereReferences("author", content.EntryKey{Collection: "authors", ID: "john"}), []string{"other"}},
		{"or", Or(WhereExists("draft"), WhereEquals("author", "john")), []string{"draft", "other"}},
		{"and", And(WhereExists("tags"), Not(WhereEquals("order", 3))), []string{"new"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := e.Query("blog").Where(tc.filter).Get(ctx)
			require.NoError(t, err)
			assert.Equal(t, tc.want, idsOf(res))
		})
	}
}

func TestQuery_WhereJQ(t *testing.T) {
	ctx := context.Background()
	f, err := WhereJQ(`.data.tags // [] | any(. == "graphs")`)
	require.NoError(t, err)

	res, err := newEngine(blogStore()).Query("blog").Where(f).Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, idsOf(res))

	_, err = WhereJQ(`.data[`)
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeQuery))
}

func TestQuery_InvalidCollection(t *testing.T) {
	ctx := context.Background()
	e := newEngine(blogStore())

	for _, name := range []string{"", "../etc", "has space"} {
		_, err := e.Query(name).Get(ctx)
		require.Error(t, err, name)
		var invalid *apperrors.ErrInvalidCollection
		assert.True(t, apperrors.As(err, &invalid), name)
	}

	_, err := e.Query().Count(ctx)
	require.Error(t, err)

	// Unknown but well-formed collections are simply empty.
	res, err := e.Query("nothing-here").Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Items)
}

func TestQuery_MultipleCollectionsAndRelations(t *testing.T) {
	ctx := context.Background()
	res, err := newEngine(blogStore()).Query("authors", "blog").
		Where(Or(WhereEquals("name", "Jane"), WhereEquals("title", "new"))).
		IncludeRelations(0).
		Get(ctx)
	require.NoError(t, err)
	require.Len(t, res.Items, 2)

	jane := res.Items[0]
	assert.Equal(t, "authors", jane.Entry.Collection)
	require.NotNil(t, jane.Relations)
	assert.Len(t, jane.Relations.ReferencedBy, 4)

	post := res.Items[1]
	require.NotNil(t, post.Relations)
	require.Len(t, post.Relations.References, 1)
	assert.Equal(t, "jane-doe", post.Relations.References[0].ID)
}

func idsOf(res *Result) []string {
	out := make([]string, 0, len(res.Items))
	for _, it := range res.Items {
		out = append(out, it.Entry.ID)
	}
	return out
}

func ExampleBuilder_Get() {
	store := content.NewMemoryStore(
		content.Entry{Collection: "blog", ID: "a", Data: map[string]any{"order": 2}},
		content.Entry{Collection: "blog", ID: "b", Data: map[string]any{"order": 1}},
	)
	res, _ := NewEngine(store, nil, zap.NewNop()).Query("blog").OrderBy(SortByOrder()).Get(context.Background())
	fmt.Println(idsOf(res))
	// Output: [b a]
}

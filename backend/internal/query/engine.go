// Package query is a fluent filter/sort/paginate builder over raw collection
// entries, optionally attaching relation maps to each result.
package query

import (
	"context"
	"fmt"
	"regexp"
	"slices"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"contentgraph/backend/internal/content"
	"contentgraph/backend/internal/graph"
	"contentgraph/backend/internal/relations"
	apperrors "contentgraph/backend/pkg/errors"
	"contentgraph/backend/pkg/logger"
)

var (
	queryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contentgraph_queries_total",
		Help: "Total query executions by outcome",
	}, []string{"outcome"})

	queryResults = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "contentgraph_query_matches",
		Help:    "Entries matched per query before pagination",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})
)

var collectionName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("collection", func(fl validator.FieldLevel) bool {
		return collectionName.MatchString(fl.Field().String())
	})
	return v
}

// ValidateCollection rejects empty or malformed collection names
func ValidateCollection(name string) error {
	if err := validate.Var(name, "required,max=128,collection"); err != nil {
		return apperrors.NewInvalidCollection(name, err)
	}
	return nil
}

// Item is one query result
type Item struct {
	Entry     content.Entry      `json:"entry"`
	Relations *graph.RelationMap `json:"relations,omitempty"`
}

// Pagination is reported only for limited queries
type Pagination struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"pageSize"`
	Offset     int  `json:"offset"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// Result holds a page of items and the match count before pagination
type Result struct {
	Items      []Item      `json:"items"`
	Total      int         `json:"total"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// Entries returns the result entries without relation maps
func (r *Result) Entries() []content.Entry {
	out := make([]content.Entry, len(r.Items))
	for i, it := range r.Items {
		out[i] = it.Entry
	}
	return out
}

// Engine creates query builders over a store
type Engine struct {
	store    content.Store
	resolver *relations.Resolver
	logger   *zap.Logger
}

// NewEngine creates an engine. The resolver may be nil when no query asks
// for relations.
func NewEngine(store content.Store, resolver *relations.Resolver, log *zap.Logger) *Engine {
	return &Engine{
		store:    store,
		resolver: resolver,
		logger:   logger.OrDefault(log),
	}
}

// Query starts a builder over one or more collections. Entries of several
// collections are concatenated in argument order.
func (e *Engine) Query(collections ...string) *Builder {
	return &Builder{engine: e, collections: slices.Clone(collections)}
}

// Builder accumulates query state. Builder methods modify and return the
// receiver; terminal operations run on a copy and never modify it.
type Builder struct {
	engine *Engine

	collections []string
	filters     []Filter
	sorts       []Sort
	limit       int
	offset      int

	includeRelations bool
	maxDepth         int
}

// Where adds AND-combined filters
func (b *Builder) Where(filters ...Filter) *Builder {
	b.filters = append(b.filters, filters...)
	return b
}

// OrderBy appends sort keys
func (b *Builder) OrderBy(sorts ...Sort) *Builder {
	b.sorts = append(b.sorts, sorts...)
	return b
}

// Limit caps the page size. Zero or less removes the limit.
func (b *Builder) Limit(n int) *Builder {
	b.limit = max(n, 0)
	return b
}

// Offset skips the first n matches
func (b *Builder) Offset(n int) *Builder {
	b.offset = max(n, 0)
	return b
}

// IncludeRelations attaches a relation map to every result. A positive
// maxDepth also computes indirect relations up to that many hops.
func (b *Builder) IncludeRelations(maxDepth int) *Builder {
	b.includeRelations = true
	b.maxDepth = maxDepth
	return b
}

// clone copies the builder so terminal operations cannot alias its slices
func (b *Builder) clone() *Builder {
	c := *b
	c.collections = slices.Clone(b.collections)
	c.filters = slices.Clone(b.filters)
	c.sorts = slices.Clone(b.sorts)
	return &c
}

// Get runs the query
func (b *Builder) Get(ctx context.Context) (*Result, error) {
	return b.clone().run(ctx)
}

// First returns the first match, or nil when nothing matches
func (b *Builder) First(ctx context.Context) (*Item, error) {
	c := b.clone()
	c.limit = 1
	res, err := c.run(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Items) == 0 {
		return nil, nil
	}
	return &res.Items[0], nil
}

// All returns the matching items of the current page
func (b *Builder) All(ctx context.Context) ([]Item, error) {
	res, err := b.clone().run(ctx)
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

// Count returns the number of matches before pagination. It runs the full
// query, relation attachment included.
func (b *Builder) Count(ctx context.Context) (int, error) {
	res, err := b.clone().run(ctx)
	if err != nil {
		return 0, err
	}
	return res.Total, nil
}

func (b *Builder) run(ctx context.Context) (*Result, error) {
	if len(b.collections) == 0 {
		queryTotal.WithLabelValues("invalid").Inc()
		return nil, apperrors.NewInvalidCollection("", fmt.Errorf("no collection given"))
	}
	for _, c := range b.collections {
		if err := ValidateCollection(c); err != nil {
			queryTotal.WithLabelValues("invalid").Inc()
			return nil, err
		}
	}

	var entries []content.Entry
	for _, c := range b.collections {
		loaded, err := b.engine.store.Entries(ctx, c)
		if err != nil {
			queryTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("failed to load collection %s: %w", c, err)
		}
		entries = append(entries, loaded...)
	}

	matched := entries[:0]
	for _, e := range entries {
		if b.matches(e) {
			matched = append(matched, e)
		}
	}
	total := len(matched)

	if len(b.sorts) > 0 {
		slices.SortStableFunc(matched, func(x, y content.Entry) int {
			for _, s := range b.sorts {
				if c := s(x, y); c != 0 {
					return c
				}
			}
			return 0
		})
	}

	page := matched
	if b.offset > 0 {
		page = page[min(b.offset, len(page)):]
	}
	if b.limit > 0 && len(page) > b.limit {
		page = page[:b.limit]
	}

	res := &Result{Items: make([]Item, len(page)), Total: total}
	for i, e := range page {
		res.Items[i] = Item{Entry: e}
	}
	if b.includeRelations {
		b.attachRelations(ctx, res.Items)
	}
	if b.limit > 0 {
		res.Pagination = paginate(total, b.limit, b.offset)
	}

	queryTotal.WithLabelValues("success").Inc()
	queryResults.Observe(float64(total))
	b.engine.logger.Debug("Executed query",
		zap.Strings("collections", b.collections),
		zap.Int("filters", len(b.filters)),
		zap.Int("total", total),
		zap.Int("returned", len(res.Items)),
	)
	return res, nil
}

func (b *Builder) matches(e content.Entry) bool {
	for _, f := range b.filters {
		if !f(e) {
			return false
		}
	}
	return true
}

func (b *Builder) attachRelations(ctx context.Context, items []Item) {
	r := b.engine.resolver
	if r == nil {
		b.engine.logger.Warn("Relations requested but no resolver configured")
		return
	}
	if b.maxDepth > 0 {
		opts := r.Options()
		opts.IncludeIndirect = true
		opts.MaxIndirectDepth = b.maxDepth
		r = r.WithOptions(opts)
	}
	for i := range items {
		items[i].Relations = r.Relations(ctx, items[i].Entry.Collection, items[i].Entry.ID)
	}
}

func paginate(total, limit, offset int) *Pagination {
	return &Pagination{
		Page:       offset/limit + 1,
		PageSize:   limit,
		Offset:     offset,
		TotalPages: (total + limit - 1) / limit,
		HasNext:    offset+limit < total,
		HasPrev:    offset > 0,
	}
}

package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"contentgraph/backend/internal/content"
	"contentgraph/backend/internal/graph"
	"contentgraph/backend/internal/query"
	"contentgraph/backend/internal/relations"
	apperrors "contentgraph/backend/pkg/errors"
)

// fail maps domain errors onto status codes
func (h *handler) fail(c *gin.Context, err error) {
	var unavailable *apperrors.ErrStoreUnavailable
	switch {
	case apperrors.IsErrorType(err, apperrors.ErrorTypeQuery):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case apperrors.As(err, &unavailable):
		h.logger.Error("Entry store unavailable", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Entry store unavailable"})
	default:
		h.logger.Error("Request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}

func (h *handler) graph(c *gin.Context) {
	opts := h.svc.Options
	if raw := c.Query("collections"); raw != "" {
		opts.Collections = splitList(raw)
	}
	if raw := c.Query("indirect"); raw != "" {
		opts.IncludeIndirect, _ = strconv.ParseBool(raw)
	}
	if n, err := strconv.Atoi(c.Query("depth")); err == nil && n > 0 {
		opts.MaxIndirectDepth = n
	}

	g, err := h.svc.Graphs.Graph(c.Request.Context(), opts)
	if err != nil {
		h.fail(c, err)
		return
	}

	body := gin.H{
		"buildId": g.BuildID,
		"builtAt": g.BuiltAt,
		"options": g.Options,
		"stats":   g.Stats(),
	}
	if nodes, _ := strconv.ParseBool(c.Query("nodes")); nodes {
		body["nodes"] = g.Nodes()
	}
	c.JSON(http.StatusOK, body)
}

func (h *handler) relations(c *gin.Context) {
	var types []graph.RelationType
	for _, t := range splitList(c.Query("types")) {
		types = append(types, graph.RelationType(t))
	}
	rm := h.svc.Resolver.Relations(c.Request.Context(), c.Param("collection"), c.Param("id"), types...)
	if relations.IsPlaceholder(rm.Entry) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Entry not found", "relations": rm})
		return
	}
	c.JSON(http.StatusOK, rm)
}

func (h *handler) related(c *gin.Context) {
	opts := relations.AllRelatedOptions{Resolve: true}
	opts.IncludeIndirect, _ = strconv.ParseBool(c.Query("indirect"))
	if n, err := strconv.Atoi(c.Query("depth")); err == nil {
		opts.MaxDepth = n
	}
	rels := h.svc.Resolver.AllRelatedEntries(c.Request.Context(), c.Param("collection"), c.Param("id"), opts)
	c.JSON(http.StatusOK, gin.H{"related": rels, "total": len(rels)})
}

func (h *handler) tree(c *gin.Context) {
	tree, err := h.svc.Navigator.Tree(c.Request.Context(), c.Param("collection"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tree": tree})
}

func (h *handler) roots(c *gin.Context) {
	entries, err := h.svc.Navigator.Roots(c.Request.Context(), c.Param("collection"))
	h.entries(c, entries, err)
}

func (h *handler) leaves(c *gin.Context) {
	entries, err := h.svc.Navigator.Leaves(c.Request.Context(), c.Param("collection"))
	h.entries(c, entries, err)
}

func (h *handler) hierarchyOp(c *gin.Context) {
	ctx := c.Request.Context()
	nav := h.svc.Navigator
	collection, id := c.Param("collection"), c.Param("id")

	var (
		entries []content.Entry
		err     error
	)
	switch c.Param("op") {
	case "parent":
		parent, perr := nav.Parent(ctx, collection, id)
		if perr != nil {
			h.fail(c, perr)
			return
		}
		c.JSON(http.StatusOK, gin.H{"parent": parent})
		return
	case "children":
		entries, err = nav.Children(ctx, collection, id)
	case "ancestors":
		entries, err = nav.Ancestors(ctx, collection, id)
	case "descendants":
		entries, err = nav.Descendants(ctx, collection, id)
	case "siblings":
		entries, err = nav.Siblings(ctx, collection, id)
	case "breadcrumbs":
		entries, err = nav.Breadcrumbs(ctx, collection, id)
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown hierarchy operation"})
		return
	}
	h.entries(c, entries, err)
}

func (h *handler) entries(c *gin.Context, entries []content.Entry, err error) {
	if err != nil {
		h.fail(c, err)
		return
	}
	if entries == nil {
		entries = []content.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "total": len(entries)})
}

// query accepts repeated where=, sort= and jq= parameters plus limit,
// offset and relations (indirect depth, 0 for direct only).
func (h *handler) query(c *gin.Context) {
	b := h.svc.Engine.Query(splitList(c.Param("collection"))...)

	for _, expr := range c.QueryArray("where") {
		f, err := query.ParseWhere(expr)
		if err != nil {
			h.fail(c, err)
			return
		}
		b.Where(f)
	}
	for _, expr := range c.QueryArray("jq") {
		f, err := query.WhereJQ(expr)
		if err != nil {
			h.fail(c, err)
			return
		}
		b.Where(f)
	}
	for _, expr := range c.QueryArray("sort") {
		s, err := query.ParseSort(expr)
		if err != nil {
			h.fail(c, err)
			return
		}
		b.OrderBy(s)
	}
	for name, apply := range map[string]func(int) *query.Builder{"limit": b.Limit, "offset": b.Offset} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.fail(c, apperrors.NewInvalidQuery("invalid "+name, err))
			return
		}
		apply(n)
	}
	if raw, ok := c.GetQuery("relations"); ok {
		depth, _ := strconv.Atoi(raw)
		b.IncludeRelations(depth)
	}

	res, err := b.Get(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handler) menus(c *gin.Context) {
	if h.svc.Menus == nil {
		c.JSON(http.StatusOK, gin.H{"menus": []string{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"menus": h.svc.Menus.Store().Menus()})
}

func (h *handler) menu(c *gin.Context) {
	if h.svc.Menus == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Menus not loaded"})
		return
	}
	store := h.svc.Menus.Store()
	id := c.Param("menu")
	items := store.Menu(id)
	if len(items) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Menu not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"menu":  id,
		"items": items,
		"tree":  store.Tree(id),
	})
}

// clearCache drops every cached graph and reloads menus
func (h *handler) clearCache(c *gin.Context) {
	h.svc.Graphs.ClearCache()
	body := gin.H{"status": "cleared"}
	if h.svc.Menus != nil {
		res, err := h.svc.Menus.Load(c.Request.Context())
		if err != nil {
			h.fail(c, err)
			return
		}
		body["menus"] = res
	}
	c.JSON(http.StatusOK, body)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

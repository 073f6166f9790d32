// Package api exposes the relationship graph, hierarchy, query engine and
// menus as read-only JSON over gin.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"contentgraph/backend/internal/graph"
	"contentgraph/backend/internal/hierarchy"
	"contentgraph/backend/internal/menu"
	"contentgraph/backend/internal/query"
	"contentgraph/backend/internal/relations"
	"contentgraph/backend/pkg/logger"
)

// Services are the components the handlers read from. Menus may be nil.
type Services struct {
	Graphs    *graph.Service
	Options   graph.BuildOptions
	Resolver  *relations.Resolver
	Navigator *hierarchy.Navigator
	Engine    *query.Engine
	Menus     *menu.Builder
}

// NewServices wires the read components over one graph service
func NewServices(graphs *graph.Service, opts graph.BuildOptions, menus *menu.Builder, log *zap.Logger) *Services {
	resolver := relations.NewResolver(graphs, opts, log)
	return &Services{
		Graphs:    graphs,
		Options:   opts,
		Resolver:  resolver,
		Navigator: hierarchy.NewNavigator(graphs, opts, log),
		Engine:    query.NewEngine(graphs.Store(), resolver, log),
		Menus:     menus,
	}
}

type handler struct {
	svc    *Services
	logger *zap.Logger
}

// NewRouter builds the gin engine with logging, recovery and CORS middleware
func NewRouter(svc *Services, log *zap.Logger) *gin.Engine {
	log = logger.OrDefault(log)
	h := &handler{svc: svc, logger: log}

	router := gin.New()
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())
	router.Use(cors())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.GET("/graph", h.graph)
		api.GET("/relations/:collection/:id", h.relations)
		api.GET("/related/:collection/:id", h.related)

		hier := api.Group("/hierarchy/:collection")
		hier.GET("/tree", h.tree)
		hier.GET("/roots", h.roots)
		hier.GET("/leaves", h.leaves)
		hier.GET("/:id/:op", h.hierarchyOp)

		api.GET("/query/:collection", h.query)

		api.GET("/menus", h.menus)
		api.GET("/menus/:menu", h.menu)

		api.POST("/cache/clear", h.clearCache)
	}

	return router
}

// ginLogger is a custom logger middleware for Gin
func ginLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Info("HTTP Request",
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

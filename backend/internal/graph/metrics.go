package graph

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	buildTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contentgraph_graph_builds_total",
		Help: "Relationship graph builds by result",
	}, []string{"result"})

	buildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "contentgraph_graph_build_duration_seconds",
		Help:    "Relationship graph build duration",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	buildEntries = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "contentgraph_graph_entries",
		Help:    "Entries per relationship graph build",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	})

	buildEdges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contentgraph_graph_edges_total",
		Help: "Edges created by relation type",
	}, []string{"type"})

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contentgraph_graph_cache_lookups_total",
		Help: "Graph cache lookups by outcome",
	}, []string{"outcome"})
)

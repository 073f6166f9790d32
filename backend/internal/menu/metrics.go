package menu

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loadTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contentgraph_menu_loads_total",
		Help: "Total menu loads by outcome",
	}, []string{"outcome"})

	itemsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "contentgraph_menu_items",
		Help: "Menu items in the store after the last load",
	})

	unresolvedGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "contentgraph_menu_unresolved_parents",
		Help: "Menu items whose parent stayed unresolved after the last load",
	})

	resolvePasses = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "contentgraph_menu_resolve_passes",
		Help:    "Parent re-resolution passes per load",
		Buckets: prometheus.LinearBuckets(1, 1, 5),
	})
)

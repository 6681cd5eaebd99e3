package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AnnotationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_annotation_failures_total",
			Help: "Annotation fetches that failed and fell back to zero values.",
		},
		[]string{"kind"},
	)
	ThreadOrphans = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_thread_orphans_total",
			Help: "Comment records dropped because their parent was not in the thread.",
		},
	)
	ThreadBuildSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "feed_thread_build_seconds",
			Help:    "Time to fetch, link, annotate and sort a thread.",
			Buckets: prometheus.DefBuckets,
		},
	)
	StaleLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_stale_loads_total",
			Help: "Loads whose result was discarded because a newer load superseded them.",
		},
		[]string{"view"},
	)
	MutationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_mutation_failures_total",
			Help: "Failed structural mutations and vote writes.",
		},
		[]string{"op"},
	)
)

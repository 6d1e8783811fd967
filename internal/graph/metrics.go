package graph

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "discoveryd",
		Subsystem: "graph",
		Name:      "runs_total",
		Help:      "Pipeline runs started, by graph.",
	}, []string{"graph"})

	nodeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "discoveryd",
		Subsystem: "graph",
		Name:      "node_failures_total",
		Help:      "Node executions that failed and fell back, by graph and node.",
	}, []string{"graph", "node"})

	nodeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "discoveryd",
		Subsystem: "graph",
		Name:      "node_duration_seconds",
		Help:      "Node execution latency, by graph and node.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"graph", "node"})
)

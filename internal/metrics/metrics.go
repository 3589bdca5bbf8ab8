// Package metrics exposes the engine's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricPrefix = "platz"

var (
	// TasksFinished counts task completions by operation and terminal
	// status.
	TasksFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricPrefix,
		Subsystem: "tasks",
		Name:      "finished_total",
		Help:      "Completed deployment tasks by operation and terminal status.",
	}, []string{"operation", "status"})

	// TaskDuration observes wall time from claim to completion.
	TaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricPrefix,
		Subsystem: "tasks",
		Name:      "duration_seconds",
		Help:      "Task execution duration from claim to completion.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
	}, []string{"operation"})

	// TrackedClusters is the number of clusters with a live watcher.
	TrackedClusters = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: metricPrefix,
		Subsystem: "clusters",
		Name:      "tracked",
		Help:      "Clusters currently watched by this engine.",
	})

	// EventsPublished counts database change events fanned out to
	// subscribers.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricPrefix,
		Subsystem: "eventbus",
		Name:      "events_total",
		Help:      "Database change events published, by table and operation.",
	}, []string{"table", "operation"})

	// SubscribersLagged counts subscribers cut for falling behind.
	SubscribersLagged = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricPrefix,
		Subsystem: "eventbus",
		Name:      "subscribers_lagged_total",
		Help:      "Subscribers disconnected after overflowing their buffer.",
	})

	// ResourceSyncs counts resource lifecycle hook outcomes.
	ResourceSyncs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricPrefix,
		Subsystem: "resource_sync",
		Name:      "syncs_total",
		Help:      "Resource sync attempts by resulting status.",
	}, []string{"status"})
)

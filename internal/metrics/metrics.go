package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	syncedItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "planik",
			Name:      "sync_items_total",
			Help:      "Queue items processed by drain result.",
		},
		[]string{"collection", "result"},
	)

	drains = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "planik",
			Name:      "sync_drains_total",
			Help:      "Completed drain passes.",
		},
	)

	drainDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "planik",
			Name:      "sync_drain_duration_seconds",
			Help:      "Wall time of one drain pass.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	pendingItems = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "planik",
			Name:      "sync_queue_pending",
			Help:      "Pending items in the sync queue.",
		},
	)

	connectivity = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "planik",
			Name:      "connectivity_transitions_total",
			Help:      "Connectivity transitions by new state.",
		},
		[]string{"state"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(syncedItems, drains, drainDuration, pendingItems, connectivity)
	})
}

// IncItem counts one processed queue item.
func IncItem(collection, result string) {
	syncedItems.WithLabelValues(collection, result).Inc()
}

// ObserveDrain records a completed drain pass.
func ObserveDrain(seconds float64) {
	drains.Inc()
	drainDuration.Observe(seconds)
}

// SetPending publishes the current pending-queue depth.
func SetPending(n int) {
	pendingItems.Set(float64(n))
}

// IncConnectivity counts a transition to the given state.
func IncConnectivity(online bool) {
	state := "offline"
	if online {
		state = "online"
	}
	connectivity.WithLabelValues(state).Inc()
}

package reconciler

import "github.com/prometheus/client_golang/prometheus"

var (
	passesCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tri",
		Subsystem: "reconciler",
		Name:      "passes_completed_total",
		Help:      "Number of reconciliation passes that advanced the cursor.",
	})
	passesFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tri",
		Subsystem: "reconciler",
		Name:      "passes_failed_total",
		Help:      "Number of reconciliation passes aborted without advancing the cursor.",
	})
	passesDeferred = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tri",
		Subsystem: "reconciler",
		Name:      "passes_deferred_total",
		Help:      "Number of passes deferred because one was already in flight for the owner.",
	})
	itemsUpserted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tri",
		Subsystem: "reconciler",
		Name:      "items_upserted_total",
		Help:      "Feed items inserted as new workout records.",
	})
	itemsSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tri",
		Subsystem: "reconciler",
		Name:      "items_skipped_total",
		Help:      "Feed items skipped because their source identifier already exists.",
	})
	itemsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tri",
		Subsystem: "reconciler",
		Name:      "items_dropped_total",
		Help:      "Feed items dropped for untracked activity types.",
	})
	itemsDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tri",
		Subsystem: "reconciler",
		Name:      "deletions_applied_total",
		Help:      "Feed deletion notices applied as tombstones.",
	})
	passDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tri",
		Subsystem: "reconciler",
		Name:      "pass_duration_seconds",
		Help:      "Wall-clock duration of reconciliation passes.",
		Buckets:   prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(passesCompleted, passesFailed, passesDeferred, itemsUpserted, itemsSkipped, itemsDropped, itemsDeleted, passDuration)
}

package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	workoutPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tri",
		Subsystem: "persistence",
		Name:      "last_workout_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent workout persisted to Postgres.",
	})
	syncWatermarkGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tri",
		Subsystem: "persistence",
		Name:      "last_sync_completed_timestamp_seconds",
		Help:      "Unix timestamp of the most recent successful reconciliation pass.",
	})
	pendingManualGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tri",
		Subsystem: "persistence",
		Name:      "pending_manual_entries",
		Help:      "Manual entries buffered in memory after a failed write.",
	})
)

func init() {
	prometheus.MustRegister(workoutPersistGauge, syncWatermarkGauge, pendingManualGauge)
}

// RecordWorkoutPersisted updates the persistence watermark gauge.
func RecordWorkoutPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	workoutPersistGauge.Set(float64(ts.Unix()))
}

// RecordSyncCompleted updates the sync watermark gauge.
func RecordSyncCompleted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	syncWatermarkGauge.Set(float64(ts.Unix()))
}

// SetPendingManualEntries reports the size of the manual-entry retry queue.
func SetPendingManualEntries(n int) {
	pendingManualGauge.Set(float64(n))
}

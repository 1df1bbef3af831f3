package events

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	dlqRetriedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tri",
		Subsystem: "dlq",
		Name:      "entries_retried_total",
		Help:      "Number of DLQ entries released back to the outbox for redelivery.",
	}, []string{"topic"})

	dlqResolvedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tri",
		Subsystem: "dlq",
		Name:      "entries_resolved_total",
		Help:      "Number of DLQ entries removed after a successful redelivery.",
	}, []string{"topic"})

	dlqQuarantinedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tri",
		Subsystem: "dlq",
		Name:      "entries_quarantined_total",
		Help:      "Number of DLQ entries quarantined after exhausting retries.",
	}, []string{"topic"})

	dlqBacklogGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tri",
		Subsystem: "dlq",
		Name:      "queued_entries",
		Help:      "Current number of non-quarantined entries in the DLQ.",
	})
)

func init() {
	prometheus.MustRegister(dlqRetriedCounter, dlqResolvedCounter, dlqQuarantinedCounter, dlqBacklogGauge)
}

// UpdateBacklogGauge refreshes the DLQ backlog gauge from the database.
func UpdateBacklogGauge(ctx context.Context, pool *pgxpool.Pool) {
	row := pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq WHERE quarantined = FALSE`)
	var count int
	if err := row.Scan(&count); err != nil {
		return
	}
	dlqBacklogGauge.Set(float64(count))
}

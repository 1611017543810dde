// Package observability defines the service's Prometheus metrics.
// Exposed on /metrics when enabled in the daemon config.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Store Metrics ──────────────────────────────────────────────────────────

// UsersRegistered tracks total successful registrations.
var UsersRegistered = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "metergrid",
	Subsystem: "store",
	Name:      "users_registered_total",
	Help:      "Total users registered.",
})

// ReadingsAccepted tracks readings accepted into the pending store.
var ReadingsAccepted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "metergrid",
	Subsystem: "store",
	Name:      "readings_accepted_total",
	Help:      "Total meter readings accepted.",
})

// ReadingsRejected tracks rejected submissions by reason.
var ReadingsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "metergrid",
	Subsystem: "store",
	Name:      "readings_rejected_total",
	Help:      "Total meter reading submissions rejected.",
}, []string{"reason"})

// PendingReadings tracks the number of readings awaiting consolidation.
var PendingReadings = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "metergrid",
	Subsystem: "store",
	Name:      "pending_readings",
	Help:      "Readings currently held in memory awaiting consolidation.",
})

// ─── Consolidation Metrics ──────────────────────────────────────────────────

// Accepting reports whether the service is accepting mutations (1) or
// draining (0).
var Accepting = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "metergrid",
	Subsystem: "consolidator",
	Name:      "accepting",
	Help:      "Whether the service is accepting requests (1) or draining (0).",
})

// DrainRuns counts consolidation cycles by outcome.
var DrainRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "metergrid",
	Subsystem: "consolidator",
	Name:      "runs_total",
	Help:      "Total consolidation runs by outcome.",
}, []string{"outcome"})

// DrainDuration observes the wall time of a full consolidation cycle.
var DrainDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "metergrid",
	Subsystem: "consolidator",
	Name:      "duration_seconds",
	Help:      "Duration of a full consolidation cycle.",
	Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
})

// ReadingsConsolidated counts readings durably merged into the ledger.
var ReadingsConsolidated = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "metergrid",
	Subsystem: "consolidator",
	Name:      "readings_merged_total",
	Help:      "Total readings merged into the ledger.",
})

func init() {
	Accepting.Set(1)
}

// Package metrics exposes Prometheus instruments for engine operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dealflow"

// Metrics holds the collectors recorded by the orchestrator.
type Metrics struct {
	// OperationsTotal counts finished operations.
	// Labels: operation, outcome (committed, rolled_back), kind (error kind or "none")
	OperationsTotal *prometheus.CounterVec

	// OperationDuration measures begin-to-commit/rollback time.
	// Labels: operation, outcome
	OperationDuration *prometheus.HistogramVec

	// AssociationWrites counts junction-row mutations that were committed.
	// Labels: association (deal_lead, resource_stage, user_area), action (create, revive, tombstone)
	AssociationWrites *prometheus.CounterVec
}

// New builds the collectors and registers them with reg. A nil reg skips
// registration, which keeps tests free of global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Engine operations by outcome and error kind.",
		}, []string{"operation", "outcome", "kind"}),
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operation_duration_seconds",
			Help:      "Wall time of one engine transaction.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "outcome"}),
		AssociationWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "association_writes_total",
			Help:      "Committed junction-row mutations.",
		}, []string{"association", "action"}),
	}
	if reg != nil {
		reg.MustRegister(m.OperationsTotal, m.OperationDuration, m.AssociationWrites)
	}
	return m
}

func (m *Metrics) ObserveOperation(operation, outcome, kind string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.OperationsTotal.WithLabelValues(operation, outcome, kind).Inc()
	m.OperationDuration.WithLabelValues(operation, outcome).Observe(elapsed.Seconds())
}

// AddWrites records committed association mutations.
func (m *Metrics) AddWrites(association string, created, revived, tombstoned int) {
	if m == nil {
		return
	}
	m.AssociationWrites.WithLabelValues(association, "create").Add(float64(created))
	m.AssociationWrites.WithLabelValues(association, "revive").Add(float64(revived))
	m.AssociationWrites.WithLabelValues(association, "tombstone").Add(float64(tombstoned))
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MergeMetrics records reconciliation outcomes for the login merge path.
type MergeMetrics struct {
	duration      *prometheus.HistogramVec
	outcomes      *prometheus.CounterVec
	storeFailures *prometheus.CounterVec
}

// NewMergeMetrics registers the merge metrics on the provided registerer.
func NewMergeMetrics(reg prometheus.Registerer) *MergeMetrics {
	if reg == nil {
		return &MergeMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cart_merge_duration_seconds",
		Help:    "Duration of cart merge operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"trigger"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_merge_outcomes_total",
		Help: "Cart merge results by outcome.",
	}, []string{"outcome"})
	storeFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_store_failures_total",
		Help: "Failed reads/writes against the cart stores.",
	}, []string{"store", "op"})
	reg.MustRegister(duration, outcomes, storeFailures)
	return &MergeMetrics{
		duration:      duration,
		outcomes:      outcomes,
		storeFailures: storeFailures,
	}
}

// ObserveDuration records how long a merge took for the given trigger.
func (m *MergeMetrics) ObserveDuration(trigger string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(trigger)).Observe(duration.Seconds())
}

// IncOutcome increments the counter for a merge outcome (merged, partial, failed).
func (m *MergeMetrics) IncOutcome(outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncStoreFailure increments the failure counter for a store operation.
func (m *MergeMetrics) IncStoreFailure(store, op string) {
	if m == nil || m.storeFailures == nil {
		return
	}
	m.storeFailures.WithLabelValues(normalizeLabel(store), normalizeLabel(op)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

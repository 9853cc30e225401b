// Package metrics provides optional Prometheus instrumentation for a
// running flow, grounded on the teacher's graph/metrics.go, adapted from
// a concurrent multi-node engine's counters to this project's
// single-threaded cooperative scheduler.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus exposes scheduler and policy metrics under the "nodeflow_"
// namespace:
//
//   - queue_depth (gauge): nodes currently enqueued, labeled by trace_id.
//   - step_latency_ms (histogram): node execution duration as reported by
//     the caller, labeled by trace_id, node_id, status (success/error/
//     timeout). Run reports one observation per node, spanning all of its
//     attempts and the retry delays between them.
//   - retries_total (counter): retry attempts beyond the first, labeled by
//     trace_id, node_id.
//   - policy_outcomes_total (counter): terminal on_error resolutions,
//     labeled by trace_id, node_id, action (continue/goto/stop).
//   - cancellations_total (counter): flow runs ended by cancellation.
type Prometheus struct {
	queueDepth     *prometheus.GaugeVec
	stepLatency    *prometheus.HistogramVec
	retries        *prometheus.CounterVec
	policyOutcomes *prometheus.CounterVec
	cancellations  *prometheus.CounterVec

	enabled bool
}

// New registers all flow metrics with registry (prometheus.DefaultRegisterer
// if nil) and returns a collector ready to pass into a running flow.
func New(registry prometheus.Registerer) *Prometheus {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Prometheus{
		enabled: true,
		queueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "nodeflow",
			Name:      "queue_depth",
			Help:      "Number of nodes currently enqueued for execution",
		}, []string{"trace_id"}),
		stepLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nodeflow",
			Name:      "step_latency_ms",
			Help:      "Node execution duration in milliseconds, covering all attempts",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		}, []string{"trace_id", "node_id", "status"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nodeflow",
			Name:      "retries_total",
			Help:      "Retry attempts beyond the first per node",
		}, []string{"trace_id", "node_id"}),
		policyOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nodeflow",
			Name:      "policy_outcomes_total",
			Help:      "Terminal on_error resolutions by action",
		}, []string{"trace_id", "node_id", "action"}),
		cancellations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nodeflow",
			Name:      "cancellations_total",
			Help:      "Flow runs ended by context cancellation",
		}, []string{"trace_id"}),
	}
}

// RecordStepLatency records one node execution's duration and outcome.
func (p *Prometheus) RecordStepLatency(traceID, nodeID string, latency time.Duration, status string) {
	if !p.enabled {
		return
	}
	p.stepLatency.WithLabelValues(traceID, nodeID, status).Observe(float64(latency.Milliseconds()))
}

// IncrementRetries records a retry attempt for nodeID within traceID.
func (p *Prometheus) IncrementRetries(traceID, nodeID string) {
	if !p.enabled {
		return
	}
	p.retries.WithLabelValues(traceID, nodeID).Inc()
}

// UpdateQueueDepth sets the scheduler's current queue length for traceID.
func (p *Prometheus) UpdateQueueDepth(traceID string, depth int) {
	if !p.enabled {
		return
	}
	p.queueDepth.WithLabelValues(traceID).Set(float64(depth))
}

// IncrementPolicyOutcome records a terminal on_error resolution.
func (p *Prometheus) IncrementPolicyOutcome(traceID, nodeID, action string) {
	if !p.enabled {
		return
	}
	p.policyOutcomes.WithLabelValues(traceID, nodeID, action).Inc()
}

// IncrementCancellations records a run ended by context cancellation.
func (p *Prometheus) IncrementCancellations(traceID string) {
	if !p.enabled {
		return
	}
	p.cancellations.WithLabelValues(traceID).Inc()
}

// Disable stops metric recording without unregistering collectors.
func (p *Prometheus) Disable() { p.enabled = false }

// Enable resumes metric recording after Disable.
func (p *Prometheus) Enable() { p.enabled = true }

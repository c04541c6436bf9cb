package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for Warden. Pass to components that
// need to record metrics; a nil *Metrics disables recording.
type Metrics struct {
	ResolutionsTotal  *prometheus.CounterVec
	ApprovalsCreated  prometheus.Counter
	ApprovalsResolved *prometheus.CounterVec
	ApprovalsPending  prometheus.Gauge
	ExpirySweepsTotal prometheus.Counter
	EventsEmitted     *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		ResolutionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "warden",
				Name:      "resolutions_total",
				Help:      "Total policy resolutions by decision",
			},
			[]string{"decision"}, // allow/deny/require_approval
		),
		ApprovalsCreated: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "warden",
				Name:      "approvals_created_total",
				Help:      "Total approval requests created",
			},
		),
		ApprovalsResolved: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "warden",
				Name:      "approvals_resolved_total",
				Help:      "Total approvals resolved by outcome",
			},
			[]string{"outcome"}, // approved/rejected/expired
		),
		ApprovalsPending: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "warden",
				Name:      "approvals_pending",
				Help:      "Number of approvals currently pending",
			},
		),
		ExpirySweepsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "warden",
				Name:      "expiry_sweeps_total",
				Help:      "Total expiry sweep passes",
			},
		),
		EventsEmitted: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "warden",
				Name:      "events_emitted_total",
				Help:      "Total run events emitted by type",
			},
			[]string{"type"},
		),
	}
}

// RecordResolution increments the resolution counter. Nil-safe.
func (m *Metrics) RecordResolution(decision string) {
	if m == nil {
		return
	}
	m.ResolutionsTotal.WithLabelValues(decision).Inc()
}

// RecordApprovalCreated increments the created counter and pending gauge. Nil-safe.
func (m *Metrics) RecordApprovalCreated() {
	if m == nil {
		return
	}
	m.ApprovalsCreated.Inc()
	m.ApprovalsPending.Inc()
}

// RecordApprovalResolved increments the resolved counter and decrements the
// pending gauge. Nil-safe.
func (m *Metrics) RecordApprovalResolved(outcome string) {
	if m == nil {
		return
	}
	m.ApprovalsResolved.WithLabelValues(outcome).Inc()
	m.ApprovalsPending.Dec()
}

// RecordSweep increments the sweep counter. Nil-safe.
func (m *Metrics) RecordSweep() {
	if m == nil {
		return
	}
	m.ExpirySweepsTotal.Inc()
}

// RecordEvent increments the emitted-event counter. Nil-safe.
func (m *Metrics) RecordEvent(evType string) {
	if m == nil {
		return
	}
	m.EventsEmitted.WithLabelValues(evType).Inc()
}

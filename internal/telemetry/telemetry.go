// Package telemetry exposes autopilot counters to Prometheus.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eventnexus/autopilot/internal/domain"
)

const namespace = "autopilot"

// Metrics implements autopilot.Recorder.
type Metrics struct {
	CyclesTotal        *prometheus.CounterVec
	CycleDuration      prometheus.Histogram
	CampaignsEvaluated prometheus.Counter
	CampaignFailures   prometheus.Counter
	LastCycleFailed    prometheus.Gauge
	ActionsTotal       *prometheus.CounterVec
	OpportunitiesTotal *prometheus.CounterVec
	RollbacksTotal     *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the autopilot metrics on reg. A nil reg uses a fresh
// registry so tests and multiple instances never collide.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		CyclesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Autopilot cycles run, by trigger and result",
		}, []string{"trigger", "result"}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall-clock duration of autopilot cycles",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
		}),
		CampaignsEvaluated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "campaigns_evaluated_total",
			Help:      "Campaigns evaluated across all cycles",
		}),
		CampaignFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "campaign_failures_total",
			Help:      "Campaigns that errored during a cycle",
		}),
		LastCycleFailed: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cycle_failed_campaigns",
			Help:      "Failed campaigns in the most recent cycle",
		}),
		ActionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Autonomous actions recorded, by type and status",
		}, []string{"action_type", "status"}),
		OpportunitiesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "opportunities_total",
			Help:      "Optimization opportunities recorded, by type and severity",
		}, []string{"opportunity_type", "severity"}),
		RollbacksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rollbacks_total",
			Help:      "Actions rolled back, by type",
		}, []string{"action_type"}),
		gatherer: reg,
	}
}

func (m *Metrics) CycleFinished(s domain.RunSummary) {
	result := "ok"
	switch {
	case s.TimedOut:
		result = "timed_out"
	case s.Failed > 0:
		result = "partial"
	}
	m.CyclesTotal.WithLabelValues(string(s.Trigger), result).Inc()
	m.CycleDuration.Observe(s.Duration().Seconds())
	m.CampaignsEvaluated.Add(float64(s.CampaignsEvaluated))
	m.CampaignFailures.Add(float64(s.Failed))
	m.LastCycleFailed.Set(float64(s.Failed))
}

func (m *Metrics) ActionRecorded(t domain.ActionType, status domain.ActionStatus) {
	m.ActionsTotal.WithLabelValues(string(t), string(status)).Inc()
}

func (m *Metrics) OpportunityRecorded(t domain.OpportunityType, sev domain.Severity) {
	m.OpportunitiesTotal.WithLabelValues(string(t), string(sev)).Inc()
}

func (m *Metrics) RollbackApplied(t domain.ActionType) {
	m.RollbacksTotal.WithLabelValues(string(t)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

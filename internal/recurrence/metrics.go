package recurrence

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome is the result of evaluating one rule in a pass.
type Outcome string

const (
	OutcomeMaterialized  Outcome = "materialized"
	OutcomeNotDue        Outcome = "not_due"
	OutcomeAlreadyExists Outcome = "already_exists"
	OutcomeFailed        Outcome = "failed"
)

// Metrics holds the scheduler's Prometheus collectors.
type Metrics struct {
	passes               *prometheus.CounterVec
	passDuration         prometheus.Histogram
	ruleOutcomes         *prometheus.CounterVec
	notificationFailures prometheus.Counter
}

// NewMetrics registers the scheduler collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		passes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "repsched",
			Name:      "scheduling_passes_total",
			Help:      "Scheduling passes run, by trigger.",
		}, []string{"trigger"}),
		passDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "repsched",
			Name:      "scheduling_pass_duration_seconds",
			Help:      "Duration of scheduling passes.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8), //nolint:mnd // 1ms to ~16s.
		}),
		ruleOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "repsched",
			Name:      "rule_evaluations_total",
			Help:      "Rule evaluations, by outcome.",
		}, []string{"outcome"}),
		notificationFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "repsched",
			Name:      "notification_failures_total",
			Help:      "Notification requests that failed or timed out.",
		}),
	}
}

// The methods accept a nil receiver so that metrics are optional.

func (m *Metrics) observePass(trigger string, d time.Duration) {
	if m == nil {
		return
	}
	m.passes.WithLabelValues(trigger).Inc()
	m.passDuration.Observe(d.Seconds())
}

func (m *Metrics) observeOutcome(o Outcome) {
	if m == nil {
		return
	}
	m.ruleOutcomes.WithLabelValues(string(o)).Inc()
}

func (m *Metrics) observeNotificationFailure() {
	if m == nil {
		return
	}
	m.notificationFailures.Inc()
}

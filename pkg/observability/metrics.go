package observability

import (
	"context"
	"errors"

	"github.com/aretw0/contract"
	"github.com/aretw0/contract/pkg/schema"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors fed by Hooks.
type Metrics struct {
	Checks     *prometheus.CounterVec
	Violations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
}

// NewMetrics creates unregistered collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		Checks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contract_checks_total",
				Help: "Total number of structural checks",
			},
			[]string{"function", "phase", "result"},
		),
		Violations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contract_violations_total",
				Help: "Total number of contract violations",
			},
			[]string{"function", "param", "rule"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "contract_check_duration_seconds",
				Help:    "Duration of structural checks",
				Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
			},
			[]string{"phase"},
		),
	}
}

// Collectors lists every collector, for custom registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.Checks, m.Violations, m.Duration}
}

// Register adds the collectors to reg. Collectors that are already
// registered are not an error.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return err
		}
	}
	return nil
}

// Hooks returns guard hooks that record every check.
func (m *Metrics) Hooks() contract.Hooks {
	return contract.Hooks{
		OnCheck: func(_ context.Context, e *contract.CheckEvent) {
			result := "pass"
			if e.Failed() {
				result = "fail"
			}
			m.Checks.WithLabelValues(e.Function, string(e.Phase), result).Inc()
			m.Duration.WithLabelValues(string(e.Phase)).Observe(e.Duration.Seconds())
		},
		OnViolation: func(_ context.Context, e *contract.CheckEvent) {
			m.Violations.WithLabelValues(e.Function, e.Param, rule(e.Err)).Inc()
		},
	}
}

// rule labels a failed check by the structural rule that caught it.
func rule(err error) string {
	if v, ok := schema.AsViolation(err); ok {
		return string(v.Rule)
	}
	return "error"
}

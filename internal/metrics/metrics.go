package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Set bundles the engine's Prometheus instruments on a private registry
type Set struct {
	registry *prometheus.Registry

	CommandsTotal     *prometheus.CounterVec
	HealthChecksTotal *prometheus.CounterVec
	RoutesApplied     prometheus.Counter
	RollbacksTotal    *prometheus.CounterVec
	ScaleTriggers     prometheus.Counter
	AlertsTotal       *prometheus.CounterVec
	ActiveTargets     prometheus.Gauge
}

// NewSet creates and registers the engine metric set
func NewSet() *Set {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Set{
		registry: reg,
		CommandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trafficctl_commands_total",
			Help: "Commands submitted, by outcome.",
		}, []string{"outcome"}),
		HealthChecksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trafficctl_health_checks_total",
			Help: "Health check samples, by result.",
		}, []string{"result"}),
		RoutesApplied: factory.NewCounter(prometheus.CounterOpts{
			Name: "trafficctl_routes_applied_total",
			Help: "Routing rules committed to the provider.",
		}),
		RollbacksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trafficctl_rollbacks_total",
			Help: "Routing rollbacks, by cause.",
		}, []string{"cause"}),
		ScaleTriggers: factory.NewCounter(prometheus.CounterOpts{
			Name: "trafficctl_scale_triggers_total",
			Help: "Scaling actions forwarded to the provider.",
		}),
		AlertsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trafficctl_alerts_total",
			Help: "Alerts raised, by severity.",
		}, []string{"severity"}),
		ActiveTargets: factory.NewGauge(prometheus.GaugeOpts{
			Name: "trafficctl_active_targets",
			Help: "Targets currently under monitoring.",
		}),
	}
}

// Handler exposes the registry in Prometheus text format
func (s *Set) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// Snapshot flattens the registry into name{labels} -> value pairs
// for the JSON status and metrics endpoints.
func (s *Set) Snapshot() map[string]float64 {
	out := make(map[string]float64)

	families, err := s.registry.Gather()
	if err != nil {
		return out
	}

	for _, family := range families {
		for _, m := range family.GetMetric() {
			key := family.GetName()
			if labels := m.GetLabel(); len(labels) > 0 {
				parts := make([]string, 0, len(labels))
				for _, l := range labels {
					parts = append(parts, fmt.Sprintf("%s=%s", l.GetName(), l.GetValue()))
				}
				sort.Strings(parts)
				key = fmt.Sprintf("%s{%s}", key, strings.Join(parts, ","))
			}

			switch {
			case m.GetCounter() != nil:
				out[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out[key] = m.GetGauge().GetValue()
			}
		}
	}

	return out
}

// Package mock provides an in-memory CloudControl used when no real
// provider is configured, and by tests that need scripted outcomes.
package mock

import (
	"context"
	"fmt"
	"log"
	"sync"

	"trafficctl/internal/core"
)

// ScalingAction records one forwarded scale trigger.
type ScalingAction struct {
	Metric     string
	Comparator string
	Threshold  float64
}

// Cloud simulates a provider. Health, metrics, and failures are
// scriptable per target; applied weights and actions are recorded.
type Cloud struct {
	mu sync.Mutex

	unhealthy map[string]bool
	probeErr  map[string]error
	latency   map[string]float64

	weights map[string]float64
	actions []ScalingAction
	metrics map[string]float64

	routeFailures int
	routeCalls    int
}

func New() *Cloud {
	return &Cloud{
		unhealthy: make(map[string]bool),
		probeErr:  make(map[string]error),
		latency:   make(map[string]float64),
		weights:   make(map[string]float64),
		metrics:   make(map[string]float64),
	}
}

// SetHealthy scripts whether probes of target succeed. Targets default
// to healthy.
func (c *Cloud) SetHealthy(target string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unhealthy[target] = !ok
}

// SetProbeError makes probes of target fail at the transport level.
func (c *Cloud) SetProbeError(target string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.probeErr, target)
		return
	}
	c.probeErr[target] = err
}

// SetLatency scripts the reported probe latency for target.
func (c *Cloud) SetLatency(target string, ms float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latency[target] = ms
}

// SetMetric scripts the value ReadMetric returns for name/target.
func (c *Cloud) SetMetric(name, target string, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics[metricKey(name, target)] = value
}

// FailRoutingCalls makes the next n SetRoutingWeights calls fail.
func (c *Cloud) FailRoutingCalls(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routeFailures = n
}

func (c *Cloud) GetTargetHealth(ctx context.Context, target string) (core.HealthProbe, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err, ok := c.probeErr[target]; ok {
		return core.HealthProbe{}, err
	}

	latency := c.latency[target]
	if latency == 0 {
		latency = 12
	}
	if c.unhealthy[target] {
		return core.HealthProbe{OK: false, LatencyMs: latency, Detail: "simulated failure"}, nil
	}
	return core.HealthProbe{OK: true, LatencyMs: latency}, nil
}

func (c *Cloud) SetRoutingWeights(ctx context.Context, source, destination string, fraction float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.routeCalls++
	if c.routeFailures > 0 {
		c.routeFailures--
		return fmt.Errorf("simulated routing failure")
	}

	c.weights[routeKey(source, destination)] = fraction
	log.Printf("[CLOUD] (mock) weights %s -> %s set to %.2f", source, destination, fraction)
	return nil
}

func (c *Cloud) TriggerScalingAction(ctx context.Context, metric, comparator string, threshold float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.actions = append(c.actions, ScalingAction{Metric: metric, Comparator: comparator, Threshold: threshold})
	log.Printf("[CLOUD] (mock) scaling action: %s %s %.1f", metric, comparator, threshold)
	return nil
}

func (c *Cloud) ReadMetric(ctx context.Context, name, target string) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.metrics[metricKey(name, target)]; ok {
		return v, nil
	}
	if v, ok := c.metrics[metricKey(name, "")]; ok {
		return v, nil
	}

	// Plausible idle defaults so a freshly started system has data.
	switch name {
	case "cpu":
		return 35, nil
	case "memory":
		return 52, nil
	case "disk":
		return 40, nil
	case "network":
		return 18, nil
	default:
		return 0, fmt.Errorf("unknown metric %q", name)
	}
}

// Weight reports the last committed destination fraction for a pair.
func (c *Cloud) Weight(source, destination string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.weights[routeKey(source, destination)]
	return v, ok
}

// Actions returns a copy of every forwarded scaling action.
func (c *Cloud) Actions() []ScalingAction {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ScalingAction, len(c.actions))
	copy(out, c.actions)
	return out
}

// RouteCalls counts SetRoutingWeights invocations, failures included.
func (c *Cloud) RouteCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.routeCalls
}

func routeKey(source, destination string) string {
	return source + "->" + destination
}

func metricKey(name, target string) string {
	return name + "|" + target
}

package health

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"trafficctl/internal/core"
	"trafficctl/internal/metrics"
)

// DefaultPollTimeout bounds a single provider health probe
const DefaultPollTimeout = 5 * time.Second

// Monitor runs one poll loop per target on that target's own interval.
// A slow or failing target never blocks another target's schedule.
type Monitor struct {
	registry    *Registry
	cloud       core.CloudControl
	bus         core.EventBus
	alerts      core.AlertSink
	metrics     *metrics.Set
	pollTimeout time.Duration

	mu      sync.Mutex
	ctx     context.Context
	pollers map[string]*poller
}

type poller struct {
	cancel   context.CancelFunc
	interval time.Duration
}

// NewMonitor creates a health monitor over the given registry
func NewMonitor(registry *Registry, cloud core.CloudControl, bus core.EventBus, sink core.AlertSink, set *metrics.Set) *Monitor {
	return &Monitor{
		registry:    registry,
		cloud:       cloud,
		bus:         bus,
		alerts:      sink,
		metrics:     set,
		pollTimeout: DefaultPollTimeout,
		pollers:     make(map[string]*poller),
	}
}

// SetPollTimeout overrides the per-probe timeout
func (m *Monitor) SetPollTimeout(d time.Duration) {
	if d > 0 {
		m.pollTimeout = d
	}
}

// Start begins polling all registered targets. It must be called once
// before Register; it returns immediately.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	m.ctx = ctx
	m.mu.Unlock()

	for _, t := range m.registry.List() {
		if t.Active {
			m.startPoller(t.Name, t.CheckInterval)
		}
	}
	log.Printf("[HEALTH] Monitor started (%d targets)", len(m.pollers))
}

// Register creates or updates monitoring for a target. An interval change
// restarts the target's poll loop.
func (m *Monitor) Register(name string, interval time.Duration) core.Target {
	target := m.registry.Configure(name, interval)
	m.startPoller(target.Name, target.CheckInterval)
	m.refreshGauge()
	log.Printf("[HEALTH] Monitoring %s every %s", target.Name, target.CheckInterval)
	return target
}

// Deactivate stops polling a target; its history is retained
func (m *Monitor) Deactivate(name string) bool {
	key := Normalize(name)

	m.mu.Lock()
	if p, ok := m.pollers[key]; ok {
		p.cancel()
		delete(m.pollers, key)
	}
	m.mu.Unlock()

	ok := m.registry.Deactivate(key)
	m.refreshGauge()
	return ok
}

func (m *Monitor) startPoller(name string, interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx == nil {
		return // Start not called yet; Start will pick the target up
	}

	if p, ok := m.pollers[name]; ok {
		if p.interval == interval {
			return
		}
		p.cancel()
	}

	ctx, cancel := context.WithCancel(m.ctx)
	m.pollers[name] = &poller{cancel: cancel, interval: interval}
	go m.loop(ctx, name, interval)
}

func (m *Monitor) loop(ctx context.Context, name string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// First sample immediately so a new target does not sit at unknown
	// for a full interval.
	m.pollOnce(ctx, name)

	for {
		select {
		case <-ticker.C:
			m.pollOnce(ctx, name)
		case <-ctx.Done():
			return
		}
	}
}

// pollOnce takes a single sample. Failures here are isolated to this
// target: the probe is bounded by pollTimeout and errors only feed the
// target's own state machine.
func (m *Monitor) pollOnce(ctx context.Context, name string) {
	target, ok := m.registry.Get(name)
	if !ok || !target.Active {
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.pollTimeout)
	defer cancel()

	started := time.Now()
	probe, err := m.cloud.GetTargetHealth(probeCtx, target.URL)
	elapsed := float64(time.Since(started).Milliseconds())

	var sample Sample
	switch {
	case err != nil:
		// Transport/provider failure, not a reported-unhealthy result.
		sample = Sample{OK: false, LatencyMs: elapsed, Detail: err.Error(), PollError: true}
		m.metrics.HealthChecksTotal.WithLabelValues("error").Inc()
		log.Printf("[HEALTH] [%s] Poll error: %v", name, err)
	case !probe.OK:
		detail := probe.Detail
		if detail == "" {
			detail = "reported unhealthy"
		}
		sample = Sample{OK: false, LatencyMs: probe.LatencyMs, Detail: detail}
		m.metrics.HealthChecksTotal.WithLabelValues("failure").Inc()
		log.Printf("[HEALTH] [%s] Check failed: %s", name, detail)
	default:
		sample = Sample{OK: true, LatencyMs: probe.LatencyMs}
		m.metrics.HealthChecksTotal.WithLabelValues("success").Inc()
	}

	prev, cur, updated, changed := m.registry.Record(name, sample)
	if !changed {
		return
	}

	log.Printf("[HEALTH] [%s] State %s -> %s (failures=%d successes=%d)",
		name, prev, cur, updated.ConsecutiveFailures, updated.ConsecutiveSuccesses)

	m.bus.Publish(&core.HealthChanged{
		BaseEvent: core.BaseEvent{Timestamp: time.Now(), Target: name},
		Previous:  prev,
		Current:   cur,
		LatencyMs: sample.LatencyMs,
		Reason:    sample.Detail,
	})

	m.raiseTransitionAlert(prev, cur, updated)
}

func (m *Monitor) raiseTransitionAlert(prev, cur core.HealthState, t core.Target) {
	switch {
	case cur == core.HealthUnhealthy:
		m.raise(core.SeverityCritical, t.Name,
			fmt.Sprintf("target %s is unhealthy after %d consecutive failures: %s", t.Name, t.ConsecutiveFailures, t.LastError))
	case cur == core.HealthDegraded:
		m.raise(core.SeverityWarning, t.Name,
			fmt.Sprintf("target %s degraded: %s", t.Name, t.LastError))
	case cur == core.HealthHealthy && (prev == core.HealthDegraded || prev == core.HealthUnhealthy):
		m.raise(core.SeverityInfo, t.Name,
			fmt.Sprintf("target %s recovered to healthy", t.Name))
	}
}

func (m *Monitor) raise(severity core.Severity, target, message string) {
	m.alerts.Raise(severity, target, message)
	m.metrics.AlertsTotal.WithLabelValues(string(severity)).Inc()
}

func (m *Monitor) refreshGauge() {
	active := 0
	for _, t := range m.registry.List() {
		if t.Active {
			active++
		}
	}
	m.metrics.ActiveTargets.Set(float64(active))
}

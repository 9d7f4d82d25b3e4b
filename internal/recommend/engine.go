package recommend

import (
	"fmt"
	"sort"
	"time"

	"trafficctl/internal/core"
)

// DefaultDegradedWindow is how long a target may stay below healthy
// before a scale-up is suggested
const DefaultDegradedWindow = 5 * time.Minute

// alertWindow bounds how far back recent alerts count toward the
// check-system-health recommendation
const alertWindow = time.Hour

// Snapshot is a consistent view of engine state taken at query time.
// The recommender only reads it; same snapshot, same recommendations.
type Snapshot struct {
	Targets    []core.Target
	Rules      []core.RoutingRule
	Alerts     []core.Alert
	ScaleRules []core.ScaleRule
	Now        time.Time
}

// Rule derives zero or more recommendations from a snapshot
type Rule func(s Snapshot) []core.Recommendation

// Engine evaluates a fixed rule set over state snapshots
type Engine struct {
	rules          []Rule
	degradedWindow time.Duration
}

// NewEngine creates a recommendation engine with the standard rule set
func NewEngine() *Engine {
	e := &Engine{degradedWindow: DefaultDegradedWindow}
	e.rules = []Rule{
		e.rollbackUnhealthyDestination,
		e.scaleUpLongDegraded,
		e.checkRecentAlerts,
		e.investigateSlowDestination,
		e.addRedundancy,
		e.configureRouting,
		e.configureAutoscaling,
	}
	return e
}

// SetDegradedWindow overrides the degraded-duration threshold
func (e *Engine) SetDegradedWindow(d time.Duration) {
	if d > 0 {
		e.degradedWindow = d
	}
}

// Evaluate returns recommendations ranked by confidence, descending.
// Ties break on kind then target so output is deterministic.
func (e *Engine) Evaluate(s Snapshot) []core.Recommendation {
	var out []core.Recommendation
	for _, rule := range e.rules {
		out = append(out, rule(s)...)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Target < out[j].Target
	})
	return out
}

func (e *Engine) rollbackUnhealthyDestination(s Snapshot) []core.Recommendation {
	states := targetStates(s)

	var out []core.Recommendation
	for _, rule := range s.Rules {
		if rule.Status != core.RuleActive {
			continue
		}
		if states[rule.Destination] == core.HealthUnhealthy {
			out = append(out, core.Recommendation{
				Kind:   "rollback",
				Target: rule.Destination,
				Rationale: fmt.Sprintf("unhealthy target %s still receives %.0f%% of traffic from %s; roll the route back",
					rule.Destination, rule.Weight*100, rule.Source),
				Confidence: 0.95,
			})
		}
	}
	return out
}

func (e *Engine) scaleUpLongDegraded(s Snapshot) []core.Recommendation {
	var out []core.Recommendation
	for _, t := range s.Targets {
		if !t.Active {
			continue
		}
		if t.State != core.HealthDegraded && t.State != core.HealthUnhealthy {
			continue
		}
		if t.StateSince.IsZero() || s.Now.Sub(t.StateSince) < e.degradedWindow {
			continue
		}
		out = append(out, core.Recommendation{
			Kind:   "scale-up",
			Target: t.Name,
			Rationale: fmt.Sprintf("target %s has been %s for over %s; consider scaling up capacity",
				t.Name, t.State, e.degradedWindow),
			Confidence: 0.8,
		})
	}
	return out
}

func (e *Engine) checkRecentAlerts(s Snapshot) []core.Recommendation {
	recent := 0
	for _, a := range s.Alerts {
		if s.Now.Sub(a.Timestamp) < alertWindow {
			recent++
		}
	}
	if recent == 0 {
		return nil
	}
	return []core.Recommendation{{
		Kind:       "check-system-health",
		Rationale:  fmt.Sprintf("%d alerts raised in the last hour; check system health", recent),
		Confidence: 0.7,
	}}
}

func (e *Engine) investigateSlowDestination(s Snapshot) []core.Recommendation {
	var out []core.Recommendation
	for _, t := range s.Targets {
		if t.Active && t.State == core.HealthHealthy && t.LastLatencyMs > 2000 {
			out = append(out, core.Recommendation{
				Kind:       "investigate-latency",
				Target:     t.Name,
				Rationale:  fmt.Sprintf("target %s is healthy but slow (%.0fms last check)", t.Name, t.LastLatencyMs),
				Confidence: 0.6,
			})
		}
	}
	return out
}

func (e *Engine) addRedundancy(s Snapshot) []core.Recommendation {
	active := 0
	for _, t := range s.Targets {
		if t.Active {
			active++
		}
	}
	if active >= 2 {
		return nil
	}
	return []core.Recommendation{{
		Kind:       "add-redundancy",
		Rationale:  "fewer than two targets are monitored; add endpoints for redundancy and failover headroom",
		Confidence: 0.5,
	}}
}

func (e *Engine) configureRouting(s Snapshot) []core.Recommendation {
	healthy := 0
	for _, t := range s.Targets {
		if t.Active && t.State == core.HealthHealthy {
			healthy++
		}
	}
	for _, rule := range s.Rules {
		if rule.Status == core.RuleActive {
			return nil
		}
	}
	if healthy < 2 {
		return nil
	}
	return []core.Recommendation{{
		Kind:       "configure-routing",
		Rationale:  "multiple healthy targets but no active routing rules; configure traffic splits for load distribution",
		Confidence: 0.4,
	}}
}

func (e *Engine) configureAutoscaling(s Snapshot) []core.Recommendation {
	if len(s.ScaleRules) > 0 {
		return nil
	}
	return []core.Recommendation{{
		Kind:       "configure-autoscaling",
		Rationale:  "no standing scale rules; configure autoscaling to absorb traffic spikes",
		Confidence: 0.3,
	}}
}

func targetStates(s Snapshot) map[string]core.HealthState {
	states := make(map[string]core.HealthState, len(s.Targets))
	for _, t := range s.Targets {
		states[t.Name] = t.State
	}
	return states
}

package routing

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"trafficctl/internal/core"
	"trafficctl/internal/health"
	"trafficctl/internal/metrics"
)

const (
	// DefaultCallTimeout bounds a single provider weight update
	DefaultCallTimeout = 5 * time.Second
	// retryBackoff is the pause before the single automatic retry
	retryBackoff = 250 * time.Millisecond
)

// Engine owns the routing rule table. For any unordered target pair at
// most one rule is active; mutations for a pair are serialized while
// distinct pairs proceed in parallel.
type Engine struct {
	cloud    core.CloudControl
	registry *health.Registry
	bus      core.EventBus
	alerts   core.AlertSink
	metrics  *metrics.Set
	timeout  time.Duration
	backoff  time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	rules map[string][]core.RoutingRule
}

// NewEngine creates a routing engine
func NewEngine(cloud core.CloudControl, registry *health.Registry, bus core.EventBus, sink core.AlertSink, set *metrics.Set) *Engine {
	return &Engine{
		cloud:    cloud,
		registry: registry,
		bus:      bus,
		alerts:   sink,
		metrics:  set,
		timeout:  DefaultCallTimeout,
		backoff:  retryBackoff,
		locks:    make(map[string]*sync.Mutex),
		rules:    make(map[string][]core.RoutingRule),
	}
}

// pairKey canonicalizes an unordered target pair
func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// Apply validates and commits a weighted traffic split. The provider
// write happens first; nothing is recorded if it fails, so a rule is
// never half-applied. An existing active rule for the pair is superseded
// (marked completed), never treated as an error.
func (e *Engine) Apply(ctx context.Context, source, destination string, fraction float64) (core.RoutingRule, error) {
	if fraction < 0 || fraction > 1 {
		return core.RoutingRule{}, core.ValidationError("fraction %.2f out of range [0,1]", fraction)
	}

	src := health.Normalize(source)
	dst := health.Normalize(destination)
	if src == "" || dst == "" {
		return core.RoutingRule{}, core.ValidationError("source and destination are required")
	}
	if src == dst {
		return core.RoutingRule{}, core.ValidationError("source and destination must be distinct targets")
	}

	// Targets are created on first reference.
	e.registry.Ensure(src)
	e.registry.Ensure(dst)

	lock := e.pairLock(src, dst)
	lock.Lock()
	defer lock.Unlock()

	if err := e.setWeights(ctx, src, dst, fraction); err != nil {
		return core.RoutingRule{}, err
	}

	now := time.Now()
	rule := core.RoutingRule{
		ID:          uuid.NewString(),
		Source:      src,
		Destination: dst,
		Weight:      fraction,
		Status:      core.RuleActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	e.mu.Lock()
	key := pairKey(src, dst)
	history := e.rules[key]
	for i := range history {
		if history[i].Status == core.RuleActive {
			history[i].Status = core.RuleCompleted
			history[i].UpdatedAt = now
		}
	}
	e.rules[key] = append(history, rule)
	e.mu.Unlock()

	e.metrics.RoutesApplied.Inc()
	e.bus.Publish(&core.RouteApplied{
		BaseEvent:   core.BaseEvent{Timestamp: now, Target: dst},
		RuleID:      rule.ID,
		Source:      src,
		Destination: dst,
		Weight:      fraction,
	})

	log.Printf("[ROUTE] Applied %s -> %s at %.0f%%", src, dst, fraction*100)
	return rule, nil
}

// Rollback reverts the active rule for a pair, restoring all traffic to
// the source. Requesting a rollback where no rule is active is a state
// conflict and mutates nothing.
func (e *Engine) Rollback(ctx context.Context, source, destination, reason string) error {
	src := health.Normalize(source)
	dst := health.Normalize(destination)

	lock := e.pairLock(src, dst)
	lock.Lock()
	defer lock.Unlock()

	if err := e.rollbackLocked(ctx, pairKey(src, dst), reason, "manual"); err != nil {
		return err
	}
	return nil
}

// rollbackLocked reverts the pair's active rule. Caller holds the pair lock.
func (e *Engine) rollbackLocked(ctx context.Context, key, reason, cause string) error {
	e.mu.Lock()
	history := e.rules[key]
	idx := -1
	for i := range history {
		if history[i].Status == core.RuleActive {
			idx = i
			break
		}
	}
	e.mu.Unlock()

	if idx < 0 {
		return core.ConflictError("no active routing rule for pair %s", strings.ReplaceAll(key, "|", "/"))
	}

	rule := history[idx]
	if err := e.setWeights(ctx, rule.Source, rule.Destination, 0); err != nil {
		return err
	}

	now := time.Now()
	e.mu.Lock()
	e.rules[key][idx].Status = core.RuleRolledBack
	e.rules[key][idx].Weight = 0
	e.rules[key][idx].Reason = reason
	e.rules[key][idx].UpdatedAt = now
	e.mu.Unlock()

	e.metrics.RollbacksTotal.WithLabelValues(cause).Inc()
	e.bus.Publish(&core.RouteRolledBack{
		BaseEvent:   core.BaseEvent{Timestamp: now, Target: rule.Destination},
		RuleID:      rule.ID,
		Source:      rule.Source,
		Destination: rule.Destination,
		Reason:      reason,
	})

	log.Printf("[ROUTE] Rolled back %s -> %s (%s)", rule.Source, rule.Destination, reason)
	return nil
}

// Watch subscribes to health events and reverts any active rule whose
// destination goes unhealthy. Failover is a derived effect of routing
// state plus health state, not a separate engine.
func (e *Engine) Watch(ctx context.Context) {
	sub := e.bus.Subscribe()
	go func() {
		defer e.bus.Unsubscribe(sub)
		for {
			select {
			case ev, ok := <-sub:
				if !ok {
					return
				}
				hc, isHealth := ev.(*core.HealthChanged)
				if !isHealth || hc.Current != core.HealthUnhealthy {
					continue
				}
				e.failover(ctx, hc.Target, hc.Reason)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// failover rolls back every active rule routing traffic to the target
func (e *Engine) failover(ctx context.Context, target, reason string) {
	for _, rule := range e.activeRulesTo(target) {
		lock := e.pairLock(rule.Source, rule.Destination)
		lock.Lock()
		err := e.rollbackLocked(ctx, pairKey(rule.Source, rule.Destination),
			fmt.Sprintf("destination %s unhealthy: %s", target, reason), "auto")
		lock.Unlock()

		if err != nil {
			// The rule stays active; a later transition or a manual
			// rollback can retry.
			if core.KindOf(err) != core.KindStateConflict {
				e.raise(core.SeverityCritical, target,
					fmt.Sprintf("automatic rollback of %s -> %s failed: %v", rule.Source, rule.Destination, err))
			}
			continue
		}

		e.raise(core.SeverityCritical, target,
			fmt.Sprintf("automatic failover: traffic to %s reverted to %s because destination is unhealthy", target, rule.Source))
	}
}

func (e *Engine) raise(severity core.Severity, target, message string) {
	e.alerts.Raise(severity, target, message)
	e.metrics.AlertsTotal.WithLabelValues(string(severity)).Inc()
}

// activeRulesTo returns copies of active rules whose destination matches
func (e *Engine) activeRulesTo(target string) []core.RoutingRule {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []core.RoutingRule
	for _, history := range e.rules {
		for _, rule := range history {
			if rule.Status == core.RuleActive && rule.Destination == target {
				out = append(out, rule)
			}
		}
	}
	return out
}

// Rules returns all routing rules, newest first
func (e *Engine) Rules() []core.RoutingRule {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []core.RoutingRule
	for _, history := range e.rules {
		out = append(out, history...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// ActiveRules returns only the currently active rules
func (e *Engine) ActiveRules() []core.RoutingRule {
	var out []core.RoutingRule
	for _, rule := range e.Rules() {
		if rule.Status == core.RuleActive {
			out = append(out, rule)
		}
	}
	return out
}

// setWeights writes the final destination fraction with one bounded retry
func (e *Engine) setWeights(ctx context.Context, src, dst string, fraction float64) error {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	err := e.cloud.SetRoutingWeights(callCtx, src, dst, fraction)
	cancel()
	if err == nil {
		return nil
	}

	log.Printf("[ROUTE] Provider rejected weights for %s -> %s, retrying once: %v", src, dst, err)
	time.Sleep(e.backoff)

	callCtx, cancel = context.WithTimeout(ctx, e.timeout)
	err = e.cloud.SetRoutingWeights(callCtx, src, dst, fraction)
	cancel()
	if err != nil {
		return core.ProviderError(fmt.Sprintf("failed to apply routing weights for %s -> %s", src, dst), err)
	}
	return nil
}

func (e *Engine) pairLock(a, b string) *sync.Mutex {
	key := pairKey(a, b)

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.locks[key]; !ok {
		e.locks[key] = &sync.Mutex{}
	}
	return e.locks[key]
}

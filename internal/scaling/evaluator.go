package scaling

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"trafficctl/internal/core"
	"trafficctl/internal/metrics"
)

const (
	// DefaultEvaluateEvery is how often standing rules are checked
	DefaultEvaluateEvery = 15 * time.Second
	// DefaultCooldown suppresses repeat triggers for the same rule
	DefaultCooldown = 5 * time.Minute
	// readTimeout bounds one provider metric read
	readTimeout = 5 * time.Second
)

// Evaluator holds standing scale-trigger rules and periodically checks
// them against provider metrics. A scale command registers a rule here;
// the provider action fires when the rule's comparator holds, at most
// once per cooldown window.
type Evaluator struct {
	cloud    core.CloudControl
	bus      core.EventBus
	alerts   core.AlertSink
	metrics  *metrics.Set
	every    time.Duration
	cooldown time.Duration
	clock    func() time.Time

	mu    sync.Mutex
	rules map[string]*core.ScaleRule
}

// NewEvaluator creates a scale-rule evaluator
func NewEvaluator(cloud core.CloudControl, bus core.EventBus, sink core.AlertSink, set *metrics.Set) *Evaluator {
	return &Evaluator{
		cloud:    cloud,
		bus:      bus,
		alerts:   sink,
		metrics:  set,
		every:    DefaultEvaluateEvery,
		cooldown: DefaultCooldown,
		clock:    time.Now,
		rules:    make(map[string]*core.ScaleRule),
	}
}

// SetPeriod overrides the evaluation period
func (e *Evaluator) SetPeriod(d time.Duration) {
	if d > 0 {
		e.every = d
	}
}

// SetCooldown overrides the per-rule cooldown
func (e *Evaluator) SetCooldown(d time.Duration) {
	if d >= 0 {
		e.cooldown = d
	}
}

// Register installs a standing rule. Re-registering the same metric and
// comparator replaces the threshold rather than duplicating the rule.
func (e *Evaluator) Register(metric, comparator string, threshold float64) (core.ScaleRule, error) {
	if comparator != core.CompareAbove && comparator != core.CompareBelow {
		return core.ScaleRule{}, core.ValidationError("unknown comparator %q", comparator)
	}
	if threshold < 0 {
		return core.ScaleRule{}, core.ValidationError("threshold must be non-negative")
	}

	key := metric + "|" + comparator

	e.mu.Lock()
	defer e.mu.Unlock()
	if existing, ok := e.rules[key]; ok {
		existing.Threshold = threshold
		log.Printf("[SCALE] Updated rule: %s %s %.1f", metric, comparator, threshold)
		return *existing, nil
	}

	rule := &core.ScaleRule{
		Metric:     metric,
		Comparator: comparator,
		Threshold:  threshold,
		CreatedAt:  e.clock(),
	}
	e.rules[key] = rule
	log.Printf("[SCALE] Registered rule: %s %s %.1f", metric, comparator, threshold)
	return *rule, nil
}

// Rules returns copies of all standing rules
func (e *Evaluator) Rules() []core.ScaleRule {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]core.ScaleRule, 0, len(e.rules))
	for _, r := range e.rules {
		out = append(out, *r)
	}
	return out
}

// Start runs the evaluation loop until ctx is cancelled
func (e *Evaluator) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(e.every)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				e.EvaluateOnce(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// EvaluateOnce checks every standing rule against the provider once.
// A provider read failure skips that rule for this round only.
func (e *Evaluator) EvaluateOnce(ctx context.Context) {
	for _, rule := range e.Rules() {
		readCtx, cancel := context.WithTimeout(ctx, readTimeout)
		value, err := e.cloud.ReadMetric(readCtx, rule.Metric, "")
		cancel()
		if err != nil {
			log.Printf("[SCALE] Could not read metric %s: %v", rule.Metric, err)
			continue
		}

		breached := (rule.Comparator == core.CompareAbove && value > rule.Threshold) ||
			(rule.Comparator == core.CompareBelow && value < rule.Threshold)
		if !breached {
			continue
		}

		e.fire(ctx, rule, value)
	}
}

func (e *Evaluator) fire(ctx context.Context, rule core.ScaleRule, value float64) {
	key := rule.Metric + "|" + rule.Comparator

	e.mu.Lock()
	stored, ok := e.rules[key]
	if !ok {
		e.mu.Unlock()
		return
	}
	if !stored.LastFired.IsZero() && e.clock().Sub(stored.LastFired) < e.cooldown {
		e.mu.Unlock()
		return
	}
	stored.LastFired = e.clock()
	stored.FireCount++
	e.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, readTimeout)
	err := e.cloud.TriggerScalingAction(callCtx, rule.Metric, rule.Comparator, rule.Threshold)
	cancel()
	if err != nil {
		log.Printf("[SCALE] Provider scaling action failed for %s %s %.1f: %v", rule.Metric, rule.Comparator, rule.Threshold, err)
		e.raise(core.SeverityWarning,
			fmt.Sprintf("scaling action failed: %s %s %.1f: %v", rule.Metric, rule.Comparator, rule.Threshold, err))
		return
	}

	e.metrics.ScaleTriggers.Inc()
	e.bus.Publish(&core.ScaleTriggered{
		BaseEvent: core.BaseEvent{Timestamp: e.clock()},
		Metric:    rule.Metric,
		Value:     value,
		Threshold: rule.Threshold,
	})
	e.raise(core.SeverityWarning,
		fmt.Sprintf("scale trigger fired: %s is %.1f (%s %.1f)", rule.Metric, value, rule.Comparator, rule.Threshold))

	log.Printf("[SCALE] Triggered: %s=%.1f %s %.1f", rule.Metric, value, rule.Comparator, rule.Threshold)
}

func (e *Evaluator) raise(severity core.Severity, message string) {
	e.alerts.Raise(severity, "", message)
	e.metrics.AlertsTotal.WithLabelValues(string(severity)).Inc()
}

package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"trafficctl/internal/alerts"
	"trafficctl/internal/command"
	"trafficctl/internal/core"
	"trafficctl/internal/health"
	"trafficctl/internal/metrics"
	"trafficctl/internal/recommend"
	"trafficctl/internal/routing"
	"trafficctl/internal/scaling"
)

// Outcomes reported back for a submitted command.
const (
	OutcomeApplied       = "applied"        // routing rule committed
	OutcomeRegistered    = "registered"     // health check registered
	OutcomeAccepted      = "accepted"       // scale rule stored
	OutcomeOK            = "ok"             // read-only command served
	OutcomeNotUnderstood = "not_understood" // no grammar rule matched
	OutcomeFailed        = "failed"         // understood but could not be executed
)

// ActionResult is the user-visible verdict for one submitted command.
type ActionResult struct {
	Action     command.Action `json:"action,omitempty"`
	ActionKind string         `json:"action_kind"`
	Outcome    string         `json:"outcome"`
	Message    string         `json:"message"`
	ErrorKind  core.ErrorKind `json:"error_kind,omitempty"`
}

// StatusReport is the system-wide snapshot returned for status queries.
type StatusReport struct {
	Targets      []core.Target      `json:"targets"`
	Rules        []core.RoutingRule `json:"rules"`
	ScaleRules   []core.ScaleRule   `json:"scale_rules"`
	AlertsTotal  int                `json:"alerts_total"`
	AlertsRecent int                `json:"alerts_recent"`
	GeneratedAt  time.Time          `json:"generated_at"`
}

// Engine ties the interpreter to the subsystems that execute actions.
// It is the single entry point the API layer talks to.
type Engine struct {
	registry  *health.Registry
	monitor   *health.Monitor
	router    *routing.Engine
	evaluator *scaling.Evaluator
	advisor   *recommend.Engine
	alerts    *alerts.Store
	metrics   *metrics.Set
	startedAt time.Time
	clock     func() time.Time
}

func New(
	registry *health.Registry,
	monitor *health.Monitor,
	router *routing.Engine,
	evaluator *scaling.Evaluator,
	advisor *recommend.Engine,
	store *alerts.Store,
	set *metrics.Set,
) *Engine {
	return &Engine{
		registry:  registry,
		monitor:   monitor,
		router:    router,
		evaluator: evaluator,
		advisor:   advisor,
		alerts:    store,
		metrics:   set,
		startedAt: time.Now(),
		clock:     time.Now,
	}
}

// Start launches the background loops (pollers, auto-rollback watcher,
// scale evaluator). They stop when ctx is cancelled.
func (e *Engine) Start(ctx context.Context) {
	e.monitor.Start(ctx)
	e.router.Watch(ctx)
	e.evaluator.Start(ctx)
	log.Printf("[ENGINE] Started")
}

// Submit interprets one natural-language command and executes it.
// It never returns an error: failures are encoded in the result.
func (e *Engine) Submit(ctx context.Context, text string) ActionResult {
	action := command.Parse(text)
	result := e.dispatch(ctx, action)
	result.Action = action
	result.ActionKind = action.Kind()

	e.metrics.CommandsTotal.WithLabelValues(result.Outcome).Inc()
	log.Printf("[ENGINE] %q -> %s (%s)", text, action.Kind(), result.Outcome)
	return result
}

func (e *Engine) dispatch(ctx context.Context, action command.Action) ActionResult {
	switch a := action.(type) {
	case command.RouteTraffic:
		return e.applyRoute(ctx, a)
	case command.HealthCheck:
		return e.registerCheck(a)
	case command.ScaleTrigger:
		return e.registerScaleRule(a)
	case command.StatusQuery:
		return e.describeStatus(a)
	case command.Help:
		return ActionResult{Outcome: OutcomeOK, Message: command.HelpText()}
	case command.Unrecognized:
		return ActionResult{
			Outcome:   OutcomeNotUnderstood,
			Message:   a.Reason,
			ErrorKind: core.KindNotUnderstood,
		}
	default:
		return ActionResult{
			Outcome:   OutcomeNotUnderstood,
			Message:   fmt.Sprintf("no handler for action %q", action.Kind()),
			ErrorKind: core.KindNotUnderstood,
		}
	}
}

func (e *Engine) applyRoute(ctx context.Context, a command.RouteTraffic) ActionResult {
	rule, err := e.router.Apply(ctx, a.Source, a.Destination, a.Fraction)
	if err != nil {
		return failure(err)
	}
	return ActionResult{
		Outcome: OutcomeApplied,
		Message: fmt.Sprintf("routing %.0f%% of traffic from %s to %s (rule %s)",
			rule.Weight*100, rule.Source, rule.Destination, rule.ID),
	}
}

func (e *Engine) registerCheck(a command.HealthCheck) ActionResult {
	target := e.monitor.Register(a.Target, a.Interval)
	return ActionResult{
		Outcome: OutcomeRegistered,
		Message: fmt.Sprintf("monitoring %s every %s", target.Name, target.CheckInterval),
	}
}

func (e *Engine) registerScaleRule(a command.ScaleTrigger) ActionResult {
	rule, err := e.evaluator.Register(a.Metric, a.Comparator, a.Threshold)
	if err != nil {
		return failure(err)
	}
	return ActionResult{
		Outcome: OutcomeAccepted,
		Message: fmt.Sprintf("will scale when %s is %s %.1f", rule.Metric, rule.Comparator, rule.Threshold),
	}
}

func (e *Engine) describeStatus(a command.StatusQuery) ActionResult {
	if a.Target == "" {
		return ActionResult{Outcome: OutcomeOK, Message: e.summarize()}
	}

	matches := e.registry.Match(a.Target)
	if len(matches) == 0 {
		return ActionResult{
			Outcome:   OutcomeFailed,
			Message:   fmt.Sprintf("no monitored target matches %q", a.Target),
			ErrorKind: core.KindValidation,
		}
	}

	lines := make([]string, 0, len(matches))
	for _, t := range matches {
		lines = append(lines, describeTarget(t))
	}
	return ActionResult{Outcome: OutcomeOK, Message: strings.Join(lines, "; ")}
}

func (e *Engine) summarize() string {
	targets := e.registry.List()

	healthy := 0
	active := 0
	for _, t := range targets {
		if !t.Active {
			continue
		}
		active++
		if t.State == core.HealthHealthy {
			healthy++
		}
	}

	return fmt.Sprintf("%d targets monitored (%d healthy), %d active routing rules, %d scale rules, %d alerts",
		active, healthy, len(e.router.ActiveRules()), len(e.evaluator.Rules()), len(e.alerts.List()))
}

func describeTarget(t core.Target) string {
	s := fmt.Sprintf("%s is %s", t.Name, t.State)
	if !t.LastChecked.IsZero() {
		s += fmt.Sprintf(" (last check %.0fms", t.LastLatencyMs)
		if up := t.UptimePercent(); up >= 0 {
			s += fmt.Sprintf(", uptime %.1f%%", up)
		}
		s += ")"
	}
	if !t.Active {
		s += " [inactive]"
	}
	return s
}

// Status returns the full snapshot served by GET /status.
func (e *Engine) Status() StatusReport {
	return StatusReport{
		Targets:      e.registry.List(),
		Rules:        e.router.Rules(),
		ScaleRules:   e.evaluator.Rules(),
		AlertsTotal:  len(e.alerts.List()),
		AlertsRecent: e.alerts.RecentCount(time.Hour),
		GeneratedAt:  e.clock(),
	}
}

// TargetStatus looks up one target by normalized name.
func (e *Engine) TargetStatus(name string) (core.Target, bool) {
	return e.registry.Get(name)
}

// Targets lists every known target, active or not.
func (e *Engine) Targets() []core.Target {
	return e.registry.List()
}

// Recommendations evaluates the advisory rules against the current state.
func (e *Engine) Recommendations() []core.Recommendation {
	return e.advisor.Evaluate(recommend.Snapshot{
		Targets:    e.registry.List(),
		Rules:      e.router.Rules(),
		Alerts:     e.alerts.List(),
		ScaleRules: e.evaluator.Rules(),
		Now:        e.clock(),
	})
}

// Alerts returns the retained alerts, newest first.
func (e *Engine) Alerts() []core.Alert {
	return e.alerts.List()
}

// Acknowledge marks an alert as handled. False if the id is unknown.
func (e *Engine) Acknowledge(id string) bool {
	return e.alerts.Acknowledge(id)
}

// MetricsSnapshot flattens the Prometheus registry into plain counters.
func (e *Engine) MetricsSnapshot() map[string]float64 {
	return e.metrics.Snapshot()
}

// Uptime reports how long the engine has been running.
func (e *Engine) Uptime() time.Duration {
	return e.clock().Sub(e.startedAt)
}

func failure(err error) ActionResult {
	return ActionResult{
		Outcome:   OutcomeFailed,
		Message:   err.Error(),
		ErrorKind: core.KindOf(err),
	}
}

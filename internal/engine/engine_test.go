package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trafficctl/internal/alerts"
	"trafficctl/internal/cloud/mock"
	"trafficctl/internal/core"
	"trafficctl/internal/events"
	"trafficctl/internal/health"
	"trafficctl/internal/metrics"
	"trafficctl/internal/recommend"
	"trafficctl/internal/routing"
	"trafficctl/internal/scaling"
)

type fixture struct {
	engine    *Engine
	cloud     *mock.Cloud
	registry  *health.Registry
	monitor   *health.Monitor
	router    *routing.Engine
	evaluator *scaling.Evaluator
	alerts    *alerts.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cloud := mock.New()
	bus := events.NewBus()
	set := metrics.NewSet()
	store := alerts.NewStore(100)
	registry := health.NewRegistry()
	monitor := health.NewMonitor(registry, cloud, bus, store, set)
	router := routing.NewEngine(cloud, registry, bus, store, set)
	evaluator := scaling.NewEvaluator(cloud, bus, store, set)

	eng := New(registry, monitor, router, evaluator, recommend.NewEngine(), store, set)

	return &fixture{
		engine:    eng,
		cloud:     cloud,
		registry:  registry,
		monitor:   monitor,
		router:    router,
		evaluator: evaluator,
		alerts:    store,
	}
}

func TestSubmitRouteCommand(t *testing.T) {
	f := newFixture(t)

	res := f.engine.Submit(context.Background(), "route 70% traffic from old.example.com to new.example.com")

	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, "route_traffic", res.ActionKind)
	assert.Contains(t, res.Message, "70%")

	weight, ok := f.cloud.Weight("old.example.com", "new.example.com")
	require.True(t, ok)
	assert.Equal(t, 0.7, weight)

	status := f.engine.Status()
	require.Len(t, status.Rules, 1)
	assert.Equal(t, core.RuleActive, status.Rules[0].Status)
}

func TestSubmitHealthCheckCommand(t *testing.T) {
	f := newFixture(t)

	res := f.engine.Submit(context.Background(), "check health of https://api.example.com every 45 seconds")

	assert.Equal(t, OutcomeRegistered, res.Outcome)

	target, ok := f.engine.TargetStatus("api.example.com")
	require.True(t, ok)
	assert.Equal(t, 45*time.Second, target.CheckInterval)
	assert.True(t, target.Active)
}

func TestSubmitScaleCommand(t *testing.T) {
	f := newFixture(t)

	res := f.engine.Submit(context.Background(), "scale up when cpu above 80%")

	assert.Equal(t, OutcomeAccepted, res.Outcome)

	rules := f.evaluator.Rules()
	require.Len(t, rules, 1)
	assert.Equal(t, "cpu", rules[0].Metric)
	assert.Equal(t, core.CompareAbove, rules[0].Comparator)
	assert.Equal(t, 80.0, rules[0].Threshold)
}

func TestSubmitStatusCommands(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.engine.Submit(ctx, "monitor web.example.com")

	res := f.engine.Submit(ctx, "show status")
	assert.Equal(t, OutcomeOK, res.Outcome)
	assert.Contains(t, res.Message, "1 targets monitored")

	res = f.engine.Submit(ctx, "status of web.example.com")
	assert.Equal(t, OutcomeOK, res.Outcome)
	assert.Contains(t, res.Message, "web.example.com")

	res = f.engine.Submit(ctx, "status of nosuchhost.example.com")
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, core.KindValidation, res.ErrorKind)
}

func TestSubmitHelp(t *testing.T) {
	f := newFixture(t)

	res := f.engine.Submit(context.Background(), "help")

	assert.Equal(t, OutcomeOK, res.Outcome)
	assert.Contains(t, res.Message, "route")
}

func TestSubmitUnrecognizedHasNoSideEffects(t *testing.T) {
	f := newFixture(t)

	res := f.engine.Submit(context.Background(), "make me a sandwich")

	assert.Equal(t, OutcomeNotUnderstood, res.Outcome)
	assert.Equal(t, core.KindNotUnderstood, res.ErrorKind)

	status := f.engine.Status()
	assert.Empty(t, status.Targets)
	assert.Empty(t, status.Rules)
	assert.Empty(t, status.ScaleRules)
}

func TestSubmitRouteValidationFailure(t *testing.T) {
	f := newFixture(t)

	// Parser catches the same-target case, so force it past the parser
	// with equivalent spellings that normalize to the same name.
	res := f.engine.Submit(context.Background(), "route 50% traffic from https://a.com to a.com")

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, core.KindValidation, res.ErrorKind)
	assert.Empty(t, f.engine.Status().Rules)
}

func TestSubmitProviderFailure(t *testing.T) {
	f := newFixture(t)
	f.cloud.FailRoutingCalls(2) // exhausts the single retry

	res := f.engine.Submit(context.Background(), "route 50% traffic from old.example.com to new.example.com")

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, core.KindProvider, res.ErrorKind)
	assert.Empty(t, f.engine.Status().Rules)
}

func TestCommandMetricCountsOutcomes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.engine.Submit(ctx, "route 70% traffic from old.example.com to new.example.com")
	f.engine.Submit(ctx, "gibberish input")
	f.engine.Submit(ctx, "help")

	snap := f.engine.MetricsSnapshot()
	assert.Equal(t, 1.0, snap["trafficctl_commands_total{outcome=applied}"])
	assert.Equal(t, 1.0, snap["trafficctl_commands_total{outcome=not_understood}"])
	assert.Equal(t, 1.0, snap["trafficctl_commands_total{outcome=ok}"])
}

func TestRecommendationsReflectState(t *testing.T) {
	f := newFixture(t)

	// Empty system: expect redundancy and autoscaling suggestions.
	recs := f.engine.Recommendations()
	kinds := make(map[string]bool)
	for _, r := range recs {
		kinds[r.Kind] = true
	}
	assert.True(t, kinds["add-redundancy"])
	assert.True(t, kinds["configure-autoscaling"])
}

func TestAcknowledgeAlert(t *testing.T) {
	f := newFixture(t)

	alert := f.alerts.Raise(core.SeverityWarning, "x", "something")

	assert.True(t, f.engine.Acknowledge(alert.ID))
	assert.False(t, f.engine.Acknowledge("no-such-id"))
}

func TestStatusCountsRecentAlerts(t *testing.T) {
	f := newFixture(t)

	status := f.engine.Status()
	assert.Zero(t, status.AlertsTotal)
	assert.Zero(t, status.AlertsRecent)

	f.alerts.Raise(core.SeverityWarning, "x", "slow responses")
	f.alerts.Raise(core.SeverityCritical, "y", "down")

	status = f.engine.Status()
	assert.Equal(t, 2, status.AlertsTotal)
	assert.Equal(t, 2, status.AlertsRecent)
}

// End to end: a registered target that fails three consecutive probes
// becomes unhealthy, with exactly one critical alert for the transition.
func TestEndToEndUnhealthyAfterThreeFailures(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.cloud.SetHealthy("https://x.com", false)
	f.engine.Start(ctx)

	res := f.engine.Submit(ctx, "check health of https://x.com every 1 seconds")
	require.Equal(t, OutcomeRegistered, res.Outcome)

	require.Eventually(t, func() bool {
		target, ok := f.engine.TargetStatus("x.com")
		return ok && target.State == core.HealthUnhealthy
	}, 10*time.Second, 50*time.Millisecond, "target should go unhealthy after three failures")

	var critical int
	for _, a := range f.engine.Alerts() {
		if a.Severity == core.SeverityCritical && a.Target == "x.com" {
			critical++
		}
	}
	assert.Equal(t, 1, critical, "exactly one critical alert per transition to unhealthy")
}

// End to end: an active route whose destination goes unhealthy is
// rolled back automatically and the destination weight is zeroed.
func TestEndToEndAutoRollback(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.engine.Start(ctx)

	res := f.engine.Submit(ctx, "route 70% traffic from old.example.com to new.example.com")
	require.Equal(t, OutcomeApplied, res.Outcome)

	f.cloud.SetHealthy("https://new.example.com", false)
	f.engine.Submit(ctx, "check health of new.example.com every 1 seconds")

	require.Eventually(t, func() bool {
		for _, r := range f.engine.Status().Rules {
			if r.Status == core.RuleRolledBack {
				return true
			}
		}
		return false
	}, 10*time.Second, 50*time.Millisecond, "rule should be rolled back once destination is unhealthy")

	weight, ok := f.cloud.Weight("old.example.com", "new.example.com")
	require.True(t, ok)
	assert.Equal(t, 0.0, weight, "destination weight must be reverted to zero")

	var sawFailoverAlert bool
	for _, a := range f.engine.Alerts() {
		if a.Severity == core.SeverityCritical && a.Target == "new.example.com" {
			sawFailoverAlert = true
		}
	}
	assert.True(t, sawFailoverAlert)
}

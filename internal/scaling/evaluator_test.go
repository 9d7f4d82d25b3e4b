package scaling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trafficctl/internal/alerts"
	"trafficctl/internal/core"
	"trafficctl/internal/events"
	"trafficctl/internal/metrics"
)

// meteredCloud serves canned metric values and counts scaling actions
type meteredCloud struct {
	mu      sync.Mutex
	values  map[string]float64
	errs    map[string]error
	actions int
}

func newMeteredCloud() *meteredCloud {
	return &meteredCloud{values: make(map[string]float64), errs: make(map[string]error)}
}

func (c *meteredCloud) GetTargetHealth(ctx context.Context, target string) (core.HealthProbe, error) {
	return core.HealthProbe{OK: true}, nil
}

func (c *meteredCloud) SetRoutingWeights(ctx context.Context, source, destination string, fraction float64) error {
	return nil
}

func (c *meteredCloud) TriggerScalingAction(ctx context.Context, metric, comparator string, threshold float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.actions++
	return nil
}

func (c *meteredCloud) ReadMetric(ctx context.Context, name, target string) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err, ok := c.errs[name]; ok {
		return 0, err
	}
	v, ok := c.values[name]
	if !ok {
		return 0, errors.New("unknown metric")
	}
	return v, nil
}

func (c *meteredCloud) actionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.actions
}

func newTestEvaluator(cloud core.CloudControl) *Evaluator {
	e, _ := newTestEvaluatorWithMetrics(cloud)
	return e
}

func newTestEvaluatorWithMetrics(cloud core.CloudControl) (*Evaluator, *metrics.Set) {
	set := metrics.NewSet()
	return NewEvaluator(cloud, events.NewBus(), alerts.NewStore(20), set), set
}

func TestRegisterValidation(t *testing.T) {
	e := newTestEvaluator(newMeteredCloud())

	_, err := e.Register("cpu", "sideways", 80)
	require.Error(t, err)
	assert.Equal(t, core.KindValidation, core.KindOf(err))

	_, err = e.Register("cpu", core.CompareAbove, -1)
	assert.Equal(t, core.KindValidation, core.KindOf(err))
}

func TestRegisterReplacesThreshold(t *testing.T) {
	e := newTestEvaluator(newMeteredCloud())

	_, err := e.Register("cpu", core.CompareAbove, 80)
	require.NoError(t, err)
	rule, err := e.Register("cpu", core.CompareAbove, 90)
	require.NoError(t, err)

	assert.Equal(t, 90.0, rule.Threshold)
	assert.Len(t, e.Rules(), 1)
}

func TestEvaluateFiresWhenBreached(t *testing.T) {
	cloud := newMeteredCloud()
	cloud.values["cpu"] = 95
	e, set := newTestEvaluatorWithMetrics(cloud)

	_, err := e.Register("cpu", core.CompareAbove, 80)
	require.NoError(t, err)

	e.EvaluateOnce(context.Background())
	assert.Equal(t, 1, cloud.actionCount())

	rules := e.Rules()
	require.Len(t, rules, 1)
	assert.Equal(t, 1, rules[0].FireCount)
	assert.False(t, rules[0].LastFired.IsZero())

	snap := set.Snapshot()
	assert.Equal(t, 1.0, snap["trafficctl_scale_triggers_total"])
	assert.Equal(t, 1.0, snap["trafficctl_alerts_total{severity=warning}"])
}

func TestEvaluateRespectsComparator(t *testing.T) {
	cloud := newMeteredCloud()
	cloud.values["cpu"] = 50
	e := newTestEvaluator(cloud)

	e.Register("cpu", core.CompareAbove, 80)
	e.Register("cpu", core.CompareBelow, 20)

	e.EvaluateOnce(context.Background())
	assert.Equal(t, 0, cloud.actionCount(), "50 is neither above 80 nor below 20")
}

func TestEvaluateHonorsCooldown(t *testing.T) {
	cloud := newMeteredCloud()
	cloud.values["cpu"] = 95
	e := newTestEvaluator(cloud)
	e.SetCooldown(time.Hour)

	e.Register("cpu", core.CompareAbove, 80)

	e.EvaluateOnce(context.Background())
	e.EvaluateOnce(context.Background())
	e.EvaluateOnce(context.Background())

	assert.Equal(t, 1, cloud.actionCount(), "cooldown must suppress repeat triggers")
}

func TestEvaluateFiresAgainAfterCooldown(t *testing.T) {
	cloud := newMeteredCloud()
	cloud.values["cpu"] = 95
	e := newTestEvaluator(cloud)
	e.SetCooldown(time.Hour)

	now := time.Now()
	e.clock = func() time.Time { return now }
	e.Register("cpu", core.CompareAbove, 80)
	e.EvaluateOnce(context.Background())

	e.clock = func() time.Time { return now.Add(2 * time.Hour) }
	e.EvaluateOnce(context.Background())

	assert.Equal(t, 2, cloud.actionCount())
}

func TestEvaluateSkipsUnreadableMetric(t *testing.T) {
	cloud := newMeteredCloud()
	cloud.errs["cpu"] = errors.New("provider down")
	cloud.values["memory"] = 95
	e := newTestEvaluator(cloud)

	e.Register("cpu", core.CompareAbove, 80)
	e.Register("memory", core.CompareAbove, 80)

	e.EvaluateOnce(context.Background())
	assert.Equal(t, 1, cloud.actionCount(), "unreadable metric skipped, others still evaluated")
}

package command

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRouteTraffic(t *testing.T) {
	tests := []struct {
		input string
		want  RouteTraffic
	}{
		{"route 70% traffic from old-server to new-server", RouteTraffic{"old-server", "new-server", 0.7}},
		{"route 70% of traffic from old to new", RouteTraffic{"old", "new", 0.7}},
		{"Route 100% Traffic From a To b", RouteTraffic{"a", "b", 1.0}},
		{"send 25% of traffic from api-v1 to api-v2", RouteTraffic{"api-v1", "api-v2", 0.25}},
		{"route blue to green with 30% traffic", RouteTraffic{"blue", "green", 0.3}},
		{"redirect old.example.com to new.example.com at 40%", RouteTraffic{"old.example.com", "new.example.com", 0.4}},
		{"redirect old to new", RouteTraffic{"old", "new", 1.0}},
		{"failover primary to standby", RouteTraffic{"primary", "standby", 1.0}},
		{"balance traffic between east and west", RouteTraffic{"east", "west", 0.5}},
		{"balance 10% traffic from east to west", RouteTraffic{"east", "west", 0.1}},
		{"route 0% traffic from a to b", RouteTraffic{"a", "b", 0.0}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			action := Parse(tt.input)
			require.IsType(t, RouteTraffic{}, action, "input %q", tt.input)
			assert.Equal(t, tt.want, action)
		})
	}
}

func TestParseRouteTrafficAllValidPercentages(t *testing.T) {
	for p := 0; p <= 100; p++ {
		action := Parse(fmt.Sprintf("route %d%% traffic from a to b", p))
		route, ok := action.(RouteTraffic)
		if !ok {
			t.Fatalf("percentage %d not parsed as RouteTraffic: %#v", p, action)
		}
		if route.Fraction != float64(p)/100 {
			t.Errorf("percentage %d: expected fraction %v, got %v", p, float64(p)/100, route.Fraction)
		}
	}
}

func TestParseRouteTrafficRejectsBadSlots(t *testing.T) {
	inputs := []string{
		"route 101% traffic from a to b",
		"route 250% traffic from a to b",
		"route 70% traffic from a to a",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			action := Parse(input)
			u, ok := action.(Unrecognized)
			require.True(t, ok, "expected Unrecognized, got %#v", action)
			assert.NotEmpty(t, u.Reason)
			assert.Equal(t, input, u.Raw)
		})
	}
}

func TestParseHealthCheck(t *testing.T) {
	tests := []struct {
		input string
		want  HealthCheck
	}{
		{"check health of https://x.com every 30 seconds", HealthCheck{"https://x.com", 30 * time.Second}},
		{"check health of api.example.com every 2 minutes", HealthCheck{"api.example.com", 2 * time.Minute}},
		{"monitor backend health every 10", HealthCheck{"backend", 10 * time.Second}},
		{"ping db.internal every 5 seconds", HealthCheck{"db.internal", 5 * time.Second}},
		{"health check cache interval 15", HealthCheck{"cache", 15 * time.Second}},
		{"watch frontend health", HealthCheck{"frontend", DefaultCheckInterval}},
		{"monitor api.example.com", HealthCheck{"api.example.com", DefaultCheckInterval}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			action := Parse(tt.input)
			require.IsType(t, HealthCheck{}, action, "input %q", tt.input)
			assert.Equal(t, tt.want, action)
		})
	}
}

func TestParseHealthCheckRejectsZeroInterval(t *testing.T) {
	action := Parse("check health of x.com every 0 seconds")
	u, ok := action.(Unrecognized)
	require.True(t, ok, "expected Unrecognized, got %#v", action)
	assert.Contains(t, u.Reason, "interval")
}

func TestParseScaleTrigger(t *testing.T) {
	tests := []struct {
		input string
		want  ScaleTrigger
	}{
		{"scale up when cpu above 80%", ScaleTrigger{"cpu", "above", 80}},
		{"scale up when cpu is above 80", ScaleTrigger{"cpu", "above", 80}},
		{"scale down when memory below 20%", ScaleTrigger{"memory", "below", 20}},
		{"increase capacity when network above 90", ScaleTrigger{"network", "above", 90}},
		{"decrease capacity when disk below 10", ScaleTrigger{"disk", "below", 10}},
		{"scale when cpu threshold 75", ScaleTrigger{"cpu", "above", 75}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			action := Parse(tt.input)
			require.IsType(t, ScaleTrigger{}, action, "input %q", tt.input)
			assert.Equal(t, tt.want, action)
		})
	}
}

func TestParseStatusQuery(t *testing.T) {
	tests := []struct {
		input string
		want  StatusQuery
	}{
		{"status of api.example.com", StatusQuery{Target: "api.example.com"}},
		{"show health of backend", StatusQuery{Target: "backend"}},
		{"check frontend status", StatusQuery{Target: "frontend"}},
		{"how is the-db doing", StatusQuery{Target: "the-db"}},
		{"health report for cache", StatusQuery{Target: "cache"}},
		{"show status", StatusQuery{}},
		{"system status", StatusQuery{}},
		{"dashboard", StatusQuery{}},
		{"summary", StatusQuery{}},
		{"status", StatusQuery{}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			action := Parse(tt.input)
			require.IsType(t, StatusQuery{}, action, "input %q", tt.input)
			assert.Equal(t, tt.want, action)
		})
	}
}

func TestParseHelp(t *testing.T) {
	action := Parse("help")
	assert.IsType(t, Help{}, action)
	assert.NotEmpty(t, HelpText())
}

func TestParseUnrecognized(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"make me a sandwich",
		"delete everything",
	}

	for _, input := range inputs {
		action := Parse(input)
		if _, ok := action.(Unrecognized); !ok {
			t.Errorf("input %q: expected Unrecognized, got %#v", input, action)
		}
	}
}

// Rule order matters: specific routing forms must not be shadowed by the
// bare "monitor <target>" catch-all, and vice versa.
func TestParseRuleOrder(t *testing.T) {
	action := Parse("monitor payments health every 45 seconds")
	require.IsType(t, HealthCheck{}, action)
	assert.Equal(t, 45*time.Second, action.(HealthCheck).Interval)

	action = Parse("route 70% traffic from a to b")
	assert.IsType(t, RouteTraffic{}, action)
}

func TestNormalizeCollapsesWhitespace(t *testing.T) {
	action := Parse("  ROUTE   70%   traffic FROM  a   TO b ")
	require.IsType(t, RouteTraffic{}, action)
	assert.Equal(t, RouteTraffic{"a", "b", 0.7}, action)
}

// Package live composes the real providers into one CloudControl:
// health probes go over HTTP, routing goes to Cloudflare DNS, and
// scaling and metrics go to the local Docker daemon.
package live

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"trafficctl/internal/core"
)

// RouteWriter is the routing slice of CloudControl.
type RouteWriter interface {
	SetRoutingWeights(ctx context.Context, source, destination string, fraction float64) error
}

// Scaler is the scaling and metrics slice of CloudControl.
type Scaler interface {
	TriggerScalingAction(ctx context.Context, metric, comparator string, threshold float64) error
	ReadMetric(ctx context.Context, name, target string) (float64, error)
}

// Cloud implements core.CloudControl over the composed providers.
// A nil routes or scaler degrades that slice to a provider error
// instead of failing startup, so health monitoring alone still works.
type Cloud struct {
	client *http.Client
	routes RouteWriter
	scaler Scaler
}

func NewCloud(routes RouteWriter, scaler Scaler) *Cloud {
	return &Cloud{
		client: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		routes: routes,
		scaler: scaler,
	}
}

// GetTargetHealth probes the target URL. A 2xx response is healthy;
// anything else, including transport failures, is not.
func (c *Cloud) GetTargetHealth(ctx context.Context, target string) (core.HealthProbe, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return core.HealthProbe{}, fmt.Errorf("invalid probe url %s: %w", target, err)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	latency := float64(time.Since(start).Milliseconds())
	if err != nil {
		return core.HealthProbe{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return core.HealthProbe{OK: true, LatencyMs: latency}, nil
	}
	return core.HealthProbe{
		OK:        false,
		LatencyMs: latency,
		Detail:    fmt.Sprintf("HTTP %d", resp.StatusCode),
	}, nil
}

func (c *Cloud) SetRoutingWeights(ctx context.Context, source, destination string, fraction float64) error {
	if c.routes == nil {
		return fmt.Errorf("no routing provider configured")
	}
	return c.routes.SetRoutingWeights(ctx, source, destination, fraction)
}

func (c *Cloud) TriggerScalingAction(ctx context.Context, metric, comparator string, threshold float64) error {
	if c.scaler == nil {
		return fmt.Errorf("no scaling provider configured")
	}
	return c.scaler.TriggerScalingAction(ctx, metric, comparator, threshold)
}

func (c *Cloud) ReadMetric(ctx context.Context, name, target string) (float64, error) {
	if c.scaler == nil {
		return 0, fmt.Errorf("no metrics provider configured")
	}
	return c.scaler.ReadMetric(ctx, name, target)
}

package live

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trafficctl/internal/core"
)

func TestProbeHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cloud := NewCloud(nil, nil)
	probe, err := cloud.GetTargetHealth(context.Background(), srv.URL)

	require.NoError(t, err)
	assert.True(t, probe.OK)
}

func TestProbeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cloud := NewCloud(nil, nil)
	probe, err := cloud.GetTargetHealth(context.Background(), srv.URL)

	require.NoError(t, err, "an HTTP error status is a failed probe, not a transport error")
	assert.False(t, probe.OK)
	assert.Equal(t, "HTTP 503", probe.Detail)
}

func TestProbeTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	cloud := NewCloud(nil, nil)
	_, err := cloud.GetTargetHealth(context.Background(), srv.URL)

	assert.Error(t, err)
}

func TestMissingProvidersDegradeGracefully(t *testing.T) {
	cloud := NewCloud(nil, nil)
	ctx := context.Background()

	assert.Error(t, cloud.SetRoutingWeights(ctx, "a", "b", 0.5))
	assert.Error(t, cloud.TriggerScalingAction(ctx, "cpu", "above", 80))

	_, err := cloud.ReadMetric(ctx, "cpu", "")
	assert.Error(t, err)
}

var _ core.CloudControl = (*Cloud)(nil)

package core

import "context"

// HealthProbe is the result of a single provider health check
type HealthProbe struct {
	OK        bool
	LatencyMs float64
	Detail    string
}

// CloudControl abstracts the traffic/DNS/metrics provider.
// Implementations: the mock adapter and the composite live adapter.
// Monitoring and routing logic never branch on which one is in use.
type CloudControl interface {
	// GetTargetHealth probes a target and reports whether it is serving.
	GetTargetHealth(ctx context.Context, target string) (HealthProbe, error)

	// SetRoutingWeights writes the final destination fraction for a pair.
	// The provider handles its own smoothing; the fraction is authoritative.
	SetRoutingWeights(ctx context.Context, source, destination string, destinationFraction float64) error

	// TriggerScalingAction asks the provider to act on a threshold breach.
	TriggerScalingAction(ctx context.Context, metric, comparator string, threshold float64) error

	// ReadMetric returns the current value of a named metric, optionally
	// scoped to a target (empty target = fleet-wide).
	ReadMetric(ctx context.Context, name, target string) (float64, error)
}

// EventBus publishes and subscribes to engine events
type EventBus interface {
	Publish(event Event)
	Subscribe() <-chan Event
	Unsubscribe(ch <-chan Event)
}

// AlertSink receives alerts raised by the monitor and routing engine
type AlertSink interface {
	Raise(severity Severity, target, message string) Alert
}

package command

import "time"

// Action is the typed result of interpreting one command.
// Actions are immutable once parsed.
type Action interface {
	Kind() string
}

// RouteTraffic shifts a fraction of traffic from Source to Destination
type RouteTraffic struct {
	Source      string  `json:"source"`
	Destination string  `json:"destination"`
	Fraction    float64 `json:"fraction"`
}

func (RouteTraffic) Kind() string { return "route_traffic" }

// HealthCheck registers or updates health monitoring for a target
type HealthCheck struct {
	Target   string        `json:"target"`
	Interval time.Duration `json:"interval"`
}

func (HealthCheck) Kind() string { return "health_check" }

// ScaleTrigger installs a standing auto-scaling rule
type ScaleTrigger struct {
	Metric     string  `json:"metric"`
	Comparator string  `json:"comparator"`
	Threshold  float64 `json:"threshold"`
}

func (ScaleTrigger) Kind() string { return "scale_trigger" }

// StatusQuery requests a health and routing snapshot.
// An empty Target means the whole system.
type StatusQuery struct {
	Target string `json:"target,omitempty"`
}

func (StatusQuery) Kind() string { return "status_query" }

// Help requests the supported command grammar
type Help struct{}

func (Help) Kind() string { return "help" }

// Unrecognized is returned for input no rule accepts; Reason explains why
type Unrecognized struct {
	Raw    string `json:"raw"`
	Reason string `json:"reason"`
}

func (Unrecognized) Kind() string { return "unrecognized" }

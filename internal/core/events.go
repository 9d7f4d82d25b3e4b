package core

import "time"

// Event is anything published on the engine's event bus
type Event interface {
	EventTime() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	Timestamp time.Time
	Target    string
}

func (e BaseEvent) EventTime() time.Time {
	return e.Timestamp
}

// HealthChanged indicates a target's health state transitioned
type HealthChanged struct {
	BaseEvent
	Previous  HealthState
	Current   HealthState
	LatencyMs float64
	Reason    string
}

// RouteApplied indicates a routing rule was committed
type RouteApplied struct {
	BaseEvent
	RuleID      string
	Source      string
	Destination string
	Weight      float64
}

// RouteRolledBack indicates an active rule was reverted
type RouteRolledBack struct {
	BaseEvent
	RuleID      string
	Source      string
	Destination string
	Reason      string
}

// ScaleTriggered indicates a standing scale rule fired
type ScaleTriggered struct {
	BaseEvent
	Metric    string
	Value     float64
	Threshold float64
}

package core

import "time"

// HealthState represents the monitored health of a target
type HealthState string

const (
	HealthUnknown   HealthState = "unknown"
	HealthHealthy   HealthState = "healthy"
	HealthDegraded  HealthState = "degraded"
	HealthUnhealthy HealthState = "unhealthy"
)

// Target is a monitored network endpoint
type Target struct {
	Name                 string        `json:"name"`
	URL                  string        `json:"url"`
	CheckInterval        time.Duration `json:"check_interval"`
	FailureThreshold     int           `json:"failure_threshold"`
	RecoveryThreshold    int           `json:"recovery_threshold"`
	State                HealthState   `json:"state"`
	StateSince           time.Time     `json:"state_since"`
	ConsecutiveFailures  int           `json:"consecutive_failures"`
	ConsecutiveSuccesses int           `json:"consecutive_successes"`
	LastChecked          time.Time     `json:"last_checked"`
	LastLatencyMs        float64       `json:"last_latency_ms"`
	LastError            string        `json:"last_error,omitempty"`
	ChecksTotal          int           `json:"checks_total"`
	ChecksFailed         int           `json:"checks_failed"`
	Active               bool          `json:"active"`
	CreatedAt            time.Time     `json:"created_at"`
}

// UptimePercent returns the share of successful checks, or -1 before any check ran.
func (t Target) UptimePercent() float64 {
	if t.ChecksTotal == 0 {
		return -1
	}
	return float64(t.ChecksTotal-t.ChecksFailed) / float64(t.ChecksTotal) * 100
}

// RuleStatus represents the lifecycle of a routing rule
type RuleStatus string

const (
	RuleActive     RuleStatus = "active"
	RuleCompleted  RuleStatus = "completed"
	RuleRolledBack RuleStatus = "rolled_back"
)

// RoutingRule is a weighted traffic split between two targets.
// Weight is the fraction of traffic sent to Destination; Source keeps 1-Weight.
type RoutingRule struct {
	ID          string     `json:"id"`
	Source      string     `json:"source"`
	Destination string     `json:"destination"`
	Weight      float64    `json:"weight"`
	Status      RuleStatus `json:"status"`
	Reason      string     `json:"reason,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Severity classifies alerts
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert records an adverse (or recovery) condition observed by the engine
type Alert struct {
	ID           string    `json:"id"`
	Severity     Severity  `json:"severity"`
	Message      string    `json:"message"`
	Target       string    `json:"target,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	Acknowledged bool      `json:"acknowledged"`
}

// Recommendation is a derived, read-only suggestion
type Recommendation struct {
	Kind       string  `json:"kind"`
	Target     string  `json:"target,omitempty"`
	Rationale  string  `json:"rationale"`
	Confidence float64 `json:"confidence"`
}

// ScaleRule is a standing auto-scaling trigger evaluated against provider metrics
type ScaleRule struct {
	Metric     string    `json:"metric"`
	Comparator string    `json:"comparator"` // "above" or "below"
	Threshold  float64   `json:"threshold"`
	CreatedAt  time.Time `json:"created_at"`
	LastFired  time.Time `json:"last_fired,omitempty"`
	FireCount  int       `json:"fire_count"`
}

// Comparators accepted by ScaleRule
const (
	CompareAbove = "above"
	CompareBelow = "below"
)

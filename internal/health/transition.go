package health

import "trafficctl/internal/core"

// nextState runs the per-target health state machine over one sample.
// Counters on t are already updated for the sample.
//
// The hysteresis is asymmetric: a single failure degrades a healthy
// target, but an unhealthy target must produce RecoveryThreshold
// consecutive successes before it is trusted again. Degraded recovers
// on the first success.
func nextState(t core.Target, ok bool) core.HealthState {
	if ok {
		switch t.State {
		case core.HealthUnknown, core.HealthDegraded:
			return core.HealthHealthy
		case core.HealthUnhealthy:
			if t.ConsecutiveSuccesses >= t.RecoveryThreshold {
				return core.HealthHealthy
			}
			return core.HealthUnhealthy
		default:
			return core.HealthHealthy
		}
	}

	switch t.State {
	case core.HealthUnknown, core.HealthHealthy:
		if t.ConsecutiveFailures >= t.FailureThreshold {
			// Only reachable with FailureThreshold == 1
			return core.HealthUnhealthy
		}
		return core.HealthDegraded
	case core.HealthDegraded:
		if t.ConsecutiveFailures >= t.FailureThreshold {
			return core.HealthUnhealthy
		}
		return core.HealthDegraded
	default:
		return core.HealthUnhealthy
	}
}

package health

import (
	"sort"
	"strings"
	"sync"
	"time"

	"trafficctl/internal/core"
)

// Defaults applied to targets created on first reference
const (
	DefaultInterval          = 30 * time.Second
	DefaultFailureThreshold  = 3
	DefaultRecoveryThreshold = 2
)

// Sample is one poll observation for a target
type Sample struct {
	OK        bool
	LatencyMs float64
	Detail    string
	// PollError marks a transport/provider failure as opposed to a
	// reported-unhealthy result. Both count as failures.
	PollError bool
}

// Registry owns all Target state. Health fields are mutated only through
// Record and Configure; readers always get copies.
type Registry struct {
	mu              sync.RWMutex
	targets         map[string]*entry
	clock           func() time.Time
	defaultFailure  int
	defaultRecovery int
}

// entry serializes all mutations for one target
type entry struct {
	mu     sync.Mutex
	target core.Target
}

// NewRegistry creates an empty target registry
func NewRegistry() *Registry {
	return &Registry{
		targets:         make(map[string]*entry),
		clock:           time.Now,
		defaultFailure:  DefaultFailureThreshold,
		defaultRecovery: DefaultRecoveryThreshold,
	}
}

// SetDefaultThresholds overrides the hysteresis thresholds applied to
// targets created from now on. Existing targets keep theirs.
func (r *Registry) SetDefaultThresholds(failure, recovery int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if failure > 0 {
		r.defaultFailure = failure
	}
	if recovery > 0 {
		r.defaultRecovery = recovery
	}
}

// Normalize canonicalizes a target reference into its registry name
func Normalize(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.TrimPrefix(n, "https://")
	n = strings.TrimPrefix(n, "http://")
	return strings.TrimSuffix(n, "/")
}

// ProbeURL returns the URL the provider should probe for a target.
// Scheme-bearing names keep their scheme but are canonicalized the same
// way Normalize canonicalizes bare names.
func ProbeURL(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if strings.HasPrefix(n, "http://") || strings.HasPrefix(n, "https://") {
		return strings.TrimSuffix(n, "/")
	}
	return "https://" + Normalize(name)
}

// Ensure returns the target for name, creating it with defaults on first
// reference. Targets are never deleted, only deactivated.
func (r *Registry) Ensure(name string) core.Target {
	key := Normalize(name)

	r.mu.Lock()
	e, exists := r.targets[key]
	if !exists {
		e = &entry{target: core.Target{
			Name:              key,
			URL:               ProbeURL(name),
			CheckInterval:     DefaultInterval,
			FailureThreshold:  r.defaultFailure,
			RecoveryThreshold: r.defaultRecovery,
			State:             core.HealthUnknown,
			StateSince:        r.clock(),
			Active:            true,
			CreatedAt:         r.clock(),
		}}
		r.targets[key] = e
	}
	r.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.target
}

// Configure updates a target's check interval, creating it if needed
func (r *Registry) Configure(name string, interval time.Duration) core.Target {
	r.Ensure(name)
	e := r.entry(name)

	e.mu.Lock()
	defer e.mu.Unlock()
	if interval > 0 {
		e.target.CheckInterval = interval
	}
	e.target.Active = true
	return e.target
}

// SetThresholds overrides the per-target hysteresis thresholds
func (r *Registry) SetThresholds(name string, failure, recovery int) {
	r.Ensure(name)
	e := r.entry(name)

	e.mu.Lock()
	defer e.mu.Unlock()
	if failure > 0 {
		e.target.FailureThreshold = failure
	}
	if recovery > 0 {
		e.target.RecoveryThreshold = recovery
	}
}

// Record applies one poll sample and runs the state machine. It returns
// the previous and current states, a copy of the target, and whether an
// actual transition happened. Mutations for a target are fully serialized.
func (r *Registry) Record(name string, s Sample) (prev, cur core.HealthState, target core.Target, changed bool) {
	r.Ensure(name)
	e := r.entry(name)

	e.mu.Lock()
	defer e.mu.Unlock()

	t := &e.target
	prev = t.State

	t.ChecksTotal++
	t.LastChecked = r.clock()
	t.LastLatencyMs = s.LatencyMs

	if s.OK {
		t.ConsecutiveSuccesses++
		t.ConsecutiveFailures = 0
		t.LastError = ""
	} else {
		t.ConsecutiveFailures++
		t.ConsecutiveSuccesses = 0
		t.ChecksFailed++
		t.LastError = s.Detail
	}

	t.State = nextState(*t, s.OK)
	if t.State != prev {
		t.StateSince = t.LastChecked
	}
	return prev, t.State, *t, t.State != prev
}

// Get returns a copy of the named target
func (r *Registry) Get(name string) (core.Target, bool) {
	r.mu.RLock()
	e, ok := r.targets[Normalize(name)]
	r.mu.RUnlock()
	if !ok {
		return core.Target{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.target, true
}

// Deactivate stops a target from being considered live without deleting it
func (r *Registry) Deactivate(name string) bool {
	r.mu.RLock()
	e, ok := r.targets[Normalize(name)]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.target.Active = false
	return true
}

// List returns copies of all targets, sorted by name
func (r *Registry) List() []core.Target {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.targets))
	for _, e := range r.targets {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]core.Target, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.target)
		e.mu.Unlock()
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Match returns targets whose name contains the (normalized) query
func (r *Registry) Match(query string) []core.Target {
	q := Normalize(query)
	var out []core.Target
	for _, t := range r.List() {
		if strings.Contains(t.Name, q) {
			out = append(out, t)
		}
	}
	return out
}

func (r *Registry) entry(name string) *entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.targets[Normalize(name)]
}

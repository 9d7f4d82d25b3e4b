package alerts

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"trafficctl/internal/core"
)

// DefaultCapacity bounds the alert history, oldest entries evicted first
const DefaultCapacity = 100

// Store holds recent alerts in a bounded ring buffer.
// Alerts are immutable except for acknowledgement.
type Store struct {
	mu       sync.RWMutex
	alerts   []core.Alert
	capacity int
	clock    func() time.Time
}

// NewStore creates an alert store with the given capacity.
// A capacity of zero or less falls back to DefaultCapacity.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		alerts:   make([]core.Alert, 0, capacity),
		capacity: capacity,
		clock:    time.Now,
	}
}

// Raise records a new alert, evicting the oldest entry when full
func (s *Store) Raise(severity core.Severity, target, message string) core.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert := core.Alert{
		ID:        uuid.NewString(),
		Severity:  severity,
		Message:   message,
		Target:    target,
		Timestamp: s.clock(),
	}

	if len(s.alerts) >= s.capacity {
		s.alerts = s.alerts[1:]
	}
	s.alerts = append(s.alerts, alert)

	log.Printf("[ALERT] %s: %s (target=%s)", severity, message, target)
	return alert
}

// Acknowledge marks an alert as seen. Acknowledging twice is a no-op.
func (s *Store) Acknowledge(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.alerts {
		if s.alerts[i].ID == id {
			s.alerts[i].Acknowledged = true
			return true
		}
	}
	return false
}

// List returns alerts newest first
func (s *Store) List() []core.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.Alert, len(s.alerts))
	for i, a := range s.alerts {
		out[len(s.alerts)-1-i] = a
	}
	return out
}

// RecentCount reports how many alerts were raised within the window
func (s *Store) RecentCount(window time.Duration) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.clock().Add(-window)
	count := 0
	for _, a := range s.alerts {
		if a.Timestamp.After(cutoff) {
			count++
		}
	}
	return count
}

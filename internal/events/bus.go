package events

import (
	"log"
	"sync"

	"trafficctl/internal/core"
)

const subscriberBuffer = 128

// Bus is an in-memory event bus. Publish never blocks: a subscriber
// that falls behind loses events rather than stalling the monitor.
type Bus struct {
	mu          sync.RWMutex
	subscribers []chan core.Event
}

// NewBus creates a new in-memory event bus
func NewBus() *Bus {
	return &Bus{
		subscribers: make([]chan core.Event, 0),
	}
}

// Publish delivers an event to all subscribers
func (b *Bus) Publish(event core.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			log.Printf("[EVENTS] Dropping event %T: subscriber buffer full", event)
		}
	}
}

// Subscribe creates a new subscription channel
func (b *Bus) Subscribe() <-chan core.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan core.Event, subscriberBuffer)
	b.subscribers = append(b.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscription channel and closes it
func (b *Bus) Unsubscribe(ch <-chan core.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subscribers {
		if sub == ch {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			close(sub)
			break
		}
	}
}

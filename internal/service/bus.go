package service

import "sync"

// Event represents a farm mapping mutation.
type Event struct {
	Resource string // e.g. "section"
	Action   string // e.g. "drawn", "updated", "deleted"
	FarmID   string // owning farm
	ID       string // resource ID when the resource has one
}

// Event resources.
const (
	ResourceBoundary     = "boundary"
	ResourceSection      = "section"
	ResourceWaterSources = "water-sources"
	ResourceStats        = "stats"
)

// Event actions. Events are published only after the mutation has been
// persisted, so subscribers always observe stored state.
const (
	ActionDrawn    = "drawn"
	ActionUpdated  = "updated"
	ActionDeleted  = "deleted"
	ActionSelected = "selected"
	ActionChanged  = "changed"
)

// EventBus is a simple fan-out pub/sub for mapping change events.
type EventBus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[chan Event]struct{})}
}

// Publish sends an event to all subscribers (non-blocking).
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// subscriber too slow, skip
		}
	}
}

// Subscribe returns a buffered channel that receives events.
func (b *EventBus) Subscribe() chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *EventBus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
	close(ch)
}

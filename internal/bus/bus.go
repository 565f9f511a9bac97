package bus

import (
	"strings"
	"sync"
)

// Bus is an in-process publish/subscribe event bus. Subscriptions are
// keyed by a kind prefix so a single subscriber can watch a whole
// namespace ("timeline.") or everything (""). Delivery is non-blocking:
// a subscriber that falls behind loses events rather than stalling the
// publisher.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]*subscriber
}

type subscriber struct {
	prefix string
	ch     chan Event
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

// Publish delivers evt to every subscriber whose prefix matches evt.Kind.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if !strings.HasPrefix(evt.Kind, s.prefix) {
			continue
		}
		select {
		case s.ch <- evt:
		default:
			// Subscriber buffer full; drop rather than block.
		}
	}
}

// Subscribe registers a prefix subscription with the given buffer size.
// The returned function removes the subscription.
func (b *Bus) Subscribe(prefix string, buffer int) (<-chan Event, func()) {
	s := &subscriber{prefix: prefix, ch: make(chan Event, buffer)}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = s
	b.mu.Unlock()

	return s.ch, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

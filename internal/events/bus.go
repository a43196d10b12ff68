package events

import (
	"sync"
	"sync/atomic"
)

const defaultBufferSize = 100

// subscriber is one listener with an optional type filter
type subscriber struct {
	ch      chan Event
	types   map[EventType]struct{} // empty means every type
	dropped atomic.Uint64
}

func (s *subscriber) wants(t EventType) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[t]
	return ok
}

// Bus fans load-test events out to subscribers without blocking the publisher.
// A request_failed event is published per failed request, so slow subscribers
// lose events under load; the loss is counted per subscriber.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[<-chan Event]*subscriber
	bufferSize  int
	dropped     atomic.Uint64 // includes unsubscribed listeners
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[<-chan Event]*subscriber),
		bufferSize:  defaultBufferSize,
	}
}

// Subscribe returns a channel that receives events of the given types,
// or of every type when none are given
func (b *Bus) Subscribe(types ...EventType) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscriber{
		ch:    make(chan Event, b.bufferSize),
		types: make(map[EventType]struct{}, len(types)),
	}
	for _, t := range types {
		sub.types[t] = struct{}{}
	}
	b.subscribers[sub.ch] = sub
	return sub.ch
}

// Unsubscribe removes a subscriber channel and returns how many events it missed
func (b *Bus) Unsubscribe(ch <-chan Event) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subscribers[ch]
	if !ok {
		return 0
	}
	delete(b.subscribers, ch)
	close(sub.ch)
	return sub.dropped.Load()
}

// Publish sends an event to every subscriber interested in its type.
// If a subscriber's buffer is full the event is dropped for that subscriber.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if !sub.wants(event.Type) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			sub.dropped.Add(1)
			b.dropped.Add(1)
		}
	}
}

// Dropped returns the number of events the subscriber missed
func (b *Bus) Dropped(ch <-chan Event) uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if sub, ok := b.subscribers[ch]; ok {
		return sub.dropped.Load()
	}
	return 0
}

// TotalDropped returns the number of events dropped across all subscribers
func (b *Bus) TotalDropped() uint64 {
	return b.dropped.Load()
}

// SubscriberCount returns the number of active subscribers
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes all subscriber channels
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch, sub := range b.subscribers {
		close(sub.ch)
		delete(b.subscribers, ch)
	}
}

// Package events fans engine events out to streaming subscribers.
package events

import "sync"

// Subscription receives broadcast values on C until unsubscribed.
type Subscription[T any] struct {
	ch chan T
}

// C returns the receive channel. It is closed by Unsubscribe.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Hub broadcasts values to every subscriber. Slow subscribers miss values
// instead of blocking the broadcaster.
type Hub[T any] struct {
	mu   sync.RWMutex
	subs map[*Subscription[T]]struct{}
}

// NewHub creates an empty hub.
func NewHub[T any]() *Hub[T] {
	return &Hub[T]{subs: make(map[*Subscription[T]]struct{})}
}

// Subscribe registers a subscriber with the given channel buffer.
func (h *Hub[T]) Subscribe(buffer int) *Subscription[T] {
	sub := &Subscription[T]{ch: make(chan T, buffer)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Unsubscribe removes sub and closes its channel. Repeated calls are no-ops.
func (h *Hub[T]) Unsubscribe(sub *Subscription[T]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; !ok {
		return
	}
	delete(h.subs, sub)
	close(sub.ch)
}

// Broadcast delivers value to every subscriber with buffer room and
// returns how many received it.
func (h *Hub[T]) Broadcast(value T) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for sub := range h.subs {
		select {
		case sub.ch <- value:
			delivered++
		default:
		}
	}
	return delivered
}

// Len returns the number of active subscribers.
func (h *Hub[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

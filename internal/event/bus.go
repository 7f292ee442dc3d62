// Package event provides a small typed publish/subscribe bus.
package event

import (
	"sync"
)

// Handler receives published events. Handlers run on the publishing
// goroutine and must not block.
type Handler[E any] func(E)

// Bus fans events out to subscribers in subscription order.
type Bus[E any] struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[uint64]Handler[E]
	order    []uint64
}

// NewBus creates an empty bus.
func NewBus[E any]() *Bus[E] {
	return &Bus[E]{handlers: make(map[uint64]Handler[E])}
}

// Subscribe registers h and returns a function that removes it.
// The returned function is safe to call more than once.
func (b *Bus[E]) Subscribe(h Handler[E]) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[id] = h
	b.order = append(b.order, id)

	var once sync.Once

	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()

			delete(b.handlers, id)

			for i, v := range b.order {
				if v == id {
					b.order = append(b.order[:i:i], b.order[i+1:]...)

					break
				}
			}
		})
	}
}

// Publish delivers e to every current subscriber.
func (b *Bus[E]) Publish(e E) {
	b.mu.RLock()

	handlers := make([]Handler[E], 0, len(b.order))
	for _, id := range b.order {
		handlers = append(handlers, b.handlers[id])
	}

	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}

// Len returns the number of subscribers.
func (b *Bus[E]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.handlers)
}

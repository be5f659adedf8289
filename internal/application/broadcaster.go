package application

import "sync"

// broadcaster delivers state snapshots to listeners on the publishing goroutine.
// Snapshots carry a sequence number assigned under the owner's lock; a snapshot older
// than one already delivered is dropped, so listeners never observe state going back.
// Listeners must not publish to the same broadcaster from inside the callback.
type broadcaster[T any] struct {
	mu        sync.Mutex
	listeners map[int]func(T)
	next      int

	deliverMu sync.Mutex
	delivered uint64
}

func newBroadcaster[T any]() *broadcaster[T] {
	return &broadcaster[T]{listeners: map[int]func(T){}}
}

func (b *broadcaster[T]) subscribe(fn func(T)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	b.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.listeners, id)
		})
	}
}

func (b *broadcaster[T]) deliver(seq uint64, value T) {
	b.deliverMu.Lock()
	defer b.deliverMu.Unlock()

	if seq <= b.delivered {
		return
	}
	b.delivered = seq

	b.mu.Lock()
	listeners := make([]func(T), 0, len(b.listeners))
	for _, fn := range b.listeners {
		listeners = append(listeners, fn)
	}
	b.mu.Unlock()

	for _, fn := range listeners {
		fn(value)
	}
}

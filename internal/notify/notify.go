// Package notify provides a minimal synchronous observer list.
//
// State holders (playlist store, playback controller, media sync) embed a
// Broadcaster and publish snapshots after releasing their own locks, so a
// subscriber is free to call back into the publisher.
package notify

import "sync"

// Broadcaster fans a value out to every registered subscriber.
// The zero value is ready to use.
type Broadcaster[T any] struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(T)
	order  []int
}

// Subscribe registers fn and returns a function that removes it.
// Subscribers are called in registration order.
func (b *Broadcaster[T]) Subscribe(fn func(T)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs == nil {
		b.subs = make(map[int]func(T))
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.order = append(b.order, id)

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Broadcaster[T]) remove(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subs, id)
	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Publish calls every subscriber with v on the calling goroutine.
// Must not be called while holding a lock a subscriber may need.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	fns := make([]func(T), 0, len(b.order))
	for _, id := range b.order {
		fns = append(fns, b.subs[id])
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Len returns the number of active subscribers.
func (b *Broadcaster[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.order)
}

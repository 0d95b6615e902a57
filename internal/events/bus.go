package events

import (
	"sync"

	"portal/pkg/logging"
)

// DefaultSubscriberBuffer is used when Subscribe is called with a
// non-positive buffer size.
const DefaultSubscriberBuffer = 16

// Bus broadcasts values of type T to every current subscriber.
type Bus[T any] struct {
	name string

	mu     sync.RWMutex
	nextID int
	subs   map[int]*subscriber[T]
	closed bool
}

type subscriber[T any] struct {
	ch chan T
	// latest subscribers keep only the most recent value.
	latest bool
}

// NewBus creates a bus. name is used as the logging subsystem.
func NewBus[T any](name string) *Bus[T] {
	return &Bus[T]{
		name: name,
		subs: make(map[int]*subscriber[T]),
	}
}

// Subscribe registers a subscriber with the given channel buffer. The
// returned cancel function unsubscribes and closes the channel; it is safe to
// call more than once.
func (b *Bus[T]) Subscribe(buffer int) (<-chan T, func()) {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return b.add(&subscriber[T]{ch: make(chan T, buffer)})
}

// SubscribeLatest registers a subscriber that only ever holds the most
// recent value. The channel starts out holding initial.
func (b *Bus[T]) SubscribeLatest(initial T) (<-chan T, func()) {
	sub := &subscriber[T]{ch: make(chan T, 1), latest: true}
	sub.ch <- initial
	return b.add(sub)
}

func (b *Bus[T]) add(sub *subscriber[T]) (<-chan T, func()) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if s, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(s.ch)
			}
		})
	}
	return sub.ch, cancel
}

// Publish delivers v to every subscriber without blocking. A subscriber whose
// buffer is full misses v.
func (b *Bus[T]) Publish(v T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, sub := range b.subs {
		if sub.latest {
			replace(sub.ch, v)
			continue
		}
		select {
		case sub.ch <- v:
		default:
			logging.Warn(b.name, "Subscriber %d is not keeping up, dropping event", id)
		}
	}
}

// Len returns the number of active subscribers.
func (b *Bus[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscriber channel. Later subscriptions receive a
// closed channel and later publishes are no-ops.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
}

// replace puts v into a one-slot channel, discarding a value nobody has
// received yet.
func replace[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

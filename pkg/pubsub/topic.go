// Package pubsub provides the typed channels components use to publish state
// and events to any number of subscribers.
//
// A Topic delivers events: subscribers only see values published after they
// subscribed. A Signal holds a current value: new subscribers first receive
// the latest value, then every change. Both are safe for concurrent use, and
// Publish never blocks on a slow subscriber.
package pubsub

import (
	"context"
	"sync"
	"sync/atomic"
)

// DefaultBuffer is the per-subscriber queue length of a Topic
const DefaultBuffer = 64

// Topic fans out events of type T. A subscriber whose buffer is full misses
// the event; the miss is counted in Dropped.
type Topic[T any] struct {
	mu      sync.Mutex
	subs    map[uint64]chan T
	nextID  uint64
	buffer  int
	closed  bool
	dropped atomic.Uint64
}

// NewTopic creates a topic with the given per-subscriber buffer. A buffer
// below one uses DefaultBuffer.
func NewTopic[T any](buffer int) *Topic[T] {
	if buffer < 1 {
		buffer = DefaultBuffer
	}
	return &Topic[T]{subs: make(map[uint64]chan T), buffer: buffer}
}

// Subscribe returns a channel receiving every event published from now on.
// The channel is closed when ctx is done or the topic is closed.
func (t *Topic[T]) Subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, t.buffer)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		close(ch)
		return ch
	}
	id := t.nextID
	t.nextID++
	t.subs[id] = ch
	t.mu.Unlock()

	context.AfterFunc(ctx, func() { t.unsubscribe(id) })
	return ch
}

func (t *Topic[T]) unsubscribe(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ch, ok := t.subs[id]; ok {
		delete(t.subs, id)
		close(ch)
	}
}

// Publish delivers v to every current subscriber without blocking
func (t *Topic[T]) Publish(v T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	for _, ch := range t.subs {
		select {
		case ch <- v:
		default:
			t.dropped.Add(1)
		}
	}
}

// Subscribers returns the number of live subscriptions
func (t *Topic[T]) Subscribers() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber
// was not keeping up.
func (t *Topic[T]) Dropped() uint64 {
	return t.dropped.Load()
}

// Close ends every subscription. Later publishes are ignored and later
// subscriptions receive an already closed channel.
func (t *Topic[T]) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	for id, ch := range t.subs {
		delete(t.subs, id)
		close(ch)
	}
}

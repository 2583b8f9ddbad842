package pubsub

import (
	"context"
	"sync"
)

// Signal holds the latest value of T. Subscribers receive the current value
// immediately and then each change; intermediate values are coalesced for a
// subscriber that falls behind, so it always ends up seeing the latest.
type Signal[T any] struct {
	mu     sync.Mutex
	value  T
	subs   map[uint64]chan T
	nextID uint64
	closed bool
}

// NewSignal creates a signal holding initial
func NewSignal[T any](initial T) *Signal[T] {
	return &Signal[T]{value: initial, subs: make(map[uint64]chan T)}
}

// Get returns the current value
func (s *Signal[T]) Get() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Subscribe returns a channel that first yields the current value. The
// channel is closed when ctx is done or the signal is closed.
func (s *Signal[T]) Subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, 1)

	s.mu.Lock()
	ch <- s.value
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.mu.Unlock()

	context.AfterFunc(ctx, func() { s.unsubscribe(id) })
	return ch
}

func (s *Signal[T]) unsubscribe(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
}

// Set stores v and notifies subscribers
func (s *Signal[T]) Set(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(v)
}

// Update applies fn to the current value atomically and publishes the result
func (s *Signal[T]) Update(fn func(T) T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(fn(s.value))
}

func (s *Signal[T]) setLocked(v T) {
	if s.closed {
		return
	}
	s.value = v
	for _, ch := range s.subs {
		// Only Set sends, and it holds the lock, so after draining the
		// stale value the send cannot block.
		select {
		case ch <- v:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- v
		}
	}
}

// Close ends every subscription. The last value stays readable through Get.
func (s *Signal[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

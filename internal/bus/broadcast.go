package bus

import (
	"sync"
	"sync/atomic"

	"github.com/alphadose/haxmap"
	"github.com/google/uuid"
)

// Broadcaster fans values out to any number of subscribers without ever
// blocking the publisher. A subscriber whose buffer is full misses the value.
type Broadcaster[T any] struct {
	subs    *haxmap.Map[string, *Subscription[T]]
	buffer  int
	dropped atomic.Uint64

	mu     sync.Mutex
	closed bool
}

// NewBroadcaster creates a broadcaster whose subscriptions buffer up to buffer values.
func NewBroadcaster[T any](buffer int) *Broadcaster[T] {
	if buffer < 1 {
		buffer = 1
	}
	return &Broadcaster[T]{
		subs:   haxmap.New[string, *Subscription[T]](),
		buffer: buffer,
	}
}

// Subscribe registers a new subscriber. It receives every value published
// after this call returns. Once the broadcaster is closed the subscription
// comes back already closed.
func (b *Broadcaster[T]) Subscribe() *Subscription[T] {
	id := uuid.NewString()
	sub := &Subscription[T]{
		id: id,
		ch: make(chan T, b.buffer),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		sub.Unsubscribe()
		return sub
	}
	sub.onClose = func() { b.subs.Del(id) }
	b.subs.Set(id, sub)
	return sub
}

// Publish offers v to every subscriber and reports how many received it.
func (b *Broadcaster[T]) Publish(v T) int {
	delivered := 0
	b.subs.ForEach(func(_ string, sub *Subscription[T]) bool {
		if sub == nil {
			return true
		}
		if sub.offer(v) {
			delivered++
		} else {
			b.dropped.Add(1)
		}
		return true
	})
	return delivered
}

// Len returns the number of live subscriptions.
func (b *Broadcaster[T]) Len() int {
	return int(b.subs.Len())
}

// Dropped returns how many deliveries were skipped because a subscriber was full.
func (b *Broadcaster[T]) Dropped() uint64 {
	return b.dropped.Load()
}

func (b *Broadcaster[T]) closeAll() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	var all []*Subscription[T]
	b.subs.ForEach(func(_ string, sub *Subscription[T]) bool {
		all = append(all, sub)
		return true
	})
	for _, sub := range all {
		sub.Unsubscribe()
	}
}

// Subscription is one subscriber's view of a Broadcaster.
type Subscription[T any] struct {
	id      string
	ch      chan T
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
	onClose func()
	once    sync.Once
}

// ID returns the subscription's unique identifier.
func (s *Subscription[T]) ID() string { return s.id }

// C returns the receive channel. It is closed by Unsubscribe.
func (s *Subscription[T]) C() <-chan T { return s.ch }

// Dropped returns how many values this subscriber missed.
func (s *Subscription[T]) Dropped() uint64 { return s.dropped.Load() }

// Unsubscribe stops delivery and closes C. Safe to call more than once.
func (s *Subscription[T]) Unsubscribe() {
	s.once.Do(func() {
		if s.onClose != nil {
			s.onClose()
		}
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
	})
}

func (s *Subscription[T]) offer(v T) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- v:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

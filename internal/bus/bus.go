// Package bus provides the in-process broadcast channel that fans chat
// events out to live stream subscribers and the webhook dispatcher.
//
// Delivery is best-effort: each subscriber owns a bounded buffer, and a
// subscriber that falls behind loses events rather than back-pressuring
// publishers. Loss is surfaced, not silent: the dropped events are replaced
// by a single lagged marker carrying the miss count, from which consumers
// recover by refetching with an after=<seq> cursor.
package bus

import (
	"sync"

	"github.com/Humans-Not-Required/local-agent-chat-sub001/internal/domain"
)

const defaultBufferSize = 64

// Bus is a multi-producer multi-consumer broadcast channel for chat events.
type Bus struct {
	mu      sync.RWMutex
	subs    map[uint64]*subscriber
	nextID  uint64
	bufSize int
}

type subscriber struct {
	mu sync.Mutex
	ch chan domain.Event
}

// New constructs a bus with the given per-subscriber buffer size.
// If bufSize <= 0 a default of 64 is used.
func New(bufSize int) *Bus {
	if bufSize <= 0 {
		bufSize = defaultBufferSize
	}
	return &Bus{
		subs:    make(map[uint64]*subscriber),
		bufSize: bufSize,
	}
}

// Subscription is a single consumer's handle on the bus. Callers must Close
// it to release resources.
type Subscription struct {
	bus *Bus
	id  uint64
	sub *subscriber
}

// Subscribe registers a new consumer.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	s := &subscriber{ch: make(chan domain.Event, b.bufSize)}
	b.subs[id] = s
	return &Subscription{bus: b, id: id, sub: s}
}

// Events returns the subscriber's receive channel. It is closed by Close.
func (s *Subscription) Events() <-chan domain.Event {
	return s.sub.ch
}

// Close removes the subscription from the bus and closes its channel.
// Safe to call more than once.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if _, ok := s.bus.subs[s.id]; ok {
		delete(s.bus.subs, s.id)
		close(s.sub.ch)
	}
}

// Publish delivers the event to every subscriber without blocking.
func (b *Bus) Publish(ev domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		s.offer(ev)
	}
}

// Subscribers returns the current number of consumers.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// offer enqueues ev, or on a full buffer drops the oldest entry and folds the
// loss into a lagged marker so the consumer knows to resync by cursor.
func (s *subscriber) offer(ev domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case s.ch <- ev:
		return
	default:
	}

	missed := int64(1) // the event being published is lost
	select {
	case old := <-s.ch:
		if old.Kind == domain.EventLagged {
			if lag, ok := old.Payload.(domain.Lag); ok {
				missed += lag.Missed
			}
		} else {
			missed++
		}
	default:
	}

	select {
	case s.ch <- domain.NewLagged(missed):
	default:
	}
}

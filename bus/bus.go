// Package bus is brewcore's typed, lag-tolerant publish/subscribe core.
// Every hardware action and every input to the brew state machine travels
// as an event.SystemEvent value on this bus — the machine never holds a
// reference to a driver, it only produces events.
//
// The concurrency shape is a mutex-guarded subscriber set with
// non-blocking per-subscriber channels and drop-oldest-then-retry on
// overflow, plus a lag counter so a slow subscriber is told it missed
// events instead of silently falling behind.
package bus

import (
	"sync"
	"sync/atomic"

	"brewcore/event"
)

const (
	// DefaultCapacity is the minimum per-subscriber channel capacity.
	DefaultCapacity = 64
)

// Filter decides whether a subscriber wants a given event. A nil Filter
// accepts everything.
type Filter func(event.SystemEvent) bool

// Subscription is a live filtered view onto the bus.
type Subscription struct {
	bus    *Bus
	ch     chan event.SystemEvent
	filter Filter
	lagged atomic.Uint64
	closed atomic.Bool
}

// Channel returns the channel to receive events on.
func (s *Subscription) Channel() <-chan event.SystemEvent { return s.ch }

// Lagged returns the number of events dropped for this subscriber since
// the last call, resetting the counter to zero. A non-zero return means
// the subscriber fell behind and observed a gap in the event stream.
func (s *Subscription) Lagged() uint64 { return s.lagged.Swap(0) }

// Unsubscribe removes the subscription and closes its channel. Safe to
// call more than once.
func (s *Subscription) Unsubscribe() { s.bus.unsubscribe(s) }

// Bus is a multi-producer, multi-consumer typed event broadcaster.
// Ordering is FIFO per subscriber: a single publish call
// delivers to every current subscriber before returning. The order in
// which different subscribers receive one event is not defined.
type Bus struct {
	mu       sync.RWMutex
	subs     map[*Subscription]struct{}
	capacity int
}

// New returns a Bus with the given per-subscriber channel capacity,
// coerced up to DefaultCapacity if smaller or zero.
func New(capacity int) *Bus {
	if capacity < DefaultCapacity {
		capacity = DefaultCapacity
	}
	return &Bus{subs: make(map[*Subscription]struct{}), capacity: capacity}
}

// Subscribe registers a new subscription. A nil filter receives every
// event published after this call.
func (b *Bus) Subscribe(filter Filter) *Subscription {
	sub := &Subscription{
		bus:    b,
		ch:     make(chan event.SystemEvent, b.capacity),
		filter: filter,
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// SubscriberCount reports how many live subscriptions the bus holds.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish delivers evt to every matching subscriber without blocking.
// A subscriber whose channel is full has its oldest undelivered event
// dropped and its lag counter incremented, then the new event is
// enqueued.
func (b *Bus) Publish(evt event.SystemEvent) {
	b.mu.RLock()
	targets := make([]*Subscription, 0, len(b.subs))
	for s := range b.subs {
		if s.filter == nil || s.filter(evt) {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range targets {
		deliver(s, evt)
	}
}

func deliver(s *Subscription, evt event.SystemEvent) {
	select {
	case s.ch <- evt:
		return
	default:
	}
	// Channel full: drop the oldest queued event, then retry once. If a
	// concurrent receiver drained it first, the retry still succeeds.
	select {
	case <-s.ch:
		s.lagged.Add(1)
	default:
	}
	select {
	case s.ch <- evt:
	default:
		// Receiver raced us and refilled the channel; count this event
		// as lagged too rather than blocking the publisher.
		s.lagged.Add(1)
	}
}

func (b *Bus) unsubscribe(s *Subscription) {
	if s.closed.Swap(true) {
		return
	}
	b.mu.Lock()
	delete(b.subs, s)
	b.mu.Unlock()
	close(s.ch)
}

package events

import (
	"context"
	"sync"
)

const subscriberBuffer = 16

// Broker fans changes out to in-process subscribers such as SSE streams.
// Publishing never blocks: a subscriber whose buffer is full misses the
// change, and catches up on the next one since every change means refetch.
type Broker struct {
	mu     sync.RWMutex
	subs   map[uint64]chan Change
	nextID uint64
	closed bool
}

func NewBroker() *Broker {
	return &Broker{subs: map[uint64]chan Change{}}
}

// Subscribe returns a channel of changes and a func that releases it. The
// channel is closed on release or when the broker closes.
func (b *Broker) Subscribe() (<-chan Change, func()) {
	ch := make(chan Change, subscriberBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (b *Broker) Publish(_ context.Context, c Change) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- c:
		default:
		}
	}
	return nil
}

func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close ends every subscription. Streams reading from the broker see their
// channel close and return, which lets the HTTP server drain.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

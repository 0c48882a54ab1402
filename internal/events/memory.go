package events

import (
	"context"
	"sync"
)

// subscriberBuffer is how many undelivered events a subscriber may hold.
// Counts supersede each other, so when it fills the oldest one is dropped.
const subscriberBuffer = 8

type subscriber struct {
	ch chan CountChanged
}

// MemoryBus fans events out to subscribers in this process.
// Publish never blocks on a slow subscriber.
type MemoryBus struct {
	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{}
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string]map[*subscriber]struct{})}
}

func (b *MemoryBus) Publish(_ context.Context, e CountChanged) error {
	b.deliver(e)
	return nil
}

func (b *MemoryBus) deliver(e CountChanged) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for s := range b.subs[e.OwnerID] {
		select {
		case s.ch <- e:
			continue
		default:
		}
		// Full: drop the oldest and retry once.
		select {
		case <-s.ch:
		default:
		}
		select {
		case s.ch <- e:
		default:
		}
	}
}

func (b *MemoryBus) Subscribe(ownerID string) (<-chan CountChanged, func()) {
	s := &subscriber{ch: make(chan CountChanged, subscriberBuffer)}

	b.mu.Lock()
	if b.subs[ownerID] == nil {
		b.subs[ownerID] = make(map[*subscriber]struct{})
	}
	b.subs[ownerID][s] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[ownerID], s)
			if len(b.subs[ownerID]) == 0 {
				delete(b.subs, ownerID)
			}
			b.mu.Unlock()
			close(s.ch)
		})
	}
	return s.ch, cancel
}

// Subscribers returns the number of live subscriptions for ownerID.
func (b *MemoryBus) Subscribers(ownerID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[ownerID])
}

package eventbus

import (
	"sync"

	"github.com/raritone/session-backend/pkg/types"
)

// Kind labels the event streams carried by the bus.
type Kind string

const (
	KindCartChanged     Kind = "cart.changed"
	KindWishlistChanged Kind = "wishlist.changed"
	KindAuthChanged     Kind = "auth.changed"
)

// Event is one announcement on the bus, scoped to a session.
type Event struct {
	Kind      Kind
	SessionID string
	Snapshot  types.Snapshot
}

// Handler receives events. Handlers run synchronously on the publisher's
// goroutine, so they must not block.
type Handler func(Event)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus is a single-process, synchronous, ordered publish/subscribe channel.
// Publish returns only after every subscriber registered at publish time has
// run, in subscription order, so two rapid mutations can never be observed
// out of order. Cross-process fan-out is explicitly not this bus's job.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string][]subscription
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{subs: map[string][]subscription{}}
}

// Subscribe registers a handler for every event of the given session and
// returns the unsubscribe handle. Unsubscribing twice is a no-op.
func (b *Bus) Subscribe(sessionID string, handler Handler) func() {
	if handler == nil {
		return func() {}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[sessionID] = append(b.subs[sessionID], subscription{id: id, handler: handler})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.unsubscribe(sessionID, id)
		})
	}
}

// Publish delivers the event to all current subscribers of its session
// before returning. The subscriber list is copied under the lock so handlers
// may subscribe or unsubscribe without deadlocking.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	current := make([]subscription, len(b.subs[event.SessionID]))
	copy(current, b.subs[event.SessionID])
	b.mu.RUnlock()

	for _, sub := range current {
		sub.handler(event)
	}
}

// SubscriberCount reports how many handlers are registered for a session.
func (b *Bus) SubscriberCount(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[sessionID])
}

func (b *Bus) unsubscribe(sessionID string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[sessionID]
	for i, sub := range subs {
		if sub.id == id {
			b.subs[sessionID] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subs[sessionID]) == 0 {
		delete(b.subs, sessionID)
	}
}

package eventbus

import (
	"testing"

	"github.com/raritone/session-backend/pkg/types"
)

func TestPublishDeliversSynchronouslyInOrder(t *testing.T) {
	t.Parallel()

	bus := New()
	var seen []string

	bus.Subscribe("sess-1", func(e Event) {
		seen = append(seen, "first:"+string(e.Kind))
	})
	bus.Subscribe("sess-1", func(e Event) {
		seen = append(seen, "second:"+string(e.Kind))
	})

	bus.Publish(Event{Kind: KindCartChanged, SessionID: "sess-1"})
	bus.Publish(Event{Kind: KindWishlistChanged, SessionID: "sess-1"})

	want := []string{
		"first:cart.changed",
		"second:cart.changed",
		"first:wishlist.changed",
		"second:wishlist.changed",
	}
	if len(seen) != len(want) {
		t.Fatalf("expected %d deliveries, got %d: %v", len(want), len(seen), seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("delivery %d: expected %q, got %q", i, want[i], seen[i])
		}
	}
}

func TestPublishIsSessionScoped(t *testing.T) {
	t.Parallel()

	bus := New()
	delivered := 0
	bus.Subscribe("sess-1", func(Event) { delivered++ })

	bus.Publish(Event{Kind: KindCartChanged, SessionID: "sess-2"})
	if delivered != 0 {
		t.Fatal("event for another session must not be delivered")
	}

	bus.Publish(Event{Kind: KindCartChanged, SessionID: "sess-1"})
	if delivered != 1 {
		t.Fatalf("expected exactly one delivery, got %d", delivered)
	}
}

func TestUnsubscribeStopsDeliveryAndIsIdempotent(t *testing.T) {
	t.Parallel()

	bus := New()
	delivered := 0
	unsubscribe := bus.Subscribe("sess-1", func(Event) { delivered++ })

	bus.Publish(Event{Kind: KindCartChanged, SessionID: "sess-1"})
	unsubscribe()
	unsubscribe()
	bus.Publish(Event{Kind: KindCartChanged, SessionID: "sess-1"})

	if delivered != 1 {
		t.Fatalf("expected 1 delivery, got %d", delivered)
	}
	if bus.SubscriberCount("sess-1") != 0 {
		t.Fatal("expected empty subscriber list")
	}
}

func TestHandlerMayUnsubscribeDuringPublish(t *testing.T) {
	t.Parallel()

	bus := New()
	var unsubscribe func()
	delivered := 0
	unsubscribe = bus.Subscribe("sess-1", func(Event) {
		delivered++
		unsubscribe()
	})

	bus.Publish(Event{Kind: KindCartChanged, SessionID: "sess-1", Snapshot: types.Snapshot{}})
	bus.Publish(Event{Kind: KindCartChanged, SessionID: "sess-1"})

	if delivered != 1 {
		t.Fatalf("expected 1 delivery, got %d", delivered)
	}
}

package channels

import (
	"testing"

	"github.com/hivemindhq/hivemind/internal/types"
)

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	h := NewHub()
	sub1 := h.Subscribe("tasks")
	sub2 := h.Subscribe("tasks")

	h.Publish("tasks", "created", map[string]int{"id": 1})

	for _, sub := range []*Subscription{sub1, sub2} {
		select {
		case ev := <-sub.Events():
			if ev.Type != "created" {
				t.Errorf("expected event type created, got %s", ev.Type)
			}
		default:
			t.Fatalf("expected subscriber to receive published event")
		}
	}
}

func TestPublishDoesNotBlockOnFullSubscriberBuffer(t *testing.T) {
	h := NewHub()
	slow := h.Subscribe("tasks")

	for i := 0; i < bufferSize+10; i++ {
		h.Publish("tasks", "progress", i)
	}

	stats := h.StatsFor("tasks")
	if stats.Delivered != bufferSize {
		t.Errorf("expected %d delivered before buffer filled, got %d", bufferSize, stats.Delivered)
	}
	if stats.Dropped != 10 {
		t.Errorf("expected 10 dropped once buffer filled, got %d", stats.Dropped)
	}

	slow.Unsubscribe()
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe("agents")
	sub.Unsubscribe()

	h.Publish("agents", "online", nil)

	stats := h.StatsFor("agents")
	if stats.Subscribers != 0 {
		t.Fatalf("expected no subscribers after unsubscribe, got %d", stats.Subscribers)
	}
}

func TestMemoryChannelNaming(t *testing.T) {
	if got := MemoryChannel("user-1"); got != "user:user-1" {
		t.Errorf("expected per-user channel name 'user:user-1', got %q", got)
	}
	if GlobalChannel != "global" {
		t.Errorf("expected global channel name 'global', got %q", GlobalChannel)
	}
}

func TestRegisterAndLookupChannel(t *testing.T) {
	h := NewHub()
	h.Register(types.Channel{Name: "custom", Type: types.ChannelPublic})

	ch, ok := h.Lookup("custom")
	if !ok {
		t.Fatalf("expected registered channel to be found")
	}
	if ch.Type != types.ChannelPublic {
		t.Errorf("unexpected channel type: %s", ch.Type)
	}

	if _, ok := h.Lookup("unregistered"); ok {
		t.Fatalf("expected lookup of unregistered channel to fail")
	}
}

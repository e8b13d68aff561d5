// Package channels is the pub/sub hub memories, tasks, and agents
// publish onto so connected clients can follow activity live. Ground:
// cuemby-warren's pkg/events/events.go Broker (named topics, a
// subscriber channel per listener, non-blocking publish via
// select/default so one slow subscriber can't stall the bus),
// improved with per-subscriber lag/drop counters the warren broker
// does not keep.
package channels

import (
	"sync"
	"time"

	"github.com/hivemindhq/hivemind/internal/types"
)

// bufferSize is the per-subscriber channel capacity. A subscriber that
// falls this far behind starts dropping events rather than blocking
// the publisher.
const bufferSize = 256

// Event is one message delivered to subscribers of a channel.
type Event struct {
	Channel   string      `json:"channel"`
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// Subscription is a live listener's handle on a channel.
type Subscription struct {
	id      int64
	channel string
	events  chan Event
	hub     *Hub
}

// Events returns the channel to range over for delivered events.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Unsubscribe removes the subscription and closes its channel. Safe to
// call more than once.
func (s *Subscription) Unsubscribe() {
	s.hub.unsubscribe(s)
}

type subscriberState struct {
	sub      *Subscription
	delivered int64
	dropped   int64
}

// Stats reports liveness for one named channel.
type Stats struct {
	Channel     string
	Subscribers int
	Delivered   int64
	Dropped     int64
}

// Hub fans events out to subscribers of named channels. Channels are
// created implicitly on first subscribe (publishing to a channel with
// no subscribers creates nothing) and dropped when their last
// subscriber unsubscribes.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*subscriberState
	nextID      int64
	registry    map[string]*types.Channel
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]map[int64]*subscriberState),
		registry:    make(map[string]*types.Channel),
	}
}

// Register records channel metadata (type, description, owner) for
// later lookup. Purely informational: Subscribe/Publish work on any
// channel name whether or not it has been registered.
func (h *Hub) Register(ch types.Channel) *types.Channel {
	h.mu.Lock()
	defer h.mu.Unlock()
	clone := ch.Clone()
	h.registry[ch.Name] = clone
	return clone.Clone()
}

func (h *Hub) Lookup(name string) (*types.Channel, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ch, ok := h.registry[name]
	if !ok {
		return nil, false
	}
	return ch.Clone(), true
}

func (h *Hub) ListRegistered() []*types.Channel {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*types.Channel, 0, len(h.registry))
	for _, ch := range h.registry {
		out = append(out, ch.Clone())
	}
	return out
}

// Subscribe returns a new subscription to channel name.
func (h *Hub) Subscribe(name string) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscription{
		id:      h.nextID,
		channel: name,
		events:  make(chan Event, bufferSize),
		hub:     h,
	}

	if h.subscribers[name] == nil {
		h.subscribers[name] = make(map[int64]*subscriberState)
	}
	h.subscribers[name][sub.id] = &subscriberState{sub: sub}
	return sub
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.subscribers[sub.channel]
	if !ok {
		return
	}
	if state, ok := subs[sub.id]; ok {
		close(state.sub.events)
		delete(subs, sub.id)
	}
	if len(subs) == 0 {
		delete(h.subscribers, sub.channel)
	}
}

// Publish delivers an event to every current subscriber of channel
// without blocking: a subscriber whose buffer is full has the event
// dropped and its drop counter incremented, rather than stalling the
// publisher for every other subscriber.
func (h *Hub) Publish(channel, eventType string, payload interface{}) {
	event := Event{Channel: channel, Type: eventType, Payload: payload, Timestamp: time.Now().UTC()}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, state := range h.subscribers[channel] {
		select {
		case state.sub.events <- event:
			state.delivered++
		default:
			state.dropped++
		}
	}
}

// StatsFor reports delivery/drop counts for one channel's subscribers.
func (h *Hub) StatsFor(channel string) Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := Stats{Channel: channel}
	for _, state := range h.subscribers[channel] {
		stats.Subscribers++
		stats.Delivered += state.delivered
		stats.Dropped += state.dropped
	}
	return stats
}

// AllStats reports delivery/drop counts for every channel with at
// least one subscriber.
func (h *Hub) AllStats() []Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Stats, 0, len(h.subscribers))
	for channel, states := range h.subscribers {
		stats := Stats{Channel: channel}
		for _, state := range states {
			stats.Subscribers++
			stats.Delivered += state.delivered
			stats.Dropped += state.dropped
		}
		out = append(out, stats)
	}
	return out
}

// MemoryChannel derives the per-user channel name a memory event
// publishes to. Every memory-added/updated/invalidated event also
// publishes to GlobalChannel regardless of user_id.
func MemoryChannel(userID string) string {
	return "user:" + userID
}

// GlobalChannel is the shared channel every memory-added/updated/
// invalidated event publishes to in addition to its per-user channel.
const GlobalChannel = "global"

// TaskChannel is the single shared channel task lifecycle events
// publish to; subscribers filter by assigned agent client-side.
const TaskChannel = "tasks"

// AgentChannel is the shared channel agent presence events publish to.
const AgentChannel = "agents"

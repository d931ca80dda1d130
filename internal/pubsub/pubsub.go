// Package pubsub implements the per-channel and per-pattern fan-out
// registry (component E): PUBLISH fans out to every current subscriber
// and returns the count reached (spec §5, §6).
package pubsub

import (
	"sync"

	"github.com/google/uuid"
)

// Message is one delivered publication.
type Message struct {
	Channel string
	Pattern string // non-empty only for pattern-matched deliveries
	Payload []byte
}

type subscriber struct {
	id uuid.UUID
	ch chan Message
}

// Registry tracks channel and pattern subscriptions across all
// connections. The zero value is not usable; construct with New.
type Registry struct {
	mu       sync.RWMutex
	channels map[string][]subscriber
	patterns map[string][]subscriber
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{ //nolint:exhaustruct
		channels: make(map[string][]subscriber),
		patterns: make(map[string][]subscriber),
	}
}

// Subscription is a live handle a connection reads delivered messages
// from and uses to unsubscribe.
type Subscription struct {
	id uuid.UUID
	ch chan Message
}

// Messages returns the channel the owning connection should select on.
func (s *Subscription) Messages() <-chan Message {
	return s.ch
}

// Subscribe registers interest in channel, returning a handle whose
// Messages() channel receives every future PUBLISH to it.
func (r *Registry) Subscribe(channel string) *Subscription {
	sub := subscriber{id: uuid.New(), ch: make(chan Message, 64)}

	r.mu.Lock()
	r.channels[channel] = append(r.channels[channel], sub)
	r.mu.Unlock()

	return &Subscription{id: sub.id, ch: sub.ch}
}

// PSubscribe registers interest in a glob pattern.
func (r *Registry) PSubscribe(pattern string) *Subscription {
	sub := subscriber{id: uuid.New(), ch: make(chan Message, 64)}

	r.mu.Lock()
	r.patterns[pattern] = append(r.patterns[pattern], sub)
	r.mu.Unlock()

	return &Subscription{id: sub.id, ch: sub.ch}
}

// Unsubscribe removes a channel subscription.
func (r *Registry) Unsubscribe(channel string, s *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.channels[channel] = removeSub(r.channels[channel], s.id)
	if len(r.channels[channel]) == 0 {
		delete(r.channels, channel)
	}
}

// PUnsubscribe removes a pattern subscription.
func (r *Registry) PUnsubscribe(pattern string, s *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.patterns[pattern] = removeSub(r.patterns[pattern], s.id)
	if len(r.patterns[pattern]) == 0 {
		delete(r.patterns, pattern)
	}
}

func removeSub(subs []subscriber, id uuid.UUID) []subscriber {
	out := subs[:0]

	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}

	return out
}

// Publish delivers payload to every channel subscriber and every pattern
// subscriber whose pattern matches channel, returning the total receiver
// count (a receiver counted once per distinct subscription, matching
// Redis's PUBLISH return value semantics).
func (r *Registry) Publish(channel string, payload []byte) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0

	for _, sub := range r.channels[channel] {
		deliver(sub.ch, Message{Channel: channel, Pattern: "", Payload: payload})
		count++
	}

	for pattern, subs := range r.patterns {
		if !globMatch(pattern, channel) {
			continue
		}

		for _, sub := range subs {
			deliver(sub.ch, Message{Channel: channel, Pattern: pattern, Payload: payload})
			count++
		}
	}

	return count
}

// Channels returns the names of channels with at least one subscriber,
// optionally filtered by a glob pattern (empty pattern means all).
func (r *Registry) Channels(pattern string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.channels))

	for ch := range r.channels {
		if pattern == "" || globMatch(pattern, ch) {
			out = append(out, ch)
		}
	}

	return out
}

// NumSub returns the subscriber count for a single channel.
func (r *Registry) NumSub(channel string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.channels[channel])
}

// NumPat returns the total number of distinct pattern subscriptions.
func (r *Registry) NumPat() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, subs := range r.patterns {
		n += len(subs)
	}

	return n
}

func deliver(ch chan Message, msg Message) {
	select {
	case ch <- msg:
	default:
		// Slow receiver: drop rather than block PUBLISH.
	}
}

// Package session implements the per-connection state machine
// (component F): normal / transaction / subscribed modes, WATCH/MULTI/
// EXEC bookkeeping, and the watched-key version snapshot used for
// optimistic concurrency (spec §4.3).
package session

import (
	"github.com/go-redlite/redlite/internal/pubsub"
)

// Mode is one of the three connection-state variants (spec §4.3).
type Mode int

const (
	ModeNormal Mode = iota
	ModeTransaction
	ModeSubscribed
)

// QueuedCommand is one command buffered while in Transaction mode.
type QueuedCommand struct {
	Name string
	Args [][]byte
}

// WatchedKey pairs a key name with its version at WATCH time.
type WatchedKey struct {
	DB      int
	Key     string
	Version int64
}

// Session holds one connection's mutable state. Not safe for concurrent
// use from multiple goroutines — a connection is served by exactly one
// task (spec §5).
type Session struct {
	Mode Mode
	DB   int

	Authenticated bool

	// Transaction mode.
	Queue []QueuedCommand

	// Watched keys, carried from Normal into Transaction and back (spec
	// §4.3: DISCARD retains them per this spec's chosen semantics; EXEC
	// always clears them).
	Watched []WatchedKey

	// Subscribed mode.
	Channels map[string]*pubsub.Subscription
	Patterns map[string]*pubsub.Subscription

	// Connection identity, surfaced by CLIENT LIST/GETNAME/SETNAME.
	ID   string
	Name string
}

// New constructs a fresh Normal-mode session for db 0.
func New(id string) *Session {
	return &Session{ //nolint:exhaustruct
		Mode:     ModeNormal,
		DB:       0,
		Channels: make(map[string]*pubsub.Subscription),
		Patterns: make(map[string]*pubsub.Subscription),
		ID:       id,
	}
}

// Multi transitions Normal -> Transaction. Returns false if not in
// Normal mode (MULTI nested, or issued while Subscribed).
func (s *Session) Multi() bool {
	if s.Mode != ModeNormal {
		return false
	}

	s.Mode = ModeTransaction
	s.Queue = nil

	return true
}

// Discard transitions Transaction -> Normal, dropping the queue but
// retaining watched keys (spec §4.3's chosen semantics). Returns false if
// not in Transaction mode.
func (s *Session) Discard() bool {
	if s.Mode != ModeTransaction {
		return false
	}

	s.Mode = ModeNormal
	s.Queue = nil

	return true
}

// Enqueue appends a command to the transaction queue. Only valid in
// Transaction mode.
func (s *Session) Enqueue(name string, args [][]byte) {
	s.Queue = append(s.Queue, QueuedCommand{Name: name, Args: args})
}

// ExecBegin transitions Transaction -> Normal unconditionally (spec
// §4.3: EXEC always clears both queue and watched keys), returning the
// drained queue for the caller to execute.
func (s *Session) ExecBegin() []QueuedCommand {
	queue := s.Queue

	s.Mode = ModeNormal
	s.Queue = nil
	s.Watched = nil

	return queue
}

// Watch records a key's captured version. Only valid in Normal mode.
func (s *Session) Watch(db int, key string, version int64) {
	s.Watched = append(s.Watched, WatchedKey{DB: db, Key: key, Version: version})
}

// Unwatch clears all watched keys, in any mode.
func (s *Session) Unwatch() {
	s.Watched = nil
}

// EnterSubscribed transitions Normal -> Subscribed.
func (s *Session) EnterSubscribed() {
	if s.Mode == ModeNormal {
		s.Mode = ModeSubscribed
	}
}

// LeaveSubscribedIfEmpty transitions Subscribed -> Normal once both
// channel and pattern subscription sets are empty (spec §4.3).
func (s *Session) LeaveSubscribedIfEmpty() {
	if s.Mode == ModeSubscribed && len(s.Channels) == 0 && len(s.Patterns) == 0 {
		s.Mode = ModeNormal
	}
}

// SubscriptionCount returns the total channel+pattern subscription
// count, the number SUBSCRIBE/UNSUBSCRIBE replies include.
func (s *Session) SubscriptionCount() int {
	return len(s.Channels) + len(s.Patterns)
}

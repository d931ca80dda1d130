// Package notify implements the blocking-wait notifier (component D):
// a per-key broadcast hint used to wake connection tasks suspended in
// BLPOP/BRPOP/XREAD BLOCK/XREADGROUP BLOCK (spec §5).
//
// The notifier is a hint, not a queue (spec §9): a lost wake-up is
// tolerable because every wakened waiter re-polls the storage layer
// directly. This lets the broadcast channel be closed and replaced on
// every publish rather than tracking individual subscribers.
package notify

import (
	"context"
	"sync"
)

// dbKey identifies one logical key within one of the 16 databases.
type dbKey struct {
	db  int
	key string
}

// Hub fans out per-key change signals. The zero value is not usable;
// construct with New.
type Hub struct {
	mu      sync.Mutex
	waiters map[dbKey]chan struct{}
}

// New constructs an empty Hub.
func New() *Hub {
	return &Hub{ //nolint:exhaustruct
		waiters: make(map[dbKey]chan struct{}),
	}
}

// Publish signals any waiters registered on (db, key). Called after
// every successful write to a list or stream key (spec §5).
func (h *Hub) Publish(db int, key string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	k := dbKey{db: db, key: key}
	if ch, ok := h.waiters[k]; ok {
		close(ch)
		delete(h.waiters, k)
	}
}

// Wait blocks until (db, key) is published, ctx is done, or deadline
// elapses (a zero deadline from the caller's perspective is handled by
// passing a context with no deadline — BLOCK 0 semantics belong to the
// caller). Returns true if woken by a publish, false on context
// cancellation.
func (h *Hub) Wait(ctx context.Context, db int, key string) bool {
	h.mu.Lock()

	k := dbKey{db: db, key: key}

	ch, ok := h.waiters[k]
	if !ok {
		ch = make(chan struct{})
		h.waiters[k] = ch
	}

	h.mu.Unlock()

	select {
	case <-ch:
		return true
	case <-ctx.Done():
		return false
	}
}

// WaitAny blocks until any of keys in db is published, ctx is done, or
// the deadline in ctx elapses. Returns the key that woke it, or "" on
// cancellation. Used by BLPOP/BRPOP/XREAD BLOCK with multiple keys.
func (h *Hub) WaitAny(ctx context.Context, db int, keys []string) string {
	if len(keys) == 0 {
		<-ctx.Done()

		return ""
	}

	type signal struct {
		key string
	}

	woken := make(chan signal, len(keys))

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup

	for _, key := range keys {
		wg.Add(1)

		go func(key string) {
			defer wg.Done()

			if h.Wait(subCtx, db, key) {
				select {
				case woken <- signal{key: key}:
				default:
				}

				cancel()
			}
		}(key)
	}

	done := make(chan struct{})

	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case s := <-woken:
		<-done

		return s.key
	case <-ctx.Done():
		<-done

		return ""
	}
}

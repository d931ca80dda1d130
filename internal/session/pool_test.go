package session_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/go-redlite/redlite/internal/session"
)

func TestPoolRegisterListRemove(t *testing.T) {
	pool := session.NewPool()
	sess := session.New("conn-1")

	pool.Register("conn-1", sess, "127.0.0.1:1111")

	entries := pool.List()
	require.Len(t, entries, 1)
	require.Equal(t, "127.0.0.1:1111", entries[0].Addr)

	pool.Remove("conn-1")
	require.Empty(t, pool.List())
}

func TestPoolListFiltersByID(t *testing.T) {
	pool := session.NewPool()
	pool.Register("a", session.New("a"), "addr-a")
	pool.Register("b", session.New("b"), "addr-b")

	entries := pool.List("b")
	require.Len(t, entries, 1)
	require.Equal(t, "addr-b", entries[0].Addr)
}

func TestPoolKillSignalsEntry(t *testing.T) {
	pool := session.NewPool()
	entry := pool.Register("conn-1", session.New("conn-1"), "addr")

	require.True(t, pool.Kill("conn-1"))

	select {
	case <-entry.Kill:
	default:
		t.Fatal("expected Kill channel to be closed")
	}

	require.False(t, pool.Kill("unknown-id"))
}

func TestPoolPauseUnpause(t *testing.T) {
	pool := session.NewPool()

	require.Equal(t, time.Duration(0), pool.PauseRemaining())

	pool.Pause(100)
	require.Greater(t, pool.PauseRemaining(), time.Duration(0))

	pool.Unpause()
	require.Equal(t, time.Duration(0), pool.PauseRemaining())
}

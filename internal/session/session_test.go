package session_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-redlite/redlite/internal/session"
)

func TestMultiDiscardRetainsWatchedKeys(t *testing.T) {
	sess := session.New("conn")

	sess.Watch(0, "foo", 1)
	require.True(t, sess.Multi())
	require.Equal(t, session.ModeTransaction, sess.Mode)

	sess.Enqueue("SET", [][]byte{[]byte("foo"), []byte("bar")})
	require.Len(t, sess.Queue, 1)

	require.True(t, sess.Discard())
	require.Equal(t, session.ModeNormal, sess.Mode)
	require.Empty(t, sess.Queue)
	require.Len(t, sess.Watched, 1, "DISCARD retains watched keys per this server's chosen semantics")
}

func TestMultiNestedReturnsFalse(t *testing.T) {
	sess := session.New("conn")

	require.True(t, sess.Multi())
	require.False(t, sess.Multi())
}

func TestExecBeginClearsQueueAndWatched(t *testing.T) {
	sess := session.New("conn")

	sess.Watch(0, "foo", 1)
	sess.Multi()
	sess.Enqueue("GET", [][]byte{[]byte("foo")})

	queue := sess.ExecBegin()
	require.Len(t, queue, 1)
	require.Equal(t, "GET", queue[0].Name)
	require.Equal(t, session.ModeNormal, sess.Mode)
	require.Empty(t, sess.Queue)
	require.Empty(t, sess.Watched)
}

func TestSubscribedModeTransitions(t *testing.T) {
	sess := session.New("conn")

	sess.EnterSubscribed()
	require.Equal(t, session.ModeSubscribed, sess.Mode)

	sess.Channels["news"] = nil
	sess.LeaveSubscribedIfEmpty()
	require.Equal(t, session.ModeSubscribed, sess.Mode, "still subscribed to a channel")

	delete(sess.Channels, "news")
	sess.LeaveSubscribedIfEmpty()
	require.Equal(t, session.ModeNormal, sess.Mode)
}

func TestSubscriptionCount(t *testing.T) {
	sess := session.New("conn")

	sess.Channels["a"] = nil
	sess.Patterns["b*"] = nil

	require.Equal(t, 2, sess.SubscriptionCount())
}

package dispatch_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-redlite/redlite/internal/resp"
	"github.com/go-redlite/redlite/internal/session"
)

func TestMultiExecRunsQueuedCommands(t *testing.T) {
	d, sess := newTestDispatcher(t)

	requireSimple(t, "OK", do(d, sess, "MULTI"))
	requireSimple(t, "QUEUED", do(d, sess, "SET", "foo", "bar"))
	requireSimple(t, "QUEUED", do(d, sess, "GET", "foo"))

	reply := do(d, sess, "EXEC")
	require.Equal(t, resp.TypeArray, reply.Type)
	require.Len(t, reply.Array, 2)
	requireSimple(t, "OK", reply.Array[0])
	requireBulk(t, "bar", reply.Array[1])
}

func TestMultiNestedFails(t *testing.T) {
	d, sess := newTestDispatcher(t)

	requireSimple(t, "OK", do(d, sess, "MULTI"))
	requireErr(t, do(d, sess, "MULTI"))
}

func TestDiscardDropsQueue(t *testing.T) {
	d, sess := newTestDispatcher(t)

	requireSimple(t, "OK", do(d, sess, "MULTI"))
	requireSimple(t, "QUEUED", do(d, sess, "SET", "foo", "bar"))
	requireSimple(t, "OK", do(d, sess, "DISCARD"))

	// foo was never actually set.
	reply := do(d, sess, "GET", "foo")
	require.Equal(t, resp.TypeBulkString, reply.Type)
	require.True(t, reply.Null)
}

func TestWatchAbortsExecOnConcurrentModification(t *testing.T) {
	d, sess := newTestDispatcher(t)
	otherSess := session.New("other-conn")

	requireSimple(t, "OK", do(d, sess, "SET", "foo", "1"))
	requireSimple(t, "OK", do(d, sess, "WATCH", "foo"))
	requireSimple(t, "OK", do(d, sess, "MULTI"))
	requireSimple(t, "QUEUED", do(d, sess, "SET", "foo", "2"))

	// A different connection modifies the watched key before EXEC.
	requireSimple(t, "OK", do(d, otherSess, "SET", "foo", "3"))

	reply := do(d, sess, "EXEC")
	require.Equal(t, resp.TypeArray, reply.Type)
	require.True(t, reply.Null, "EXEC should abort with a null array after a watched key changed")
}

func TestWatchSurvivesDiscard(t *testing.T) {
	d, sess := newTestDispatcher(t)
	otherSess := session.New("other-conn")

	requireSimple(t, "OK", do(d, sess, "SET", "foo", "1"))
	requireSimple(t, "OK", do(d, sess, "WATCH", "foo"))

	// A MULTI/DISCARD cycle must not forget the watch.
	requireSimple(t, "OK", do(d, sess, "MULTI"))
	requireSimple(t, "QUEUED", do(d, sess, "SET", "foo", "2"))
	requireSimple(t, "OK", do(d, sess, "DISCARD"))

	// A different connection modifies the still-watched key.
	requireSimple(t, "OK", do(d, otherSess, "SET", "foo", "3"))

	requireSimple(t, "OK", do(d, sess, "MULTI"))
	requireSimple(t, "QUEUED", do(d, sess, "SET", "foo", "4"))

	reply := do(d, sess, "EXEC")
	require.True(t, reply.Null, "EXEC should abort: DISCARD must not have cleared the watch")
}

func TestUnwatchClearsWatchedKeys(t *testing.T) {
	d, sess := newTestDispatcher(t)

	requireSimple(t, "OK", do(d, sess, "SET", "foo", "1"))
	requireSimple(t, "OK", do(d, sess, "WATCH", "foo"))
	requireSimple(t, "OK", do(d, sess, "UNWATCH"))
	requireSimple(t, "OK", do(d, sess, "SET", "foo", "2"))

	requireSimple(t, "OK", do(d, sess, "MULTI"))
	requireSimple(t, "QUEUED", do(d, sess, "GET", "foo"))

	reply := do(d, sess, "EXEC")
	require.Equal(t, resp.TypeArray, reply.Type)
	require.Len(t, reply.Array, 1)
	requireBulk(t, "2", reply.Array[0])
}

package dispatch_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-redlite/redlite/internal/resp"
)

func TestXAddXLenXRange(t *testing.T) {
	d, sess := newTestDispatcher(t)

	id1 := do(d, sess, "XADD", "events", "*", "type", "login")
	require.Equal(t, resp.TypeBulkString, id1.Type)
	require.NotEmpty(t, string(id1.Bulk))

	id2 := do(d, sess, "XADD", "events", "*", "type", "logout")
	require.NotEqual(t, string(id1.Bulk), string(id2.Bulk))

	requireInt(t, 2, do(d, sess, "XLEN", "events"))

	reply := do(d, sess, "XRANGE", "events", "-", "+")
	require.Equal(t, resp.TypeArray, reply.Type)
	require.Len(t, reply.Array, 2)

	entry := reply.Array[0]
	require.Equal(t, resp.TypeArray, entry.Type)
	require.Len(t, entry.Array, 2) // [id, [field, value, ...]]
	requireBulk(t, string(id1.Bulk), entry.Array[0])
}

func TestXAddNoMkStreamOnMissingStream(t *testing.T) {
	d, sess := newTestDispatcher(t)

	reply := do(d, sess, "XADD", "nostream", "NOMKSTREAM", "*", "a", "b")
	require.True(t, reply.Null)
}

func TestXAddMaxLenTrimsAfterAppend(t *testing.T) {
	d, sess := newTestDispatcher(t)

	do(d, sess, "XADD", "events", "*", "a", "1")
	do(d, sess, "XADD", "events", "*", "a", "2")
	last := do(d, sess, "XADD", "events", "MAXLEN", "1", "*", "a", "3")

	requireInt(t, 1, do(d, sess, "XLEN", "events"))

	reply := do(d, sess, "XRANGE", "events", "-", "+")
	require.Len(t, reply.Array, 1)
	requireBulk(t, string(last.Bulk), reply.Array[0].Array[0])
}

func TestXAddMinIDTrimsAfterAppend(t *testing.T) {
	d, sess := newTestDispatcher(t)

	id1 := do(d, sess, "XADD", "events", "*", "a", "1")
	id2 := do(d, sess, "XADD", "events", "*", "a", "2")
	do(d, sess, "XADD", "events", "MINID", string(id2.Bulk), "*", "a", "3")

	requireInt(t, 2, do(d, sess, "XLEN", "events"))

	reply := do(d, sess, "XRANGE", "events", "-", "+")
	require.Len(t, reply.Array, 2)
	require.NotEqual(t, string(id1.Bulk), string(reply.Array[0].Array[0].Bulk))
}

func TestXGroupReadGroupAck(t *testing.T) {
	d, sess := newTestDispatcher(t)

	do(d, sess, "XADD", "events", "*", "k", "v")
	requireSimple(t, "OK", do(d, sess, "XGROUP", "CREATE", "events", "grp", "0"))

	reply := do(d, sess, "XREADGROUP", "GROUP", "grp", "consumer1", "COUNT", "10", "STREAMS", "events", ">")
	require.Equal(t, resp.TypeArray, reply.Type)
	require.Len(t, reply.Array, 1) // one stream

	stream := reply.Array[0]
	requireBulk(t, "events", stream.Array[0])

	entries := stream.Array[1]
	require.Len(t, entries.Array, 1)

	id := entries.Array[0].Array[0]

	requireInt(t, 1, do(d, sess, "XACK", "events", "grp", string(id.Bulk)))
}

func TestXDelAndTrim(t *testing.T) {
	d, sess := newTestDispatcher(t)

	id1 := do(d, sess, "XADD", "events", "*", "a", "1")
	do(d, sess, "XADD", "events", "*", "a", "2")
	do(d, sess, "XADD", "events", "*", "a", "3")

	requireInt(t, 1, do(d, sess, "XDEL", "events", string(id1.Bulk)))
	requireInt(t, 2, do(d, sess, "XLEN", "events"))

	requireInt(t, 1, do(d, sess, "XTRIM", "events", "MAXLEN", "1"))
	requireInt(t, 1, do(d, sess, "XLEN", "events"))
}

package dispatch_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-redlite/redlite/internal/resp"
)

func TestLPosSingleMatchReturnsInteger(t *testing.T) {
	d, sess := newTestDispatcher(t)

	requireInt(t, 5, do(d, sess, "RPUSH", "mylist", "a", "b", "c", "a", "a"))

	requireInt(t, 0, do(d, sess, "LPOS", "mylist", "a"))
}

func TestLPosCountReturnsArrayOfAllMatches(t *testing.T) {
	d, sess := newTestDispatcher(t)

	requireInt(t, 5, do(d, sess, "RPUSH", "mylist", "a", "b", "c", "a", "a"))

	reply := do(d, sess, "LPOS", "mylist", "a", "COUNT", "2")
	require.Equal(t, resp.TypeArray, reply.Type)
	require.Len(t, reply.Array, 2)
	requireInt(t, 0, reply.Array[0])
	requireInt(t, 3, reply.Array[1])
}

func TestLPosCountZeroReturnsEveryMatch(t *testing.T) {
	d, sess := newTestDispatcher(t)

	requireInt(t, 5, do(d, sess, "RPUSH", "mylist", "a", "b", "c", "a", "a"))

	reply := do(d, sess, "LPOS", "mylist", "a", "COUNT", "0")
	require.Equal(t, resp.TypeArray, reply.Type)
	require.Len(t, reply.Array, 3)
	requireInt(t, 0, reply.Array[0])
	requireInt(t, 3, reply.Array[1])
	requireInt(t, 4, reply.Array[2])
}

func TestLPosCountWithNoMatchesReturnsEmptyArray(t *testing.T) {
	d, sess := newTestDispatcher(t)

	requireInt(t, 1, do(d, sess, "RPUSH", "mylist", "a"))

	reply := do(d, sess, "LPOS", "mylist", "z", "COUNT", "1")
	require.Equal(t, resp.TypeArray, reply.Type)
	require.Empty(t, reply.Array)
}

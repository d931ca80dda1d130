package dispatch_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-redlite/redlite/internal/dispatch"
	"github.com/go-redlite/redlite/internal/resp"
	"github.com/go-redlite/redlite/internal/session"
)

func TestPingEchoSelect(t *testing.T) {
	d, sess := newTestDispatcher(t)

	requireSimple(t, "PONG", do(d, sess, "PING"))
	requireBulk(t, "hi", do(d, sess, "PING", "hi"))
	requireBulk(t, "hi", do(d, sess, "ECHO", "hi"))

	requireSimple(t, "OK", do(d, sess, "SELECT", "3"))
	require.Equal(t, 3, sess.DB)
	requireErr(t, do(d, sess, "SELECT", "16"))
}

func TestDBSizeFlushDB(t *testing.T) {
	d, sess := newTestDispatcher(t)

	do(d, sess, "SET", "a", "1")
	do(d, sess, "SET", "b", "2")
	requireInt(t, 2, do(d, sess, "DBSIZE"))

	requireSimple(t, "OK", do(d, sess, "FLUSHDB"))
	requireInt(t, 0, do(d, sess, "DBSIZE"))
}

func TestConfigGetSet(t *testing.T) {
	d, sess := newTestDispatcher(t)

	reply := do(d, sess, "CONFIG", "GET", "maxmemory-policy")
	require.Equal(t, resp.TypeArray, reply.Type)
	require.Len(t, reply.Array, 2)
	requireBulk(t, "maxmemory-policy", reply.Array[0])
	requireBulk(t, "noeviction", reply.Array[1])

	requireSimple(t, "OK", do(d, sess, "CONFIG", "SET", "maxmemory-policy", "allkeys-lru"))
	reply = do(d, sess, "CONFIG", "GET", "maxmemory-policy")
	requireBulk(t, "allkeys-lru", reply.Array[1])

	requireErr(t, do(d, sess, "CONFIG", "SET", "maxmemory-policy", "bogus"))
}

func TestMemoryUsage(t *testing.T) {
	d, sess := newTestDispatcher(t)

	do(d, sess, "SET", "a", "1")

	reply := do(d, sess, "MEMORY", "USAGE", "a")
	require.Equal(t, resp.TypeInteger, reply.Type)
	require.Greater(t, reply.Int, int64(0))

	reply = do(d, sess, "MEMORY", "USAGE", "missing")
	require.True(t, reply.Null)
}

func TestClientSetNameGetNameAndList(t *testing.T) {
	d, sess := newTestDispatcher(t)
	d.Pool.Register(sess.ID, sess, "127.0.0.1:1234")

	requireSimple(t, "OK", do(d, sess, "CLIENT", "SETNAME", "alice"))
	requireBulk(t, "alice", do(d, sess, "CLIENT", "GETNAME"))

	reply := do(d, sess, "CLIENT", "LIST")
	require.Equal(t, resp.TypeBulkString, reply.Type)
	require.True(t, strings.Contains(string(reply.Bulk), "name=alice"))
}

func TestAuthRequiredAndAccepted(t *testing.T) {
	d := dispatchWithPassword(t, "secret")
	sess := session.New("auth-conn")

	requireErr(t, do(d, sess, "GET", "a"))
	requireSimple(t, "PONG", do(d, sess, "PING")) // PING is noAuth

	requireErr(t, do(d, sess, "AUTH", "wrong"))
	requireSimple(t, "OK", do(d, sess, "AUTH", "secret"))
	require.True(t, sess.Authenticated)

	reply := do(d, sess, "GET", "a")
	require.Equal(t, resp.TypeBulkString, reply.Type)
}

func dispatchWithPassword(t *testing.T, password string) *dispatch.Dispatcher {
	t.Helper()

	d, _ := newTestDispatcher(t)
	d.Config = dispatch.NewConfig(password)

	return d
}

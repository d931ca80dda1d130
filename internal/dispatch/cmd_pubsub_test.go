package dispatch_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-redlite/redlite/internal/resp"
	"github.com/go-redlite/redlite/internal/session"
)

func TestSubscribePublishDelivers(t *testing.T) {
	d, sess := newTestDispatcher(t)
	pub := session.New("publisher")

	reply := do(d, sess, "SUBSCRIBE", "news")
	require.Equal(t, resp.TypeArray, reply.Type)
	require.Len(t, reply.Array, 1)
	requireBulk(t, "subscribe", reply.Array[0].Array[0])
	requireBulk(t, "news", reply.Array[0].Array[1])
	requireInt(t, 1, reply.Array[0].Array[2])

	sub, ok := sess.Channels["news"]
	require.True(t, ok)

	n := do(d, pub, "PUBLISH", "news", "hello")
	requireInt(t, 1, n)

	select {
	case msg := <-sub.Messages():
		require.Equal(t, "news", msg.Channel)
		require.Equal(t, "hello", string(msg.Payload))
	default:
		t.Fatal("expected a delivered message")
	}
}

func TestUnsubscribeAllWithNoArgs(t *testing.T) {
	d, sess := newTestDispatcher(t)

	do(d, sess, "SUBSCRIBE", "a", "b")
	require.Equal(t, 2, sess.SubscriptionCount())

	reply := do(d, sess, "UNSUBSCRIBE")
	require.Equal(t, resp.TypeArray, reply.Type)
	require.Len(t, reply.Array, 2)
	require.Equal(t, 0, sess.SubscriptionCount())
}

func TestPubSubChannelsAndNumSub(t *testing.T) {
	d, sess := newTestDispatcher(t)
	other := session.New("other")

	do(d, sess, "SUBSCRIBE", "a")
	do(d, other, "SUBSCRIBE", "a", "b")

	reply := do(d, sess, "PUBSUB", "CHANNELS")
	require.Equal(t, resp.TypeArray, reply.Type)
	require.Len(t, reply.Array, 2)

	reply = do(d, sess, "PUBSUB", "NUMSUB", "a", "b", "c")
	require.Equal(t, resp.TypeArray, reply.Type)
	require.Len(t, reply.Array, 6)
	requireBulk(t, "a", reply.Array[0])
	requireInt(t, 2, reply.Array[1])
	requireBulk(t, "b", reply.Array[2])
	requireInt(t, 1, reply.Array[3])
	requireBulk(t, "c", reply.Array[4])
	requireInt(t, 0, reply.Array[5])
}

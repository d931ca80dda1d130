package pubsub_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-redlite/redlite/internal/pubsub"
)

func TestSubscribePublishDelivery(t *testing.T) {
	r := pubsub.New()

	sub := r.Subscribe("news")

	n := r.Publish("news", []byte("hello"))
	require.Equal(t, 1, n)

	msg := <-sub.Messages()
	require.Equal(t, "news", msg.Channel)
	require.Empty(t, msg.Pattern)
	require.Equal(t, "hello", string(msg.Payload))
}

func TestPatternSubscribeMatches(t *testing.T) {
	r := pubsub.New()

	sub := r.PSubscribe("news.*")

	n := r.Publish("news.sports", []byte("goal"))
	require.Equal(t, 1, n)

	msg := <-sub.Messages()
	require.Equal(t, "news.sports", msg.Channel)
	require.Equal(t, "news.*", msg.Pattern)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	r := pubsub.New()

	sub := r.Subscribe("news")
	r.Unsubscribe("news", sub)

	n := r.Publish("news", []byte("hello"))
	require.Equal(t, 0, n)
}

func TestChannelsNumSubNumPat(t *testing.T) {
	r := pubsub.New()

	r.Subscribe("a")
	r.Subscribe("a")
	r.Subscribe("b")
	r.PSubscribe("x.*")
	r.PSubscribe("y.*")

	channels := r.Channels("")
	require.ElementsMatch(t, []string{"a", "b"}, channels)

	require.Equal(t, 2, r.NumSub("a"))
	require.Equal(t, 1, r.NumSub("b"))
	require.Equal(t, 0, r.NumSub("missing"))

	require.Equal(t, 2, r.NumPat())
}

func TestChannelsFilteredByPattern(t *testing.T) {
	r := pubsub.New()

	r.Subscribe("news.sports")
	r.Subscribe("news.weather")
	r.Subscribe("chat")

	channels := r.Channels("news.*")
	require.ElementsMatch(t, []string{"news.sports", "news.weather"}, channels)
}

package dispatch

import (
	"context"
	"strings"

	"github.com/go-redlite/redlite/internal/resp"
	"github.com/go-redlite/redlite/internal/session"
)

func init() { //nolint:gochecknoinits
	register(cmdSpec{name: "SUBSCRIBE", minArgs: 1, handler: cmdSubscribe})
	register(cmdSpec{name: "UNSUBSCRIBE", minArgs: 0, handler: cmdUnsubscribe})
	register(cmdSpec{name: "PSUBSCRIBE", minArgs: 1, handler: cmdPSubscribe})
	register(cmdSpec{name: "PUNSUBSCRIBE", minArgs: 0, handler: cmdPUnsubscribe})
	register(cmdSpec{name: "PUBLISH", minArgs: 2, handler: cmdPublish, queueable: true})
	register(cmdSpec{name: "PUBSUB", minArgs: 1, handler: cmdPubSub, queueable: true})
}

// cmdSubscribe registers interest in one or more channels, replying with
// one ["subscribe", channel, count] array per channel (spec §4.4). The
// connection's read loop (component H) is responsible for pumping each
// Subscription's Messages() channel into outbound "message" frames.
func cmdSubscribe(_ context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	sess.EnterSubscribed()

	replies := make([]resp.Value, 0, len(args))

	for _, raw := range args {
		channel := s(raw)

		if _, already := sess.Channels[channel]; !already {
			sess.Channels[channel] = d.PubSub.Subscribe(channel)
		}

		replies = append(replies, resp.Array(
			resp.BulkStr("subscribe"),
			resp.BulkStr(channel),
			resp.Int(int64(sess.SubscriptionCount())),
		))
	}

	return resp.Array(replies...)
}

func cmdUnsubscribe(_ context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	channels := strs(args)
	if len(channels) == 0 {
		for ch := range sess.Channels {
			channels = append(channels, ch)
		}
	}

	if len(channels) == 0 {
		// No channels subscribed at all: Redis still replies once with a
		// nil channel name.
		sess.LeaveSubscribedIfEmpty()

		return resp.Array(resp.Array(
			resp.BulkStr("unsubscribe"),
			resp.NullBulk(),
			resp.Int(int64(sess.SubscriptionCount())),
		))
	}

	replies := make([]resp.Value, 0, len(channels))

	for _, channel := range channels {
		if sub, ok := sess.Channels[channel]; ok {
			d.PubSub.Unsubscribe(channel, sub)
			delete(sess.Channels, channel)
		}

		replies = append(replies, resp.Array(
			resp.BulkStr("unsubscribe"),
			resp.BulkStr(channel),
			resp.Int(int64(sess.SubscriptionCount())),
		))
	}

	sess.LeaveSubscribedIfEmpty()

	return resp.Array(replies...)
}

func cmdPSubscribe(_ context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	sess.EnterSubscribed()

	replies := make([]resp.Value, 0, len(args))

	for _, raw := range args {
		pattern := s(raw)

		if _, already := sess.Patterns[pattern]; !already {
			sess.Patterns[pattern] = d.PubSub.PSubscribe(pattern)
		}

		replies = append(replies, resp.Array(
			resp.BulkStr("psubscribe"),
			resp.BulkStr(pattern),
			resp.Int(int64(sess.SubscriptionCount())),
		))
	}

	return resp.Array(replies...)
}

func cmdPUnsubscribe(_ context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	patterns := strs(args)
	if len(patterns) == 0 {
		for p := range sess.Patterns {
			patterns = append(patterns, p)
		}
	}

	if len(patterns) == 0 {
		sess.LeaveSubscribedIfEmpty()

		return resp.Array(resp.Array(
			resp.BulkStr("punsubscribe"),
			resp.NullBulk(),
			resp.Int(int64(sess.SubscriptionCount())),
		))
	}

	replies := make([]resp.Value, 0, len(patterns))

	for _, pattern := range patterns {
		if sub, ok := sess.Patterns[pattern]; ok {
			d.PubSub.PUnsubscribe(pattern, sub)
			delete(sess.Patterns, pattern)
		}

		replies = append(replies, resp.Array(
			resp.BulkStr("punsubscribe"),
			resp.BulkStr(pattern),
			resp.Int(int64(sess.SubscriptionCount())),
		))
	}

	sess.LeaveSubscribedIfEmpty()

	return resp.Array(replies...)
}

func cmdPublish(_ context.Context, d *Dispatcher, _ *session.Session, args [][]byte) resp.Value {
	n := d.PubSub.Publish(s(args[0]), args[1])

	return resp.Int(int64(n))
}

// cmdPubSub implements the PUBSUB introspection subcommands (spec §6):
// CHANNELS [pattern], NUMSUB [channel...], NUMPAT.
func cmdPubSub(_ context.Context, d *Dispatcher, _ *session.Session, args [][]byte) resp.Value {
	switch strings.ToUpper(s(args[0])) {
	case "CHANNELS":
		pattern := ""
		if len(args) >= 2 {
			pattern = s(args[1])
		}

		return stringArray(d.PubSub.Channels(pattern))
	case "NUMSUB":
		replies := make([]resp.Value, 0, (len(args)-1)*2)
		for _, ch := range args[1:] {
			replies = append(replies, resp.Bulk(ch), resp.Int(int64(d.PubSub.NumSub(s(ch)))))
		}

		return resp.Array(replies...)
	case "NUMPAT":
		return resp.Int(int64(d.PubSub.NumPat()))
	default:
		return resp.Err("ERR Unknown PUBSUB subcommand or wrong number of arguments")
	}
}

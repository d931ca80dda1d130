package dispatch

import (
	"context"

	"github.com/go-redlite/redlite/internal/resp"
	"github.com/go-redlite/redlite/internal/session"
)

func init() { //nolint:gochecknoinits
	register(cmdSpec{name: "MULTI", minArgs: 0, handler: cmdMulti})
	register(cmdSpec{name: "WATCH", minArgs: 1, handler: cmdWatch})
	register(cmdSpec{name: "DISCARD", minArgs: 0, handler: cmdDiscard})
	register(cmdSpec{name: "EXEC", minArgs: 0, handler: cmdExec})
	register(cmdSpec{name: "UNWATCH", minArgs: 0, handler: cmdUnwatch})
}

func cmdMulti(_ context.Context, _ *Dispatcher, sess *session.Session, _ [][]byte) resp.Value {
	if !sess.Multi() {
		return resp.Err("ERR MULTI calls can not be nested")
	}

	return resp.OK()
}

func cmdWatch(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	if sess.Mode != session.ModeNormal {
		return resp.Err("ERR WATCH inside MULTI is not allowed")
	}

	for _, raw := range args {
		key := s(raw)

		info, err := d.Store.KeyInfo(ctx, sess.DB, key)
		if err != nil {
			return errReply(err)
		}

		version := int64(0)
		if info != nil {
			version = info.Version
		}

		sess.Watch(sess.DB, key, version)
	}

	return resp.OK()
}

// DISCARD drops the queued commands but retains watched keys (spec §4.3,
// §9 Open Question: "Real Redis retains watched keys on DISCARD ... this
// spec makes the same choice"); only UNWATCH/EXEC clear them.
func cmdDiscard(_ context.Context, _ *Dispatcher, sess *session.Session, _ [][]byte) resp.Value {
	if !sess.Discard() {
		return resp.Err("ERR DISCARD without MULTI")
	}

	return resp.OK()
}

func cmdUnwatch(_ context.Context, _ *Dispatcher, sess *session.Session, _ [][]byte) resp.Value {
	sess.Unwatch()

	return resp.OK()
}

// cmdExec is invoked directly from dispatchQueued, which has already
// confirmed the session is in Transaction mode. It checks every watched
// key's version against its snapshot (spec §4.3's optimistic-concurrency
// rule), aborting with a null array on any mismatch, then replays the
// queued commands one at a time through the registry, bypassing mode
// routing since the session has already been returned to Normal mode by
// ExecBegin.
func cmdExec(ctx context.Context, d *Dispatcher, sess *session.Session, _ [][]byte) resp.Value {
	for _, w := range sess.Watched {
		info, err := d.Store.KeyInfo(ctx, w.DB, w.Key)
		if err != nil {
			return errReply(err)
		}

		version := int64(0)
		if info != nil {
			version = info.Version
		}

		if version != w.Version {
			sess.ExecBegin()

			return resp.NullArray()
		}
	}

	queue := sess.ExecBegin()

	out := make([]resp.Value, len(queue))

	for i, q := range queue {
		spec, ok := commands[q.Name]
		if !ok {
			out[i] = unknownCommand(q.Name, q.Args)

			continue
		}

		out[i] = spec.handler(ctx, d, sess, q.Args)
	}

	return resp.Array(out...)
}

package dispatch

import (
	"context"
	"strings"

	"github.com/go-redlite/redlite/internal/resp"
	"github.com/go-redlite/redlite/internal/session"
	"github.com/go-redlite/redlite/internal/storage"
)

func init() { //nolint:gochecknoinits
	register(cmdSpec{name: "LPUSH", minArgs: 2, handler: cmdLPush, queueable: true})
	register(cmdSpec{name: "RPUSH", minArgs: 2, handler: cmdRPush, queueable: true})
	register(cmdSpec{name: "LPUSHX", minArgs: 2, handler: cmdLPushX, queueable: true})
	register(cmdSpec{name: "RPUSHX", minArgs: 2, handler: cmdRPushX, queueable: true})
	register(cmdSpec{name: "LPOP", minArgs: 1, handler: cmdLPop, queueable: true})
	register(cmdSpec{name: "RPOP", minArgs: 1, handler: cmdRPop, queueable: true})
	register(cmdSpec{name: "BLPOP", minArgs: 2, handler: cmdBLPop})
	register(cmdSpec{name: "BRPOP", minArgs: 2, handler: cmdBRPop})
	register(cmdSpec{name: "LLEN", minArgs: 1, handler: cmdLLen, queueable: true})
	register(cmdSpec{name: "LRANGE", minArgs: 3, handler: cmdLRange, queueable: true})
	register(cmdSpec{name: "LINDEX", minArgs: 2, handler: cmdLIndex, queueable: true})
	register(cmdSpec{name: "LSET", minArgs: 3, handler: cmdLSet, queueable: true})
	register(cmdSpec{name: "LTRIM", minArgs: 3, handler: cmdLTrim, queueable: true})
	register(cmdSpec{name: "LREM", minArgs: 3, handler: cmdLRem, queueable: true})
	register(cmdSpec{name: "LINSERT", minArgs: 4, handler: cmdLInsert, queueable: true})
	register(cmdSpec{name: "LPOS", minArgs: 2, handler: cmdLPos, queueable: true})
	register(cmdSpec{name: "LMOVE", minArgs: 4, handler: cmdLMove, queueable: true})
}

func cmdLPush(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	return push(ctx, d, sess, storage.Left, args, false)
}

func cmdRPush(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	return push(ctx, d, sess, storage.Right, args, false)
}

func cmdLPushX(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	return push(ctx, d, sess, storage.Left, args, true)
}

func cmdRPushX(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	return push(ctx, d, sess, storage.Right, args, true)
}

func push(ctx context.Context, d *Dispatcher, sess *session.Session, side storage.Side, args [][]byte, onlyIfExists bool) resp.Value {
	n, err := d.Store.Push(ctx, sess.DB, s(args[0]), side, args[1:], onlyIfExists)
	if err != nil {
		return errReply(err)
	}

	d.Hub.Publish(sess.DB, s(args[0]))

	return resp.Int(int64(n))
}

func cmdLPop(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	return pop(ctx, d, sess, storage.Left, args)
}

func cmdRPop(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	return pop(ctx, d, sess, storage.Right, args)
}

func pop(ctx context.Context, d *Dispatcher, sess *session.Session, side storage.Side, args [][]byte) resp.Value {
	count := 1
	hasCount := false

	if len(args) >= 2 {
		n, err := parseIntArg(args[1])
		if err != nil {
			return errReply(err)
		}

		count = n
		hasCount = true
	}

	values, err := d.Store.Pop(ctx, sess.DB, s(args[0]), side, count)
	if err != nil {
		return errReply(err)
	}

	if hasCount {
		return bulkArray(values)
	}

	if len(values) == 0 {
		return resp.NullBulk()
	}

	return resp.Bulk(values[0])
}

// blockingTimeoutMillis parses BLPOP/BRPOP's trailing timeout argument,
// seconds as a float per Redis wire semantics, 0 meaning wait
// indefinitely. XREAD/XREADGROUP BLOCK take integer milliseconds and are
// parsed by their own handlers.
func blockingTimeoutMillis(raw []byte) (int64, error) {
	secs, err := parseFloatArg(raw)
	if err != nil {
		return 0, err
	}

	return int64(secs * 1000), nil
}

func cmdBLPop(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	return blockingPop(ctx, d, sess, storage.Left, args)
}

func cmdBRPop(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	return blockingPop(ctx, d, sess, storage.Right, args)
}

func blockingPop(ctx context.Context, d *Dispatcher, sess *session.Session, side storage.Side, args [][]byte) resp.Value {
	keys := strs(args[:len(args)-1])

	timeoutMillis, err := blockingTimeoutMillis(args[len(args)-1])
	if err != nil {
		return errReply(err)
	}

	waitCtx := ctx

	var cancel context.CancelFunc

	if timeoutMillis > 0 {
		waitCtx, cancel = contextWithTimeoutMillis(ctx, timeoutMillis)
		defer cancel()
	}

	for {
		for _, key := range keys {
			values, err := d.Store.Pop(ctx, sess.DB, key, side, 1)
			if err != nil {
				return errReply(err)
			}

			if len(values) > 0 {
				return resp.Array(resp.BulkStr(key), resp.Bulk(values[0]))
			}
		}

		if d.Hub.WaitAny(waitCtx, sess.DB, keys) == "" {
			return resp.NullArray()
		}
	}
}

func cmdLLen(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	n, err := d.Store.LLen(ctx, sess.DB, s(args[0]))
	if err != nil {
		return errReply(err)
	}

	return resp.Int(int64(n))
}

func cmdLRange(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	start, err := parseIntArg(args[1])
	if err != nil {
		return errReply(err)
	}

	end, err := parseIntArg(args[2])
	if err != nil {
		return errReply(err)
	}

	values, err := d.Store.LRange(ctx, sess.DB, s(args[0]), start, end)
	if err != nil {
		return errReply(err)
	}

	return bulkArray(values)
}

func cmdLIndex(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	index, err := parseIntArg(args[1])
	if err != nil {
		return errReply(err)
	}

	v, err := d.Store.LIndex(ctx, sess.DB, s(args[0]), index)
	if err != nil {
		return errReply(err)
	}

	return resp.BulkOrNull(v)
}

func cmdLSet(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	index, err := parseIntArg(args[1])
	if err != nil {
		return errReply(err)
	}

	if err := d.Store.LSet(ctx, sess.DB, s(args[0]), index, args[2]); err != nil {
		return errReply(err)
	}

	return resp.OK()
}

func cmdLTrim(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	start, err := parseIntArg(args[1])
	if err != nil {
		return errReply(err)
	}

	end, err := parseIntArg(args[2])
	if err != nil {
		return errReply(err)
	}

	if err := d.Store.LTrim(ctx, sess.DB, s(args[0]), start, end); err != nil {
		return errReply(err)
	}

	return resp.OK()
}

func cmdLRem(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	count, err := parseIntArg(args[1])
	if err != nil {
		return errReply(err)
	}

	n, err := d.Store.LRem(ctx, sess.DB, s(args[0]), count, args[2])
	if err != nil {
		return errReply(err)
	}

	return resp.Int(int64(n))
}

func cmdLInsert(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	var before bool

	switch strings.ToUpper(s(args[1])) {
	case "BEFORE":
		before = true
	case "AFTER":
		before = false
	default:
		return errReply(storage.ErrSyntax)
	}

	n, err := d.Store.LInsert(ctx, sess.DB, s(args[0]), before, args[2], args[3])
	if err != nil {
		return errReply(err)
	}

	return resp.Int(int64(n))
}

func cmdLPos(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	rank := 1
	maxLen := 0
	count := 0
	hasCount := false

	for i := 2; i < len(args); i++ {
		word := strings.ToUpper(s(args[i]))

		switch word {
		case "RANK":
			i++
			if i >= len(args) {
				return errReply(storage.ErrSyntax)
			}

			n, err := parseIntArg(args[i])
			if err != nil {
				return errReply(err)
			}

			rank = n
		case "MAXLEN":
			i++
			if i >= len(args) {
				return errReply(storage.ErrSyntax)
			}

			n, err := parseIntArg(args[i])
			if err != nil {
				return errReply(err)
			}

			maxLen = n
		case "COUNT":
			i++
			if i >= len(args) {
				return errReply(storage.ErrSyntax)
			}

			n, err := parseIntArg(args[i])
			if err != nil {
				return errReply(err)
			}

			if n < 0 {
				return errReply(storage.ErrSyntax)
			}

			count = n
			hasCount = true
		default:
			return errReply(storage.ErrSyntax)
		}
	}

	if hasCount {
		indexes, err := d.Store.LPosCount(ctx, sess.DB, s(args[0]), args[1], rank, count, maxLen)
		if err != nil {
			return errReply(err)
		}

		items := make([]resp.Value, len(indexes))
		for i, idx := range indexes {
			items[i] = resp.Int(int64(idx))
		}

		return resp.Array(items...)
	}

	idx, err := d.Store.LPos(ctx, sess.DB, s(args[0]), args[1], rank, maxLen)
	if err != nil {
		return errReply(err)
	}

	if idx == nil {
		return resp.NullBulk()
	}

	return resp.Int(int64(*idx))
}

func cmdLMove(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	fromSide, err := parseSide(args[2])
	if err != nil {
		return errReply(err)
	}

	toSide, err := parseSide(args[3])
	if err != nil {
		return errReply(err)
	}

	v, err := d.Store.LMove(ctx, sess.DB, s(args[0]), s(args[1]), fromSide, toSide)
	if err != nil {
		return errReply(err)
	}

	if v != nil {
		d.Hub.Publish(sess.DB, s(args[1]))
	}

	return resp.BulkOrNull(v)
}

func parseSide(raw []byte) (storage.Side, error) {
	switch strings.ToUpper(s(raw)) {
	case "LEFT":
		return storage.Left, nil
	case "RIGHT":
		return storage.Right, nil
	default:
		return storage.Left, storage.ErrSyntax
	}
}

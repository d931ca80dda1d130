package dispatch

import (
	"context"

	"github.com/go-redlite/redlite/internal/resp"
	"github.com/go-redlite/redlite/internal/session"
)

func init() { //nolint:gochecknoinits
	register(cmdSpec{name: "HSET", minArgs: 3, handler: cmdHSet, queueable: true})
	register(cmdSpec{name: "HGET", minArgs: 2, handler: cmdHGet, queueable: true})
	register(cmdSpec{name: "HMGET", minArgs: 2, handler: cmdHMGet, queueable: true})
	register(cmdSpec{name: "HGETALL", minArgs: 1, handler: cmdHGetAll, queueable: true})
	register(cmdSpec{name: "HDEL", minArgs: 2, handler: cmdHDel, queueable: true})
	register(cmdSpec{name: "HEXISTS", minArgs: 2, handler: cmdHExists, queueable: true})
	register(cmdSpec{name: "HKEYS", minArgs: 1, handler: cmdHKeys, queueable: true})
	register(cmdSpec{name: "HVALS", minArgs: 1, handler: cmdHVals, queueable: true})
	register(cmdSpec{name: "HLEN", minArgs: 1, handler: cmdHLen, queueable: true})
	register(cmdSpec{name: "HINCRBY", minArgs: 3, handler: cmdHIncrBy, queueable: true})
	register(cmdSpec{name: "HINCRBYFLOAT", minArgs: 3, handler: cmdHIncrByFloat, queueable: true})
	register(cmdSpec{name: "HSETNX", minArgs: 3, handler: cmdHSetNX, queueable: true})
	register(cmdSpec{name: "HSCAN", minArgs: 2, handler: cmdHScan, queueable: true})
}

func cmdHSet(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	if len(args)%2 != 1 {
		return arityError("HSET")
	}

	fields := make(map[string][]byte, (len(args)-1)/2)
	for i := 1; i < len(args); i += 2 {
		fields[s(args[i])] = args[i+1]
	}

	n, err := d.Store.HSet(ctx, sess.DB, s(args[0]), fields)
	if err != nil {
		return errReply(err)
	}

	return resp.Int(int64(n))
}

func cmdHGet(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	v, err := d.Store.HGet(ctx, sess.DB, s(args[0]), s(args[1]))
	if err != nil {
		return errReply(err)
	}

	return resp.BulkOrNull(v)
}

func cmdHMGet(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	values, err := d.Store.HMGet(ctx, sess.DB, s(args[0]), strs(args[1:]))
	if err != nil {
		return errReply(err)
	}

	return bulkArray(values)
}

func cmdHGetAll(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	all, err := d.Store.HGetAll(ctx, sess.DB, s(args[0]))
	if err != nil {
		return errReply(err)
	}

	out := make([]resp.Value, 0, len(all)*2)
	for field, value := range all {
		out = append(out, resp.BulkStr(field), resp.Bulk(value))
	}

	return resp.Array(out...)
}

func cmdHDel(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	n, err := d.Store.HDel(ctx, sess.DB, s(args[0]), strs(args[1:]))
	if err != nil {
		return errReply(err)
	}

	return resp.Int(int64(n))
}

func cmdHExists(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	ok, err := d.Store.HExists(ctx, sess.DB, s(args[0]), s(args[1]))
	if err != nil {
		return errReply(err)
	}

	return resp.Int(boolInt(ok))
}

func cmdHKeys(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	keys, err := d.Store.HKeys(ctx, sess.DB, s(args[0]))
	if err != nil {
		return errReply(err)
	}

	return stringArray(keys)
}

func cmdHVals(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	vals, err := d.Store.HVals(ctx, sess.DB, s(args[0]))
	if err != nil {
		return errReply(err)
	}

	return bulkArray(vals)
}

func cmdHLen(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	n, err := d.Store.HLen(ctx, sess.DB, s(args[0]))
	if err != nil {
		return errReply(err)
	}

	return resp.Int(int64(n))
}

func cmdHIncrBy(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	delta, err := parseInt64Arg(args[2])
	if err != nil {
		return errReply(err)
	}

	n, err := d.Store.HIncrBy(ctx, sess.DB, s(args[0]), s(args[1]), delta)
	if err != nil {
		return errReply(err)
	}

	return resp.Int(n)
}

func cmdHIncrByFloat(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	delta, err := parseFloatArg(args[2])
	if err != nil {
		return errReply(err)
	}

	n, err := d.Store.HIncrByFloat(ctx, sess.DB, s(args[0]), s(args[1]), delta)
	if err != nil {
		return errReply(err)
	}

	return resp.BulkStr(formatFloatReply(n))
}

func cmdHSetNX(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	ok, err := d.Store.HSetNX(ctx, sess.DB, s(args[0]), s(args[1]), args[2])
	if err != nil {
		return errReply(err)
	}

	return resp.Int(boolInt(ok))
}

func cmdHScan(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	cursor, match, count, err := parseScanOpts(args[1:])
	if err != nil {
		return errReply(err)
	}

	all, err := d.Store.HGetAll(ctx, sess.DB, s(args[0]))
	if err != nil {
		return errReply(err)
	}

	return scanMapReply(all, cursor, match, count)
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}

	return 0
}

package dispatch

import (
	"context"

	"github.com/go-redlite/redlite/internal/resp"
	"github.com/go-redlite/redlite/internal/session"
	"github.com/go-redlite/redlite/internal/storage"
)

func init() { //nolint:gochecknoinits
	register(cmdSpec{name: "SADD", minArgs: 2, handler: cmdSAdd, queueable: true})
	register(cmdSpec{name: "SREM", minArgs: 2, handler: cmdSRem, queueable: true})
	register(cmdSpec{name: "SMEMBERS", minArgs: 1, handler: cmdSMembers, queueable: true})
	register(cmdSpec{name: "SISMEMBER", minArgs: 2, handler: cmdSIsMember, queueable: true})
	register(cmdSpec{name: "SCARD", minArgs: 1, handler: cmdSCard, queueable: true})
	register(cmdSpec{name: "SPOP", minArgs: 1, handler: cmdSPop, queueable: true})
	register(cmdSpec{name: "SRANDMEMBER", minArgs: 1, handler: cmdSRandMember, queueable: true})
	register(cmdSpec{name: "SDIFF", minArgs: 1, handler: cmdSDiff, queueable: true})
	register(cmdSpec{name: "SINTER", minArgs: 1, handler: cmdSInter, queueable: true})
	register(cmdSpec{name: "SUNION", minArgs: 1, handler: cmdSUnion, queueable: true})
	register(cmdSpec{name: "SDIFFSTORE", minArgs: 2, handler: cmdSDiffStore, queueable: true})
	register(cmdSpec{name: "SINTERSTORE", minArgs: 2, handler: cmdSInterStore, queueable: true})
	register(cmdSpec{name: "SUNIONSTORE", minArgs: 2, handler: cmdSUnionStore, queueable: true})
	register(cmdSpec{name: "SMOVE", minArgs: 3, handler: cmdSMove, queueable: true})
	register(cmdSpec{name: "SSCAN", minArgs: 2, handler: cmdSScan, queueable: true})
}

func cmdSAdd(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	n, err := d.Store.SAdd(ctx, sess.DB, s(args[0]), args[1:])
	if err != nil {
		return errReply(err)
	}

	return resp.Int(int64(n))
}

func cmdSRem(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	n, err := d.Store.SRem(ctx, sess.DB, s(args[0]), args[1:])
	if err != nil {
		return errReply(err)
	}

	return resp.Int(int64(n))
}

func cmdSMembers(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	members, err := d.Store.SMembers(ctx, sess.DB, s(args[0]))
	if err != nil {
		return errReply(err)
	}

	return bulkArray(members)
}

func cmdSIsMember(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	ok, err := d.Store.SIsMember(ctx, sess.DB, s(args[0]), args[1])
	if err != nil {
		return errReply(err)
	}

	return resp.Int(boolInt(ok))
}

func cmdSCard(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	n, err := d.Store.SCard(ctx, sess.DB, s(args[0]))
	if err != nil {
		return errReply(err)
	}

	return resp.Int(int64(n))
}

func cmdSPop(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
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

	values, err := d.Store.SPop(ctx, sess.DB, s(args[0]), count)
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

func cmdSRandMember(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
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

	values, err := d.Store.SRandMember(ctx, sess.DB, s(args[0]), count)
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

func cmdSDiff(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	return setCombine(ctx, d, sess, storage.OpDiff, args)
}

func cmdSInter(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	return setCombine(ctx, d, sess, storage.OpInter, args)
}

func cmdSUnion(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	return setCombine(ctx, d, sess, storage.OpUnion, args)
}

func setCombine(ctx context.Context, d *Dispatcher, sess *session.Session, op storage.SetOp, args [][]byte) resp.Value {
	values, err := d.Store.SCombine(ctx, sess.DB, op, strs(args))
	if err != nil {
		return errReply(err)
	}

	return bulkArray(values)
}

func cmdSDiffStore(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	return setCombineStore(ctx, d, sess, storage.OpDiff, args)
}

func cmdSInterStore(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	return setCombineStore(ctx, d, sess, storage.OpInter, args)
}

func cmdSUnionStore(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	return setCombineStore(ctx, d, sess, storage.OpUnion, args)
}

func setCombineStore(ctx context.Context, d *Dispatcher, sess *session.Session, op storage.SetOp, args [][]byte) resp.Value {
	n, err := d.Store.SCombineStore(ctx, sess.DB, op, s(args[0]), strs(args[1:]))
	if err != nil {
		return errReply(err)
	}

	return resp.Int(int64(n))
}

func cmdSMove(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	ok, err := d.Store.SMove(ctx, sess.DB, s(args[0]), s(args[1]), args[2])
	if err != nil {
		return errReply(err)
	}

	return resp.Int(boolInt(ok))
}

func cmdSScan(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	cursor, match, count, err := parseScanOpts(args[1:])
	if err != nil {
		return errReply(err)
	}

	members, next, err := d.Store.SScan(ctx, sess.DB, s(args[0]), cursor, match, count)
	if err != nil {
		return errReply(err)
	}

	return resp.Array(resp.BulkStr(formatInt(next)), bulkArray(members))
}

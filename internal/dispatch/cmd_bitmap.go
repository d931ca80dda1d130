package dispatch

import (
	"context"
	"strings"

	"github.com/go-redlite/redlite/internal/resp"
	"github.com/go-redlite/redlite/internal/session"
	"github.com/go-redlite/redlite/internal/storage"
)

func init() { //nolint:gochecknoinits
	register(cmdSpec{name: "SETBIT", minArgs: 3, handler: cmdSetBit, queueable: true})
	register(cmdSpec{name: "GETBIT", minArgs: 2, handler: cmdGetBit, queueable: true})
	register(cmdSpec{name: "BITCOUNT", minArgs: 1, handler: cmdBitCount, queueable: true})
	register(cmdSpec{name: "BITOP", minArgs: 3, handler: cmdBitOp, queueable: true})
}

func cmdSetBit(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	offset, err := parseInt64Arg(args[1])
	if err != nil {
		return errReply(err)
	}

	value, err := parseIntArg(args[2])
	if err != nil || (value != 0 && value != 1) {
		return errReply(storage.ErrSyntax)
	}

	prev, err := d.Store.SetBit(ctx, sess.DB, s(args[0]), offset, value)
	if err != nil {
		return errReply(err)
	}

	return resp.Int(int64(prev))
}

func cmdGetBit(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	offset, err := parseInt64Arg(args[1])
	if err != nil {
		return errReply(err)
	}

	v, err := d.Store.GetBit(ctx, sess.DB, s(args[0]), offset)
	if err != nil {
		return errReply(err)
	}

	return resp.Int(int64(v))
}

func cmdBitCount(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	hasRange := false

	var start, end int

	if len(args) >= 3 {
		var err error

		start, err = parseIntArg(args[1])
		if err != nil {
			return errReply(err)
		}

		end, err = parseIntArg(args[2])
		if err != nil {
			return errReply(err)
		}

		hasRange = true
	}

	n, err := d.Store.BitCount(ctx, sess.DB, s(args[0]), start, end, hasRange)
	if err != nil {
		return errReply(err)
	}

	return resp.Int(int64(n))
}

func cmdBitOp(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	var op storage.BitOpKind

	switch strings.ToUpper(s(args[0])) {
	case "AND":
		op = storage.BitAnd
	case "OR":
		op = storage.BitOr
	case "XOR":
		op = storage.BitXor
	case "NOT":
		op = storage.BitNot
	default:
		return errReply(storage.ErrSyntax)
	}

	n, err := d.Store.BitOp(ctx, sess.DB, op, s(args[1]), strs(args[2:]))
	if err != nil {
		return errReply(err)
	}

	return resp.Int(int64(n))
}

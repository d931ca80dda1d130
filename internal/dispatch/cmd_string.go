package dispatch

import (
	"context"
	"strings"

	"github.com/go-redlite/redlite/internal/resp"
	"github.com/go-redlite/redlite/internal/session"
	"github.com/go-redlite/redlite/internal/storage"
)

func init() { //nolint:gochecknoinits
	register(cmdSpec{name: "GET", minArgs: 1, handler: cmdGet, queueable: true})
	register(cmdSpec{name: "SET", minArgs: 2, handler: cmdSet, queueable: true})
	register(cmdSpec{name: "SETEX", minArgs: 3, handler: cmdSetex, queueable: true})
	register(cmdSpec{name: "PSETEX", minArgs: 3, handler: cmdPsetex, queueable: true})
	register(cmdSpec{name: "GETDEL", minArgs: 1, handler: cmdGetDel, queueable: true})
	register(cmdSpec{name: "GETEX", minArgs: 1, handler: cmdGetEx, queueable: true})
	register(cmdSpec{name: "INCR", minArgs: 1, handler: cmdIncr, queueable: true})
	register(cmdSpec{name: "DECR", minArgs: 1, handler: cmdDecr, queueable: true})
	register(cmdSpec{name: "INCRBY", minArgs: 2, handler: cmdIncrBy, queueable: true})
	register(cmdSpec{name: "DECRBY", minArgs: 2, handler: cmdDecrBy, queueable: true})
	register(cmdSpec{name: "INCRBYFLOAT", minArgs: 2, handler: cmdIncrByFloat, queueable: true})
	register(cmdSpec{name: "APPEND", minArgs: 2, handler: cmdAppend, queueable: true})
	register(cmdSpec{name: "STRLEN", minArgs: 1, handler: cmdStrLen, queueable: true})
	register(cmdSpec{name: "GETRANGE", minArgs: 3, handler: cmdGetRange, queueable: true})
	register(cmdSpec{name: "SETRANGE", minArgs: 3, handler: cmdSetRange, queueable: true})
	register(cmdSpec{name: "MGET", minArgs: 1, handler: cmdMGet, queueable: true})
	register(cmdSpec{name: "MSET", minArgs: 2, handler: cmdMSet, queueable: true})
}

// parseSetOpts parses SET/GETEX's shared [EX|PX|EXAT|PXAT t] [NX|XX]
// [KEEPTTL] modifier tail, starting at args[from].
func parseSetOpts(args [][]byte, from int) (storage.SetOpts, bool, error) {
	var opts storage.SetOpts

	persist := false

	for i := from; i < len(args); i++ {
		word := strings.ToUpper(string(args[i]))

		switch word {
		case "NX":
			opts.OnlyIfAbsent = true
		case "XX":
			opts.OnlyIfExists = true
		case "KEEPTTL":
			opts.KeepTTL = true
		case "PERSIST":
			persist = true
		case "EX", "PX", "EXAT", "PXAT":
			i++
			if i >= len(args) {
				return opts, false, storage.ErrSyntax
			}

			n, err := parseInt64Arg(args[i])
			if err != nil {
				return opts, false, storage.ErrInvalidExpire
			}

			switch word {
			case "EX":
				opts.ExpireAtMillis = nowMillis() + n*1000
			case "PX":
				opts.ExpireAtMillis = nowMillis() + n
			case "EXAT":
				opts.ExpireAtMillis = n * 1000
			case "PXAT":
				opts.ExpireAtMillis = n
			}
		default:
			return opts, false, storage.ErrSyntax
		}
	}

	return opts, persist, nil
}

func cmdGet(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	v, err := d.Store.Get(ctx, sess.DB, s(args[0]))
	if err != nil {
		return errReply(err)
	}

	return resp.BulkOrNull(v)
}

func cmdSet(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	opts, _, err := parseSetOpts(args, 2)
	if err != nil {
		return errReply(err)
	}

	ok, err := d.Store.Set(ctx, sess.DB, s(args[0]), args[1], opts)
	if err != nil {
		return errReply(err)
	}

	if !ok {
		return resp.NullBulk()
	}

	return resp.OK()
}

func cmdSetex(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	secs, err := parseInt64Arg(args[1])
	if err != nil {
		return errReply(err)
	}

	_, err = d.Store.Set(ctx, sess.DB, s(args[0]), args[2], storage.SetOpts{ExpireAtMillis: nowMillis() + secs*1000}) //nolint:exhaustruct
	if err != nil {
		return errReply(err)
	}

	return resp.OK()
}

func cmdPsetex(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	ms, err := parseInt64Arg(args[1])
	if err != nil {
		return errReply(err)
	}

	_, err = d.Store.Set(ctx, sess.DB, s(args[0]), args[2], storage.SetOpts{ExpireAtMillis: nowMillis() + ms}) //nolint:exhaustruct
	if err != nil {
		return errReply(err)
	}

	return resp.OK()
}

func cmdGetDel(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	v, err := d.Store.GetDel(ctx, sess.DB, s(args[0]))
	if err != nil {
		return errReply(err)
	}

	return resp.BulkOrNull(v)
}

func cmdGetEx(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	opts, persist, err := parseSetOpts(args, 1)
	if err != nil {
		return errReply(err)
	}

	v, err := d.Store.GetEx(ctx, sess.DB, s(args[0]), opts, persist)
	if err != nil {
		return errReply(err)
	}

	return resp.BulkOrNull(v)
}

func cmdIncr(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	n, err := d.Store.IncrBy(ctx, sess.DB, s(args[0]), 1)
	if err != nil {
		return errReply(err)
	}

	return resp.Int(n)
}

func cmdDecr(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	n, err := d.Store.IncrBy(ctx, sess.DB, s(args[0]), -1)
	if err != nil {
		return errReply(err)
	}

	return resp.Int(n)
}

func cmdIncrBy(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	delta, err := parseInt64Arg(args[1])
	if err != nil {
		return errReply(err)
	}

	n, err := d.Store.IncrBy(ctx, sess.DB, s(args[0]), delta)
	if err != nil {
		return errReply(err)
	}

	return resp.Int(n)
}

func cmdDecrBy(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	delta, err := parseInt64Arg(args[1])
	if err != nil {
		return errReply(err)
	}

	n, err := d.Store.IncrBy(ctx, sess.DB, s(args[0]), -delta)
	if err != nil {
		return errReply(err)
	}

	return resp.Int(n)
}

func cmdIncrByFloat(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	delta, err := parseFloatArg(args[1])
	if err != nil {
		return errReply(err)
	}

	n, err := d.Store.IncrByFloat(ctx, sess.DB, s(args[0]), delta)
	if err != nil {
		return errReply(err)
	}

	return resp.BulkStr(formatFloatReply(n))
}

func cmdAppend(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	n, err := d.Store.Append(ctx, sess.DB, s(args[0]), args[1])
	if err != nil {
		return errReply(err)
	}

	return resp.Int(int64(n))
}

func cmdStrLen(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	n, err := d.Store.StrLen(ctx, sess.DB, s(args[0]))
	if err != nil {
		return errReply(err)
	}

	return resp.Int(int64(n))
}

func cmdGetRange(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	start, err := parseIntArg(args[1])
	if err != nil {
		return errReply(err)
	}

	end, err := parseIntArg(args[2])
	if err != nil {
		return errReply(err)
	}

	v, err := d.Store.GetRange(ctx, sess.DB, s(args[0]), start, end)
	if err != nil {
		return errReply(err)
	}

	return resp.Bulk(v)
}

func cmdSetRange(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	offset, err := parseIntArg(args[1])
	if err != nil {
		return errReply(err)
	}

	n, err := d.Store.SetRange(ctx, sess.DB, s(args[0]), offset, args[2])
	if err != nil {
		return errReply(err)
	}

	return resp.Int(int64(n))
}

func cmdMGet(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	values, err := d.Store.MGet(ctx, sess.DB, strs(args))
	if err != nil {
		return errReply(err)
	}

	return bulkArray(values)
}

func cmdMSet(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	if len(args)%2 != 0 {
		return arityError("MSET")
	}

	pairs := make(map[string][]byte, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		pairs[s(args[i])] = args[i+1]
	}

	if err := d.Store.MSet(ctx, sess.DB, pairs); err != nil {
		return errReply(err)
	}

	return resp.OK()
}

package dispatch

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/go-redlite/redlite/internal/resp"
	"github.com/go-redlite/redlite/internal/session"
	"github.com/go-redlite/redlite/internal/storage"
)

func init() { //nolint:gochecknoinits
	register(cmdSpec{name: "DEL", minArgs: 1, handler: cmdDel, queueable: true})
	register(cmdSpec{name: "UNLINK", minArgs: 1, handler: cmdDel, queueable: true})
	register(cmdSpec{name: "TYPE", minArgs: 1, handler: cmdType, queueable: true})
	register(cmdSpec{name: "TTL", minArgs: 1, handler: cmdTTL, queueable: true})
	register(cmdSpec{name: "PTTL", minArgs: 1, handler: cmdPTTL, queueable: true})
	register(cmdSpec{name: "EXISTS", minArgs: 1, handler: cmdExists, queueable: true})
	register(cmdSpec{name: "EXPIRE", minArgs: 2, handler: cmdExpire, queueable: true})
	register(cmdSpec{name: "PEXPIRE", minArgs: 2, handler: cmdPExpire, queueable: true})
	register(cmdSpec{name: "EXPIREAT", minArgs: 2, handler: cmdExpireAt, queueable: true})
	register(cmdSpec{name: "PEXPIREAT", minArgs: 2, handler: cmdPExpireAt, queueable: true})
	register(cmdSpec{name: "PERSIST", minArgs: 1, handler: cmdPersist, queueable: true})
	register(cmdSpec{name: "RENAME", minArgs: 2, handler: cmdRename, queueable: true})
	register(cmdSpec{name: "RENAMENX", minArgs: 2, handler: cmdRenameNX, queueable: true})
	register(cmdSpec{name: "KEYS", minArgs: 1, handler: cmdKeys, queueable: true})
	register(cmdSpec{name: "SCAN", minArgs: 1, handler: cmdScan, queueable: true})
	register(cmdSpec{name: "VACUUM", minArgs: 0, handler: cmdVacuum, queueable: true})
	register(cmdSpec{name: "KEYINFO", minArgs: 1, handler: cmdKeyInfo, queueable: true})
	register(cmdSpec{name: "AUTOVACUUM", minArgs: 1, handler: cmdAutoVacuum, queueable: true})
}

func cmdDel(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	n, err := d.Store.Del(ctx, sess.DB, strs(args))
	if err != nil {
		return errReply(err)
	}

	return resp.Int(int64(n))
}

func cmdType(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	kind, err := d.Store.TypeOf(ctx, sess.DB, s(args[0]))
	if err != nil {
		return errReply(err)
	}

	if kind == "" {
		return resp.Simple("none")
	}

	return resp.Simple(string(kind))
}

func cmdTTL(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	ms, err := d.Store.TTL(ctx, sess.DB, s(args[0]))
	if err != nil {
		return errReply(err)
	}

	if ms < 0 {
		return resp.Int(ms)
	}

	return resp.Int((ms + 999) / 1000)
}

func cmdPTTL(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	ms, err := d.Store.TTL(ctx, sess.DB, s(args[0]))
	if err != nil {
		return errReply(err)
	}

	return resp.Int(ms)
}

func cmdExists(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	count := 0

	for _, key := range args {
		ok, err := d.Store.Exists(ctx, sess.DB, s(key))
		if err != nil {
			return errReply(err)
		}

		if ok {
			count++
		}
	}

	return resp.Int(int64(count))
}

func cmdExpire(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	secs, err := parseInt64Arg(args[1])
	if err != nil {
		return errReply(err)
	}

	ok, err := d.Store.Expire(ctx, sess.DB, s(args[0]), nowMillis()+secs*1000)
	if err != nil {
		return errReply(err)
	}

	return resp.Int(boolInt(ok))
}

func cmdPExpire(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	ms, err := parseInt64Arg(args[1])
	if err != nil {
		return errReply(err)
	}

	ok, err := d.Store.Expire(ctx, sess.DB, s(args[0]), nowMillis()+ms)
	if err != nil {
		return errReply(err)
	}

	return resp.Int(boolInt(ok))
}

func cmdExpireAt(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	secs, err := parseInt64Arg(args[1])
	if err != nil {
		return errReply(err)
	}

	ok, err := d.Store.Expire(ctx, sess.DB, s(args[0]), secs*1000)
	if err != nil {
		return errReply(err)
	}

	return resp.Int(boolInt(ok))
}

func cmdPExpireAt(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	ms, err := parseInt64Arg(args[1])
	if err != nil {
		return errReply(err)
	}

	ok, err := d.Store.Expire(ctx, sess.DB, s(args[0]), ms)
	if err != nil {
		return errReply(err)
	}

	return resp.Int(boolInt(ok))
}

func cmdPersist(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	ok, err := d.Store.Persist(ctx, sess.DB, s(args[0]))
	if err != nil {
		return errReply(err)
	}

	return resp.Int(boolInt(ok))
}

func cmdRename(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	if err := d.Store.Rename(ctx, sess.DB, s(args[0]), s(args[1])); err != nil {
		return errReply(err)
	}

	return resp.OK()
}

func cmdRenameNX(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	ok, err := d.Store.RenameNX(ctx, sess.DB, s(args[0]), s(args[1]))
	if err != nil {
		return errReply(err)
	}

	return resp.Int(boolInt(ok))
}

func cmdKeys(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	keys, err := d.Store.Keys(ctx, sess.DB, s(args[0]))
	if err != nil {
		return errReply(err)
	}

	return stringArray(keys)
}

func cmdScan(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	cursor, match, count, err := parseScanOpts(args)
	if err != nil {
		return errReply(err)
	}

	keys, next, err := d.Store.Scan(ctx, sess.DB, cursor, match, count)
	if err != nil {
		return errReply(err)
	}

	return resp.Array(resp.BulkStr(strconv.FormatInt(next, 10)), stringArray(keys))
}

func cmdVacuum(ctx context.Context, d *Dispatcher, _ *session.Session, _ [][]byte) resp.Value {
	n, err := d.Store.Vacuum(ctx)
	if err != nil {
		return errReply(err)
	}

	return resp.Int(int64(n))
}

func cmdKeyInfo(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	info, err := d.Store.KeyInfo(ctx, sess.DB, s(args[0]))
	if err != nil {
		return errReply(err)
	}

	if info == nil {
		return resp.NullArray()
	}

	return resp.Array(
		resp.BulkStr("type"), resp.BulkStr(string(infoType(info))),
		resp.BulkStr("ttl_ms"), resp.Int(info.TTLMillis),
		resp.BulkStr("version"), resp.Int(info.Version),
		resp.BulkStr("created_at"), resp.Int(info.CreatedAt),
		resp.BulkStr("updated_at"), resp.Int(info.UpdatedAt),
	)
}

func infoType(info *storage.KeyInfo) storage.KeyType { return info.Type }

func cmdAutoVacuum(_ context.Context, d *Dispatcher, _ *session.Session, args [][]byte) resp.Value {
	word := strings.ToUpper(s(args[0]))

	switch word {
	case "ON":
		d.Config.SetAutoVacuum("on", defaultAutoVacuumIntervalMillis)
	case "OFF":
		d.Config.SetAutoVacuum("off", 0)
	default:
		if len(args) < 2 {
			return errReply(storage.ErrSyntax)
		}

		ms, err := parseInt64Arg(args[1])
		if err != nil {
			return errReply(err)
		}

		d.Config.SetAutoVacuum("on", ms)
	}

	return resp.OK()
}

const defaultAutoVacuumIntervalMillis = 60_000

// parseScanOpts parses SCAN's shared "cursor [MATCH pattern] [COUNT n]"
// argument form (also used by HSCAN/SSCAN/ZSCAN, where args[0] is the
// cursor token following the key argument).
func parseScanOpts(args [][]byte) (int64, string, int, error) {
	if len(args) == 0 {
		return 0, "", 0, storage.ErrSyntax
	}

	cursor, err := parseInt64Arg(args[0])
	if err != nil {
		return 0, "", 0, storage.ErrSyntax
	}

	match := "*"
	count := 10

	for i := 1; i < len(args); i++ {
		word := strings.ToUpper(s(args[i]))

		switch word {
		case "MATCH":
			i++
			if i >= len(args) {
				return 0, "", 0, storage.ErrSyntax
			}

			match = s(args[i])
		case "COUNT":
			i++
			if i >= len(args) {
				return 0, "", 0, storage.ErrSyntax
			}

			n, err := parseIntArg(args[i])
			if err != nil {
				return 0, "", 0, storage.ErrSyntax
			}

			count = n
		default:
			return 0, "", 0, storage.ErrSyntax
		}
	}

	return cursor, match, count, nil
}

// scanMapReply paginates an in-memory field/value map by sorted field
// name, used by HSCAN which has no dedicated storage-level cursor (a
// hash's full contents are already fetched in one round trip).
func scanMapReply(all map[string][]byte, cursor int64, match string, count int) resp.Value {
	fields := make([]string, 0, len(all))
	for f := range all {
		if storage.GlobMatch(match, f) {
			fields = append(fields, f)
		}
	}

	sort.Strings(fields)

	start := int(cursor)
	if start > len(fields) {
		start = len(fields)
	}

	end := start + count
	if end > len(fields) {
		end = len(fields)
	}

	next := int64(0)
	if end < len(fields) {
		next = int64(end)
	}

	out := make([]resp.Value, 0, (end-start)*2)

	for _, f := range fields[start:end] {
		out = append(out, resp.BulkStr(f), resp.Bulk(all[f]))
	}

	return resp.Array(resp.BulkStr(strconv.FormatInt(next, 10)), resp.Array(out...))
}

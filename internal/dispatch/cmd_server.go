package dispatch

import (
	"context"
	"strings"

	"github.com/go-redlite/redlite/internal/resp"
	"github.com/go-redlite/redlite/internal/session"
)

func init() { //nolint:gochecknoinits
	register(cmdSpec{name: "PING", minArgs: 0, handler: cmdPing, noAuth: true, queueable: true})
	register(cmdSpec{name: "ECHO", minArgs: 1, handler: cmdEcho, queueable: true})
	register(cmdSpec{name: "COMMAND", minArgs: 0, handler: cmdCommand, noAuth: true, queueable: true})
	register(cmdSpec{name: "QUIT", minArgs: 0, handler: cmdQuit, noAuth: true, queueable: true})
	register(cmdSpec{name: "SELECT", minArgs: 1, handler: cmdSelect, queueable: true})
	register(cmdSpec{name: "DBSIZE", minArgs: 0, handler: cmdDBSize, queueable: true})
	register(cmdSpec{name: "FLUSHDB", minArgs: 0, handler: cmdFlushDB, queueable: true})
	register(cmdSpec{name: "FLUSHALL", minArgs: 0, handler: cmdFlushAll, queueable: true})
	register(cmdSpec{name: "INFO", minArgs: 0, handler: cmdInfo, noAuth: true, queueable: true})
	register(cmdSpec{name: "CONFIG", minArgs: 2, handler: cmdConfig, queueable: true})
	register(cmdSpec{name: "MEMORY", minArgs: 1, handler: cmdMemory, queueable: true})
	register(cmdSpec{name: "CLIENT", minArgs: 1, handler: cmdClient, queueable: true})
	register(cmdSpec{name: "AUTH", minArgs: 1, handler: cmdAuth, noAuth: true, queueable: true})
}

func cmdPing(_ context.Context, _ *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	if sess.Mode == session.ModeSubscribed {
		if len(args) == 0 {
			return resp.Array(resp.BulkStr("pong"), resp.BulkStr(""))
		}

		return resp.Array(resp.BulkStr("pong"), resp.Bulk(args[0]))
	}

	if len(args) == 0 {
		return resp.Simple("PONG")
	}

	return resp.Bulk(args[0])
}

func cmdEcho(_ context.Context, _ *Dispatcher, _ *session.Session, args [][]byte) resp.Value {
	return resp.Bulk(args[0])
}

// cmdCommand replies with an empty introspection array: clients that
// probe COMMAND/COMMAND DOCS at startup (spec §8's compatibility note)
// get a well-formed empty reply instead of an unknown-command error.
func cmdCommand(_ context.Context, _ *Dispatcher, _ *session.Session, _ [][]byte) resp.Value {
	return resp.Array()
}

func cmdQuit(_ context.Context, _ *Dispatcher, _ *session.Session, _ [][]byte) resp.Value {
	return resp.OK()
}

func cmdSelect(_ context.Context, _ *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	n, err := parseIntArg(args[0])
	if err != nil {
		return errReply(err)
	}

	if n < 0 || n > 15 {
		return resp.Err("ERR DB index is out of range")
	}

	sess.DB = n

	return resp.OK()
}

func cmdDBSize(ctx context.Context, d *Dispatcher, sess *session.Session, _ [][]byte) resp.Value {
	n, err := d.Store.DBSize(ctx, sess.DB)
	if err != nil {
		return errReply(err)
	}

	return resp.Int(int64(n))
}

func cmdFlushDB(ctx context.Context, d *Dispatcher, sess *session.Session, _ [][]byte) resp.Value {
	if err := d.Store.FlushDB(ctx, sess.DB); err != nil {
		return errReply(err)
	}

	return resp.OK()
}

func cmdFlushAll(ctx context.Context, d *Dispatcher, _ *session.Session, _ [][]byte) resp.Value {
	if err := d.Store.FlushAll(ctx); err != nil {
		return errReply(err)
	}

	return resp.OK()
}

// cmdInfo synthesizes a minimal multi-section INFO text blob (spec §6),
// covering the sections clients commonly parse: server uptime/version,
// clients connected, and keyspace per-db sizes.
func cmdInfo(ctx context.Context, d *Dispatcher, _ *session.Session, args [][]byte) resp.Value {
	section := ""
	if len(args) > 0 {
		section = strings.ToLower(s(args[0]))
	}

	var b strings.Builder

	writeServer := func() {
		b.WriteString("# Server\r\n")
		b.WriteString("redis_version:7.4.0\r\n")
		b.WriteString("redlite_version:1.0.0\r\n")
		b.WriteString("uptime_in_seconds:" + formatInt(int64(nowMillis()-d.StartedAt.UnixMilli())/1000) + "\r\n")
		b.WriteString("\r\n")
	}

	writeClients := func() {
		b.WriteString("# Clients\r\n")
		b.WriteString("connected_clients:" + formatInt(int64(len(d.Pool.List()))) + "\r\n")
		b.WriteString("\r\n")
	}

	writeKeyspace := func() {
		b.WriteString("# Keyspace\r\n")

		for db := 0; db < 16; db++ {
			n, err := d.Store.DBSize(ctx, db)
			if err == nil && n > 0 {
				b.WriteString("db" + formatInt(int64(db)) + ":keys=" + formatInt(int64(n)) + "\r\n")
			}
		}

		b.WriteString("\r\n")
	}

	switch section {
	case "":
		writeServer()
		writeClients()
		writeKeyspace()
	case "server":
		writeServer()
	case "clients":
		writeClients()
	case "keyspace":
		writeKeyspace()
	default:
		// Unknown section: empty body, matching Redis's permissive behavior.
	}

	return resp.Bulk([]byte(b.String()))
}

func cmdConfig(_ context.Context, d *Dispatcher, _ *session.Session, args [][]byte) resp.Value {
	switch strings.ToUpper(s(args[0])) {
	case "GET":
		value, ok := d.Config.Get(s(args[1]))
		if !ok {
			return resp.Array()
		}

		return resp.Array(resp.Bulk(args[1]), resp.BulkStr(value))
	case "SET":
		if len(args) < 3 {
			return arityError("CONFIG")
		}

		if !d.Config.Set(s(args[1]), s(args[2])) {
			return resp.Err("ERR Unsupported CONFIG parameter or invalid value")
		}

		return resp.OK()
	default:
		return resp.Err("ERR CONFIG subcommand must be GET or SET")
	}
}

// cmdMemory implements MEMORY USAGE key (the approximateKeySize estimate)
// and MEMORY STATS (key count plus the configured maxmemory and policy).
func cmdMemory(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	switch strings.ToUpper(s(args[0])) {
	case "USAGE":
		if len(args) < 2 {
			return arityError("MEMORY")
		}

		info, err := d.Store.KeyInfo(ctx, sess.DB, s(args[1]))
		if err != nil {
			return errReply(err)
		}

		if info == nil {
			return resp.NullBulk()
		}

		return resp.Int(approximateKeySize(info))
	case "STATS":
		n, err := d.Store.DBSize(ctx, sess.DB)
		if err != nil {
			return errReply(err)
		}

		return resp.Array(
			resp.BulkStr("keys.count"), resp.Int(int64(n)),
			resp.BulkStr("maxmemory"), resp.Int(int64(d.Config.MaxMemory())),
			resp.BulkStr("maxmemory.policy"), resp.BulkStr(d.Config.MaxMemoryPolicy()),
		)
	default:
		return resp.Err("ERR MEMORY subcommand must be STATS or USAGE")
	}
}

func cmdClient(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	switch strings.ToUpper(s(args[0])) {
	case "SETNAME":
		if len(args) < 2 {
			return arityError("CLIENT")
		}

		sess.Name = s(args[1])

		return resp.OK()
	case "GETNAME":
		return resp.BulkStr(sess.Name)
	case "ID":
		return resp.BulkStr(sess.ID)
	case "NO-EVICT", "REPLY":
		return resp.OK()
	case "PAUSE":
		if len(args) < 2 {
			return arityError("CLIENT")
		}

		ms, err := parseInt64Arg(args[1])
		if err != nil {
			return errReply(err)
		}

		d.Pool.Pause(ms)

		return resp.OK()
	case "UNPAUSE":
		d.Pool.Unpause()

		return resp.OK()
	case "LIST":
		return clientList(d, args[1:])
	case "INFO":
		return resp.BulkStr(clientLine(d.Pool.List(sess.ID)[0]))
	case "KILL":
		return clientKill(d, args[1:])
	default:
		return resp.Err("ERR CLIENT subcommand not recognized")
	}
}

func clientLine(e *session.Entry) string {
	name := e.Session.Name

	return "id=" + e.Session.ID + " addr=" + e.Addr + " name=" + name +
		" db=" + formatInt(int64(e.Session.DB)) +
		" age=" + formatInt(int64(nowMillis()-e.CreatedAt.UnixMilli())/1000)
}

func clientList(d *Dispatcher, args [][]byte) resp.Value {
	var ids []string

	i := 0
	for i < len(args) {
		switch strings.ToUpper(s(args[i])) {
		case "ID":
			i++

			for i < len(args) {
				ids = append(ids, s(args[i]))
				i++
			}
		case "TYPE":
			i += 2 // type filtering not modeled; every session is "normal"
		default:
			i++
		}
	}

	entries := d.Pool.List(ids...)

	var b strings.Builder

	for _, e := range entries {
		b.WriteString(clientLine(e))
		b.WriteString("\n")
	}

	return resp.Bulk([]byte(b.String()))
}

func clientKill(d *Dispatcher, args [][]byte) resp.Value {
	if len(args) >= 2 && strings.EqualFold(s(args[0]), "ID") {
		if d.Pool.Kill(s(args[1])) {
			return resp.Int(1)
		}

		return resp.Int(0)
	}

	return resp.Err("ERR syntax error")
}

func cmdAuth(_ context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value {
	pass := s(args[0])
	if len(args) >= 2 {
		// AUTH username password: username is accepted but not validated,
		// since this server has no user directory beyond the single
		// configured password (spec §4.1).
		pass = s(args[1])
	}

	if !d.Config.RequiresAuth() {
		return resp.Err("ERR Client sent AUTH, but no password is set. Did you mean AUTH <username> <password>?")
	}

	if !d.Config.CheckPassword(pass) {
		return resp.Err("WRONGPASS invalid username-password pair or user is disabled.")
	}

	sess.Authenticated = true

	return resp.OK()
}

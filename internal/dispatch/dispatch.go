// Package dispatch implements the command dispatcher (component C): one
// entry function per connection mode (spec §4.2), routing RESP commands
// to the storage layer, the notifier, and the pub/sub registry.
package dispatch

import (
	"context"
	"strings"
	"time"

	"github.com/go-redlite/redlite/internal/notify"
	"github.com/go-redlite/redlite/internal/pubsub"
	"github.com/go-redlite/redlite/internal/resp"
	"github.com/go-redlite/redlite/internal/session"
	"github.com/go-redlite/redlite/internal/storage"
)

// Handler executes one command against the given session, returning the
// RESP reply to send back.
type Handler func(ctx context.Context, d *Dispatcher, sess *session.Session, args [][]byte) resp.Value

// cmdSpec describes one entry in the static dispatch table (spec §4.2).
type cmdSpec struct {
	name    string
	minArgs int // number of arguments after the command name, minimum
	handler Handler
	noAuth  bool // AUTH/QUIT/PING-like commands allowed before authentication
	queueable bool // allowed to be queued inside MULTI
}

var commands = map[string]cmdSpec{} //nolint:gochecknoglobals

func register(spec cmdSpec) {
	commands[spec.name] = spec
}

// Dispatcher holds the process-wide shared collaborators every command
// handler needs (spec §5's "shared-resource policy"): the storage engine,
// the blocking-wait notifier, the pub/sub registry, the connection pool,
// and the mutable server configuration.
type Dispatcher struct {
	Store     *storage.Store
	Hub       *notify.Hub
	PubSub    *pubsub.Registry
	Pool      *session.Pool
	Config    *Config
	StartedAt time.Time
}

// New constructs a Dispatcher wired to its collaborators.
func New(store *storage.Store, hub *notify.Hub, ps *pubsub.Registry, pool *session.Pool, cfg *Config) *Dispatcher {
	return &Dispatcher{
		Store:     store,
		Hub:       hub,
		PubSub:    ps,
		Pool:      pool,
		Config:    cfg,
		StartedAt: time.Now(),
	}
}

// Dispatch routes one incoming command according to the session's current
// mode (spec §4.2): Normal, Transaction (queueing), or Subscribed.
func (d *Dispatcher) Dispatch(ctx context.Context, sess *session.Session, args [][]byte) resp.Value {
	if len(args) == 0 {
		return resp.Err("ERR empty command")
	}

	name := strings.ToUpper(string(args[0]))
	rest := args[1:]

	switch sess.Mode {
	case session.ModeSubscribed:
		return d.dispatchSubscribed(ctx, sess, name, rest)
	case session.ModeTransaction:
		return d.dispatchQueued(ctx, sess, name, rest)
	case session.ModeNormal:
		return d.dispatchNormal(ctx, sess, name, rest)
	default:
		return resp.Err("ERR unknown connection mode")
	}
}

func (d *Dispatcher) dispatchNormal(ctx context.Context, sess *session.Session, name string, rest [][]byte) resp.Value {
	spec, ok := commands[name]
	if !ok {
		return unknownCommand(name, rest)
	}

	if d.Config.RequiresAuth() && !sess.Authenticated && !spec.noAuth {
		return resp.Err("NOAUTH Authentication required.")
	}

	if len(rest) < spec.minArgs {
		return arityError(name)
	}

	if remaining := d.Pool.PauseRemaining(); remaining > 0 {
		select {
		case <-time.After(remaining):
		case <-ctx.Done():
			return resp.Err("ERR connection closed during pause")
		}
	}

	return spec.handler(ctx, d, sess, rest)
}

// dispatchQueued implements the Transaction-mode dispatcher (spec §4.2):
// MULTI nests as an error; WATCH is rejected; DISCARD/EXEC/UNWATCH run
// directly through their own handlers; commands registered without
// queueable (the blocking and subscription commands) are rejected;
// everything else is arity-checked and queued.
func (d *Dispatcher) dispatchQueued(ctx context.Context, sess *session.Session, name string, rest [][]byte) resp.Value {
	switch name {
	case "MULTI":
		return resp.Err("ERR MULTI calls can not be nested")
	case "DISCARD":
		return cmdDiscard(ctx, d, sess, rest)
	case "EXEC":
		return cmdExec(ctx, d, sess, rest)
	case "WATCH":
		return resp.Err("ERR WATCH inside MULTI is not allowed")
	case "UNWATCH":
		return cmdUnwatch(ctx, d, sess, rest)
	}

	spec, ok := commands[name]
	if !ok {
		return unknownCommand(name, rest)
	}

	if !spec.queueable {
		return resp.Err("ERR " + name + " is not allowed in transactions")
	}

	if len(rest) < spec.minArgs {
		return arityError(name)
	}

	sess.Enqueue(name, rest)

	return resp.Simple("QUEUED")
}

// dispatchSubscribed implements the Subscription-mode dispatcher (spec
// §4.2): only SUBSCRIBE/UNSUBSCRIBE/PSUBSCRIBE/PUNSUBSCRIBE/PING/QUIT are
// accepted.
func (d *Dispatcher) dispatchSubscribed(ctx context.Context, sess *session.Session, name string, rest [][]byte) resp.Value {
	switch name {
	case "SUBSCRIBE", "UNSUBSCRIBE", "PSUBSCRIBE", "PUNSUBSCRIBE", "PING", "QUIT":
		spec := commands[name]

		return spec.handler(ctx, d, sess, rest)
	default:
		return resp.Err("ERR only (P)SUBSCRIBE / (P)UNSUBSCRIBE / PING / QUIT allowed in this context")
	}
}

// RegisterStub registers a command name that only validates arity and
// replies with a "module not compiled in" error (spec §7's module stub
// section). Used by internal/modules for FT.*/GEO*/V*/HISTORY, whose
// algorithms this server does not implement.
func RegisterStub(name string, minArgs int) {
	register(cmdSpec{
		name:      name,
		minArgs:   minArgs,
		queueable: true,
		handler: func(_ context.Context, _ *Dispatcher, _ *session.Session, _ [][]byte) resp.Value {
			return resp.Err("ERR this server was not compiled with module " + moduleFamily(name) + " support")
		},
	})
}

func moduleFamily(name string) string {
	switch {
	case strings.HasPrefix(name, "FT."):
		return "search"
	case strings.HasPrefix(name, "GEO"):
		return "geo"
	case strings.HasPrefix(name, "V"):
		return "vector"
	case name == "HISTORY":
		return "history"
	default:
		return "unknown"
	}
}

func unknownCommand(name string, args [][]byte) resp.Value {
	return resp.Err("ERR unknown command '" + name + "', with args beginning with: " + firstArgPreview(args))
}

func firstArgPreview(args [][]byte) string {
	if len(args) == 0 {
		return ""
	}

	return "'" + string(args[0]) + "', "
}

func arityError(name string) resp.Value {
	return resp.Err("ERR wrong number of arguments for '" + strings.ToLower(name) + "' command")
}

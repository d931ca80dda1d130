// Package server implements the TCP accept loop and per-connection task
// (component H). Each connection is served by exactly one goroutine that
// owns its session (session.Session documents itself as not safe for
// concurrent use); a second, session-blind goroutine only pumps bytes off
// the socket into a channel, so the owning goroutine can select between
// "a command arrived" and "a pub/sub message arrived" without ever
// sharing the session across threads. Mirrors the teacher's
// pkg/ajan/httpfx.Start graceful-serve shape, adapted from HTTP's
// single request/response cycle to RESP's persistent duplex connection.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"reflect"

	"github.com/oklog/ulid/v2"

	"github.com/go-redlite/redlite/internal/dispatch"
	"github.com/go-redlite/redlite/internal/pubsub"
	"github.com/go-redlite/redlite/internal/resp"
	"github.com/go-redlite/redlite/internal/rkit/logfx"
	"github.com/go-redlite/redlite/internal/session"
)

var ErrListen = errors.New("server: listen error")

// Server owns the listening socket and wires every accepted connection
// to a shared Dispatcher and connection Pool.
type Server struct {
	Addr       string
	Dispatcher *dispatch.Dispatcher
	Pool       *session.Pool
	Logger     *logfx.Logger

	listener net.Listener
}

func New(addr string, d *dispatch.Dispatcher, pool *session.Pool, logger *logfx.Logger) *Server {
	return &Server{
		Addr:       addr,
		Dispatcher: d,
		Pool:       pool,
		Logger:     logger,
	}
}

// Serve blocks accepting connections until ctx is cancelled, spawning one
// task per connection. Matches the fn(ctx context.Context) error shape
// processfx.StartGoroutine expects, so the caller can register it
// directly.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrListen, err)
	}

	s.listener = listener

	go func() {
		<-ctx.Done()
		listener.Close() //nolint:errcheck
	}()

	if s.Logger != nil {
		s.Logger.InfoContext(ctx, "server listening", "addr", s.Addr)
	}

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("%w: %w", ErrListen, err)
		}

		go s.handleConn(ctx, conn)
	}
}

// commandResult is one decoded frame (or terminal read error) handed from
// readPump to handleConn's select loop.
type commandResult struct {
	args [][]byte
	err  error
}

// readPump only ever touches the socket and the RESP reader, never the
// session, so it may run concurrently with handleConn's session-owning
// goroutine without synchronization.
func readPump(reader *resp.Reader, out chan<- commandResult) {
	for {
		args, err := reader.ReadCommand()
		out <- commandResult{args: args, err: err}

		if err != nil {
			return
		}
	}
}

// handleConn owns the connection's session for its entire lifetime: it
// registers the session in the Pool, then loops a dynamic select across
// the next decoded command and every currently-subscribed channel's
// Messages(), dispatching commands and pushing pub/sub deliveries on the
// same connection without interleaving partial frames (both writes go
// through the same *resp.Writer from this one goroutine).
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close() //nolint:errcheck

	id := ulid.Make().String()
	sess := session.New(id)
	entry := s.Pool.Register(id, sess, conn.RemoteAddr().String())

	defer s.Pool.Remove(id)

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-entry.Kill:
			conn.Close() //nolint:errcheck
		case <-connCtx.Done():
		}
	}()

	reader := resp.NewReader(conn)
	writer := resp.NewWriter(conn)

	cmdCh := make(chan commandResult, 1)
	go readPump(reader, cmdCh)

	for {
		reply, ok := s.step(connCtx, sess, cmdCh)
		if !ok {
			return
		}

		if reply == nil {
			continue
		}

		// WriteValue flushes internally, so replies and pub/sub pushes
		// reach the client as soon as each is written.
		if err := writer.WriteValue(*reply); err != nil {
			return
		}
	}
}

// step blocks until either the next command arrives or a currently
// subscribed channel/pattern delivers a message, returning the RESP
// value to write (nil if nothing need be written, e.g. a dropped empty
// command) and false once the connection should close.
func (s *Server) step(ctx context.Context, sess *session.Session, cmdCh chan commandResult) (*resp.Value, bool) {
	cases := []reflect.SelectCase{
		{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())},
		{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(cmdCh)},
	}

	type subSource struct {
		sub     *pubsub.Subscription
		pattern string // non-empty for a pattern subscription
	}

	subs := make([]subSource, 0, len(sess.Channels)+len(sess.Patterns))

	for _, sub := range sess.Channels {
		subs = append(subs, subSource{sub: sub})
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(sub.Messages())})
	}

	for pattern, sub := range sess.Patterns {
		subs = append(subs, subSource{sub: sub, pattern: pattern})
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(sub.Messages())})
	}

	chosen, recv, recvOK := reflect.Select(cases)

	switch chosen {
	case 0: // ctx.Done()
		return nil, false
	case 1: // a decoded command (or read error) arrived
		if !recvOK {
			return nil, false
		}

		result, _ := recv.Interface().(commandResult)
		if result.err != nil {
			return nil, false
		}

		if len(result.args) == 0 {
			return nil, true
		}

		reply := s.Dispatcher.Dispatch(ctx, sess, result.args)

		return &reply, true
	default: // a pub/sub delivery on subs[chosen-2]
		if !recvOK {
			return nil, true
		}

		msg, _ := recv.Interface().(pubsub.Message)
		src := subs[chosen-2]

		var reply resp.Value
		if src.pattern != "" {
			reply = resp.Array(
				resp.BulkStr("pmessage"),
				resp.BulkStr(src.pattern),
				resp.BulkStr(msg.Channel),
				resp.Bulk(msg.Payload),
			)
		} else {
			reply = resp.Array(
				resp.BulkStr("message"),
				resp.BulkStr(msg.Channel),
				resp.Bulk(msg.Payload),
			)
		}

		return &reply, true
	}
}

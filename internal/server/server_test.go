package server_test

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/go-redlite/redlite/internal/dispatch"
	_ "github.com/go-redlite/redlite/internal/modules"
	"github.com/go-redlite/redlite/internal/notify"
	"github.com/go-redlite/redlite/internal/pubsub"
	"github.com/go-redlite/redlite/internal/server"
	"github.com/go-redlite/redlite/internal/session"
	"github.com/go-redlite/redlite/internal/storage"
)

// reserveAddr picks a free loopback port by briefly binding to it, so
// server.Serve (which does its own net.Listen internally) can be told a
// concrete address up front.
func reserveAddr(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := l.Addr().String()
	require.NoError(t, l.Close())

	return addr
}

func TestSetGetRoundTrip(t *testing.T) {
	addr := reserveAddr(t)

	store, err := storage.Open(context.Background(), ":memory:")
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	hub := notify.New()
	store.SetNotifier(hub)

	pool := session.NewPool()
	d := dispatch.New(store, hub, pubsub.New(), pool, dispatch.NewConfig(""))

	srv := server.New(addr, d, pool, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go func() { _ = srv.Serve(ctx) }()

	conn := dialWithRetry(t, addr)
	defer conn.Close() //nolint:errcheck

	reader := bufio.NewReader(conn)

	sendInline(t, conn, "SET foo bar")
	require.Equal(t, "+OK\r\n", readLine(t, reader))

	sendInline(t, conn, "GET foo")
	require.Equal(t, "$3\r\n", readLine(t, reader))
	require.Equal(t, "bar\r\n", readLine(t, reader))
}

func TestSubscribePublishAcrossConnections(t *testing.T) {
	addr := reserveAddr(t)

	store, err := storage.Open(context.Background(), ":memory:")
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	hub := notify.New()
	store.SetNotifier(hub)

	pool := session.NewPool()
	d := dispatch.New(store, hub, pubsub.New(), pool, dispatch.NewConfig(""))

	srv := server.New(addr, d, pool, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go func() { _ = srv.Serve(ctx) }()

	sub := dialWithRetry(t, addr)
	defer sub.Close() //nolint:errcheck

	subReader := bufio.NewReader(sub)

	sendInline(t, sub, "SUBSCRIBE news")
	require.Equal(t, "*3\r\n", readLine(t, subReader))
	require.Equal(t, "$9\r\n", readLine(t, subReader))
	require.Equal(t, "subscribe\r\n", readLine(t, subReader))
	require.Equal(t, "$4\r\n", readLine(t, subReader))
	require.Equal(t, "news\r\n", readLine(t, subReader))
	require.Equal(t, ":1\r\n", readLine(t, subReader))

	pub, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer pub.Close() //nolint:errcheck

	pubReader := bufio.NewReader(pub)
	sendInline(t, pub, "PUBLISH news hello")
	require.Equal(t, ":1\r\n", readLine(t, pubReader))

	sub.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck

	require.Equal(t, "*3\r\n", readLine(t, subReader))
	require.Equal(t, "$7\r\n", readLine(t, subReader))
	require.Equal(t, "message\r\n", readLine(t, subReader))
	require.Equal(t, "$4\r\n", readLine(t, subReader))
	require.Equal(t, "news\r\n", readLine(t, subReader))
	require.Equal(t, "$5\r\n", readLine(t, subReader))
	require.Equal(t, "hello\r\n", readLine(t, subReader))
}

func dialWithRetry(t *testing.T, addr string) net.Conn {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)

	for time.Now().Before(deadline) {
		conn, err := net.Dial("tcp", addr)
		if err == nil {
			return conn
		}

		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("could not connect to %s", addr)

	return nil
}

func sendInline(t *testing.T, conn net.Conn, line string) {
	t.Helper()

	_, err := fmt.Fprintf(conn, "%s\r\n", line)
	require.NoError(t, err)
}

func readLine(t *testing.T, r *bufio.Reader) string {
	t.Helper()

	line, err := r.ReadString('\n')
	require.NoError(t, err)

	return line
}

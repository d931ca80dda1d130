package dispatch_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-redlite/redlite/internal/dispatch"
	"github.com/go-redlite/redlite/internal/notify"
	"github.com/go-redlite/redlite/internal/pubsub"
	"github.com/go-redlite/redlite/internal/resp"
	"github.com/go-redlite/redlite/internal/session"
	"github.com/go-redlite/redlite/internal/storage"
)

// newTestDispatcher wires a fresh in-memory store and a fresh Normal-mode
// session, the shape every command test in this package shares.
func newTestDispatcher(t *testing.T) (*dispatch.Dispatcher, *session.Session) {
	t.Helper()

	store, err := storage.Open(context.Background(), ":memory:")
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	hub := notify.New()
	store.SetNotifier(hub)

	d := dispatch.New(store, hub, pubsub.New(), session.NewPool(), dispatch.NewConfig(""))
	sess := session.New("test-conn")

	return d, sess
}

func do(d *dispatch.Dispatcher, sess *session.Session, args ...string) resp.Value {
	raw := make([][]byte, len(args))
	for i, a := range args {
		raw[i] = []byte(a)
	}

	return d.Dispatch(context.Background(), sess, raw)
}

func requireSimple(t *testing.T, want string, v resp.Value) {
	t.Helper()
	require.Equal(t, resp.TypeSimpleString, v.Type)
	require.Equal(t, want, v.Str)
}

func requireInt(t *testing.T, want int64, v resp.Value) {
	t.Helper()
	require.Equal(t, resp.TypeInteger, v.Type)
	require.Equal(t, want, v.Int)
}

func requireBulk(t *testing.T, want string, v resp.Value) {
	t.Helper()
	require.Equal(t, resp.TypeBulkString, v.Type)
	require.False(t, v.Null)
	require.Equal(t, want, string(v.Bulk))
}

func requireErr(t *testing.T, v resp.Value) {
	t.Helper()
	require.Equal(t, resp.TypeError, v.Type)
}

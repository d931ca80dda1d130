package modules_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-redlite/redlite/internal/dispatch"
	_ "github.com/go-redlite/redlite/internal/modules"
	"github.com/go-redlite/redlite/internal/notify"
	"github.com/go-redlite/redlite/internal/pubsub"
	"github.com/go-redlite/redlite/internal/resp"
	"github.com/go-redlite/redlite/internal/session"
	"github.com/go-redlite/redlite/internal/storage"
)

func newDispatcher(t *testing.T) *dispatch.Dispatcher {
	t.Helper()

	store, err := storage.Open(context.Background(), ":memory:")
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	return dispatch.New(store, notify.New(), pubsub.New(), session.NewPool(), dispatch.NewConfig(""))
}

func TestStubCommandsReplyWithModuleError(t *testing.T) {
	d := newDispatcher(t)
	sess := session.New("conn")

	reply := d.Dispatch(context.Background(), sess, [][]byte{[]byte("GEOADD"), []byte("k"), []byte("1"), []byte("2"), []byte("m")})
	require.Equal(t, resp.TypeError, reply.Type)
	require.True(t, strings.Contains(reply.Str, "geo"))
}

func TestStubCommandsStillEnforceArity(t *testing.T) {
	d := newDispatcher(t)
	sess := session.New("conn")

	reply := d.Dispatch(context.Background(), sess, [][]byte{[]byte("GEOADD"), []byte("k")})
	require.Equal(t, resp.TypeError, reply.Type)
	require.Contains(t, strings.ToUpper(reply.Str), "WRONG NUMBER OF ARGUMENTS")
}

func TestFullTextAndVectorStubsRegistered(t *testing.T) {
	d := newDispatcher(t)
	sess := session.New("conn")

	for _, name := range []string{"FT.SEARCH", "VSEARCH", "HISTORY"} {
		reply := d.Dispatch(context.Background(), sess, [][]byte{[]byte(name), []byte("a"), []byte("b")})
		require.Equal(t, resp.TypeError, reply.Type)
	}
}

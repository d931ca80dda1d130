package vacuum_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/go-redlite/redlite/internal/dispatch"
	"github.com/go-redlite/redlite/internal/storage"
	"github.com/go-redlite/redlite/internal/vacuum"
)

func TestLoopSweepsExpiredKeysWhenEnabled(t *testing.T) {
	store, err := storage.Open(context.Background(), ":memory:")
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	_, err = store.Set(context.Background(), 0, "k", []byte("v"), storage.SetOpts{ //nolint:exhaustruct
		ExpireAtMillis: time.Now().Add(-time.Second).UnixMilli(),
	})
	require.NoError(t, err)

	cfg := dispatch.NewConfig("")
	cfg.SetAutoVacuum("on", 10)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	loop := vacuum.Loop(store, cfg, nil)

	done := make(chan struct{})

	go func() {
		_ = loop(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		exists, err := store.Exists(context.Background(), 0, "k")

		return err == nil && !exists
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	<-done
}

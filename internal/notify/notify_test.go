package notify_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/go-redlite/redlite/internal/notify"
)

func TestWaitWakesOnPublish(t *testing.T) {
	hub := notify.New()

	woke := make(chan bool, 1)

	go func() {
		woke <- hub.Wait(context.Background(), 0, "mylist")
	}()

	// Give the waiter a chance to register before publishing.
	time.Sleep(10 * time.Millisecond)
	hub.Publish(0, "mylist")

	select {
	case ok := <-woke:
		require.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Publish")
	}
}

func TestWaitReturnsFalseOnContextCancel(t *testing.T) {
	hub := notify.New()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.False(t, hub.Wait(ctx, 0, "key"))
}

func TestPublishWithNoWaiterIsNoop(t *testing.T) {
	hub := notify.New()
	require.NotPanics(t, func() { hub.Publish(0, "nobody-waiting") })
}

func TestWaitAnyReturnsWokenKey(t *testing.T) {
	hub := notify.New()

	result := make(chan string, 1)

	go func() {
		result <- hub.WaitAny(context.Background(), 0, []string{"a", "b", "c"})
	}()

	time.Sleep(10 * time.Millisecond)
	hub.Publish(0, "b")

	select {
	case key := <-result:
		require.Equal(t, "b", key)
	case <-time.After(time.Second):
		t.Fatal("WaitAny did not return after Publish")
	}
}

func TestWaitAnyReturnsEmptyOnCancel(t *testing.T) {
	hub := notify.New()

	ctx, cancel := context.WithCancel(context.Background())

	result := make(chan string, 1)

	go func() {
		result <- hub.WaitAny(ctx, 0, []string{"x", "y"})
	}()

	cancel()

	select {
	case key := <-result:
		require.Empty(t, key)
	case <-time.After(time.Second):
		t.Fatal("WaitAny did not return after cancel")
	}
}

func TestWaitAnyWithNoKeysBlocksUntilCancel(t *testing.T) {
	hub := notify.New()

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})

	go func() {
		hub.WaitAny(ctx, 0, nil)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("WaitAny with no keys returned before cancel")
	case <-time.After(20 * time.Millisecond):
	}

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitAny with no keys did not return after cancel")
	}
}

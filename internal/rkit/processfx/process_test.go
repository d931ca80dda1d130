package processfx_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/go-redlite/redlite/internal/rkit/processfx"
)

func TestStartGoroutineRunsAndShutdownWaits(t *testing.T) {
	baseCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	proc := processfx.New(baseCtx, nil)

	started := make(chan struct{})
	finished := make(chan struct{})

	proc.StartGoroutine("worker", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		close(finished)

		return nil
	})

	<-started

	proc.Cancel()
	proc.Shutdown()

	select {
	case <-finished:
	default:
		t.Fatal("expected the goroutine to have finished by the time Shutdown returns")
	}
}

func TestWaitReturnsAfterCancel(t *testing.T) {
	baseCtx := context.Background()

	proc := processfx.New(baseCtx, nil)

	done := make(chan struct{})

	go func() {
		proc.Wait()
		close(done)
	}()

	proc.Cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Cancel")
	}
}

func TestTasksReportsNameAndRunningState(t *testing.T) {
	baseCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	proc := processfx.New(baseCtx, nil)

	started := make(chan struct{})

	proc.StartGoroutine("resp-server", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()

		return nil
	})

	<-started

	tasks := proc.Tasks()
	require.Len(t, tasks, 1)
	require.Equal(t, "resp-server", tasks[0].Name)
	require.True(t, tasks[0].Running)
	require.NoError(t, tasks[0].Err)

	proc.Cancel()
	proc.Shutdown()

	tasks = proc.Tasks()
	require.Len(t, tasks, 1)
	require.False(t, tasks[0].Running)
}

func TestShutdownTimesOutIfGoroutineHangs(t *testing.T) {
	baseCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	proc := processfx.New(baseCtx, nil)
	proc.ShutdownTimeout = 50 * time.Millisecond

	proc.StartGoroutine("stuck", func(ctx context.Context) error {
		<-ctx.Done()

		// Deliberately outlive the shutdown timeout.
		time.Sleep(time.Second)

		return errors.New("should not matter")
	})

	proc.Cancel()

	start := time.Now()
	proc.Shutdown()
	require.Less(t, time.Since(start), 500*time.Millisecond)
}

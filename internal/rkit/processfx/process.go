// Package processfx implements component-lifecycle orchestration for the
// server accept loop and the background vacuum loop: a base context
// cancelled by SIGINT/SIGTERM, named goroutine registration, and a bounded
// shutdown wait. Connection tasks are not registered; they derive their
// context from the accept loop's, so Shutdown does not wait for them.
package processfx

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-redlite/redlite/internal/rkit/logfx"
)

const (
	DefaultShutdownTimeout = 30 * time.Second
)

// TaskStatus reports one registered goroutine's lifecycle for
// introspection (e.g. a future DEBUG/INFO section listing the accept
// loop and vacuum loop alongside per-connection counts).
type TaskStatus struct {
	Name      string
	StartedAt time.Time
	Running   bool
	Err       error
}

// task tracks one StartGoroutine registration: redlite only ever runs
// two of these for the process lifetime (the RESP accept loop and the
// vacuum sweep), so a small per-task record is cheap and makes Shutdown
// able to report which one, if any, failed to drain in time.
type task struct {
	wg        sync.WaitGroup
	startedAt time.Time

	mu      sync.Mutex
	running bool
	err     error
}

type Process struct {
	BaseCtx context.Context //nolint:containedctx

	Ctx    context.Context //nolint:containedctx
	Logger *logfx.Logger

	Cancel context.CancelFunc

	Signal chan os.Signal

	ShutdownTimeout time.Duration

	mu    sync.Mutex
	tasks map[string]*task
}

func New(baseCtx context.Context, logger *logfx.Logger) *Process {
	ctx, cancel := context.WithCancel(baseCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		if logger != nil {
			logger.InfoContext(ctx, "received OS signal, initiating shutdown...", "signal", sig.String())
		}

		cancel()
	}()

	return &Process{
		BaseCtx: baseCtx,
		Logger:  logger,

		Ctx:    ctx,
		Cancel: cancel,

		Signal: sigChan,

		ShutdownTimeout: DefaultShutdownTimeout,
		tasks:           map[string]*task{},
	}
}

// StartGoroutine runs fn as a named background task (redlite registers
// exactly two: "resp-server" for the connection accept loop and
// "vacuum" for the expired-key sweep) and tracks its running/finished
// state so Shutdown and Tasks can report it.
func (p *Process) StartGoroutine(name string, fn func(ctx context.Context) error) {
	t := &task{startedAt: time.Now(), running: true} //nolint:exhaustruct
	t.wg.Add(1)

	p.mu.Lock()
	p.tasks[name] = t
	p.mu.Unlock()

	go func() {
		defer t.wg.Done()

		if p.Logger != nil {
			p.Logger.DebugContext(p.Ctx, "goroutine starting", "name", name)
		}

		err := fn(p.Ctx)

		t.mu.Lock()
		t.running = false
		t.err = err
		t.mu.Unlock()

		if err != nil && p.BaseCtx.Err() == nil && !errors.Is(err, context.Canceled) {
			if p.Logger != nil {
				p.Logger.ErrorContext(p.BaseCtx, "goroutine error", "name", name, "error", err)
			}
		}

		if p.Logger != nil {
			p.Logger.DebugContext(p.BaseCtx, "goroutine stopped", "name", name)
		}
	}()
}

// Tasks reports the current state of every registered goroutine, in no
// particular order.
func (p *Process) Tasks() []TaskStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]TaskStatus, 0, len(p.tasks))

	for name, t := range p.tasks {
		t.mu.Lock()
		out = append(out, TaskStatus{
			Name:      name,
			StartedAt: t.startedAt,
			Running:   t.running,
			Err:       t.err,
		})
		t.mu.Unlock()
	}

	return out
}

// Wait blocks until the base context is cancelled (SIGINT/SIGTERM or an
// explicit Cancel call).
func (p *Process) Wait() {
	<-p.Ctx.Done()

	if p.Cancel != nil {
		p.Cancel()
	}

	if p.Signal != nil {
		signal.Stop(p.Signal)
		close(p.Signal)
	}
}

// Shutdown waits for every registered goroutine to finish, up to
// ShutdownTimeout.
func (p *Process) Shutdown() {
	shutdownCtx, shutdownCancel := context.WithTimeout(p.BaseCtx, p.ShutdownTimeout)
	defer shutdownCancel()

	shutdownComplete := make(chan struct{})

	p.mu.Lock()
	tasks := make([]*task, 0, len(p.tasks))
	for _, t := range p.tasks {
		tasks = append(tasks, t)
	}
	p.mu.Unlock()

	go func() {
		for _, t := range tasks {
			t.wg.Wait()
		}

		close(shutdownComplete)
	}()

	select {
	case <-shutdownComplete:
		if p.Logger != nil {
			p.Logger.InfoContext(p.BaseCtx, "all services shut down gracefully")
		}
	case <-shutdownCtx.Done():
		if p.Logger != nil {
			p.Logger.WarnContext(p.BaseCtx, "graceful shutdown timed out, some services may not have stopped",
				"tasks", p.Tasks())
		}
	}

	if p.Logger != nil {
		p.Logger.InfoContext(p.BaseCtx, "process shutdown complete")
	}
}

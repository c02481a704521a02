package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var ErrClosed = errors.New("worker runner is shut down")

// Runner owns background tasks: it recovers their panics, tracks how many are
// running and lets the process wait for them on shutdown.
type Runner struct {
	logger *slog.Logger

	running atomic.Int64

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Handle controls a single task started with Go.
type Handle struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
}

func (h *Handle) Name() string { return h.name }

// Cancel cancels the task context. It does not wait.
func (h *Handle) Cancel() { h.cancel() }

func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the task returns or ctx is done.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Go starts fn on its own goroutine. The context passed to fn is cancelled by
// Handle.Cancel or when Shutdown gives up waiting.
func (r *Runner) Go(name string, fn func(ctx context.Context)) (*Handle, error) {
	if fn == nil {
		return nil, errors.New("fn must not be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}

	ctx, cancel := context.WithCancel(r.ctx)
	h := &Handle{name: name, cancel: cancel, done: make(chan struct{})}

	r.wg.Add(1)
	r.running.Add(1)

	go func() {
		defer r.wg.Done()
		defer r.running.Add(-1)
		defer close(h.done)
		defer cancel()

		r.safeRun(ctx, name, fn)
	}()

	return h, nil
}

func (r *Runner) Running() int {
	return int(r.running.Load())
}

// Shutdown refuses new tasks and waits for running ones. If ctx ends first,
// every task context is cancelled and ctx.Err() is returned.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		r.logger.Info("worker runner stopped")
		return nil
	case <-ctx.Done():
		r.cancel()
		r.logger.Warn("worker runner shutdown deadline reached, tasks cancelled", "running", r.Running())
		return ctx.Err()
	}
}

func (r *Runner) safeRun(ctx context.Context, name string, fn func(context.Context)) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("worker task panic recovered", "task", name, "panic", rec)
		}
	}()

	start := time.Now()
	r.logger.Info("worker task started", "task", name)
	fn(ctx)
	r.logger.Info("worker task completed", "task", name, "duration_ms", time.Since(start).Milliseconds())
}

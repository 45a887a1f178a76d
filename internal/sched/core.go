// Package sched provides the scheduling core: a single persistent worker
// goroutine through which every engine operation is funneled. The engine's
// internal state is not safe for concurrent callers, so correctness requires
// exactly one operation in flight at a time, process-wide.
package sched

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrShutdown is returned for operations submitted after Shutdown.
var ErrShutdown = errors.New("scheduling core is shut down")

// Op is one engine operation. It receives the core's base context, which is
// only cancelled at process shutdown — a caller that stops waiting does not
// cancel the operation (fire-and-continue).
type Op func(ctx context.Context) (any, error)

type submission struct {
	op    Op
	reply chan outcome
}

type outcome struct {
	val any
	err error
}

// Core owns the worker goroutine. Exactly one Core exists per process,
// started at construction and torn down only at shutdown.
type Core struct {
	ops     chan submission
	baseCtx context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	logger  *slog.Logger
}

// New starts the core's worker goroutine.
func New(logger *slog.Logger) *Core {
	if logger == nil {
		logger = slog.Default()
	}
	baseCtx, cancel := context.WithCancel(context.Background())
	c := &Core{
		ops:     make(chan submission),
		baseCtx: baseCtx,
		cancel:  cancel,
		done:    make(chan struct{}),
		logger:  logger,
	}
	go c.loop()
	return c
}

func (c *Core) loop() {
	defer close(c.done)
	for {
		select {
		case <-c.baseCtx.Done():
			return
		case sub := <-c.ops:
			start := time.Now()
			val, err := sub.op(c.baseCtx)
			dur := time.Since(start)
			if err != nil {
				c.logger.Debug("engine operation failed", "duration_ms", dur.Milliseconds(), "error", err)
			}
			// Caller may have stopped waiting; reply is buffered so the
			// send never blocks the loop.
			sub.reply <- outcome{val: val, err: err}
		}
	}
}

// Run submits op to the worker and blocks until completion or ctx expiry.
// On expiry the error is ctx.Err(); the operation itself continues on the
// worker and its result is discarded.
func (c *Core) Run(ctx context.Context, op Op) (any, error) {
	sub := submission{op: op, reply: make(chan outcome, 1)}

	select {
	case c.ops <- sub:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrShutdown
	}

	select {
	case out := <-sub.reply:
		return out.val, out.err
	case <-ctx.Done():
		c.logger.Warn("caller abandoned in-flight engine operation", "error", ctx.Err())
		return nil, ctx.Err()
	}
}

// Shutdown stops the worker and waits for it to exit, bounded by ctx. An
// operation already running is given until ctx expiry to finish.
func (c *Core) Shutdown(ctx context.Context) error {
	c.cancel()
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduling core shutdown: %w", ctx.Err())
	}
}

// Do runs a typed operation through the core.
func Do[T any](c *Core, ctx context.Context, op func(ctx context.Context) (T, error)) (T, error) {
	val, err := c.Run(ctx, func(ctx context.Context) (any, error) {
		return op(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	out, ok := val.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("scheduling core: unexpected result type %T", val)
	}
	return out, nil
}

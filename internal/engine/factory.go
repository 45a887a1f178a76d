package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// BuildFunc constructs the engine: binds the completion, embedding and
// vision functions and opens the working directory.
type BuildFunc func(ctx context.Context) (Engine, error)

// Factory owns the process-wide engine singleton. The first Get constructs
// the engine; concurrent first callers block until the single construction
// finishes. A failed construction is not cached — the next Get retries
// rather than returning a poisoned instance.
type Factory struct {
	mu     sync.Mutex
	inst   Engine
	build  BuildFunc
	logger *slog.Logger
}

// NewFactory creates a factory around the given build function. The engine
// itself is not constructed until Get or Warm is called.
func NewFactory(build BuildFunc, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{build: build, logger: logger}
}

// Get returns the engine instance, constructing it on first call.
func (f *Factory) Get(ctx context.Context) (Engine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.inst != nil {
		return f.inst, nil
	}

	eng, err := f.build(ctx)
	if err != nil {
		f.logger.Error("engine construction failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrEngineInit, err)
	}

	f.logger.Info("engine constructed")
	f.inst = eng
	return f.inst, nil
}

// Warm eagerly constructs the engine during startup so the first request
// never pays construction cost. Failure leaves the factory retryable.
func (f *Factory) Warm(ctx context.Context) error {
	_, err := f.Get(ctx)
	return err
}

// Initialized reports whether the engine has been constructed.
func (f *Factory) Initialized() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inst != nil
}

// Close releases the engine if it was ever constructed.
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inst == nil {
		return nil
	}
	err := f.inst.Close()
	f.inst = nil
	return err
}

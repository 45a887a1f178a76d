package llm

import (
	"context"
	"log/slog"
	"sync"
)

// Completer is the text-completion capability exposed by Model and
// LazyCompleter.
type Completer interface {
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// LazyCompleter defers model binding to the first completion call so a
// missing credential at startup does not keep the process from coming up.
// A failed binding is not cached — the next call retries, and succeeds once
// the credential appears.
type LazyCompleter struct {
	mu     sync.Mutex
	build  func() (Completer, error)
	inst   Completer
	logger *slog.Logger
}

// NewLazyCompleter creates a completer around the given build function.
// The model is not bound until the first CompleteWithSystem call.
func NewLazyCompleter(build func() (Completer, error), logger *slog.Logger) *LazyCompleter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LazyCompleter{build: build, logger: logger}
}

func (l *LazyCompleter) completer() (Completer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.inst != nil {
		return l.inst, nil
	}
	c, err := l.build()
	if err != nil {
		l.logger.Warn("completion model binding failed, will retry", "error", err)
		return nil, err
	}
	l.inst = c
	return c, nil
}

// CompleteWithSystem binds the model if needed and generates text.
func (l *LazyCompleter) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	c, err := l.completer()
	if err != nil {
		return "", err
	}
	return c.CompleteWithSystem(ctx, systemPrompt, userPrompt)
}

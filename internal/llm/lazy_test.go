package llm

import (
	"context"
	"errors"
	"testing"
)

type stubCompleter struct {
	calls int
}

func (s *stubCompleter) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	s.calls++
	return "ok", nil
}

func TestLazyCompleterRetriesFailedBinding(t *testing.T) {
	bindErr := errors.New("no credential")
	stub := &stubCompleter{}
	builds := 0
	lc := NewLazyCompleter(func() (Completer, error) {
		builds++
		if builds == 1 {
			return nil, bindErr
		}
		return stub, nil
	}, nil)

	if _, err := lc.CompleteWithSystem(context.Background(), "s", "u"); !errors.Is(err, bindErr) {
		t.Fatalf("first call error = %v, want binding failure", err)
	}

	out, err := lc.CompleteWithSystem(context.Background(), "s", "u")
	if err != nil {
		t.Fatalf("second call error = %v", err)
	}
	if out != "ok" {
		t.Errorf("second call = %q", out)
	}
	if builds != 2 {
		t.Errorf("builds = %d, failed binding must not be cached", builds)
	}
}

func TestLazyCompleterBindsOnce(t *testing.T) {
	stub := &stubCompleter{}
	builds := 0
	lc := NewLazyCompleter(func() (Completer, error) {
		builds++
		return stub, nil
	}, nil)

	for i := 0; i < 3; i++ {
		if _, err := lc.CompleteWithSystem(context.Background(), "s", "u"); err != nil {
			t.Fatalf("CompleteWithSystem() error = %v", err)
		}
	}
	if builds != 1 {
		t.Errorf("builds = %d, want 1", builds)
	}
	if stub.calls != 3 {
		t.Errorf("calls = %d, want 3", stub.calls)
	}
}

package query_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/aweiler/ragserve/internal/engine"
	"github.com/aweiler/ragserve/internal/engine/enginetest"
	"github.com/aweiler/ragserve/internal/metrics"
	"github.com/aweiler/ragserve/internal/models"
	"github.com/aweiler/ragserve/internal/query"
	"github.com/aweiler/ragserve/internal/sched"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newOrchestrator(t *testing.T, mock *enginetest.Mock, recordDir string) *query.Orchestrator {
	t.Helper()

	logger := testLogger()
	core := sched.New(logger)
	t.Cleanup(func() { core.Shutdown(context.Background()) })

	factory := engine.NewFactory(func(ctx context.Context) (engine.Engine, error) {
		return mock, nil
	}, logger)

	return query.NewOrchestrator(query.Config{
		Factory:   factory,
		Core:      core,
		RecordDir: recordDir,
		Metrics:   metrics.New(),
		Logger:    logger,
	})
}

func TestExecuteValidation(t *testing.T) {
	mock := enginetest.New()
	orch := newOrchestrator(t, mock, "")

	tests := []struct {
		name string
		req  models.QueryRequest
	}{
		{name: "empty query", req: models.QueryRequest{Query: ""}},
		{name: "whitespace query", req: models.QueryRequest{Query: "  \n\t "}},
		{name: "unknown mode", req: models.QueryRequest{Query: "q", Mode: "global"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := orch.Execute(context.Background(), tt.req)
			assert.ErrorIs(t, err, query.ErrValidation)
		})
	}

	assert.Equal(t, int32(0), mock.QueryCalls.Load(), "validation must fail before any engine work")
}

func TestExecuteDefaultsToHybrid(t *testing.T) {
	mock := enginetest.New()
	var gotMode models.Mode
	mock.QueryFunc = func(ctx context.Context, text string, mode models.Mode, vlm bool) (*engine.Answer, error) {
		gotMode = mode
		return &engine.Answer{Answer: "a"}, nil
	}
	orch := newOrchestrator(t, mock, "")

	res, err := orch.Execute(context.Background(), models.QueryRequest{Query: "what is it"})
	require.NoError(t, err)
	assert.Equal(t, models.ModeHybrid, gotMode)
	assert.Equal(t, models.ModeHybrid, res.Mode)
	assert.Equal(t, "success", res.Status)
}

func TestExecuteShapesResult(t *testing.T) {
	mock := enginetest.New()
	mock.QueryFunc = func(ctx context.Context, text string, mode models.Mode, vlm bool) (*engine.Answer, error) {
		return &engine.Answer{
			Answer: "the answer",
			Sources: []engine.Source{
				{DocID: "doc1", Content: "evidence", Score: 0.92, Embedding: []float32{0.5, 0.25}},
			},
			Confidence: 0.92,
		}, nil
	}
	orch := newOrchestrator(t, mock, "")

	res, err := orch.Execute(context.Background(), models.QueryRequest{Query: "  padded query  ", Mode: models.ModeNaive})
	require.NoError(t, err)

	assert.Equal(t, "padded query", res.Query, "query is trimmed before execution")
	assert.Equal(t, "the answer", res.Answer)
	require.Len(t, res.Sources, 1)
	assert.Equal(t, []float64{0.5, 0.25}, res.Sources[0].Embedding, "embedding is normalized to float64")
	require.NotNil(t, res.Confidence)
	assert.InDelta(t, 0.92, *res.Confidence, 1e-9)

	assert.GreaterOrEqual(t, res.Timing.TotalDuration, res.Timing.QueryDuration, "total covers the engine call")
	assert.GreaterOrEqual(t, res.Timing.TotalDuration, res.Timing.ParseDuration)
}

func TestExecuteNoSourcesOmitsConfidence(t *testing.T) {
	mock := enginetest.New()
	mock.QueryFunc = func(ctx context.Context, text string, mode models.Mode, vlm bool) (*engine.Answer, error) {
		return &engine.Answer{Answer: "nothing indexed", Sources: []engine.Source{}}, nil
	}
	orch := newOrchestrator(t, mock, "")

	res, err := orch.Execute(context.Background(), models.QueryRequest{Query: "q"})
	require.NoError(t, err)
	assert.Nil(t, res.Confidence)
}

// TestExecuteVisionFallback verifies the single text-only retry when the
// vision path fails.
func TestExecuteVisionFallback(t *testing.T) {
	mock := enginetest.New()
	var calls []struct {
		mode models.Mode
		vlm  bool
	}
	mock.QueryFunc = func(ctx context.Context, text string, mode models.Mode, vlm bool) (*engine.Answer, error) {
		calls = append(calls, struct {
			mode models.Mode
			vlm  bool
		}{mode, vlm})
		if vlm {
			return nil, fmt.Errorf("%w: bedrock unreachable", engine.ErrVisionPath)
		}
		return &engine.Answer{Answer: "text-only answer"}, nil
	}
	orch := newOrchestrator(t, mock, "")

	res, err := orch.Execute(context.Background(), models.QueryRequest{Query: "describe", Mode: models.ModeHybrid, VLM: true})
	require.NoError(t, err)

	require.Len(t, calls, 2, "exactly one retry")
	assert.True(t, calls[0].vlm)
	assert.Equal(t, models.ModeHybrid, calls[0].mode)
	assert.False(t, calls[1].vlm)
	assert.Equal(t, models.ModeNaive, calls[1].mode, "fallback runs in naive mode")

	assert.Equal(t, "text-only answer", res.Answer)
	assert.Equal(t, models.ModeNaive, res.Mode, "result reports the mode that produced it")
}

func TestExecuteVisionFallbackFailurePropagates(t *testing.T) {
	mock := enginetest.New()
	queryErr := errors.New("engine degraded")
	mock.QueryFunc = func(ctx context.Context, text string, mode models.Mode, vlm bool) (*engine.Answer, error) {
		if vlm {
			return nil, fmt.Errorf("%w: no vision model", engine.ErrVisionPath)
		}
		return nil, queryErr
	}
	orch := newOrchestrator(t, mock, "")

	_, err := orch.Execute(context.Background(), models.QueryRequest{Query: "q", VLM: true})
	assert.ErrorIs(t, err, queryErr)
	assert.Equal(t, int32(2), mock.QueryCalls.Load(), "no second retry after the fallback fails")
}

func TestExecuteNonVisionErrorDoesNotFallBack(t *testing.T) {
	mock := enginetest.New()
	queryErr := errors.New("embedding provider down")
	mock.QueryFunc = func(ctx context.Context, text string, mode models.Mode, vlm bool) (*engine.Answer, error) {
		return nil, queryErr
	}
	orch := newOrchestrator(t, mock, "")

	_, err := orch.Execute(context.Background(), models.QueryRequest{Query: "q", VLM: true})
	assert.ErrorIs(t, err, queryErr)
	assert.Equal(t, int32(1), mock.QueryCalls.Load())
}

func TestExecuteWritesQueryRecord(t *testing.T) {
	recordDir := filepath.Join(t.TempDir(), "queries")
	orch := newOrchestrator(t, enginetest.New(), recordDir)

	_, err := orch.Execute(context.Background(), models.QueryRequest{Query: "auditable"})
	require.NoError(t, err)

	entries, err := os.ReadDir(recordDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(filepath.Join(recordDir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"auditable"`)
}

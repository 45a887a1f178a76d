package local_test

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/aweiler/ragserve/internal/engine"
	"github.com/aweiler/ragserve/internal/engine/local"
	"github.com/aweiler/ragserve/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// fakeEmbedder maps text onto a fixed vocabulary axis per keyword, giving
// deterministic, meaningfully-separated vectors.
type fakeEmbedder struct {
	vocab []string
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{vocab: []string{"color", "shipping", "onboarding", "misc"}}
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, len(f.vocab))
	lower := strings.ToLower(text)
	hit := false
	for i, word := range f.vocab {
		if strings.Contains(lower, word) {
			vec[i] = 1
			hit = true
		}
	}
	if !hit {
		vec[len(vec)-1] = 1
	}
	return vec, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := f.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int { return len(f.vocab) }

// fakeCompleter answers with the first context passage so tests can assert
// the retrieval grounding reached the model.
type fakeCompleter struct {
	err error
}

func (f *fakeCompleter) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "grounded: " + firstPassage(userPrompt), nil
}

func firstPassage(prompt string) string {
	for _, line := range strings.Split(prompt, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "Context") || strings.HasPrefix(line, "[") {
			continue
		}
		return line
	}
	return ""
}

type fakeVision struct {
	description string
	err         error
	calls       int
}

func (f *fakeVision) Describe(ctx context.Context, prompt string, image []byte) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.description, nil
}

func openEngine(t *testing.T, dir string, vision local.VisionModel) *local.Engine {
	t.Helper()
	eng, err := local.Open(local.Config{
		WorkDir:  dir,
		TopK:     3,
		Model:    &fakeCompleter{},
		Embedder: newFakeEmbedder(),
		Vision:   vision,
		Logger:   testLogger(),
	})
	require.NoError(t, err)
	return eng
}

func chunksFor(docID string, contents ...string) []models.Chunk {
	out := make([]models.Chunk, len(contents))
	for i, c := range contents {
		out[i] = models.Chunk{Type: models.ChunkText, Content: c, DocID: docID, PageIdx: 0, ElementType: "text"}
	}
	return out
}

func TestInsertAndQueryRoundTrip(t *testing.T) {
	ctx := context.Background()
	eng := openEngine(t, t.TempDir(), nil)
	defer eng.Close()

	require.NoError(t, eng.Insert(ctx, chunksFor("colors", "Vermilion is a color, a vivid shade of red."), "colors"))
	require.NoError(t, eng.Insert(ctx, chunksFor("logistics", "Standard shipping takes five business days."), "logistics"))

	answer, err := eng.Query(ctx, "what color is vermilion", models.ModeNaive, false)
	require.NoError(t, err)

	assert.Contains(t, answer.Answer, "red", "answer must be grounded in the matching chunk")
	require.NotEmpty(t, answer.Sources)
	assert.Equal(t, "colors", answer.Sources[0].DocID)
	assert.Greater(t, answer.Confidence, 0.0)
	assert.IsType(t, []float32{}, answer.Sources[0].Embedding, "sources carry the native vector type")
}

func TestQueryModes(t *testing.T) {
	ctx := context.Background()
	eng := openEngine(t, t.TempDir(), nil)
	defer eng.Close()

	require.NoError(t, eng.Insert(ctx, chunksFor("hr", "Onboarding checklist for new employees."), "hr"))

	for _, mode := range []models.Mode{models.ModeNaive, models.ModeLocal, models.ModeHybrid} {
		t.Run(string(mode), func(t *testing.T) {
			answer, err := eng.Query(ctx, "employee onboarding", mode, false)
			require.NoError(t, err)
			require.NotEmpty(t, answer.Sources, "mode %s found nothing", mode)
			assert.Equal(t, "hr", answer.Sources[0].DocID)
		})
	}
}

func TestQueryEmptyIndex(t *testing.T) {
	eng := openEngine(t, t.TempDir(), nil)
	defer eng.Close()

	answer, err := eng.Query(context.Background(), "anything", models.ModeHybrid, false)
	require.NoError(t, err)
	assert.Empty(t, answer.Sources)
	assert.NotEmpty(t, answer.Answer)
}

func TestInsertRejectsEmptyBatch(t *testing.T) {
	eng := openEngine(t, t.TempDir(), nil)
	defer eng.Close()

	err := eng.Insert(context.Background(), []models.Chunk{{Content: "   "}}, "empty")
	assert.ErrorIs(t, err, engine.ErrInsert)
}

func TestIndexSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	eng := openEngine(t, dir, nil)
	require.NoError(t, eng.Insert(ctx, chunksFor("doc", "first chunk", "second chunk"), "doc"))
	require.NoError(t, eng.Close())

	eng = openEngine(t, dir, nil)
	defer eng.Close()

	stats, err := eng.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Chunks)
	assert.Equal(t, 1, stats.Documents)

	chunks, err := eng.SampleChunks(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, chunks, 2)
}

func TestSampleChunksHonorsLimit(t *testing.T) {
	ctx := context.Background()
	eng := openEngine(t, t.TempDir(), nil)
	defer eng.Close()

	require.NoError(t, eng.Insert(ctx, chunksFor("doc", "one", "two", "three"), "doc"))

	chunks, err := eng.SampleChunks(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, chunks, 2)
}

func TestParseMissingFile(t *testing.T) {
	eng := openEngine(t, t.TempDir(), nil)
	defer eng.Close()

	_, err := eng.Parse(context.Background(), "/nonexistent/file.md")
	assert.ErrorIs(t, err, engine.ErrParse)
}

func imageChunk(docID string) models.Chunk {
	payload := base64.StdEncoding.EncodeToString([]byte("fake image bytes"))
	return models.Chunk{
		Type:        models.ChunkImage,
		Content:     "data:image/png;base64," + payload,
		DocID:       docID,
		ElementType: "image",
	}
}

func TestQueryVisionPath(t *testing.T) {
	ctx := context.Background()
	vision := &fakeVision{description: "a swatch of vermilion color"}
	eng := openEngine(t, t.TempDir(), vision)
	defer eng.Close()

	require.NoError(t, eng.Insert(ctx, []models.Chunk{imageChunk("figures")}, "figures"))

	answer, err := eng.Query(ctx, "image png", models.ModeLocal, true)
	require.NoError(t, err)
	assert.Equal(t, 1, vision.calls)
	assert.Contains(t, answer.Answer, "vermilion")
}

func TestQueryVisionFailureWrapped(t *testing.T) {
	ctx := context.Background()
	vision := &fakeVision{err: fmt.Errorf("throttled")}
	eng := openEngine(t, t.TempDir(), vision)
	defer eng.Close()

	require.NoError(t, eng.Insert(ctx, []models.Chunk{imageChunk("figures")}, "figures"))

	_, err := eng.Query(ctx, "image png", models.ModeLocal, true)
	assert.ErrorIs(t, err, engine.ErrVisionPath)
}

func TestQueryVisionWithoutModel(t *testing.T) {
	ctx := context.Background()
	eng := openEngine(t, t.TempDir(), nil)
	defer eng.Close()

	require.NoError(t, eng.Insert(ctx, []models.Chunk{imageChunk("figures")}, "figures"))

	_, err := eng.Query(ctx, "image png", models.ModeLocal, true)
	assert.ErrorIs(t, err, engine.ErrVisionPath)
}

func TestQueryCompletionFailure(t *testing.T) {
	ctx := context.Background()
	eng, err := local.Open(local.Config{
		WorkDir:  t.TempDir(),
		TopK:     3,
		Model:    &fakeCompleter{err: errors.New("rate limited")},
		Embedder: newFakeEmbedder(),
		Logger:   testLogger(),
	})
	require.NoError(t, err)
	defer eng.Close()

	require.NoError(t, eng.Insert(ctx, chunksFor("doc", "some content"), "doc"))

	_, err = eng.Query(ctx, "some content", models.ModeLocal, false)
	assert.ErrorIs(t, err, engine.ErrQueryExecution)
}

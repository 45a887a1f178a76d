package local

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/aweiler/ragserve/internal/engine"
	"github.com/aweiler/ragserve/internal/models"
)

const answerSystemPrompt = `You are a retrieval assistant. Answer the question using only the
provided context passages. If the context does not contain the answer, say so
plainly. Be concise and cite nothing outside the context.`

// Query retrieves the top-k chunks for text under the given mode, optionally
// enriches image chunks through the vision model, and synthesizes an answer
// through the completion model.
func (e *Engine) Query(ctx context.Context, text string, mode models.Mode, vlm bool) (*engine.Answer, error) {
	results, err := e.retrieve(ctx, text, mode)
	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		return &engine.Answer{
			Answer:  "No documents have been ingested yet, so there is no context to answer from.",
			Sources: []engine.Source{},
		}, nil
	}

	if vlm {
		if err := e.describeImages(ctx, results); err != nil {
			return nil, err
		}
	}

	answer, err := e.synthesize(ctx, text, results)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrQueryExecution, err)
	}

	sources := make([]engine.Source, len(results))
	for i, r := range results {
		sources[i] = engine.Source{
			DocID:     r.entry.docID,
			Content:   r.entry.content,
			Score:     r.score,
			Embedding: r.entry.vector,
		}
	}

	return &engine.Answer{
		Answer:     answer,
		Sources:    sources,
		Confidence: results[0].score,
	}, nil
}

func (e *Engine) retrieve(ctx context.Context, text string, mode models.Mode) ([]scored, error) {
	switch mode {
	case models.ModeLocal:
		return e.index.searchKeyword(text, e.topK), nil
	case models.ModeNaive:
		vec, err := e.embedder.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("%w: embed query: %v", engine.ErrQueryExecution, err)
		}
		return e.index.searchVector(vec, e.topK), nil
	case models.ModeHybrid:
		vec, err := e.embedder.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("%w: embed query: %v", engine.ErrQueryExecution, err)
		}
		return e.index.searchHybrid(vec, text, e.topK), nil
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", engine.ErrQueryExecution, mode)
	}
}

// describeImages replaces image-chunk content with a vision description so
// the completion model sees text. Any vision failure aborts the whole call.
func (e *Engine) describeImages(ctx context.Context, results []scored) error {
	if e.vision == nil {
		return fmt.Errorf("%w: no vision model configured", engine.ErrVisionPath)
	}
	for i, r := range results {
		if r.entry.chunkType != string(models.ChunkImage) {
			continue
		}
		img, err := decodeImageContent(r.entry.content)
		if err != nil {
			return fmt.Errorf("%w: %v", engine.ErrVisionPath, err)
		}
		desc, err := e.vision.Describe(ctx, "Describe this image for retrieval context.", img)
		if err != nil {
			return fmt.Errorf("%w: %v", engine.ErrVisionPath, err)
		}
		results[i].entry.content = desc
		e.logger.Debug("image chunk described", "doc_id", r.entry.docID, "page", r.entry.pageIdx)
	}
	return nil
}

// decodeImageContent extracts raw image bytes from a chunk. Image chunks
// carry either a data URI or bare base64.
func decodeImageContent(content string) ([]byte, error) {
	payload := content
	if i := strings.Index(payload, "base64,"); i >= 0 {
		payload = payload[i+len("base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, fmt.Errorf("decode image content: %w", err)
	}
	return data, nil
}

func (e *Engine) synthesize(ctx context.Context, question string, results []scored) (string, error) {
	var b strings.Builder
	b.WriteString("Context passages:\n\n")
	for i, r := range results {
		fmt.Fprintf(&b, "[%d] (source %s, score %.3f)\n%s\n\n", i+1, r.entry.docID, r.score, r.entry.content)
	}
	fmt.Fprintf(&b, "Question: %s", question)
	return e.model.CompleteWithSystem(ctx, answerSystemPrompt, b.String())
}

// Package extractor converts a parsed document into the ordered chunk
// sequence the engine indexes, using one of two interchangeable strategies.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aweiler/ragserve/internal/models"
	"github.com/aweiler/ragserve/internal/parser"
)

// ErrChunking means a strategy produced no usable chunks or its model call
// failed. The ingestion orchestrator fails the task rather than inserting
// an empty document.
var ErrChunking = errors.New("chunk extraction failed")

// Strategy selects how chunks are derived from the parsed structure.
type Strategy string

const (
	// StrategyNative walks the parser's element list directly.
	// Deterministic, no external calls.
	StrategyNative Strategy = "native"

	// StrategyModel partitions the serialized document with a completion
	// model. Non-deterministic chunk count and boundaries; latency scales
	// with document size.
	StrategyModel Strategy = "llm"
)

// chunkDelimiter separates segments in the model's response.
const chunkDelimiter = "<<<CHUNK>>>"

const chunkSystemPrompt = `You split documents into coherent retrieval chunks.
Partition the document into self-contained segments, each covering one topic
or section. Preserve the original text verbatim inside each segment. Output
the segments separated by the exact line ` + chunkDelimiter + ` and nothing else.`

// Completer is the completion-model capability the model-assisted strategy
// needs. *llm.Model satisfies it.
type Completer interface {
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Extractor derives chunk sequences from parsed documents.
type Extractor struct {
	completer Completer
	logger    *slog.Logger
}

// New creates an extractor. completer may be nil when only the native
// strategy will be used.
func New(completer Completer, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{completer: completer, logger: logger}
}

// Extract converts doc into an ordered chunk sequence for docID using the
// given strategy.
func (e *Extractor) Extract(ctx context.Context, doc *parser.Document, docID string, strategy Strategy) ([]models.Chunk, error) {
	switch strategy {
	case StrategyNative, "":
		return e.native(doc, docID), nil
	case StrategyModel:
		return e.modelAssisted(ctx, doc, docID)
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", ErrChunking, strategy)
	}
}

// native maps each non-empty parsed element to one chunk, preserving order
// and carrying the element's page index and type tag.
func (e *Extractor) native(doc *parser.Document, docID string) []models.Chunk {
	chunks := make([]models.Chunk, 0, len(doc.Elements))
	for _, el := range doc.Elements {
		if strings.TrimSpace(el.Text) == "" {
			continue
		}
		chunks = append(chunks, models.Chunk{
			Type:        chunkType(el.Type),
			Content:     el.Text,
			DocID:       docID,
			PageIdx:     el.Page,
			ElementType: string(el.Type),
		})
	}
	return chunks
}

// modelAssisted serializes the document to markdown and asks the completion
// model to partition it. Returned segments carry document-level metadata
// only (page index -1).
func (e *Extractor) modelAssisted(ctx context.Context, doc *parser.Document, docID string) ([]models.Chunk, error) {
	if e.completer == nil {
		return nil, fmt.Errorf("%w: no completion model bound", ErrChunking)
	}

	markdown := doc.Markdown()
	if strings.TrimSpace(markdown) == "" {
		return nil, fmt.Errorf("%w: document has no content", ErrChunking)
	}

	response, err := e.completer.CompleteWithSystem(ctx, chunkSystemPrompt, markdown)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChunking, err)
	}

	var chunks []models.Chunk
	for _, segment := range strings.Split(response, chunkDelimiter) {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		chunks = append(chunks, models.Chunk{
			Type:        models.ChunkText,
			Content:     segment,
			DocID:       docID,
			PageIdx:     -1,
			ElementType: "llm_segment",
		})
	}

	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: model returned no usable segments", ErrChunking)
	}

	e.logger.Debug("model-assisted chunking complete", "doc_id", docID, "chunks", len(chunks))
	return chunks, nil
}

func chunkType(t parser.ElementType) models.ChunkType {
	switch t {
	case parser.ElementImage:
		return models.ChunkImage
	case parser.ElementTable:
		return models.ChunkTable
	case parser.ElementEquation:
		return models.ChunkEquation
	default:
		return models.ChunkText
	}
}

// Package engine defines the knowledge-engine contract the orchestrators
// program against, and the process-wide factory that owns the single
// engine instance.
package engine

import (
	"context"

	"github.com/aweiler/ragserve/internal/models"
	"github.com/aweiler/ragserve/internal/parser"
)

// Source is one retrieved piece of evidence as the engine returns it.
// Embedding carries whatever numeric-array type the retrieval path produced
// ([]float32, []float64, ...); callers normalize before serialization.
type Source struct {
	DocID     string
	Content   string
	Score     float64
	Embedding any
}

// Answer is the engine's response to one query.
type Answer struct {
	Answer     string
	Sources    []Source
	Confidence float64
}

// Stats summarizes the engine's persisted state for diagnostics.
type Stats struct {
	Documents int            `json:"documents"`
	Chunks    int            `json:"chunks"`
	Stores    map[string]int `json:"stores"`
}

// Engine is the opaque knowledge-indexing capability: parse a document into
// structured elements, insert chunks, and answer queries. Implementations
// are NOT safe for concurrent calls; all invocations must go through the
// scheduling core.
type Engine interface {
	// Parse converts the document at path into structured elements.
	Parse(ctx context.Context, path string) (*parser.Document, error)

	// Insert indexes the chunk sequence under the given document identifier.
	Insert(ctx context.Context, chunks []models.Chunk, docID string) error

	// Query answers a question in the given retrieval mode. vlm routes
	// image content through the vision model.
	Query(ctx context.Context, text string, mode models.Mode, vlm bool) (*Answer, error)

	// Stats reports index sizes for diagnostic endpoints.
	Stats(ctx context.Context) (*Stats, error)

	// SampleChunks returns up to limit indexed chunks for inspection.
	SampleChunks(ctx context.Context, limit int) ([]models.Chunk, error)

	// Close releases the engine's storage. Called once at process shutdown.
	Close() error
}

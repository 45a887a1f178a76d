// Package enginetest provides a test double for the engine contract.
package enginetest

import (
	"context"
	"sync/atomic"

	"github.com/aweiler/ragserve/internal/engine"
	"github.com/aweiler/ragserve/internal/models"
	"github.com/aweiler/ragserve/internal/parser"
)

// Mock is a test double for engine.Engine. Behavior is injected via the
// function fields; unset fields use benign defaults. Call counters are
// atomic so tests can assert across goroutines.
type Mock struct {
	ParseFunc  func(ctx context.Context, path string) (*parser.Document, error)
	InsertFunc func(ctx context.Context, chunks []models.Chunk, docID string) error
	QueryFunc  func(ctx context.Context, text string, mode models.Mode, vlm bool) (*engine.Answer, error)

	ParseCalls  atomic.Int32
	InsertCalls atomic.Int32
	QueryCalls  atomic.Int32

	// Inserted records every Insert payload in call order.
	Inserted []InsertedBatch
}

// InsertedBatch is one recorded Insert call.
type InsertedBatch struct {
	DocID  string
	Chunks []models.Chunk
}

var _ engine.Engine = (*Mock)(nil)

// New creates a mock engine with default behavior: parses documents from
// disk, accepts all inserts, answers every query with a canned response.
func New() *Mock {
	return &Mock{}
}

func (m *Mock) Parse(ctx context.Context, path string) (*parser.Document, error) {
	m.ParseCalls.Add(1)
	if m.ParseFunc != nil {
		return m.ParseFunc(ctx, path)
	}
	return parser.ParseFile(path)
}

func (m *Mock) Insert(ctx context.Context, chunks []models.Chunk, docID string) error {
	m.InsertCalls.Add(1)
	m.Inserted = append(m.Inserted, InsertedBatch{DocID: docID, Chunks: chunks})
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, chunks, docID)
	}
	return nil
}

func (m *Mock) Query(ctx context.Context, text string, mode models.Mode, vlm bool) (*engine.Answer, error) {
	m.QueryCalls.Add(1)
	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, text, mode, vlm)
	}
	return &engine.Answer{Answer: "mock answer", Confidence: 1}, nil
}

func (m *Mock) Stats(ctx context.Context) (*engine.Stats, error) {
	return &engine.Stats{Stores: map[string]int{}}, nil
}

func (m *Mock) SampleChunks(ctx context.Context, limit int) ([]models.Chunk, error) {
	var out []models.Chunk
	for _, batch := range m.Inserted {
		for _, c := range batch.Chunks {
			if len(out) >= limit {
				return out, nil
			}
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *Mock) Close() error { return nil }

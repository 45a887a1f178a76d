package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aweiler/ragserve/internal/engine"
	"github.com/aweiler/ragserve/internal/models"
	"github.com/aweiler/ragserve/internal/parser"
	"github.com/dgraph-io/badger/v4"
)

// Completer is the completion-model binding used for answer synthesis.
type Completer interface {
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Embedder is the embedding-model binding with fixed dimensionality.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// VisionModel is the vision-model binding used for image chunks.
type VisionModel interface {
	Describe(ctx context.Context, prompt string, image []byte) (string, error)
}

// Config holds the engine's bindings and working directory.
type Config struct {
	WorkDir  string
	TopK     int
	Model    Completer
	Embedder Embedder
	Vision   VisionModel
	Logger   *slog.Logger
}

// Engine implements engine.Engine on badger stores under WorkDir. It is not
// safe for concurrent use; all calls arrive serialized through the
// scheduling core.
type Engine struct {
	workDir  string
	topK     int
	model    Completer
	embedder Embedder
	vision   VisionModel
	logger   *slog.Logger

	textStore     *badger.DB
	entityStore   *badger.DB
	relationStore *badger.DB
	index         *vectorIndex
}

var _ engine.Engine = (*Engine)(nil)

// Open constructs the engine: opens the three stores and rebuilds the
// vector index from persisted chunks.
func Open(cfg Config) (*Engine, error) {
	if cfg.Model == nil || cfg.Embedder == nil {
		return nil, fmt.Errorf("model and embedder bindings are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = 5
	}

	e := &Engine{
		workDir:  cfg.WorkDir,
		topK:     topK,
		model:    cfg.Model,
		embedder: cfg.Embedder,
		vision:   cfg.Vision,
		logger:   logger,
		index:    newVectorIndex(),
	}

	var err error
	if e.textStore, err = openStore(cfg.WorkDir, StoreTextChunks, logger); err != nil {
		return nil, err
	}
	if e.entityStore, err = openStore(cfg.WorkDir, StoreEntityChunks, logger); err != nil {
		e.textStore.Close()
		return nil, err
	}
	if e.relationStore, err = openStore(cfg.WorkDir, StoreRelationChunks, logger); err != nil {
		e.textStore.Close()
		e.entityStore.Close()
		return nil, err
	}

	if err := e.rebuildIndex(); err != nil {
		e.Close()
		return nil, fmt.Errorf("rebuild index: %w", err)
	}

	logger.Info("engine opened", "work_dir", cfg.WorkDir, "chunks", e.index.len())
	return e, nil
}

// rebuildIndex loads every persisted chunk into the in-memory index.
func (e *Engine) rebuildIndex() error {
	return e.textStore.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.KeyCopy(nil))
			var rec chunkRecord
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			e.index.add(indexEntry{
				key:       key,
				docID:     rec.DocID,
				content:   rec.Content,
				chunkType: rec.Type,
				pageIdx:   rec.PageIdx,
				vector:    rec.Embedding,
			})
		}
		return nil
	})
}

// Parse converts the document at path into structured elements.
func (e *Engine) Parse(ctx context.Context, path string) (*parser.Document, error) {
	doc, err := parser.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrParse, err)
	}
	if len(doc.Elements) == 0 {
		return nil, fmt.Errorf("%w: no content in %s", engine.ErrParse, path)
	}
	return doc, nil
}

// Insert embeds and persists the chunk sequence under docID, preserving
// order. Empty-content placeholders are filtered before insertion.
func (e *Engine) Insert(ctx context.Context, chunks []models.Chunk, docID string) error {
	chunks = models.FilterEmpty(chunks)
	if len(chunks) == 0 {
		return fmt.Errorf("%w: no chunks for %s", engine.ErrInsert, docID)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: %v", engine.ErrInsert, err)
	}

	for i, c := range chunks {
		key := fmt.Sprintf("%s#%05d", docID, i)
		rec := chunkRecord{
			Type:        string(c.Type),
			Content:     c.Content,
			DocID:       docID,
			PageIdx:     c.PageIdx,
			ElementType: c.ElementType,
			Embedding:   vectors[i],
		}
		if err := setJSON(e.textStore, []byte(key), rec); err != nil {
			return fmt.Errorf("%w: %v", engine.ErrInsert, err)
		}
		if err := e.indexEntities(key, c.Content); err != nil {
			return fmt.Errorf("%w: %v", engine.ErrInsert, err)
		}
		e.index.add(indexEntry{
			key:       key,
			docID:     docID,
			content:   c.Content,
			chunkType: string(c.Type),
			pageIdx:   c.PageIdx,
			vector:    vectors[i],
		})
	}

	if err := setJSON(e.relationStore, []byte(docID), docRecord{DocID: docID, Chunks: len(chunks)}); err != nil {
		return fmt.Errorf("%w: %v", engine.ErrInsert, err)
	}

	e.logger.Info("chunks inserted", "doc_id", docID, "chunks", len(chunks))
	return nil
}

// indexEntities appends the chunk key to the posting list of every term in
// its content. The entity store backs local-mode retrieval.
func (e *Engine) indexEntities(chunkKey, content string) error {
	for _, term := range tokenize(content) {
		key := []byte(term)
		var postings []string
		err := getJSON(e.entityStore, key, &postings)
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		postings = append(postings, chunkKey)
		if err := setJSON(e.entityStore, key, postings); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the badger stores.
func (e *Engine) Close() error {
	var errs []error
	for _, db := range []*badger.DB{e.textStore, e.entityStore, e.relationStore} {
		if db != nil {
			if err := db.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Stats reports store sizes for the diagnostic endpoints.
func (e *Engine) Stats(ctx context.Context) (*engine.Stats, error) {
	stores := make(map[string]int, 3)
	for name, db := range map[string]*badger.DB{
		StoreTextChunks:     e.textStore,
		StoreEntityChunks:   e.entityStore,
		StoreRelationChunks: e.relationStore,
	} {
		n, err := countKeys(db)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", name, err)
		}
		stores[name] = n
	}
	return &engine.Stats{
		Documents: stores[StoreRelationChunks],
		Chunks:    e.index.len(),
		Stores:    stores,
	}, nil
}

// SampleChunks returns up to limit persisted chunks in key order.
func (e *Engine) SampleChunks(ctx context.Context, limit int) ([]models.Chunk, error) {
	var out []models.Chunk
	err := e.textStore.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid() && len(out) < limit; it.Next() {
			var rec chunkRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			out = append(out, models.Chunk{
				Type:        models.ChunkType(rec.Type),
				Content:     truncate(rec.Content, 200),
				DocID:       rec.DocID,
				PageIdx:     rec.PageIdx,
				ElementType: rec.ElementType,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

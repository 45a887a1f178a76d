// Package local implements the engine contract on a badger-backed working
// directory: key-value stores for text/entity/relation chunks plus an
// in-memory vector index rebuilt from disk at open.
package local

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

// Store names under the working directory. The names are part of the
// on-disk contract inspected by the diagnostic endpoints.
const (
	StoreTextChunks     = "kv_store_text_chunks"
	StoreEntityChunks   = "kv_store_entity_chunks"
	StoreRelationChunks = "kv_store_relation_chunks"
)

// chunkRecord is the persisted form of one indexed chunk.
type chunkRecord struct {
	Type        string    `json:"type"`
	Content     string    `json:"content"`
	DocID       string    `json:"doc_id"`
	PageIdx     int       `json:"page_idx"`
	ElementType string    `json:"element_type"`
	Embedding   []float32 `json:"embedding"`
}

// docRecord registers one inserted document in the relation store.
type docRecord struct {
	DocID  string `json:"doc_id"`
	Chunks int    `json:"chunks"`
}

// badgerLoggerAdapter adapts slog.Logger to the badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// openStore opens one badger store under workDir, creating the directory
// when missing.
func openStore(workDir, name string, logger *slog.Logger) (*badger.DB, error) {
	path := filepath.Join(workDir, name)
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("create store dir %s: %w", name, err)
	}

	opts := badger.DefaultOptions(path)
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", name, err)
	}
	return db, nil
}

// setJSON marshals v and stores it under key.
func setJSON(db *badger.DB, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	return db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

// getJSON loads key into v. Returns badger.ErrKeyNotFound when absent.
func getJSON(db *badger.DB, key []byte, v any) error {
	return db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
}

// countKeys counts entries in a store.
func countKeys(db *badger.DB) (int, error) {
	count := 0
	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

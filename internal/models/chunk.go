// Package models defines the data types shared across the ragserve service.
package models

import "strings"

// ChunkType tags the modality of a chunk's content.
type ChunkType string

const (
	ChunkText     ChunkType = "text"
	ChunkImage    ChunkType = "image"
	ChunkTable    ChunkType = "table"
	ChunkEquation ChunkType = "equation"
)

// Chunk is one unit of indexed content. Ordering within a document is
// insertion order and must be preserved by everything that handles a slice
// of chunks.
type Chunk struct {
	Type        ChunkType `json:"type"`
	Content     string    `json:"content"`
	DocID       string    `json:"doc_id"`
	PageIdx     int       `json:"page_idx"`
	ElementType string    `json:"element_type"`
}

// Empty reports whether the chunk carries no usable content.
func (c Chunk) Empty() bool {
	return strings.TrimSpace(c.Content) == ""
}

// FilterEmpty returns chunks with empty-content placeholders removed,
// preserving order.
func FilterEmpty(chunks []Chunk) []Chunk {
	out := make([]Chunk, 0, len(chunks))
	for _, c := range chunks {
		if !c.Empty() {
			out = append(out, c)
		}
	}
	return out
}

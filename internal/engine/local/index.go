package local

import (
	"math"
	"sort"
	"strings"
)

// indexEntry is one chunk held in the in-memory vector index.
type indexEntry struct {
	key       string
	docID     string
	content   string
	chunkType string
	pageIdx   int
	vector    []float32
}

// vectorIndex is a flat in-memory index over chunk embeddings. It is only
// touched from the scheduling core's worker, so it needs no locking.
type vectorIndex struct {
	entries []indexEntry
}

func newVectorIndex() *vectorIndex {
	return &vectorIndex{}
}

func (x *vectorIndex) add(e indexEntry) {
	x.entries = append(x.entries, e)
}

func (x *vectorIndex) len() int {
	return len(x.entries)
}

// scored pairs an entry with its retrieval score.
type scored struct {
	entry indexEntry
	score float64
}

// searchVector returns the topK entries by cosine similarity to query.
func (x *vectorIndex) searchVector(query []float32, topK int) []scored {
	results := make([]scored, 0, len(x.entries))
	for _, e := range x.entries {
		results = append(results, scored{entry: e, score: cosine(query, e.vector)})
	}
	return top(results, topK)
}

// searchKeyword scores entries by the fraction of query terms they contain.
func (x *vectorIndex) searchKeyword(query string, topK int) []scored {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil
	}

	results := make([]scored, 0, len(x.entries))
	for _, e := range x.entries {
		content := strings.ToLower(e.content)
		matched := 0
		for _, t := range terms {
			if strings.Contains(content, t) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		results = append(results, scored{entry: e, score: float64(matched) / float64(len(terms))})
	}
	return top(results, topK)
}

// searchHybrid merges vector and keyword scores, weighting vector evidence
// higher.
func (x *vectorIndex) searchHybrid(queryVec []float32, query string, topK int) []scored {
	const vectorWeight, keywordWeight = 0.7, 0.3

	merged := make(map[string]scored, topK*2)
	for _, s := range x.searchVector(queryVec, topK*2) {
		s.score *= vectorWeight
		merged[s.entry.key] = s
	}
	for _, s := range x.searchKeyword(query, topK*2) {
		if prev, ok := merged[s.entry.key]; ok {
			prev.score += s.score * keywordWeight
			merged[s.entry.key] = prev
		} else {
			s.score *= keywordWeight
			merged[s.entry.key] = s
		}
	}

	results := make([]scored, 0, len(merged))
	for _, s := range merged {
		results = append(results, s)
	}
	return top(results, topK)
}

func top(results []scored, k int) []scored {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})
	if len(results) > k {
		results = results[:k]
	}
	return results
}

// cosine computes cosine similarity; mismatched or zero vectors score 0.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// tokenize lowercases and splits a query into terms, dropping short stop
// words.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 3 {
			continue
		}
		terms = append(terms, f)
	}
	return terms
}

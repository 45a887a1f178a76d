package local

import (
	"math"
	"testing"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{name: "identical", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "mismatched lengths", a: []float32{1, 2}, b: []float32{1}, want: 0},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 1}, want: 0},
		{name: "empty", a: nil, b: nil, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosine(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("cosine() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "lowercases and splits", input: "The Quick BROWN fox", want: []string{"the", "quick", "brown", "fox"}},
		{name: "drops short terms", input: "a an is of refund policy", want: []string{"refund", "policy"}},
		{name: "strips punctuation", input: "what's the refund-policy?", want: []string{"what", "the", "refund", "policy"}},
		{name: "empty", input: "  ", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tokenize(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("tokenize(%q) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("tokenize(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func testIndex() *vectorIndex {
	x := newVectorIndex()
	x.add(indexEntry{key: "a#0", docID: "a", content: "refund policy for returned items", vector: []float32{1, 0, 0}})
	x.add(indexEntry{key: "a#1", docID: "a", content: "shipping rates and delivery windows", vector: []float32{0, 1, 0}})
	x.add(indexEntry{key: "b#0", docID: "b", content: "employee onboarding checklist", vector: []float32{0, 0, 1}})
	return x
}

func TestSearchVector(t *testing.T) {
	x := testIndex()

	results := x.searchVector([]float32{1, 0.1, 0}, 2)
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].entry.key != "a#0" {
		t.Errorf("top result = %s, want a#0", results[0].entry.key)
	}
	if results[0].score <= results[1].score {
		t.Error("results must be ordered by descending score")
	}
}

func TestSearchKeyword(t *testing.T) {
	x := testIndex()

	results := x.searchKeyword("what is the refund policy", 5)
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].entry.key != "a#0" {
		t.Errorf("top result = %s, want a#0", results[0].entry.key)
	}

	if got := x.searchKeyword("zz", 5); got != nil {
		t.Errorf("query with no usable terms should return nil, got %v", got)
	}
}

func TestSearchHybrid(t *testing.T) {
	x := testIndex()

	// Vector points at shipping, keywords point at refund; both must appear.
	results := x.searchHybrid([]float32{0, 1, 0}, "refund policy", 3)
	if len(results) < 2 {
		t.Fatalf("got %d results, want at least 2", len(results))
	}

	seen := map[string]bool{}
	for _, r := range results {
		seen[r.entry.key] = true
	}
	if !seen["a#0"] || !seen["a#1"] {
		t.Errorf("hybrid results missing expected entries: %v", seen)
	}
}

func TestTopTruncates(t *testing.T) {
	x := testIndex()
	results := x.searchVector([]float32{1, 1, 1}, 1)
	if len(results) != 1 {
		t.Errorf("got %d results, want 1", len(results))
	}
}
